package types

// Version is the canonical project version.
// The CLI, the wire contract, and the client library share this version
// per the lockstep versioning policy.
const Version = "0.2.0"
