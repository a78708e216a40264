// Package transport defines the connector boundary between the ingest
// client and the downstream receiver.
//
// A Connector delivers framed bytes produced by the wire package. Its
// internal retry and backoff policy is out of scope here: the client
// either trusts a call or treats it as failed.
package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/halide-io/sluice/types"
)

// Connector is the channel used to deliver framed chunks to a receiver.
// Calls are blocking; implementations own their timeouts beyond the
// deadline carried by ctx.
//
// A Connector is exclusively owned by one ingest client and must not be
// shared. Release is called exactly once, after which no other method
// may be invoked.
type Connector interface {
	// Open announces a new logical file downstream. Called once per file,
	// before any Send for that file.
	Open(ctx context.Context, open *types.FileOpenFrame) error

	// Send delivers one encoded frame. Frames for a given file must reach
	// the receiver in the order they were sent.
	Send(ctx context.Context, frame []byte) error

	// Release closes the connector and frees its resources.
	Release() error
}

// Factory constructs a Connector. The ingest client invokes it during
// initialization so that acquisition failures surface there.
type Factory func() (Connector, error)

// Stub is a recording connector for tests. It captures every call and
// can inject failures per operation.
type Stub struct {
	mu sync.Mutex

	Opens    []*types.FileOpenFrame
	Frames   [][]byte
	Released bool

	// FailOpen, FailSend, and FailRelease are returned by the
	// corresponding call when non-nil.
	FailOpen    error
	FailSend    error
	FailRelease error

	// FailSendAfter fails Send with FailSend only once this many frames
	// have been recorded. Zero means FailSend applies to every call.
	FailSendAfter int
}

// NewStub creates a new recording connector.
func NewStub() *Stub {
	return &Stub{}
}

// Open implements Connector by recording the open frame.
func (s *Stub) Open(_ context.Context, open *types.FileOpenFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailOpen != nil {
		return s.FailOpen
	}
	s.Opens = append(s.Opens, open)
	return nil
}

// Send implements Connector by recording the frame bytes.
func (s *Stub) Send(_ context.Context, frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSend != nil && len(s.Frames) >= s.FailSendAfter {
		return s.FailSend
	}
	buf := make([]byte, len(frame))
	copy(buf, frame)
	s.Frames = append(s.Frames, buf)
	return nil
}

// Release implements Connector.
func (s *Stub) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailRelease != nil {
		return s.FailRelease
	}
	s.Released = true
	return nil
}

// ClearFailures resets all injected failures.
func (s *Stub) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FailOpen = nil
	s.FailSend = nil
	s.FailRelease = nil
	s.FailSendAfter = 0
}

// Verify Stub implements Connector.
var _ Connector = (*Stub)(nil)

// ErrReleased is returned when a connector is used after Release.
var ErrReleased = errors.New("connector released")
