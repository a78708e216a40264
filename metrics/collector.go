// Package metrics provides per-client transfer metrics collection.
//
// The Collector accumulates counters for one ingest client. It is a
// leaf package with no internal dependencies. Counters are recorded at
// the transport boundary so every delivery attempt is visible,
// including failed ones that never advance a sequence number.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after
// creation.
type Snapshot struct {
	// File lifecycle
	FilesOpened    int64
	FilesCompleted int64

	// Chunk delivery
	ChunksSent   int64
	BytesSent    int64
	SendFailures int64

	// Connector lifecycle
	OpenFailures    int64
	ReleaseFailures int64

	// Dimensions (informational, set at construction)
	Transport string
	ClientID  string
}

// Collector accumulates metrics for a single ingest client.
// Thread-safe via sync.Mutex. All increment methods are
// nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	filesOpened    int64
	filesCompleted int64

	chunksSent   int64
	bytesSent    int64
	sendFailures int64

	openFailures    int64
	releaseFailures int64

	transport string
	clientID  string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(transport, clientID string) *Collector {
	return &Collector{
		transport: transport,
		clientID:  clientID,
	}
}

// IncFileOpened records a successful file open.
func (c *Collector) IncFileOpened() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.filesOpened++
	c.mu.Unlock()
}

// IncFileCompleted records a file that received its final framing.
func (c *Collector) IncFileCompleted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.filesCompleted++
	c.mu.Unlock()
}

// AddChunkSent records a delivered chunk and its payload size.
func (c *Collector) AddChunkSent(bytes int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.chunksSent++
	c.bytesSent += bytes
	c.mu.Unlock()
}

// IncSendFailure records a failed frame delivery.
func (c *Collector) IncSendFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sendFailures++
	c.mu.Unlock()
}

// IncOpenFailure records a failed file open at the transport.
func (c *Collector) IncOpenFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.openFailures++
	c.mu.Unlock()
}

// IncReleaseFailure records a failed connector release.
func (c *Collector) IncReleaseFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.releaseFailures++
	c.mu.Unlock()
}

// Snapshot returns an immutable point-in-time view of all counters.
// The Collector can continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		FilesOpened:    c.filesOpened,
		FilesCompleted: c.filesCompleted,

		ChunksSent:   c.chunksSent,
		BytesSent:    c.bytesSent,
		SendFailures: c.sendFailures,

		OpenFailures:    c.openFailures,
		ReleaseFailures: c.releaseFailures,

		Transport: c.transport,
		ClientID:  c.clientID,
	}
}
