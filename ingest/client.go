package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/halide-io/sluice/log"
	"github.com/halide-io/sluice/metrics"
	"github.com/halide-io/sluice/transport"
	"github.com/halide-io/sluice/types"
)

// Client owns one transport connector and at most one open file
// session. It is designed for sequential use by one caller; all state
// transitions on the client and its active session are serialized by a
// single mutex, so at most one operation is in flight at any instant.
//
// Lifecycle: Init acquires the connector; Stop releases it. Stopped is
// terminal and a second Stop is a safe no-op.
type Client struct {
	mu sync.Mutex

	connector transport.Connector
	session   *Session
	stopped   bool

	logger      *log.Logger
	collector   *metrics.Collector
	sendTimeout time.Duration
	chunkSize   int64
}

// Option configures a Client at Init time.
type Option func(*Client)

// WithLogger attaches a structured logger. Default is a no-op logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics attaches a metrics collector. The connector is wrapped so
// every delivery attempt is counted.
func WithMetrics(collector *metrics.Collector) Option {
	return func(c *Client) { c.collector = collector }
}

// WithSendTimeout bounds each blocking transport call. Zero (the
// default) means only the caller's context bounds a call. A timeout
// surfaces as a write or close TransportError, never a crash.
func WithSendTimeout(d time.Duration) Option {
	return func(c *Client) { c.sendTimeout = d }
}

// WithChunkSize sets the nominal chunk size announced in open frames so
// the receiver can detect the final short chunk. Zero means
// unspecified; the client accepts any payload size regardless.
func WithChunkSize(n int64) Option {
	return func(c *Client) { c.chunkSize = n }
}

// Init acquires a transport connector via the factory and returns a
// ready client. Acquisition failure is fatal to the instance: the
// returned error satisfies IsInitError and no client is returned.
func Init(factory transport.Factory, opts ...Option) (*Client, error) {
	if factory == nil {
		return nil, WrapInitError(errors.New("transport factory is required"))
	}

	connector, err := factory()
	if err != nil {
		return nil, WrapInitError(err)
	}

	c := &Client{
		connector: connector,
		logger:    log.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.collector != nil {
		c.connector = transport.NewInstrumented(connector, c.collector)
	}

	c.logger.Debug("client initialized", map[string]any{"chunkSize": c.chunkSize})
	return c, nil
}

// OpenFile creates a session for one remote file and announces it
// downstream with a single open frame. Fails with ErrSessionConflict
// while another session is open, regardless of its file identifier.
func (c *Client) OpenFile(ctx context.Context, fileID string) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return nil, ErrStopped
	}
	if c.session != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionConflict, c.session.fileID)
	}
	if fileID == "" {
		return nil, WrapOpenError(errors.New("file identifier is required"), fileID)
	}

	open := &types.FileOpenFrame{FileID: fileID, ChunkSize: c.chunkSize}
	if err := c.open(ctx, open); err != nil {
		return nil, WrapOpenError(err, fileID)
	}

	session := &Session{client: c, fileID: fileID, state: stateOpen}
	c.session = session

	c.logger.Info("file opened", map[string]any{"file": fileID})
	return session, nil
}

// Stop closes any open session on the caller's behalf, then releases
// the connector. Errors from the implicit close or the release are
// surfaced, but the client always ends up Stopped: resource release is
// never blocked by a failed protocol-level close. A second Stop returns
// nil and performs nothing.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return nil
	}

	var closeErr error
	if c.session != nil && c.session.state == stateOpen {
		closeErr = c.session.closeLocked(ctx)
		if closeErr != nil {
			// The session is discarded regardless; the receiver is
			// responsible for timing out a file with no final framing.
			c.logger.Warn("implicit close failed", map[string]any{
				"file":  c.session.fileID,
				"error": closeErr.Error(),
			})
			c.session.state = stateClosed
		}
	}
	c.session = nil

	releaseErr := WrapReleaseError(c.connector.Release())
	c.stopped = true

	c.logger.Info("client stopped", map[string]any{})
	return errors.Join(closeErr, releaseErr)
}

// Stopped reports whether the client has been stopped.
func (c *Client) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// Metrics returns a snapshot of the client's counters, or a zero
// snapshot when no collector was attached.
func (c *Client) Metrics() metrics.Snapshot {
	return c.collector.Snapshot()
}

// open announces a file downstream, bounded by the send timeout.
func (c *Client) open(ctx context.Context, frame *types.FileOpenFrame) error {
	if c.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.sendTimeout)
		defer cancel()
	}
	return c.connector.Open(ctx, frame)
}

// send delivers one encoded frame, bounded by the send timeout.
func (c *Client) send(ctx context.Context, frame []byte) error {
	if c.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.sendTimeout)
		defer cancel()
	}
	return c.connector.Send(ctx, frame)
}
