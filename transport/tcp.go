package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/halide-io/sluice/types"
	"github.com/halide-io/sluice/wire"
)

// DefaultDialTimeout bounds the TCP connection handshake.
const DefaultDialTimeout = 10 * time.Second

// TCPConfig configures the TCP connector.
type TCPConfig struct {
	// Addr is the receiver address in host:port form (required).
	Addr string
	// DialTimeout bounds connection establishment (default 10s).
	DialTimeout time.Duration
	// WriteTimeout bounds each frame write. Zero means no deadline
	// beyond the one carried by the call context.
	WriteTimeout time.Duration
}

// TCP streams length-prefixed frames over a single TCP connection.
// Ordering is inherited from the connection; a failed write leaves the
// connection in an unknown state, which the caller sees as a transport
// error on that and subsequent calls.
type TCP struct {
	conn     net.Conn
	timeout  time.Duration
	released bool
}

// DialTCP connects to the receiver and returns a TCP connector.
func DialTCP(cfg TCPConfig) (*TCP, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("tcp connector requires an address")
	}

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}

	conn, err := net.DialTimeout("tcp", cfg.Addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("tcp: dial %s: %w", cfg.Addr, err)
	}

	return &TCP{conn: conn, timeout: cfg.WriteTimeout}, nil
}

// TCPFactory returns a Factory that dials on first use.
func TCPFactory(cfg TCPConfig) Factory {
	return func() (Connector, error) {
		return DialTCP(cfg)
	}
}

// Open encodes and writes a file open frame.
func (t *TCP) Open(ctx context.Context, open *types.FileOpenFrame) error {
	frame, err := wire.EncodeOpen(open)
	if err != nil {
		return err
	}
	return t.Send(ctx, frame)
}

// Send writes one encoded frame to the connection.
func (t *TCP) Send(ctx context.Context, frame []byte) error {
	if t.released {
		return ErrReleased
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	deadline, ok := ctx.Deadline()
	if t.timeout > 0 {
		d := time.Now().Add(t.timeout)
		if !ok || d.Before(deadline) {
			deadline = d
			ok = true
		}
	}
	if ok {
		if err := t.conn.SetWriteDeadline(deadline); err != nil {
			return fmt.Errorf("tcp: set write deadline: %w", err)
		}
	}

	if _, err := t.conn.Write(frame); err != nil {
		return fmt.Errorf("tcp: write frame: %w", err)
	}
	return nil
}

// Release closes the connection. Safe to call once.
func (t *TCP) Release() error {
	if t.released {
		return nil
	}
	t.released = true
	if err := t.conn.Close(); err != nil {
		return fmt.Errorf("tcp: close: %w", err)
	}
	return nil
}

// Verify TCP implements Connector.
var _ Connector = (*TCP)(nil)
