package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/halide-io/sluice/types"
	"github.com/halide-io/sluice/wire"
)

// DefaultHandshakeTimeout bounds the WebSocket upgrade handshake.
const DefaultHandshakeTimeout = 10 * time.Second

// WSConfig configures the WebSocket connector.
type WSConfig struct {
	// URL is the receiver endpoint, ws:// or wss:// (required).
	URL string
	// HandshakeTimeout bounds the upgrade handshake (default 10s).
	HandshakeTimeout time.Duration
	// WriteTimeout bounds each frame write. Zero means no deadline
	// beyond the one carried by the call context.
	WriteTimeout time.Duration
}

// WS delivers frames as binary WebSocket messages. Message boundaries
// make the length prefix redundant on this transport, but frames keep
// the uniform wire layout so receiver code is transport-agnostic.
type WS struct {
	conn     *websocket.Conn
	timeout  time.Duration
	released bool
}

// DialWS performs the WebSocket handshake and returns a WS connector.
func DialWS(cfg WSConfig) (*WS, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("ws connector requires a URL")
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
	if dialer.HandshakeTimeout <= 0 {
		dialer.HandshakeTimeout = DefaultHandshakeTimeout
	}

	conn, _, err := dialer.Dial(cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("ws: dial %s: %w", cfg.URL, err)
	}

	return &WS{conn: conn, timeout: cfg.WriteTimeout}, nil
}

// WSFactory returns a Factory that dials on first use.
func WSFactory(cfg WSConfig) Factory {
	return func() (Connector, error) {
		return DialWS(cfg)
	}
}

// Open encodes and sends a file open frame.
func (w *WS) Open(ctx context.Context, open *types.FileOpenFrame) error {
	frame, err := wire.EncodeOpen(open)
	if err != nil {
		return err
	}
	return w.Send(ctx, frame)
}

// Send delivers one encoded frame as a binary message.
func (w *WS) Send(ctx context.Context, frame []byte) error {
	if w.released {
		return ErrReleased
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	deadline, ok := ctx.Deadline()
	if w.timeout > 0 {
		d := time.Now().Add(w.timeout)
		if !ok || d.Before(deadline) {
			deadline = d
			ok = true
		}
	}
	if ok {
		if err := w.conn.SetWriteDeadline(deadline); err != nil {
			return fmt.Errorf("ws: set write deadline: %w", err)
		}
	}

	if err := w.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("ws: write frame: %w", err)
	}
	return nil
}

// Release performs the close handshake and closes the connection.
func (w *WS) Release() error {
	if w.released {
		return nil
	}
	w.released = true

	// Best-effort close handshake; the receiver times out a peer that
	// disappears without one.
	deadline := time.Now().Add(time.Second)
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)

	if err := w.conn.Close(); err != nil {
		return fmt.Errorf("ws: close: %w", err)
	}
	return nil
}

// Verify WS implements Connector.
var _ Connector = (*WS)(nil)
