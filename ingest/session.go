package ingest

import (
	"context"

	"github.com/halide-io/sluice/types"
	"github.com/halide-io/sluice/wire"
)

// sessionState is the lifecycle state of a file session.
type sessionState int

const (
	stateOpen sessionState = iota
	stateClosed
)

// Session is the lifecycle of one remote file transfer, from open to
// close. It owns the sequence counter: the counter advances only on
// confirmed delivery, so the sequence numbers seen by the transport for
// a file are exactly 0,1,2,...,n-1 with no gaps or repeats, and a
// failed write can be retried with the same payload into the same slot.
//
// A session belongs exclusively to the client that created it and is
// discarded when closed or when the client stops.
type Session struct {
	client *Client

	fileID       string
	state        sessionState
	nextSeq      uint64
	bytesWritten uint64
}

// FileID returns the file identifier this session transfers.
func (s *Session) FileID() string {
	return s.fileID
}

// Seq returns the next unused sequence number, which equals the number
// of chunks delivered so far.
func (s *Session) Seq() uint64 {
	s.client.mu.Lock()
	defer s.client.mu.Unlock()
	return s.nextSeq
}

// BytesWritten returns the total payload bytes delivered so far.
// Diagnostic only; it does not include framing overhead.
func (s *Session) BytesWritten() uint64 {
	s.client.mu.Lock()
	defer s.client.mu.Unlock()
	return s.bytesWritten
}

// Write delivers one chunk of file payload. The payload is borrowed
// only for the duration of the call (encoding copies it); the caller
// may reuse its buffer immediately after Write returns. A zero-length
// payload is legal and forwarded.
//
// On transport failure the sequence counter does not advance and the
// session stays open: retrying with the same payload reuses the same
// sequence number. The error satisfies IsWriteError.
func (s *Session) Write(ctx context.Context, payload []byte) error {
	c := s.client
	c.mu.Lock()
	defer c.mu.Unlock()

	if s.state != stateOpen {
		return ErrSessionClosed
	}

	frame, err := wire.EncodeChunk(&types.FileChunkFrame{
		FileID: s.fileID,
		Seq:    s.nextSeq,
		Data:   payload,
	})
	if err != nil {
		return WrapWriteError(err, s.fileID)
	}

	if err := c.send(ctx, frame); err != nil {
		return WrapWriteError(err, s.fileID)
	}

	s.nextSeq++
	s.bytesWritten += uint64(len(payload))
	c.collector.AddChunkSent(int64(len(payload)))

	c.logger.Debug("chunk delivered", map[string]any{
		"file":  s.fileID,
		"seq":   s.nextSeq - 1,
		"bytes": len(payload),
	})
	return nil
}

// Close finalizes the file with a single is-final framing carrying no
// payload, at the next unused sequence number. On success the session
// is closed and discarded by its client; a later Close or Write fails
// with ErrSessionClosed.
//
// On transport failure the session stays open and Close may be retried
// directly; the error satisfies IsCloseError. The remote side receives
// exactly one is-final framing per file.
func (s *Session) Close(ctx context.Context) error {
	c := s.client
	c.mu.Lock()
	defer c.mu.Unlock()

	if s.state != stateOpen {
		return ErrSessionClosed
	}
	return s.closeLocked(ctx)
}

// closeLocked sends the final framing. Caller holds the client mutex.
func (s *Session) closeLocked(ctx context.Context) error {
	c := s.client

	frame, err := wire.EncodeChunk(&types.FileChunkFrame{
		FileID:  s.fileID,
		Seq:     s.nextSeq,
		IsFinal: true,
	})
	if err != nil {
		return WrapCloseError(err, s.fileID)
	}

	if err := c.send(ctx, frame); err != nil {
		return WrapCloseError(err, s.fileID)
	}

	s.state = stateClosed
	s.nextSeq++
	c.session = nil
	c.collector.IncFileCompleted()

	c.logger.Info("file closed", map[string]any{
		"file":  s.fileID,
		"bytes": s.bytesWritten,
	})
	return nil
}
