// Package wire implements the on-stream frame format: a 4-byte
// big-endian length prefix followed by a msgpack-encoded body.
//
// The exact byte layout is owned by the receiver protocol; this package
// is the single place it is spelled out. Every connector delivers the
// bytes produced here verbatim.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/halide-io/sluice/types"
)

// Frame size constants.
const (
	// MaxFrameSize is the maximum frame size (16 MiB), including length prefix.
	MaxFrameSize = 16 * 1024 * 1024
	// MaxPayloadSize is the maximum payload size (MaxFrameSize - 4 bytes).
	MaxPayloadSize = MaxFrameSize - LengthPrefixSize
	// MaxChunkSize is the maximum chunk data size (8 MiB raw bytes).
	MaxChunkSize = 8 * 1024 * 1024
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
)

// FrameErrorKind classifies frame errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated or incomplete frame.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a frame exceeding MaxFrameSize.
	FrameErrorTooLarge
	// FrameErrorDecode indicates a msgpack decoding error.
	FrameErrorDecode
)

// FrameError represents a frame encoding or decoding error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFatal returns true if this error is fatal to the stream.
// Partial and oversized frames are fatal; decode errors are per-frame.
func (e *FrameError) IsFatal() bool {
	return e.Kind == FrameErrorPartial || e.Kind == FrameErrorTooLarge
}

// IsFatalFrameError returns true if the error is a fatal frame error.
func IsFatalFrameError(err error) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.IsFatal()
	}
	return false
}

// EncodeOpen encodes a file open frame, length prefix included.
func EncodeOpen(frame *types.FileOpenFrame) ([]byte, error) {
	frame.Type = types.FileOpenType
	return encode(frame)
}

// EncodeChunk encodes a file chunk frame, length prefix included.
// Chunks larger than MaxChunkSize are rejected with a TooLarge error.
func EncodeChunk(frame *types.FileChunkFrame) ([]byte, error) {
	if len(frame.Data) > MaxChunkSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("chunk data size %d exceeds maximum %d", len(frame.Data), MaxChunkSize),
		}
	}
	frame.Type = types.FileChunkType
	return encode(frame)
}

// encode marshals v and prepends the big-endian length prefix.
func encode(v any) ([]byte, error) {
	body, err := msgpack.Marshal(v)
	if err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to encode frame",
			Err:  err,
		}
	}
	if len(body) > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(body), MaxPayloadSize),
		}
	}

	buf := make([]byte, LengthPrefixSize+len(body))
	binary.BigEndian.PutUint32(buf[:LengthPrefixSize], uint32(len(body)))
	copy(buf[LengthPrefixSize:], body)
	return buf, nil
}

// FrameDecoder decodes length-prefixed msgpack frames from a stream.
type FrameDecoder struct {
	reader io.Reader
}

// NewFrameDecoder creates a new frame decoder.
func NewFrameDecoder(r io.Reader) *FrameDecoder {
	return &FrameDecoder{reader: r}
}

// ReadFrame reads a single frame from the stream.
// Returns the raw payload bytes (msgpack-encoded, prefix stripped).
//
// Errors:
//   - io.EOF: stream ended cleanly (no more frames)
//   - *FrameError with Kind=FrameErrorPartial: incomplete frame (fatal)
//   - *FrameError with Kind=FrameErrorTooLarge: frame exceeds limit (fatal)
func (d *FrameDecoder) ReadFrame() ([]byte, error) {
	// Read 4-byte big-endian length prefix
	var lengthBuf [LengthPrefixSize]byte
	_, err := io.ReadFull(d.reader, lengthBuf[:])
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		// Partial read of length prefix
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read length prefix",
			Err:  err,
		}
	}

	payloadSize := binary.BigEndian.Uint32(lengthBuf[:])

	if payloadSize > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", payloadSize, MaxPayloadSize),
		}
	}

	payload := make([]byte, payloadSize)
	_, err = io.ReadFull(d.reader, payload)
	if err != nil {
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read payload",
			Err:  err,
		}
	}

	return payload, nil
}

// frameTypeProbe is used to peek at the type field without full decode.
type frameTypeProbe struct {
	Type string `msgpack:"type"`
}

// DecodeFrame decodes a payload and returns either a *types.FileOpenFrame
// or a *types.FileChunkFrame, discriminated by the type field.
func DecodeFrame(payload []byte) (any, error) {
	// Peek at type field
	var probe frameTypeProbe
	if err := msgpack.Unmarshal(payload, &probe); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode frame type",
			Err:  err,
		}
	}

	switch probe.Type {
	case types.FileOpenType:
		return DecodeOpen(payload)
	case types.FileChunkType:
		return DecodeChunk(payload)
	default:
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  fmt.Sprintf("unknown frame type %q", probe.Type),
		}
	}
}

// DecodeOpen decodes a payload as a FileOpenFrame.
func DecodeOpen(payload []byte) (*types.FileOpenFrame, error) {
	var frame types.FileOpenFrame
	if err := msgpack.Unmarshal(payload, &frame); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode open frame",
			Err:  err,
		}
	}
	return &frame, nil
}

// DecodeChunk decodes a payload as a FileChunkFrame.
func DecodeChunk(payload []byte) (*types.FileChunkFrame, error) {
	var frame types.FileChunkFrame
	if err := msgpack.Unmarshal(payload, &frame); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode chunk frame",
			Err:  err,
		}
	}
	return &frame, nil
}
