//nolint:revive // types is a common Go package naming convention
package types

// Frame type discriminants. Every frame carries a "type" field so the
// receiver can dispatch without knowing the sender's state.
const (
	// FileOpenType is the type discriminant for file open frames.
	FileOpenType = "file_open"
	// FileChunkType is the type discriminant for file chunk frames.
	FileChunkType = "file_chunk"
)

// FileOpenFrame announces a new logical file to the receiver.
// Sent exactly once per file, before any chunk for that file.
// Discriminated from chunk frames by Type == "file_open".
type FileOpenFrame struct {
	// Type is always "file_open" for open frames.
	Type string `msgpack:"type"`
	// FileID identifies the logical file for all subsequent chunks.
	FileID string `msgpack:"file_id"`
	// ChunkSize is the sender's nominal chunk size in bytes. The receiver
	// uses it to detect the final short chunk; zero means unspecified.
	ChunkSize int64 `msgpack:"chunk_size"`
}

// FileChunkFrame carries one bounded unit of file payload.
// Seq starts at 0 and is strictly increasing with no gaps per FileID.
// The close framing is a chunk with IsFinal == true and empty Data;
// exactly one such frame is sent per file.
type FileChunkFrame struct {
	// Type is always "file_chunk" for chunk frames.
	Type string `msgpack:"type"`
	// FileID identifies the file this chunk belongs to.
	FileID string `msgpack:"file_id"`
	// Seq is the sequence number, starts at 0.
	Seq uint64 `msgpack:"seq"`
	// IsFinal is true for the close framing (empty Data).
	IsFinal bool `msgpack:"is_final"`
	// Data is the raw chunk payload. May be empty.
	Data []byte `msgpack:"data"`
}

// FileAccumulator tracks received chunks for a single file on the
// receiver side. It detects gaps, duplicates, and completion.
type FileAccumulator struct {
	// FileID is the file identifier.
	FileID string
	// NextSeq is the expected next sequence number.
	NextSeq uint64
	// TotalBytes is the sum of all accepted chunk data lengths.
	TotalBytes int64
	// Complete is true once the final framing has been seen.
	Complete bool
	// ErrorState is true if the file saw an out-of-order or duplicate
	// chunk, or a chunk after completion.
	ErrorState bool
}

// NewFileAccumulator creates an accumulator for the given file.
func NewFileAccumulator(fileID string) *FileAccumulator {
	return &FileAccumulator{FileID: fileID}
}

// Accept validates a chunk against the ordering contract and absorbs it.
// Returns false (and sets ErrorState) on a gap, a duplicate, a FileID
// mismatch, or any chunk arriving after the final framing.
func (a *FileAccumulator) Accept(chunk *FileChunkFrame) bool {
	if a.ErrorState || a.Complete || chunk.FileID != a.FileID || chunk.Seq != a.NextSeq {
		a.ErrorState = true
		return false
	}
	a.NextSeq++
	a.TotalBytes += int64(len(chunk.Data))
	if chunk.IsFinal {
		a.Complete = true
	}
	return true
}
