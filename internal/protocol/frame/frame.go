package frame

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/danmuck/ipkchat/internal/protocol/message"
)

const defaultChunkSize = 1024

var delimiter = []byte(message.Delimiter)

var (
	ErrTruncated          = errors.New("frame: stream closed mid-frame")
	ErrRead               = errors.New("frame: read failed")
	ErrEmbeddedDelimiter  = errors.New("frame: embedded delimiter")
	ErrNegativeReadLength = errors.New("frame: reader returned negative count")
)

// Limits constrains reader memory use. Frames longer than MaxFrameBytes are
// cut to that length and the rest of the frame is discarded.
type Limits struct {
	MaxFrameBytes int
	ChunkSize     int
}

func DefaultLimits() Limits {
	return Limits{
		MaxFrameBytes: 64 * 1024,
		ChunkSize:     defaultChunkSize,
	}
}

// Reader slices CRLF-terminated frames off a byte stream. It buffers partial
// data across reads and yields frames strictly in arrival order. A Reader is
// owned by a single goroutine.
type Reader struct {
	src     io.Reader
	limits  Limits
	buf     []byte
	chunk   []byte
	scanned int
	err     error

	// kept holds the prefix of an oversized frame while its tail is skipped.
	kept       []byte
	discarding bool
	truncated  bool
}

func NewReader(r io.Reader, limits Limits) *Reader {
	if limits.MaxFrameBytes <= 0 {
		limits.MaxFrameBytes = DefaultLimits().MaxFrameBytes
	}
	if limits.ChunkSize <= 0 {
		limits.ChunkSize = defaultChunkSize
	}
	return &Reader{
		src:    r,
		limits: limits,
		chunk:  make([]byte, limits.ChunkSize),
	}
}

// Next returns the next complete frame without its delimiter. It returns
// io.EOF once the stream is closed on a frame boundary, ErrTruncated if it
// closes mid-frame, and an ErrRead-wrapped error for transport failures.
// An oversized frame comes back cut to MaxFrameBytes; see Truncated.
func (r *Reader) Next() (string, error) {
	r.truncated = false
	for {
		if line, ok := r.cut(); ok {
			if r.discarding {
				line = string(r.kept)
				r.kept, r.discarding, r.truncated = nil, false, true
			} else if len(line) > r.limits.MaxFrameBytes {
				line, r.truncated = line[:r.limits.MaxFrameBytes], true
			}
			return line, nil
		}
		if !r.discarding && len(r.buf) > r.limits.MaxFrameBytes {
			r.kept = append([]byte(nil), r.buf[:r.limits.MaxFrameBytes]...)
			r.discarding = true
		}
		if r.discarding {
			r.skip()
		}
		if r.err != nil {
			return "", r.terminal()
		}

		n, err := r.src.Read(r.chunk)
		if n < 0 {
			return "", ErrNegativeReadLength
		}
		// Zero-length reads without an error are a no-op, not EOF.
		if n > 0 {
			r.buf = append(r.buf, r.chunk[:n]...)
		}
		if err != nil {
			r.err = err
		}
	}
}

// Truncated reports whether the frame last returned by Next was cut to
// MaxFrameBytes.
func (r *Reader) Truncated() bool {
	return r.truncated
}

// skip drops the buffered tail of an oversized frame, keeping only what could
// be the start of a delimiter split across reads.
func (r *Reader) skip() {
	keep := len(delimiter) - 1
	if len(r.buf) <= keep {
		return
	}
	r.buf = append(r.buf[:0], r.buf[len(r.buf)-keep:]...)
	r.scanned = 0
}

// Frames exposes the stream as a lazy sequence. It ends silently on a clean
// close and yields one final error otherwise.
func (r *Reader) Frames() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for {
			line, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
			if !yield(line, nil) {
				return
			}
		}
	}
}

// Buffered reports bytes held that do not yet form a complete frame.
func (r *Reader) Buffered() int {
	return len(r.buf)
}

func (r *Reader) cut() (string, bool) {
	// A delimiter may straddle the previous scan boundary.
	from := max(r.scanned-(len(delimiter)-1), 0)
	i := bytes.Index(r.buf[from:], delimiter)
	if i < 0 {
		r.scanned = len(r.buf)
		return "", false
	}
	end := from + i
	line := string(r.buf[:end])
	r.buf = r.buf[end+len(delimiter):]
	r.scanned = 0
	return line, true
}

func (r *Reader) terminal() error {
	if errors.Is(r.err, io.EOF) {
		if len(r.buf) > 0 || r.discarding {
			return fmt.Errorf("%w: %d bytes pending", ErrTruncated, len(r.buf))
		}
		return io.EOF
	}
	return fmt.Errorf("%w: %w", ErrRead, r.err)
}

// Write sends one frame, appending the delimiter when line lacks it.
func Write(w io.Writer, line string) error {
	body := strings.TrimSuffix(line, message.Delimiter)
	if strings.Contains(body, message.Delimiter) {
		return ErrEmbeddedDelimiter
	}
	_, err := io.WriteString(w, body+message.Delimiter)
	return err
}
