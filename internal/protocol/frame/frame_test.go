package frame

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/danmuck/ipkchat/internal/testutil/testlog"
	"github.com/google/go-cmp/cmp"
)

// scriptedReader returns one scripted chunk per Read, then err.
type scriptedReader struct {
	chunks []string
	err    error
}

func (s *scriptedReader) Read(p []byte) (int, error) {
	if len(s.chunks) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		return 0, io.EOF
	}
	chunk := s.chunks[0]
	n := copy(p, chunk)
	if n < len(chunk) {
		s.chunks[0] = chunk[n:]
	} else {
		s.chunks = s.chunks[1:]
	}
	return n, nil
}

func collect(t *testing.T, r *Reader) ([]string, error) {
	t.Helper()
	var out []string
	for line, err := range r.Frames() {
		if err != nil {
			return out, err
		}
		out = append(out, line)
	}
	return out, nil
}

func TestReaderSplitFrameAcrossReads(t *testing.T) {
	testlog.Start(t)
	src := &scriptedReader{chunks: []string{"MSG FROM a IS hi\r\nMSG FROM b IS ", "yo\r\n"}}
	got, err := collect(t, NewReader(src, DefaultLimits()))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	want := []string{"MSG FROM a IS hi", "MSG FROM b IS yo"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("frames mismatch (-want +got):\n%s", diff)
	}
}

func TestReaderDelimiterSplitAcrossReads(t *testing.T) {
	testlog.Start(t)
	src := &scriptedReader{chunks: []string{"BYE FROM a\r", "\nREPLY OK IS fine\r", "", "\n"}}
	got, err := collect(t, NewReader(src, DefaultLimits()))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	want := []string{"BYE FROM a", "REPLY OK IS fine"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("frames mismatch (-want +got):\n%s", diff)
	}
}

func TestReaderManyFramesOneRead(t *testing.T) {
	testlog.Start(t)
	src := &scriptedReader{chunks: []string{"MSG FROM a IS 1\r\nMSG FROM a IS 2\r\nMSG FROM a IS 3\r\n"}}
	got, err := collect(t, NewReader(src, DefaultLimits()))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	want := []string{"MSG FROM a IS 1", "MSG FROM a IS 2", "MSG FROM a IS 3"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("frames mismatch (-want +got):\n%s", diff)
	}
}

func TestReaderSmallChunks(t *testing.T) {
	testlog.Start(t)
	stream := "MSG FROM a IS hello\r\nBYE FROM a\r\n"
	r := NewReader(strings.NewReader(stream), Limits{MaxFrameBytes: 128, ChunkSize: 3})
	got, err := collect(t, r)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	want := []string{"MSG FROM a IS hello", "BYE FROM a"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("frames mismatch (-want +got):\n%s", diff)
	}
}

func TestReaderTruncatedAtEOF(t *testing.T) {
	testlog.Start(t)
	src := &scriptedReader{chunks: []string{"MSG FROM a IS hi\r\nMSG FROM b"}}
	got, err := collect(t, NewReader(src, DefaultLimits()))
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	if len(got) != 1 || got[0] != "MSG FROM a IS hi" {
		t.Fatalf("unexpected frames before truncation: %q", got)
	}
}

func TestReaderSurfacesReadError(t *testing.T) {
	testlog.Start(t)
	boom := errors.New("connection reset")
	src := &scriptedReader{chunks: []string{"MSG FROM a IS hi\r\n"}, err: boom}
	r := NewReader(src, DefaultLimits())
	if line, err := r.Next(); err != nil || line != "MSG FROM a IS hi" {
		t.Fatalf("first frame: %q %v", line, err)
	}
	_, err := r.Next()
	if !errors.Is(err, ErrRead) || !errors.Is(err, boom) {
		t.Fatalf("expected wrapped read error, got %v", err)
	}
}

func TestReaderCutsOversizedFrame(t *testing.T) {
	testlog.Start(t)
	stream := strings.Repeat("x", 63) + "\r\nnext\r\n"
	r := NewReader(strings.NewReader(stream), Limits{MaxFrameBytes: 16, ChunkSize: 8})

	line, err := r.Next()
	if err != nil {
		t.Fatalf("oversized frame: %v", err)
	}
	if line != strings.Repeat("x", 16) || !r.Truncated() {
		t.Fatalf("expected 16-byte cut frame, got %q truncated=%v", line, r.Truncated())
	}
	line, err = r.Next()
	if err != nil || line != "next" || r.Truncated() {
		t.Fatalf("frame after oversized one: %q %v truncated=%v", line, err, r.Truncated())
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestReaderCutsOversizedFrameInOneRead(t *testing.T) {
	testlog.Start(t)
	stream := strings.Repeat("y", 40) + "\r\nok\r\n"
	got, err := collect(t, NewReader(strings.NewReader(stream), Limits{MaxFrameBytes: 16, ChunkSize: 256}))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	want := []string{strings.Repeat("y", 16), "ok"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("frames mismatch (-want +got):\n%s", diff)
	}
}

func TestReaderOversizedDelimiterSplitAcrossReads(t *testing.T) {
	testlog.Start(t)
	src := &scriptedReader{chunks: []string{strings.Repeat("z", 20) + "\r", "\nBYE FROM a\r\n"}}
	got, err := collect(t, NewReader(src, Limits{MaxFrameBytes: 8, ChunkSize: 64}))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	want := []string{strings.Repeat("z", 8), "BYE FROM a"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("frames mismatch (-want +got):\n%s", diff)
	}
}

func TestReaderOversizedFrameAtEOF(t *testing.T) {
	testlog.Start(t)
	r := NewReader(strings.NewReader(strings.Repeat("x", 64)), Limits{MaxFrameBytes: 16, ChunkSize: 8})
	if _, err := r.Next(); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestWriteAppendsDelimiter(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	if err := Write(&buf, "BYE FROM a"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := Write(&buf, "MSG FROM a IS hi\r\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := buf.String(); got != "BYE FROM a\r\nMSG FROM a IS hi\r\n" {
		t.Fatalf("unexpected stream: %q", got)
	}
	if err := Write(&buf, "MSG FROM a IS x\r\nBYE FROM a"); !errors.Is(err, ErrEmbeddedDelimiter) {
		t.Fatalf("expected ErrEmbeddedDelimiter, got %v", err)
	}
}
