// Package console adapts process stdio to the client's line source and
// display sink.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	logs "github.com/danmuck/ipkchat/internal/logging"
)

// maxLineBytes leaves room for a full-size message plus a command prefix.
const maxLineBytes = 1 << 20

type lineResult struct {
	line string
	err  error
}

// Lines reads user input one line at a time. A single pump goroutine owns
// the underlying reader; Next never blocks past ctx.
type Lines struct {
	results chan lineResult
	stop    chan struct{}
	once    sync.Once
}

func NewLines(r io.Reader) *Lines {
	l := &Lines{
		results: make(chan lineResult),
		stop:    make(chan struct{}),
	}
	go l.pump(r)
	return l
}

func (l *Lines) pump(r io.Reader) {
	defer close(l.results)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineBytes)
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		select {
		case l.results <- lineResult{line: line}:
		case <-l.stop:
			return
		}
	}
	err := sc.Err()
	if err == nil {
		err = io.EOF
	} else {
		logs.Warnf("console.Lines read err=%v", err)
	}
	select {
	case l.results <- lineResult{err: err}:
	case <-l.stop:
	}
}

// Next returns the next input line, io.EOF once input is exhausted, or the
// context error.
func (l *Lines) Next(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res, ok := <-l.results:
		if !ok {
			return "", io.EOF
		}
		return res.line, res.err
	}
}

// Close releases the pump if it is waiting to deliver. A pump blocked in a
// read of the underlying reader stays there until that read returns.
func (l *Lines) Close() {
	l.once.Do(func() { close(l.stop) })
}

// Display writes chat lines and local errors to one writer. Writes are
// serialized so lines from both pipelines never interleave.
type Display struct {
	mu  sync.Mutex
	out io.Writer
}

func NewDisplay(out io.Writer) *Display {
	return &Display{out: out}
}

func (d *Display) Message(line string) {
	d.write(line)
}

func (d *Display) Error(line string) {
	d.write("ERROR: " + line)
}

func (d *Display) write(line string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := fmt.Fprintln(d.out, line); err != nil {
		logs.Warnf("console.Display write err=%v", err)
	}
}
