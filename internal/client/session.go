// Package client drives one chat session over an established stream.
//
// Two pipelines run under one errgroup: outbound turns user lines into wire
// messages and waits for replies to AUTH and JOIN, inbound turns frames into
// display lines and phase transitions. Both converge on a single teardown.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	logs "github.com/danmuck/ipkchat/internal/logging"
	"github.com/danmuck/ipkchat/internal/observability"
	"github.com/danmuck/ipkchat/internal/protocol/codec"
	"github.com/danmuck/ipkchat/internal/protocol/frame"
	"github.com/danmuck/ipkchat/internal/protocol/message"
	"github.com/danmuck/ipkchat/internal/protocol/session"
)

// LineSource yields user input one line at a time and io.EOF at the end.
type LineSource interface {
	Next(ctx context.Context) (string, error)
}

// Sink receives ready-to-print lines.
type Sink interface {
	Message(line string)
	Error(line string)
}

// Config tunes one session.
type Config struct {
	ReplyTimeout time.Duration
	WriteTimeout time.Duration
	Frame        frame.Limits
}

// ConfigFrom takes the session timing from a shared session config.
func ConfigFrom(cfg session.Config) Config {
	cfg = cfg.WithDefaults()
	return Config{
		ReplyTimeout: cfg.ReplyTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Frame:        frame.DefaultLimits(),
	}
}

func (c Config) withDefaults() Config {
	def := session.DefaultConfig()
	if c.ReplyTimeout <= 0 {
		c.ReplyTimeout = def.ReplyTimeout
	}
	if c.WriteTimeout < 0 {
		c.WriteTimeout = 0
	}
	if c.Frame == (frame.Limits{}) {
		c.Frame = frame.DefaultLimits()
	}
	return c
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Session is one client session. Run may be called once.
type Session struct {
	cfg  Config
	conn io.ReadWriteCloser
	sink Sink

	// outMu serializes whole outbound steps, reply wait included.
	outMu sync.Mutex
	// writeMu keeps frames from interleaving on the stream.
	writeMu sync.Mutex

	// stateMu guards the fields below. Never held across I/O.
	stateMu    sync.Mutex
	machine    *session.Machine
	name       string
	noticeSent bool

	pending session.Pending

	closing  atomic.Bool
	stopOnce sync.Once
	errMu    sync.Mutex
	firstErr error
	cancel   context.CancelFunc
}

func New(cfg Config, conn io.ReadWriteCloser, sink Sink) *Session {
	return &Session{
		cfg:     cfg.withDefaults(),
		conn:    conn,
		sink:    sink,
		machine: session.NewMachine(),
		name:    message.DefaultDisplayName,
		cancel:  func() {},
	}
}

// Phase returns the current protocol phase.
func (s *Session) Phase() session.Phase {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.machine.Phase()
}

// DisplayName returns the name used on outgoing messages.
func (s *Session) DisplayName() string {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.name
}

// Run drives the session until input ends, the server ends it, a failure
// occurs, or ctx is canceled. It returns nil for every clean ending; see
// ExitCode.
func (s *Session) Run(ctx context.Context, input LineSource) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.cancel = cancel

	logs.Debugf("client.Session.Run start reply_timeout=%s", s.cfg.ReplyTimeout)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := s.receive(gctx)
		s.stop(err)
		return err
	})
	g.Go(func() error {
		err := s.send(gctx, input)
		s.stop(err)
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		s.stop(errInterrupted)
		return nil
	})
	_ = g.Wait()

	err := s.result()
	logs.Debugf("client.Session.Run done phase=%s err=%v", s.Phase(), err)
	observability.RecordSessionEnd(endReason(err))
	if clean(err) {
		return nil
	}
	return err
}

func (s *Session) record(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.firstErr == nil {
		s.firstErr = err
	}
}

func (s *Session) result() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.firstErr
}

// stop records err and runs the teardown exactly once: a best-effort BYE
// unless a notice already went out or the transport is gone, then cancel
// and close.
func (s *Session) stop(err error) {
	if err == nil {
		err = errInterrupted
	}
	s.record(err)
	s.stopOnce.Do(func() {
		cause := s.result()
		logs.Debugf("client.Session.stop cause=%v", cause)
		s.closing.Store(true)
		if !errors.Is(cause, ErrTransport) {
			s.sendNotice(message.Bye, "")
		}
		s.cancel()
		if err := s.conn.Close(); err != nil {
			logs.Debugf("client.Session.stop close err=%v", err)
		}
		s.pending.Reset()
	})
}

// sendNotice sends the single termination notice of the session, ERR or
// BYE, and moves the phase to Ended. Later calls are no-ops.
func (s *Session) sendNotice(kind message.Kind, content string) {
	s.stateMu.Lock()
	wire := s.claimNotice(kind, content)
	s.stateMu.Unlock()
	s.writeNotice(kind, wire)
}

// claimNotice reserves the termination notice and ends the phase. The caller
// holds stateMu. It returns "" once a notice has been claimed.
func (s *Session) claimNotice(kind message.Kind, content string) string {
	if s.noticeSent {
		return ""
	}
	s.noticeSent = true
	if s.machine.Phase() != session.Ended {
		_, _ = s.machine.Apply(kind)
	}
	wire, err := codec.Encode(message.Message{Kind: kind, DisplayName: s.name, Content: content})
	if err != nil {
		logs.Errf("client.Session.sendNotice encode kind=%s err=%v", kind, err)
		return ""
	}
	return wire
}

func (s *Session) writeNotice(kind message.Kind, wire string) {
	if wire == "" {
		return
	}
	if err := s.write(wire); err != nil {
		logs.Debugf("client.Session.sendNotice kind=%s err=%v", kind, err)
		return
	}
	observability.RecordMessage(observability.Outbound, kind.String())
}

func (s *Session) write(wire string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if d, ok := s.conn.(writeDeadliner); ok && s.cfg.WriteTimeout > 0 {
		_ = d.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	}
	if err := frame.Write(s.conn, wire); err != nil {
		return fmt.Errorf("%w: write: %w", ErrTransport, err)
	}
	return nil
}

func (s *Session) help() {
	for _, line := range codec.HelpText() {
		s.sink.Message(line)
	}
}
