package client

import (
	"context"
	"fmt"

	logs "github.com/danmuck/ipkchat/internal/logging"
	"github.com/danmuck/ipkchat/internal/observability"
	"github.com/danmuck/ipkchat/internal/protocol/codec"
	"github.com/danmuck/ipkchat/internal/protocol/frame"
	"github.com/danmuck/ipkchat/internal/protocol/message"
	"github.com/danmuck/ipkchat/internal/protocol/session"
)

// ERR contents sent to the server on a violation.
const (
	reasonMalformed  = "Malformed message received"
	reasonUnexpected = "Unexpected message received"
)

func (s *Session) receive(ctx context.Context) error {
	r := frame.NewReader(s.conn, s.cfg.Frame)
	for line, err := range r.Frames() {
		if err != nil {
			return s.readFailed(err)
		}
		if s.closing.Load() {
			return errClosed
		}
		if r.Truncated() {
			logs.Warnf("client.Session.receive frame cut to %d bytes", s.cfg.Frame.MaxFrameBytes)
		}
		if err := s.handle(line); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	if s.closing.Load() {
		return errClosed
	}
	return fmt.Errorf("%w: connection closed by server", ErrTransport)
}

func (s *Session) readFailed(err error) error {
	if s.closing.Load() {
		return errClosed
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

// handle admits one frame. Anything malformed, unknown, or out of sequence
// ends the session after an ERR notice; nothing further is processed.
func (s *Session) handle(line string) error {
	msg, perr := codec.Parse(line)

	s.stateMu.Lock()
	if s.noticeSent {
		s.stateMu.Unlock()
		return errClosed
	}
	from := s.machine.Phase()
	var reason string
	switch {
	case perr != nil:
		reason = reasonMalformed
	case !msg.Kind.FromServer(), !s.machine.Allowed(msg.Kind), session.Violation(from, msg.Kind):
		reason = reasonUnexpected
	}
	if reason != "" {
		s.stateMu.Unlock()
		logs.Warnf("client.Session.receive rejected kind=%s phase=%s parse_err=%v", msg.Kind, from, perr)
		return s.violation(line, reason)
	}
	to, _ := s.machine.Apply(msg.Kind)
	s.stateMu.Unlock()

	logs.Debugf("client.Session.receive kind=%s phase=%s->%s", msg.Kind, from, to)
	observability.RecordMessage(observability.Inbound, msg.Kind.String())
	if msg.Truncated {
		s.sink.Error(fmt.Sprintf("Received message truncated to %d characters", message.MaxContentLen))
	}
	if text := codec.Display(msg); text != "" {
		s.sink.Message(text)
	}
	if msg.Kind.IsReply() {
		s.pending.Resolve(session.Outcome{Kind: msg.Kind, Content: msg.Content})
	}

	if to != session.Ended {
		return nil
	}
	if from == session.Authenticating && msg.Kind == message.NotReply {
		return fmt.Errorf("%w: %s", ErrAuthRejected, msg.Content)
	}
	return errPeerClosed
}

// violation reports the offending text, notifies the server, and returns
// the error that ends the session.
func (s *Session) violation(raw string, reason string) error {
	s.sink.Error(raw)
	observability.RecordViolation(reason)
	s.sendNotice(message.Err, reason)
	return fmt.Errorf("%w: %s: %q", ErrProtocol, reason, raw)
}
