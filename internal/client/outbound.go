package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	logs "github.com/danmuck/ipkchat/internal/logging"
	"github.com/danmuck/ipkchat/internal/observability"
	"github.com/danmuck/ipkchat/internal/protocol/codec"
	"github.com/danmuck/ipkchat/internal/protocol/grammar"
	"github.com/danmuck/ipkchat/internal/protocol/message"
	"github.com/danmuck/ipkchat/internal/protocol/session"
)

const timeoutNotice = "Server response timeout"

func (s *Session) send(ctx context.Context, input LineSource) error {
	for {
		line, err := input.Next(ctx)
		if errors.Is(err, io.EOF) {
			logs.Debugf("client.Session.send input exhausted")
			return errInputDone
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("client: read input: %w", err)
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := s.step(ctx, line); err != nil {
			return err
		}
	}
}

// step handles one user line. Rejected input is reported and the session
// continues; only transport failures and reply timeouts end it.
func (s *Session) step(ctx context.Context, line string) error {
	s.outMu.Lock()
	defer s.outMu.Unlock()

	p := s.prepare(line)
	for _, problem := range p.problems {
		s.sink.Error(problem)
	}
	if p.help {
		s.help()
	}
	if p.wire == "" {
		return nil
	}
	if err := s.write(p.wire); err != nil {
		s.pending.Reset()
		return err
	}
	observability.RecordMessage(observability.Outbound, p.kind.String())
	if p.replies == nil {
		return nil
	}
	return s.awaitReply(ctx, p.kind, p.replies)
}

// plan is the result of admitting one line: what to send, what to report.
type plan struct {
	kind     message.Kind
	wire     string
	replies  <-chan session.Outcome
	problems []string
	help     bool
}

// prepare classifies, admits, encodes and applies one line while holding
// stateMu, so the phase cannot move between the check and the transition.
// The reply slot is armed before the write so a fast reply is never lost.
func (s *Session) prepare(line string) plan {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	kind := codec.Classify(codec.ClientSide, line)
	if kind != message.Unknown && !s.machine.Allowed(kind) {
		return plan{
			problems: []string{fmt.Sprintf("This message type '%s' is not allowed in the current state '%s'", kind, s.machine.Phase())},
			help:     true,
		}
	}

	msg, err := codec.ParseCommand(line)
	if err != nil {
		return plan{problems: []string{err.Error()}, help: errors.Is(err, codec.ErrUnknownCommand)}
	}

	var p plan
	switch msg.Kind {
	case message.Help:
		return plan{help: true}
	case message.Rename:
		logs.Debugf("client.Session.rename from=%q to=%q", s.name, msg.DisplayName)
		s.name = msg.DisplayName
		return p
	case message.Join:
		msg.DisplayName = s.name
	case message.Msg:
		msg.DisplayName = s.name
		var cut bool
		if msg.Content, cut = grammar.TruncateContent(msg.Content); cut {
			p.problems = append(p.problems, fmt.Sprintf("Message truncated to %d characters", message.MaxContentLen))
		}
	}

	wire, err := codec.Encode(msg)
	if err != nil {
		p.problems = append(p.problems, fmt.Sprintf("Invalid input %q: %v", line, err))
		return p
	}
	phase, err := s.machine.Apply(msg.Kind)
	if err != nil {
		p.problems = append(p.problems, err.Error())
		return p
	}
	if msg.Kind == message.Auth {
		s.name = msg.DisplayName
	}
	if msg.Kind.AwaitsReply() {
		p.replies, err = s.pending.Arm(msg.Kind, time.Now())
		if err != nil {
			logs.Errf("client.Session.prepare arm kind=%s err=%v", msg.Kind, err)
			return p
		}
	}
	logs.Debugf("client.Session.send kind=%s phase=%s", msg.Kind, phase)
	p.kind = msg.Kind
	p.wire = wire
	return p
}

func (s *Session) awaitReply(ctx context.Context, kind message.Kind, replies <-chan session.Outcome) error {
	start := time.Now()
	timer := time.NewTimer(s.cfg.ReplyTimeout)
	defer timer.Stop()

	select {
	case out := <-replies:
		logs.Debugf("client.Session.reply kind=%s", out.Kind)
		observability.RecordReplyWait(kind.String(), replyOutcome(out), time.Since(start))
		return nil
	case <-ctx.Done():
		s.pending.Reset()
		observability.RecordReplyWait(kind.String(), "canceled", time.Since(start))
		return ctx.Err()
	case <-timer.C:
	}

	// Inbound applies replies under stateMu, so the phase decides whether a
	// reply beat the timer. Once the notice is claimed, later replies are
	// dropped by handle.
	s.stateMu.Lock()
	if phase := s.machine.Phase(); phase != session.Authenticating && phase != session.Joining {
		s.stateMu.Unlock()
		select {
		case out := <-replies:
			observability.RecordReplyWait(kind.String(), replyOutcome(out), time.Since(start))
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.pending.Reset()
	err := fmt.Errorf("%w: no reply within %s", ErrReplyTimeout, s.cfg.ReplyTimeout)
	s.record(err)
	wire := s.claimNotice(message.Err, timeoutNotice)
	s.stateMu.Unlock()

	observability.RecordReplyWait(kind.String(), "timeout", time.Since(start))
	logs.Warnf("client.Session.reply timeout kind=%s waited=%s", kind, time.Since(start))
	s.sink.Error(timeoutNotice)
	s.writeNotice(message.Err, wire)
	return err
}

func replyOutcome(out session.Outcome) string {
	if out.OK() {
		return "ok"
	}
	return "nok"
}
