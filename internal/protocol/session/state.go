package session

import (
	"errors"
	"fmt"

	"github.com/danmuck/ipkchat/internal/protocol/message"
)

var ErrNotAllowed = errors.New("session: message not allowed in current phase")

// Phase is the protocol phase of one session.
type Phase uint8

const (
	Start Phase = iota
	Authenticating
	Open
	Joining
	Ended
)

var phaseNames = [...]string{
	Start:          "START",
	Authenticating: "AUTH",
	Open:           "OPEN",
	Joining:        "JOIN",
	Ended:          "END",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "INVALID"
}

type edge struct {
	phase Phase
	kind  message.Kind
}

// transitions holds every admissible wire edge. Help and Rename are handled
// separately because they are admissible everywhere.
var transitions = map[edge]Phase{
	{Start, message.Auth}: Authenticating,
	{Start, message.Bye}:  Ended,
	{Start, message.Err}:  Ended,

	{Authenticating, message.Reply}:    Open,
	{Authenticating, message.NotReply}: Ended,
	{Authenticating, message.Bye}:      Ended,
	{Authenticating, message.Err}:      Ended,

	{Open, message.Join}:     Joining,
	{Open, message.Msg}:      Open,
	{Open, message.Reply}:    Ended,
	{Open, message.NotReply}: Ended,
	{Open, message.Bye}:      Ended,
	{Open, message.Err}:      Ended,

	{Joining, message.Reply}:    Open,
	{Joining, message.NotReply}: Open,
	{Joining, message.Msg}:      Joining,
	{Joining, message.Bye}:      Ended,
	{Joining, message.Err}:      Ended,
}

// Allowed reports whether kind may be sent or received in phase. Local kinds
// never touch the wire and are admissible in every phase.
func Allowed(phase Phase, kind message.Kind) bool {
	if kind.Local() {
		return true
	}
	if phase == Ended {
		return false
	}
	_, ok := transitions[edge{phase, kind}]
	return ok
}

// Next returns the phase after kind. Inadmissible kinds leave the phase
// unchanged, so Next is total.
func Next(phase Phase, kind message.Kind) Phase {
	if next, ok := transitions[edge{phase, kind}]; ok {
		return next
	}
	return phase
}

// Violation reports admissible edges that still end the session because the
// peer broke the exchange: a reply nobody asked for.
func Violation(phase Phase, kind message.Kind) bool {
	return phase == Open && kind.IsReply()
}

// Machine tracks the phase of one session. It is not safe for concurrent
// use; the owner serializes access.
type Machine struct {
	phase Phase
}

func NewMachine() *Machine {
	return &Machine{phase: Start}
}

func (m *Machine) Phase() Phase {
	return m.phase
}

func (m *Machine) Allowed(kind message.Kind) bool {
	return Allowed(m.phase, kind)
}

// Apply moves the machine along kind and returns the new phase. An
// inadmissible kind leaves the phase untouched and returns ErrNotAllowed.
func (m *Machine) Apply(kind message.Kind) (Phase, error) {
	if !Allowed(m.phase, kind) {
		return m.phase, fmt.Errorf("%w: kind=%s phase=%s", ErrNotAllowed, kind, m.phase)
	}
	m.phase = Next(m.phase, kind)
	return m.phase, nil
}
