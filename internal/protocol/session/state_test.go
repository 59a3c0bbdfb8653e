package session

import (
	"errors"
	"testing"

	"github.com/danmuck/ipkchat/internal/protocol/message"
	"github.com/danmuck/ipkchat/internal/testutil/testlog"
)

var allKinds = []message.Kind{
	message.Unknown, message.Auth, message.Join, message.Msg, message.Rename, message.Help,
	message.Err, message.Reply, message.NotReply, message.Bye, message.Confirm, message.Ping,
}

var allPhases = []Phase{Start, Authenticating, Open, Joining, Ended}

// admissible lists every (phase, kind) that is allowed, with its target.
// Everything absent must be rejected and leave the phase unchanged.
var admissible = map[Phase]map[message.Kind]Phase{
	Start: {
		message.Auth: Authenticating, message.Bye: Ended, message.Err: Ended,
		message.Help: Start, message.Rename: Start,
	},
	Authenticating: {
		message.Reply: Open, message.NotReply: Ended, message.Bye: Ended, message.Err: Ended,
		message.Help: Authenticating, message.Rename: Authenticating,
	},
	Open: {
		message.Join: Joining, message.Msg: Open, message.Reply: Ended, message.NotReply: Ended,
		message.Bye: Ended, message.Err: Ended, message.Help: Open, message.Rename: Open,
	},
	Joining: {
		message.Reply: Open, message.NotReply: Open, message.Msg: Joining,
		message.Bye: Ended, message.Err: Ended, message.Help: Joining, message.Rename: Joining,
	},
	Ended: {message.Help: Ended, message.Rename: Ended},
}

func TestPhaseTableComplete(t *testing.T) {
	testlog.Start(t)
	for _, phase := range allPhases {
		for _, kind := range allKinds {
			want, ok := admissible[phase][kind]
			if got := Allowed(phase, kind); got != ok {
				t.Fatalf("Allowed(%s,%s)=%v want %v", phase, kind, got, ok)
			}
			if !ok {
				want = phase
			}
			if got := Next(phase, kind); got != want {
				t.Fatalf("Next(%s,%s)=%s want %s", phase, kind, got, want)
			}
		}
	}
}

func TestViolationOnlyForUnsolicitedReply(t *testing.T) {
	testlog.Start(t)
	for _, phase := range allPhases {
		for _, kind := range allKinds {
			want := phase == Open && (kind == message.Reply || kind == message.NotReply)
			if got := Violation(phase, kind); got != want {
				t.Fatalf("Violation(%s,%s)=%v want %v", phase, kind, got, want)
			}
		}
	}
}

func TestMachineAuthJoinFlow(t *testing.T) {
	testlog.Start(t)
	m := NewMachine()
	steps := []struct {
		kind message.Kind
		want Phase
	}{
		{message.Help, Start},
		{message.Auth, Authenticating},
		{message.Reply, Open},
		{message.Msg, Open},
		{message.Join, Joining},
		{message.Msg, Joining},
		{message.NotReply, Open},
		{message.Bye, Ended},
	}
	for i, step := range steps {
		got, err := m.Apply(step.kind)
		if err != nil {
			t.Fatalf("step %d apply %s: %v", i, step.kind, err)
		}
		if got != step.want || m.Phase() != step.want {
			t.Fatalf("step %d: phase=%s want %s", i, got, step.want)
		}
	}
}

func TestMachineRejectsWithoutMutating(t *testing.T) {
	testlog.Start(t)
	m := NewMachine()
	for _, kind := range []message.Kind{message.Msg, message.Join, message.Reply, message.Unknown, message.Ping} {
		phase, err := m.Apply(kind)
		if !errors.Is(err, ErrNotAllowed) {
			t.Fatalf("apply %s in START: expected ErrNotAllowed, got %v", kind, err)
		}
		if phase != Start || m.Phase() != Start {
			t.Fatalf("phase mutated to %s", m.Phase())
		}
	}
}

func TestMachineEndedAdmitsOnlyLocalKinds(t *testing.T) {
	testlog.Start(t)
	m := NewMachine()
	if _, err := m.Apply(message.Err); err != nil {
		t.Fatalf("apply err: %v", err)
	}
	for _, kind := range allKinds {
		if got := m.Allowed(kind); got != kind.Local() {
			t.Fatalf("Allowed(%s) after END = %v", kind, got)
		}
	}
	if phase, err := m.Apply(message.Help); err != nil || phase != Ended {
		t.Fatalf("help after END: phase=%s err=%v", phase, err)
	}
}
