package session

import (
	"errors"
	"sync"
	"time"

	"github.com/danmuck/ipkchat/internal/protocol/message"
)

var ErrPendingActive = errors.New("session: reply already pending")

// Outcome is what resolved a pending request.
type Outcome struct {
	Kind    message.Kind
	Content string
}

// OK reports whether the server accepted the request.
func (o Outcome) OK() bool {
	return o.Kind == message.Reply
}

// Pending is the one outstanding AUTH or JOIN awaiting its REPLY. At most
// one request is armed at a time.
type Pending struct {
	mu      sync.Mutex
	kind    message.Kind
	armedAt time.Time
	ch      chan Outcome
}

// Arm opens the slot for a request of kind. The returned channel receives
// exactly one Outcome if the slot is resolved before it is reset.
func (p *Pending) Arm(kind message.Kind, at time.Time) (<-chan Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		return nil, ErrPendingActive
	}
	p.kind = kind
	p.armedAt = at
	p.ch = make(chan Outcome, 1)
	return p.ch, nil
}

// Resolve delivers out to the armed request and clears the slot. It reports
// false when nothing was armed.
func (p *Pending) Resolve(out Outcome) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return false
	}
	p.ch <- out
	p.ch = nil
	p.kind = message.Unknown
	return true
}

// Reset clears the slot without delivering anything.
func (p *Pending) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ch = nil
	p.kind = message.Unknown
}

// Active returns the armed kind and when it was armed.
func (p *Pending) Active() (message.Kind, time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return message.Unknown, time.Time{}, false
	}
	return p.kind, p.armedAt, true
}
