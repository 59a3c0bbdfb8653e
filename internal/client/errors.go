package client

import (
	"context"
	"errors"
)

var (
	ErrProtocol     = errors.New("client: protocol violation")
	ErrReplyTimeout = errors.New("client: reply timeout")
	ErrTransport    = errors.New("client: transport failure")
	ErrAuthRejected = errors.New("client: authentication rejected")
)

// Clean endings. Run maps them to a nil error.
var (
	errInputDone   = errors.New("client: input exhausted")
	errPeerClosed  = errors.New("client: session ended by server")
	errInterrupted = errors.New("client: interrupted")
	errClosed      = errors.New("client: stream closed locally")
)

func clean(err error) bool {
	return err == nil ||
		errors.Is(err, errInputDone) ||
		errors.Is(err, errPeerClosed) ||
		errors.Is(err, errInterrupted) ||
		errors.Is(err, errClosed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// ExitCode maps the result of Run to a process exit status.
func ExitCode(err error) int {
	if clean(err) {
		return 0
	}
	return 1
}

// endReason labels how a session ended, for metrics.
func endReason(err error) string {
	switch {
	case errors.Is(err, errPeerClosed):
		return "server"
	case clean(err):
		return "local"
	case errors.Is(err, ErrAuthRejected):
		return "auth_rejected"
	case errors.Is(err, ErrProtocol):
		return "protocol"
	case errors.Is(err, ErrReplyTimeout):
		return "timeout"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return "error"
	}
}
