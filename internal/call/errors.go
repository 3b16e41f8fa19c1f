package call

import (
	"errors"
	"fmt"
)

var (
	ErrClosed           = errors.New("peer closed")
	ErrNoConnection     = errors.New("no peer connection")
	ErrUnknownEnvelope  = errors.New("unknown signal envelope")
	ErrMediaUnavailable = errors.New("local media unavailable")
	ErrMediaBusy        = errors.New("local media already acquired")
	ErrModelUnavailable = errors.New("emotion model unavailable")
	ErrEmptyRoom        = errors.New("room id is empty")
	ErrNotJoined        = errors.New("not in a room")
	ErrSignalingClosed  = errors.New("signaling connection closed")
)

// NegotiationError is a failed step of the offer/answer exchange.
type NegotiationError struct {
	Op  string
	Err error
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NegotiationError) Unwrap() error {
	return e.Err
}

func negotiationError(op string, err error) *NegotiationError {
	return &NegotiationError{Op: op, Err: err}
}
