package games

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownEvent      = errors.New("unknown event")
	ErrMalformedPayload  = errors.New("malformed payload")
	ErrIllegalTransition = errors.New("illegal stage transition")
	ErrNameTaken         = errors.New("that name is already taken")
	ErrNoImages          = errors.New("no images were generated for that player")
	ErrIndexOutOfRange   = errors.New("image index out of range")
	ErrRoundInProgress   = errors.New("images are already being generated")
)

// RequestError is a rejected client event. It is sent back to the client
// that sent it and never broadcast.
type RequestError struct {
	Event string
	Err   error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %v", e.Event, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

func reject(event string, err error) *RequestError {
	return &RequestError{Event: event, Err: err}
}
