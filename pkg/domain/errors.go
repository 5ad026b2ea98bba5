package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidMessage marks an inbound message that cannot be classified,
// i.e. one missing its origin chat identifier.
var ErrInvalidMessage = errors.New("invalid message: missing chat identifier")

// ErrNoPendingImage is returned when a describe confirmation arrives for
// a chat with no image waiting.
var ErrNoPendingImage = errors.New("no pending image for chat")

// GatewayError wraps any failure from the AI endpoints.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string { return fmt.Sprintf("gateway %s: %v", e.Op, e.Err) }
func (e *GatewayError) Unwrap() error { return e.Err }

// TranscodeError wraps a media conversion failure.
type TranscodeError struct {
	Err error
}

func (e *TranscodeError) Error() string { return fmt.Sprintf("transcoding audio: %v", e.Err) }
func (e *TranscodeError) Unwrap() error { return e.Err }

// StoreError wraps a conversation store failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store %s: %v", e.Op, e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }

// TransportError wraps a messaging client failure.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport %s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }
