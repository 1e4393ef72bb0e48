package model

import (
	"errors"
	"fmt"
)

// Error kinds.
var (
	ErrEncodingFailed    = errors.New("encoding failed")
	ErrDecodingFailed    = errors.New("decoding failed")
	ErrMessageSendFailed = errors.New("message send failed")
	ErrReceiveFailed     = errors.New("receive failed")
	ErrMaxRetriesReached = errors.New("max retries reached")
	ErrConnectFailed     = errors.New("connect failed")
)

// Error pairs an error kind with its underlying cause.
// errors.Is matches both the kind and anything in the cause chain.
type Error struct {
	Kind  error
	Cause error
}

// NewError wraps cause under kind.
func NewError(kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Cause)
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// KindOf returns the taxonomy kind of err, or nil if err is not part of it.
func KindOf(err error) error {
	for _, kind := range []error{
		ErrEncodingFailed,
		ErrDecodingFailed,
		ErrMessageSendFailed,
		ErrReceiveFailed,
		ErrMaxRetriesReached,
		ErrConnectFailed,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
