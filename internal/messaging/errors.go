package messaging

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrAuthRequired means there is no signed-in session. It is not
	// recoverable in place; the caller should send the user to sign in.
	ErrAuthRequired = errors.New("authentication required")

	// ErrEmptyMessage is returned by Send and Edit when the body is blank
	// after trimming. No request is made.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrNotAuthor is returned when editing or deleting someone else's message.
	ErrNotAuthor = errors.New("not the author of this message")

	// ErrNoConversation is returned by actions that need an open conversation.
	ErrNoConversation = errors.New("no conversation open")

	// ErrNotReady is returned before Init has resolved the user.
	ErrNotReady = errors.New("not initialized")

	// ErrSendInFlight is returned while a previous send has not completed.
	ErrSendInFlight = errors.New("a message is already being sent")

	// ErrUnknownMessage is returned for ids not in the open conversation.
	ErrUnknownMessage = errors.New("message not in this conversation")
)

// RemoteError wraps a failed backend call.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// remote wraps err as a RemoteError unless it is nil, already classified, or
// an auth failure.
func remote(op string, err error) error {
	if err == nil {
		return nil
	}
	var re *RemoteError
	if errors.Is(err, ErrAuthRequired) || errors.As(err, &re) {
		return err
	}
	return &RemoteError{Op: op, Err: err}
}

// IsRemote reports whether err came from a backend call.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

func canceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
