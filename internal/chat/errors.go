package chat

import "errors"

var (
	// ErrSessionUnavailable means a freshly created session could not be
	// read back. The store never drops a session between creation and
	// the first read, so seeing this is an internal fault.
	ErrSessionUnavailable = errors.New("failed to establish or retrieve session")

	// ErrNoMessages rejects a request whose message list is empty.
	ErrNoMessages = errors.New("messages must not be empty")
)

// CompletionError wraps any failure of the completion backend during a
// turn. The user turn stays in history; no assistant turn is recorded.
type CompletionError struct {
	Err error
}

func (e *CompletionError) Error() string {
	return "completion: " + e.Err.Error()
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}
