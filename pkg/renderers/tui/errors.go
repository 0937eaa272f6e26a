package tui

import "errors"

var (
	// ErrAborted signals the user aborted input (e.g., Ctrl+C).
	ErrAborted = errors.New("tui: aborted")
	// ErrIncomplete is returned with the collected values when fields still
	// have errors after the retry rounds.
	ErrIncomplete = errors.New("tui: form still has errors")

	errSkip = errors.New("tui: skip field")
)

// invalidInput is an answer that could not be parsed; the field is asked
// again.
type invalidInput struct {
	reason string
}

func (e invalidInput) Error() string {
	return "tui: invalid input: " + e.reason
}
