package domain

import (
	"errors"
	"fmt"
)

// ErrEmptyThread is returned when an operation needs at least one turn.
var ErrEmptyThread = errors.New("empty thread")

// ErrNotAModeSwitch is returned when a payload is requested from a turn that does not carry one.
var ErrNotAModeSwitch = errors.New("turn is not a mode switch")

// ErrGenerationFailed matches every *GenerationFailedError via errors.Is.
var ErrGenerationFailed = errors.New("generation failed")

// ErrThreadNotFound is returned when a thread ID cannot be found in the store.
var ErrThreadNotFound = errors.New("thread not found")

// ErrThreadBusy is returned when a submit is rejected because another one holds the thread.
var ErrThreadBusy = errors.New("thread busy")

// ErrInvalidTurn is returned when a turn populates fields its role does not allow.
var ErrInvalidTurn = errors.New("invalid turn")

// ErrEmptyInput is returned when the human submits nothing.
var ErrEmptyInput = errors.New("empty input")

// ErrInvariantViolation marks an orchestrator bug (router or signal detector misuse).
var ErrInvariantViolation = errors.New("invariant violation")

// GenerationFailedError wraps a failure of the external generator.
type GenerationFailedError struct {
	Mode  Mode
	Cause error
}

// NewGenerationFailed wraps cause for the given mode.
func NewGenerationFailed(mode Mode, cause error) *GenerationFailedError {
	return &GenerationFailedError{Mode: mode, Cause: cause}
}

func (e *GenerationFailedError) Error() string {
	return fmt.Sprintf("generation failed in %s mode: %v", e.Mode, e.Cause)
}

func (e *GenerationFailedError) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, ErrGenerationFailed) match.
func (e *GenerationFailedError) Is(target error) bool {
	return target == ErrGenerationFailed
}
