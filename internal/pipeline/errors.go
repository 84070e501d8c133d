package pipeline

import (
	"errors"
	"fmt"

	"scenegen/internal/services/manim"
)

var (
	// ErrRetryLimitExceeded is matched by *RetryLimitError.
	ErrRetryLimitExceeded = errors.New("retry limit exceeded")
	// ErrRunInProgress is returned when Run is called while another run is active.
	ErrRunInProgress = errors.New("a pipeline run is already in progress")
)

// RetryLimitError reports a run that exhausted its fix cycles.
type RetryLimitError struct {
	Attempts  int
	Fixes     int
	LastError string
}

func (e *RetryLimitError) Error() string {
	return fmt.Sprintf("render still failing after %d attempts (%d fixes): %s", e.Attempts, e.Fixes, e.LastError)
}

func (e *RetryLimitError) Is(target error) bool {
	return target == ErrRetryLimitExceeded
}

// Retryable reports whether a render error should trigger a fix cycle.
func Retryable(err error) bool {
	return errors.Is(err, manim.ErrRenderFailed) ||
		errors.Is(err, manim.ErrOutputDirectoryMissing) ||
		errors.Is(err, manim.ErrArtifactNotFound)
}
