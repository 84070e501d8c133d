package pipeline

import (
	"errors"
	"fmt"
)

// State is a step of the generate/render/fix loop.
type State int

const (
	StateIdle State = iota
	StateGenerating
	StateRendering
	StateRetryPending
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateGenerating:
		return "generating"
	case StateRendering:
		return "rendering"
	case StateRetryPending:
		return "retry_pending"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Event drives a transition.
type Event int

const (
	EventStart Event = iota
	EventGenerated
	EventGenerationFailed
	EventRendered
	EventRenderFailed
	EventRenderFatal
	EventRetry
	EventLimitReached
	EventCancelled
)

func (e Event) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventGenerated:
		return "generated"
	case EventGenerationFailed:
		return "generation_failed"
	case EventRendered:
		return "rendered"
	case EventRenderFailed:
		return "render_failed"
	case EventRenderFatal:
		return "render_fatal"
	case EventRetry:
		return "retry"
	case EventLimitReached:
		return "limit_reached"
	case EventCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// ErrInvalidTransition is returned by Transition for an event the current
// state does not accept.
var ErrInvalidTransition = errors.New("invalid pipeline transition")

// Snapshot is the orchestrator's position in the loop. Attempt is 1-based
// once the run has started; Fixes counts regenerations from a fix prompt.
type Snapshot struct {
	State   State
	Attempt int
	Fixes   int
}

// Transition applies ev to s. It has no side effects.
func Transition(s Snapshot, ev Event) (Snapshot, error) {
	if ev == EventCancelled && !s.State.Terminal() && s.State != StateIdle {
		s.State = StateFailed
		return s, nil
	}
	next := s
	switch {
	case s.State == StateIdle && ev == EventStart:
		next = Snapshot{State: StateGenerating, Attempt: 1}
	case s.State == StateGenerating && ev == EventGenerated:
		next.State = StateRendering
	case s.State == StateGenerating && ev == EventGenerationFailed:
		next.State = StateFailed
	case s.State == StateRendering && ev == EventRendered:
		next.State = StateSucceeded
	case s.State == StateRendering && ev == EventRenderFailed:
		next.State = StateRetryPending
	case s.State == StateRendering && ev == EventRenderFatal:
		next.State = StateFailed
	case s.State == StateRetryPending && ev == EventRetry:
		next.State = StateGenerating
		next.Attempt++
		next.Fixes++
	case s.State == StateRetryPending && ev == EventLimitReached:
		next.State = StateFailed
	default:
		return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, s.State)
	}
	return next, nil
}

// CanRetry reports whether a RetryPending snapshot may regenerate under
// ceiling, the maximum number of fix cycles (0 means unbounded).
func CanRetry(s Snapshot, ceiling int) bool {
	if s.State != StateRetryPending {
		return false
	}
	return ceiling <= 0 || s.Fixes < ceiling
}
