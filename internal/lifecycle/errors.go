package lifecycle

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the failure kinds the cache reports. Callers match
// with errors.Is; TransitionError and CorruptStateError carry detail for
// errors.As.
var (
	// ErrInvalidObject reports an object with no identity or an
	// unrecognized tier state.
	ErrInvalidObject = errors.New("invalid object")

	// ErrInvalidTransition reports a tier move outside the legal table.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrCorruptState reports an id held by more than one tier at once.
	// The breakage predates the failing call, so the cache should be
	// treated as suspect rather than retried.
	ErrCorruptState = errors.New("corrupt tier state")

	// ErrPressureOutOfRange reports a memory pressure sample outside [0, 1].
	ErrPressureOutOfRange = errors.New("memory pressure out of range")
)

// TransitionError describes an illegal tier move.
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid state transition: %s -> %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// CorruptStateError lists every id found in more than one tier, sorted.
type CorruptStateError struct {
	IDs []string
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("corrupt tier state: ids in multiple tiers: %s", strings.Join(e.IDs, ", "))
}

func (e *CorruptStateError) Is(target error) bool { return target == ErrCorruptState }
