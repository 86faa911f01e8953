package sim

import (
	"errors"
	"fmt"
)

// ErrPreconditionViolation marks a caller defect, such as an empty
// identifier or a payload of the wrong type. The call is aborted.
var ErrPreconditionViolation = errors.New("precondition violation")

// ErrRoutingMismatch is returned when events are handed to a model whose
// URI differs from the destination they were routed to, or when a routing
// names a destination nobody registered. It is a precondition violation.
var ErrRoutingMismatch = fmt.Errorf("routing mismatch: %w", ErrPreconditionViolation)

// ErrNotImportable is returned when a model is given an event kind it does
// not declare as importable.
var ErrNotImportable = fmt.Errorf("event kind not importable: %w", ErrPreconditionViolation)

// ErrRetroCausal is returned when a follow-up event is scheduled before the
// event that generated it.
var ErrRetroCausal = fmt.Errorf("retro-causal event: %w", ErrPreconditionViolation)

// ErrOutOfDomain is returned when a PiecewiseFunction is queried outside the
// time range it covers.
var ErrOutOfDomain = errors.New("query out of domain")

// ErrPriorityConflict is returned when the priority relation over a set of
// event kinds is not a strict order.
var ErrPriorityConflict = errors.New("priority conflict")

func preconditionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPreconditionViolation, fmt.Sprintf(format, args...))
}
