package sim

import (
	"fmt"
	"math"
	"sync/atomic"
)

// VTimeInSec defines the time in the simulated space in the unit of second
type VTimeInSec float64

// IsDefined tells if the time is a finite number.
func (t VTimeInSec) IsDefined() bool {
	f := float64(t)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// An Event is something going to happen to one model at one point in time.
//
// Events are tagged by their kind instead of being distinct Go types. A
// model matches on Kind() in its transition table, so new kinds can be
// added without touching the kernel.
type Event struct {
	id       string
	time     VTimeInSec
	kind     *EventKind
	payload  EventInformation
	state    atomic.Int32
}

const (
	eventPending int32 = iota
	eventExecuting
	eventConsumed
)

// NewEvent creates an event of the given kind happening at time t. It fails
// if the time is undefined or the payload is not what the kind declares.
func NewEvent(
	kind *EventKind,
	t VTimeInSec,
	payload EventInformation,
) (*Event, error) {
	if kind == nil {
		return nil, preconditionf("event kind must not be nil")
	}

	if !t.IsDefined() {
		return nil, preconditionf("event %s has undefined time %v", kind.name, t)
	}

	if !kind.AcceptsPayload(payload) {
		return nil, preconditionf("event %s requires payload %s, got %T",
			kind.name, kind.payloadType, payload)
	}

	e := &Event{
		id:      GetIDGenerator().Generate(),
		time:    t,
		kind:    kind,
		payload: payload,
	}

	return e, nil
}

// MustNewEvent is like NewEvent but panics on failure. It is meant for
// models whose follow-up events are built from values they already checked.
func MustNewEvent(
	kind *EventKind,
	t VTimeInSec,
	payload EventInformation,
) *Event {
	e, err := NewEvent(kind, t, payload)
	if err != nil {
		panic(err)
	}

	return e
}

// copy returns an unconsumed event with the same content and a new ID.
func (e *Event) copy() *Event {
	return &Event{
		id:      GetIDGenerator().Generate(),
		time:    e.time,
		kind:    e.kind,
		payload: e.payload,
	}
}

// ID returns the unique ID of the event.
func (e *Event) ID() string {
	return e.id
}

// Time returns the time of occurrence.
func (e *Event) Time() VTimeInSec {
	return e.time
}

// Kind returns the kind of the event.
func (e *Event) Kind() *EventKind {
	return e.kind
}

// Payload returns the information carried by the event, or nil.
func (e *Event) Payload() EventInformation {
	return e.payload
}

// IsConsumed tells if the event has already been executed.
func (e *Event) IsConsumed() bool {
	return e.state.Load() == eventConsumed
}

// String implements fmt.Stringer.
func (e *Event) String() string {
	if e.payload == nil {
		return fmt.Sprintf("%s@%.10f", e.kind.name, e.time)
	}

	return fmt.Sprintf("%s@%.10f[%s]", e.kind.name, e.time, e.payload.Describe())
}

// HasPriorityOver tells if e runs before other when both happen at the same
// time on the same model. It only looks at the kinds; two events of the same
// kind are ordered by arrival in the model's input queue.
func (e *Event) HasPriorityOver(other *Event) bool {
	if other == nil {
		return false
	}

	return e.kind.HasPriorityOverKind(other.kind)
}

// ExecuteOn applies the event to the model. This is the only place where
// the event changes model state. An event can be executed only once. An
// event the model rejects stays unconsumed.
func (e *Event) ExecuteOn(m AtomicModel) error {
	if m == nil {
		return preconditionf("cannot execute %s on a nil model", e)
	}

	if !e.state.CompareAndSwap(eventPending, eventExecuting) {
		return preconditionf("event %s (%s) has already been executed", e.id, e)
	}

	if _, err := m.Execute(e); err != nil {
		e.state.Store(eventPending)
		return err
	}

	e.state.Store(eventConsumed)

	return nil
}

// GenerateNewEvents asks the model which follow-up events this event
// causes. It must be called right after ExecuteOn. None of the returned
// events may happen before e.
func (e *Event) GenerateNewEvents(m AtomicModel) ([]*Event, error) {
	if m == nil {
		return nil, preconditionf("cannot generate events of %s on a nil model", e)
	}

	events := m.FollowUps(e)
	for _, next := range events {
		if next == nil {
			return nil, preconditionf("model %s generated a nil event", m.URI())
		}

		if next.time < e.time {
			return nil, fmt.Errorf("%w: %s generated %s from %s",
				ErrRetroCausal, m.URI(), next, e)
		}
	}

	return events, nil
}
