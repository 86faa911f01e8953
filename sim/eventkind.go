package sim

import (
	"fmt"
	"reflect"
	"sync"
)

// EventInformation is the data an event carries about the entities it
// affects. Concrete payloads are plain structs that describe themselves.
type EventInformation interface {
	Describe() string
}

// An EventKind names a family of events and declares how they are ordered
// against other kinds at the same time and what payload they may carry.
//
// Kinds are created once during simulation setup and compared by identity.
type EventKind struct {
	lock sync.RWMutex
	name string
	rank int
	over map[*EventKind]struct{}

	payloadType string
	accepts     func(EventInformation) bool
}

// KindOption configures an EventKind at creation.
type KindOption func(k *EventKind)

// WithRank sets the numeric priority rank of the kind. Among events at the
// same time, the lower rank runs first unless a pairwise rule says
// otherwise. The default rank is 0.
func WithRank(rank int) KindOption {
	return func(k *EventKind) {
		k.rank = rank
	}
}

// WithoutPayload declares that events of the kind never carry a payload.
func WithoutPayload() KindOption {
	return func(k *EventKind) {
		k.payloadType = "none"
		k.accepts = func(p EventInformation) bool {
			return p == nil
		}
	}
}

// WithPayload declares that events of the kind must carry a payload of type
// T.
func WithPayload[T EventInformation]() KindOption {
	return func(k *EventKind) {
		k.payloadType = reflect.TypeOf((*T)(nil)).Elem().String()
		k.accepts = func(p EventInformation) bool {
			_, ok := p.(T)
			return ok
		}
	}
}

// NewEventKind creates a new event kind. It panics if the name is empty.
func NewEventKind(name string, opts ...KindOption) *EventKind {
	if name == "" {
		panic("event kind name must not be empty")
	}

	k := &EventKind{
		name:        name,
		over:        make(map[*EventKind]struct{}),
		payloadType: "any",
		accepts:     func(EventInformation) bool { return true },
	}

	for _, opt := range opts {
		opt(k)
	}

	return k
}

// Name returns the name of the kind.
func (k *EventKind) Name() string {
	return k.name
}

// Rank returns the numeric priority rank of the kind.
func (k *EventKind) Rank() int {
	return k.rank
}

// String implements fmt.Stringer.
func (k *EventKind) String() string {
	return k.name
}

// AcceptsPayload tells if the payload satisfies the declared content type.
func (k *EventKind) AcceptsPayload(p EventInformation) bool {
	return k.accepts(p)
}

// AddPriorityOver registers a pairwise rule: events of kind k run before
// events of kind other at the same time, regardless of rank. A rule that
// directly contradicts an existing one is refused.
func (k *EventKind) AddPriorityOver(other *EventKind) error {
	if other == nil || other == k {
		return preconditionf("kind %s cannot take priority over itself or nil", k.name)
	}

	if other.hasRuleOver(k) {
		return fmt.Errorf("%w: %s already has priority over %s",
			ErrPriorityConflict, other.name, k.name)
	}

	k.lock.Lock()
	k.over[other] = struct{}{}
	k.lock.Unlock()

	return nil
}

func (k *EventKind) hasRuleOver(other *EventKind) bool {
	k.lock.RLock()
	defer k.lock.RUnlock()

	_, found := k.over[other]

	return found
}

// HasPriorityOverKind tells if events of kind k run before events of kind
// other when both happen at the same time on the same model.
func (k *EventKind) HasPriorityOverKind(other *EventKind) bool {
	if other == nil || other == k {
		return false
	}

	if k.hasRuleOver(other) {
		return true
	}

	if other.hasRuleOver(k) {
		return false
	}

	return k.rank < other.rank
}
