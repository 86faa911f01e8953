package sim

import (
	"fmt"
	"sync/atomic"
)

// A Named object is an object that has a name.
type Named interface {
	Name() string
}

// An AtomicModel is one simulated entity with its own state machine.
//
// A model is only ever advanced by one goroutine at a time. Events reach it
// through StoreInput and change its state through Execute, which is called
// by Event.ExecuteOn.
type AtomicModel interface {
	Named
	Hookable

	// URI returns the unique identifier used to route events to the model.
	URI() string

	// Mode returns the current discrete mode.
	Mode() Mode

	// ImportedKinds returns the kinds the model accepts as input.
	ImportedKinds() []*EventKind

	// CanImport tells if the model accepts events of the kind.
	CanImport(kind *EventKind) bool

	// StoreInput appends events to the input queue of the model.
	StoreInput(destinationURI string, events []*Event) error

	// PendingInputs returns the number of events in the input queue.
	PendingInputs() int

	// PeekInput returns the next input event without removing it.
	PeekInput() *Event

	// PopInput removes and returns the next input event.
	PopInput() *Event

	// Execute applies the transition rule for the event, if there is one,
	// and reports whether a rule applied.
	Execute(evt *Event) (bool, error)

	// FollowUps returns the events caused by evt in the current state.
	FollowUps(evt *Event) []*Event

	// HasChanged tells if an output-relevant variable changed since the
	// signal was last consumed.
	HasChanged() bool

	// ConsumeChanged returns the changed signal and clears it.
	ConsumeChanged() bool
}

// TransitionDetail is attached to HookPosModelTransition hooks.
type TransitionDetail struct {
	From, To Mode
}

// ModelBase implements the bookkeeping part of AtomicModel. Concrete models
// embed it and describe their behavior in a TransitionTable.
type ModelBase struct {
	*HookableBase

	uri   string
	mode  Mode
	table *TransitionTable

	imports     map[*EventKind]bool
	importOrder []*EventKind
	inputs      *EventQueueImpl

	lastTransition  VTimeInSec
	hasTransitioned bool
	changed         atomic.Bool
}

// NewModelBase creates a ModelBase. The URI must follow the naming
// convention checked by NameMustBeValid. Every kind in the table must be
// imported, since follow-up events for the model itself arrive through its
// input queue.
func NewModelBase(
	uri string,
	initial Mode,
	table *TransitionTable,
	imports ...*EventKind,
) *ModelBase {
	NameMustBeValid(uri)

	if initial == "" || initial == AnyMode {
		panic(fmt.Sprintf("model %s must start in a concrete mode", uri))
	}

	if table == nil {
		panic(fmt.Sprintf("model %s must have a transition table", uri))
	}

	b := &ModelBase{
		HookableBase: NewHookableBase(),
		uri:          uri,
		mode:         initial,
		table:        table,
		imports:      make(map[*EventKind]bool),
		inputs:       NewEventQueue(),
	}

	for _, k := range imports {
		if k == nil || b.imports[k] {
			continue
		}

		b.imports[k] = true
		b.importOrder = append(b.importOrder, k)
	}

	for _, k := range table.Kinds() {
		if !b.imports[k] {
			panic(fmt.Sprintf("model %s handles %s but does not import it",
				uri, k.name))
		}
	}

	return b
}

// Name returns the URI of the model.
func (b *ModelBase) Name() string {
	return b.uri
}

// URI returns the URI of the model.
func (b *ModelBase) URI() string {
	return b.uri
}

// Mode returns the current mode.
func (b *ModelBase) Mode() Mode {
	return b.mode
}

// LastTransitionTime returns the time of the last applied transition and
// whether there was one.
func (b *ModelBase) LastTransitionTime() (VTimeInSec, bool) {
	return b.lastTransition, b.hasTransitioned
}

// ImportedKinds returns the imported kinds in declaration order.
func (b *ModelBase) ImportedKinds() []*EventKind {
	kinds := make([]*EventKind, len(b.importOrder))
	copy(kinds, b.importOrder)

	return kinds
}

// CanImport tells if the model accepts events of the kind.
func (b *ModelBase) CanImport(kind *EventKind) bool {
	return b.imports[kind]
}

// StoreInput appends the events, in order, to the input queue. The
// destination must be this model and every event must be importable. All
// checks run before anything is appended.
func (b *ModelBase) StoreInput(destinationURI string, events []*Event) error {
	if destinationURI != b.uri {
		return fmt.Errorf("%w: events for %q delivered to %q",
			ErrRoutingMismatch, destinationURI, b.uri)
	}

	if len(events) == 0 {
		return preconditionf("no events delivered to %s", b.uri)
	}

	for _, evt := range events {
		if evt == nil {
			return preconditionf("nil event delivered to %s", b.uri)
		}

		if !b.CanImport(evt.kind) {
			return fmt.Errorf("%w: %s does not import %s",
				ErrNotImportable, b.uri, evt.kind.name)
		}
	}

	for _, evt := range events {
		b.inputs.Push(evt)

		if b.NumHooks() > 0 {
			b.InvokeHook(HookCtx{
				Domain: b,
				Pos:    HookPosModelInput,
				Item:   evt,
			})
		}
	}

	return nil
}

// PendingInputs returns the number of queued input events.
func (b *ModelBase) PendingInputs() int {
	return b.inputs.Len()
}

// PeekInput returns the next input event, or nil.
func (b *ModelBase) PeekInput() *Event {
	return b.inputs.Peek()
}

// PopInput removes and returns the next input event, or nil.
func (b *ModelBase) PopInput() *Event {
	return b.inputs.Pop()
}

// Execute applies the rule for the current mode and the event kind. A pair
// without a rule is a no-op and leaves the model untouched.
func (b *ModelBase) Execute(evt *Event) (bool, error) {
	if evt == nil {
		return false, preconditionf("nil event executed on %s", b.uri)
	}

	if !b.CanImport(evt.kind) {
		return false, fmt.Errorf("%w: %s does not import %s",
			ErrNotImportable, b.uri, evt.kind.name)
	}

	if b.hasTransitioned && evt.time < b.lastTransition {
		return false, preconditionf(
			"%s executed %s before its last transition at %.10f",
			b.uri, evt, b.lastTransition)
	}

	rule, found := b.table.Lookup(b.mode, evt.kind)
	if !found {
		return false, nil
	}

	if rule.Effect != nil {
		if err := rule.Effect(evt); err != nil {
			return false, fmt.Errorf("%s executing %s: %w", b.uri, evt, err)
		}
	}

	from := b.mode
	if rule.To != "" && rule.To != AnyMode {
		b.mode = rule.To
	}

	if rule.AltersOutput || b.mode != from {
		b.changed.Store(true)
	}

	b.lastTransition = evt.time
	b.hasTransitioned = true

	if b.NumHooks() > 0 {
		b.InvokeHook(HookCtx{
			Domain: b,
			Pos:    HookPosModelTransition,
			Item:   evt,
			Detail: TransitionDetail{From: from, To: b.mode},
		})
	}

	return true, nil
}

// FollowUps runs the emitter registered for the event kind.
func (b *ModelBase) FollowUps(evt *Event) []*Event {
	if evt == nil {
		return nil
	}

	emitter := b.table.Emitter(evt.kind)
	if emitter == nil {
		return nil
	}

	return emitter(evt)
}

// MarkChanged raises the changed signal. Effects call it when they update a
// variable that feeds a continuous output.
func (b *ModelBase) MarkChanged() {
	b.changed.Store(true)
}

// HasChanged tells if the changed signal is raised.
func (b *ModelBase) HasChanged() bool {
	return b.changed.Load()
}

// ConsumeChanged returns the changed signal and clears it.
func (b *ModelBase) ConsumeChanged() bool {
	return b.changed.Swap(false)
}
