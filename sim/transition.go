package sim

import "fmt"

// Mode is one value of the finite set of discrete states of a model.
type Mode string

// AnyMode matches every mode in a transition rule. A rule for an exact mode
// shadows an AnyMode rule for the same kind.
const AnyMode Mode = "*"

// A Rule describes what happens when a model in mode From executes an event
// of kind Kind.
type Rule struct {
	From Mode
	Kind *EventKind

	// To is the mode after the transition. Empty keeps the current mode.
	To Mode

	// Effect updates the state variables of the model. It may be nil.
	Effect func(evt *Event) error

	// AltersOutput raises the changed signal even when the mode stays the
	// same.
	AltersOutput bool
}

// An Emitter computes the follow-up events of an executed event from the
// current model state and the event content. It must not modify the model.
type Emitter func(evt *Event) []*Event

type ruleKey struct {
	mode Mode
	kind *EventKind
}

// A TransitionTable maps (mode, event kind) pairs to rules and event kinds
// to emitters.
type TransitionTable struct {
	rules    map[ruleKey]*Rule
	emitters map[*EventKind]Emitter
	kinds    []*EventKind
}

// NewTransitionTable creates an empty TransitionTable.
func NewTransitionTable() *TransitionTable {
	return &TransitionTable{
		rules:    make(map[ruleKey]*Rule),
		emitters: make(map[*EventKind]Emitter),
	}
}

// Add registers a rule. It panics if the rule has no kind or no source
// mode, or if a rule for the same pair already exists.
func (t *TransitionTable) Add(rule Rule) *TransitionTable {
	if rule.Kind == nil {
		panic("transition rule must have an event kind")
	}

	if rule.From == "" {
		panic("transition rule must have a source mode")
	}

	key := ruleKey{mode: rule.From, kind: rule.Kind}
	if _, found := t.rules[key]; found {
		panic(fmt.Sprintf("transition rule (%s, %s) already registered",
			rule.From, rule.Kind.name))
	}

	r := rule
	t.rules[key] = &r
	t.addKind(rule.Kind)

	return t
}

// Emit registers the emitter for the given kind. It panics if the kind
// already has one.
func (t *TransitionTable) Emit(kind *EventKind, emitter Emitter) *TransitionTable {
	if kind == nil || emitter == nil {
		panic("emitter must have an event kind and a function")
	}

	if _, found := t.emitters[kind]; found {
		panic(fmt.Sprintf("emitter for %s already registered", kind.name))
	}

	t.emitters[kind] = emitter
	t.addKind(kind)

	return t
}

func (t *TransitionTable) addKind(kind *EventKind) {
	for _, k := range t.kinds {
		if k == kind {
			return
		}
	}

	t.kinds = append(t.kinds, kind)
}

// Lookup returns the rule that applies to the pair, if any.
func (t *TransitionTable) Lookup(mode Mode, kind *EventKind) (*Rule, bool) {
	if r, found := t.rules[ruleKey{mode: mode, kind: kind}]; found {
		return r, true
	}

	r, found := t.rules[ruleKey{mode: AnyMode, kind: kind}]

	return r, found
}

// Emitter returns the emitter of the kind, or nil.
func (t *TransitionTable) Emitter(kind *EventKind) Emitter {
	return t.emitters[kind]
}

// Kinds returns every kind mentioned by a rule or an emitter, in the order
// they were first registered.
func (t *TransitionTable) Kinds() []*EventKind {
	kinds := make([]*EventKind, len(t.kinds))
	copy(kinds, t.kinds)

	return kinds
}
