package sim

import (
	"fmt"
	"sync"
)

type couplingKey struct {
	source string
	kind   *EventKind
}

// An Exchange knows every model of a simulation by URI and routes the
// events they produce. Events of a kind coupled from a source model go to
// the coupled destinations. All other events go back to the model that
// produced them.
//
// Delivery never drops an event. A destination nobody registered, or one
// that does not import the kind, fails the whole routing before any event
// is stored.
type Exchange struct {
	lock      sync.RWMutex
	models    []AtomicModel
	index     map[string]int
	couplings map[couplingKey][]string
}

// NewExchange creates an empty Exchange.
func NewExchange() *Exchange {
	return &Exchange{
		index:     make(map[string]int),
		couplings: make(map[couplingKey][]string),
	}
}

// Register adds a model. The URI must be unique and the priority relation
// over the kinds the model imports must be a strict order.
func (x *Exchange) Register(m AtomicModel) error {
	if m == nil {
		return preconditionf("cannot register a nil model")
	}

	uri := m.URI()
	if uri == "" {
		return preconditionf("model URI must not be empty")
	}

	if err := ValidatePriorities(m.ImportedKinds()); err != nil {
		return fmt.Errorf("model %s: %w", uri, err)
	}

	x.lock.Lock()
	defer x.lock.Unlock()

	if _, found := x.index[uri]; found {
		return preconditionf("model %s already registered", uri)
	}

	x.models = append(x.models, m)
	x.index[uri] = len(x.models) - 1

	return nil
}

// Model returns the model registered under the URI.
func (x *Exchange) Model(uri string) (AtomicModel, bool) {
	x.lock.RLock()
	defer x.lock.RUnlock()

	i, found := x.index[uri]
	if !found {
		return nil, false
	}

	return x.models[i], true
}

// Models returns the registered models in registration order.
func (x *Exchange) Models() []AtomicModel {
	x.lock.RLock()
	defer x.lock.RUnlock()

	models := make([]AtomicModel, len(x.models))
	copy(models, x.models)

	return models
}

// Couple sends the events of the kind produced by the source model to the
// destination models instead of back to the source. Every model must be
// registered and every destination must import the kind.
func (x *Exchange) Couple(
	sourceURI string,
	kind *EventKind,
	destinationURIs ...string,
) error {
	if kind == nil {
		return preconditionf("coupling from %s needs an event kind", sourceURI)
	}

	if len(destinationURIs) == 0 {
		return preconditionf("coupling %s/%s needs a destination",
			sourceURI, kind.name)
	}

	if _, found := x.Model(sourceURI); !found {
		return fmt.Errorf("%w: unknown source %q", ErrRoutingMismatch, sourceURI)
	}

	for _, dst := range destinationURIs {
		m, found := x.Model(dst)
		if !found {
			return fmt.Errorf("%w: unknown destination %q",
				ErrRoutingMismatch, dst)
		}

		if !m.CanImport(kind) {
			return fmt.Errorf("%w: %s does not import %s",
				ErrNotImportable, dst, kind.name)
		}
	}

	x.lock.Lock()
	defer x.lock.Unlock()

	key := couplingKey{source: sourceURI, kind: kind}
	x.couplings[key] = append(x.couplings[key], destinationURIs...)

	return nil
}

func (x *Exchange) coupled(sourceURI string, kind *EventKind) []string {
	x.lock.RLock()
	defer x.lock.RUnlock()

	return x.couplings[couplingKey{source: sourceURI, kind: kind}]
}

// Distribute builds the routing of the events produced by the model. An
// event coupled to several destinations is copied, so that every
// destination consumes its own event.
func (x *Exchange) Distribute(
	producer AtomicModel,
	events []*Event,
) (*Routing, error) {
	routing := NewRouting()

	for _, evt := range events {
		dsts := x.coupled(producer.URI(), evt.kind)
		if len(dsts) == 0 {
			if err := routing.Add(producer.URI(), evt); err != nil {
				return nil, err
			}

			continue
		}

		for i, dst := range dsts {
			delivered := evt
			if i > 0 {
				delivered = evt.copy()
			}

			if err := routing.Add(dst, delivered); err != nil {
				return nil, err
			}
		}
	}

	return routing, nil
}

// Route hands the events of every destination to that destination's
// StoreInput, in destination order.
func (x *Exchange) Route(routing *Routing) error {
	dsts := routing.Destinations()
	models := make([]AtomicModel, len(dsts))

	for i, dst := range dsts {
		m, found := x.Model(dst)
		if !found {
			return fmt.Errorf("%w: no model registered as %q",
				ErrRoutingMismatch, dst)
		}

		for _, evt := range routing.Events(dst) {
			if !m.CanImport(evt.kind) {
				return fmt.Errorf("%w: %s does not import %s",
					ErrNotImportable, dst, evt.kind.name)
			}
		}

		models[i] = m
	}

	for i, dst := range dsts {
		if err := models[i].StoreInput(dst, routing.Events(dst)); err != nil {
			return err
		}
	}

	return nil
}
