package sim

// A Routing maps destination URIs to the events produced for them during
// one scheduling step. Destinations and events keep insertion order.
type Routing struct {
	order  []string
	events map[string][]*Event
}

// NewRouting creates an empty Routing.
func NewRouting() *Routing {
	return &Routing{
		events: make(map[string][]*Event),
	}
}

// Add appends events for the destination. It fails if the URI is empty or
// an event is nil.
func (r *Routing) Add(destinationURI string, events ...*Event) error {
	if destinationURI == "" {
		return preconditionf("routing destination must not be empty")
	}

	for _, evt := range events {
		if evt == nil {
			return preconditionf("nil event routed to %s", destinationURI)
		}
	}

	if len(events) == 0 {
		return nil
	}

	if _, found := r.events[destinationURI]; !found {
		r.order = append(r.order, destinationURI)
	}

	r.events[destinationURI] = append(r.events[destinationURI], events...)

	return nil
}

// Destinations returns the destination URIs in the order they were first
// added.
func (r *Routing) Destinations() []string {
	dsts := make([]string, len(r.order))
	copy(dsts, r.order)

	return dsts
}

// Events returns the events routed to the destination.
func (r *Routing) Events(destinationURI string) []*Event {
	events := r.events[destinationURI]
	dup := make([]*Event, len(events))
	copy(dup, events)

	return dup
}

// Len returns the total number of routed events.
func (r *Routing) Len() int {
	n := 0
	for _, events := range r.events {
		n += len(events)
	}

	return n
}
