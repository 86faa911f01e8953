package sim

import (
	"fmt"
	"math"
	"sync"

	"github.com/sirupsen/logrus"
)

// coordinatorBase holds what the serial and the parallel coordinators
// share: the clock, the exchange and the end handlers.
type coordinatorBase struct {
	*HookableBase

	exchange *Exchange

	timeLock sync.RWMutex
	now      VTimeInSec

	simulationEndHandlers []SimulationEndHandler
}

func newCoordinatorBase(exchange *Exchange) coordinatorBase {
	if exchange == nil {
		panic("coordinator requires an exchange")
	}

	return coordinatorBase{
		HookableBase: NewHookableBase(),
		exchange:     exchange,
	}
}

// Exchange returns the exchange that knows the models.
func (c *coordinatorBase) Exchange() *Exchange {
	return c.exchange
}

func (c *coordinatorBase) readNow() VTimeInSec {
	c.timeLock.RLock()
	t := c.now
	c.timeLock.RUnlock()
	return t
}

func (c *coordinatorBase) writeNow(t VTimeInSec) {
	c.timeLock.Lock()
	c.now = t
	c.timeLock.Unlock()
}

// CurrentTime returns the time of the most recently executed event.
func (c *coordinatorBase) CurrentTime() VTimeInSec {
	return c.readNow()
}

// Schedule delivers events to the model registered under the URI.
func (c *coordinatorBase) Schedule(uri string, events ...*Event) error {
	now := c.readNow()
	for _, evt := range events {
		if evt != nil && evt.time < now {
			return fmt.Errorf("%w: scheduling %s at %.10f, now %.10f",
				ErrRetroCausal, evt, evt.time, now)
		}
	}

	routing := NewRouting()
	if err := routing.Add(uri, events...); err != nil {
		return err
	}

	if routing.Len() == 0 {
		return preconditionf("no events scheduled for %s", uri)
	}

	return c.exchange.Route(routing)
}

// nextDue returns the earliest head time over all models, or +Inf if no
// model has pending input.
func (c *coordinatorBase) nextDue(models []AtomicModel) VTimeInSec {
	earliest := VTimeInSec(math.Inf(1))

	for _, m := range models {
		head := m.PeekInput()
		if head != nil && head.time < earliest {
			earliest = head.time
		}
	}

	return earliest
}

// process executes the event on the model, consumes the model's changed
// signal and returns where its follow-up events go. It does not route them.
func (c *coordinatorBase) process(
	m AtomicModel,
	evt *Event,
) (routing *Routing, changed bool, err error) {
	logrus.Debugf("%.10f, %s -> %s", evt.time, evt, m.URI())

	if err := evt.ExecuteOn(m); err != nil {
		return nil, false, err
	}

	changed = m.ConsumeChanged()

	followUps, err := evt.GenerateNewEvents(m)
	if err != nil {
		return nil, changed, err
	}

	routing, err = c.exchange.Distribute(m, followUps)

	return routing, changed, err
}

func (c *coordinatorBase) eventMustNotBeInPast(evt *Event) error {
	now := c.readNow()
	if evt.time < now {
		return preconditionf("cannot run event in the past, evt %s, now %.10f",
			evt, now)
	}

	return nil
}

// RegisterSimulationEndHandler registers a handler to be called after the
// simulation ends.
func (c *coordinatorBase) RegisterSimulationEndHandler(
	handler SimulationEndHandler,
) {
	c.simulationEndHandlers = append(c.simulationEndHandlers, handler)
}

// Finished should be called after the simulation ends. This function
// calls all the registered SimulationEndHandler.
func (c *coordinatorBase) Finished() {
	now := c.readNow()
	for _, h := range c.simulationEndHandlers {
		h.Handle(now)
	}
}
