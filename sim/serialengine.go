package sim

import (
	"fmt"
	"math"
	"sync"
)

// A SerialCoordinator runs events one after another. Among models whose
// next events happen at the same time, the model registered first goes
// first.
type SerialCoordinator struct {
	coordinatorBase

	isPaused     bool
	isPausedLock sync.Mutex
	pauseLock    sync.Mutex

	singleRunLock sync.Mutex
}

// NewSerialCoordinator creates a SerialCoordinator over the exchange.
func NewSerialCoordinator(exchange *Exchange) *SerialCoordinator {
	return &SerialCoordinator{
		coordinatorBase: newCoordinatorBase(exchange),
	}
}

// Run processes all the pending events.
func (e *SerialCoordinator) Run() error {
	return e.RunUntil(VTimeInSec(math.Inf(1)))
}

// RunUntil processes the events that happen no later than end. The first
// failing event aborts the run.
func (e *SerialCoordinator) RunUntil(end VTimeInSec) error {
	e.singleRunLock.Lock()
	defer e.singleRunLock.Unlock()

	for {
		e.pauseLock.Lock()
		ran, err := e.step(end)
		e.pauseLock.Unlock()

		if err != nil {
			return err
		}

		if !ran {
			return nil
		}
	}
}

func (e *SerialCoordinator) nextEvent() (AtomicModel, *Event) {
	var (
		model AtomicModel
		next  *Event
	)

	for _, m := range e.exchange.Models() {
		head := m.PeekInput()
		if head == nil {
			continue
		}

		if next == nil || head.time < next.time {
			model = m
			next = head
		}
	}

	return model, next
}

func (e *SerialCoordinator) step(end VTimeInSec) (bool, error) {
	m, evt := e.nextEvent()
	if m == nil || evt.time > end {
		return false, nil
	}

	m.PopInput()

	if err := e.eventMustNotBeInPast(evt); err != nil {
		return false, err
	}

	e.writeNow(evt.time)

	e.InvokeHook(HookCtx{
		Domain: e,
		Pos:    HookPosBeforeEvent,
		Item:   evt,
		Detail: m,
	})

	routing, changed, err := e.process(m, evt)
	if err != nil {
		return false, fmt.Errorf("running %s on %s: %w", evt, m.URI(), err)
	}

	if err := e.exchange.Route(routing); err != nil {
		return false, fmt.Errorf("routing follow-ups of %s from %s: %w",
			evt, m.URI(), err)
	}

	e.InvokeHook(HookCtx{
		Domain: e,
		Pos:    HookPosAfterEvent,
		Item:   evt,
		Detail: StepDetail{Model: m, Routing: routing, Changed: changed},
	})

	return true, nil
}

// Pause prevents the SerialCoordinator to trigger more events.
func (e *SerialCoordinator) Pause() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if e.isPaused {
		return
	}

	e.pauseLock.Lock()
	e.isPaused = true
}

// Continue allows the SerialCoordinator to trigger more events.
func (e *SerialCoordinator) Continue() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if !e.isPaused {
		return
	}

	e.pauseLock.Unlock()
	e.isPaused = false
}
