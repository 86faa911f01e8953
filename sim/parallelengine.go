package sim

import (
	"fmt"
	"math"
	"runtime"
	"sync"
)

// A ParallelCoordinator advances different models concurrently. In every
// round it takes the earliest pending time and executes the next event of
// each model due at that time, one goroutine per model. Follow-up events
// are routed after the round, in model registration order, so the outcome
// does not depend on goroutine scheduling.
type ParallelCoordinator struct {
	coordinatorBase

	isPaused      bool
	isPausedLock  sync.Mutex
	pauseLock     sync.Mutex
	singleRunLock sync.Mutex
	maxGoRoutine  int
}

// NewParallelCoordinator creates a ParallelCoordinator over the exchange.
func NewParallelCoordinator(exchange *Exchange) *ParallelCoordinator {
	return &ParallelCoordinator{
		coordinatorBase: newCoordinatorBase(exchange),
		maxGoRoutine:    runtime.GOMAXPROCS(0),
	}
}

// Run processes all the pending events.
func (e *ParallelCoordinator) Run() error {
	return e.RunUntil(VTimeInSec(math.Inf(1)))
}

// RunUntil processes the events that happen no later than end.
func (e *ParallelCoordinator) RunUntil(end VTimeInSec) error {
	e.singleRunLock.Lock()
	defer e.singleRunLock.Unlock()

	for {
		e.pauseLock.Lock()
		ran, err := e.runRound(end)
		e.pauseLock.Unlock()

		if err != nil {
			return err
		}

		if !ran {
			return nil
		}
	}
}

type roundResult struct {
	model   AtomicModel
	evt     *Event
	routing *Routing
	changed bool
	err     error
}

func (e *ParallelCoordinator) runRound(end VTimeInSec) (bool, error) {
	models := e.exchange.Models()

	now := e.nextDue(models)
	if math.IsInf(float64(now), 1) || now > end {
		return false, nil
	}

	results := e.takeDueEvents(models, now)
	for _, r := range results {
		if err := e.eventMustNotBeInPast(r.evt); err != nil {
			return false, err
		}
	}

	e.writeNow(now)

	for _, r := range results {
		e.InvokeHook(HookCtx{
			Domain: e,
			Pos:    HookPosBeforeEvent,
			Item:   r.evt,
			Detail: r.model,
		})
	}

	e.runConcurrently(results)

	for _, r := range results {
		if r.err != nil {
			return false, fmt.Errorf("running %s on %s: %w",
				r.evt, r.model.URI(), r.err)
		}

		if err := e.exchange.Route(r.routing); err != nil {
			return false, fmt.Errorf("routing follow-ups of %s from %s: %w",
				r.evt, r.model.URI(), err)
		}

		e.InvokeHook(HookCtx{
			Domain: e,
			Pos:    HookPosAfterEvent,
			Item:   r.evt,
			Detail: StepDetail{
				Model:   r.model,
				Routing: r.routing,
				Changed: r.changed,
			},
		})
	}

	return true, nil
}

func (e *ParallelCoordinator) takeDueEvents(
	models []AtomicModel,
	now VTimeInSec,
) []*roundResult {
	results := make([]*roundResult, 0, len(models))

	for _, m := range models {
		head := m.PeekInput()
		if head == nil || head.time != now {
			continue
		}

		results = append(results, &roundResult{model: m, evt: m.PopInput()})
	}

	return results
}

func (e *ParallelCoordinator) runConcurrently(results []*roundResult) {
	var wg sync.WaitGroup

	slots := make(chan struct{}, e.maxGoRoutine)

	for _, r := range results {
		wg.Add(1)
		slots <- struct{}{}

		go func(r *roundResult) {
			defer wg.Done()
			defer func() { <-slots }()

			r.routing, r.changed, r.err = e.process(r.model, r.evt)
		}(r)
	}

	wg.Wait()
}

// Pause will prevent the coordinator from starting another round. Events of
// the current round still run. Pausing a paused coordinator does nothing.
func (e *ParallelCoordinator) Pause() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if e.isPaused {
		return
	}

	e.pauseLock.Lock()
	e.isPaused = true
}

// Continue allows the coordinator to continue to make progress. Continuing
// a coordinator that is not paused does nothing.
func (e *ParallelCoordinator) Continue() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if !e.isPaused {
		return
	}

	e.pauseLock.Unlock()
	e.isPaused = false
}
