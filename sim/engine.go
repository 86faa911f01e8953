package sim

// TimeTeller can be used to get the current time.
type TimeTeller interface {
	CurrentTime() VTimeInSec
}

// A SimulationEndHandler is a handler that is called after the simulation ends.
type SimulationEndHandler interface {
	Handle(now VTimeInSec)
}

// A Coordinator keeps a discrete event simulation running. It repeatedly
// picks the next due event, executes it on the model that owns it, asks the
// event for its follow-ups and routes them through the Exchange.
//
// Events of one model always run one after another, in ascending time, with
// ties broken by priority among the events queued at the model. Priority
// does not reach across models. When several models are due at the same
// time, the model registered first runs its next event first. An event it
// then routes to a model that already ran at that time runs after that model's
// earlier event, even if it has the higher priority.
type Coordinator interface {
	Hookable
	TimeTeller

	// Exchange returns the exchange that knows the models.
	Exchange() *Exchange

	// Schedule delivers events to a model from outside the simulation,
	// typically to kick it off. The events must not be in the past.
	Schedule(uri string, events ...*Event) error

	// Run processes events until no model has a pending input.
	Run() error

	// RunUntil processes events that happen no later than t.
	RunUntil(t VTimeInSec) error

	// Pause will pause the simulation until continue is called.
	Pause()

	// Continue will continue the paused simulation
	Continue()

	// RegisterSimulationEndHandler registers a handler that perform some
	// actions after the simulation is finished.
	RegisterSimulationEndHandler(handler SimulationEndHandler)

	// Finished invokes all the registered SimulationEndHandler
	Finished()
}

// StepDetail is attached to HookPosAfterEvent hooks.
type StepDetail struct {
	Model   AtomicModel
	Routing *Routing

	// Changed tells if the event changed an output of the model. The
	// model's changed signal is consumed when the step reports it.
	Changed bool
}
