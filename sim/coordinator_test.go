package sim

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type endRecorder struct {
	calledAt []VTimeInSec
}

func (h *endRecorder) Handle(now VTimeInSec) {
	h.calledAt = append(h.calledAt, now)
}

func executedURIs(h *hookRecord) []string {
	var uris []string

	for _, ctx := range h.at(HookPosBeforeEvent) {
		uris = append(uris, ctx.Detail.(AtomicModel).URI())
	}

	return uris
}

func coordinatorBehaviors(newCoordinator func(x *Exchange) Coordinator) {
	var (
		x     *Exchange
		c     Coordinator
		hall  *lamp
		porch *lamp
		rec   *recorder
		hooks *hookRecord
	)

	BeforeEach(func() {
		x = NewExchange()
		hall = newLamp("Hall.Lamp")
		porch = newLamp("Porch.Lamp")
		rec = newRecorder("Logbook")

		Expect(x.Register(hall)).To(Succeed())
		Expect(x.Register(porch)).To(Succeed())
		Expect(x.Register(rec)).To(Succeed())

		c = newCoordinator(x)
		hooks = &hookRecord{}
		c.AcceptHook(hooks)
	})

	It("should run self-scheduled follow-ups", func() {
		Expect(c.Schedule("Hall.Lamp", ping(1, "echo"))).To(Succeed())

		Expect(c.Run()).To(Succeed())

		Expect(hall.pings).To(Equal([]string{"echo", "echoed"}))
		Expect(c.CurrentTime()).To(Equal(VTimeInSec(2)))
		Expect(hall.PendingInputs()).To(Equal(0))
	})

	It("should deliver coupled events", func() {
		Expect(x.Couple("Hall.Lamp", kindPing, "Logbook")).To(Succeed())
		Expect(c.Schedule("Hall.Lamp", ping(1, "echo"))).To(Succeed())

		Expect(c.Run()).To(Succeed())

		Expect(hall.pings).To(Equal([]string{"echo"}))
		Expect(rec.notes).To(Equal([]string{"echoed"}))
	})

	It("should break same-time ties by priority", func() {
		Expect(c.Schedule("Hall.Lamp",
			MustNewEvent(kindOff, 1, nil),
			MustNewEvent(kindOn, 1, nil),
		)).To(Succeed())

		Expect(c.Run()).To(Succeed())

		// On runs first and Off then finds the lamp on.
		Expect(hall.Mode()).To(Equal(lampOff))

		events := hooks.at(HookPosBeforeEvent)
		Expect(events).To(HaveLen(2))
		Expect(events[0].Item.(*Event).Kind()).To(BeIdenticalTo(kindOn))
	})

	It("should go through events in time order", func() {
		Expect(c.Schedule("Porch.Lamp", ping(3, "porch"))).To(Succeed())
		Expect(c.Schedule("Hall.Lamp", ping(1, "hall"))).To(Succeed())
		Expect(c.Schedule("Logbook", ping(2, "log"))).To(Succeed())

		Expect(c.Run()).To(Succeed())

		Expect(executedURIs(hooks)).To(Equal(
			[]string{"Hall.Lamp", "Logbook", "Porch.Lamp"}))
	})

	It("should stop at the end time", func() {
		Expect(c.Schedule("Hall.Lamp",
			ping(1, "first"), ping(5, "second"))).To(Succeed())

		Expect(c.RunUntil(3)).To(Succeed())

		Expect(hall.pings).To(Equal([]string{"first"}))
		Expect(hall.PendingInputs()).To(Equal(1))
		Expect(c.CurrentTime()).To(Equal(VTimeInSec(1)))

		Expect(c.Run()).To(Succeed())
		Expect(hall.pings).To(Equal([]string{"first", "second"}))
	})

	It("should refuse to schedule in the past", func() {
		Expect(c.Schedule("Hall.Lamp", ping(4, "x"))).To(Succeed())
		Expect(c.Run()).To(Succeed())

		err := c.Schedule("Hall.Lamp", ping(2, "late"))

		Expect(err).To(MatchError(ErrRetroCausal))
	})

	It("should refuse empty or misrouted schedules", func() {
		Expect(c.Schedule("Hall.Lamp")).To(MatchError(ErrPreconditionViolation))
		Expect(c.Schedule("Attic.Lamp", ping(1, "x"))).
			To(MatchError(ErrRoutingMismatch))
	})

	It("should abort on a failing event", func() {
		Expect(c.Schedule("Hall.Lamp",
			MustNewEvent(kindOn, 1, nil),
			MustNewEvent(kindBurn, 2, nil),
			ping(3, "never"),
		)).To(Succeed())

		err := c.Run()

		Expect(err).To(MatchError(errBurnt))
		Expect(err.Error()).To(ContainSubstring("Hall.Lamp"))
		Expect(hall.pings).To(BeEmpty())
	})

	It("should never drop events nobody imports", func() {
		Expect(c.Schedule("Hall.Lamp", ping(1, "stray"))).To(Succeed())

		err := c.Run()

		Expect(err).To(MatchError(ErrNotImportable))
	})

	It("should invoke hooks around every event", func() {
		Expect(c.Schedule("Hall.Lamp", ping(1, "echo"))).To(Succeed())

		Expect(c.Run()).To(Succeed())

		Expect(hooks.at(HookPosBeforeEvent)).To(HaveLen(2))

		after := hooks.at(HookPosAfterEvent)
		Expect(after).To(HaveLen(2))

		detail := after[0].Detail.(StepDetail)
		Expect(detail.Model).To(BeIdenticalTo(hall))
		Expect(detail.Routing.Destinations()).To(Equal([]string{"Hall.Lamp"}))
	})

	It("should call end handlers", func() {
		h := &endRecorder{}
		c.RegisterSimulationEndHandler(h)

		Expect(c.Schedule("Hall.Lamp", ping(7, "x"))).To(Succeed())
		Expect(c.Run()).To(Succeed())
		c.Finished()

		Expect(h.calledAt).To(Equal([]VTimeInSec{7}))
	})

	It("should continue after a pause", func() {
		Expect(c.Schedule("Hall.Lamp", ping(1, "x"))).To(Succeed())

		c.Pause()
		c.Continue()

		Expect(c.Run()).To(Succeed())
		Expect(hall.pings).To(Equal([]string{"x"}))
	})

	It("should tolerate unbalanced pause and continue", func() {
		Expect(c.Schedule("Hall.Lamp", ping(1, "x"))).To(Succeed())

		c.Continue()
		c.Pause()
		c.Pause()
		c.Continue()
		c.Continue()

		Expect(c.Run()).To(Succeed())
		Expect(hall.pings).To(Equal([]string{"x"}))
	})

	It("should report an output change once", func() {
		Expect(c.Schedule("Hall.Lamp",
			MustNewEvent(kindOn, 1, nil),
			MustNewEvent(kindOn, 2, nil),
		)).To(Succeed())

		Expect(c.Run()).To(Succeed())

		after := hooks.at(HookPosAfterEvent)
		Expect(after).To(HaveLen(2))
		Expect(after[0].Detail.(StepDetail).Changed).To(BeTrue())
		Expect(after[1].Detail.(StepDetail).Changed).To(BeFalse())
		Expect(hall.HasChanged()).To(BeFalse())
	})

	It("should order same-time events of a model by arrival", func() {
		for i := 0; i < 5; i++ {
			Expect(c.Schedule("Hall.Lamp",
				ping(VTimeInSec(i), fmt.Sprintf("h%d", i)))).To(Succeed())
			Expect(c.Schedule("Porch.Lamp",
				ping(VTimeInSec(i), fmt.Sprintf("p%d", i)),
				ping(VTimeInSec(i), "echo"))).To(Succeed())
		}

		Expect(c.Run()).To(Succeed())

		Expect(hall.pings).To(Equal([]string{"h0", "h1", "h2", "h3", "h4"}))
		Expect(porch.pings).To(Equal([]string{
			"p0", "echo",
			"p1", "echo", "echoed",
			"p2", "echo", "echoed",
			"p3", "echo", "echoed",
			"p4", "echo", "echoed",
			"echoed",
		}))
	})
}

var _ = Describe("SerialCoordinator", func() {
	coordinatorBehaviors(func(x *Exchange) Coordinator {
		return NewSerialCoordinator(x)
	})

	It("should run models due at the same time in registration order", func() {
		x := NewExchange()
		hall := newLamp("Hall.Lamp")
		porch := newLamp("Porch.Lamp")
		Expect(x.Register(porch)).To(Succeed())
		Expect(x.Register(hall)).To(Succeed())

		c := NewSerialCoordinator(x)
		hooks := &hookRecord{}
		c.AcceptHook(hooks)

		Expect(c.Schedule("Hall.Lamp", ping(1, "a"))).To(Succeed())
		Expect(c.Schedule("Porch.Lamp", ping(1, "b"))).To(Succeed())

		Expect(c.Run()).To(Succeed())

		Expect(executedURIs(hooks)).To(Equal([]string{"Porch.Lamp", "Hall.Lamp"}))
	})

	It("should not reorder across models by priority", func() {
		x := NewExchange()
		porch := newLamp("Porch.Lamp")

		t := NewTransitionTable()
		t.Add(Rule{From: "IDLE", Kind: kindPing})
		t.Emit(kindPing, func(evt *Event) []*Event {
			return []*Event{MustNewEvent(kindOn, evt.Time(), nil)}
		})
		relay := NewModelBase("Relay", "IDLE", t, kindPing)

		Expect(x.Register(porch)).To(Succeed())
		Expect(x.Register(relay)).To(Succeed())
		Expect(x.Couple("Relay", kindOn, "Porch.Lamp")).To(Succeed())

		c := NewSerialCoordinator(x)
		hooks := &hookRecord{}
		c.AcceptHook(hooks)

		Expect(c.Schedule("Porch.Lamp", ping(1, "a"))).To(Succeed())
		Expect(c.Schedule("Relay", ping(1, "b"))).To(Succeed())

		Expect(c.Run()).To(Succeed())

		var porchKinds []*EventKind
		for _, ctx := range hooks.at(HookPosBeforeEvent) {
			if ctx.Detail.(AtomicModel).URI() == "Porch.Lamp" {
				porchKinds = append(porchKinds, ctx.Item.(*Event).Kind())
			}
		}

		// The higher ranked On arrives after Porch.Lamp ran its ping.
		Expect(porchKinds).To(Equal([]*EventKind{kindPing, kindOn}))
		Expect(porch.Mode()).To(Equal(lampOn))
	})

	It("should panic without an exchange", func() {
		Expect(func() { NewSerialCoordinator(nil) }).To(Panic())
	})
})

var _ = Describe("ParallelCoordinator", func() {
	coordinatorBehaviors(func(x *Exchange) Coordinator {
		return NewParallelCoordinator(x)
	})

	It("should give the same result as the serial coordinator", func() {
		build := func() (*Exchange, []*lamp) {
			x := NewExchange()
			lamps := make([]*lamp, 16)

			for i := range lamps {
				lamps[i] = newLamp(BuildNameWithIndex("Street", "Lamp", i))
				Expect(x.Register(lamps[i])).To(Succeed())
			}

			for i, l := range lamps {
				for t := 0; t < 4; t++ {
					Expect(x.Route(routingOf(l.URI(),
						ping(VTimeInSec(t+i%3), fmt.Sprintf("%d-%d", i, t)),
						ping(VTimeInSec(t), "echo"),
						MustNewEvent(kindOn, VTimeInSec(t), nil),
					))).To(Succeed())
				}
			}

			return x, lamps
		}

		serialX, serialLamps := build()
		Expect(NewSerialCoordinator(serialX).Run()).To(Succeed())

		parallelX, parallelLamps := build()
		Expect(NewParallelCoordinator(parallelX).Run()).To(Succeed())

		for i := range serialLamps {
			Expect(parallelLamps[i].pings).To(Equal(serialLamps[i].pings))
			Expect(parallelLamps[i].Mode()).To(Equal(serialLamps[i].Mode()))
		}
	})
})

func routingOf(uri string, events ...*Event) *Routing {
	r := NewRouting()
	if err := r.Add(uri, events...); err != nil {
		panic(err)
	}

	return r
}
