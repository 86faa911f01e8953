package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ModelBase", func() {
	var (
		l     *lamp
		hooks *hookRecord
	)

	BeforeEach(func() {
		l = newLamp("Hall.Lamp")
		hooks = &hookRecord{}
		l.AcceptHook(hooks)
	})

	It("should panic on invalid setups", func() {
		t := NewTransitionTable()
		t.Add(Rule{From: lampOff, Kind: kindOn, To: lampOn})

		Expect(func() { NewModelBase("hall lamp", lampOff, t, kindOn) }).To(Panic())
		Expect(func() { NewModelBase("Hall.Lamp", AnyMode, t, kindOn) }).To(Panic())
		Expect(func() { NewModelBase("Hall.Lamp", "", t, kindOn) }).To(Panic())
		Expect(func() { NewModelBase("Hall.Lamp", lampOff, nil, kindOn) }).To(Panic())
		Expect(func() { NewModelBase("Hall.Lamp", lampOff, t, kindOff) }).To(Panic())
	})

	It("should list imported kinds in order", func() {
		Expect(l.ImportedKinds()).To(Equal(
			[]*EventKind{kindOn, kindOff, kindPing, kindBurn}))
		Expect(l.CanImport(kindPing)).To(BeTrue())
		Expect(l.CanImport(kindStray)).To(BeFalse())
		Expect(l.Name()).To(Equal("Hall.Lamp"))
	})

	Context("when storing input", func() {
		It("should reject events for another model", func() {
			err := l.StoreInput("Porch.Lamp", []*Event{ping(1, "x")})

			Expect(err).To(MatchError(ErrRoutingMismatch))
			Expect(err).To(MatchError(ErrPreconditionViolation))
			Expect(l.PendingInputs()).To(Equal(0))
		})

		It("should reject an empty delivery", func() {
			Expect(l.StoreInput("Hall.Lamp", nil)).
				To(MatchError(ErrPreconditionViolation))
		})

		It("should store nothing if one event is not importable", func() {
			err := l.StoreInput("Hall.Lamp", []*Event{
				ping(1, "fine"),
				MustNewEvent(kindStray, 1, nil),
			})

			Expect(err).To(MatchError(ErrNotImportable))
			Expect(err).To(MatchError(ErrPreconditionViolation))
			Expect(l.PendingInputs()).To(Equal(0))
		})

		It("should append events in order", func() {
			first := ping(1, "first")
			second := ping(1, "second")

			Expect(l.StoreInput("Hall.Lamp", []*Event{first})).To(Succeed())
			Expect(l.StoreInput("Hall.Lamp", []*Event{second})).To(Succeed())

			Expect(l.PendingInputs()).To(Equal(2))
			Expect(l.PopInput()).To(BeIdenticalTo(first))
			Expect(l.PeekInput()).To(BeIdenticalTo(second))
			Expect(hooks.at(HookPosModelInput)).To(HaveLen(2))
		})
	})

	Context("when executing", func() {
		It("should apply the rule of the current mode", func() {
			applied, err := l.Execute(MustNewEvent(kindOn, 2, nil))

			Expect(err).NotTo(HaveOccurred())
			Expect(applied).To(BeTrue())
			Expect(l.Mode()).To(Equal(lampOn))

			last, ok := l.LastTransitionTime()
			Expect(ok).To(BeTrue())
			Expect(last).To(Equal(VTimeInSec(2)))

			transitions := hooks.at(HookPosModelTransition)
			Expect(transitions).To(HaveLen(1))
			Expect(transitions[0].Detail).To(Equal(
				TransitionDetail{From: lampOff, To: lampOn}))
		})

		It("should treat a pair without rule as a no-op", func() {
			applied, err := l.Execute(MustNewEvent(kindOff, 2, nil))

			Expect(err).NotTo(HaveOccurred())
			Expect(applied).To(BeFalse())
			Expect(l.Mode()).To(Equal(lampOff))
			Expect(l.HasChanged()).To(BeFalse())
			Expect(l.pings).To(BeEmpty())

			_, ok := l.LastTransitionTime()
			Expect(ok).To(BeFalse())
			Expect(hooks.at(HookPosModelTransition)).To(BeEmpty())
		})

		It("should fail on kinds it does not import", func() {
			applied, err := l.Execute(MustNewEvent(kindStray, 2, nil))

			Expect(applied).To(BeFalse())
			Expect(err).To(MatchError(ErrNotImportable))
			Expect(err).NotTo(MatchError(ErrOutOfDomain))
		})

		It("should fail on nil events", func() {
			_, err := l.Execute(nil)
			Expect(err).To(MatchError(ErrPreconditionViolation))
		})

		It("should apply AnyMode rules in every mode", func() {
			Expect(l.Execute(ping(1, "off"))).To(BeTrue())
			Expect(l.Execute(MustNewEvent(kindOn, 1, nil))).To(BeTrue())
			Expect(l.Execute(ping(1, "on"))).To(BeTrue())

			Expect(l.pings).To(Equal([]string{"off", "on"}))
		})

		It("should raise the changed signal", func() {
			Expect(l.Execute(ping(1, "x"))).To(BeTrue())

			Expect(l.HasChanged()).To(BeTrue())
			Expect(l.ConsumeChanged()).To(BeTrue())
			Expect(l.ConsumeChanged()).To(BeFalse())

			l.MarkChanged()
			Expect(l.HasChanged()).To(BeTrue())
		})

		It("should not go back in time", func() {
			Expect(l.Execute(MustNewEvent(kindOn, 5, nil))).To(BeTrue())

			_, err := l.Execute(MustNewEvent(kindOff, 3, nil))

			Expect(err).To(MatchError(ErrPreconditionViolation))
			Expect(l.Mode()).To(Equal(lampOn))
		})

		It("should not go back in time without a rule", func() {
			Expect(l.Execute(MustNewEvent(kindOn, 5, nil))).To(BeTrue())

			// ON has no rule for On.
			_, err := l.Execute(MustNewEvent(kindOn, 3, nil))

			Expect(err).To(MatchError(ErrPreconditionViolation))
		})

		It("should wrap effect errors", func() {
			Expect(l.Execute(MustNewEvent(kindOn, 1, nil))).To(BeTrue())

			applied, err := l.Execute(MustNewEvent(kindBurn, 2, nil))

			Expect(applied).To(BeFalse())
			Expect(err).To(MatchError(errBurnt))
			Expect(l.Mode()).To(Equal(lampOn))
		})
	})
})

var _ = Describe("TransitionTable", func() {
	It("should let exact modes shadow AnyMode", func() {
		t := NewTransitionTable()
		t.Add(Rule{From: AnyMode, Kind: kindPing, To: "ANY"})
		t.Add(Rule{From: lampOn, Kind: kindPing, To: "EXACT"})

		r, found := t.Lookup(lampOn, kindPing)
		Expect(found).To(BeTrue())
		Expect(r.To).To(Equal(Mode("EXACT")))

		r, found = t.Lookup(lampOff, kindPing)
		Expect(found).To(BeTrue())
		Expect(r.To).To(Equal(Mode("ANY")))

		_, found = t.Lookup(lampOff, kindOn)
		Expect(found).To(BeFalse())
	})

	It("should panic on duplicated or incomplete rules", func() {
		t := NewTransitionTable()
		t.Add(Rule{From: lampOff, Kind: kindOn})

		Expect(func() { t.Add(Rule{From: lampOff, Kind: kindOn}) }).To(Panic())
		Expect(func() { t.Add(Rule{From: lampOff}) }).To(Panic())
		Expect(func() { t.Add(Rule{Kind: kindOff}) }).To(Panic())
		Expect(func() { t.Emit(kindOn, nil) }).To(Panic())
	})

	It("should list the kinds it mentions", func() {
		t := NewTransitionTable()
		t.Add(Rule{From: lampOff, Kind: kindOn})
		t.Add(Rule{From: lampOn, Kind: kindOn})
		t.Emit(kindPing, func(*Event) []*Event { return nil })

		Expect(t.Kinds()).To(Equal([]*EventKind{kindOn, kindPing}))
	})
})
