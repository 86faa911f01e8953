package sim

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("EventQueue", func() {
	var queue *EventQueueImpl

	BeforeEach(func() {
		queue = NewEventQueue()
	})

	It("should return nil when empty", func() {
		Expect(queue.Len()).To(Equal(0))
		Expect(queue.Peek()).To(BeNil())
		Expect(queue.Pop()).To(BeNil())
	})

	It("should pop in time order", func() {
		numEvents := 100
		for i := 0; i < numEvents; i++ {
			queue.Push(MustNewEvent(kindOn, VTimeInSec(rand.Float64()), nil))
		}

		now := VTimeInSec(-1)
		for i := 0; i < numEvents; i++ {
			evt := queue.Pop()
			Expect(evt.Time() >= now).To(BeTrue())
			now = evt.Time()
		}

		Expect(queue.Len()).To(Equal(0))
	})

	It("should break ties by priority", func() {
		off := MustNewEvent(kindOff, 1, nil)
		on := MustNewEvent(kindOn, 1, nil)
		later := MustNewEvent(kindOn, 2, nil)

		queue.Push(later)
		queue.Push(off)
		queue.Push(on)

		Expect(queue.Peek()).To(BeIdenticalTo(on))
		Expect(queue.Pop()).To(BeIdenticalTo(on))
		Expect(queue.Pop()).To(BeIdenticalTo(off))
		Expect(queue.Pop()).To(BeIdenticalTo(later))
	})

	It("should keep arrival order for events of the same kind", func() {
		events := make([]*Event, 10)
		for i := range events {
			events[i] = ping(5, "p")
			queue.Push(events[i])
		}

		for i := range events {
			Expect(queue.Pop()).To(BeIdenticalTo(events[i]))
		}
	})
})
