package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"

	"github.com/sarchlab/devs/sim"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var (
	lampMode  sim.Mode = "DARK"
	lampLit   sim.Mode = "LIT"
	lampPress          = sim.NewEventKind("Press", sim.WithoutPayload())
)

type sampleLamp struct {
	*sim.ModelBase

	presses int
}

func newSampleLamp(uri string) *sampleLamp {
	l := &sampleLamp{}

	t := sim.NewTransitionTable()
	t.Add(sim.Rule{
		From: lampMode,
		Kind: lampPress,
		To:   lampLit,
		Effect: func(*sim.Event) error {
			l.presses++
			return nil
		},
	})

	l.ModelBase = sim.NewModelBase(uri, lampMode, t, lampPress)

	return l
}

var _ = Describe("Monitor", func() {
	var (
		m           *Monitor
		coordinator *sim.SerialCoordinator
		router      http.Handler
	)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		router.ServeHTTP(rec, req)
		return rec
	}

	BeforeEach(func() {
		x := sim.NewExchange()
		Expect(x.Register(newSampleLamp("Hall.Lamp"))).To(Succeed())
		Expect(x.Register(newSampleLamp("Porch.Lamp"))).To(Succeed())

		coordinator = sim.NewSerialCoordinator(x)

		m = NewMonitor()
		m.RegisterCoordinator(coordinator)
		router = m.Router()
	})

	It("should list models with their modes and queue levels", func() {
		Expect(coordinator.Schedule("Porch.Lamp",
			sim.MustNewEvent(lampPress, 1, nil))).To(Succeed())

		rec := get("/api/list_models")
		Expect(rec.Code).To(Equal(http.StatusOK))

		var rsp []modelRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp).To(Equal([]modelRsp{
			{URI: "Hall.Lamp", Mode: "DARK"},
			{URI: "Porch.Lamp", Mode: "DARK", Pending: 1},
		}))
	})

	It("should sort queues by level", func() {
		Expect(coordinator.Schedule("Porch.Lamp",
			sim.MustNewEvent(lampPress, 1, nil),
			sim.MustNewEvent(lampPress, 2, nil))).To(Succeed())

		rec := get("/api/hangdetector/queues?limit=1")
		Expect(rec.Code).To(Equal(http.StatusOK))

		var rsp []queueRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp).To(Equal([]queueRsp{{Model: "Porch.Lamp", Level: 2}}))
	})

	It("should reject a bad limit", func() {
		rec := get("/api/hangdetector/queues?limit=abc")
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("should report the current time", func() {
		Expect(coordinator.Schedule("Hall.Lamp",
			sim.MustNewEvent(lampPress, 2.5, nil))).To(Succeed())
		Expect(coordinator.Run()).To(Succeed())

		rec := get("/api/now")

		var rsp struct{ Now float64 }
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.Now).To(Equal(2.5))
	})

	It("should serialize a model", func() {
		rec := get("/api/model/Hall.Lamp")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.Len()).NotTo(BeZero())
	})

	It("should return 404 for unknown models", func() {
		rec := get("/api/model/Attic.Lamp")
		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("should reject a malformed field request", func() {
		rec := get("/api/field/" + url.PathEscape("{not json"))
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("should count executed events on a progress bar", func() {
		bar := m.CreateProgressBar("events", 2)
		coordinator.AcceptHook(bar)

		Expect(coordinator.Schedule("Hall.Lamp",
			sim.MustNewEvent(lampPress, 1, nil),
			sim.MustNewEvent(lampPress, 2, nil))).To(Succeed())
		Expect(coordinator.Run()).To(Succeed())

		finished, inProgress := bar.Snapshot()
		Expect(finished).To(Equal(uint64(2)))
		Expect(inProgress).To(BeZero())

		rec := get("/api/progress")
		Expect(rec.Body.String()).To(ContainSubstring(`"name":"events"`))

		m.CompleteProgressBar(bar)
		rec = get("/api/progress")
		Expect(rec.Body.String()).To(Equal("[]"))
	})

	It("should ignore low port numbers", func() {
		m.WithPortNumber(80)
		Expect(m.portNumber).To(Equal(0))

		m.WithPortNumber(8080)
		Expect(m.portNumber).To(Equal(8080))
	})
})
