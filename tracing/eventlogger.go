package tracing

import (
	"github.com/sarchlab/devs/sim"
	"github.com/sirupsen/logrus"
)

type uriHolder interface {
	URI() string
}

// EventLogger is a hook that writes one trace line per executed event, per
// applied transition and per step that changed a model output. Attach it to
// a coordinator for executed events and output changes, and to models for
// transitions.
type EventLogger struct {
	logger *ComponentLogger
}

// NewEventLogger returns a new EventLogger which writes through the logger.
func NewEventLogger(logger *ComponentLogger) *EventLogger {
	return &EventLogger{logger: logger}
}

// Func writes the event information into the logger.
func (h *EventLogger) Func(ctx sim.HookCtx) {
	evt, ok := ctx.Item.(*sim.Event)
	if !ok {
		return
	}

	switch ctx.Pos {
	case sim.HookPosBeforeEvent:
		m, ok := ctx.Detail.(uriHolder)
		if !ok {
			return
		}

		h.log(m.URI(), "%.10f, execute %s", evt.Time(), evt)
	case sim.HookPosAfterEvent:
		detail, ok := ctx.Detail.(sim.StepDetail)
		if !ok || !detail.Changed || detail.Model == nil {
			return
		}

		h.log(detail.Model.URI(), "%.10f, output changed", evt.Time())
	case sim.HookPosModelTransition:
		m, ok := ctx.Domain.(uriHolder)
		if !ok {
			return
		}

		detail, _ := ctx.Detail.(sim.TransitionDetail)
		h.log(m.URI(), "%.10f, %s -> %s on %s",
			evt.Time(), detail.From, detail.To, evt.Kind())
	}
}

func (h *EventLogger) log(uri, format string, args ...any) {
	if err := h.logger.LogMessagef(uri, format, args...); err != nil {
		logrus.Errorf("event logger: %v", err)
	}
}
