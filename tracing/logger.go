// Package tracing forwards model diagnostics to trace sinks owned by the
// host of a simulation.
package tracing

import (
	"fmt"
	"strings"

	"github.com/sarchlab/devs/sim"
)

// DefaultSeparator separates the model URI from the message in a trace line.
const DefaultSeparator = ":"

// A TraceSink receives one complete trace line at a time. The sink is owned
// by whoever hosts the simulation, and is passed to the kernel explicitly.
type TraceSink interface {
	Trace(line string)
}

// A ComponentLogger turns (model URI, message) pairs into trace lines of the
// form "<modelURI><separator><message>".
type ComponentLogger struct {
	sink      TraceSink
	separator string
}

// NewComponentLogger creates a ComponentLogger that writes into the sink
// using the DefaultSeparator.
func NewComponentLogger(sink TraceSink) *ComponentLogger {
	return NewComponentLoggerWithSeparator(sink, DefaultSeparator)
}

// NewComponentLoggerWithSeparator creates a ComponentLogger with a custom
// separator. It panics if the sink is nil or the separator is empty.
func NewComponentLoggerWithSeparator(
	sink TraceSink,
	separator string,
) *ComponentLogger {
	if sink == nil {
		panic("component logger requires a trace sink")
	}

	if separator == "" {
		panic("component logger separator must not be empty")
	}

	return &ComponentLogger{
		sink:      sink,
		separator: separator,
	}
}

// Separator returns the separator placed between URI and message.
func (l *ComponentLogger) Separator() string {
	return l.separator
}

// LogMessage writes one trace line for the model. The URI must not be empty
// and must not contain the separator, or readers splitting the line would
// attribute the message to the wrong model.
func (l *ComponentLogger) LogMessage(modelURI, message string) error {
	if err := l.CheckURI(modelURI); err != nil {
		return err
	}

	l.sink.Trace(modelURI + l.separator + message)

	return nil
}

// CheckURI tells if the logger can write lines for the model URI.
func (l *ComponentLogger) CheckURI(modelURI string) error {
	if modelURI == "" {
		return fmt.Errorf("%w: model URI must not be empty",
			sim.ErrPreconditionViolation)
	}

	if strings.Contains(modelURI, l.separator) {
		return fmt.Errorf("%w: model URI %q contains separator %q",
			sim.ErrPreconditionViolation, modelURI, l.separator)
	}

	return nil
}

// LogMessagef is like LogMessage with a formatted message.
func (l *ComponentLogger) LogMessagef(
	modelURI, format string,
	args ...any,
) error {
	return l.LogMessage(modelURI, fmt.Sprintf(format, args...))
}

// SplitLine splits a trace line written with the separator back into model
// URI and message.
func SplitLine(line, separator string) (modelURI, message string, ok bool) {
	return strings.Cut(line, separator)
}
