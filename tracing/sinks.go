package tracing

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// LogrusSink writes trace lines into a logrus logger.
type LogrusSink struct {
	entry *logrus.Entry
	level logrus.Level
}

// NewLogrusSink creates a sink that logs every line at the given level. A
// nil logger means the logrus standard logger.
func NewLogrusSink(logger *logrus.Logger, level logrus.Level) *LogrusSink {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &LogrusSink{
		entry: logrus.NewEntry(logger).WithField("source", "trace"),
		level: level,
	}
}

// Trace logs the line.
func (s *LogrusSink) Trace(line string) {
	s.entry.Log(s.level, line)
}

// MemorySink keeps trace lines in memory.
type MemorySink struct {
	lock  sync.Mutex
	lines []string
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Trace stores the line.
func (s *MemorySink) Trace(line string) {
	s.lock.Lock()
	s.lines = append(s.lines, line)
	s.lock.Unlock()
}

// Lines returns a copy of the stored lines.
func (s *MemorySink) Lines() []string {
	s.lock.Lock()
	defer s.lock.Unlock()

	lines := make([]string, len(s.lines))
	copy(lines, s.lines)

	return lines
}

// MultiSink forwards every line to all of its sinks.
type MultiSink []TraceSink

// Trace forwards the line.
func (m MultiSink) Trace(line string) {
	for _, s := range m {
		s.Trace(line)
	}
}
