package application

import (
	"fmt"
	"log"
	"sync"
)

// LogSink receives human-readable run events.
type LogSink interface {
	Append(event string)
}

// RunLog is an append-only, concurrency-safe event log for one run.
type RunLog struct {
	mu      sync.Mutex
	entries []string
	logger  *log.Logger
	prefix  string
}

// NewRunLog constructs a RunLog. A non-nil logger receives a copy of every event.
func NewRunLog(logger *log.Logger, runID string) *RunLog {
	prefix := ""
	if runID != "" {
		prefix = "run_id=" + runID + " "
	}
	return &RunLog{logger: logger, prefix: prefix}
}

// Append records one event.
func (l *RunLog) Append(event string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.entries = append(l.entries, event)
	l.mu.Unlock()
	if l.logger != nil {
		l.logger.Print(l.prefix + event)
	}
}

// Appendf formats and records one event.
func (l *RunLog) Appendf(format string, args ...any) {
	l.Append(fmt.Sprintf(format, args...))
}

// Entries returns a snapshot of all events in append order.
func (l *RunLog) Entries() []string {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

type discardSink struct{}

func (discardSink) Append(string) {}

func sinkOrDiscard(sink LogSink) LogSink {
	if sink == nil {
		return discardSink{}
	}
	return sink
}

func appendf(sink LogSink, format string, args ...any) {
	sink.Append(fmt.Sprintf(format, args...))
}
