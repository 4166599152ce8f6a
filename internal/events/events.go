// events.go — Event Sink (§6: "accepting records {timestamp, runId,
// stepNumber, state, message, metadata}"), a plain struct rather than a
// wire envelope since nothing downstream of the Sequencer speaks a
// remote protocol.
package events

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event is one structured record the Sequencer (and the components it
// drives) emits (§6).
type Event struct {
	Timestamp  time.Time      `json:"timestamp"`
	RunID      string         `json:"run_id"`
	StepNumber int            `json:"step_number"`
	State      string         `json:"state"`
	Message    string         `json:"message"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Sink accepts Events. Implementations must not block the caller for
// long — the Sequencer emits on the hot path of every phase transition.
type Sink interface {
	Emit(e Event)
}

// MemorySink buffers every Event it receives, for tests and the CLI's
// end-of-run transcript.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

// NewMemorySink constructs an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

// Events returns a copy of every Event recorded so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// LoggingSink mirrors every Event to a structured logger (e.g. for an
// admin tail or a sidecar log shipper).
type LoggingSink struct {
	log *zap.Logger
}

// NewLoggingSink constructs a LoggingSink. log must not be nil.
func NewLoggingSink(log *zap.Logger) *LoggingSink {
	return &LoggingSink{log: log}
}

func (s *LoggingSink) Emit(e Event) {
	fields := make([]zap.Field, 0, 5+len(e.Metadata))
	fields = append(fields,
		zap.String("run_id", e.RunID),
		zap.Int("step", e.StepNumber),
		zap.String("state", e.State),
		zap.Time("timestamp", e.Timestamp),
	)
	for k, v := range e.Metadata {
		fields = append(fields, zap.Any(k, v))
	}
	s.log.Info(e.Message, fields...)
}

// MultiSink fans Emit out to every wrapped Sink, so a run can stream to
// both a durable sink and an in-process transcript simultaneously.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink constructs a MultiSink over sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Emit(e Event) {
	for _, s := range m.sinks {
		s.Emit(e)
	}
}
