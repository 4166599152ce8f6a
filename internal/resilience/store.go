package resilience

import (
	"sync"

	"go.uber.org/zap"
)

// Store is the process-wide, single-writer Breaker registry (§5 "Status
// Registry, AI Budget Store, Circuit Breaker Store... must be race-free;
// never expose raw maps to concurrent readers/writers"): one
// mutex-guarded map per cross-run concern.
type Store struct {
	mu       sync.Mutex
	log      *zap.Logger
	onChange func(service string, from, to State)
	breakers map[string]*Breaker
}

// NewStore constructs an empty Store. onChange, if non-nil, is attached
// to every breaker the Store creates (§4.4 "state change events are
// published for observability").
func NewStore(log *zap.Logger, onChange func(service string, from, to State)) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{log: log, onChange: onChange, breakers: make(map[string]*Breaker)}
}

// Get returns the breaker for service, creating it with policy if absent.
func (s *Store) Get(service string, policy Policy) *Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.breakers[service]
	if !ok {
		b = New(service, policy, s.log, s.onChange)
		s.breakers[service] = b
	}
	return b
}

// Reset recreates the breaker for service (§4.4 "manual reset(service)
// recreates the breaker").
func (s *Store) Reset(service string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.breakers[service]; ok {
		b.Reset()
	}
}

// HealthSnapshot is one service's breaker state for a health/admin endpoint.
type HealthSnapshot struct {
	Service string
	State   State
}

// Health returns a snapshot of every known breaker's state.
func (s *Store) Health() []HealthSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]HealthSnapshot, 0, len(s.breakers))
	for name, b := range s.breakers {
		out = append(out, HealthSnapshot{Service: name, State: b.State()})
	}
	return out
}
