// budget.go — AI Budget Manager (C5, §4.5). Keyed by parent-run-id,
// tier-aware LLM/vision call caps with NORMAL/DEGRADED/EXHAUSTED state,
// with JSON snapshot/restore so a worker restart doesn't lose a run's
// accumulated usage.
package budget

import (
	"encoding/json"
	"sync"

	"github.com/brennhill/runlattice/internal/types"
)

// State is the AI Budget's state machine value (§4.5).
type State string

const (
	StateNormal    State = "NORMAL"
	StateDegraded  State = "DEGRADED"
	StateExhausted State = "EXHAUSTED"
)

// degradedUsageFraction is the ≥70% LLM-usage degradation trigger (§4.5).
const degradedUsageFraction = 0.7

// Budget is one parent-run's AI Budget counters.
type Budget struct {
	Tier           types.Tier
	MaxLLMCalls    int
	MaxVisionCalls int
	UsedLLM        int
	UsedVision     int
	RateLimitHits  int
	State          State
}

// Overrides optionally replaces the tier's default caps (§4.5
// getOrCreate(parentRun, tier, optionalOverrides)).
type Overrides struct {
	MaxLLMCalls    *int
	MaxVisionCalls *int
}

func newBudget(tier types.Tier, overrides *Overrides) *Budget {
	caps, _ := types.BudgetForTier(tier)
	b := &Budget{
		Tier:           tier,
		MaxLLMCalls:    caps.MaxLLMCalls,
		MaxVisionCalls: caps.MaxVisionCalls,
		State:          StateNormal,
	}
	if overrides != nil {
		if overrides.MaxLLMCalls != nil {
			b.MaxLLMCalls = *overrides.MaxLLMCalls
		}
		if overrides.MaxVisionCalls != nil {
			b.MaxVisionCalls = *overrides.MaxVisionCalls
		}
	}
	return b
}

// recomputeState applies §4.5's state function after every record:
// LLM-used >= max OR vision-used >= max => EXHAUSTED; else (LLM-used/max
// >= 0.7) OR rate-limit-hits >= 1 => DEGRADED; else NORMAL.
func (b *Budget) recomputeState() {
	if b.UsedLLM >= b.MaxLLMCalls || b.UsedVision >= b.MaxVisionCalls {
		b.State = StateExhausted
		return
	}
	usageFraction := 0.0
	if b.MaxLLMCalls > 0 {
		usageFraction = float64(b.UsedLLM) / float64(b.MaxLLMCalls)
	}
	if usageFraction >= degradedUsageFraction || b.RateLimitHits >= 1 {
		b.State = StateDegraded
		return
	}
	b.State = StateNormal
}

// Manager is the process-wide AI Budget Store, keyed by parent-run-id
// (§5 "process-wide; mutations must be race-free").
type Manager struct {
	mu      sync.Mutex
	budgets map[string]*Budget
}

// NewManager constructs an empty Manager.
func NewManager() *Manager {
	return &Manager{budgets: make(map[string]*Budget)}
}

// GetOrCreate returns the Budget for parentRun, creating it from tier
// defaults (with optional overrides) if absent.
func (m *Manager) GetOrCreate(parentRun string, tier types.Tier, overrides *Overrides) *Budget {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.budgets[parentRun]
	if !ok {
		b = newBudget(tier, overrides)
		m.budgets[parentRun] = b
	}
	copy := *b
	return &copy
}

// CanMakeLLMCall reports whether parentRun may make another LLM call
// (§4.5 canMakeLLMCall).
func (m *Manager) CanMakeLLMCall(parentRun string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.budgets[parentRun]
	if !ok {
		return true
	}
	return b.State != StateExhausted
}

// CanMakeVisionCall reports whether parentRun may make another vision
// call. A critical call may proceed even while EXHAUSTED, as long as
// used-vision has not itself reached the cap (§4.5 "Critical vision
// calls may consume remaining budget even when EXHAUSTED").
func (m *Manager) CanMakeVisionCall(parentRun string, critical bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.budgets[parentRun]
	if !ok {
		return true
	}
	if b.UsedVision >= b.MaxVisionCalls {
		return false
	}
	if critical {
		return true
	}
	return b.State != StateExhausted
}

// RecordLLMCall increments the LLM-used counter and recomputes state.
func (m *Manager) RecordLLMCall(parentRun string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.budgets[parentRun]
	if !ok {
		return
	}
	b.UsedLLM++
	b.recomputeState()
}

// RecordVisionCall increments the vision-used counter and recomputes state.
func (m *Manager) RecordVisionCall(parentRun string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.budgets[parentRun]
	if !ok {
		return
	}
	b.UsedVision++
	b.recomputeState()
}

// RecordRateLimitHit increments the rate-limit-hit counter, forcing
// DEGRADED (unless already EXHAUSTED) per §4.5 ("two rate-limit hits
// independently force DEGRADED" — the first already does, per the state
// function's `>= 1` threshold; this tracks both for observability).
func (m *Manager) RecordRateLimitHit(parentRun string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.budgets[parentRun]
	if !ok {
		return
	}
	b.RateLimitHits++
	b.recomputeState()
}

// Snapshot returns a JSON-serializable copy of parentRun's Budget, or
// ok=false if unknown.
func (m *Manager) Snapshot(parentRun string) (Budget, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.budgets[parentRun]
	if !ok {
		return Budget{}, false
	}
	return *b, true
}

// Marshal serializes parentRun's Budget for worker-restart persistence
// (§4.5 "Snapshot/restore enables worker-restart recovery").
func (m *Manager) Marshal(parentRun string) ([]byte, error) {
	snap, ok := m.Snapshot(parentRun)
	if !ok {
		return nil, ErrUnknownParentRun(parentRun)
	}
	return json.Marshal(snap)
}

// Restore installs a previously-marshaled Budget under parentRun,
// overwriting any existing entry.
func (m *Manager) Restore(parentRun string, data []byte) error {
	var b Budget
	if err := json.Unmarshal(data, &b); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.budgets[parentRun] = &b
	return nil
}

// Forget removes parentRun's Budget, called when the parent run completes.
func (m *Manager) Forget(parentRun string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.budgets, parentRun)
}
