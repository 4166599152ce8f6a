package budget

import (
	"testing"

	"github.com/brennhill/runlattice/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuestTierRejects11thLLMCallAnd2ndVisionCall(t *testing.T) {
	m := NewManager()
	m.GetOrCreate("parent1", types.TierGuest, nil)

	for i := 0; i < 10; i++ {
		require.True(t, m.CanMakeLLMCall("parent1"))
		m.RecordLLMCall("parent1")
	}
	assert.False(t, m.CanMakeLLMCall("parent1"))

	// Vision is checked on a separate parent run: reaching the LLM cap
	// above already made parent1 EXHAUSTED, which blocks non-critical
	// vision calls on its own.
	m.GetOrCreate("parent2", types.TierGuest, nil)
	require.True(t, m.CanMakeVisionCall("parent2", false))
	m.RecordVisionCall("parent2")
	assert.False(t, m.CanMakeVisionCall("parent2", false))
}

func TestCriticalVisionCallAllowedUntilCapReached(t *testing.T) {
	m := NewManager()
	m.GetOrCreate("parent1", types.TierGuest, nil)

	m.RecordVisionCall("parent1") // used=1, max=1 → state becomes EXHAUSTED
	snap, _ := m.Snapshot("parent1")
	assert.Equal(t, StateExhausted, snap.State)

	assert.False(t, m.CanMakeVisionCall("parent1", true), "critical call must still respect the hard used>=max cap")
}

func TestStateTransitionsToDegradedAt70PercentLLMUsage(t *testing.T) {
	m := NewManager()
	maxLLM := 10
	m.GetOrCreate("parent1", types.TierGuest, &Overrides{MaxLLMCalls: &maxLLM})

	for i := 0; i < 6; i++ {
		m.RecordLLMCall("parent1")
	}
	snap, _ := m.Snapshot("parent1")
	assert.Equal(t, StateNormal, snap.State)

	m.RecordLLMCall("parent1") // 7/10 = 0.7
	snap, _ = m.Snapshot("parent1")
	assert.Equal(t, StateDegraded, snap.State)
}

func TestRateLimitHitForcesDegraded(t *testing.T) {
	m := NewManager()
	m.GetOrCreate("parent1", types.TierPro, nil)
	m.RecordRateLimitHit("parent1")
	snap, _ := m.Snapshot("parent1")
	assert.Equal(t, StateDegraded, snap.State)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	m := NewManager()
	m.GetOrCreate("parent1", types.TierIndie, nil)
	m.RecordLLMCall("parent1")
	m.RecordVisionCall("parent1")

	data, err := m.Marshal("parent1")
	require.NoError(t, err)

	m2 := NewManager()
	require.NoError(t, m2.Restore("parent1", data))

	before, _ := m.Snapshot("parent1")
	after, _ := m2.Snapshot("parent1")
	assert.Equal(t, before, after)
}

func TestForgetRemovesBudget(t *testing.T) {
	m := NewManager()
	m.GetOrCreate("parent1", types.TierGuest, nil)
	m.Forget("parent1")
	assert.True(t, m.CanMakeLLMCall("parent1"), "unknown parent run should default to allowed")
}
