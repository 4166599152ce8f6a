package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigForModeReturnsEveryDeclaredMode(t *testing.T) {
	for _, mode := range []TestMode{ModeSingle, ModeMulti, ModeAll, ModeMonkey, ModeGuest, ModeBehavior} {
		cfg, ok := ConfigForMode(mode)
		require.True(t, ok, "mode %s should resolve", mode)
		assert.Equal(t, mode, cfg.Mode)
		assert.Greater(t, cfg.MaxSteps, 0)
	}
}

func TestConfigForModeRejectsUnknownMode(t *testing.T) {
	_, ok := ConfigForMode(TestMode("bogus"))
	assert.False(t, ok)
}

func TestBudgetForTierReturnsEveryDeclaredTier(t *testing.T) {
	for _, tier := range []Tier{TierGuest, TierStarter, TierIndie, TierPro, TierAgency} {
		b, ok := BudgetForTier(tier)
		require.True(t, ok, "tier %s should resolve", tier)
		assert.Greater(t, b.MaxLLMCalls, 0)
	}
}

func TestBudgetForTierRejectsUnknownTier(t *testing.T) {
	_, ok := BudgetForTier(Tier("bogus"))
	assert.False(t, ok)
}
