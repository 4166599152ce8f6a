// testmode_config.go — Test-Mode Config: the per-mode constant table
// (§3). Centralized here rather than scattered across call sites, per
// §9's design note ("centralize them in Test-Mode Config").
package types

import "time"

// ModelDefaults pins the default text/vision model name for a mode, so
// call sites never hardcode a model string.
type ModelDefaults struct {
	TextModel     string
	VisionModel   string
	Temperature   float32
	VisionEnabled bool
}

// TestModeConfig is the constant configuration for one TestMode.
type TestModeConfig struct {
	Mode              TestMode
	MaxSteps          int
	PhaseTimeout      time.Duration
	DiagnosisRequired bool
	RequiresAuth      bool
	Models            ModelDefaults
}

// Per-action timeout defaults (§5).
const (
	TimeoutAction          = 30 * time.Second
	TimeoutNavigation      = 60 * time.Second
	TimeoutInput           = 10 * time.Second
	TimeoutScreenshot      = 5 * time.Second
	TimeoutScreenshotUp    = 15 * time.Second
	TimeoutAI              = 30 * time.Second
	TimeoutVision          = 45 * time.Second
)

// testModeConfigs is the authoritative Test-Mode Config table (§3).
var testModeConfigs = map[TestMode]TestModeConfig{
	ModeSingle: {
		Mode: ModeSingle, MaxSteps: 50, PhaseTimeout: 120 * time.Second,
		DiagnosisRequired: true, RequiresAuth: false,
		Models: ModelDefaults{TextModel: "gpt-4o-mini", VisionModel: "gpt-4o-mini", Temperature: 0.2, VisionEnabled: true},
	},
	ModeMulti: {
		Mode: ModeMulti, MaxSteps: 75, PhaseTimeout: 180 * time.Second,
		DiagnosisRequired: true, RequiresAuth: false,
		Models: ModelDefaults{TextModel: "gpt-4o-mini", VisionModel: "gpt-4o-mini", Temperature: 0.2, VisionEnabled: true},
	},
	ModeAll: {
		Mode: ModeAll, MaxSteps: 100, PhaseTimeout: 300 * time.Second,
		DiagnosisRequired: true, RequiresAuth: true,
		Models: ModelDefaults{TextModel: "gpt-4o", VisionModel: "gpt-4o", Temperature: 0.2, VisionEnabled: true},
	},
	ModeMonkey: {
		Mode: ModeMonkey, MaxSteps: 50, PhaseTimeout: 120 * time.Second,
		DiagnosisRequired: false, RequiresAuth: false,
		Models: ModelDefaults{TextModel: "gpt-4o-mini", VisionModel: "gpt-4o-mini", Temperature: 0.6, VisionEnabled: false},
	},
	ModeGuest: {
		Mode: ModeGuest, MaxSteps: 25, PhaseTimeout: 60 * time.Second,
		DiagnosisRequired: false, RequiresAuth: false,
		Models: ModelDefaults{TextModel: "gpt-4o-mini", VisionModel: "gpt-4o-mini", Temperature: 0.2, VisionEnabled: false},
	},
	ModeBehavior: {
		Mode: ModeBehavior, MaxSteps: 100, PhaseTimeout: 300 * time.Second,
		DiagnosisRequired: true, RequiresAuth: true,
		Models: ModelDefaults{TextModel: "gpt-4o", VisionModel: "gpt-4o", Temperature: 0.3, VisionEnabled: true},
	},
}

// ConfigForMode returns the Test-Mode Config for mode, and ok=false if
// mode is not recognized.
func ConfigForMode(mode TestMode) (TestModeConfig, bool) {
	c, ok := testModeConfigs[mode]
	return c, ok
}

// TierBudget is the per-tier AI Budget default (§3).
type TierBudget struct {
	MaxLLMCalls    int
	MaxVisionCalls int
}

var tierBudgets = map[Tier]TierBudget{
	TierGuest:   {MaxLLMCalls: 10, MaxVisionCalls: 1},
	TierStarter: {MaxLLMCalls: 15, MaxVisionCalls: 2},
	TierIndie:   {MaxLLMCalls: 20, MaxVisionCalls: 3},
	TierPro:     {MaxLLMCalls: 30, MaxVisionCalls: 5},
	TierAgency:  {MaxLLMCalls: 30, MaxVisionCalls: 5},
}

// BudgetForTier returns the default AI Budget caps for tier, and
// ok=false if the tier is unrecognized.
func BudgetForTier(tier Tier) (TierBudget, bool) {
	b, ok := tierBudgets[tier]
	return b, ok
}
