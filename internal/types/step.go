// step.go — Step Record and per-action outcome (§3).
package types

import "time"

// StepOutcome is the result of executing one Action.
type StepOutcome string

const (
	StepSuccess StepOutcome = "success"
	StepFailure StepOutcome = "failure"
	StepHealed  StepOutcome = "healed"
)

// HealingKind tags how a step was self-healed (§4.11, §8 scenario 6).
type HealingKind string

const (
	HealingAlternativeSelector HealingKind = "alternative_selector"
	HealingVisionMatch         HealingKind = "vision_match"
)

// HealingMetadata records what the Intelligent Retry Layer did to
// recover a failing action.
type HealingMetadata struct {
	Kind             HealingKind `json:"kind"`
	OriginalSelector string      `json:"original_selector"`
	HealedSelector   string      `json:"healed_selector,omitempty"`
	Confidence       float64     `json:"confidence"`
	Attempts         int         `json:"attempts"`
}

// ElementBounds is a single interactive element's bounding box and the
// role it played in a step (click target, analyzed, etc).
type ElementBounds struct {
	Selector string  `json:"selector"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Role     string  `json:"role,omitempty"` // "clicked", "typed", "analyzed", "failed", "healed"
}

// StepRecord is the persisted record of one executed Action (§3).
// Step Records belong to exactly one RunDescriptor and are persisted in
// monotonically increasing Order (§5 ordering guarantee).
type StepRecord struct {
	RunID         RunID            `json:"run_id"`
	Order         int              `json:"order"`
	Action        Action           `json:"action"`
	Outcome       StepOutcome      `json:"outcome"`
	ScreenshotRef string           `json:"screenshot_ref,omitempty"`
	DOMRef        string           `json:"dom_ref,omitempty"`
	Bounds        []ElementBounds  `json:"bounds,omitempty"`
	Healing       *HealingMetadata `json:"healing,omitempty"`
	Error         string           `json:"error,omitempty"`
	StartedAt     time.Time        `json:"started_at"`
	FinishedAt    time.Time        `json:"finished_at"`
}

// RunOutcome is the terminal state of a run (§3, GLOSSARY).
type RunOutcome string

const (
	OutcomeCompleted            RunOutcome = "completed"
	OutcomeCompletedWithLimits  RunOutcome = "completed_with_limits"
	OutcomePausedResumable      RunOutcome = "paused_resumable"
	OutcomeFailedRecoverable    RunOutcome = "failed_recoverable"
	OutcomeFailedUnrecoverable RunOutcome = "failed_unrecoverable"
	OutcomeAbandoned            RunOutcome = "abandoned"
)

// RunSummary is the Sequencer's final report (§6 "Outputs").
type RunSummary struct {
	RunID           RunID      `json:"run_id"`
	Outcome         RunOutcome `json:"outcome"`
	Attempts        int        `json:"attempts"`
	Healed          int        `json:"healed"`
	AICallsUsed     int        `json:"ai_calls_used"`
	VisionCallsUsed int        `json:"vision_calls_used"`
	PopupsResolved  int        `json:"popups_resolved"`
	Steps           []StepRecord `json:"steps"`
	FailureReason   string     `json:"failure_reason,omitempty"`
}
