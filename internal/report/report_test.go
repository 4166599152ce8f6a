package report

import (
	"strings"
	"testing"
	"time"

	"github.com/brennhill/runlattice/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestBuildNarrativeRendersNumberedSteps(t *testing.T) {
	now := time.Now()
	summary := types.RunSummary{
		RunID:   "run1",
		Outcome: types.OutcomeCompleted,
		Steps: []types.StepRecord{
			{Order: 0, Action: types.Action{Kind: types.ActionNavigate, URL: "https://shop.test"}, Outcome: types.StepSuccess, StartedAt: now},
			{Order: 1, Action: types.Action{Kind: types.ActionClick, Selector: "#buy", Description: "buy now"}, Outcome: types.StepSuccess, StartedAt: now.Add(time.Second)},
		},
	}

	out := BuildNarrative(summary, "https://shop.test")
	assert.Contains(t, out, "1. Navigate to: https://shop.test")
	assert.Contains(t, out, "2. Click: \"buy now\" (#buy)")
	assert.Contains(t, out, "Outcome: completed")
}

func TestBuildNarrativeAnnotatesHealedStep(t *testing.T) {
	summary := types.RunSummary{
		RunID:   "run1",
		Outcome: types.OutcomeCompleted,
		Steps: []types.StepRecord{
			{Order: 0, Action: types.Action{Kind: types.ActionClick, Selector: "#new"}, Outcome: types.StepHealed, Healing: &types.HealingMetadata{
				Kind: types.HealingVisionMatch, OriginalSelector: "#old", HealedSelector: "#new",
			}},
		},
	}

	out := BuildNarrative(summary, "")
	assert.Contains(t, out, "healed: #old -> #new via vision_match")
}

func TestBuildNarrativeAnnotatesFailure(t *testing.T) {
	summary := types.RunSummary{
		RunID:   "run1",
		Outcome: types.OutcomeFailedRecoverable,
		Steps: []types.StepRecord{
			{Order: 0, Action: types.Action{Kind: types.ActionClick, Selector: "#missing"}, Outcome: types.StepFailure, Error: "element not found"},
		},
		FailureReason: "step cap reached",
	}

	out := BuildNarrative(summary, "")
	assert.Contains(t, out, "[FAILED: element not found]")
	assert.Contains(t, out, "# Failure: step cap reached")
}

func TestBuildNarrativeHandlesEmptySteps(t *testing.T) {
	summary := types.RunSummary{RunID: "run1", Outcome: types.OutcomeAbandoned}
	out := BuildNarrative(summary, "")
	assert.Contains(t, out, "No steps recorded")
}

func TestBuildPlaywrightScriptEmitsLocatorActions(t *testing.T) {
	summary := types.RunSummary{
		RunID: "run1",
		Steps: []types.StepRecord{
			{Action: types.Action{Kind: types.ActionClick, Selector: "#buy"}, Outcome: types.StepSuccess},
			{Action: types.Action{Kind: types.ActionType, Selector: "#email", Value: "a@b.com"}, Outcome: types.StepSuccess},
			{Action: types.Action{Kind: types.ActionComplete}, Outcome: types.StepSuccess},
		},
	}

	script := BuildPlaywrightScript(summary, "https://shop.test")
	assert.True(t, strings.HasPrefix(script, "import { test, expect } from '@playwright/test';"))
	assert.Contains(t, script, "await page.goto('https://shop.test');")
	assert.Contains(t, script, "await page.locator('#buy').click();")
	assert.Contains(t, script, "await page.locator('#email').fill('a@b.com');")
}

func TestBuildPlaywrightScriptCommentsFailedSteps(t *testing.T) {
	summary := types.RunSummary{
		Steps: []types.StepRecord{
			{Order: 3, Action: types.Action{Kind: types.ActionClick, Selector: "#x"}, Outcome: types.StepFailure, Error: "timeout"},
		},
	}
	script := BuildPlaywrightScript(summary, "")
	assert.Contains(t, script, "// step 3 failed: timeout")
}
