// report.go — Reproduction/testability narrative export (ADDED, beyond
// §4.13's scope: a Run Outcome + its Step Records is otherwise opaque
// to anything that isn't replaying events.Event). Two output shapes,
// shared selector/describe helpers, single-pass generation over the
// Step Record slice.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/brennhill/runlattice/internal/types"
)

const maxScriptBytes = 200 * 1024

// BuildNarrative renders summary as a numbered, human-readable
// transcript.
func BuildNarrative(summary types.RunSummary, startURL string) string {
	if len(summary.Steps) == 0 {
		return fmt.Sprintf("# No steps recorded (outcome: %s)\n", summary.Outcome)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Run %s\n", summary.RunID)
	fmt.Fprintf(&b, "# Outcome: %s | %d steps | %d healed | start: %s\n\n",
		summary.Outcome, len(summary.Steps), summary.Healed, startURL)

	var prev time.Time
	stepNum := 0
	for _, st := range summary.Steps {
		writePauseComment(&b, prev, st.StartedAt, "   [%ds pause]\n")
		prev = st.StartedAt

		line := narrativeStep(st)
		if line == "" {
			continue
		}
		stepNum++
		fmt.Fprintf(&b, "%d. %s\n", stepNum, line)
	}

	if summary.FailureReason != "" {
		fmt.Fprintf(&b, "\n# Failure: %s\n", summary.FailureReason)
	}
	return b.String()
}

func narrativeStep(st types.StepRecord) string {
	base := narrativeAction(st.Action)
	if base == "" {
		return ""
	}
	switch {
	case st.Outcome == types.StepHealed && st.Healing != nil:
		return fmt.Sprintf("%s (healed: %s -> %s via %s)", base, st.Healing.OriginalSelector, st.Healing.HealedSelector, st.Healing.Kind)
	case st.Outcome == types.StepFailure:
		return fmt.Sprintf("%s [FAILED: %s]", base, st.Error)
	default:
		return base
	}
}

func narrativeAction(a types.Action) string {
	switch a.Kind {
	case types.ActionNavigate:
		return "Navigate to: " + a.URL
	case types.ActionClick:
		return "Click: " + describeTarget(a)
	case types.ActionType:
		return fmt.Sprintf("Type %q into: %s", a.Value, describeTarget(a))
	case types.ActionScroll:
		return "Scroll"
	case types.ActionWait:
		return fmt.Sprintf("Wait %dms", a.WaitMS)
	case types.ActionAssert:
		return fmt.Sprintf("Assert %q on: %s", a.Predicate, describeTarget(a))
	case types.ActionComplete:
		return "Mark test complete"
	default:
		return ""
	}
}

func describeTarget(a types.Action) string {
	if a.Description != "" {
		return fmt.Sprintf("%q (%s)", a.Description, a.Selector)
	}
	return a.Selector
}

// writePauseComment writes a timing-gap comment when the gap between
// consecutive steps exceeds two seconds.
func writePauseComment(b *strings.Builder, prev, cur time.Time, format string) {
	if prev.IsZero() || cur.Before(prev) {
		return
	}
	gap := cur.Sub(prev)
	if gap > 2*time.Second {
		fmt.Fprintf(b, format, int(gap/time.Second))
	}
}

// BuildPlaywrightScript renders summary's steps as a Playwright test
// script. Selectors are emitted as raw CSS locators since this engine's
// Action carries a single selector string rather than a multi-strategy
// selector map.
func BuildPlaywrightScript(summary types.RunSummary, startURL string) string {
	if len(summary.Steps) == 0 {
		return "// No steps recorded\n"
	}

	var b strings.Builder
	b.WriteString("import { test, expect } from '@playwright/test';\n\n")
	fmt.Fprintf(&b, "test('run %s', async ({ page }) => {\n", escapeJS(string(summary.RunID)))
	if startURL != "" {
		fmt.Fprintf(&b, "  await page.goto('%s');\n", escapeJS(startURL))
	}

	for _, st := range summary.Steps {
		if st.Outcome == types.StepFailure {
			fmt.Fprintf(&b, "  // step %d failed: %s\n", st.Order, escapeJS(st.Error))
			continue
		}
		line := playwrightStep(st.Action)
		if line != "" {
			b.WriteString("  " + line + "\n")
		}
	}

	if summary.FailureReason != "" {
		fmt.Fprintf(&b, "  // %s\n", escapeJS(summary.FailureReason))
	}
	b.WriteString("});\n")

	script := b.String()
	if len(script) > maxScriptBytes {
		script = script[:maxScriptBytes]
	}
	return script
}

func playwrightStep(a types.Action) string {
	switch a.Kind {
	case types.ActionNavigate:
		return fmt.Sprintf("await page.goto('%s');", escapeJS(a.URL))
	case types.ActionClick:
		return fmt.Sprintf("await page.locator('%s').click();", escapeJS(a.Selector))
	case types.ActionType:
		return fmt.Sprintf("await page.locator('%s').fill('%s');", escapeJS(a.Selector), escapeJS(a.Value))
	case types.ActionScroll:
		return "await page.mouse.wheel(0, 400);"
	case types.ActionWait:
		return fmt.Sprintf("await page.waitForTimeout(%d);", a.WaitMS)
	case types.ActionAssert:
		return fmt.Sprintf("await expect(page.locator('%s')).toBeVisible(); // %s", escapeJS(a.Selector), escapeJS(a.Predicate))
	case types.ActionComplete:
		return "// test complete"
	default:
		return ""
	}
}

func escapeJS(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}
