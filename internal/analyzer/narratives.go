package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/brennhill/runlattice/internal/model"
	"github.com/brennhill/runlattice/internal/tokens"
	"github.com/brennhill/runlattice/internal/types"
)

const testabilitySystemPrompt = `You are a QA analyst producing a structured testability narrative for an automated test run. Respond with strict JSON with keys: what, how, why, result, testable_components, non_testable_components, high_risk_areas.`

// AnalyzeTestability returns a What/How/Why/Result narrative plus
// structured testable/non-testable lists (§4.6 analyzeTestability).
func (a *Analyzer) AnalyzeTestability(ctx context.Context, vc types.VisionContext, goal string, params model.CallParams) (types.TestabilityNarrative, error) {
	elementLines := make([]string, 0, len(vc.Elements))
	for _, e := range vc.Elements {
		elementLines = append(elementLines, fmt.Sprintf("%s selector=%s text=%q hidden=%v", e.Type, e.Selector, e.Text, e.IsHidden))
	}
	accLines := make([]string, 0, len(vc.Accessibility))
	sorted := sortAccessibilityBySeverity(vc.Accessibility)
	for _, f := range sorted {
		accLines = append(accLines, fmt.Sprintf("%s: %s", f.Selector, f.Issue))
	}

	prompt, err := tokens.BuildBoundedPrompt(tokens.PromptInputs{
		Base:     "Produce a testability narrative for this page given its interactive elements and accessibility flags.",
		Goal:     goal,
		Elements: elementLines,
		History:  accLines,
	}, tokens.CallTestability)
	if err != nil {
		return types.TestabilityNarrative{}, err
	}

	resp, err := a.text.Call(ctx, params, testabilitySystemPrompt, prompt)
	if err != nil {
		return types.TestabilityNarrative{}, err
	}

	var narrative types.TestabilityNarrative
	if err := json.Unmarshal([]byte(resp.Text), &narrative); err != nil {
		return types.TestabilityNarrative{}, fmt.Errorf("analyzer: parse testability narrative: %w", err)
	}
	return narrative, nil
}

const errorAnalysisSystemPrompt = `You are diagnosing a failed automated-test step. Respond with strict JSON with keys: root_cause, prioritized_fixes (array of strings).`

// AnalyzeError returns a root-cause-plus-fixes diagnosis for err in the
// given context description (§4.6 analyzeError).
func (a *Analyzer) AnalyzeError(ctx context.Context, stepErr error, context string, params model.CallParams) (types.ErrorAnalysis, error) {
	prompt, err := tokens.BuildBoundedPrompt(tokens.PromptInputs{
		Base: "Diagnose this automated-test failure.",
		Goal: stepErr.Error(),
		History: []string{context},
	}, tokens.CallErrorAnalysis)
	if err != nil {
		return types.ErrorAnalysis{}, err
	}

	resp, callErr := a.text.Call(ctx, params, errorAnalysisSystemPrompt, prompt)
	if callErr != nil {
		return types.ErrorAnalysis{}, callErr
	}

	var analysis types.ErrorAnalysis
	if jsonErr := json.Unmarshal([]byte(resp.Text), &analysis); jsonErr != nil {
		return types.ErrorAnalysis{}, fmt.Errorf("analyzer: parse error analysis: %w", jsonErr)
	}
	return analysis, nil
}

const synthesisSystemPrompt = `You are summarizing observed page state for an automated-test run. Respond with strict JSON with keys: summary, issues (array), recommendations (array).`

// SynthesisInputs are the raw signals §4.6 synthesizeContext merges.
type SynthesisInputs struct {
	DOM           string
	ConsoleLogs   []string
	NetworkErrors []string
	Goal          string
}

// SynthesizeContext merges DOM/console/network signals into a summary
// plus issues/recommendations (§4.6 synthesizeContext).
func (a *Analyzer) SynthesizeContext(ctx context.Context, in SynthesisInputs, params model.CallParams) (types.SynthesizedContext, error) {
	history := append(append([]string{}, in.ConsoleLogs...), in.NetworkErrors...)
	prunedDOM := tokens.PruneDOM(in.DOM, 2000)

	prompt, err := tokens.BuildBoundedPrompt(tokens.PromptInputs{
		Base:    "Synthesize the current page context from its DOM, console logs, and network errors.",
		Goal:    in.Goal,
		History: history,
		DOM:     prunedDOM,
	}, tokens.CallSynthesis)
	if err != nil {
		return types.SynthesizedContext{}, err
	}

	resp, callErr := a.text.Call(ctx, params, synthesisSystemPrompt, prompt)
	if callErr != nil {
		return types.SynthesizedContext{}, callErr
	}

	var synthesized types.SynthesizedContext
	if jsonErr := json.Unmarshal([]byte(resp.Text), &synthesized); jsonErr != nil {
		return types.SynthesizedContext{}, fmt.Errorf("analyzer: parse synthesis: %w", jsonErr)
	}
	return synthesized, nil
}

// summarizeLines joins lines with a cap, used when building compact log
// excerpts for prompts that don't need the full history.
func summarizeLines(lines []string, max int) string {
	if len(lines) > max {
		lines = lines[len(lines)-max:]
	}
	return strings.Join(lines, "\n")
}
