// generator.go — Action Generator (C7, §4.7). Picks the single next UI
// test action: a learned-action store lookup first, falling back to an
// LLM planning call when no reliable learned action exists.
package actiongen

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/brennhill/runlattice/internal/model"
	"github.com/brennhill/runlattice/internal/tokens"
	"github.com/brennhill/runlattice/internal/types"
	"github.com/brennhill/runlattice/internal/util"
	"go.uber.org/zap"
)

// reliabilityThreshold is the minimum reliability a learned action must
// carry to short-circuit LLM planning (§4.7 step 1).
const reliabilityThreshold = 0.8

// browserQuirksNote is appended to every planning prompt (§4.7 step 2
// "browser quirks note").
const browserQuirksNote = "Note: some browsers delay pointer-events on recently-animated elements; prefer waiting for an element's own state over fixed sleeps."

const planningSystemPrompt = `You are planning the single next UI test action. Hard rules: don't emit wait or complete unless truly necessary; prefer interactive actions (click, type) over passive ones; use precise locator syntax matching the provided selectors exactly. Respond with strict JSON matching the Action shape: {"kind":"click|type|scroll|navigate|wait|assert|complete","selector":"","value":"","url":"","wait_ms":0,"predicate":"","description":"","confidence":0.0}.`

// Generator is the Action Generator.
type Generator struct {
	text  *model.Client
	store Store
	log   *zap.Logger
}

// New constructs a Generator. store may be nil to skip the heuristic
// lookup entirely (always fall through to LLM planning).
func New(text *model.Client, store Store, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{text: text, store: store, log: log}
}

// Tracking optionally identifies the project for the learned-actions
// lookup (§4.7 "If the run supplies a project-id...").
type Tracking struct {
	ProjectID string
}

// GenerateAction returns the single next Action: a learned-action
// heuristic hit if one exists above the reliability threshold,
// otherwise an LLM planning call (§4.7).
func (g *Generator) GenerateAction(ctx context.Context, vc types.VisionContext, history []string, goal, pageURL string, tracking *Tracking, params model.CallParams) (types.Action, error) {
	if tracking != nil && tracking.ProjectID != "" && g.store != nil && len(vc.Elements) > 0 {
		hash := ComponentHash(pageURL, vc.Elements[0].Selector)
		if learned, ok, err := g.store.Get(ctx, tracking.ProjectID, hash); err == nil && ok && learned.Reliability >= reliabilityThreshold {
			util.SafeGo(func() { g.store.RecordReuse(context.Background(), tracking.ProjectID, hash) })
			return learned.Action, nil
		}
	}

	return g.planWithLLM(ctx, vc, history, goal, params)
}

func (g *Generator) planWithLLM(ctx context.Context, vc types.VisionContext, history []string, goal string, params model.CallParams) (types.Action, error) {
	elementLines := make([]string, 0, len(vc.Elements))
	for _, e := range vc.Elements {
		elementLines = append(elementLines, fmt.Sprintf("%s selector=%s text=%q required=%v", e.Type, e.Selector, e.Text, e.IsRequired))
	}

	prompt, err := tokens.BuildBoundedPrompt(tokens.PromptInputs{
		Base:     planningSystemPrompt + "\n" + browserQuirksNote,
		Goal:     goal,
		Elements: elementLines,
		History:  history,
	}, tokens.CallPlanning)
	if err != nil {
		return types.Action{}, err
	}

	resp, err := g.text.Call(ctx, params, planningSystemPrompt, prompt)
	if err != nil {
		return types.Action{}, err
	}

	var action types.Action
	if err := json.Unmarshal([]byte(resp.Text), &action); err != nil {
		return types.Action{}, fmt.Errorf("actiongen: parse action: %w", err)
	}
	if err := action.Validate(); err != nil {
		return types.Action{}, fmt.Errorf("actiongen: invalid action from model: %w", err)
	}
	return action, nil
}

const instructionParseSystemPrompt = `You are parsing natural-language test instructions into a structured plan. Respond with strict JSON with keys: primary_goal, specific_actions (array), elements_to_check (array), expected_outcomes (array), priority, plan (array).`

// ParseTestInstructions parses free-form instructions into a structured
// plan (§4.7 parseTestInstructions).
func (g *Generator) ParseTestInstructions(ctx context.Context, text, url string, params model.CallParams) (types.ParsedInstructions, error) {
	base := "Parse these test instructions into a structured plan."
	if url != "" {
		base += " Target URL: " + url
	}
	prompt, err := tokens.BuildBoundedPrompt(tokens.PromptInputs{Base: base, Goal: text}, tokens.CallPlanning)
	if err != nil {
		return types.ParsedInstructions{}, err
	}

	resp, err := g.text.Call(ctx, params, instructionParseSystemPrompt, prompt)
	if err != nil {
		return types.ParsedInstructions{}, err
	}

	var parsed types.ParsedInstructions
	if err := json.Unmarshal([]byte(resp.Text), &parsed); err != nil {
		return types.ParsedInstructions{}, fmt.Errorf("actiongen: parse instructions: %w", err)
	}
	return parsed, nil
}

const alternativeSelectorSystemPrompt = `A selector failed to match during an automated test. Propose up to N alternative selectors ordered by descending confidence. Respond with strict JSON: {"alternatives":[{"selector":"","strategy":"text|attribute|position|role","confidence":0.0}]}.`

type alternativesResponse struct {
	Alternatives []types.AlternativeSelector `json:"alternatives"`
}

// FindAlternativeSelector asks the model for up to maxAlternatives
// replacement selectors for a failed action (§4.7 findAlternativeSelector).
func (g *Generator) FindAlternativeSelector(ctx context.Context, failed types.Action, dom string, failureErr error, targetText string, maxAlternatives int, params model.CallParams) ([]types.AlternativeSelector, error) {
	prunedDOM := tokens.PruneDOM(dom, 3000)
	goal := fmt.Sprintf("Failed selector: %s. Error: %v. Target text hint: %q. Propose up to %d alternatives.",
		failed.Selector, failureErr, targetText, maxAlternatives)

	prompt, err := tokens.BuildBoundedPrompt(tokens.PromptInputs{
		Base: alternativeSelectorSystemPrompt,
		Goal: goal,
		DOM:  prunedDOM,
	}, tokens.CallHealing)
	if err != nil {
		return nil, err
	}

	resp, err := g.text.Call(ctx, params, alternativeSelectorSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	var parsed alternativesResponse
	if err := json.Unmarshal([]byte(resp.Text), &parsed); err != nil {
		return nil, fmt.Errorf("actiongen: parse alternatives: %w", err)
	}
	if len(parsed.Alternatives) > maxAlternatives {
		parsed.Alternatives = parsed.Alternatives[:maxAlternatives]
	}
	return parsed.Alternatives, nil
}
