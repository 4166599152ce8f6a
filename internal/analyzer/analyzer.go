// analyzer.go — Page Analyzer (C6, §4.6). Deterministically parses
// interactive elements and an accessibility summary from a DOM
// snapshot, optionally merges a vision-model pass over the top
// candidates, and exposes three LLM-backed narrative calls
// (testability, error analysis, synthesis).
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/brennhill/runlattice/internal/domutil"
	"github.com/brennhill/runlattice/internal/model"
	"github.com/brennhill/runlattice/internal/registry"
	"github.com/brennhill/runlattice/internal/tokens"
	"github.com/brennhill/runlattice/internal/types"
	"go.uber.org/zap"
)

// topVisionElements is the "top-30 elements" §4.6(d) sends to vision.
const topVisionElements = 30

// Analyzer is the Page Analyzer. text and vision may be the same
// *model.Client or distinct ones per provider.
type Analyzer struct {
	reg                       *registry.Registry
	text                      *model.Client
	vision                    *model.Client
	log                       *zap.Logger
	domSummaryLimit           int
	accessibilitySummaryLimit int
	visionEnabled             bool
}

// Config configures an Analyzer's limits (§6 DOM_SUMMARY_LIMIT,
// ACCESSIBILITY_SUMMARY_LIMIT, ENABLE_VISION_VALIDATION).
type Config struct {
	DOMSummaryLimit           int
	AccessibilitySummaryLimit int
	VisionEnabled             bool
}

// New constructs an Analyzer. vision may be nil if VisionEnabled is false.
// reg gates Analyze behind preflight completion; it must not be nil.
func New(reg *registry.Registry, text, vision *model.Client, cfg Config, log *zap.Logger) *Analyzer {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.DOMSummaryLimit <= 0 {
		cfg.DOMSummaryLimit = 200
	}
	if cfg.AccessibilitySummaryLimit <= 0 {
		cfg.AccessibilitySummaryLimit = 40
	}
	return &Analyzer{
		reg: reg, text: text, vision: vision, log: log,
		domSummaryLimit: cfg.DOMSummaryLimit, accessibilitySummaryLimit: cfg.AccessibilitySummaryLimit,
		visionEnabled: cfg.VisionEnabled && vision != nil,
	}
}

// Analyze runs the full §4.6 pipeline: parse elements, cap to the DOM
// summary limit, build the accessibility summary, and (if enabled and a
// screenshot is present) merge a vision pass over the top candidates.
// It requires runID's Preflight Status to already be COMPLETED (§4.1).
func (a *Analyzer) Analyze(ctx context.Context, runID string, domHTML string, screenshot []byte, goal string, params model.CallParams) (types.VisionContext, error) {
	if a.reg != nil {
		if err := a.reg.AssertPreflightCompletedBeforeAIAnalysis(runID, "analyzer.Analyze"); err != nil {
			return types.VisionContext{}, err
		}
	}

	parsed, err := domutil.ParseInteractiveElements(domHTML)
	if err != nil {
		return types.VisionContext{}, fmt.Errorf("analyzer: parse DOM: %w", err)
	}

	capped := parsed
	if len(capped) > a.domSummaryLimit {
		capped = capped[:a.domSummaryLimit]
	}

	accFlags := domutil.AccessibilitySummary(capped, a.accessibilitySummaryLimit)

	elements := toInteractiveElements(capped)
	vc := types.VisionContext{
		Elements:      elements,
		Accessibility: toTypesAccessibility(accFlags),
		Meta: types.VisionContextMeta{
			ElementCount: len(elements),
			FlaggedCount: len(accFlags),
			Timestamp:    time.Now(),
		},
	}

	if a.visionEnabled && len(screenshot) > 0 {
		if err := a.mergeVision(ctx, &vc, screenshot, goal, params); err != nil {
			a.log.Warn("vision merge failed, continuing with heuristic elements", zap.Error(err))
		}
	}

	return vc, nil
}

func toInteractiveElements(elems []domutil.Element) []types.InteractiveElement {
	out := make([]types.InteractiveElement, 0, len(elems))
	for _, e := range elems {
		out = append(out, types.InteractiveElement{
			Type:      string(e.Kind),
			Text:      e.Text,
			AriaLabel: e.AriaLabel,
			Name:      e.Name,
			Selector:  e.Selector,
			IsHidden:  e.Hidden,
			IsRequired: e.Required,
			Href:      e.Href,
		})
	}
	return out
}

func toTypesAccessibility(flags []domutil.AccessibilityFlag) []types.AccessibilityFlag {
	out := make([]types.AccessibilityFlag, 0, len(flags))
	for _, f := range flags {
		out = append(out, types.AccessibilityFlag{Selector: f.Selector, Issue: f.Reason})
	}
	return out
}

// visionElementResult is one index's vision-model judgment (§4.6(d)
// "merge per-index results").
type visionElementResult struct {
	Index        int  `json:"index"`
	Visible      bool `json:"visible"`
	Interactable bool `json:"interactable"`
}

type visionResponse struct {
	PageState string                 `json:"page_state"` // overlay, modal, loaded
	Elements  []visionElementResult  `json:"elements"`
}

// mergeVision sends the top-30 elements plus goal to the vision model
// and merges per-index results back in, filtering to visible-only if at
// least one element was confirmed visible (§4.6(d)).
func (a *Analyzer) mergeVision(ctx context.Context, vc *types.VisionContext, screenshot []byte, goal string, params model.CallParams) error {
	top := vc.Elements
	if len(top) > topVisionElements {
		top = top[:topVisionElements]
	}

	elementLines := make([]string, 0, len(top))
	for i, e := range top {
		elementLines = append(elementLines, fmt.Sprintf("%d: %s selector=%s text=%q", i, e.Type, e.Selector, e.Text))
	}

	prompt, err := tokens.BuildBoundedPrompt(tokens.PromptInputs{
		Base:     "Identify which listed elements are visible and interactable in the screenshot, and the page state.",
		Goal:     goal,
		Elements: elementLines,
	}, tokens.CallAction)
	if err != nil {
		return err
	}

	resp, err := a.vision.CallWithVision(ctx, params, screenshot, visionSystemPrompt, prompt)
	if err != nil {
		return err
	}

	var parsed visionResponse
	if err := json.Unmarshal([]byte(resp.Text), &parsed); err != nil {
		return fmt.Errorf("analyzer: parse vision response: %w", err)
	}

	anyVisible := false
	for _, r := range parsed.Elements {
		if r.Index < 0 || r.Index >= len(vc.Elements) {
			continue
		}
		vc.Elements[r.Index].VisionValidated = true
		vc.Elements[r.Index].VisionVisible = r.Visible
		vc.Elements[r.Index].VisionInteractable = r.Interactable
		if r.Visible {
			anyVisible = true
		}
	}
	vc.PageState = parsed.PageState
	vc.Meta.VisionValidated = true

	if anyVisible {
		filtered := vc.Elements[:0:0]
		for _, e := range vc.Elements {
			if !e.VisionValidated || e.VisionVisible {
				filtered = append(filtered, e)
			}
		}
		vc.Elements = filtered
		vc.Meta.ElementCount = len(filtered)
	}
	return nil
}

const visionSystemPrompt = "You are a precise visual page-state classifier for automated UI testing. Respond with strict JSON only."

// sortAccessibilityBySeverity is used by AnalyzeTestability to list
// missing-label issues first in its prompt.
func sortAccessibilityBySeverity(flags []types.AccessibilityFlag) []types.AccessibilityFlag {
	out := append([]types.AccessibilityFlag(nil), flags...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Issue == "missing accessible label" && out[j].Issue != "missing accessible label"
	})
	return out
}
