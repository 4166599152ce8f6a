// machine.go — Sealed Cookie Consent State Machine (C8, §4.8). All
// cookie-handling logic is confined to this package; every mutation of
// internal state goes through unexported methods reachable only from
// Resolve, the package's single exported entry point.
package cookie

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/brennhill/runlattice/internal/browser"
	"github.com/brennhill/runlattice/internal/model"
	"github.com/brennhill/runlattice/internal/registry"
	"github.com/brennhill/runlattice/internal/tokens"
	"github.com/brennhill/runlattice/internal/types"
	"github.com/brennhill/runlattice/internal/util"
	"go.uber.org/zap"
)

// maxResolutionAttempts is the hard retry cap (§4.8 "retry limited to
// at most 2 resolution attempts per page").
const maxResolutionAttempts = 2

// maxVisualConfirmations is the per-click vision-confirmation cap (§4.8
// "max 1 visual confirmation per click").
const maxVisualConfirmations = 1

// postClickWait is the fixed heuristic-path wait (§4.8 "wait 500ms").
const postClickWait = 500 * time.Millisecond

// Machine is the sealed Cookie Consent State Machine. One Machine
// instance is scoped to a single run (§5 "a distinct instance per run,
// or explicit reset(runId), prevents leakage").
type Machine struct {
	mu                sync.Mutex
	reg               *registry.Registry
	vision            *model.Client
	log               *zap.Logger
	processedPages    map[string]bool
	attemptedSelectors map[string]bool
}

// New constructs a Machine bound to reg. vision may be nil to disable
// the AI fallback and rely on the heuristic path alone.
func New(reg *registry.Registry, vision *model.Client, log *zap.Logger) *Machine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Machine{
		reg: reg, vision: vision, log: log,
		processedPages:     make(map[string]bool),
		attemptedSelectors: make(map[string]bool),
	}
}

// Reset clears per-page bookkeeping, used when reusing a Machine across
// runs is unavoidable (prefer constructing a fresh Machine per run).
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processedPages = make(map[string]bool)
	m.attemptedSelectors = make(map[string]bool)
}

// Resolve is the machine's single exported entry point (§4.8). It must
// be called exactly once per URL per run; re-entry for the same URL
// yields BLOCKED with reason "already processed". cookie-status must be
// NOT_STARTED at entry; Resolve transitions it to IN_PROGRESS, then
// unconditionally to COMPLETED on exit regardless of outcome.
func (m *Machine) Resolve(ctx context.Context, runID, pageURL string, session browser.Session, params model.CallParams) (types.CookieResolutionResult, error) {
	if m.alreadyProcessed(pageURL) {
		return types.CookieResolutionResult{Outcome: types.CookieBlocked, Reason: "already processed"}, nil
	}

	if err := m.reg.AssertCookieHandlingAllowed(runID, "cookie_machine"); err != nil {
		return types.CookieResolutionResult{}, err
	}
	if err := m.reg.SetCookieStatus(runID, types.StatusInProgress); err != nil {
		return types.CookieResolutionResult{}, err
	}
	defer func() {
		_ = m.reg.SetCookieStatus(runID, types.StatusCompleted)
	}()

	m.markProcessed(pageURL)

	result, err := m.resolveInternal(ctx, pageURL, session, params)
	if err != nil || result.Outcome == types.CookieResolvedWithDelay || result.Outcome == types.CookieBlocked {
		m.logFailure(pageURL, result, err)
	}
	return result, err
}

func (m *Machine) alreadyProcessed(pageURL string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processedPages[pageURL]
}

func (m *Machine) markProcessed(pageURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processedPages[pageURL] = true
}

func (m *Machine) markAttempted(selector string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attemptedSelectors[selector] {
		return false
	}
	m.attemptedSelectors[selector] = true
	return true
}

// resolveInternal runs DETECT → CLASSIFY → RESOLVE → VERIFY → FINALIZE.
func (m *Machine) resolveInternal(ctx context.Context, pageURL string, session browser.Session, params model.CallParams) (types.CookieResolutionResult, error) {
	domHTML, err := session.DOMSnapshot(ctx)
	if err != nil {
		return types.CookieResolutionResult{}, fmt.Errorf("cookie: dom snapshot: %w", err)
	}

	platform := DetectPlatform(domHTML)
	htmlLang := ""
	lowerDOM := strings.ToLower(domHTML)
	if i := strings.Index(lowerDOM, "<html"); i >= 0 {
		tag := lowerDOM[i:]
		if end := strings.IndexByte(tag, '>'); end >= 0 {
			tag = tag[:end]
		}
		if j := strings.Index(tag, `lang="`); j >= 0 {
			rest := tag[j+len(`lang="`):]
			if k := strings.IndexByte(rest, '"'); k >= 0 {
				htmlLang = rest[:k]
			}
		}
	}
	region := DetectRegion(util.TLD(util.ExtractHost(pageURL)), htmlLang)
	candidates := PrioritizedSelectors(platform, region)

	// Heuristic fast path: try the prioritized list directly.
	if result, ok := m.tryHeuristicPath(ctx, session, candidates); ok {
		return result, nil
	}

	// AI fallback, if no heuristic selector resolved the banner.
	var aiSelectors []string
	var strategy types.CookieStrategy
	if m.vision != nil {
		fallback, isBanner, fbErr := m.aiFallback(ctx, domHTML, params)
		if fbErr == nil && !isBanner {
			return types.CookieResolutionResult{Outcome: types.CookieNotPresent}, nil
		}
		if fbErr == nil {
			aiSelectors = fallback.selectors()
			strategy = fallback.Strategy
		}
	}

	plan := append(append([]string{}, candidates...), aiSelectors...)
	return m.executePlan(ctx, session, plan, strategy)
}

// tryHeuristicPath attempts each candidate in order; the first that
// clicks and then disappears resolves the banner (§4.8 "Heuristic fast
// path").
func (m *Machine) tryHeuristicPath(ctx context.Context, session browser.Session, candidates []string) (types.CookieResolutionResult, bool) {
	var attempted []string
	for _, selector := range candidates {
		if !m.markAttempted(selector) {
			continue
		}
		attempted = append(attempted, selector)

		bounds, ok, err := session.LocatorState(ctx, selector)
		if err != nil || !ok || !bounds.Visible || !bounds.Enabled {
			continue
		}

		if err := session.Click(ctx, selector, false); err != nil {
			_ = session.Click(ctx, selector, true)
		}
		_ = session.Wait(ctx, postClickWait)

		recheck, ok, err := session.LocatorState(ctx, selector)
		if err == nil && (!ok || !recheck.Visible) {
			return types.CookieResolutionResult{
				Outcome:            types.CookieResolved,
				SelectorsAttempted: attempted,
				StepsExecuted:      1,
			}, true
		}

		// DOM still reports the element present; ask vision to confirm
		// before moving on to the next candidate.
		if m.vision != nil {
			if resolved, visionErr := m.visionConfirm(ctx, session); visionErr == nil && resolved {
				return types.CookieResolutionResult{
					Outcome:             types.CookieResolved,
					SelectorsAttempted:  attempted,
					StepsExecuted:       1,
					VisionConfirmations: 1,
				}, true
			}
		}
	}
	return types.CookieResolutionResult{}, false
}

// aiDecision is the AI fallback's structured verdict (§4.8).
type aiDecision struct {
	IsCookieBanner    bool                `json:"isCookieBanner"`
	BannerType        string              `json:"bannerType"`
	Strategy          types.CookieStrategy `json:"strategy"`
	PrimarySelectors  []string            `json:"primarySelectors"`
	FallbackSelectors []string            `json:"fallbackSelectors"`
	MaxSteps          int                 `json:"maxSteps"`
	Confidence        float64             `json:"confidence"`
}

func (d aiDecision) selectors() []string {
	primary := d.PrimarySelectors
	if len(primary) > 3 {
		primary = primary[:3]
	}
	fallback := d.FallbackSelectors
	if len(fallback) > 3 {
		fallback = fallback[:3]
	}
	return append(append([]string{}, primary...), fallback...)
}

const cookieFallbackSystemPrompt = `You are classifying whether a page shows a cookie-consent banner. Respond with strict JSON: {"isCookieBanner":bool,"bannerType":"","strategy":"accept_all|reject_all|preferences_flow","primarySelectors":[],"fallbackSelectors":[],"maxSteps":1,"confidence":0.0}.`

// aiFallback asks the model to classify the page on a bounded context:
// the DOM pruned to 4000 characters within the cookie-banner token
// budget. It does not extract or count interactive elements.
func (m *Machine) aiFallback(ctx context.Context, domHTML string, params model.CallParams) (aiDecision, bool, error) {
	prunedDOM := tokens.PruneDOM(domHTML, 4000)
	prompt, err := tokens.BuildBoundedPrompt(tokens.PromptInputs{
		Base: cookieFallbackSystemPrompt,
		DOM:  prunedDOM,
	}, tokens.CallCookieBanner)
	if err != nil {
		return aiDecision{}, false, err
	}

	resp, err := m.vision.Call(ctx, params, cookieFallbackSystemPrompt, prompt)
	if err != nil {
		return aiDecision{}, false, err
	}

	var decision aiDecision
	if err := unmarshalJSON(resp.Text, &decision); err != nil {
		return aiDecision{}, false, err
	}
	return decision, decision.IsCookieBanner, nil
}

// executePlan runs the combined primary+fallback selector plan with the
// overall 2-attempt cap (§4.8 "Executed plan").
func (m *Machine) executePlan(ctx context.Context, session browser.Session, plan []string, strategy types.CookieStrategy) (types.CookieResolutionResult, error) {
	var attempted []string
	visionConfirmations := 0
	steps := 0

	for attempt := 0; attempt < maxResolutionAttempts; attempt++ {
		for _, selector := range plan {
			bounds, ok, err := session.LocatorState(ctx, selector)
			if err != nil || !ok || !bounds.Visible || bounds.Width == 0 || bounds.Height == 0 || !bounds.Enabled {
				continue
			}
			attempted = append(attempted, selector)
			steps++

			if err := session.Click(ctx, selector, false); err != nil {
				_ = session.Click(ctx, selector, true)
			}
			wait := util.JitterDuration(500*time.Millisecond, 0.4, rand.Float64)
			_ = session.Wait(ctx, wait)

			verdict := m.domVerify(ctx, session, selector)
			if verdict == verdictAmbiguous && visionConfirmations < maxVisualConfirmations && m.vision != nil {
				visionConfirmations++
				if resolved, err := m.visionConfirm(ctx, session); err == nil && resolved {
					return types.CookieResolutionResult{
						Outcome: types.CookieResolved, Strategy: strategy,
						SelectorsAttempted: attempted, StepsExecuted: steps, VisionConfirmations: visionConfirmations,
					}, nil
				}
				continue
			}
			if verdict == verdictDismissed {
				return types.CookieResolutionResult{
					Outcome: types.CookieResolved, Strategy: strategy,
					SelectorsAttempted: attempted, StepsExecuted: steps, VisionConfirmations: visionConfirmations,
				}, nil
			}
		}
	}

	// Final vision truth check (§4.8 "After all attempts, run a final
	// vision truth check").
	if m.vision != nil {
		if resolved, err := m.visionConfirm(ctx, session); err == nil && resolved {
			return types.CookieResolutionResult{
				Outcome: types.CookieResolved, Strategy: strategy,
				SelectorsAttempted: attempted, StepsExecuted: steps, VisionConfirmations: visionConfirmations,
				Reason: "DOM lagged final state",
			}, nil
		}
	}

	return types.CookieResolutionResult{
		Outcome: types.CookieResolvedWithDelay, Strategy: strategy,
		SelectorsAttempted: attempted, StepsExecuted: steps, VisionConfirmations: visionConfirmations,
		Reason: "no selector confirmed dismissal within attempt cap",
	}, nil
}

type verdict int

const (
	verdictDismissed verdict = iota
	verdictVisible
	verdictAmbiguous
)

// domVerify classifies a just-clicked selector's element as
// clearly-dismissed (gone, not visible, or zero-size) or clearly-visible
// from its locator state. It reports ambiguous only when the locator
// state cannot be read; no viewport-position check is made.
func (m *Machine) domVerify(ctx context.Context, session browser.Session, selector string) verdict {
	bounds, ok, err := session.LocatorState(ctx, selector)
	if err != nil {
		return verdictAmbiguous
	}
	if !ok {
		return verdictDismissed
	}
	if !bounds.Visible || (bounds.Width == 0 && bounds.Height == 0) {
		return verdictDismissed
	}
	return verdictVisible
}

const visionConfirmSystemPrompt = `Is a cookie consent banner currently visible in this screenshot? Respond with strict JSON: {"visible":bool}.`

type visionBannerVerdict struct {
	Visible bool `json:"visible"`
}

// visionConfirm asks the vision model the binary "is a cookie banner
// visible?" question (§4.8).
func (m *Machine) visionConfirm(ctx context.Context, session browser.Session) (bool, error) {
	shot, err := session.Screenshot(ctx)
	if err != nil {
		return false, err
	}
	resp, err := m.vision.CallWithVision(ctx, model.CallParams{}, shot, visionConfirmSystemPrompt, visionConfirmSystemPrompt)
	if err != nil {
		return false, err
	}
	var verdict visionBannerVerdict
	if err := unmarshalJSON(resp.Text, &verdict); err != nil {
		return false, err
	}
	return !verdict.Visible, nil
}

// logFailure records the hostname (not full URL), outcome, selectors
// attempted, and error for offline improvement. Region, platform, and
// visible cookie-element samples are not logged.
func (m *Machine) logFailure(pageURL string, result types.CookieResolutionResult, err error) {
	m.log.Warn("cookie consent resolution did not fully resolve",
		zap.String("host", util.ExtractHost(pageURL)),
		zap.String("outcome", string(result.Outcome)),
		zap.Strings("selectors_attempted", result.SelectorsAttempted),
		zap.Error(err))
}

func unmarshalJSON(text string, target any) error {
	return json.Unmarshal([]byte(strings.TrimSpace(text)), target)
}
