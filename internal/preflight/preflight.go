// preflight.go — Preflight Orchestrator (C10, §4.10). Owns the
// invariant gate: drives cookie resolution then non-cookie popup
// resolution exactly once per URL, and guarantees both statuses land on
// COMPLETED even when an internal step fails.
package preflight

import (
	"context"
	"fmt"
	"time"

	"github.com/brennhill/runlattice/internal/browser"
	"github.com/brennhill/runlattice/internal/cookie"
	"github.com/brennhill/runlattice/internal/model"
	"github.com/brennhill/runlattice/internal/popup"
	"github.com/brennhill/runlattice/internal/registry"
	"github.com/brennhill/runlattice/internal/types"
	"go.uber.org/zap"
)

const (
	waitAfterResolved            = 620 * time.Millisecond
	waitAfterResolvedWithDelay   = 1000 * time.Millisecond
	waitBetweenDismissStrategies = 300 * time.Millisecond
)

// closeButtonSelectors are scoped (prefixed with the popup's own
// selector) and tried as dismissal strategy (ii) (§4.10 step 7).
var closeButtonSelectors = []string{
	"[aria-label=\"Close\"]", "[aria-label=\"close\"]",
	".close", ".modal-close", "button.close-button", "[data-dismiss]",
}

// declineActionSelectors are scoped and tried as dismissal strategy (iv).
var declineActionSelectors = []string{
	"button:has-text(\"No\")", "button:has-text(\"Skip\")",
	"button:has-text(\"Later\")", "button:has-text(\"Cancel\")",
	"button:has-text(\"Decline\")", "button:has-text(\"Maybe later\")",
}

var cookieLikeSelectors = []string{
	"[class*=cookie]", "[id*=cookie]", "[class*=consent]", "[id*=consent]", "[class*=gdpr]",
}

// Orchestrator is the Preflight Orchestrator.
type Orchestrator struct {
	reg     *registry.Registry
	cookies *cookie.Machine
	popups  *popup.Handler
	log     *zap.Logger

	mu        chan struct{} // 1-buffered, guards processedURLs
	processed map[string]bool
}

// New constructs an Orchestrator. reg, cookies, and popups must share
// the same Registry instance so the invariant gate is consistent.
func New(reg *registry.Registry, cookies *cookie.Machine, popups *popup.Handler, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	ch := make(chan struct{}, 1)
	ch <- struct{}{}
	return &Orchestrator{reg: reg, cookies: cookies, popups: popups, log: log, mu: ch, processed: make(map[string]bool)}
}

// Reset forgets every URL this Orchestrator has already processed, for
// a fresh run against the same process.
func (o *Orchestrator) Reset() {
	<-o.mu
	o.processed = make(map[string]bool)
	o.mu <- struct{}{}
}

func (o *Orchestrator) alreadyProcessed(url string) bool {
	<-o.mu
	defer func() { o.mu <- struct{}{} }()
	return o.processed[url]
}

func (o *Orchestrator) markProcessed(url string) {
	<-o.mu
	o.processed[url] = true
	o.mu <- struct{}{}
}

// ExecutePreflight runs the eight-step flow of §4.10 for one URL.
func (o *Orchestrator) ExecutePreflight(ctx context.Context, runID, url string, session browser.Session, params model.CallParams) types.PreflightResult {
	result := types.PreflightResult{Success: true}
	trace := func(state, msg string) {
		result.Trace = append(result.Trace, types.TraceEntry{Timestamp: time.Now(), State: state, Message: msg})
	}

	// Step 1: already processed -> force both statuses COMPLETED, return trivially.
	if o.alreadyProcessed(url) {
		_ = o.reg.SetCookieStatus(runID, types.StatusCompleted)
		_ = o.reg.SetPreflightStatus(runID, types.StatusCompleted)
		trace("SKIPPED", "url already processed this run")
		return result
	}

	// Step 2: IN_PROGRESS + trace start.
	if err := o.reg.SetPreflightStatus(runID, types.StatusInProgress); err != nil {
		result.Success = false
		result.Errors = append(result.Errors, err.Error())
		o.finalize(runID, &result)
		return result
	}
	trace("PREFLIGHT_STARTED", "url="+url)

	// Ensure both statuses reach COMPLETED even on panic-free internal
	// error paths below (§4.10 "on any internal error, still ensure...").
	defer o.finalize(runID, &result)

	// Steps 3-4: DETECT/CLASSIFY happens inside the sealed Cookie State
	// Machine (platform/region detection off its own DOM snapshot); it
	// requires NOT_STARTED on entry and sets IN_PROGRESS itself.
	trace("COOKIE_STARTED", "")

	cookieResult, err := o.cookies.Resolve(ctx, runID, url, session, params)
	if err != nil {
		result.Success = false
		result.Errors = append(result.Errors, fmt.Sprintf("cookie resolution: %v", err))
		_ = o.reg.SetCookieStatus(runID, types.StatusCompleted)
		return result
	}
	result.Cookie = cookieResult
	if err := o.reg.SetCookieStatus(runID, types.StatusCompleted); err != nil {
		result.Success = false
		result.Errors = append(result.Errors, err.Error())
		return result
	}
	trace("COOKIE_COMPLETED", string(cookieResult.Outcome))

	// Step 5: outcome-dependent wait.
	switch cookieResult.Outcome {
	case types.CookieResolved:
		_ = session.Wait(ctx, waitAfterResolved)
	case types.CookieResolvedWithDelay:
		_ = session.Wait(ctx, waitAfterResolvedWithDelay)
	}

	// Step 6: VERIFY no lingering cookie/consent/gdpr elements.
	if lingering := o.checkLingeringCookieElements(ctx, session); lingering != "" {
		o.log.Warn("lingering cookie element after resolution", zap.String("run_id", runID), zap.String("selector", lingering))
		trace("LINGERING_COOKIE_WARNING", lingering)
	}

	// Step 7: resolve non-cookie popups.
	detections, err := o.popups.Scan(ctx, runID, session)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("popup scan: %v", err))
	} else {
		result.Popups = detections
		o.dismissBlockingPopups(ctx, runID, session, &result, trace)
	}

	trace("PREFLIGHT_RESOLVED", "")
	o.markProcessed(url)
	return result
}

// finalize guarantees both statuses land on COMPLETED regardless of
// which step returned early (§4.10 "on any internal error, still
// ensure cookie-status=COMPLETED and preflight-status=COMPLETED").
func (o *Orchestrator) finalize(runID string, result *types.PreflightResult) {
	if o.reg.CookieStatus(runID) != types.StatusCompleted {
		_ = o.reg.SetCookieStatus(runID, types.StatusCompleted)
	}
	_ = o.reg.SetPreflightStatus(runID, types.StatusCompleted)
}

func (o *Orchestrator) checkLingeringCookieElements(ctx context.Context, session browser.Session) string {
	for _, selector := range cookieLikeSelectors {
		bounds, ok, err := session.LocatorState(ctx, selector)
		if err == nil && ok && bounds.Visible {
			return selector
		}
	}
	return ""
}

// dismissBlockingPopups attempts the four ordered strategies of §4.10
// step 7 against every BLOCKING_UI detection, re-checking visibility
// between each.
func (o *Orchestrator) dismissBlockingPopups(ctx context.Context, runID string, session browser.Session, result *types.PreflightResult, trace func(state, msg string)) {
	for i := range result.Popups {
		d := &result.Popups[i]
		if !d.Blocking {
			continue
		}

		if o.dismiss(ctx, runID, session, d) {
			result.PopupsResolved++
			trace("POPUP_DISMISSED", d.Selector+" via "+d.DismissVia)
		} else {
			result.PopupsSkipped++
			trace("POPUP_DISMISS_FAILED", d.Selector)
		}
	}
}

// dismiss attempts to dismiss one blocking popup. It first asserts that
// overlay dismissal is still happening inside Preflight (§3 invariant
// overlay dismissal never outlives preflight-status=COMPLETED).
func (o *Orchestrator) dismiss(ctx context.Context, runID string, session browser.Session, d *types.PopupDetection) bool {
	if err := o.reg.AssertNoOverlayDismissalOutsidePreflight(runID, "preflight.dismiss"); err != nil {
		o.log.Error("overlay dismissal attempted outside preflight", zap.String("run_id", runID), zap.Error(err))
		return false
	}

	strategies := []struct {
		name string
		try  func() bool
	}{
		{"escape_key", func() bool {
			_ = session.PressKey(ctx, "Escape")
			return true
		}},
		{"close_button", func() bool {
			return o.tryScopedSelectors(ctx, session, d.Selector, closeButtonSelectors)
		}},
		{"backdrop_click", func() bool {
			_ = session.ClickAt(ctx, 10, 10)
			return true
		}},
		{"decline_action", func() bool {
			return o.tryScopedSelectors(ctx, session, d.Selector, declineActionSelectors)
		}},
	}

	for _, s := range strategies {
		if !s.try() {
			continue
		}
		_ = session.Wait(ctx, waitBetweenDismissStrategies)
		bounds, ok, err := session.LocatorState(ctx, d.Selector)
		if err != nil || !ok || !bounds.Visible {
			d.Dismissed = true
			d.DismissVia = s.name
			return true
		}
	}
	return false
}

func (o *Orchestrator) tryScopedSelectors(ctx context.Context, session browser.Session, popupSelector string, candidates []string) bool {
	for _, c := range candidates {
		scoped := popupSelector + " " + c
		if bounds, ok, err := session.LocatorState(ctx, scoped); err == nil && ok && bounds.Visible {
			if clickErr := session.Click(ctx, scoped, false); clickErr == nil {
				return true
			}
		}
	}
	return false
}
