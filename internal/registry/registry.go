// registry.go — Status Registry. Process-local mapping from run-id to
// {cookie-status, preflight-status, completed-at}, with monotonic
// set/get and runtime assertion guards.
//
// These assertions are runtime guards, not comments: every relevant
// entry point in internal/analyzer, internal/irl, internal/popup, and
// internal/preflight calls one of these before doing its work.
package registry

import (
	"sync"
	"time"

	"github.com/brennhill/runlattice/internal/runerr"
	"github.com/brennhill/runlattice/internal/types"
)

// entry is one run's cross-phase status pair.
type entry struct {
	cookie      types.Status
	preflight   types.Status
	completedAt time.Time
}

// Registry is the process-wide, race-free Status Registry. Zero value is
// not usable; construct with New.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Reset clears (or creates) the entry for run, called at Sequencer entry (§4.1).
func (r *Registry) Reset(run string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[run] = &entry{}
}

func (r *Registry) get(run string) *entry {
	e, ok := r.entries[run]
	if !ok {
		e = &entry{}
		r.entries[run] = e
	}
	return e
}

// CookieStatus returns the current Cookie Status for run.
func (r *Registry) CookieStatus(run string) types.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(run).cookie
}

// PreflightStatus returns the current Preflight Status for run.
func (r *Registry) PreflightStatus(run string) types.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(run).preflight
}

// SetCookieStatus advances the Cookie Status for run. Regressions
// (setting to an earlier state) raise a fatal InvariantViolation (§3
// invariant 1: strictly monotonic).
func (r *Registry) SetCookieStatus(run string, next types.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.get(run)
	if next < e.cookie {
		return runerr.Invariant(run, "cookie_status", "attempted to regress cookie status from "+e.cookie.String()+" to "+next.String())
	}
	e.cookie = next
	if next == types.StatusCompleted {
		e.completedAt = time.Now()
	}
	return nil
}

// SetPreflightStatus advances the Preflight Status for run. Regressions
// raise a fatal InvariantViolation (§3 invariant 2).
func (r *Registry) SetPreflightStatus(run string, next types.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.get(run)
	if next < e.preflight {
		return runerr.Invariant(run, "preflight_status", "attempted to regress preflight status from "+e.preflight.String()+" to "+next.String())
	}
	e.preflight = next
	return nil
}

// AssertCookieHandlingAllowed raises if Cookie Status != NOT_STARTED —
// the sealed cookie machine may enter exactly once per run (§4.1, §4.8).
func (r *Registry) AssertCookieHandlingAllowed(run, ctx string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.get(run).cookie != types.StatusNotStarted {
		return runerr.Invariant(run, ctx, "cookie handling attempted after cookie status left NOT_STARTED")
	}
	return nil
}

// assertPreflightCompleted is the shared guard behind the four
// per-capability assertions below (§4.1).
func (r *Registry) assertPreflightCompleted(run, ctx, capability string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.get(run).preflight != types.StatusCompleted {
		return runerr.Invariant(run, ctx, capability+" attempted before preflight completed")
	}
	return nil
}

// AssertPreflightCompletedBeforeScreenshot guards C12's screenshot capture.
func (r *Registry) AssertPreflightCompletedBeforeScreenshot(run, ctx string) error {
	return r.assertPreflightCompleted(run, ctx, "screenshot")
}

// AssertPreflightCompletedBeforeDOMSnapshot guards C12's DOM snapshot capture.
func (r *Registry) AssertPreflightCompletedBeforeDOMSnapshot(run, ctx string) error {
	return r.assertPreflightCompleted(run, ctx, "dom_snapshot")
}

// AssertPreflightCompletedBeforeAIAnalysis guards any C6 AI-backed analysis call.
func (r *Registry) AssertPreflightCompletedBeforeAIAnalysis(run, ctx string) error {
	return r.assertPreflightCompleted(run, ctx, "ai_analysis")
}

// AssertPreflightCompletedBeforeDiagnosis guards C13's DIAGNOSING phase entry.
func (r *Registry) AssertPreflightCompletedBeforeDiagnosis(run, ctx string) error {
	return r.assertPreflightCompleted(run, ctx, "diagnosis")
}

// AssertNoIRLDuringPreflight raises if Preflight Status == IN_PROGRESS —
// IRL/self-healing/fallback is forbidden while preflight runs (§3
// invariant 3, §4.11).
func (r *Registry) AssertNoIRLDuringPreflight(run, ctx string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.get(run).preflight == types.StatusInProgress {
		return runerr.Invariant(run, ctx, "IRL invoked while preflight is IN_PROGRESS")
	}
	return nil
}

// AssertNoOverlayDismissalOutsidePreflight raises if Preflight Status ==
// COMPLETED — overlay/popup dismissal may only happen during Preflight.
func (r *Registry) AssertNoOverlayDismissalOutsidePreflight(run, ctx string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.get(run).preflight == types.StatusCompleted {
		return runerr.Invariant(run, ctx, "overlay dismissal attempted after preflight completed")
	}
	return nil
}

// Forget removes run's entry entirely, called at Sequencer exit so the
// process-wide map doesn't grow unbounded across many runs.
func (r *Registry) Forget(run string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, run)
}
