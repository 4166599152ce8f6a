// irl.go — Intelligent Retry Layer (C11, §4.11). Per-action retry with
// self-healing, restricted to {click, type, assert} and forbidden
// during Preflight or inside the cookie-consent action context.
package irl

import (
	"context"
	"fmt"
	"strings"

	"github.com/brennhill/runlattice/internal/actiongen"
	"github.com/brennhill/runlattice/internal/browser"
	"github.com/brennhill/runlattice/internal/model"
	"github.com/brennhill/runlattice/internal/registry"
	"github.com/brennhill/runlattice/internal/types"
)

// defaultMaxRetries is N in §4.11 ("up to N retries (default 3)").
const defaultMaxRetries = 3

// Options configures one executeWithRetry call.
type Options struct {
	MaxRetries            int
	VisionMatchingEnabled bool
}

func (o Options) maxRetries() int {
	if o.MaxRetries > 0 {
		return o.MaxRetries
	}
	return defaultMaxRetries
}

// Healing describes how a failed action was repaired before a retry
// succeeded.
type Healing struct {
	Strategy         string // "vision_match" or "alternative_selector"
	OriginalSelector string
	NewSelector      string
}

// Result is executeWithRetry's output (§4.11 "{success, result, healing?,
// attempts, alternativeAction?, finalError?}").
type Result struct {
	Success           bool
	Attempts          int
	Healing           *Healing
	AlternativeAction *types.Action
	FinalError        error
}

// Layer is the Intelligent Retry Layer.
type Layer struct {
	reg *registry.Registry
	gen *actiongen.Generator
}

// New constructs a Layer bound to reg (the shared Status Registry) and
// gen (for alternative-selector healing).
func New(reg *registry.Registry, gen *actiongen.Generator) *Layer {
	return &Layer{reg: reg, gen: gen}
}

// ExecuteWithRetry runs action against session, healing and retrying on
// failure, making at most opts.maxRetries() attempts in total (the first
// try included). action.Kind must be one of
// click/type/assert (§4.11); actionCtx must not be
// ActionContextCookieConsent, and Preflight must not be IN_PROGRESS.
func (l *Layer) ExecuteWithRetry(ctx context.Context, runID string, session browser.Session, action types.Action, vc types.VisionContext, actionCtx types.ActionContext, params model.CallParams, opts Options) (Result, error) {
	if err := l.reg.AssertNoIRLDuringPreflight(runID, "irl_execute"); err != nil {
		return Result{}, err
	}
	if actionCtx == types.ActionContextCookieConsent {
		return Result{}, fmt.Errorf("irl: retry/self-healing is forbidden inside the cookie-consent action context")
	}
	if !action.IsRetryable() {
		return Result{}, fmt.Errorf("irl: action kind %q is not retryable", action.Kind)
	}

	current := action
	var healing *Healing
	var lastErr error

	for attempt := 1; attempt <= opts.maxRetries(); attempt++ {
		err := dispatch(ctx, session, current)
		if err == nil {
			return Result{Success: true, Attempts: attempt, Healing: healing}, nil
		}
		lastErr = err

		if attempt == opts.maxRetries() {
			break
		}

		if opts.VisionMatchingEnabled {
			if repaired, ok := matchByVision(current, vc); ok {
				healing = &Healing{Strategy: "vision_match", OriginalSelector: current.Selector, NewSelector: repaired.Selector}
				current = repaired
				continue
			}
		}

		alt, err := l.healViaGenerator(ctx, current, lastErr, params)
		if err == nil && alt != nil {
			healing = &Healing{Strategy: "alternative_selector", OriginalSelector: current.Selector, NewSelector: alt.Selector}
			current = *alt
			continue
		}
		// No healing available this round; retry the same action once
		// more (transient DOM settling can still resolve it).
	}

	var altAction *types.Action
	if healing != nil {
		altAction = &current
	}
	return Result{Success: false, Attempts: opts.maxRetries(), Healing: healing, AlternativeAction: altAction, FinalError: lastErr}, nil
}

func dispatch(ctx context.Context, session browser.Session, action types.Action) error {
	switch action.Kind {
	case types.ActionClick:
		return session.Click(ctx, action.Selector, false)
	case types.ActionType:
		return session.Type(ctx, action.Selector, action.Value)
	case types.ActionAssert:
		ok, err := session.Assert(ctx, action.Selector, action.Predicate)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("irl: assertion %q failed on %q", action.Predicate, action.Selector)
		}
		return nil
	default:
		return fmt.Errorf("irl: unsupported action kind %q", action.Kind)
	}
}

// matchByVision looks for a non-hidden Vision Context element at a
// different selector whose text or aria-label contains the failed
// action's description (or, if empty, its value). Role and position are
// not compared.
func matchByVision(action types.Action, vc types.VisionContext) (types.Action, bool) {
	hint := strings.ToLower(action.Description)
	if hint == "" {
		hint = strings.ToLower(action.Value)
	}
	if hint == "" {
		return types.Action{}, false
	}

	for _, e := range vc.Elements {
		if e.Selector == action.Selector || e.IsHidden {
			continue
		}
		text := strings.ToLower(e.Text + " " + e.AriaLabel)
		if text != "" && strings.Contains(text, hint) {
			repaired := action
			repaired.Selector = e.Selector
			return repaired, true
		}
	}
	return types.Action{}, false
}

// healViaGenerator asks the Action Generator for an alternative selector
// when vision-matching is disabled or found nothing (§4.11 "else ask
// the Action Generator for alternative selectors").
func (l *Layer) healViaGenerator(ctx context.Context, action types.Action, failureErr error, params model.CallParams) (*types.Action, error) {
	if l.gen == nil {
		return nil, fmt.Errorf("irl: no Action Generator configured")
	}
	alternatives, err := l.gen.FindAlternativeSelector(ctx, action, "", failureErr, action.Description, 3, params)
	if err != nil {
		return nil, err
	}
	if len(alternatives) == 0 {
		return nil, fmt.Errorf("irl: no alternative selectors found")
	}
	best := alternatives[0]
	for _, a := range alternatives[1:] {
		if a.Confidence > best.Confidence {
			best = a
		}
	}
	repaired := action
	repaired.Selector = best.Selector
	return &repaired, nil
}
