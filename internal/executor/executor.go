// executor.go — Test Executor (C12, §4.12). The single-action entry
// point: dispatches to the Intelligent Retry Layer when an action is
// retryable and healing is permitted, otherwise drives the session
// directly; also owns state/bounds capture and escalating error
// recovery.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/brennhill/runlattice/internal/browser"
	"github.com/brennhill/runlattice/internal/irl"
	"github.com/brennhill/runlattice/internal/model"
	"github.com/brennhill/runlattice/internal/registry"
	"github.com/brennhill/runlattice/internal/types"
	"go.uber.org/zap"
)

const (
	navigationTimeout = 60 * time.Second
	recoveryScrollDY  = 400.0
	networkIdleWait   = 5 * time.Second
)

// State is captureState's output: the screenshot/DOM pair a phase acts on.
type State struct {
	Screenshot []byte
	DOM        string
}

// TargetMark classifies what happened to the Action's target element,
// for the element-bounds capture §4.12 asks for.
type TargetMark string

const (
	MarkClicked  TargetMark = "clicked"
	MarkTyped    TargetMark = "typed"
	MarkAnalyzed TargetMark = "analyzed"
	MarkFailed   TargetMark = "failed"
	MarkHealed   TargetMark = "healed"
)

// TargetBound is the one bound the caller most cares about, marked with
// what happened to it.
type TargetBound struct {
	Selector string
	Bounds   browser.ElementBounds
	Mark     TargetMark
}

// BoundsCapture is captureElementBounds's output. Empty on mobile
// (desktop-only per §4.12).
type BoundsCapture struct {
	Bounds map[string]browser.ElementBounds
	Target *TargetBound
}

// Outcome is executeAction's output (§4.12 "{result, healing?}").
type Outcome struct {
	Healing *irl.Healing
}

// RecoveryAction names which escalating strategy recoverFromErrors took.
type RecoveryAction string

const (
	RecoveryNone                 RecoveryAction = "none"
	RecoveryWaitNetworkIdle      RecoveryAction = "wait_network_idle"
	RecoveryScroll               RecoveryAction = "scroll"
	RecoveryNavigateBackOrReload RecoveryAction = "navigate_back_or_reload"
	RecoveryScrollToTop          RecoveryAction = "scroll_to_top"
)

// Executor is the Test Executor.
type Executor struct {
	reg *registry.Registry
	irl *irl.Layer
	log *zap.Logger
}

// New constructs an Executor. irlLayer may be nil to disable IRL
// delegation entirely (every action then runs directly).
func New(reg *registry.Registry, irlLayer *irl.Layer, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{reg: reg, irl: irlLayer, log: log}
}

// ExecuteAction runs action against session, delegating to the IRL when
// the action is retryable, IRL is enabled, and the context permits
// (§4.12: "if action is retryable and IRL enabled and context permits,
// delegate to IRL; otherwise run the driver directly").
func (e *Executor) ExecuteAction(ctx context.Context, runID string, session browser.Session, action types.Action, vc types.VisionContext, actionCtx types.ActionContext, params model.CallParams, irlEnabled bool, irlOpts irl.Options) (Outcome, error) {
	if err := e.reg.AssertNoIRLDuringPreflight(runID, "executor_execute_action"); err != nil {
		return Outcome{}, err
	}

	contextPermitsIRL := actionCtx != types.ActionContextCookieConsent
	if action.IsRetryable() && irlEnabled && contextPermitsIRL && e.irl != nil {
		result, err := e.irl.ExecuteWithRetry(ctx, runID, session, action, vc, actionCtx, params, irlOpts)
		if err != nil {
			return Outcome{}, err
		}
		if !result.Success {
			return Outcome{}, fmt.Errorf("executor: action exhausted retries: %w", result.FinalError)
		}
		return Outcome{Healing: result.Healing}, nil
	}

	if err := dispatchDirect(ctx, session, action); err != nil {
		return Outcome{}, err
	}
	return Outcome{}, nil
}

func dispatchDirect(ctx context.Context, session browser.Session, action types.Action) error {
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
			return fmt.Errorf("executor: assertion %q failed on %q", action.Predicate, action.Selector)
		}
		return nil
	case types.ActionScroll:
		return session.Scroll(ctx, 0, recoveryScrollDY)
	case types.ActionWait:
		return session.Wait(ctx, time.Duration(action.WaitMS)*time.Millisecond)
	case types.ActionNavigate:
		return session.Navigate(ctx, action.URL, navigationTimeout)
	case types.ActionComplete:
		return nil
	default:
		return fmt.Errorf("executor: unsupported action kind %q", action.Kind)
	}
}

// CaptureState takes a screenshot and DOM snapshot, gated on preflight
// having completed (§4.12 "ensure preflight completed (assert)").
// isMobile is retained for the caller's device-runner selection; the
// Session interface already hides that distinction from this package.
func (e *Executor) CaptureState(ctx context.Context, runID string, session browser.Session, isMobile bool) (State, error) {
	if err := e.reg.AssertPreflightCompletedBeforeScreenshot(runID, "executor_capture_state"); err != nil {
		return State{}, err
	}
	shot, err := session.Screenshot(ctx)
	if err != nil {
		return State{}, fmt.Errorf("executor: screenshot: %w", err)
	}
	if err := e.reg.AssertPreflightCompletedBeforeDOMSnapshot(runID, "executor_capture_state"); err != nil {
		return State{}, err
	}
	dom, err := session.DOMSnapshot(ctx)
	if err != nil {
		return State{}, fmt.Errorf("executor: dom snapshot: %w", err)
	}
	return State{Screenshot: shot, DOM: dom}, nil
}

// CaptureElementBounds returns every interactive bound plus the
// action's target bound, marked by outcome (§4.12, desktop-only).
func (e *Executor) CaptureElementBounds(ctx context.Context, session browser.Session, isMobile bool, action *types.Action, healing *irl.Healing, failed bool) (BoundsCapture, error) {
	if isMobile {
		return BoundsCapture{}, nil
	}
	bounds, err := session.InteractiveBounds(ctx)
	if err != nil {
		return BoundsCapture{}, fmt.Errorf("executor: interactive bounds: %w", err)
	}
	capture := BoundsCapture{Bounds: bounds}
	if action == nil {
		return capture, nil
	}

	selector := action.Selector
	if healing != nil {
		selector = healing.NewSelector
	}
	capture.Target = &TargetBound{
		Selector: selector,
		Bounds:   bounds[selector],
		Mark:     targetMark(action.Kind, healing != nil, failed),
	}
	return capture, nil
}

func targetMark(kind types.ActionKind, healed, failed bool) TargetMark {
	switch {
	case failed:
		return MarkFailed
	case healed:
		return MarkHealed
	case kind == types.ActionClick:
		return MarkClicked
	case kind == types.ActionType:
		return MarkTyped
	default:
		return MarkAnalyzed
	}
}

// RecoverFromErrors escalates by consecutive-error streak (§4.12).
// Cookie/overlay dismissal is never attempted here — that is Preflight's
// sole responsibility.
func (e *Executor) RecoverFromErrors(ctx context.Context, session browser.Session, isMobile bool, buildURL, runID string, consecutiveErrors int) (RecoveryAction, error) {
	if consecutiveErrors >= 6 {
		bounds, err := session.InteractiveBounds(ctx)
		if err == nil && countVisible(bounds) == 0 {
			e.log.Info("recovery: scrolling to top, zero visible interactive elements", zap.String("run_id", runID))
			if err := session.Scroll(ctx, 0, -1_000_000); err != nil {
				return RecoveryNone, err
			}
			return RecoveryScrollToTop, nil
		}
	}
	if consecutiveErrors >= 5 {
		e.log.Info("recovery: navigating back to base url", zap.String("run_id", runID), zap.String("url", buildURL))
		if err := session.Navigate(ctx, buildURL, navigationTimeout); err != nil {
			if reloadErr := session.Reload(ctx); reloadErr != nil {
				return RecoveryNone, reloadErr
			}
		}
		return RecoveryNavigateBackOrReload, nil
	}
	if consecutiveErrors >= 3 {
		e.log.Info("recovery: scrolling", zap.String("run_id", runID))
		if err := session.Scroll(ctx, 0, recoveryScrollDY); err != nil {
			return RecoveryNone, err
		}
		return RecoveryScroll, nil
	}
	if consecutiveErrors >= 2 {
		e.log.Info("recovery: waiting for network idle", zap.String("run_id", runID))
		if err := session.WaitForNetworkIdle(ctx, networkIdleWait); err != nil {
			return RecoveryNone, err
		}
		return RecoveryWaitNetworkIdle, nil
	}
	return RecoveryNone, nil
}

func countVisible(bounds map[string]browser.ElementBounds) int {
	n := 0
	for _, b := range bounds {
		if b.Visible {
			n++
		}
	}
	return n
}
