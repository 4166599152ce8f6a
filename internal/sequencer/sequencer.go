// sequencer.go — Phase Sequencer / Run Core (C13, §4.13). The top-level
// state machine: CREATED -> NAVIGATING -> PREFLIGHT -> (DIAGNOSING?) ->
// PLANNING -> EXECUTING -> FINALIZING -> a terminal RunOutcome, reported
// as a flat stream of events.Event records (§6). Sibling target URLs
// (multi/all mode) fan out via golang.org/x/sync/errgroup, one browser
// session per sibling.
package sequencer

import (
	"context"
	"fmt"
	"time"

	"github.com/brennhill/runlattice/internal/actiongen"
	"github.com/brennhill/runlattice/internal/analyzer"
	"github.com/brennhill/runlattice/internal/browser"
	"github.com/brennhill/runlattice/internal/budget"
	"github.com/brennhill/runlattice/internal/cookie"
	"github.com/brennhill/runlattice/internal/events"
	"github.com/brennhill/runlattice/internal/executor"
	"github.com/brennhill/runlattice/internal/irl"
	"github.com/brennhill/runlattice/internal/model"
	"github.com/brennhill/runlattice/internal/popup"
	"github.com/brennhill/runlattice/internal/preflight"
	"github.com/brennhill/runlattice/internal/registry"
	"github.com/brennhill/runlattice/internal/resilience"
	"github.com/brennhill/runlattice/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultGoal = "Explore and exercise the page's primary interactive flows."

// Deps are the Sequencer's process-wide collaborators, shared across
// every run it drives.
type Deps struct {
	Registry       *registry.Registry
	Budgets        *budget.Manager
	Breakers       *resilience.Store
	BrowserManager browser.Manager
	Analyzer       *analyzer.Analyzer
	ActionGen      *actiongen.Generator
	VisionClient   *model.Client // optional; nil disables the cookie machine's AI fallback
	Sink           events.Sink
	Log            *zap.Logger
}

// Sequencer drives RunDescriptors through the phase state machine.
type Sequencer struct {
	deps Deps
}

// New constructs a Sequencer bound to deps.
func New(deps Deps) *Sequencer {
	if deps.Sink == nil {
		deps.Sink = events.NewMemorySink()
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	return &Sequencer{deps: deps}
}

// Run drives desc to completion. With multiple target URLs (multi/all
// mode), each URL runs as an independent sibling sharing desc's AI
// Budget, fanned out via errgroup (§5 "parallel at the run level").
func (s *Sequencer) Run(ctx context.Context, desc types.RunDescriptor) (types.RunSummary, error) {
	cfg, ok := types.ConfigForMode(desc.Mode)
	if !ok {
		return types.RunSummary{}, fmt.Errorf("sequencer: unknown test mode %q", desc.Mode)
	}
	if len(desc.TargetURLs) == 0 {
		return types.RunSummary{}, fmt.Errorf("sequencer: run descriptor has no target urls")
	}

	phaseCtx, cancel := context.WithTimeout(ctx, cfg.PhaseTimeout)
	defer cancel()

	if len(desc.TargetURLs) == 1 {
		return s.runSingle(phaseCtx, desc, string(desc.RunID), desc.TargetURLs[0], cfg), nil
	}

	g, gctx := errgroup.WithContext(phaseCtx)
	summaries := make([]types.RunSummary, len(desc.TargetURLs))
	for i, url := range desc.TargetURLs {
		i, url := i, url
		g.Go(func() error {
			siblingID := fmt.Sprintf("%s#%d", desc.RunID, i)
			summaries[i] = s.runSingle(gctx, desc, siblingID, url, cfg)
			return nil
		})
	}
	_ = g.Wait()
	return mergeSummaries(desc.RunID, summaries), nil
}

func mergeSummaries(runID types.RunID, siblings []types.RunSummary) types.RunSummary {
	merged := types.RunSummary{RunID: runID, Outcome: types.OutcomeCompleted}
	severity := map[types.RunOutcome]int{
		types.OutcomeCompleted:            0,
		types.OutcomeCompletedWithLimits:  1,
		types.OutcomePausedResumable:      2,
		types.OutcomeFailedRecoverable:    3,
		types.OutcomeAbandoned:            4,
		types.OutcomeFailedUnrecoverable:  5,
	}
	for _, sib := range siblings {
		merged.Attempts += sib.Attempts
		merged.Healed += sib.Healed
		merged.AICallsUsed += sib.AICallsUsed
		merged.VisionCallsUsed += sib.VisionCallsUsed
		merged.PopupsResolved += sib.PopupsResolved
		merged.Steps = append(merged.Steps, sib.Steps...)
		if severity[sib.Outcome] > severity[merged.Outcome] {
			merged.Outcome = sib.Outcome
			merged.FailureReason = sib.FailureReason
		}
	}
	return merged
}

// runSingle drives one URL through the full phase sequence (§4.13
// steps 1-7). It never returns an error: every failure mode resolves to
// a terminal RunOutcome in the returned summary instead, since a failed
// run is still a complete, reportable result.
func (s *Sequencer) runSingle(ctx context.Context, desc types.RunDescriptor, runID, url string, cfg types.TestModeConfig) types.RunSummary {
	parentRun := string(desc.ParentRunID)
	if parentRun == "" {
		parentRun = string(desc.RunID)
	}
	s.deps.Budgets.GetOrCreate(parentRun, desc.Tier, nil)

	s.deps.Registry.Reset(runID)
	defer s.deps.Registry.Forget(runID)

	// Step 1: CREATED -> NAVIGATING.
	session, err := s.deps.BrowserManager.OpenSession(ctx, browser.BrowserType(desc.Browser), desc.Viewport.Width, desc.Viewport.Height)
	if err != nil {
		return s.failedSummary(runID, types.OutcomeFailedUnrecoverable, fmt.Sprintf("open browser session: %v", err))
	}
	defer session.Close(context.Background())

	s.emit(runID, 0, "NAVIGATING", "loading "+url, nil)
	if err := session.Navigate(ctx, url, types.TimeoutNavigation); err != nil {
		return s.failedSummary(runID, types.OutcomeFailedRecoverable, fmt.Sprintf("navigate: %v", err))
	}

	params := model.CallParams{
		Model:       cfg.Models.TextModel,
		Tier:        string(desc.Tier),
		MaxTokens:   1200,
		Temperature: float64(cfg.Models.Temperature),
	}

	// Step 2: PREFLIGHT.
	s.emit(runID, 0, "PREFLIGHT", "resolving cookie/popup overlays", nil)
	cm := cookie.New(s.deps.Registry, s.deps.VisionClient, s.deps.Log)
	ph := popup.New(s.deps.Registry, float64(desc.Viewport.Width), float64(desc.Viewport.Height))
	pre := preflight.New(s.deps.Registry, cm, ph, s.deps.Log)
	preResult := pre.ExecutePreflight(ctx, runID, url, session, params)
	s.emit(runID, 0, "PREFLIGHT", fmt.Sprintf("cookie=%s popups_resolved=%d popups_skipped=%d", preResult.Cookie.Outcome, preResult.PopupsResolved, preResult.PopupsSkipped), nil)

	goal := desc.Instructions
	if goal == "" {
		goal = defaultGoal
	}

	irlLayer := irl.New(s.deps.Registry, s.deps.ActionGen)
	execInst := executor.New(s.deps.Registry, irlLayer, s.deps.Log)

	// Step 3: DIAGNOSING, if the mode requires it.
	if cfg.DiagnosisRequired {
		s.runDiagnosis(ctx, runID, session, desc, parentRun, goal, params, execInst)
	}

	// Steps 4-6: PLANNING/EXECUTING loop. pre is threaded through so an
	// in-run navigate re-enters Preflight for the URL it lands on (§3
	// invariant 4: each URL is Preflight-processed at most once per run,
	// which a navigate action can put the session on for the first time).
	steps, outcome, failureReason, navPopupsResolved := s.runExecutionLoop(ctx, desc, runID, url, cfg, session, execInst, irlLayer, pre, parentRun, goal, params)

	// Step 7: FINALIZING.
	s.emit(runID, len(steps), "FINALIZING", "run complete", map[string]any{"outcome": string(outcome)})

	snap, _ := s.deps.Budgets.Snapshot(parentRun)
	healed := 0
	for _, st := range steps {
		if st.Outcome == types.StepHealed {
			healed++
		}
	}

	return types.RunSummary{
		RunID:           types.RunID(runID),
		Outcome:         outcome,
		Attempts:        len(steps),
		Healed:          healed,
		AICallsUsed:     snap.UsedLLM,
		VisionCallsUsed: snap.UsedVision,
		PopupsResolved:  preResult.PopupsResolved + navPopupsResolved,
		Steps:           steps,
		FailureReason:   failureReason,
	}
}

// runDiagnosis runs the testability-narrative pass, budget- and
// breaker-gated, purely for its logged narrative: a diagnosis failure
// never aborts the run (§4.13 "diagnosis is advisory").
func (s *Sequencer) runDiagnosis(ctx context.Context, runID string, session browser.Session, desc types.RunDescriptor, parentRun, goal string, params model.CallParams, execInst *executor.Executor) {
	s.emit(runID, 0, "DIAGNOSING", "running testability diagnosis", nil)

	if err := s.deps.Registry.AssertPreflightCompletedBeforeDiagnosis(runID, "sequencer_diagnosis"); err != nil {
		s.deps.Log.Warn("diagnosis: preflight not completed, skipping", zap.String("run_id", runID), zap.Error(err))
		return
	}

	state, err := execInst.CaptureState(ctx, runID, session, desc.Viewport.Mobile)
	if err != nil {
		s.deps.Log.Warn("diagnosis: capture state failed", zap.String("run_id", runID), zap.Error(err))
		return
	}

	if !s.deps.Budgets.CanMakeLLMCall(parentRun) {
		s.emit(runID, 0, "DIAGNOSING", "skipped: AI budget exhausted", nil)
		return
	}

	vc, err := s.analyzeWithBreaker(ctx, runID, state.DOM, state.Screenshot, goal, params)
	if err != nil {
		s.deps.Log.Warn("diagnosis: page analysis failed", zap.String("run_id", runID), zap.Error(err))
		return
	}
	s.deps.Budgets.RecordLLMCall(parentRun)

	narrative, err := s.deps.Analyzer.AnalyzeTestability(ctx, vc, goal, params)
	if err != nil {
		s.deps.Log.Warn("diagnosis: testability narrative failed", zap.String("run_id", runID), zap.Error(err))
		return
	}
	s.deps.Budgets.RecordLLMCall(parentRun)
	s.emit(runID, 0, "DIAGNOSING", narrative.What, map[string]any{"high_risk_areas": narrative.HighRiskAreas})
}

// runExecutionLoop drives the PLANNING/EXECUTING cycle until the mode's
// step cap, a fatal error, budget exhaustion, or an explicit "complete"
// action ends the run (§4.13 steps 4-6). It returns the popups resolved
// by any in-run Preflight re-entries triggered by navigate actions.
func (s *Sequencer) runExecutionLoop(ctx context.Context, desc types.RunDescriptor, runID, url string, cfg types.TestModeConfig, session browser.Session, execInst *executor.Executor, irlLayer *irl.Layer, pre *preflight.Orchestrator, parentRun, goal string, params model.CallParams) ([]types.StepRecord, types.RunOutcome, string, int) {
	var steps []types.StepRecord
	var history []string
	consecutiveErrors := 0
	navPopupsResolved := 0
	tracking := &actiongen.Tracking{ProjectID: desc.ProjectID}

	for order := 0; order < cfg.MaxSteps; order++ {
		select {
		case <-ctx.Done():
			return steps, types.OutcomeAbandoned, ctx.Err().Error(), navPopupsResolved
		default:
		}

		state, err := execInst.CaptureState(ctx, runID, session, desc.Viewport.Mobile)
		if err != nil {
			return steps, terminalOutcomeOnFailure(steps), fmt.Sprintf("capture state: %v", err), navPopupsResolved
		}

		vc := types.VisionContext{}
		if s.deps.Budgets.CanMakeLLMCall(parentRun) {
			var analyzeErr error
			vc, analyzeErr = s.analyzeWithBreaker(ctx, runID, state.DOM, state.Screenshot, goal, params)
			if analyzeErr == nil {
				s.deps.Budgets.RecordLLMCall(parentRun)
			}
		}

		action, err := s.deps.ActionGen.GenerateAction(ctx, vc, history, goal, url, tracking, params)
		if err != nil {
			consecutiveErrors++
			if _, recErr := execInst.RecoverFromErrors(ctx, session, desc.Viewport.Mobile, url, runID, consecutiveErrors); recErr != nil {
				s.deps.Log.Warn("recovery failed", zap.String("run_id", runID), zap.Error(recErr))
			}
			steps = append(steps, failedStep(types.RunID(runID), order, types.Action{}, err))
			continue
		}

		s.emit(runID, order, "EXECUTING", fmt.Sprintf("%s %s", action.Kind, action.Selector), nil)
		started := s.now()

		outcome, execErr := execInst.ExecuteAction(ctx, runID, session, action, vc, types.ActionContextNormal, params, true, irl.Options{VisionMatchingEnabled: true})
		record := types.StepRecord{
			RunID:     types.RunID(runID),
			Order:     order,
			Action:    action,
			StartedAt: started,
		}

		bounds, boundsErr := execInst.CaptureElementBounds(ctx, session, desc.Viewport.Mobile, &action, outcomeHealing(outcome), execErr != nil)
		if boundsErr == nil && bounds.Target != nil {
			record.Bounds = []types.ElementBounds{{
				Selector: bounds.Target.Selector,
				X:        bounds.Target.Bounds.X,
				Y:        bounds.Target.Bounds.Y,
				Width:    bounds.Target.Bounds.Width,
				Height:   bounds.Target.Bounds.Height,
				Role:     string(bounds.Target.Mark),
			}}
		}

		if execErr != nil {
			consecutiveErrors++
			record.Outcome = types.StepFailure
			record.Error = execErr.Error()
			record.FinishedAt = s.now()
			steps = append(steps, record)
			if _, recErr := execInst.RecoverFromErrors(ctx, session, desc.Viewport.Mobile, url, runID, consecutiveErrors); recErr != nil {
				s.deps.Log.Warn("recovery failed", zap.String("run_id", runID), zap.Error(recErr))
			}
			history = append(history, fmt.Sprintf("FAILED %s %s: %v", action.Kind, action.Selector, execErr))
			continue
		}

		consecutiveErrors = 0
		record.FinishedAt = s.now()
		if outcome.Healing != nil {
			record.Outcome = types.StepHealed
			record.Healing = &types.HealingMetadata{
				Kind:             healingKind(outcome.Healing.Strategy),
				OriginalSelector: outcome.Healing.OriginalSelector,
				HealedSelector:   outcome.Healing.NewSelector,
			}
		} else {
			record.Outcome = types.StepSuccess
		}
		steps = append(steps, record)
		history = append(history, fmt.Sprintf("%s %s", action.Kind, action.Selector))

		if action.Kind == types.ActionNavigate && pre != nil {
			navResult := pre.ExecutePreflight(ctx, runID, action.URL, session, params)
			navPopupsResolved += navResult.PopupsResolved
			s.emit(runID, order, "PREFLIGHT", fmt.Sprintf("re-entered for navigate target: cookie=%s popups_resolved=%d", navResult.Cookie.Outcome, navResult.PopupsResolved), nil)
		}

		if action.Kind == types.ActionComplete {
			return steps, types.OutcomeCompleted, "", navPopupsResolved
		}
	}

	return steps, terminalOutcomeOnFailure(steps), "step cap reached", navPopupsResolved
}

func terminalOutcomeOnFailure(steps []types.StepRecord) types.RunOutcome {
	for _, st := range steps {
		if st.Outcome != types.StepFailure {
			return types.OutcomeCompletedWithLimits
		}
	}
	return types.OutcomeFailedRecoverable
}

func outcomeHealing(o executor.Outcome) *irl.Healing {
	return o.Healing
}

func healingKind(strategy string) types.HealingKind {
	if strategy == "vision_match" {
		return types.HealingVisionMatch
	}
	return types.HealingAlternativeSelector
}

func failedStep(runID types.RunID, order int, action types.Action, err error) types.StepRecord {
	now := time.Now()
	return types.StepRecord{
		RunID:      runID,
		Order:      order,
		Action:     action,
		Outcome:    types.StepFailure,
		Error:      err.Error(),
		StartedAt:  now,
		FinishedAt: now,
	}
}

func (s *Sequencer) failedSummary(runID string, outcome types.RunOutcome, reason string) types.RunSummary {
	return types.RunSummary{RunID: types.RunID(runID), Outcome: outcome, FailureReason: reason}
}

// now is a seam so a future test can stub wall-clock step timing
// without the package reaching for time.Now() directly everywhere.
func (s *Sequencer) now() time.Time { return time.Now() }

func (s *Sequencer) emit(runID string, step int, state, message string, metadata map[string]any) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["correlation_id"] = uuid.NewString()
	s.deps.Sink.Emit(events.Event{
		Timestamp:  time.Now(),
		RunID:      runID,
		StepNumber: step,
		State:      state,
		Message:    message,
		Metadata:   metadata,
	})
}

// analyzeWithBreaker wraps the Page Analyzer's pass with the text-model
// circuit breaker (§4.4): an OPEN breaker fails fast to a zero-value
// VisionContext rather than piling up timeouts against a struggling
// provider.
func (s *Sequencer) analyzeWithBreaker(ctx context.Context, runID, domHTML string, screenshot []byte, goal string, params model.CallParams) (types.VisionContext, error) {
	call := func() (types.VisionContext, error) {
		return s.deps.Analyzer.Analyze(ctx, runID, domHTML, screenshot, goal, params)
	}
	if s.deps.Breakers == nil {
		return call()
	}
	b := s.deps.Breakers.Get(resilience.ServiceTextModel, resilience.DefaultPolicy)
	return resilience.ExecuteWithResilience(b, call, func() (types.VisionContext, error) {
		return types.VisionContext{}, fmt.Errorf("sequencer: text-model circuit breaker open")
	})
}
