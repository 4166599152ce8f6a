package sequencer

import (
	"context"
	"testing"

	"github.com/brennhill/runlattice/internal/actiongen"
	"github.com/brennhill/runlattice/internal/analyzer"
	"github.com/brennhill/runlattice/internal/browser"
	"github.com/brennhill/runlattice/internal/budget"
	"github.com/brennhill/runlattice/internal/events"
	"github.com/brennhill/runlattice/internal/model"
	"github.com/brennhill/runlattice/internal/registry"
	"github.com/brennhill/runlattice/internal/resilience"
	"github.com/brennhill/runlattice/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProvider returns each response in turn, repeating the last
// one once exhausted.
type scriptedProvider struct {
	responses []string
	calls     int
}

func (p *scriptedProvider) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (model.Response, error) {
	i := p.calls
	if i >= len(p.responses) {
		i = len(p.responses) - 1
	}
	p.calls++
	return model.Response{Text: p.responses[i]}, nil
}

func (p *scriptedProvider) CompleteVision(ctx context.Context, imageBytes []byte, systemPrompt, userPrompt string) (model.Response, error) {
	return p.Complete(ctx, systemPrompt, userPrompt, 0, 0)
}

func newTestDeps(t *testing.T, provider model.Provider) (Deps, *events.MemorySink) {
	t.Helper()
	client := model.New(provider, nil, nil, nil)
	sink := events.NewMemorySink()
	reg := registry.New()
	return Deps{
		Registry:       reg,
		Budgets:        budget.NewManager(),
		Breakers:       resilience.NewStore(nil, nil),
		BrowserManager: browser.NewFakeManager(),
		Analyzer:       analyzer.New(reg, client, nil, analyzer.Config{VisionEnabled: false}, nil),
		ActionGen:      actiongen.New(client, nil, nil),
		Sink:           sink,
	}, sink
}

func baseDescriptor(url string, mode types.TestMode) types.RunDescriptor {
	return types.RunDescriptor{
		RunID:      types.NewRunID(),
		TargetURLs: []string{url},
		Mode:       mode,
		Browser:    types.BrowserChromium,
		Viewport:   types.Viewport{Width: 1280, Height: 720},
		Tier:       types.TierIndie,
	}
}

func TestRunSingleURLCompletesOnExplicitCompleteAction(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"kind":"complete","confidence":0.95,"description":"done"}`,
	}}
	deps, sink := newTestDeps(t, provider)
	seq := New(deps)

	desc := baseDescriptor("https://shop.test/cart", types.ModeGuest)
	summary, err := seq.Run(context.Background(), desc)
	require.NoError(t, err)

	assert.Equal(t, types.OutcomeCompleted, summary.Outcome)
	require.Len(t, summary.Steps, 1)
	assert.Equal(t, types.ActionComplete, summary.Steps[0].Action.Kind)
	assert.Equal(t, types.StepSuccess, summary.Steps[0].Outcome)

	var sawFinalizing bool
	for _, e := range sink.Events() {
		if e.State == "FINALIZING" {
			sawFinalizing = true
		}
	}
	assert.True(t, sawFinalizing)
}

func TestRunSingleURLReachesStepCapWithoutCompleteAction(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"kind":"click","selector":"#missing","confidence":0.9,"description":"keep clicking"}`,
	}}
	deps, _ := newTestDeps(t, provider)
	seq := New(deps)

	desc := baseDescriptor("https://shop.test/cart", types.ModeGuest)
	summary, err := seq.Run(context.Background(), desc)
	require.NoError(t, err)

	assert.Equal(t, types.OutcomeFailedRecoverable, summary.Outcome)
	assert.Equal(t, "step cap reached", summary.FailureReason)
	assert.Len(t, summary.Steps, 25) // ModeGuest MaxSteps
	for _, st := range summary.Steps {
		assert.Equal(t, types.StepFailure, st.Outcome)
	}
}

func TestRunUnknownModeReturnsError(t *testing.T) {
	deps, _ := newTestDeps(t, &scriptedProvider{responses: []string{`{}`}})
	seq := New(deps)

	desc := baseDescriptor("https://shop.test", types.TestMode("bogus"))
	_, err := seq.Run(context.Background(), desc)
	require.Error(t, err)
}

func TestRunMultiURLFansOutAndMergesWorstOutcome(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"kind":"complete","confidence":0.9}`,
	}}
	deps, _ := newTestDeps(t, provider)
	seq := New(deps)

	desc := baseDescriptor("", types.ModeMulti)
	desc.TargetURLs = []string{"https://shop.test/a", "https://shop.test/b"}

	summary, err := seq.Run(context.Background(), desc)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeCompleted, summary.Outcome)
	assert.Len(t, summary.Steps, 2)
}

func TestRunRespectsAIBudgetExhaustionWithoutCrashing(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"kind":"click","selector":"#x","confidence":0.9}`,
	}}
	deps, _ := newTestDeps(t, provider)
	deps.Budgets.GetOrCreate("exhausted-parent", types.TierGuest, &budget.Overrides{})

	seq := New(deps)
	desc := baseDescriptor("https://shop.test", types.ModeGuest)
	desc.ParentRunID = "exhausted-parent"

	for i := 0; i < 15; i++ {
		deps.Budgets.RecordLLMCall("exhausted-parent")
	}

	summary, err := seq.Run(context.Background(), desc)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeFailedRecoverable, summary.Outcome)
}
