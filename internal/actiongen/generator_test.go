package actiongen

import (
	"context"
	"errors"
	"testing"

	"github.com/brennhill/runlattice/internal/model"
	"github.com/brennhill/runlattice/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	response model.Response
	err      error
	calls    int
}

func (f *fakeProvider) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (model.Response, error) {
	f.calls++
	return f.response, f.err
}

func (f *fakeProvider) CompleteVision(ctx context.Context, imageBytes []byte, systemPrompt, userPrompt string) (model.Response, error) {
	return f.Complete(ctx, systemPrompt, userPrompt, 0, 0)
}

func TestComponentHashIsStableAndDistinct(t *testing.T) {
	h1 := ComponentHash("https://a.test/cart", "#submit")
	h2 := ComponentHash("https://a.test/cart", "#submit")
	h3 := ComponentHash("https://a.test/cart", "#other")
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
}

func TestGenerateActionReturnsLearnedActionAboveThreshold(t *testing.T) {
	store := NewInMemoryStore()
	learned := types.Action{Kind: types.ActionClick, Selector: "#submit", Confidence: 0.9}
	store.Put("proj1", ComponentHash("https://a.test", "#submit"), LearnedAction{Action: learned, Reliability: 0.95})

	p := &fakeProvider{}
	g := New(model.New(p, nil, nil, nil), store, nil)

	vc := types.VisionContext{Elements: []types.InteractiveElement{{Selector: "#submit"}}}
	action, err := g.GenerateAction(context.Background(), vc, nil, "goal", "https://a.test", &Tracking{ProjectID: "proj1"}, model.CallParams{})
	require.NoError(t, err)
	assert.Equal(t, learned, action)
	assert.Equal(t, 0, p.calls, "learned action hit should skip the LLM call")
}

func TestGenerateActionFallsThroughToLLMBelowThreshold(t *testing.T) {
	store := NewInMemoryStore()
	store.Put("proj1", ComponentHash("https://a.test", "#submit"),
		LearnedAction{Action: types.Action{Kind: types.ActionClick, Selector: "#submit"}, Reliability: 0.5})

	p := &fakeProvider{response: model.Response{Text: `{"kind":"click","selector":"#submit","confidence":0.8}`}}
	g := New(model.New(p, nil, nil, nil), store, nil)

	vc := types.VisionContext{Elements: []types.InteractiveElement{{Selector: "#submit"}}}
	action, err := g.GenerateAction(context.Background(), vc, nil, "goal", "https://a.test", &Tracking{ProjectID: "proj1"}, model.CallParams{})
	require.NoError(t, err)
	assert.Equal(t, types.ActionClick, action.Kind)
	assert.Equal(t, 1, p.calls)
}

func TestGenerateActionRejectsInvalidActionFromModel(t *testing.T) {
	p := &fakeProvider{response: model.Response{Text: `{"kind":"click","confidence":0.8}`}}
	g := New(model.New(p, nil, nil, nil), nil, nil)

	_, err := g.GenerateAction(context.Background(), types.VisionContext{}, nil, "goal", "https://a.test", nil, model.CallParams{})
	require.Error(t, err)
}

func TestParseTestInstructions(t *testing.T) {
	p := &fakeProvider{response: model.Response{Text: `{"primary_goal":"checkout","specific_actions":["click buy"],"elements_to_check":[],"expected_outcomes":["order confirmed"],"priority":"high","plan":["a","b"]}`}}
	g := New(model.New(p, nil, nil, nil), nil, nil)

	parsed, err := g.ParseTestInstructions(context.Background(), "complete a purchase", "https://a.test/cart", model.CallParams{})
	require.NoError(t, err)
	assert.Equal(t, "checkout", parsed.PrimaryGoal)
	assert.Len(t, parsed.Plan, 2)
}

func TestFindAlternativeSelectorCapsToMax(t *testing.T) {
	p := &fakeProvider{response: model.Response{Text: `{"alternatives":[
		{"selector":"button:has-text(\"Buy\")","strategy":"text","confidence":0.9},
		{"selector":"[data-testid=buy]","strategy":"attribute","confidence":0.8},
		{"selector":"button:nth-of-type(2)","strategy":"position","confidence":0.4}
	]}`}}
	g := New(model.New(p, nil, nil, nil), nil, nil)

	alts, err := g.FindAlternativeSelector(context.Background(), types.Action{Selector: "#buy"}, "<html></html>", errors.New("not found"), "Buy", 2, model.CallParams{})
	require.NoError(t, err)
	assert.Len(t, alts, 2)
	assert.Equal(t, "text", alts[0].Strategy)
}
