package irl

import (
	"context"
	"testing"

	"github.com/brennhill/runlattice/internal/actiongen"
	"github.com/brennhill/runlattice/internal/browser"
	"github.com/brennhill/runlattice/internal/model"
	"github.com/brennhill/runlattice/internal/registry"
	"github.com/brennhill/runlattice/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	response model.Response
	err      error
}

func (f *fakeProvider) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (model.Response, error) {
	return f.response, f.err
}

func (f *fakeProvider) CompleteVision(ctx context.Context, imageBytes []byte, systemPrompt, userPrompt string) (model.Response, error) {
	return f.Complete(ctx, systemPrompt, userPrompt, 0, 0)
}

func TestExecuteWithRetrySucceedsOnFirstAttempt(t *testing.T) {
	reg := registry.New()
	reg.Reset("run1")
	require.NoError(t, reg.SetPreflightStatus("run1", types.StatusCompleted))

	session := browser.NewFakeSession()
	session.SetElement("#submit", browser.ElementBounds{Visible: true, Enabled: true})

	l := New(reg, nil)
	action := types.Action{Kind: types.ActionClick, Selector: "#submit", Confidence: 0.9}

	result, err := l.ExecuteWithRetry(context.Background(), "run1", session, action, types.VisionContext{}, types.ActionContextNormal, model.CallParams{}, Options{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Attempts)
	assert.Nil(t, result.Healing)
}

func TestExecuteWithRetryRejectsDuringPreflight(t *testing.T) {
	reg := registry.New()
	reg.Reset("run1")
	require.NoError(t, reg.SetPreflightStatus("run1", types.StatusInProgress))

	session := browser.NewFakeSession()
	l := New(reg, nil)
	action := types.Action{Kind: types.ActionClick, Selector: "#submit", Confidence: 0.9}

	_, err := l.ExecuteWithRetry(context.Background(), "run1", session, action, types.VisionContext{}, types.ActionContextNormal, model.CallParams{}, Options{})
	require.Error(t, err)
}

func TestExecuteWithRetryRejectsCookieConsentContext(t *testing.T) {
	reg := registry.New()
	reg.Reset("run1")
	require.NoError(t, reg.SetPreflightStatus("run1", types.StatusCompleted))

	session := browser.NewFakeSession()
	l := New(reg, nil)
	action := types.Action{Kind: types.ActionClick, Selector: "#accept", Confidence: 0.9}

	_, err := l.ExecuteWithRetry(context.Background(), "run1", session, action, types.VisionContext{}, types.ActionContextCookieConsent, model.CallParams{}, Options{})
	require.Error(t, err)
}

func TestExecuteWithRetryHealsViaVisionMatch(t *testing.T) {
	reg := registry.New()
	reg.Reset("run1")
	require.NoError(t, reg.SetPreflightStatus("run1", types.StatusCompleted))

	session := browser.NewFakeSession()
	session.SetElement("#new-submit", browser.ElementBounds{Visible: true, Enabled: true})

	l := New(reg, nil)
	action := types.Action{Kind: types.ActionClick, Selector: "#stale-submit", Description: "submit order", Confidence: 0.9}
	vc := types.VisionContext{Elements: []types.InteractiveElement{
		{Selector: "#new-submit", Text: "Submit order"},
	}}

	result, err := l.ExecuteWithRetry(context.Background(), "run1", session, action, vc, types.ActionContextNormal, model.CallParams{}, Options{VisionMatchingEnabled: true})
	require.NoError(t, err)
	assert.True(t, result.Success)
	require.NotNil(t, result.Healing)
	assert.Equal(t, "vision_match", result.Healing.Strategy)
	assert.Equal(t, "#new-submit", result.Healing.NewSelector)
}

func TestExecuteWithRetryHealsViaAlternativeSelectorGenerator(t *testing.T) {
	reg := registry.New()
	reg.Reset("run1")
	require.NoError(t, reg.SetPreflightStatus("run1", types.StatusCompleted))

	session := browser.NewFakeSession()
	session.SetElement("#healed", browser.ElementBounds{Visible: true, Enabled: true})

	p := &fakeProvider{response: model.Response{Text: `{"alternatives":[{"selector":"#healed","strategy":"text","confidence":0.8}]}`}}
	gen := actiongen.New(model.New(p, nil, nil, nil), nil, nil)
	l := New(reg, gen)

	action := types.Action{Kind: types.ActionClick, Selector: "#gone", Confidence: 0.9}
	result, err := l.ExecuteWithRetry(context.Background(), "run1", session, action, types.VisionContext{}, types.ActionContextNormal, model.CallParams{}, Options{MaxRetries: 2})
	require.NoError(t, err)
	assert.True(t, result.Success)
	require.NotNil(t, result.Healing)
	assert.Equal(t, "alternative_selector", result.Healing.Strategy)
	assert.Equal(t, "#healed", result.Healing.NewSelector)
}

func TestExecuteWithRetryExhaustsAndReturnsFinalError(t *testing.T) {
	reg := registry.New()
	reg.Reset("run1")
	require.NoError(t, reg.SetPreflightStatus("run1", types.StatusCompleted))

	session := browser.NewFakeSession() // selector never exists
	l := New(reg, nil)
	action := types.Action{Kind: types.ActionClick, Selector: "#missing", Confidence: 0.9}

	result, err := l.ExecuteWithRetry(context.Background(), "run1", session, action, types.VisionContext{}, types.ActionContextNormal, model.CallParams{}, Options{MaxRetries: 2})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 2, result.Attempts)
	assert.Error(t, result.FinalError)
}
