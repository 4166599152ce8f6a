package preflight

import (
	"context"
	"testing"

	"github.com/brennhill/runlattice/internal/browser"
	"github.com/brennhill/runlattice/internal/cookie"
	"github.com/brennhill/runlattice/internal/model"
	"github.com/brennhill/runlattice/internal/popup"
	"github.com/brennhill/runlattice/internal/registry"
	"github.com/brennhill/runlattice/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrchestrator(reg *registry.Registry) *Orchestrator {
	cm := cookie.New(reg, nil, nil)
	ph := popup.New(reg, 1280, 720)
	return New(reg, cm, ph, nil)
}

func TestExecutePreflightCompletesBothStatusesOnCleanPage(t *testing.T) {
	reg := registry.New()
	reg.Reset("run1")
	o := newOrchestrator(reg)

	session := browser.NewFakeSession()
	session.SetDOM(`<html></html>`)

	result := o.ExecutePreflight(context.Background(), "run1", "https://shop.test/home", session, model.CallParams{})

	assert.True(t, result.Success)
	assert.Equal(t, types.StatusCompleted, reg.CookieStatus("run1"))
	assert.Equal(t, types.StatusCompleted, reg.PreflightStatus("run1"))
}

func TestExecutePreflightSkipsTrivialOnSecondCallForSameURL(t *testing.T) {
	reg := registry.New()
	reg.Reset("run1")
	o := newOrchestrator(reg)

	session := browser.NewFakeSession()
	session.SetDOM(`<html></html>`)

	first := o.ExecutePreflight(context.Background(), "run1", "https://shop.test/home", session, model.CallParams{})
	require.True(t, first.Success)

	second := o.ExecutePreflight(context.Background(), "run1", "https://shop.test/home", session, model.CallParams{})
	assert.True(t, second.Success)
	require.Len(t, second.Trace, 1)
	assert.Equal(t, "SKIPPED", second.Trace[0].State)
}

func TestExecutePreflightDismissesBlockingPopupViaEscapeKey(t *testing.T) {
	reg := registry.New()
	reg.Reset("run1")
	o := newOrchestrator(reg)

	session := browser.NewFakeSession()
	session.SetDOM(`<html></html>`)
	session.SetElement("[role=dialog]", browser.ElementBounds{Visible: true, Enabled: true, Width: 10, Height: 10})
	session.OnClick("key:Escape", func(s *browser.FakeSession) {
		s.RemoveElement("[role=dialog]")
	})

	result := o.ExecutePreflight(context.Background(), "run1", "https://shop.test/landing", session, model.CallParams{})

	require.True(t, result.Success)
	require.Len(t, result.Popups, 1)
	assert.True(t, result.Popups[0].Blocking)
	assert.Equal(t, 1, result.PopupsResolved)
	assert.Equal(t, 0, result.PopupsSkipped)
}

func TestExecutePreflightCountsSkippedWhenPopupResistsAllStrategies(t *testing.T) {
	reg := registry.New()
	reg.Reset("run1")
	o := newOrchestrator(reg)

	session := browser.NewFakeSession()
	session.SetDOM(`<html></html>`)
	session.SetElement(".modal", browser.ElementBounds{Visible: true, Enabled: true, Width: 500, Height: 500})

	result := o.ExecutePreflight(context.Background(), "run1", "https://shop.test/stubborn", session, model.CallParams{})

	require.True(t, result.Success)
	require.Len(t, result.Popups, 1)
	assert.Equal(t, 0, result.PopupsResolved)
	assert.Equal(t, 1, result.PopupsSkipped)
	assert.Equal(t, types.StatusCompleted, reg.PreflightStatus("run1"))
}

func TestExecutePreflightWarnsOnLingeringCookieElement(t *testing.T) {
	reg := registry.New()
	reg.Reset("run1")
	o := newOrchestrator(reg)

	session := browser.NewFakeSession()
	session.SetDOM(`<html></html>`)
	session.SetElement("[class*=cookie]", browser.ElementBounds{Visible: true, Enabled: true})

	result := o.ExecutePreflight(context.Background(), "run1", "https://shop.test/lingering", session, model.CallParams{})

	require.True(t, result.Success)
	found := false
	for _, e := range result.Trace {
		if e.State == "LINGERING_COOKIE_WARNING" {
			found = true
		}
	}
	assert.True(t, found, "expected a lingering-cookie-element warning trace entry")
}
