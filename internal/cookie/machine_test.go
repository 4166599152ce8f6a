package cookie

import (
	"context"
	"testing"

	"github.com/brennhill/runlattice/internal/browser"
	"github.com/brennhill/runlattice/internal/model"
	"github.com/brennhill/runlattice/internal/registry"
	"github.com/brennhill/runlattice/internal/runerr"
	"github.com/brennhill/runlattice/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectPlatformAndRegion(t *testing.T) {
	assert.Equal(t, PlatformWordPress, DetectPlatform(`<meta name="generator" content="WordPress 6.0">`))
	assert.Equal(t, PlatformShopify, DetectPlatform(`<script src="//cdn.shopify.com/s/files/x.js"></script>`))
	assert.Equal(t, PlatformCustom, DetectPlatform(`<html></html>`))

	assert.Equal(t, RegionEU, DetectRegion("de", ""))
	assert.Equal(t, RegionUK, DetectRegion("uk", ""))
	assert.Equal(t, RegionUS, DetectRegion("com", "en-US"))
	assert.Equal(t, RegionOther, DetectRegion("jp", ""))
}

func TestResolveReturnsBlockedOnReentry(t *testing.T) {
	reg := registry.New()
	reg.Reset("run1")
	m := New(reg, nil, nil)
	session := browser.NewFakeSession()
	session.SetDOM(`<html></html>`)

	first, err := m.Resolve(context.Background(), "run1", "https://shop.test/cart", session, model.CallParams{})
	require.NoError(t, err)
	assert.NotEqual(t, types.CookieBlocked, first.Outcome)

	second, err := m.Resolve(context.Background(), "run1", "https://shop.test/cart", session, model.CallParams{})
	require.NoError(t, err)
	assert.Equal(t, types.CookieBlocked, second.Outcome)
	assert.Equal(t, "already processed", second.Reason)
}

func TestResolveRejectsWhenCookieStatusAlreadyCompleted(t *testing.T) {
	reg := registry.New()
	reg.Reset("run1")
	require.NoError(t, reg.SetCookieStatus("run1", types.StatusCompleted))

	m := New(reg, nil, nil)
	session := browser.NewFakeSession()
	session.SetDOM(`<html></html>`)

	_, err := m.Resolve(context.Background(), "run1", "https://shop.test/other", session, model.CallParams{})
	require.Error(t, err)
	assert.True(t, runerr.IsInvariantViolation(err))
}

func TestResolveSetsCookieStatusCompletedOnExit(t *testing.T) {
	reg := registry.New()
	reg.Reset("run1")
	m := New(reg, nil, nil)
	session := browser.NewFakeSession()
	session.SetDOM(`<html></html>`)

	_, err := m.Resolve(context.Background(), "run1", "https://shop.test/checkout", session, model.CallParams{})
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, reg.CookieStatus("run1"))
}

func TestHeuristicPathResolvesWhenAcceptButtonDismissesBanner(t *testing.T) {
	reg := registry.New()
	reg.Reset("run1")
	m := New(reg, nil, nil)

	session := browser.NewFakeSession()
	session.SetDOM(`<html></html>`)
	session.SetElement("#accept-cookies", browser.ElementBounds{Visible: true, Enabled: true, Width: 100, Height: 40})
	session.OnClick("#accept-cookies", func(s *browser.FakeSession) {
		s.RemoveElement("#accept-cookies")
	})

	result, err := m.Resolve(context.Background(), "run1", "https://shop.test/home", session, model.CallParams{})
	require.NoError(t, err)
	assert.Equal(t, types.CookieResolved, result.Outcome)
	assert.Contains(t, result.SelectorsAttempted, "#accept-cookies")
}

func TestPrioritizedSelectorsOrdersPlatformThenRegionThenUniversal(t *testing.T) {
	list := PrioritizedSelectors(PlatformShopify, RegionEU)
	require.NotEmpty(t, list)
	assert.Equal(t, platformSelectors[PlatformShopify][0], list[0])
}
