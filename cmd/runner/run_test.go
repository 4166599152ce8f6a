package main

import (
	"testing"

	"github.com/brennhill/runlattice/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDescriptorResolvesFlagsIntoRunDescriptor(t *testing.T) {
	opts := &runOptions{
		urls:      []string{"https://shop.test/cart"},
		mode:      "guest",
		browser:   "firefox",
		tier:      "pro",
		viewportW: 1024,
		viewportH: 768,
	}

	desc, err := buildDescriptor(opts)
	require.NoError(t, err)
	assert.Equal(t, types.ModeGuest, desc.Mode)
	assert.Equal(t, types.BrowserFirefox, desc.Browser)
	assert.Equal(t, types.TierPro, desc.Tier)
	assert.Equal(t, "https://shop.test/cart", desc.FirstURL())
	assert.NotEmpty(t, desc.RunID)
}

func TestBuildDescriptorRejectsUnknownMode(t *testing.T) {
	opts := &runOptions{urls: []string{"https://shop.test"}, mode: "bogus"}
	_, err := buildDescriptor(opts)
	require.Error(t, err)
}

func TestBuildDescriptorRequiresAtLeastOneURL(t *testing.T) {
	opts := &runOptions{mode: "single"}
	_, err := buildDescriptor(opts)
	require.Error(t, err)
}
