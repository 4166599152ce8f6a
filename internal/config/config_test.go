package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	os.Unsetenv("DOM_SUMMARY_LIMIT")
	os.Unsetenv("ACCESSIBILITY_SUMMARY_LIMIT")

	cfg := Load()

	assert.Equal(t, 200, cfg.Analyzer.DOMSummaryLimit)
	assert.Equal(t, 40, cfg.Analyzer.AccessibilitySummaryLimit)
	assert.Equal(t, "gpt-4o-mini", cfg.Model.Model)
	assert.True(t, cfg.Model.VisionEnabled)
}

func TestLoadClampsBelowMinimum(t *testing.T) {
	os.Setenv("DOM_SUMMARY_LIMIT", "5")
	os.Setenv("ACCESSIBILITY_SUMMARY_LIMIT", "1")
	defer os.Unsetenv("DOM_SUMMARY_LIMIT")
	defer os.Unsetenv("ACCESSIBILITY_SUMMARY_LIMIT")

	cfg := Load()

	assert.Equal(t, 20, cfg.Analyzer.DOMSummaryLimit)
	assert.Equal(t, 5, cfg.Analyzer.AccessibilitySummaryLimit)
}

func TestLoadRespectsEnvOverride(t *testing.T) {
	os.Setenv("ENABLE_VISION_VALIDATION", "false")
	defer os.Unsetenv("ENABLE_VISION_VALIDATION")

	cfg := Load()

	assert.False(t, cfg.Model.VisionEnabled)
}
