// config.go — Environment configuration loading with a priority cascade
// (defaults < env vars), centralizing every environment variable named
// in §6 in one place instead of scattering os.Getenv calls across call
// sites. Uses viper for the env-var binding.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ModelConfig holds the text-model endpoint and defaults (§6 OPENAI_* vars).
type ModelConfig struct {
	APIURL         string
	APIKey         string
	Model          string
	Temperature    float32
	MaxTokens      int
	OrgID          string
	VisionModel    string
	VisionEndpoint string
	VisionEnabled  bool
}

// AnalyzerConfig holds Page Analyzer summary caps (§6).
type AnalyzerConfig struct {
	DOMSummaryLimit           int
	AccessibilitySummaryLimit int
}

// ObservabilityConfig holds logging verbosity (§6).
type ObservabilityConfig struct {
	LogLevel string
	DebugLLM bool
}

// FallbackConfig holds the UNIFIED_BRAIN_FALLBACK_* breaker/fallback
// threshold family (§6). Load reads these values, but nothing in this
// module applies them: the breakers run on resilience.DefaultPolicy and
// resilience.VisionPolicy.
type FallbackConfig struct {
	FailureThreshold  int
	RecoveryTimeout   time.Duration
	VisionThreshold   int
	VisionRecoveryWait time.Duration
}

// Config is the fully resolved environment configuration for one process.
type Config struct {
	Model         ModelConfig
	Analyzer      AnalyzerConfig
	Observability ObservabilityConfig
	Fallback      FallbackConfig
}

// Load resolves Config from environment variables, applying the defaults
// documented in §4.2, §4.4, and §6 wherever a variable is unset.
func Load() Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("openai_api_url", "https://api.openai.com/v1")
	v.SetDefault("openai_model", "gpt-4o-mini")
	v.SetDefault("openai_temperature", 0.2)
	v.SetDefault("openai_max_tokens", 1024)
	v.SetDefault("vision_model", "")
	v.SetDefault("vision_model_endpoint", "")
	v.SetDefault("enable_vision_validation", true)
	v.SetDefault("dom_summary_limit", 200)
	v.SetDefault("accessibility_summary_limit", 40)
	v.SetDefault("log_level", "info")
	v.SetDefault("debug_llm", false)
	v.SetDefault("unified_brain_fallback_failure_threshold", 5)
	v.SetDefault("unified_brain_fallback_recovery_seconds", 60)
	v.SetDefault("unified_brain_fallback_vision_threshold", 3)
	v.SetDefault("unified_brain_fallback_vision_recovery_seconds", 90)

	cfg := Config{
		Model: ModelConfig{
			APIURL:         v.GetString("openai_api_url"),
			APIKey:         v.GetString("openai_api_key"),
			Model:          v.GetString("openai_model"),
			Temperature:    float32(v.GetFloat64("openai_temperature")),
			MaxTokens:      v.GetInt("openai_max_tokens"),
			OrgID:          v.GetString("openai_org_id"),
			VisionModel:    v.GetString("vision_model"),
			VisionEndpoint: v.GetString("vision_model_endpoint"),
			VisionEnabled:  v.GetBool("enable_vision_validation"),
		},
		Analyzer: AnalyzerConfig{
			DOMSummaryLimit:           clampMin(v.GetInt("dom_summary_limit"), 20),
			AccessibilitySummaryLimit: clampMin(v.GetInt("accessibility_summary_limit"), 5),
		},
		Observability: ObservabilityConfig{
			LogLevel: v.GetString("log_level"),
			DebugLLM: v.GetBool("debug_llm"),
		},
		Fallback: FallbackConfig{
			FailureThreshold:   v.GetInt("unified_brain_fallback_failure_threshold"),
			RecoveryTimeout:    time.Duration(v.GetInt("unified_brain_fallback_recovery_seconds")) * time.Second,
			VisionThreshold:    v.GetInt("unified_brain_fallback_vision_threshold"),
			VisionRecoveryWait: time.Duration(v.GetInt("unified_brain_fallback_vision_recovery_seconds")) * time.Second,
		},
	}
	return cfg
}

func clampMin(v, min int) int {
	if v < min {
		return min
	}
	return v
}
