// model.go — Model Client (C3, §4.3). Abstracts text/vision providers
// behind call/callWithVision, wrapping retry, rate-limit check, and
// usage accounting. Retries run through cenkalti/backoff/v5 on a
// {1s,2s,4s}±10% envelope rather than a hand-rolled doubling loop.
package model

import (
	"context"
	"time"
)

// Usage is the token accounting from a single provider response (§4.3
// "usage.prompt_tokens/completion_tokens").
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is a completed text or vision call.
type Response struct {
	Text  string
	Usage Usage
}

// RateLimiter is consulted before every call (§4.3 "optional Rate
// Limiter checks (model, user-id, tier, estimated-tokens)"). A nil
// RateLimiter on Client disables the check.
type RateLimiter interface {
	Allow(ctx context.Context, model, userID, tier string, estimatedTokens int) (bool, error)
}

// Provider is the transport-level seam a concrete provider (OpenAI-
// compatible chat completions, a vision endpoint, ...) implements.
// Client wraps a Provider with retry, rate-limiting, and accounting so
// individual providers stay thin translators of the wire format.
type Provider interface {
	// Complete issues one text completion call. Implementations must
	// report HTTP status failures as a *ProviderError (see isRetryable
	// and Client.callWithRetry) so the retry envelope can tell transient
	// failures from permanent ones.
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (Response, error)
	// CompleteVision issues one vision-capable call with an inline image.
	CompleteVision(ctx context.Context, imageBytes []byte, systemPrompt, userPrompt string) (Response, error)
}

// CallParams describes one logical call to Call/CallWithVision, used
// for rate-limiter checks and metrics labeling.
type CallParams struct {
	Model           string
	UserID          string
	Tier            string
	EstimatedTokens int
	MaxTokens       int
	Temperature     float64
}

// defaultTimeout bounds a single provider HTTP attempt, matching
// TimeoutAI (§6 / internal/types.TimeoutAI) one layer up from here.
const defaultTimeout = 30 * time.Second
