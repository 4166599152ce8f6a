package model

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Client wraps a Provider with the retry envelope, rate-limit check,
// and usage accounting §4.3 specifies. One Client per provider
// (text-model, vision-model); the Sequencer/Page Analyzer hold
// references to whichever Clients the run needs.
type Client struct {
	provider Provider
	limiter  RateLimiter
	log      *zap.Logger
	metrics  *adminMetrics

	totalCalls       atomic.Int64
	successCalls     atomic.Int64
	failureCalls     atomic.Int64
	promptTokens     atomic.Int64
	completionTokens atomic.Int64
	totalTokens      atomic.Int64
}

// New constructs a Client. reg may be nil to skip Prometheus
// registration (e.g. in tests).
func New(provider Provider, limiter RateLimiter, log *zap.Logger, reg prometheus.Registerer) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		provider: provider,
		limiter:  limiter,
		log:      log,
		metrics:  newAdminMetrics(reg),
	}
}

// ErrRateLimited is returned when the Rate Limiter rejects a call; the
// caller must not retry locally (§4.3 "do not retry locally").
var ErrRateLimited = &rateLimitedError{}

type rateLimitedError struct{}

func (*rateLimitedError) Error() string { return "model: rate limited" }

// Call issues a text completion, retrying per the envelope in §4.3.
func (c *Client) Call(ctx context.Context, params CallParams, systemPrompt, userPrompt string) (Response, error) {
	if err := c.checkRateLimit(ctx, params); err != nil {
		return Response{}, err
	}
	resp, err := c.callWithRetry(ctx, func(ctx context.Context) (Response, error) {
		return c.provider.Complete(ctx, systemPrompt, userPrompt, params.MaxTokens, params.Temperature)
	})
	c.account(resp, err)
	return resp, err
}

// CallWithVision issues a vision-capable completion with an inline
// image, retrying per the same envelope.
func (c *Client) CallWithVision(ctx context.Context, params CallParams, imageBytes []byte, systemPrompt, userPrompt string) (Response, error) {
	if err := c.checkRateLimit(ctx, params); err != nil {
		return Response{}, err
	}
	resp, err := c.callWithRetry(ctx, func(ctx context.Context) (Response, error) {
		return c.provider.CompleteVision(ctx, imageBytes, systemPrompt, userPrompt)
	})
	c.account(resp, err)
	return resp, err
}

func (c *Client) checkRateLimit(ctx context.Context, params CallParams) error {
	if c.limiter == nil {
		return nil
	}
	allowed, err := c.limiter.Allow(ctx, params.Model, params.UserID, params.Tier, params.EstimatedTokens)
	if err != nil {
		return err
	}
	if !allowed {
		c.log.Warn("model call rate limited",
			zap.String("model", params.Model), zap.String("tier", params.Tier))
		return ErrRateLimited
	}
	return nil
}

// callWithRetry applies the §4.3 envelope: up to 3 attempts, exponential
// backoff 1s/2s/4s with ±10% jitter, retryable on 429/5xx/network
// resets/timeouts/DNS failures, non-retryable on 400/401.
func (c *Client) callWithRetry(ctx context.Context, attempt func(context.Context) (Response, error)) (Response, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.Multiplier = 2
	b.MaxInterval = 4 * time.Second
	b.RandomizationFactor = 0.1

	return backoff.Retry(ctx, func() (Response, error) {
		resp, err := attempt(ctx)
		if err == nil {
			return resp, nil
		}
		if !isRetryable(err) {
			return Response{}, backoff.Permanent(err)
		}
		c.log.Debug("retrying model call", zap.Error(err))
		return Response{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(3))
}

func (c *Client) account(resp Response, err error) {
	c.totalCalls.Add(1)
	if err != nil {
		c.failureCalls.Add(1)
		c.metrics.recordFailure()
		return
	}
	c.successCalls.Add(1)
	c.promptTokens.Add(int64(resp.Usage.PromptTokens))
	c.completionTokens.Add(int64(resp.Usage.CompletionTokens))
	c.totalTokens.Add(int64(resp.Usage.TotalTokens))
	c.metrics.recordSuccess(resp.Usage)
	c.log.Info("model call usage",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Int("total_tokens", resp.Usage.TotalTokens))
}

// Snapshot returns the cumulative admin metrics (§4.3).
func (c *Client) Snapshot() Snapshot {
	return Snapshot{
		TotalCalls:       int(c.totalCalls.Load()),
		Success:          int(c.successCalls.Load()),
		Failures:         int(c.failureCalls.Load()),
		PromptTokens:     int(c.promptTokens.Load()),
		CompletionTokens: int(c.completionTokens.Load()),
		TotalTokens:      int(c.totalTokens.Load()),
	}
}
