package model

import "github.com/prometheus/client_golang/prometheus"

// adminMetrics is the process-wide (admin-only) Model Client metrics
// surface §4.3 names: totalCalls, success, failures, token counters,
// with success-rate and estimated cost derived at read time.
type adminMetrics struct {
	calls          *prometheus.CounterVec
	promptTokens   prometheus.Counter
	completionToks prometheus.Counter
	totalTokens    prometheus.Counter
}

func newAdminMetrics(reg prometheus.Registerer) *adminMetrics {
	m := &adminMetrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "runlattice_model_calls_total",
			Help: "Model Client calls by outcome.",
		}, []string{"outcome"}),
		promptTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "runlattice_model_prompt_tokens_total",
			Help: "Cumulative prompt tokens consumed.",
		}),
		completionToks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "runlattice_model_completion_tokens_total",
			Help: "Cumulative completion tokens consumed.",
		}),
		totalTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "runlattice_model_total_tokens_total",
			Help: "Cumulative total tokens consumed.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.calls, m.promptTokens, m.completionToks, m.totalTokens)
	}
	return m
}

func (m *adminMetrics) recordSuccess(u Usage) {
	m.calls.WithLabelValues("success").Inc()
	m.promptTokens.Add(float64(u.PromptTokens))
	m.completionToks.Add(float64(u.CompletionTokens))
	m.totalTokens.Add(float64(u.TotalTokens))
}

func (m *adminMetrics) recordFailure() {
	m.calls.WithLabelValues("failure").Inc()
}

// Snapshot is a point-in-time read of cumulative usage (§4.3 "derived
// success-rate and estimated cost").
type Snapshot struct {
	TotalCalls       int
	Success          int
	Failures         int
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// SuccessRate returns Success/TotalCalls, or 0 if no calls were made.
func (s Snapshot) SuccessRate() float64 {
	if s.TotalCalls == 0 {
		return 0
	}
	return float64(s.Success) / float64(s.TotalCalls)
}

// EstimatedCost applies a $/token rate (model-specific pricing lives
// one layer up in config) to TotalTokens.
func (s Snapshot) EstimatedCost(dollarsPerThousandTokens float64) float64 {
	return float64(s.TotalTokens) / 1000 * dollarsPerThousandTokens
}
