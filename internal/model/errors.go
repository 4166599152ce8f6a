package model

import "fmt"

// ProviderError carries the HTTP-ish status a Provider observed so the
// retry envelope can classify it without string-matching the error
// text, since Provider implementations control their own wire decoding.
type ProviderError struct {
	StatusCode int
	Provider   string
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Retryable reports whether the status is one of the retryable classes
// §4.3 names: 429, 500, 502, 503, 504 (network resets/timeouts/DNS
// failures surface from the transport as non-ProviderError errors and
// are treated as retryable by isRetryable).
func (e *ProviderError) Retryable() bool {
	switch e.StatusCode {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// isRetryable classifies any error the Provider returns: a ProviderError
// is judged by status; anything else (network reset, timeout, DNS
// failure) is treated as transient per §4.3.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if pe, ok := err.(*ProviderError); ok {
		return pe.Retryable()
	}
	return true
}
