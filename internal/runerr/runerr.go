// runerr.go — Typed error taxonomy (§7): self-describing, actionable
// error codes an operator or caller can act on, expressed as plain Go
// errors satisfying error and Unwrap() error so the taxonomy works with
// errors.As/errors.Is across package boundaries.
package runerr

import "fmt"

// Kind classifies an error per §7's taxonomy.
type Kind string

const (
	KindInvariantViolation Kind = "invariant_violation"
	KindProviderTransient  Kind = "provider_transient"
	KindProviderPermanent  Kind = "provider_permanent"
	KindBrowserAction      Kind = "browser_action"
	KindBudgetExhausted    Kind = "budget_exhausted"
	KindParseError         Kind = "parse_error"
)

// RunError is the common error envelope every layer raises, carrying
// run-id, step-number, phase, and a cause chain (§7 "Every raise carries
// run-id, step-number, phase, and cause chain").
type RunError struct {
	Kind    Kind
	RunID   string
	Step    int
	Phase   string
	Message string
	Cause   error
}

func (e *RunError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] run=%s step=%d phase=%s: %s: %v", e.Kind, e.RunID, e.Step, e.Phase, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] run=%s step=%d phase=%s: %s", e.Kind, e.RunID, e.Step, e.Phase, e.Message)
}

func (e *RunError) Unwrap() error { return e.Cause }

// New constructs a RunError of the given kind.
func New(kind Kind, runID string, step int, phase, message string, cause error) *RunError {
	return &RunError{Kind: kind, RunID: runID, Step: step, Phase: phase, Message: message, Cause: cause}
}

// Invariant raises a fatal invariant-violation error (§7: "Abort run
// immediately; mark FAILED_UNRECOVERABLE"). Kept distinct from the
// other constructors so call sites read as intentional assertion
// failures rather than ordinary error propagation.
func Invariant(runID string, phase, message string) *RunError {
	return &RunError{Kind: KindInvariantViolation, RunID: runID, Phase: phase, Message: message}
}

// IsInvariantViolation reports whether err (or any error it wraps) is a
// fatal invariant violation — these are never retried or absorbed.
func IsInvariantViolation(err error) bool {
	var re *RunError
	if !asRunError(err, &re) {
		return false
	}
	return re.Kind == KindInvariantViolation
}

// IsBudgetExhausted reports whether err is a non-fatal budget-exhaustion
// signal (§7: "Non-fatal; Sequencer transitions to COMPLETED_WITH_LIMITS").
func IsBudgetExhausted(err error) bool {
	var re *RunError
	if !asRunError(err, &re) {
		return false
	}
	return re.Kind == KindBudgetExhausted
}

// IsRetryable reports whether err represents a provider-transient
// failure the Model Client's retry envelope should retry (§7).
func IsRetryable(err error) bool {
	var re *RunError
	if !asRunError(err, &re) {
		return false
	}
	return re.Kind == KindProviderTransient
}

func asRunError(err error, target **RunError) bool {
	for err != nil {
		if re, ok := err.(*RunError); ok {
			*target = re
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
