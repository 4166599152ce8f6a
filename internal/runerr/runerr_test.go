package runerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsInvariantViolation(t *testing.T) {
	err := Invariant("run1", "preflight", "cookie handling attempted outside sealed machine")
	if !IsInvariantViolation(err) {
		t.Fatal("expected invariant violation")
	}
	wrapped := fmt.Errorf("wrapped: %w", err)
	if !IsInvariantViolation(wrapped) {
		t.Fatal("expected invariant violation through wrap")
	}
}

func TestIsBudgetExhaustedUnwraps(t *testing.T) {
	base := New(KindBudgetExhausted, "run1", 5, "executing", "LLM cap reached", nil)
	if !IsBudgetExhausted(base) {
		t.Fatal("expected budget exhausted")
	}
	if IsInvariantViolation(base) {
		t.Fatal("should not classify as invariant violation")
	}
}

func TestUnrelatedErrorsDoNotMatch(t *testing.T) {
	if IsInvariantViolation(errors.New("plain")) {
		t.Fatal("plain errors must not match")
	}
}
