package budget

import "fmt"

// UnknownParentRunError is returned by Marshal when parentRun has no
// Budget (never GetOrCreate'd).
type UnknownParentRunError struct {
	ParentRun string
}

func (e *UnknownParentRunError) Error() string {
	return fmt.Sprintf("budget: unknown parent run %q", e.ParentRun)
}

// ErrUnknownParentRun constructs an UnknownParentRunError for parentRun.
func ErrUnknownParentRun(parentRun string) error {
	return &UnknownParentRunError{ParentRun: parentRun}
}
