package resilience

import "fmt"

// BreakerOpenError is returned by ExecuteWithResilience when a service's
// breaker is OPEN and no fallback was supplied.
type BreakerOpenError struct {
	Service string
}

func (e *BreakerOpenError) Error() string {
	return fmt.Sprintf("resilience: circuit breaker open for service %q", e.Service)
}

// ErrBreakerOpen constructs a BreakerOpenError for service.
func ErrBreakerOpen(service string) error {
	return &BreakerOpenError{Service: service}
}
