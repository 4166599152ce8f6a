// time.go — Timestamp parsing utilities for RFC3339 and RFC3339Nano formats.
package util

import "time"

// ParseTimestamp parses an RFC3339 timestamp string, trying RFC3339Nano first
// (since it's a superset of RFC3339), then RFC3339 as a fallback.
// Returns zero time on failure.
func ParseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t
}

// JitterDuration scales d by a uniform random factor in [1-pct, 1+pct].
// Used by the cookie machine's wait between resolution attempts to
// avoid thundering-herd retries across concurrent runs.
func JitterDuration(d time.Duration, pct float64, rand func() float64) time.Duration {
	if pct <= 0 {
		return d
	}
	factor := 1 - pct + (2 * pct * rand())
	return time.Duration(float64(d) * factor)
}
