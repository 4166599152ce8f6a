// ids.go — ULID-based run identifiers. Run-id and parent-run-id are
// ULIDs: lexicographically sortable by creation time, which keeps the
// monotonically-increasing step-record ordering guarantee (§5) visible
// in the id itself, not just in a separate sequence counter.
package types

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// RunID is a ULID identifying one browser run.
type RunID string

// ParentRunID is a ULID identifying a group of sibling browser runs that
// share an AI Budget (see Parent run, GLOSSARY).
type ParentRunID string

// NewRunID mints a new monotonic ULID-backed run id.
func NewRunID() RunID {
	return RunID(newULID())
}

// NewParentRunID mints a new monotonic ULID-backed parent-run id.
func NewParentRunID() ParentRunID {
	return ParentRunID(newULID())
}

func newULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

func (r RunID) String() string       { return string(r) }
func (p ParentRunID) String() string { return string(p) }
