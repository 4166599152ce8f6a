// store.go — the learned-actions store C7's heuristic lookup consults
// (§4.7 step 1). Backed by Redis when configured, with an in-memory map
// as the zero-dependency fallback — the same dual-backend shape the
// pack's itsneelabh-gomind/ui/security/rate_limiter.go uses for its
// Redis-or-in-memory rate limiter.
package actiongen

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/brennhill/runlattice/internal/types"
	"github.com/redis/go-redis/v9"
)

// LearnedAction is a previously-successful Action keyed by component
// hash, with a rolling reliability score (§4.7 "reliability ≥
// threshold").
type LearnedAction struct {
	Action      types.Action `json:"action"`
	Reliability float64      `json:"reliability"`
	UsageCount  int          `json:"usage_count"`
}

// Store is the learned-actions backend C7 consults before falling back
// to LLM planning.
type Store interface {
	Get(ctx context.Context, projectID, componentHash string) (LearnedAction, bool, error)
	RecordReuse(ctx context.Context, projectID, componentHash string)
}

// ComponentHash computes the stable hash of a page+selector pair the
// store is keyed by (§4.7 "compute a component-hash from page+selector
// of the first relevant element").
func ComponentHash(pageURL, selector string) string {
	sum := sha256.Sum256([]byte(pageURL + "\x00" + selector))
	return hex.EncodeToString(sum[:])[:16]
}

// key namespaces a projectID+componentHash pair for either backend.
func key(projectID, componentHash string) string {
	return "learned_action:" + projectID + ":" + componentHash
}

// InMemoryStore is the zero-dependency fallback: a process-local,
// mutex-guarded map (§5 "never expose raw maps to concurrent
// readers/writers").
type InMemoryStore struct {
	mu      sync.Mutex
	entries map[string]LearnedAction
}

// NewInMemoryStore constructs an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string]LearnedAction)}
}

func (s *InMemoryStore) Get(_ context.Context, projectID, componentHash string) (LearnedAction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	la, ok := s.entries[key(projectID, componentHash)]
	return la, ok, nil
}

func (s *InMemoryStore) RecordReuse(_ context.Context, projectID, componentHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(projectID, componentHash)
	la, ok := s.entries[k]
	if !ok {
		return
	}
	la.UsageCount++
	s.entries[k] = la
}

// Put installs or updates a learned action, used by callers (typically
// IRL after a confirmed self-heal) to teach the store a new mapping.
func (s *InMemoryStore) Put(projectID, componentHash string, la LearnedAction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key(projectID, componentHash)] = la
}

// RedisStore backs the learned-actions store with Redis, so learned
// mappings survive worker restarts and are shared across workers.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore constructs a RedisStore. ttl of zero means entries
// never expire.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, projectID, componentHash string) (LearnedAction, bool, error) {
	raw, err := s.client.Get(ctx, key(projectID, componentHash)).Bytes()
	if err == redis.Nil {
		return LearnedAction{}, false, nil
	}
	if err != nil {
		return LearnedAction{}, false, err
	}
	var la LearnedAction
	if err := json.Unmarshal(raw, &la); err != nil {
		return LearnedAction{}, false, err
	}
	return la, true, nil
}

func (s *RedisStore) Put(ctx context.Context, projectID, componentHash string, la LearnedAction) error {
	data, err := json.Marshal(la)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key(projectID, componentHash), data, s.ttl).Err()
}

// RecordReuse increments the usage counter, best-effort (§4.7
// "asynchronously record reuse" — callers invoke this via
// util.SafeGo so a slow Redis round trip never blocks planning).
func (s *RedisStore) RecordReuse(ctx context.Context, projectID, componentHash string) {
	la, ok, err := s.Get(ctx, projectID, componentHash)
	if err != nil || !ok {
		return
	}
	la.UsageCount++
	_ = s.Put(ctx, projectID, componentHash, la)
}
