package oauth2

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"smtp-relay/internal/common/errors"
)

// StateTTL bounds how long an authorization round-trip may take. A state
// token older than this is rejected even if it was never consumed.
const StateTTL = 10 * time.Minute

// StateStore holds pending authorization states: the anti-forgery token
// issued with each authorization URL, mapped to the provider key it was
// issued for. Tokens are single-use: Consume atomically checks and removes,
// so two callbacks racing on the same token admit exactly one.
type StateStore interface {
	// Put registers a state token for a provider with the store's TTL
	Put(ctx context.Context, state, providerKey string) error
	// Consume atomically removes the token, returning the provider it was
	// issued for and whether it was present and unexpired. A second Consume
	// of the same token reports false.
	Consume(ctx context.Context, state string) (providerKey string, ok bool, err error)
}

// NewState returns a fresh cryptographically random state token
func NewState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.InternalError("failed to generate state token", err)
	}
	return hex.EncodeToString(buf), nil
}

type pendingState struct {
	providerKey string
	expiry      time.Time
}

// MemoryStateStore keeps pending states in process memory. Suitable for a
// single-instance deployment; multi-instance deployments need Redis so the
// callback can land on a different instance than the one that issued it.
type MemoryStateStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	states map[string]pendingState
	now    func() time.Time
}

// NewMemoryStateStore creates an in-memory state store with the default TTL
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{
		ttl:    StateTTL,
		states: make(map[string]pendingState),
		now:    time.Now,
	}
}

// Put registers a state token
func (s *MemoryStateStore) Put(ctx context.Context, state, providerKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state] = pendingState{
		providerKey: providerKey,
		expiry:      s.now().Add(s.ttl),
	}
	return nil
}

// Consume removes the token under the lock, so concurrent consumers of the
// same token see exactly one success.
func (s *MemoryStateStore) Consume(ctx context.Context, state string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, ok := s.states[state]
	if !ok {
		return "", false, nil
	}
	delete(s.states, state)
	if !s.now().Before(pending.expiry) {
		return "", false, nil
	}
	return pending.providerKey, true, nil
}

// Sweep drops expired entries. Abandoned authorizations otherwise
// accumulate until process restart.
func (s *MemoryStateStore) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for state, pending := range s.states {
		if !now.Before(pending.expiry) {
			delete(s.states, state)
		}
	}
}

// RedisStateStore keeps pending states in Redis so any instance can serve
// the callback. Expiry is delegated to Redis key TTLs.
type RedisStateStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStateStore creates a Redis-backed state store with the default TTL
func NewRedisStateStore(client *redis.Client) *RedisStateStore {
	return &RedisStateStore{
		client: client,
		prefix: "oauth:state:",
		ttl:    StateTTL,
	}
}

// Put registers a state token with a Redis TTL, storing the provider key
// as the value
func (s *RedisStateStore) Put(ctx context.Context, state, providerKey string) error {
	if err := s.client.Set(ctx, s.prefix+state, providerKey, s.ttl).Err(); err != nil {
		return errors.ConnectionError("failed to store state token", err)
	}
	return nil
}

// Consume uses GETDEL so check-and-remove is a single Redis command
func (s *RedisStateStore) Consume(ctx context.Context, state string) (string, bool, error) {
	providerKey, err := s.client.GetDel(ctx, s.prefix+state).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.ConnectionError("failed to consume state token", err)
	}
	return providerKey, true, nil
}
