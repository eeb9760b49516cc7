package reservation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultLockTTL  = 30 * time.Second
	defaultLockWait = 5 * time.Second
	lockRetryDelay  = 20 * time.Millisecond
	lockScope       = "stock"
)

// ErrLockTimeout is returned when a key stays held past the wait budget.
var ErrLockTimeout = errors.New("timed out waiting for part lock")

// Locker serializes reservation calls on the same part numbers. Keys are
// acquired in sorted order so overlapping calls cannot deadlock.
type Locker interface {
	Lock(ctx context.Context, keys []string) (unlock func(), err error)
}

// KeyedMutex is an in-process Locker.
type KeyedMutex struct {
	wait time.Duration

	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex(wait time.Duration) *KeyedMutex {
	if wait <= 0 {
		wait = defaultLockWait
	}
	return &KeyedMutex{wait: wait, slots: map[string]*slot{}}
}

func (m *KeyedMutex) Lock(ctx context.Context, keys []string) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, m.wait)
	defer cancel()

	keys = sortedUnique(keys)
	held := make([]string, 0, len(keys))
	for _, key := range keys {
		s := m.ref(key)
		select {
		case s.ch <- struct{}{}:
			held = append(held, key)
		case <-ctx.Done():
			m.unref(key)
			m.release(held)
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		}
	}
	var once sync.Once
	return func() { once.Do(func() { m.release(held) }) }, nil
}

func (m *KeyedMutex) ref(key string) *slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		m.slots[key] = s
	}
	s.refs++
	return s
}

func (m *KeyedMutex) unref(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.slots[key]
	s.refs--
	if s.refs == 0 {
		delete(m.slots, key)
	}
}

func (m *KeyedMutex) release(keys []string) {
	for i := len(keys) - 1; i >= 0; i-- {
		m.mu.Lock()
		s := m.slots[keys[i]]
		m.mu.Unlock()
		<-s.ch
		m.unref(keys[i])
	}
}

// redisStore defines the operations used by RedisLocker.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DelIfValue(ctx context.Context, key, value string) (bool, error)
	LockKey(scope, id string) string
}

// RedisLocker holds per-part locks in Redis so several API instances share
// them. Each key is a SETNX with a TTL, released only by its owner.
type RedisLocker struct {
	client redisStore
	ttl    time.Duration
	wait   time.Duration
}

// NewRedisLocker constructs a Redis-backed locker.
func NewRedisLocker(client redisStore, ttl, wait time.Duration) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if wait <= 0 {
		wait = defaultLockWait
	}
	return &RedisLocker{client: client, ttl: ttl, wait: wait}, nil
}

func (l *RedisLocker) Lock(ctx context.Context, keys []string) (func(), error) {
	owner := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	keys = sortedUnique(keys)
	held := make([]string, 0, len(keys))
	release := func() {
		// Release must outlive a cancelled request context.
		bg, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		for i := len(held) - 1; i >= 0; i-- {
			_, _ = l.client.DelIfValue(bg, held[i], owner)
		}
	}

	for _, key := range keys {
		redisKey := l.client.LockKey(lockScope, key)
		for {
			ok, err := l.client.SetNX(ctx, redisKey, owner, l.ttl)
			if err != nil {
				release()
				return nil, fmt.Errorf("setnx %s: %w", redisKey, err)
			}
			if ok {
				held = append(held, redisKey)
				break
			}
			if time.Now().After(deadline) {
				release()
				return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
			}
			select {
			case <-ctx.Done():
				release()
				return nil, ctx.Err()
			case <-time.After(lockRetryDelay):
			}
		}
	}
	var once sync.Once
	return func() { once.Do(release) }, nil
}

func sortedUnique(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
