package kv

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Store used in tests and when no Redis address is
// configured. TTLs are honored lazily on read.
type Memory struct {
	mu      sync.Mutex
	values  map[string]memoryValue
	sets    map[string][]string
	expires map[string]time.Time
	now     func() time.Time
}

type memoryValue struct {
	data      string
	expiresAt time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory builds an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		values:  make(map[string]memoryValue),
		sets:    make(map[string][]string),
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

// SetClock overrides the time source. Test helper.
func (m *Memory) SetClock(fn func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = fn
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	if !v.expiresAt.IsZero() && m.now().After(v.expiresAt) {
		delete(m.values, key)
		return "", ErrNotFound
	}
	return v.data, nil
}

func (m *Memory) SetWithTTL(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var exp time.Time
	if ttl > 0 {
		exp = m.now().Add(ttl)
	}
	m.values[key] = memoryValue{data: value, expiresAt: exp}
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.values, key)
		delete(m.sets, key)
		delete(m.expires, key)
	}
	return nil
}

func (m *Memory) SAdd(_ context.Context, key string, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictExpiredSet(key)
	for _, existing := range m.sets[key] {
		if existing == member {
			return nil
		}
	}
	m.sets[key] = append(m.sets[key], member)
	return nil
}

func (m *Memory) SRem(_ context.Context, key string, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictExpiredSet(key)
	members := m.sets[key]
	for i, existing := range members {
		if existing == member {
			m.sets[key] = append(members[:i], members[i+1:]...)
			break
		}
	}
	if len(m.sets[key]) == 0 {
		delete(m.sets, key)
	}
	return nil
}

func (m *Memory) SMembers(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictExpiredSet(key)
	members := m.sets[key]
	out := make([]string, len(members))
	copy(out, members)
	return out, nil
}

func (m *Memory) ExpireAt(_ context.Context, key string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.values[key]; ok {
		v.expiresAt = at
		m.values[key] = v
	}
	if _, ok := m.sets[key]; ok {
		m.expires[key] = at
	}
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

// evictExpiredSet drops a set key whose ExpireAt deadline passed. Callers
// hold the mutex.
func (m *Memory) evictExpiredSet(key string) {
	if at, ok := m.expires[key]; ok && m.now().After(at) {
		delete(m.sets, key)
		delete(m.expires, key)
	}
}
