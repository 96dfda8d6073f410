package usercache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/mcdev12/roomsync/go/internal/protocol"
)

// MemoryStore is a process-local Store
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]protocol.User
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]protocol.User)}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*protocol.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, false, nil
	}
	return &u, true, nil
}

func (m *MemoryStore) PutIfAbsent(_ context.Context, u protocol.User) (*protocol.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.users[u.ID]; ok {
		return &existing, nil
	}
	m.users[u.ID] = u
	return &u, nil
}

// Len returns the number of stored entries
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}

// RedisStore shares resolved metadata between client processes through Redis. Entries have
// no TTL and are written with SETNX so the first resolved snapshot wins.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore wraps a Redis client; keys are prefix + user id
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

func (r *RedisStore) Get(ctx context.Context, id string) (*protocol.User, bool, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var u protocol.User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, false, fmt.Errorf("decode cached user: %w", err)
	}
	return &u, true, nil
}

func (r *RedisStore) PutIfAbsent(ctx context.Context, u protocol.User) (*protocol.User, error) {
	data, err := json.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("encode user: %w", err)
	}

	set, err := r.client.SetNX(ctx, r.key(u.ID), data, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("redis setnx: %w", err)
	}
	if set {
		return &u, nil
	}

	existing, found, err := r.Get(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	if !found {
		// Evicted between SETNX and GET; the value we resolved is as good as any
		return &u, nil
	}
	return existing, nil
}

// Close closes the underlying client
func (r *RedisStore) Close() error {
	return r.client.Close()
}
