package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// AttemptLimiter counts failed OTP verifications per username.
type AttemptLimiter interface {
	// Fail records a failed attempt and returns the count within the window.
	Fail(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

type memoryEntry struct {
	count   int64
	expires time.Time
}

// MemoryAttempts keeps counters in process memory. Suitable for a single
// instance or tests.
type MemoryAttempts struct {
	mu      sync.Mutex
	window  time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

func NewMemoryAttempts(window time.Duration) *MemoryAttempts {
	return &MemoryAttempts{
		window:  window,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (m *MemoryAttempts) Fail(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e, ok := m.entries[key]
	if !ok || now.After(e.expires) {
		e = memoryEntry{expires: now.Add(m.window)}
	}
	e.count++
	m.entries[key] = e
	return e.count, nil
}

func (m *MemoryAttempts) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// RedisAttempts shares counters across instances. Each failure pushes the
// key's expiry out by one OTP window.
type RedisAttempts struct {
	client *redis.Client
	window time.Duration
	prefix string
}

func NewRedisAttempts(client *redis.Client, window time.Duration) *RedisAttempts {
	return &RedisAttempts{client: client, window: window, prefix: "otp:attempts:"}
}

func (r *RedisAttempts) Fail(ctx context.Context, key string) (int64, error) {
	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, r.prefix+key)
		pipe.Expire(ctx, r.prefix+key, r.window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count otp attempt: %w", err)
	}
	return incr.Val(), nil
}

func (r *RedisAttempts) Reset(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("reset otp attempts: %w", err)
	}
	return nil
}
