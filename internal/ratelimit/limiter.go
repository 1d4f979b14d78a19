package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter answers whether an action under a key is within its
// fixed-window quota. Allow counts the attempt.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type redisLimiter struct {
	client *redis.Client
}

// NewRedisLimiter builds a limiter over a shared redis client.
func NewRedisLimiter(client *redis.Client) Limiter {
	return &redisLimiter{client: client}
}

func (l *redisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, window).Err(); err != nil {
			return false, err
		}
	}
	return count <= int64(limit), nil
}

type windowState struct {
	count   int
	resetAt time.Time
}

type memoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*windowState
	now     func() time.Time
}

// NewMemoryLimiter builds an in-process limiter, used when redis is not
// configured and as a test double.
func NewMemoryLimiter() Limiter {
	return &memoryLimiter{
		windows: make(map[string]*windowState),
		now:     time.Now,
	}
}

func (l *memoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	state, ok := l.windows[key]
	if !ok || now.After(state.resetAt) {
		state = &windowState{resetAt: now.Add(window)}
		l.windows[key] = state
	}
	state.count++
	return state.count <= limit, nil
}
