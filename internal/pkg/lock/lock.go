package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long a crashed holder can block a booking.
// The lock self-expires rather than requiring an explicit unlock.
const DefaultTTL = 30 * time.Second

const keyPrefix = "synclock:"

// Locker provides short-lived mutual exclusion per (operation, booking).
// Contention is not an error: the caller skips the invocation entirely
// and relies on the next trigger cycle.
type Locker interface {
	// TryLock attempts to acquire the lock. When ok is true the returned
	// release func must be called (deferred) on every exit path; release
	// is a no-op if the lock already expired.
	TryLock(ctx context.Context, op string, bookingID uint) (release func(), ok bool)
}

// releaseScript deletes the key only when it still holds our token, so an
// expired lock re-acquired by another holder is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker on a shared Redis instance, which keeps
// exclusion valid across independent processes.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLocker creates a Redis-backed locker with the given TTL
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisLocker{client: client, ttl: ttl}
}

func lockKey(op string, bookingID uint) string {
	return fmt.Sprintf("%s%s:%d", keyPrefix, op, bookingID)
}

func (l *RedisLocker) TryLock(ctx context.Context, op string, bookingID uint) (func(), bool) {
	key := lockKey(op, bookingID)
	token := uuid.New().String()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		log.Errorf("[Lock] SetNX failed for %s: %v", key, err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	release := func() {
		if err := releaseScript.Run(context.Background(), l.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
			log.Errorf("[Lock] Release failed for %s: %v", key, err)
		}
	}
	return release, true
}

// memoryLease is one held lock. The token ties a release back to the
// acquisition that created it, mirroring the Redis token check above.
type memoryLease struct {
	expiry time.Time
	token  uint64
}

// MemoryLocker implements Locker in-process. It is used in tests and as a
// fallback for single-process deployments without Redis.
type MemoryLocker struct {
	mu    sync.Mutex
	ttl   time.Duration
	held  map[string]memoryLease
	seq   uint64
	nowFn func() time.Time
}

// NewMemoryLocker creates an in-process locker with the given TTL
func NewMemoryLocker(ttl time.Duration) *MemoryLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryLocker{
		ttl:   ttl,
		held:  make(map[string]memoryLease),
		nowFn: time.Now,
	}
}

func (l *MemoryLocker) TryLock(_ context.Context, op string, bookingID uint) (func(), bool) {
	key := lockKey(op, bookingID)
	now := l.nowFn()

	l.mu.Lock()
	defer l.mu.Unlock()

	if lease, exists := l.held[key]; exists && now.Before(lease.expiry) {
		return nil, false
	}
	l.seq++
	token := l.seq
	l.held[key] = memoryLease{expiry: now.Add(l.ttl), token: token}

	release := func() {
		l.mu.Lock()
		// Only delete our own lease: after the TTL another holder may own
		// the key, and their lock must survive our late release.
		if lease, exists := l.held[key]; exists && lease.token == token {
			delete(l.held, key)
		}
		l.mu.Unlock()
	}
	return release, true
}
