package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/agendaplus/scheduling-backend/internal/domain/providers"
	redisclient "github.com/agendaplus/scheduling-backend/internal/infrastructure/clients/redis"
)

// RedisLocker implements the ProfessionalLocker port with a per-professional
// Redis key. The lock value is a random token so only the holder can release
// it; expiry bounds the damage of a crashed holder.
type RedisLocker struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewRedisLocker creates a new Redis-backed professional locker
func NewRedisLocker(client *redisclient.Client, ttl time.Duration) providers.ProfessionalLocker {
	return &RedisLocker{
		client: client.Client(),
		ttl:    ttl,
	}
}

// WithProfessionalLock runs fn while holding the professional's lock. A held
// lock surfaces as providers.ErrLockNotAcquired; the caller decides whether
// to retry. fn runs with a deadline matching the lock TTL so it cannot
// outlive its exclusivity.
func (l *RedisLocker) WithProfessionalLock(ctx context.Context, professionalID string, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:professional:%s", professionalID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire professional lock: %w", err)
	}
	if !ok {
		return providers.ErrLockNotAcquired
	}

	defer func() {
		_ = l.release(context.WithoutCancel(ctx), key, token)
	}()

	lockCtx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(lockCtx)
}

var unlockScript = goredis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *RedisLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("release professional lock: %w", err)
	}
	return nil
}
