package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/clinicbase/scheduling-engine/internal/scheduling"
)

var (
	ErrLockNotAcquired = errors.New("doctor lock not acquired")
)

type doctorLocker struct {
	client        *redis.Client
	ttl           time.Duration
	retryInterval time.Duration
}

// NewDoctorLocker returns a scheduling.Locker backed by a per-doctor Redis
// key. Contenders retry until the context expires rather than failing
// immediately, so two reserve calls for the same doctor serialize and the
// loser surfaces as a slot conflict from the re-check, not a lock error.
func NewDoctorLocker(client *redis.Client, ttl, retryInterval time.Duration) scheduling.Locker {
	if retryInterval <= 0 {
		retryInterval = 25 * time.Millisecond
	}
	return &doctorLocker{
		client:        client,
		ttl:           ttl,
		retryInterval: retryInterval,
	}
}

func (l *doctorLocker) WithDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:doctor:%s", doctorID.String())
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}
	defer func() {
		_ = l.release(context.WithoutCancel(ctx), key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

func (l *doctorLocker) acquire(ctx context.Context, key, token string) error {
	ticker := time.NewTicker(l.retryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire doctor lock: %w", err)
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrLockNotAcquired, ctx.Err())
		case <-ticker.C:
		}
	}
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *doctorLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release doctor lock: %w", err)
	}
	return nil
}
