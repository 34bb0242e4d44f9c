// Package lease guarantees that at most one dispatch loop runs per campaign,
// across processes sharing the same Redis.
package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNotHeld = errors.New("lease is held by another owner")
)

// Locker hands out per-campaign leases.
type Locker interface {
	// Acquire returns ErrNotHeld if another owner holds the lease.
	Acquire(ctx context.Context, campaignID uuid.UUID, ttl time.Duration) (Lease, error)
}

// Lease is a held campaign lease.
type Lease interface {
	Refresh(ctx context.Context, ttl time.Duration) error
	Release(ctx context.Context) error
}

const keyPrefix = "wa-dispatcher:lease:"

var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisLocker struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisLocker(client *redis.Client, logger *zap.Logger) Locker {
	return &redisLocker{client: client, logger: logger}
}

func Key(campaignID uuid.UUID) string {
	return keyPrefix + campaignID.String()
}

func (l *redisLocker) Acquire(ctx context.Context, campaignID uuid.UUID, ttl time.Duration) (Lease, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	key := Key(campaignID)
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lease: %w", err)
	}
	if !ok {
		return nil, ErrNotHeld
	}

	l.logger.Debug("Lease acquired", zap.String("campaign_id", campaignID.String()))
	return &redisLease{client: l.client, key: key, token: token}, nil
}

type redisLease struct {
	client *redis.Client
	key    string
	token  string
}

func (l *redisLease) Refresh(ctx context.Context, ttl time.Duration) error {
	n, err := refreshScript.Run(ctx, l.client, []string{l.key}, l.token, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("failed to refresh lease: %w", err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

func (l *redisLease) Release(ctx context.Context) error {
	if _, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int(); err != nil {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	return nil
}

func newToken() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate lease token: %w", err)
	}
	return id.String(), nil
}
