package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/cetra-finance/chamber/internal/config"
	"github.com/cetra-finance/chamber/internal/pkg/apperrors"
	"github.com/cetra-finance/chamber/internal/pkg/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func NewRedisClient(cfg *config.Config) (*redis.Client, error) {
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address is empty")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return rdb, nil
}

// Deletes the lock only while it still holds the caller's token.
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisChamberLock is the cross-process chamber lock. The TTL bounds how long a
// crashed holder can block a chamber.
type RedisChamberLock struct {
	client redis.Cmdable
	ttl    time.Duration
	prefix string
}

func NewRedisChamberLock(client redis.Cmdable, ttl time.Duration) *RedisChamberLock {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisChamberLock{client: client, ttl: ttl, prefix: "chamber:lock:"}
}

func (l *RedisChamberLock) TryLock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.prefix+key, token, l.ttl).Result()
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "acquire chamber lock", err)
	}
	if !ok {
		return nil, apperrors.New(apperrors.ErrChamberBusy, fmt.Sprintf("chamber %s has a step in progress", key), nil)
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := releaseLockScript.Run(ctx, l.client, []string{l.prefix + key}, token).Err(); err != nil {
			logger.Warn("failed to release chamber lock", "chamber", key, "error", err)
		}
	}, nil
}
