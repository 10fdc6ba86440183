package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"reimburse/internal/common"
)

// ResetTokenRepository keeps one-time password reset tokens. Tokens expire on
// their own; Consume removes a token atomically so it can be used once.
type ResetTokenRepository interface {
	Save(ctx context.Context, token, accountID string, ttl time.Duration) error
	Consume(ctx context.Context, token string) (string, error)
}

type redisResetTokenRepository struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisResetTokenRepository(rdb *redis.Client) ResetTokenRepository {
	return &redisResetTokenRepository{rdb: rdb, prefix: "password_reset:"}
}

func (r *redisResetTokenRepository) Save(ctx context.Context, token, accountID string, ttl time.Duration) error {
	if err := r.rdb.Set(ctx, r.prefix+token, accountID, ttl).Err(); err != nil {
		return fmt.Errorf("resetTokenRepository.Save: %w: %v", common.ErrUnavailable, err)
	}
	return nil
}

func (r *redisResetTokenRepository) Consume(ctx context.Context, token string) (string, error) {
	accountID, err := r.rdb.GetDel(ctx, r.prefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", common.ErrNotFound
		}
		return "", fmt.Errorf("resetTokenRepository.Consume: %w: %v", common.ErrUnavailable, err)
	}
	return accountID, nil
}
