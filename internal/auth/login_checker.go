package auth

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

type LoginChecker struct {
	ttl         time.Duration
	redisClient *redis.Client
	NowFunc     func() time.Time
}

func NewLoginChecker(ttl time.Duration, redisClient *redis.Client) *LoginChecker {
	return &LoginChecker{
		ttl:         ttl,
		redisClient: redisClient,
		NowFunc:     time.Now,
	}
}

func (c *LoginChecker) UserForToken(ctx context.Context, token string) (int, bool, error) {
	cmd := c.redisClient.Get(ctx, sessionKeyPrefix+token)
	if err := cmd.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, err
	}

	userID, createdAt, err := decodeSession(cmd.Val())
	if err != nil {
		return 0, false, err
	}

	if c.NowFunc().Sub(createdAt) > c.ttl {
		return 0, false, nil
	}

	return userID, true, nil
}

func (c *LoginChecker) IsLogged(ctx context.Context, token string) (bool, error) {
	_, ok, err := c.UserForToken(ctx, token)
	return ok, err
}
