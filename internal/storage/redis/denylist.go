package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenDenylist keeps invalidated access tokens in Redis until their own
// expiry, at which point the entry lapses with the key TTL.
type TokenDenylist struct {
	client *redis.Client
}

func NewTokenDenylist(client *redis.Client) *TokenDenylist {
	return &TokenDenylist{client: client}
}

func (d *TokenDenylist) InvalidateToken(ctx context.Context, token string, expiration time.Duration) error {
	return d.client.Set(ctx, denylistKey(token), "invalidated", expiration).Err()
}

func (d *TokenDenylist) IsTokenInvalidated(ctx context.Context, token string) (bool, error) {
	result, err := d.client.Get(ctx, denylistKey(token)).Result()
	if err == redis.Nil {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return result == "invalidated", nil
}

func denylistKey(token string) string {
	return "denylist:" + token
}
