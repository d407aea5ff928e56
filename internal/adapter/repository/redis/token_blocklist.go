package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenBlocklist implements usecase.TokenBlocklist using Redis keys that
// expire with the token.
type TokenBlocklist struct {
	client *redis.Client
	prefix string
}

// NewTokenBlocklist creates a new TokenBlocklist.
func NewTokenBlocklist(client *redis.Client) *TokenBlocklist {
	return &TokenBlocklist{
		client: client,
		prefix: "goexpense:revoked:",
	}
}

// Revoke marks tokenID revoked for ttl. A non-positive ttl is a no-op since
// the token has already expired.
func (b *TokenBlocklist) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return b.client.Set(ctx, b.prefix+tokenID, 1, ttl).Err()
}

// IsRevoked reports whether tokenID is revoked.
func (b *TokenBlocklist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := b.client.Exists(ctx, b.prefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
