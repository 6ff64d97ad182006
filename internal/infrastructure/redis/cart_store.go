package redis

import (
	"context"
	"encoding/json"
	"time"

	"boutique-backend/internal/domain/aggregate"
	"boutique-backend/internal/domain/repository"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cartKeyPrefix = "cart:"

// CachedCartRepository serves cart reads from Redis, falling back to the
// backing repository on a miss and writing the result back with a TTL.
// Cache failures degrade to the backing store, never to an error.
type CachedCartRepository struct {
	client   *redis.Client
	fallback repository.CartRepository
	ttl      time.Duration
	logger   *zap.Logger
}

// NewCachedCartRepository creates a Redis-first cart repository
func NewCachedCartRepository(client *redis.Client, fallback repository.CartRepository, ttl time.Duration, logger *zap.Logger) *CachedCartRepository {
	return &CachedCartRepository{
		client:   client,
		fallback: fallback,
		ttl:      ttl,
		logger:   logger,
	}
}

// GetCartWithItems loads a cart, preferring the cache
func (r *CachedCartRepository) GetCartWithItems(ctx context.Context, cartID string) (*aggregate.Cart, error) {
	key := cartKeyPrefix + cartID

	raw, err := r.client.Get(ctx, key).Bytes()
	if err == nil {
		var cart aggregate.Cart
		if unmarshalErr := json.Unmarshal(raw, &cart); unmarshalErr == nil {
			return &cart, nil
		}
		// Unreadable cache entry: drop it and fall through
		r.client.Del(ctx, key)
	} else if err != redis.Nil {
		r.logger.Warn("cart cache read failed, falling back to store",
			zap.String("cart_id", cartID),
			zap.Error(err),
		)
	}

	cart, err := r.fallback.GetCartWithItems(ctx, cartID)
	if err != nil {
		return nil, err
	}

	if payload, marshalErr := json.Marshal(cart); marshalErr == nil {
		if setErr := r.client.Set(ctx, key, payload, r.ttl).Err(); setErr != nil {
			r.logger.Warn("cart cache write failed",
				zap.String("cart_id", cartID),
				zap.Error(setErr),
			)
		}
	}
	return cart, nil
}
