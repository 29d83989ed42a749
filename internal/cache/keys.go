package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	CallerKeyPrefix  = "caller:%s"
	PublicMembersKey = "members:public"
)

const (
	CallerTTL        = 30 * time.Second
	PublicMembersTTL = 5 * time.Minute
)

// ErrMiss is returned by GetJSON when the key is absent or no client is configured.
var ErrMiss = errors.New("cache miss")

func CallerKey(userID uuid.UUID) string {
	return fmt.Sprintf(CallerKeyPrefix, userID)
}

// GetJSON loads key into dst.
func GetJSON(ctx context.Context, rdb *redis.Client, key string, dst any) error {
	if rdb == nil {
		return ErrMiss
	}
	raw, err := rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// SetJSON stores v under key. A nil client is a no-op.
func SetJSON(ctx context.Context, rdb *redis.Client, key string, v any, ttl time.Duration) error {
	if rdb == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, key, raw, ttl).Err()
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateCaller(ctx context.Context, userID uuid.UUID) {
	Invalidate(ctx, CallerKey(userID))
}
