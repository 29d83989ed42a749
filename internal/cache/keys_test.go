package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func TestJSONRoundTripAndExpiry(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()

	type entry struct {
		Email   string `json:"email"`
		IsAdmin bool   `json:"is_admin"`
	}

	key := CallerKey(uuid.New())
	require.NoError(t, SetJSON(ctx, rdb, key, entry{Email: "a@example.com", IsAdmin: true}, CallerTTL))

	var got entry
	require.NoError(t, GetJSON(ctx, rdb, key, &got))
	assert.Equal(t, "a@example.com", got.Email)
	assert.True(t, got.IsAdmin)

	mr.FastForward(CallerTTL + time.Second)
	assert.ErrorIs(t, GetJSON(ctx, rdb, key, &got), ErrMiss)
}

func TestNilClientIsMiss(t *testing.T) {
	ctx := context.Background()
	var dst map[string]any
	assert.ErrorIs(t, GetJSON(ctx, nil, "k", &dst), ErrMiss)
	assert.NoError(t, SetJSON(ctx, nil, "k", 1, time.Minute))
}

func TestCallerKeyFormat(t *testing.T) {
	id := uuid.MustParse("0f8fad5b-d9cb-469f-a165-70867728950e")
	assert.Equal(t, "caller:0f8fad5b-d9cb-469f-a165-70867728950e", CallerKey(id))
}
