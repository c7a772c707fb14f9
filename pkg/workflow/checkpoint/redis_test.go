package checkpoint_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/finflow/pkg/workflow/checkpoint"
)

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_KeyLayout(t *testing.T) {
	ctx := context.Background()
	mr, client := newMiniredis(t)
	store := checkpoint.NewRedisStore(client, checkpoint.WithRedisPrefix("fin:"))

	require.NoError(t, store.Save(ctx, "u1:r1", "entry", []byte("a")))

	assert.True(t, mr.Exists("fin:cp:u1:r1"))
	assert.True(t, mr.Exists("fin:seq:u1:r1"))
	assert.True(t, mr.Exists("fin:index"))
	fields, err := mr.HKeys("fin:cp:u1:r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"entry"}, fields)
}

func TestRedisStore_TTL(t *testing.T) {
	ctx := context.Background()
	mr, client := newMiniredis(t)
	store := checkpoint.NewRedisStore(client,
		checkpoint.WithRedisPrefix("fin:"),
		checkpoint.WithRedisTTL(time.Hour),
	)

	require.NoError(t, store.Save(ctx, "u1:r1", "entry", []byte("a")))
	assert.Equal(t, time.Hour, mr.TTL("fin:cp:u1:r1"))

	mr.FastForward(2 * time.Hour)

	_, err := store.Load(ctx, "u1:r1", "entry")
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)
}

func TestRedisStore_SharedAcrossInstances(t *testing.T) {
	ctx := context.Background()
	mr, client := newMiniredis(t)
	other := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer other.Close()

	writer := checkpoint.NewRedisStore(client)
	reader := checkpoint.NewRedisStore(other)

	require.NoError(t, writer.Save(ctx, "u1:r1", "request_missing", []byte(`{"pending":true}`)))

	data, err := reader.Load(ctx, "u1:r1", "request_missing")
	require.NoError(t, err)
	assert.Equal(t, `{"pending":true}`, string(data))
}
