package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseCache(t *testing.T, c Cache) {
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Set(ctx, "progress:1:2", []byte("a"), time.Minute))
	require.NoError(t, c.Set(ctx, "progress:1:3", []byte("b"), time.Minute))
	require.NoError(t, c.Set(ctx, "progress:2:2", []byte("c"), time.Minute))

	got, err := c.Get(ctx, "progress:1:2")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), got)

	require.NoError(t, c.DeletePrefix(ctx, "progress:1:"))
	_, err = c.Get(ctx, "progress:1:3")
	assert.ErrorIs(t, err, ErrMiss)
	_, err = c.Get(ctx, "progress:2:2")
	assert.NoError(t, err)

	require.NoError(t, c.Set(ctx, "state", []byte("x"), time.Minute))
	v, err := c.Take(ctx, "state")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), v)
	_, err = c.Take(ctx, "state")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Delete(ctx, "progress:2:2"))
	_, err = c.Get(ctx, "progress:2:2")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemory(t *testing.T) {
	exerciseCache(t, NewMemory())
}

func TestMemory_Expiry(t *testing.T) {
	m := newMemory(time.Hour)

	require.NoError(t, m.Set(context.Background(), "k", []byte("v"), 10*time.Millisecond))
	require.NoError(t, m.Set(context.Background(), "forever", []byte("v"), 0))
	time.Sleep(20 * time.Millisecond)

	_, err := m.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrMiss)
	_, err = m.Get(context.Background(), "forever")
	assert.NoError(t, err)
}

func TestMemory_JanitorEvictsAbandonedKeys(t *testing.T) {
	m := newMemory(5 * time.Millisecond)
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		require.NoError(t, m.Set(ctx, "oauth:state:"+strconv.Itoa(i), []byte("github"), 10*time.Millisecond))
	}
	require.NoError(t, m.Set(ctx, "progress:1:1", []byte("{}"), time.Hour))

	require.Eventually(t, func() bool {
		return m.items.ItemCount() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestRedis(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })

	exerciseCache(t, NewRedis(client, "learnpath:"))
	assert.False(t, srv.Exists("learnpath:progress:1:2"))
}
