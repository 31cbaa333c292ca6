package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileKey(t *testing.T) {
	assert.Equal(t, "item1_https://x/f.csv", FileKey("item1", "https://x/f.csv"))
}

func TestContentHash(t *testing.T) {
	h1 := ContentHash([]byte("hello"))
	h2 := ContentHash([]byte("hello"))
	h3 := ContentHash([]byte("world"))
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 32)
}

func TestChanged(t *testing.T) {
	assert.True(t, Changed(nil, "abc"))
	assert.True(t, Changed(&Record{Hash: "old"}, "abc"))
	assert.False(t, Changed(&Record{Hash: "abc"}, "abc"))
}

func TestFileStore(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "state", "processed.json"))
	ctx := context.Background()

	rec, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, rec)

	want := Record{
		Filename:    "展示会.csv",
		Hash:        "abc123",
		ProcessedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Rows:        42,
	}
	require.NoError(t, store.Put(ctx, "item1_url", want))

	got, err := store.Get(ctx, "item1_url")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)

	require.NoError(t, store.Reset(ctx))
	got, err = store.Get(ctx, "item1_url")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func setupRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client)
}

func TestRedisStore(t *testing.T) {
	store := setupRedisStore(t)
	ctx := context.Background()

	rec, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, rec)

	want := Record{Filename: "list.csv", Hash: "deadbeef", Rows: 7}
	require.NoError(t, store.Put(ctx, "item2_url", want))

	got, err := store.Get(ctx, "item2_url")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "deadbeef", got.Hash)
	assert.Equal(t, 7, got.Rows)

	require.NoError(t, store.Reset(ctx))
	got, err = store.Get(ctx, "item2_url")
	require.NoError(t, err)
	assert.Nil(t, got)
}
