package storage

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStoreGet(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisStoreWithClient(db, "et:")
	ctx := context.Background()

	t.Run("hit", func(t *testing.T) {
		mock.ExpectGet("et:k").SetVal("v")

		val, found, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, []byte("v"), val)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("miss", func(t *testing.T) {
		mock.ExpectGet("et:missing").RedisNil()

		val, found, err := store.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, val)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("error", func(t *testing.T) {
		mock.ExpectGet("et:broken").SetErr(redis.TxFailedErr)

		_, _, err := store.Get(ctx, "broken")
		require.Error(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRedisStoreSetAndSetNX(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisStoreWithClient(db, "et:")
	ctx := context.Background()

	mock.ExpectSet("et:k", []byte("v"), time.Hour).SetVal("OK")
	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Hour))

	mock.ExpectSetNX("et:claim", []byte("t"), 90*24*time.Hour).SetVal(true)
	ok, err := store.SetNX(ctx, "claim", []byte("t"), 90*24*time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectSetNX("et:claim", []byte("t"), 90*24*time.Hour).SetVal(false)
	ok, err = store.SetNX(ctx, "claim", []byte("t"), 90*24*time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStoreKeysStripsPrefix(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisStoreWithClient(db, "et:")
	ctx := context.Background()

	mock.ExpectScan(0, "et:sent_stocks:*", 200).SetVal([]string{"et:sent_stocks:A:2025-06-30"}, 7)
	mock.ExpectScan(7, "et:sent_stocks:*", 200).SetVal([]string{"et:sent_stocks:B:2025-06-30"}, 0)

	keys, err := store.Keys(ctx, "sent_stocks:")
	require.NoError(t, err)
	assert.Equal(t, []string{"sent_stocks:A:2025-06-30", "sent_stocks:B:2025-06-30"}, keys)

	mock.ExpectDel("et:sent_stocks:A:2025-06-30", "et:sent_stocks:B:2025-06-30").SetVal(2)
	require.NoError(t, store.Delete(ctx, keys...))

	require.NoError(t, mock.ExpectationsWereMet())
}
