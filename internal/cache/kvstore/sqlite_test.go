package kvstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSetThenGetRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "orders/u1", []byte(`{"uuid":"u1"}`)))

	value, ok, err := s.Get(ctx, "orders/u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"uuid":"u1"}`, string(value))
}

func TestGetMissingKeyReturnsFalseNotError(t *testing.T) {
	s := newTestStore(t)
	_, ok, err := s.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetOverwritesExistingKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "orders/u1", []byte("v1")))
	require.NoError(t, s.Set(ctx, "orders/u1", []byte("v2")))

	value, ok, err := s.Get(ctx, "orders/u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v2", string(value))
}

func TestScanReturnsOnlyMatchingPrefixAndEscapesWildcards(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "orders/u1", []byte("a")))
	require.NoError(t, s.Set(ctx, "orders/u2", []byte("b")))
	require.NoError(t, s.Set(ctx, "positions/BINANCE/BTCUSDT", []byte("c")))
	require.NoError(t, s.Set(ctx, "orders_archive/u3", []byte("d")))

	out, err := s.Scan(ctx, "orders/")
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Contains(t, out, "orders/u1")
	assert.Contains(t, out, "orders/u2")
	assert.NotContains(t, out, "orders_archive/u3", "a prefix must not match keys that only share its first characters")

	require.NoError(t, s.Set(ctx, "ordersXarchive/u4", []byte("e")))
	out, err = s.Scan(ctx, "orders_archive/")
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Contains(t, out, "orders_archive/u3")
	assert.NotContains(t, out, "ordersXarchive/u4", "a literal '_' in the prefix must not act as a SQL LIKE wildcard")
}

func TestDelRemovesKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "orders/u1", []byte("a")))
	require.NoError(t, s.Del(ctx, "orders/u1"))

	_, ok, err := s.Get(ctx, "orders/u1")
	require.NoError(t, err)
	assert.False(t, ok)
}
