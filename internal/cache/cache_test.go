package cache

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavumi/nexustrader/internal/domain"
)

// memStore is a trivial in-memory kvstore.KvStore fake for cache tests.
type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore { return &memStore{data: make(map[string][]byte)} }

func (s *memStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *memStore) Scan(ctx context.Context, prefix string) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]byte)
	for k, v := range s.data {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out, nil
}

func (s *memStore) Del(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *memStore) Close() error { return nil }

func TestApplyOrderIndexesOpenOrders(t *testing.T) {
	store := newMemStore()
	c := New(zerolog.Nop(), store)

	c.ApplyOrder(&domain.Order{UUID: "u1", Exchange: domain.VenueBinance, Symbol: "BTC/USDT", Status: domain.OrderStatusAccepted})

	assert.Contains(t, c.OpenOrdersByVenue(domain.VenueBinance), "u1")
	assert.Contains(t, c.OpenOrdersBySymbol("BTC/USDT"), "u1")
}

func TestApplyOrderTerminalRemovesFromIndex(t *testing.T) {
	store := newMemStore()
	c := New(zerolog.Nop(), store)

	c.ApplyOrder(&domain.Order{UUID: "u1", Exchange: domain.VenueBinance, Symbol: "BTC/USDT", Status: domain.OrderStatusAccepted})
	c.ApplyOrder(&domain.Order{UUID: "u1", Exchange: domain.VenueBinance, Symbol: "BTC/USDT", Status: domain.OrderStatusFilled})

	assert.NotContains(t, c.OpenOrdersByVenue(domain.VenueBinance), "u1")
	o, ok := c.Order("u1")
	require.True(t, ok)
	assert.Equal(t, domain.OrderStatusFilled, o.Status)
}

func TestApplyOrderDuringRestoreIsBufferedAndReplayed(t *testing.T) {
	store := newMemStore()
	raw, err := json.Marshal(domain.Order{UUID: "existing", Status: domain.OrderStatusAccepted, Exchange: domain.VenueBinance, Symbol: "ETH/USDT"})
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), "orders/existing", raw))

	c := New(zerolog.Nop(), store)

	c.restoring = true
	c.ApplyOrder(&domain.Order{UUID: "late", Exchange: domain.VenueBinance, Symbol: "BTC/USDT", Status: domain.OrderStatusAccepted})
	_, ok := c.Order("late")
	assert.False(t, ok, "buffered apply must not be visible until restore completes")
	c.restoring = false
	for _, fn := range c.bufferedApply {
		fn()
	}
	c.bufferedApply = nil

	_, ok = c.Order("late")
	assert.True(t, ok)
}

func TestRestoreLoadsPersistedOrdersAndAlgos(t *testing.T) {
	store := newMemStore()
	orderRaw, _ := json.Marshal(domain.Order{UUID: "u1", Status: domain.OrderStatusAccepted, Exchange: domain.VenueBinance, Symbol: "BTC/USDT"})
	algoRaw, _ := json.Marshal(domain.AlgoOrder{UUID: "a1", Status: domain.AlgoStatusRunning})
	require.NoError(t, store.Set(context.Background(), "orders/u1", orderRaw))
	require.NoError(t, store.Set(context.Background(), "algo/a1", algoRaw))

	c := New(zerolog.Nop(), store)
	require.NoError(t, c.Restore(context.Background()))

	_, ok := c.Order("u1")
	assert.True(t, ok)
	_, ok = c.Algo("a1")
	assert.True(t, ok)
}

func TestSyncEvictsOldTerminalOrders(t *testing.T) {
	store := newMemStore()
	c := New(zerolog.Nop(), store)
	c.SetExpireTime(time.Millisecond)

	old := time.Now().Add(-time.Hour).UnixMilli()
	c.ApplyOrder(&domain.Order{UUID: "u1", Exchange: domain.VenueBinance, Symbol: "BTC/USDT", Status: domain.OrderStatusFilled, Timestamp: old})

	require.NoError(t, c.Sync(context.Background()))

	_, ok := c.Order("u1")
	assert.False(t, ok)
	_, found, err := store.Get(context.Background(), "orders/u1")
	require.NoError(t, err)
	assert.False(t, found)
}
