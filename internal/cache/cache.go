// Package cache implements the single-writer order/position/balance
// store described in spec §4.9: one mutation path per entity kind, each
// re-deriving its indices atomically. Orders and algo orders are
// snapshotted to a KvStore on an interval and restored from it at
// startup; positions and balances are held in memory only and are neither
// written to nor restored from the KvStore.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/lavumi/nexustrader/internal/cache/kvstore"
	"github.com/lavumi/nexustrader/internal/domain"
)

const (
	defaultSyncInterval = 60 * time.Second
	defaultExpireTime   = time.Hour
)

type positionKey struct {
	venue  domain.Venue
	symbol string
}

type balanceKey struct {
	accountType string
	asset       string
}

// Cache holds the runtime's in-memory view of orders, positions, and
// balances. It is owned exclusively by the bus dispatcher goroutine; no
// internal locking is used (spec §5 "single writer (bus dispatcher
// thread); readers call the same loop").
type Cache struct {
	log zerolog.Logger

	store        kvstore.KvStore
	syncInterval time.Duration
	expireTime   time.Duration

	orders    map[string]*domain.Order
	algos     map[string]*domain.AlgoOrder
	positions map[positionKey]*domain.Position
	balances  map[balanceKey]*domain.Balance

	// derived indices
	openOrdersByVenue  map[domain.Venue]map[string]struct{}
	openOrdersBySymbol map[string]map[string]struct{}

	restoring    bool
	bufferedApply []func()
}

func New(log zerolog.Logger, store kvstore.KvStore) *Cache {
	return &Cache{
		log:                log.With().Str("component", "cache").Logger(),
		store:              store,
		syncInterval:       defaultSyncInterval,
		expireTime:         defaultExpireTime,
		orders:             make(map[string]*domain.Order),
		algos:              make(map[string]*domain.AlgoOrder),
		positions:          make(map[positionKey]*domain.Position),
		balances:           make(map[balanceKey]*domain.Balance),
		openOrdersByVenue:  make(map[domain.Venue]map[string]struct{}),
		openOrdersBySymbol: make(map[string]map[string]struct{}),
	}
}

func (c *Cache) SetSyncInterval(d time.Duration) { c.syncInterval = d }
func (c *Cache) SetExpireTime(d time.Duration)   { c.expireTime = d }

// ApplyOrder is the single mutation path for order state (spec's
// `_apply_order`). While a restore is in flight, late events are buffered
// and replayed once Restore finishes, so no update is lost.
func (c *Cache) ApplyOrder(o *domain.Order) {
	if c.restoring {
		captured := o.Clone()
		c.bufferedApply = append(c.bufferedApply, func() { c.applyOrderNow(captured) })
		return
	}
	c.applyOrderNow(o)
}

func (c *Cache) applyOrderNow(o *domain.Order) {
	c.orders[o.UUID] = o
	c.reindexOrder(o)
}

func (c *Cache) reindexOrder(o *domain.Order) {
	venueSet, ok := c.openOrdersByVenue[o.Exchange]
	if !ok {
		venueSet = make(map[string]struct{})
		c.openOrdersByVenue[o.Exchange] = venueSet
	}
	symbolSet, ok := c.openOrdersBySymbol[o.Symbol]
	if !ok {
		symbolSet = make(map[string]struct{})
		c.openOrdersBySymbol[o.Symbol] = symbolSet
	}

	if o.Status.Terminal() {
		delete(venueSet, o.UUID)
		delete(symbolSet, o.UUID)
		return
	}
	venueSet[o.UUID] = struct{}{}
	symbolSet[o.UUID] = struct{}{}
}

// ApplyPosition is the single mutation path for position snapshots
// (spec's `_apply_position`).
func (c *Cache) ApplyPosition(venue domain.Venue, p *domain.Position) {
	if c.restoring {
		captured := *p
		c.bufferedApply = append(c.bufferedApply, func() { c.applyPositionNow(venue, &captured) })
		return
	}
	c.applyPositionNow(venue, p)
}

func (c *Cache) applyPositionNow(venue domain.Venue, p *domain.Position) {
	c.positions[positionKey{venue: venue, symbol: p.Symbol}] = p
}

// ApplyBalance is the single mutation path for balance snapshots (spec's
// `_apply_balance`).
func (c *Cache) ApplyBalance(accountType string, b *domain.Balance) {
	if c.restoring {
		captured := *b
		c.bufferedApply = append(c.bufferedApply, func() { c.applyBalanceNow(accountType, &captured) })
		return
	}
	c.applyBalanceNow(accountType, b)
}

func (c *Cache) applyBalanceNow(accountType string, b *domain.Balance) {
	c.balances[balanceKey{accountType: accountType, asset: b.Asset}] = b
}

// ApplyAlgo stores/updates a TWAP parent's state.
func (c *Cache) ApplyAlgo(a *domain.AlgoOrder) {
	c.algos[a.UUID] = a
}

func (c *Cache) Order(uuid string) (*domain.Order, bool) {
	o, ok := c.orders[uuid]
	return o, ok
}

func (c *Cache) Algo(uuid string) (*domain.AlgoOrder, bool) {
	a, ok := c.algos[uuid]
	return a, ok
}

func (c *Cache) Position(venue domain.Venue, symbol string) (*domain.Position, bool) {
	p, ok := c.positions[positionKey{venue: venue, symbol: symbol}]
	return p, ok
}

func (c *Cache) Balance(accountType, asset string) (*domain.Balance, bool) {
	b, ok := c.balances[balanceKey{accountType: accountType, asset: asset}]
	return b, ok
}

// OpenOrdersBySymbol returns the uuids of open orders for a symbol.
func (c *Cache) OpenOrdersBySymbol(symbol string) []string {
	set := c.openOrdersBySymbol[symbol]
	out := make([]string, 0, len(set))
	for uuid := range set {
		out = append(out, uuid)
	}
	return out
}

// OpenOrdersByVenue returns the uuids of open orders for a venue.
func (c *Cache) OpenOrdersByVenue(venue domain.Venue) []string {
	set := c.openOrdersByVenue[venue]
	out := make([]string, 0, len(set))
	for uuid := range set {
		out = append(out, uuid)
	}
	return out
}

// Restore loads persisted state from the KvStore before connectors are
// allowed to publish (spec §4.9). Late events arriving via Apply* during
// this call are buffered and replayed once the scan completes.
func (c *Cache) Restore(ctx context.Context) error {
	c.restoring = true
	defer func() {
		c.restoring = false
		buffered := c.bufferedApply
		c.bufferedApply = nil
		for _, fn := range buffered {
			fn()
		}
	}()

	orderRows, err := c.store.Scan(ctx, "orders/")
	if err != nil {
		return fmt.Errorf("restore orders: %w", err)
	}
	for _, raw := range orderRows {
		var o domain.Order
		if err := json.Unmarshal(raw, &o); err != nil {
			c.log.Warn().Err(err).Msg("skipping corrupt order snapshot")
			continue
		}
		c.applyOrderNow(&o)
	}

	algoRows, err := c.store.Scan(ctx, "algo/")
	if err != nil {
		return fmt.Errorf("restore algos: %w", err)
	}
	for _, raw := range algoRows {
		var a domain.AlgoOrder
		if err := json.Unmarshal(raw, &a); err != nil {
			c.log.Warn().Err(err).Msg("skipping corrupt algo snapshot")
			continue
		}
		c.algos[a.UUID] = &a
	}

	c.log.Info().Int("orders", len(orderRows)).Int("algos", len(algoRows)).Msg("cache restored")
	return nil
}

// Sync writes a full snapshot of non-terminal and recently-terminal
// orders/algos to the KvStore, evicting entries older than expireTime
// that have reached a terminal state.
func (c *Cache) Sync(ctx context.Context) error {
	now := time.Now()
	for uuid, o := range c.orders {
		if o.Status.Terminal() && now.Sub(time.UnixMilli(o.Timestamp)) > c.expireTime {
			delete(c.orders, uuid)
			if err := c.store.Del(ctx, "orders/"+uuid); err != nil {
				c.log.Warn().Err(err).Str("uuid", uuid).Msg("evict order failed")
			}
			continue
		}
		raw, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("marshal order %s: %w", uuid, err)
		}
		if err := c.store.Set(ctx, "orders/"+uuid, raw); err != nil {
			return fmt.Errorf("persist order %s: %w", uuid, err)
		}
	}
	for uuid, a := range c.algos {
		raw, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("marshal algo %s: %w", uuid, err)
		}
		if err := c.store.Set(ctx, "algo/"+uuid, raw); err != nil {
			return fmt.Errorf("persist algo %s: %w", uuid, err)
		}
	}
	return nil
}

// RunSyncLoop periodically calls Sync until ctx is cancelled, the
// interval-driven counterpart to Restore's one-shot startup load.
func (c *Cache) RunSyncLoop(ctx context.Context) error {
	ticker := time.NewTicker(c.syncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.Sync(ctx); err != nil {
				c.log.Warn().Err(err).Msg("cache sync failed")
			}
		}
	}
}
