// Package kvstore defines the persistence backend the cache snapshots
// into (spec §4.9, §6): a minimal get/set/scan/del surface that SQLite
// and Redis implementations satisfy identically.
package kvstore

import "context"

// KvStore is the persistence seam behind the cache's snapshot/restore
// cycle. Keys follow the layout in spec §6: "orders/{uuid}",
// "positions/{venue}/{symbol}", "balances/{account_type}/{asset}",
// "algo/{uuid}", "index/open_orders/{venue}".
type KvStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Scan(ctx context.Context, prefix string) (map[string][]byte, error)
	Del(ctx context.Context, key string) error
	Close() error
}
