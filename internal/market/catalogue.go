// Package market holds the in-memory instrument catalogue populated once
// at startup by a venue's market-metadata loader (spec §1) and consulted
// by the EMS for precision adjustment.
package market

import (
	"sync"

	"github.com/lavumi/nexustrader/internal/domain"
)

// Catalogue is a read-mostly map of normalized symbol -> Market, safe for
// concurrent reads after an initial Load.
type Catalogue struct {
	mu      sync.RWMutex
	markets map[string]domain.Market
}

func New() *Catalogue {
	return &Catalogue{markets: make(map[string]domain.Market)}
}

// Load replaces the catalogue contents, keyed by each Market's normalized
// Symbol field.
func (c *Catalogue) Load(markets []domain.Market) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markets = make(map[string]domain.Market, len(markets))
	for _, m := range markets {
		c.markets[m.Symbol] = m
	}
}

// Market implements ems.MarketCatalogue.
func (c *Catalogue) Market(symbol string) (domain.Market, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.markets[symbol]
	return m, ok
}
