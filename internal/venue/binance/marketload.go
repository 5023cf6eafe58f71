package binance

import (
	"context"
	"fmt"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"github.com/lavumi/nexustrader/internal/domain"
)

// MarketLoader fetches exchange metadata once at startup. It is the one
// place this module still depends on the adshao/go-binance SDK: loading
// markets is explicitly named an out-of-scope external collaborator in
// spec §1 ("the third-party ccxt-equivalent market-metadata loader used
// only once at startup"), so reusing the teacher's own dependency here
// does not conflict with the bit-exact signer/decoder mandated elsewhere.
type MarketLoader struct {
	client *gobinance.Client
}

// NewMarketLoader builds a loader using public (unauthenticated) endpoints.
func NewMarketLoader(testnet bool) *MarketLoader {
	gobinance.UseTestnet = testnet
	return &MarketLoader{client: gobinance.NewClient("", "")}
}

// LoadSpotMarkets fetches exchange info and normalizes it into
// domain.Market records.
func (l *MarketLoader) LoadSpotMarkets(ctx context.Context) ([]domain.Market, error) {
	info, err := l.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("load binance exchange info: %w", err)
	}

	markets := make([]domain.Market, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		m := domain.Market{
			ID:     s.Symbol,
			Symbol: fmt.Sprintf("%s/%s", s.BaseAsset, s.QuoteAsset),
			Venue:  domain.VenueBinance,
			Type:   domain.InstrumentSpot,
			Precision: domain.Precision{
				Amount: int32(s.BaseAssetPrecision),
				Price:  int32(s.QuotePrecision),
			},
			ContractSize: decimal.NewFromInt(1),
		}
		for _, f := range s.Filters {
			switch f["filterType"] {
			case "LOT_SIZE":
				m.Limits.MinAmount = decimalOrZero(f["minQty"])
				m.Limits.MaxAmount = decimalOrZero(f["maxQty"])
			case "PRICE_FILTER":
				m.Limits.MinPrice = decimalOrZero(f["minPrice"])
				m.Limits.MaxPrice = decimalOrZero(f["maxPrice"])
			case "MIN_NOTIONAL", "NOTIONAL":
				m.Limits.MinCost = decimalOrZero(f["minNotional"])
			}
		}
		markets = append(markets, m)
	}
	return markets, nil
}

func decimalOrZero(v any) decimal.Decimal {
	s, ok := v.(string)
	if !ok {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
