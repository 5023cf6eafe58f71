package indicator

import "github.com/shopspring/decimal"

// SMA averages the trailing window of period closes. The strategy
// examples feed this straight from domain.Kline.Close, so it takes
// decimal.Decimal rather than float64 to avoid a lossy round-trip on
// every bar.
func SMA(closes []decimal.Decimal, period int) decimal.Decimal {
	if len(closes) < period || period <= 0 {
		return decimal.Zero
	}

	start := len(closes) - period
	sum := decimal.Zero
	for _, c := range closes[start:] {
		sum = sum.Add(c)
	}

	return sum.Div(decimal.NewFromInt(int64(period)))
}
