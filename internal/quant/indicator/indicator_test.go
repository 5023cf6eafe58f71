package indicator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func decimals(vs ...float64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(vs))
	for i, v := range vs {
		out[i] = decimal.NewFromFloat(v)
	}
	return out
}

func TestSMAAveragesTheTrailingWindow(t *testing.T) {
	assert.True(t, decimal.NewFromInt(2).Equal(SMA(decimals(1, 2, 3), 3)))
	assert.True(t, decimal.NewFromFloat(3.5).Equal(SMA(decimals(1, 2, 3, 4), 2)))
}

func TestSMAReturnsZeroWhenNotEnoughData(t *testing.T) {
	assert.True(t, SMA(decimals(1, 2), 5).IsZero())
}

func TestRSIReturnsNeutralWithInsufficientHistory(t *testing.T) {
	assert.True(t, decimal.NewFromInt(50).Equal(RSI(decimals(1, 2), 14)))
}

func TestRSIIsZeroOnPureDeclineAndHundredOnPureRally(t *testing.T) {
	decline := make([]decimal.Decimal, 0, 20)
	price := 100.0
	for i := 0; i < 20; i++ {
		price -= 1
		decline = append(decline, decimal.NewFromFloat(price))
	}
	assert.True(t, decimal.Zero.Equal(RSI(decline, 14)))

	rally := make([]decimal.Decimal, 0, 20)
	price = 100.0
	for i := 0; i < 20; i++ {
		price += 1
		rally = append(rally, decimal.NewFromFloat(price))
	}
	assert.True(t, decimal.NewFromInt(100).Equal(RSI(rally, 14)))
}

func TestRSIStaysBoundedOnMixedHistory(t *testing.T) {
	mixed := decimals(100, 102, 101, 105, 103, 108, 107, 110, 109, 112, 111, 115, 114, 118, 117)
	rsi := RSI(mixed, 14)
	assert.True(t, rsi.GreaterThanOrEqual(decimal.Zero))
	assert.True(t, rsi.LessThanOrEqual(decimal.NewFromInt(100)))
}
