package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func testMarket() Market {
	return Market{
		Symbol:    "BTC/USDT",
		Precision: Precision{Amount: 3, Price: 2},
	}
}

func TestAmountToPrecisionRoundsAndIsIdempotent(t *testing.T) {
	m := testMarket()
	amount := decimal.RequireFromString("1.23456")

	rounded := m.AmountToPrecision(amount, RoundNearest)
	assert.True(t, rounded.Equal(decimal.RequireFromString("1.235")))

	again := m.AmountToPrecision(rounded, RoundNearest)
	assert.True(t, again.Equal(rounded))
}

func TestAmountToPrecisionFloorNeverRoundsUp(t *testing.T) {
	m := testMarket()
	amount := decimal.RequireFromString("1.23999")
	rounded := m.AmountToPrecision(amount, RoundFloor)
	assert.True(t, rounded.Equal(decimal.RequireFromString("1.239")))
}

func TestPriceToPrecisionCeil(t *testing.T) {
	m := testMarket()
	price := decimal.RequireFromString("100.001")
	rounded := m.PriceToPrecision(price, RoundCeil)
	assert.True(t, rounded.Equal(decimal.RequireFromString("100.01")))
}
