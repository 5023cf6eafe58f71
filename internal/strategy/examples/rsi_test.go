package examples

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavumi/nexustrader/internal/bus"
	"github.com/lavumi/nexustrader/internal/domain"
	"github.com/lavumi/nexustrader/internal/strategy"
)

type fakeSubmitter struct {
	submits []domain.OrderSubmit
}

func (f *fakeSubmitter) SubmitOrder(submit domain.OrderSubmit, accountType string) (string, error) {
	f.submits = append(f.submits, submit)
	return "uuid", nil
}

// feedKlines delivers one confirmed kline per close to the strategy, in
// the order given.
func feedKlines(s *RSIStrategy, closes []float64) {
	for _, c := range closes {
		s.OnKline(&domain.Kline{Symbol: s.Symbol, Confirm: true, Close: decimal.NewFromFloat(c)})
	}
}

func TestRSIStrategyBuysOnOversoldCross(t *testing.T) {
	sub := &fakeSubmitter{}
	host := strategy.New(zerolog.Nop(), bus.New(zerolog.Nop()), &strategy.NoOp{}, sub)
	s := NewRSIStrategy(zerolog.Nop(), host, domain.VenueBinance, "BTC/USDT", decimal.NewFromFloat(0.01))

	closes := make([]float64, 0, 20)
	price := 100.0
	for i := 0; i < 20; i++ {
		price -= 2 // steady decline drives RSI toward 0
		closes = append(closes, price)
	}
	feedKlines(s, closes)

	require.NotEmpty(t, sub.submits)
	assert.Equal(t, domain.OrderSideBuy, sub.submits[0].Side)
	assert.True(t, s.inPos["BTC/USDT"])
}

func TestRSIStrategyIgnoresUnconfirmedAndOtherSymbolKlines(t *testing.T) {
	sub := &fakeSubmitter{}
	host := strategy.New(zerolog.Nop(), bus.New(zerolog.Nop()), &strategy.NoOp{}, sub)
	s := NewRSIStrategy(zerolog.Nop(), host, domain.VenueBinance, "BTC/USDT", decimal.NewFromFloat(0.01))

	s.OnKline(&domain.Kline{Symbol: "BTC/USDT", Confirm: false, Close: decimal.NewFromFloat(90)})
	s.OnKline(&domain.Kline{Symbol: "ETH/USDT", Confirm: true, Close: decimal.NewFromFloat(90)})

	assert.Empty(t, s.closes["BTC/USDT"])
	assert.Empty(t, sub.submits)
}

func TestRSIStrategyDoesNotResubmitWhileAlreadyInPosition(t *testing.T) {
	sub := &fakeSubmitter{}
	host := strategy.New(zerolog.Nop(), bus.New(zerolog.Nop()), &strategy.NoOp{}, sub)
	s := NewRSIStrategy(zerolog.Nop(), host, domain.VenueBinance, "BTC/USDT", decimal.NewFromFloat(0.01))

	price := 100.0
	closes := make([]float64, 0, 40)
	for i := 0; i < 40; i++ {
		price -= 1
		closes = append(closes, price)
	}
	feedKlines(s, closes)

	require.True(t, s.inPos["BTC/USDT"])
	buys := 0
	for _, sub := range sub.submits {
		if sub.Side == domain.OrderSideBuy {
			buys++
		}
	}
	assert.Equal(t, 1, buys, "a continued decline must not re-trigger a second buy while already in position")
}
