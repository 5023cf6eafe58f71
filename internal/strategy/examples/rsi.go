// Package examples holds reference strategies built on the strategy
// host, adapted from the original RSI mean-reversion rule to the
// callback interface.
package examples

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/lavumi/nexustrader/internal/domain"
	"github.com/lavumi/nexustrader/internal/quant/indicator"
	"github.com/lavumi/nexustrader/internal/strategy"
)

// RSIStrategy buys when RSI crosses below Oversold and sells when it
// crosses above Overbought, sized at Amount per signal.
type RSIStrategy struct {
	strategy.NoOp

	Host   *strategy.Host
	Venue  domain.Venue
	Symbol string
	Amount decimal.Decimal

	Period     int
	Oversold   float64
	Overbought float64

	log    zerolog.Logger
	closes map[string][]decimal.Decimal
	inPos  map[string]bool
}

func NewRSIStrategy(log zerolog.Logger, host *strategy.Host, v domain.Venue, symbol string, amount decimal.Decimal) *RSIStrategy {
	return &RSIStrategy{
		Host:       host,
		Venue:      v,
		Symbol:     symbol,
		Amount:     amount,
		Period:     14,
		Oversold:   30,
		Overbought: 70,
		log:        log.With().Str("component", "strategy_rsi").Str("symbol", symbol).Logger(),
		closes:     make(map[string][]decimal.Decimal),
		inPos:      make(map[string]bool),
	}
}

const maxHistory = 500

func (s *RSIStrategy) OnKline(k *domain.Kline) {
	if k.Symbol != s.Symbol || !k.Confirm {
		return
	}
	history := append(s.closes[k.Symbol], k.Close)
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	s.closes[k.Symbol] = history

	if len(history) <= s.Period {
		return
	}

	rsi, _ := indicator.RSI(history, s.Period).Float64()
	switch {
	case rsi < s.Oversold && !s.inPos[k.Symbol]:
		s.submit(domain.OrderSideBuy, k.Symbol)
		s.inPos[k.Symbol] = true
	case rsi > s.Overbought && s.inPos[k.Symbol]:
		s.submit(domain.OrderSideSell, k.Symbol)
		s.inPos[k.Symbol] = false
	}
}

func (s *RSIStrategy) submit(side domain.OrderSide, symbol string) {
	_, err := s.Host.Submit(domain.OrderSubmit{
		SubmitType: domain.SubmitCreate,
		Exchange:   s.Venue,
		Symbol:     symbol,
		Side:       side,
		Type:       domain.OrderTypeMarket,
		Amount:     s.Amount,
	}, "")
	if err != nil {
		s.log.Warn().Err(err).Msg("submit failed")
	}
}
