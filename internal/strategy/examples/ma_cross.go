package examples

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/lavumi/nexustrader/internal/domain"
	"github.com/lavumi/nexustrader/internal/quant/indicator"
	"github.com/lavumi/nexustrader/internal/strategy"
)

// MACrossStrategy goes long on a fast/slow SMA golden cross and flat on a
// death cross.
type MACrossStrategy struct {
	strategy.NoOp

	Host   *strategy.Host
	Venue  domain.Venue
	Symbol string
	Amount decimal.Decimal

	FastPeriod int
	SlowPeriod int

	log      zerolog.Logger
	closes   []decimal.Decimal
	lastFast decimal.Decimal
	lastSlow decimal.Decimal
	haveLast bool
	inPos    bool
}

func NewMACrossStrategy(log zerolog.Logger, host *strategy.Host, v domain.Venue, symbol string, amount decimal.Decimal) *MACrossStrategy {
	return &MACrossStrategy{
		Host:       host,
		Venue:      v,
		Symbol:     symbol,
		Amount:     amount,
		FastPeriod: 10,
		SlowPeriod: 30,
		log:        log.With().Str("component", "strategy_ma_cross").Str("symbol", symbol).Logger(),
	}
}

func (s *MACrossStrategy) OnKline(k *domain.Kline) {
	if k.Symbol != s.Symbol || !k.Confirm {
		return
	}
	s.closes = append(s.closes, k.Close)
	if len(s.closes) > maxHistory {
		s.closes = s.closes[len(s.closes)-maxHistory:]
	}
	if len(s.closes) < s.SlowPeriod {
		return
	}

	fast := indicator.SMA(s.closes, s.FastPeriod)
	slow := indicator.SMA(s.closes, s.SlowPeriod)

	if s.haveLast {
		crossedUp := s.lastFast.LessThanOrEqual(s.lastSlow) && fast.GreaterThan(slow)
		crossedDown := s.lastFast.GreaterThanOrEqual(s.lastSlow) && fast.LessThan(slow)
		switch {
		case crossedUp && !s.inPos:
			s.submit(domain.OrderSideBuy)
			s.inPos = true
		case crossedDown && s.inPos:
			s.submit(domain.OrderSideSell)
			s.inPos = false
		}
	}
	s.lastFast, s.lastSlow, s.haveLast = fast, slow, true
}

func (s *MACrossStrategy) submit(side domain.OrderSide) {
	_, err := s.Host.Submit(domain.OrderSubmit{
		SubmitType: domain.SubmitCreate,
		Exchange:   s.Venue,
		Symbol:     s.Symbol,
		Side:       side,
		Type:       domain.OrderTypeMarket,
		Amount:     s.Amount,
	}, "")
	if err != nil {
		s.log.Warn().Err(err).Msg("submit failed")
	}
}
