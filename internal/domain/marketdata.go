package domain

import "github.com/shopspring/decimal"

// BookL1 is a best-bid/ask snapshot, one level per side.
type BookL1 struct {
	Exchange Venue
	Symbol   string
	Bid      decimal.Decimal
	Ask      decimal.Decimal
	BidSize  decimal.Decimal
	AskSize  decimal.Decimal
	Ts       int64
}

// Mid is the midpoint of bid and ask.
func (b BookL1) Mid() decimal.Decimal {
	return b.Bid.Add(b.Ask).Div(decimal.NewFromInt(2))
}

// Spread is ask minus bid.
func (b BookL1) Spread() decimal.Decimal {
	return b.Ask.Sub(b.Bid)
}

// Trade is a single executed print on a venue.
type Trade struct {
	Exchange Venue
	Symbol   string
	Price    decimal.Decimal
	Size     decimal.Decimal
	Ts       int64
}

// Kline is an OHLCV bar for an interval. Confirm is true once the interval
// has closed.
type Kline struct {
	Exchange Venue
	Symbol   string
	Interval string
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
	Volume   decimal.Decimal
	Start    int64
	Ts       int64
	Confirm  bool
}
