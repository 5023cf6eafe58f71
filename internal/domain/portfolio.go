package domain

import "github.com/shopspring/decimal"

// PositionSideLabel classifies the sign of a Position's amount.
type PositionSideLabel string

const (
	PosLong  PositionSideLabel = "LONG"
	PosShort PositionSideLabel = "SHORT"
	PosFlat  PositionSideLabel = "FLAT"
)

// Position is a venue/symbol position. Side is always consistent with
// sign(SignedAmount): positive is LONG, negative is SHORT, zero is FLAT.
type Position struct {
	Symbol        string
	Exchange      Venue
	SignedAmount  decimal.Decimal
	EntryPrice    decimal.Decimal
	Side          PositionSideLabel
	UnrealizedPnL decimal.Decimal
	RealizedPnL   decimal.Decimal
}

// SideFromSigned derives the Side label from a signed amount, per the
// data-model invariant in spec §3.
func SideFromSigned(amount decimal.Decimal) PositionSideLabel {
	switch {
	case amount.IsPositive():
		return PosLong
	case amount.IsNegative():
		return PosShort
	default:
		return PosFlat
	}
}

// Balance is free+locked accounting for one asset. Total is always the sum
// and is never stored independently to avoid drift.
type Balance struct {
	Asset  string
	Free   decimal.Decimal
	Locked decimal.Decimal
}

// Total returns Free + Locked.
func (b Balance) Total() decimal.Decimal {
	return b.Free.Add(b.Locked)
}

// AccountBalance is the per-account-type mapping from asset to Balance.
type AccountBalance map[string]Balance
