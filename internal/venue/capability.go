// Package venue defines the per-venue capability surface (spec §9 "Dynamic
// dispatch"): symbol translation, enum translation, wire decoding, and
// request signing. One implementation lives in a subpackage per venue
// (binance, okx, bybit); the connector layer is generic over Capability.
package venue

import (
	"net/url"

	"github.com/lavumi/nexustrader/internal/domain"
)

// OrderUpdate is the venue-decoded, not-yet-FSM-validated order event.
type OrderUpdate struct {
	VenueOrderID    string
	ClientOrderID   string
	Symbol          string
	Side            domain.OrderSide
	Type            domain.OrderType
	TimeInForce     domain.TimeInForce
	Amount          string
	Price           string
	Filled          string
	LastFilled      string
	LastFilledPrice string
	AvgPrice        string
	Fee             string
	FeeCurrency     string
	CumCost         string
	Status          domain.OrderStatus
	ReduceOnly      bool
	PositionSide    domain.PositionSide
	Timestamp       int64
}

// PositionUpdate is the venue-decoded position event, prior to hedge-mode
// sign resolution (see ResolveSignedAmount).
type PositionUpdate struct {
	Symbol       string
	PosSide      string // venue-native posSide string, e.g. "net"/"long"/"short"
	Amount       string // always a non-negative magnitude as delivered by the venue
	EntryPrice   string
	UnrealizedPnL string
}

// BalanceUpdate is one reported asset's free/locked snapshot.
type BalanceUpdate struct {
	Asset  string
	Free   string
	Locked string
}

// Capability is the polymorphic surface each venue implements once,
// selected at connector construction (spec §9).
type Capability interface {
	Venue() domain.Venue

	// ParseSymbol translates a normalized symbol into the venue-local
	// instrument id used on the wire.
	ParseSymbol(normalized string) (string, error)

	// ToVenueSide/ToVenueType/ToVenueTIF translate normalized enums to the
	// venue's wire vocabulary; FromVenue* is the inverse, used when
	// decoding.
	ToVenueSide(domain.OrderSide) string
	ToVenueType(domain.OrderType) string
	ToVenueTIF(domain.TimeInForce) string
	FromVenueStatus(venueStatus string) domain.OrderStatus

	// DecodeOrderUpdate parses one venue order-update wire event.
	DecodeOrderUpdate(frame []byte) (*OrderUpdate, error)
	// DecodePositionUpdate parses one venue position-update wire event.
	DecodePositionUpdate(frame []byte) ([]PositionUpdate, error)
	// DecodeBalanceUpdate parses one venue account/balance wire event.
	DecodeBalanceUpdate(frame []byte) ([]BalanceUpdate, error)

	// SignQuery returns the final query string (including signature) for
	// a signed REST call.
	SignQuery(secret string, params url.Values, nowMs int64) string
}

// ResolveSignedAmount applies the hedge-mode vs one-way rules from spec §9
// and Scenario 6: posSide "net" derives sign from the raw (possibly
// negative) amount; "long" is always positive; "short" is always negative
// regardless of the raw amount's own sign.
func ResolveSignedAmount(posSide string, magnitude float64) float64 {
	switch posSide {
	case "long":
		if magnitude < 0 {
			return -magnitude
		}
		return magnitude
	case "short":
		if magnitude > 0 {
			return -magnitude
		}
		return magnitude
	default: // "net" / one-way mode: sign is already carried by magnitude
		return magnitude
	}
}
