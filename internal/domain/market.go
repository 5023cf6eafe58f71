package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Venue identifies an exchange. Always uppercase per the normalized symbol
// grammar.
type Venue string

const (
	VenueBinance Venue = "BINANCE"
	VenueOKX     Venue = "OKX"
	VenueBybit   Venue = "BYBIT"
)

// InstrumentType classifies a market.
type InstrumentType string

const (
	InstrumentSpot    InstrumentType = "SPOT"
	InstrumentLinear  InstrumentType = "LINEAR"
	InstrumentInverse InstrumentType = "INVERSE"
	InstrumentOption  InstrumentType = "OPTION"
)

// InstrumentId is the parsed tuple (symbol, exchange, instrument_type).
//
// Grammar: "BASE/QUOTE.VENUE" or "BASE/QUOTE" for spot (ccxt-style), or
// "BASEQUOTE[-PERP|-YYMMDD].VENUE" for derivatives. A hyphenated suffix of
// "PERP" means LINEAR; a 6-digit date suffix means INVERSE (settle
// currency is the base asset); no hyphen at all means SPOT.
type InstrumentId struct {
	Symbol string
	Venue  Venue
	Type   InstrumentType
}

// FromStr parses a normalized symbol string into an InstrumentId.
func FromStr(s string) (InstrumentId, error) {
	dot := strings.LastIndex(s, ".")
	var venuePart, symPart string
	if dot >= 0 {
		symPart = s[:dot]
		venuePart = strings.ToUpper(s[dot+1:])
	} else {
		symPart = s
	}

	if strings.Contains(symPart, "/") {
		return InstrumentId{Symbol: symPart, Venue: Venue(venuePart), Type: InstrumentSpot}, nil
	}

	hyphen := strings.Index(symPart, "-")
	if hyphen < 0 {
		return InstrumentId{Symbol: symPart, Venue: Venue(venuePart), Type: InstrumentSpot}, nil
	}

	suffix := symPart[hyphen+1:]
	switch {
	case suffix == "PERP":
		return InstrumentId{Symbol: symPart, Venue: Venue(venuePart), Type: InstrumentLinear}, nil
	case isExpiryDate(suffix):
		return InstrumentId{Symbol: symPart, Venue: Venue(venuePart), Type: InstrumentInverse}, nil
	default:
		return InstrumentId{}, fmt.Errorf("instrument id: unrecognized suffix %q in %q", suffix, s)
	}
}

func isExpiryDate(suffix string) bool {
	if len(suffix) != 6 {
		return false
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ToStr renders the InstrumentId back to its normalized string form. Round
// trips with FromStr for every well-formed input.
func (id InstrumentId) ToStr() string {
	if id.Venue == "" {
		return id.Symbol
	}
	return id.Symbol + "." + string(id.Venue)
}

// Precision holds per-instrument rounding metadata used by the EMS before
// dispatch.
type Precision struct {
	Amount int32
	Price  int32
}

// Limits holds per-instrument min/max bounds for amount, price and cost.
type Limits struct {
	MinAmount, MaxAmount decimal.Decimal
	MinPrice, MaxPrice   decimal.Decimal
	MinCost, MaxCost     decimal.Decimal
}

// Market is venue-qualified instrument metadata, as loaded once at startup
// by the external market-metadata loader (out of scope; see
// internal/venue/binance/marketload.go for the one concrete adapter kept).
type Market struct {
	ID           string // exchange-local id, e.g. "BTCUSDT"
	Symbol       string // normalized symbol, e.g. "BTC/USDT" or "BTCUSDT-PERP.BINANCE"
	Venue        Venue
	Type         InstrumentType
	Precision    Precision
	Limits       Limits
	ContractSize decimal.Decimal
}

// RoundingMode selects the precision-adjustment strategy the EMS applies
// before dispatch.
type RoundingMode int

const (
	RoundNearest RoundingMode = iota
	RoundCeil
	RoundFloor
)

// AmountToPrecision snaps amount to the market's amount precision using the
// given rounding mode. RoundNearest uses banker's rounding. Idempotent:
// applying it twice yields the same result as once.
func (m Market) AmountToPrecision(amount decimal.Decimal, mode RoundingMode) decimal.Decimal {
	return roundTo(amount, m.Precision.Amount, mode)
}

// PriceToPrecision snaps price to the market's price precision.
func (m Market) PriceToPrecision(price decimal.Decimal, mode RoundingMode) decimal.Decimal {
	return roundTo(price, m.Precision.Price, mode)
}

func roundTo(v decimal.Decimal, places int32, mode RoundingMode) decimal.Decimal {
	switch mode {
	case RoundCeil:
		return v.RoundCeil(places)
	case RoundFloor:
		return v.RoundFloor(places)
	default:
		return v.RoundBank(places)
	}
}
