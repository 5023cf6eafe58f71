// Package binance implements the venue.Capability surface for Binance
// spot/futures account types, grounded on Binance's documented
// executionReport / ORDER_TRADE_UPDATE / ACCOUNT_UPDATE wire schemas
// (spec §6) and the short-key JSON style those events use.
package binance

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/lavumi/nexustrader/internal/domain"
	"github.com/lavumi/nexustrader/internal/restclient"
	"github.com/lavumi/nexustrader/internal/venue"
)

// AccountType selects which base URL / listen-key endpoint family applies.
type AccountType string

const (
	AccountSpot    AccountType = "SPOT"
	AccountFutures AccountType = "FUTURES_USDT" // fapi
	AccountInverse AccountType = "FUTURES_COIN" // dapi
	AccountMargin  AccountType = "MARGIN"
	AccountPM      AccountType = "PORTFOLIO_MARGIN"
)

// Capability implements venue.Capability for Binance.
type Capability struct{}

func New() *Capability { return &Capability{} }

func (c *Capability) Venue() domain.Venue { return domain.VenueBinance }

// ParseSymbol strips the "BASE/QUOTE" separator Binance does not use on
// the wire (e.g. "BTC/USDT" -> "BTCUSDT"); derivative symbols already use
// the venue-local id verbatim as their base (e.g. "BTCUSDT-PERP" -> "BTCUSDT").
func (c *Capability) ParseSymbol(normalized string) (string, error) {
	id, err := domain.FromStr(normalized)
	if err != nil {
		return "", err
	}
	sym := id.Symbol
	if strings.Contains(sym, "/") {
		return strings.ReplaceAll(sym, "/", ""), nil
	}
	if hy := strings.Index(sym, "-"); hy >= 0 {
		return sym[:hy], nil
	}
	return sym, nil
}

func (c *Capability) ToVenueSide(s domain.OrderSide) string { return string(s) }

func (c *Capability) ToVenueType(t domain.OrderType) string { return string(t) }

func (c *Capability) ToVenueTIF(t domain.TimeInForce) string { return string(t) }

func (c *Capability) FromVenueStatus(s string) domain.OrderStatus {
	switch s {
	case "NEW":
		return domain.OrderStatusAccepted
	case "PARTIALLY_FILLED":
		return domain.OrderStatusPartiallyFilled
	case "FILLED":
		return domain.OrderStatusFilled
	case "CANCELED":
		return domain.OrderStatusCanceled
	case "EXPIRED":
		return domain.OrderStatusExpired
	case "REJECTED":
		return domain.OrderStatusFailed
	case "PENDING_CANCEL":
		return domain.OrderStatusCanceling
	default:
		return domain.OrderStatusPending
	}
}

// executionReportEvent is the short-key order payload of spot's
// executionReport; futures' ORDER_TRADE_UPDATE nests the same shape.
type executionReportEvent struct {
	EventType          string  `json:"e"`
	EventTime          int64   `json:"E"`
	Symbol             string  `json:"s"`
	ClientOrderID      string  `json:"c"`
	Side               string  `json:"S"`
	OrderType          string  `json:"o"`
	TimeInForce        string  `json:"f"`
	OriginalQuantity   string  `json:"q"`
	Price              string  `json:"p"`
	OrderStatus        string  `json:"X"`
	OrderID            int64   `json:"i"`
	LastExecutedQty    string  `json:"l"`
	CumulativeQuantity string  `json:"z"`
	LastExecutedPrice  string  `json:"L"`
	Commission         string  `json:"n"`
	CommissionAsset    *string `json:"N"`
	TransactionTime    int64   `json:"T"`
	CumulativeQuoteQty string  `json:"Z"`
	ReduceOnly         bool    `json:"R"`
	PositionSide       string  `json:"ps"`
}

// futuresOrderTradeUpdateEvent wraps an executionReport-shaped order
// payload under the "o" key, as ORDER_TRADE_UPDATE does for futures.
type futuresOrderTradeUpdateEvent struct {
	EventType string               `json:"e"`
	EventTime int64                `json:"E"`
	Order     executionReportEvent `json:"o"`
}

// accountUpdateEvent is Binance futures' ACCOUNT_UPDATE, carrying both
// balance deltas and position snapshots in one frame.
type accountUpdateEvent struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Update    struct {
		Balances  []accountBalanceEntry  `json:"B"`
		Positions []accountPositionEntry `json:"P"`
	} `json:"a"`
}

type accountBalanceEntry struct {
	Asset         string `json:"a"`
	WalletBalance string `json:"wb"`
}

type accountPositionEntry struct {
	Symbol       string `json:"s"`
	Amount       string `json:"pa"`
	EntryPrice   string `json:"ep"`
	UnrealizedPnL string `json:"up"`
	PositionSide string `json:"ps"` // BOTH/LONG/SHORT
}

// spotOutboundAccountPositionEvent is Binance spot's outboundAccountPosition,
// carrying a full balance snapshot for every reported asset.
type spotOutboundAccountPositionEvent struct {
	EventType string                  `json:"e"`
	EventTime int64                   `json:"E"`
	Balances  []spotAccountPositionB  `json:"B"`
}

type spotAccountPositionB struct {
	Asset  string `json:"a"`
	Free   string `json:"f"`
	Locked string `json:"l"`
}

type eventEnvelope struct {
	EventType string `json:"e"`
}

func (c *Capability) DecodeOrderUpdate(frame []byte) (*venue.OrderUpdate, error) {
	var env eventEnvelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, err
	}

	var er executionReportEvent
	switch env.EventType {
	case "executionReport":
		if err := json.Unmarshal(frame, &er); err != nil {
			return nil, err
		}
	case "ORDER_TRADE_UPDATE":
		var wrap futuresOrderTradeUpdateEvent
		if err := json.Unmarshal(frame, &wrap); err != nil {
			return nil, err
		}
		er = wrap.Order
	default:
		return nil, nil
	}

	posSide := domain.PositionSideNet
	switch er.PositionSide {
	case "LONG":
		posSide = domain.PositionSideLong
	case "SHORT":
		posSide = domain.PositionSideShort
	}

	feeCurrency := ""
	if er.CommissionAsset != nil {
		feeCurrency = *er.CommissionAsset
	}

	return &venue.OrderUpdate{
		VenueOrderID:    strconv.FormatInt(er.OrderID, 10),
		ClientOrderID:   er.ClientOrderID,
		Symbol:          er.Symbol,
		Side:            domain.OrderSide(er.Side),
		Type:            domain.OrderType(er.OrderType),
		TimeInForce:     domain.TimeInForce(er.TimeInForce),
		Amount:          er.OriginalQuantity,
		Price:           er.Price,
		Filled:          er.CumulativeQuantity,
		LastFilled:      er.LastExecutedQty,
		LastFilledPrice: er.LastExecutedPrice,
		Fee:             er.Commission,
		FeeCurrency:     feeCurrency,
		CumCost:         er.CumulativeQuoteQty,
		Status:          c.FromVenueStatus(er.OrderStatus),
		ReduceOnly:      er.ReduceOnly,
		PositionSide:    posSide,
		Timestamp:       er.TransactionTime,
	}, nil
}

func (c *Capability) DecodePositionUpdate(frame []byte) ([]venue.PositionUpdate, error) {
	var env eventEnvelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, err
	}
	if env.EventType != "ACCOUNT_UPDATE" {
		return nil, nil
	}
	var au accountUpdateEvent
	if err := json.Unmarshal(frame, &au); err != nil {
		return nil, err
	}
	out := make([]venue.PositionUpdate, 0, len(au.Update.Positions))
	for _, p := range au.Update.Positions {
		posSide := strings.ToLower(p.PositionSide)
		if posSide == "both" {
			posSide = "net"
		}
		out = append(out, venue.PositionUpdate{
			Symbol:        p.Symbol,
			PosSide:       posSide,
			Amount:        p.Amount,
			EntryPrice:    p.EntryPrice,
			UnrealizedPnL: p.UnrealizedPnL,
		})
	}
	return out, nil
}

func (c *Capability) DecodeBalanceUpdate(frame []byte) ([]venue.BalanceUpdate, error) {
	var env eventEnvelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, err
	}

	switch env.EventType {
	case "outboundAccountPosition":
		var e spotOutboundAccountPositionEvent
		if err := json.Unmarshal(frame, &e); err != nil {
			return nil, err
		}
		out := make([]venue.BalanceUpdate, 0, len(e.Balances))
		for _, b := range e.Balances {
			out = append(out, venue.BalanceUpdate{Asset: b.Asset, Free: b.Free, Locked: b.Locked})
		}
		return out, nil
	case "ACCOUNT_UPDATE":
		var au accountUpdateEvent
		if err := json.Unmarshal(frame, &au); err != nil {
			return nil, err
		}
		out := make([]venue.BalanceUpdate, 0, len(au.Update.Balances))
		for _, b := range au.Update.Balances {
			out = append(out, venue.BalanceUpdate{Asset: b.Asset, Free: b.WalletBalance, Locked: "0"})
		}
		return out, nil
	default:
		return nil, nil
	}
}

// SignQuery implements Binance's signature scheme bit-exactly: HMAC-SHA256
// of the URL-encoded query (including timestamp), appended as
// "&signature=..." (spec §6, Scenario 5).
func (c *Capability) SignQuery(secret string, params url.Values, nowMs int64) string {
	if params == nil {
		params = url.Values{}
	}
	params.Set("timestamp", strconv.FormatInt(nowMs, 10))
	sig := restclient.Sign(secret, params)
	return params.Encode() + "&signature=" + sig
}

// OrderEndpoint returns the order-placement path for an account type, per
// spec §6's endpoint table.
func OrderEndpoint(at AccountType) string {
	switch at {
	case AccountFutures:
		return "/fapi/v1/order"
	case AccountInverse:
		return "/dapi/v1/order"
	case AccountMargin:
		return "/sapi/v1/margin/order"
	case AccountPM:
		return "/papi/v1/um/order"
	default:
		return "/api/v3/order"
	}
}

// ListenKeyEndpoint returns the listen-key acquisition path for an account type.
func ListenKeyEndpoint(at AccountType) string {
	switch at {
	case AccountFutures:
		return "/fapi/v1/listenKey"
	case AccountInverse:
		return "/dapi/v1/listenKey"
	case AccountMargin:
		return "/sapi/v1/userDataStream"
	case AccountPM:
		return "/papi/v1/listenKey"
	default:
		return "/api/v3/userDataStream"
	}
}
