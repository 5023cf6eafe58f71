// Package okx implements the venue.Capability surface for OKX, grounded
// on OKX's documented orders/positions/account channel schemas (spec §6)
// and its base64 HMAC-SHA256 login/request signature scheme.
package okx

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/lavumi/nexustrader/internal/domain"
	"github.com/lavumi/nexustrader/internal/venue"
)

// AccountType selects OKX's instance family (spec §4.8 priority table:
// OKX DEMO > AWS > LIVE).
type AccountType string

const (
	AccountLive AccountType = "LIVE"
	AccountAWS  AccountType = "AWS"
	AccountDemo AccountType = "DEMO"
)

// PriorityOrder is the fixed priority list used to pick the primary
// account type when the caller does not specify one.
var PriorityOrder = []AccountType{AccountDemo, AccountAWS, AccountLive}

type Capability struct{}

func New() *Capability { return &Capability{} }

func (c *Capability) Venue() domain.Venue { return domain.VenueOKX }

// ParseSymbol renders the normalized symbol into OKX's dash-separated
// instId form, e.g. "BTC/USDT" -> "BTC-USDT", "BTCUSDT-PERP.OKX" -> "BTC-USDT-SWAP".
func (c *Capability) ParseSymbol(normalized string) (string, error) {
	id, err := domain.FromStr(normalized)
	if err != nil {
		return "", err
	}
	switch id.Type {
	case domain.InstrumentSpot:
		return strings.ReplaceAll(id.Symbol, "/", "-"), nil
	case domain.InstrumentLinear:
		base := strings.TrimSuffix(id.Symbol, "-PERP")
		return splitBaseQuote(base) + "-SWAP", nil
	case domain.InstrumentInverse:
		hy := strings.Index(id.Symbol, "-")
		base := id.Symbol[:hy]
		expiry := id.Symbol[hy+1:]
		return splitBaseQuote(base) + "-" + expiry, nil
	default:
		return id.Symbol, nil
	}
}

// splitBaseQuote best-effort splits a concatenated "BTCUSDT" into
// "BTC-USDT" assuming a 3-4 letter quote asset (USDT/USD/USDC).
func splitBaseQuote(sym string) string {
	for _, quote := range []string{"USDT", "USDC", "USD"} {
		if strings.HasSuffix(sym, quote) {
			return sym[:len(sym)-len(quote)] + "-" + quote
		}
	}
	return sym
}

func (c *Capability) ToVenueSide(s domain.OrderSide) string { return strings.ToLower(string(s)) }

func (c *Capability) ToVenueType(t domain.OrderType) string {
	if t == domain.OrderTypeMarket {
		return "market"
	}
	return "limit"
}

func (c *Capability) ToVenueTIF(t domain.TimeInForce) string {
	switch t {
	case domain.TimeInForceIOC:
		return "ioc"
	case domain.TimeInForceFOK:
		return "fok"
	default:
		return "gtc"
	}
}

func (c *Capability) FromVenueStatus(s string) domain.OrderStatus {
	switch s {
	case "live":
		return domain.OrderStatusAccepted
	case "partially_filled":
		return domain.OrderStatusPartiallyFilled
	case "filled":
		return domain.OrderStatusFilled
	case "canceled":
		return domain.OrderStatusCanceled
	case "mmp_canceled":
		return domain.OrderStatusCanceled
	default:
		return domain.OrderStatusPending
	}
}

type orderUpdateEvent struct {
	InstID     string `json:"instId"`
	OrdID      string `json:"ordId"`
	ClOrdID    string `json:"clOrdId"`
	Px         string `json:"px"`
	Sz         string `json:"sz"`
	OrdType    string `json:"ordType"`
	Side       string `json:"side"`
	State      string `json:"state"`
	AccFillSz  string `json:"accFillSz"`
	AvgPx      string `json:"avgPx"`
	FillSz     string `json:"fillSz"`
	FillPx     string `json:"fillPx"`
	Fee        string `json:"fee"`
	FeeCcy     string `json:"feeCcy"`
	ReduceOnly string `json:"reduceOnly"`
	PosSide    string `json:"posSide"`
	UTime      string `json:"uTime"`
}

type wsEnvelope struct {
	Arg  json.RawMessage   `json:"arg"`
	Data []json.RawMessage `json:"data"`
}

type argChannel struct {
	Channel string `json:"channel"`
}

func (c *Capability) DecodeOrderUpdate(frame []byte) (*venue.OrderUpdate, error) {
	env, channel, err := decodeEnvelope(frame)
	if err != nil || channel != "orders" || len(env.Data) == 0 {
		return nil, err
	}
	var o orderUpdateEvent
	if err := json.Unmarshal(env.Data[0], &o); err != nil {
		return nil, err
	}

	posSide := domain.PositionSideNet
	switch o.PosSide {
	case "long":
		posSide = domain.PositionSideLong
	case "short":
		posSide = domain.PositionSideShort
	}

	ts, _ := strconv.ParseInt(o.UTime, 10, 64)

	return &venue.OrderUpdate{
		VenueOrderID:    o.OrdID,
		ClientOrderID:   o.ClOrdID,
		Symbol:          o.InstID,
		Side:            domain.OrderSide(strings.ToUpper(o.Side)),
		Type:            venueTypeToOrderType(o.OrdType),
		Amount:          o.Sz,
		Price:           o.Px,
		Filled:          o.AccFillSz,
		LastFilled:      o.FillSz,
		LastFilledPrice: o.FillPx,
		Fee:             o.Fee,
		FeeCurrency:     o.FeeCcy,
		Status:          c.FromVenueStatus(o.State),
		ReduceOnly:      o.ReduceOnly == "true",
		PositionSide:    posSide,
		Timestamp:       ts,
	}, nil
}

func venueTypeToOrderType(t string) domain.OrderType {
	if t == "market" {
		return domain.OrderTypeMarket
	}
	return domain.OrderTypeLimit
}

type positionEvent struct {
	InstID        string `json:"instId"`
	PosSide       string `json:"posSide"`
	Pos           string `json:"pos"`
	AvgPx         string `json:"avgPx"`
	Upl           string `json:"upl"`
}

func (c *Capability) DecodePositionUpdate(frame []byte) ([]venue.PositionUpdate, error) {
	env, channel, err := decodeEnvelope(frame)
	if err != nil || channel != "positions" {
		return nil, err
	}
	out := make([]venue.PositionUpdate, 0, len(env.Data))
	for _, raw := range env.Data {
		var p positionEvent
		if err := json.Unmarshal(raw, &p); err != nil {
			continue
		}
		out = append(out, venue.PositionUpdate{
			Symbol:        p.InstID,
			PosSide:       p.PosSide,
			Amount:        p.Pos,
			EntryPrice:    p.AvgPx,
			UnrealizedPnL: p.Upl,
		})
	}
	return out, nil
}

type accountDetailUpdate struct {
	Ccy      string `json:"ccy"`
	AvailBal string `json:"availBal"`
	FrozenBal string `json:"frozenBal"`
}

type accountUpdateEvent struct {
	Details []accountDetailUpdate `json:"details"`
}

func (c *Capability) DecodeBalanceUpdate(frame []byte) ([]venue.BalanceUpdate, error) {
	env, channel, err := decodeEnvelope(frame)
	if err != nil || channel != "account" {
		return nil, err
	}
	out := make([]venue.BalanceUpdate, 0)
	for _, raw := range env.Data {
		var a accountUpdateEvent
		if err := json.Unmarshal(raw, &a); err != nil {
			continue
		}
		for _, d := range a.Details {
			out = append(out, venue.BalanceUpdate{Asset: d.Ccy, Free: d.AvailBal, Locked: d.FrozenBal})
		}
	}
	return out, nil
}

func decodeEnvelope(frame []byte) (*wsEnvelope, string, error) {
	var env wsEnvelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, "", err
	}
	if len(env.Arg) == 0 {
		return &env, "", nil
	}
	var arg argChannel
	_ = json.Unmarshal(env.Arg, &arg)
	return &env, arg.Channel, nil
}

// SignQuery is unused for OKX's REST signer (OKX signs
// timestamp+method+path+body with base64, not a URL-encoded query); see
// RequestSignature. It is kept to satisfy venue.Capability but always returns
// the plain encoded query with no signature appended, since OKX REST
// auth uses headers, not a query-string signature.
func (c *Capability) SignQuery(secret string, params url.Values, nowMs int64) string {
	if params == nil {
		return ""
	}
	return params.Encode()
}

// LoginSignature produces OKX's base64 HMAC-SHA256 signature of
// "{timestamp}GET/users/self/verify" for the private WS channel login,
// per OKX's documented login scheme.
func LoginSignature(secret, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "GET" + "/users/self/verify"))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// RequestSignature produces OKX's REST header signature:
// base64(HMAC-SHA256(timestamp+method+requestPath+body)).
func RequestSignature(secret, timestamp, method, requestPath, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + method + requestPath + body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// OrderEndpoint returns OKX's order-placement path; one unified endpoint
// across spot/swap/futures, selected by instId rather than a distinct path.
func OrderEndpoint() string { return "/api/v5/trade/order" }

// CancelEndpoint returns OKX's order-cancellation path.
func CancelEndpoint() string { return "/api/v5/trade/cancel-order" }
