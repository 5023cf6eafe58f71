package binance

import (
	"context"
	"net/url"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/lavumi/nexustrader/internal/domain"
	"github.com/lavumi/nexustrader/internal/restclient"
)

// PublicDecoder implements connector/public.Decoder for Binance's
// bookTicker, aggTrade, and kline WS payloads.
type PublicDecoder struct {
	Symbol string // normalized symbol this decoder is bound to
}

func NewPublicDecoder(symbol string) *PublicDecoder { return &PublicDecoder{Symbol: symbol} }

type bookTickerEvent struct {
	Symbol  string `json:"s"`
	BidPx   string `json:"b"`
	BidQty  string `json:"B"`
	AskPx   string `json:"a"`
	AskQty  string `json:"A"`
}

func (d *PublicDecoder) DecodeBookL1(frame []byte) (*domain.BookL1, error) {
	var e bookTickerEvent
	if err := json.Unmarshal(frame, &e); err != nil {
		return nil, err
	}
	if e.Symbol == "" || e.BidPx == "" {
		return nil, nil
	}
	return &domain.BookL1{
		Exchange: domain.VenueBinance,
		Symbol:   d.Symbol,
		Bid:      parseDecimalOrZero(e.BidPx),
		Ask:      parseDecimalOrZero(e.AskPx),
		BidSize:  parseDecimalOrZero(e.BidQty),
		AskSize:  parseDecimalOrZero(e.AskQty),
	}, nil
}

type aggTradeEvent struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Price     string `json:"p"`
	Quantity  string `json:"q"`
}

func (d *PublicDecoder) DecodeTrade(frame []byte) (*domain.Trade, error) {
	var e aggTradeEvent
	if err := json.Unmarshal(frame, &e); err != nil {
		return nil, err
	}
	if e.EventType != "aggTrade" {
		return nil, nil
	}
	return &domain.Trade{
		Exchange: domain.VenueBinance,
		Symbol:   d.Symbol,
		Price:    parseDecimalOrZero(e.Price),
		Size:     parseDecimalOrZero(e.Quantity),
		Ts:       e.EventTime,
	}, nil
}

type klineEvent struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Kline     struct {
		StartTime int64  `json:"t"`
		Interval  string `json:"i"`
		Open      string `json:"o"`
		High      string `json:"h"`
		Low       string `json:"l"`
		Close     string `json:"c"`
		Volume    string `json:"v"`
		Closed    bool   `json:"x"`
	} `json:"k"`
}

func (d *PublicDecoder) DecodeKline(frame []byte) (*domain.Kline, error) {
	var e klineEvent
	if err := json.Unmarshal(frame, &e); err != nil {
		return nil, err
	}
	if e.EventType != "kline" {
		return nil, nil
	}
	return &domain.Kline{
		Exchange: domain.VenueBinance,
		Symbol:   d.Symbol,
		Interval: e.Kline.Interval,
		Open:     parseDecimalOrZero(e.Kline.Open),
		High:     parseDecimalOrZero(e.Kline.High),
		Low:      parseDecimalOrZero(e.Kline.Low),
		Close:    parseDecimalOrZero(e.Kline.Close),
		Volume:   parseDecimalOrZero(e.Kline.Volume),
		Start:    e.Kline.StartTime,
		Ts:       e.EventTime,
		Confirm:  e.Kline.Closed,
	}, nil
}

func parseDecimalOrZero(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// KlineFetcher implements connector/public.KlineFetcher against Binance's
// REST klines endpoint.
type KlineFetcher struct {
	rest        *restclient.Client
	accountType AccountType
}

func NewKlineFetcher(rest *restclient.Client, at AccountType) *KlineFetcher {
	return &KlineFetcher{rest: rest, accountType: at}
}

func klinesEndpoint(at AccountType) string {
	switch at {
	case AccountFutures:
		return "/fapi/v1/klines"
	case AccountInverse:
		return "/dapi/v1/klines"
	default:
		return "/api/v3/klines"
	}
}

func (f *KlineFetcher) FetchKlines(ctx context.Context, symbol, interval string, startMs, endMs int64, limit int) ([]domain.Kline, error) {
	q := url.Values{
		"symbol":    []string{symbol},
		"interval":  []string{interval},
		"startTime": []string{strconv.FormatInt(startMs, 10)},
		"endTime":   []string{strconv.FormatInt(endMs, 10)},
		"limit":     []string{strconv.Itoa(limit)},
	}
	var raw [][]any
	if err := f.rest.Request(ctx, "GET", klinesEndpoint(f.accountType), q, nil, false, &raw); err != nil {
		return nil, err
	}

	out := make([]domain.Kline, 0, len(raw))
	for _, row := range raw {
		if len(row) < 7 {
			continue
		}
		start := toInt64(row[0])
		out = append(out, domain.Kline{
			Exchange: domain.VenueBinance,
			Symbol:   symbol,
			Interval: interval,
			Open:     parseDecimalOrZero(toStr(row[1])),
			High:     parseDecimalOrZero(toStr(row[2])),
			Low:      parseDecimalOrZero(toStr(row[3])),
			Close:    parseDecimalOrZero(toStr(row[4])),
			Volume:   parseDecimalOrZero(toStr(row[5])),
			Start:    start,
			Ts:       toInt64(row[6]),
			Confirm:  true,
		})
	}
	return out, nil
}

func toStr(v any) string {
	s, _ := v.(string)
	return s
}

func toInt64(v any) int64 {
	f, ok := v.(float64)
	if !ok {
		return 0
	}
	return int64(f)
}
