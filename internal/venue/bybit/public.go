package bybit

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/lavumi/nexustrader/internal/domain"
	"github.com/lavumi/nexustrader/internal/restclient"
)

// PublicDecoder implements connector/public.Decoder for Bybit v5's
// tickers, publicTrade, and kline topic payloads.
type PublicDecoder struct {
	Symbol string // normalized symbol this decoder is bound to
}

func NewPublicDecoder(symbol string) *PublicDecoder { return &PublicDecoder{Symbol: symbol} }

// publicEnvelope wraps a public-topic push frame; Data is left raw since
// tickers carries one object while trade/kline carry an array.
type publicEnvelope struct {
	Topic string          `json:"topic"`
	Ts    int64           `json:"ts"`
	Data  json.RawMessage `json:"data"`
}

type tickerEvent struct {
	Bid1Price string `json:"bid1Price"`
	Bid1Size  string `json:"bid1Size"`
	Ask1Price string `json:"ask1Price"`
	Ask1Size  string `json:"ask1Size"`
}

func (d *PublicDecoder) DecodeBookL1(frame []byte) (*domain.BookL1, error) {
	var env publicEnvelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(env.Topic, "tickers") || len(env.Data) == 0 {
		return nil, nil
	}
	var t tickerEvent
	if err := json.Unmarshal(env.Data, &t); err != nil {
		return nil, err
	}
	if t.Bid1Price == "" || t.Ask1Price == "" {
		return nil, nil
	}
	return &domain.BookL1{
		Exchange: domain.VenueBybit,
		Symbol:   d.Symbol,
		Bid:      parseDecimalOrZero(t.Bid1Price),
		BidSize:  parseDecimalOrZero(t.Bid1Size),
		Ask:      parseDecimalOrZero(t.Ask1Price),
		AskSize:  parseDecimalOrZero(t.Ask1Size),
		Ts:       env.Ts,
	}, nil
}

type tradeEvent struct {
	Ts    int64  `json:"T"`
	Price string `json:"p"`
	Size  string `json:"v"`
}

func (d *PublicDecoder) DecodeTrade(frame []byte) (*domain.Trade, error) {
	var env publicEnvelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(env.Topic, "publicTrade") || len(env.Data) == 0 {
		return nil, nil
	}
	var trades []tradeEvent
	if err := json.Unmarshal(env.Data, &trades); err != nil || len(trades) == 0 {
		return nil, err
	}
	t := trades[0]
	return &domain.Trade{
		Exchange: domain.VenueBybit,
		Symbol:   d.Symbol,
		Price:    parseDecimalOrZero(t.Price),
		Size:     parseDecimalOrZero(t.Size),
		Ts:       t.Ts,
	}, nil
}

type klineEvent struct {
	Start    int64  `json:"start"`
	Interval string `json:"interval"`
	Open     string `json:"open"`
	High     string `json:"high"`
	Low      string `json:"low"`
	Close    string `json:"close"`
	Volume   string `json:"volume"`
	Confirm  bool   `json:"confirm"`
	Ts       int64  `json:"timestamp"`
}

func (d *PublicDecoder) DecodeKline(frame []byte) (*domain.Kline, error) {
	var env publicEnvelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(env.Topic, "kline") || len(env.Data) == 0 {
		return nil, nil
	}
	var klines []klineEvent
	if err := json.Unmarshal(env.Data, &klines); err != nil || len(klines) == 0 {
		return nil, err
	}
	k := klines[0]
	return &domain.Kline{
		Exchange: domain.VenueBybit,
		Symbol:   d.Symbol,
		Interval: k.Interval,
		Open:     parseDecimalOrZero(k.Open),
		High:     parseDecimalOrZero(k.High),
		Low:      parseDecimalOrZero(k.Low),
		Close:    parseDecimalOrZero(k.Close),
		Volume:   parseDecimalOrZero(k.Volume),
		Start:    k.Start,
		Ts:       k.Ts,
		Confirm:  k.Confirm,
	}, nil
}

func parseDecimalOrZero(s string) decimal.Decimal {
	dec, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return dec
}

// KlineFetcher implements connector/public.KlineFetcher against Bybit
// v5's GET /v5/market/kline, which returns newest-first like OKX.
type KlineFetcher struct {
	rest     *restclient.Client
	category string
}

func NewKlineFetcher(rest *restclient.Client, category string) *KlineFetcher {
	return &KlineFetcher{rest: rest, category: category}
}

func (f *KlineFetcher) FetchKlines(ctx context.Context, symbol, interval string, startMs, endMs int64, limit int) ([]domain.Kline, error) {
	q := url.Values{
		"category": []string{f.category},
		"symbol":   []string{symbol},
		"interval": []string{interval},
		"start":    []string{strconv.FormatInt(startMs, 10)},
		"end":      []string{strconv.FormatInt(endMs, 10)},
		"limit":    []string{strconv.Itoa(limit)},
	}
	var resp struct {
		Result struct {
			List [][]string `json:"list"`
		} `json:"result"`
	}
	if err := f.rest.Request(ctx, "GET", "/v5/market/kline", q, nil, false, &resp); err != nil {
		return nil, err
	}

	out := make([]domain.Kline, 0, len(resp.Result.List))
	for _, row := range resp.Result.List {
		if len(row) < 7 {
			continue
		}
		start, _ := strconv.ParseInt(row[0], 10, 64)
		out = append(out, domain.Kline{
			Exchange: domain.VenueBybit,
			Symbol:   symbol,
			Interval: interval,
			Open:     parseDecimalOrZero(row[1]),
			High:     parseDecimalOrZero(row[2]),
			Low:      parseDecimalOrZero(row[3]),
			Close:    parseDecimalOrZero(row[4]),
			Volume:   parseDecimalOrZero(row[5]),
			Start:    start,
			Ts:       start,
			Confirm:  true,
		})
	}
	return out, nil
}
