package okx

import (
	"context"
	"net/url"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/lavumi/nexustrader/internal/domain"
	"github.com/lavumi/nexustrader/internal/restclient"
)

// PublicDecoder implements connector/public.Decoder for OKX's bbo-tbt,
// trades, and candle* channel payloads, grounded on
// original_source/nexustrader/exchange/okx/connector.py's
// _handle_bbo_tbt/_handle_trade/_handle_kline.
type PublicDecoder struct {
	Symbol   string // normalized symbol this decoder is bound to
	Interval string // bar size this decoder's candle channel is subscribed to
}

func NewPublicDecoder(symbol, interval string) *PublicDecoder {
	return &PublicDecoder{Symbol: symbol, Interval: interval}
}

type bboTbtLevel struct {
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
	Ts   string     `json:"ts"`
}

func (d *PublicDecoder) DecodeBookL1(frame []byte) (*domain.BookL1, error) {
	env, channel, err := decodeEnvelope(frame)
	if err != nil || channel != "bbo-tbt" || len(env.Data) == 0 {
		return nil, err
	}
	var lvl bboTbtLevel
	if err := json.Unmarshal(env.Data[0], &lvl); err != nil {
		return nil, err
	}
	if len(lvl.Bids) == 0 || len(lvl.Asks) == 0 {
		return nil, nil
	}
	ts, _ := strconv.ParseInt(lvl.Ts, 10, 64)
	return &domain.BookL1{
		Exchange: domain.VenueOKX,
		Symbol:   d.Symbol,
		Bid:      parseDecimalOrZero(lvl.Bids[0][0]),
		BidSize:  parseDecimalOrZero(lvl.Bids[0][1]),
		Ask:      parseDecimalOrZero(lvl.Asks[0][0]),
		AskSize:  parseDecimalOrZero(lvl.Asks[0][1]),
		Ts:       ts,
	}, nil
}

type tradeEvent struct {
	Px string `json:"px"`
	Sz string `json:"sz"`
	Ts string `json:"ts"`
}

func (d *PublicDecoder) DecodeTrade(frame []byte) (*domain.Trade, error) {
	env, channel, err := decodeEnvelope(frame)
	if err != nil || channel != "trades" || len(env.Data) == 0 {
		return nil, err
	}
	var t tradeEvent
	if err := json.Unmarshal(env.Data[0], &t); err != nil {
		return nil, err
	}
	ts, _ := strconv.ParseInt(t.Ts, 10, 64)
	return &domain.Trade{
		Exchange: domain.VenueOKX,
		Symbol:   d.Symbol,
		Price:    parseDecimalOrZero(t.Px),
		Size:     parseDecimalOrZero(t.Sz),
		Ts:       ts,
	}, nil
}

func (d *PublicDecoder) DecodeKline(frame []byte) (*domain.Kline, error) {
	env, channel, err := decodeEnvelope(frame)
	if err != nil || channel == "" || len(env.Data) == 0 {
		return nil, err
	}
	if len(channel) < 6 || channel[:6] != "candle" {
		return nil, nil
	}
	var row []string
	if err := json.Unmarshal(env.Data[0], &row); err != nil {
		return nil, err
	}
	return klineFromRow(d.Symbol, d.Interval, row)
}

// klineFromRow parses one OKX candle row: [ts, o, h, l, c, vol, volCcy,
// volCcyQuote, confirm].
func klineFromRow(symbol, interval string, row []string) (*domain.Kline, error) {
	if len(row) < 9 {
		return nil, nil
	}
	start, _ := strconv.ParseInt(row[0], 10, 64)
	return &domain.Kline{
		Exchange: domain.VenueOKX,
		Symbol:   symbol,
		Interval: interval,
		Open:     parseDecimalOrZero(row[1]),
		High:     parseDecimalOrZero(row[2]),
		Low:      parseDecimalOrZero(row[3]),
		Close:    parseDecimalOrZero(row[4]),
		Volume:   parseDecimalOrZero(row[5]),
		Start:    start,
		Ts:       start,
		Confirm:  row[8] != "0",
	}, nil
}

func parseDecimalOrZero(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// KlineFetcher implements connector/public.KlineFetcher against OKX's
// GET /api/v5/market/candles, which returns newest-first; grounded on
// _request_klines's "after"/"before" cursor pair in the ground truth.
type KlineFetcher struct {
	rest *restclient.Client
}

func NewKlineFetcher(rest *restclient.Client) *KlineFetcher {
	return &KlineFetcher{rest: rest}
}

func (f *KlineFetcher) FetchKlines(ctx context.Context, symbol, interval string, startMs, endMs int64, limit int) ([]domain.Kline, error) {
	q := url.Values{
		"instId": []string{symbol},
		"bar":    []string{interval},
		"before": []string{strconv.FormatInt(startMs, 10)},
		"after":  []string{strconv.FormatInt(endMs, 10)},
		"limit":  []string{strconv.Itoa(limit)},
	}
	var resp struct {
		Data [][]string `json:"data"`
	}
	if err := f.rest.Request(ctx, "GET", "/api/v5/market/candles", q, nil, false, &resp); err != nil {
		return nil, err
	}

	out := make([]domain.Kline, 0, len(resp.Data))
	for _, row := range resp.Data {
		k, err := klineFromRow(symbol, interval, row)
		if err != nil || k == nil {
			continue
		}
		k.Confirm = true
		out = append(out, *k)
	}
	return out, nil
}
