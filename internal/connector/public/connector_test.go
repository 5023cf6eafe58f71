package public

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavumi/nexustrader/internal/bus"
	"github.com/lavumi/nexustrader/internal/domain"
	"github.com/lavumi/nexustrader/internal/wsclient"
)

type fakeDecoder struct {
	book  *domain.BookL1
	trade *domain.Trade
	kline *domain.Kline
	err   error
}

func (f *fakeDecoder) DecodeBookL1(frame []byte) (*domain.BookL1, error) { return f.book, f.err }
func (f *fakeDecoder) DecodeTrade(frame []byte) (*domain.Trade, error)   { return f.trade, f.err }
func (f *fakeDecoder) DecodeKline(frame []byte) (*domain.Kline, error)   { return f.kline, f.err }

type pagedFetcher struct {
	pages [][]domain.Kline
	calls int
}

func (p *pagedFetcher) FetchKlines(ctx context.Context, symbol, interval string, startMs, endMs int64, limit int) ([]domain.Kline, error) {
	if p.calls >= len(p.pages) {
		return nil, nil
	}
	page := p.pages[p.calls]
	p.calls++
	return page, nil
}

func newKline(start int64) domain.Kline {
	return domain.Kline{Symbol: "BTCUSDT", Interval: "1m", Start: start, Close: decimal.NewFromInt(1)}
}

func newTestConnector(decoder Decoder, fetcher KlineFetcher) (*Connector, *bus.Bus) {
	b := bus.New(zerolog.Nop())
	ws := wsclient.New(wsclient.Config{URL: "ws://unused"}, zerolog.Nop(), nil)
	return New(zerolog.Nop(), domain.VenueBinance, ws, decoder, fetcher, b), b
}

func TestHandleFrameDispatchesDecodedEventsByKind(t *testing.T) {
	book := &domain.BookL1{Symbol: "BTCUSDT"}
	decoder := &fakeDecoder{book: book}
	conn, b := newTestConnector(decoder, nil)

	var received *domain.BookL1
	b.Subscribe(bus.TopicBookL1, func(msg any) { received = msg.(*domain.BookL1) })

	conn.handleFrame([]byte(`{}`))

	require.NotNil(t, received)
	assert.Equal(t, "BTCUSDT", received.Symbol)
}

func TestHandleFrameSkipsWhenDecoderReturnsNilWithoutError(t *testing.T) {
	decoder := &fakeDecoder{}
	conn, b := newTestConnector(decoder, nil)

	var calls int
	b.Subscribe(bus.TopicBookL1, func(msg any) { calls++ })
	b.Subscribe(bus.TopicTrade, func(msg any) { calls++ })
	b.Subscribe(bus.TopicKline, func(msg any) { calls++ })

	conn.handleFrame([]byte(`{}`))

	assert.Zero(t, calls)
}

func TestHandleFrameLogsAndContinuesOnDecodeError(t *testing.T) {
	decoder := &fakeDecoder{err: errors.New("boom")}
	conn, _ := newTestConnector(decoder, nil)

	assert.NotPanics(t, func() { conn.handleFrame([]byte(`{}`)) })
}

func TestRequestKlinesWalksForwardAcrossPages(t *testing.T) {
	fetcher := &pagedFetcher{pages: [][]domain.Kline{
		{newKline(0), newKline(60_000)},
		{newKline(120_000), newKline(180_000)},
	}}
	conn, _ := newTestConnector(&fakeDecoder{}, fetcher)

	out, err := conn.RequestKlines(context.Background(), "BTCUSDT", "1m", 0, 200_000, 2)
	require.NoError(t, err)
	require.Len(t, out, 4)
	assert.Equal(t, int64(0), out[0].Start)
	assert.Equal(t, int64(180_000), out[3].Start)
	assert.Equal(t, 2, fetcher.calls, "a full page must fetch the next page starting after the batch's last candle")
}

func TestRequestKlinesStopsOnShortBatch(t *testing.T) {
	fetcher := &pagedFetcher{pages: [][]domain.Kline{
		{newKline(0), newKline(60_000)},
	}}
	conn, _ := newTestConnector(&fakeDecoder{}, fetcher)

	out, err := conn.RequestKlines(context.Background(), "BTCUSDT", "1m", 0, 1_000_000, 10)
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, 1, fetcher.calls, "fewer rows than limit signals the live edge, must not request another page")
}

func TestRequestKlinesStopsWhenCursorWouldExceedEnd(t *testing.T) {
	fetcher := &pagedFetcher{pages: [][]domain.Kline{
		{newKline(0), newKline(60_000)},
		{newKline(120_000), newKline(180_000)},
	}}
	conn, _ := newTestConnector(&fakeDecoder{}, fetcher)

	out, err := conn.RequestKlines(context.Background(), "BTCUSDT", "1m", 0, 60_000, 2)
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, 1, fetcher.calls)
}
