package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavumi/nexustrader/internal/restclient"
)

func TestDecodeBookL1(t *testing.T) {
	d := NewPublicDecoder("BTC/USDT")
	frame := []byte(`{"s":"BTCUSDT","b":"49999.5","B":"1.2","a":"50000.5","A":"0.8"}`)

	book, err := d.DecodeBookL1(frame)
	require.NoError(t, err)
	require.NotNil(t, book)
	assert.Equal(t, "BTC/USDT", book.Symbol)
	assert.True(t, book.Bid.Equal(parseDecimalOrZero("49999.5")))
}

func TestDecodeBookL1IgnoresFrameMissingBid(t *testing.T) {
	d := NewPublicDecoder("BTC/USDT")
	book, err := d.DecodeBookL1([]byte(`{"s":"BTCUSDT"}`))
	require.NoError(t, err)
	assert.Nil(t, book)
}

func TestDecodeTradeOnlyMatchesAggTradeEvent(t *testing.T) {
	d := NewPublicDecoder("BTC/USDT")

	trade, err := d.DecodeTrade([]byte(`{"e":"aggTrade","E":1700000000000,"s":"BTCUSDT","p":"50000","q":"0.1"}`))
	require.NoError(t, err)
	require.NotNil(t, trade)
	assert.Equal(t, int64(1700000000000), trade.Ts)

	trade, err = d.DecodeTrade([]byte(`{"e":"trade"}`))
	require.NoError(t, err)
	assert.Nil(t, trade)
}

func TestDecodeKlineReportsConfirmedClose(t *testing.T) {
	d := NewPublicDecoder("BTC/USDT")
	frame := []byte(`{"e":"kline","E":1700000000000,"k":{"t":1700000000000,"i":"1m","o":"100","h":"101","l":"99","c":"100.5","v":"10","x":true}}`)

	k, err := d.DecodeKline(frame)
	require.NoError(t, err)
	require.NotNil(t, k)
	assert.True(t, k.Confirm)
	assert.Equal(t, "1m", k.Interval)
}

func TestFetchKlinesParsesHeterogeneousRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			[1700000000000,"100","101","99","100.5","10",1700000059999,"1000",5,"4","400","0"],
			[1700000060000,"100.5","102","100","101.5","12",1700000119999,"1200",6,"5","500","0"]
		]`))
	}))
	defer srv.Close()

	rest := restclient.New(srv.URL, "key", "secret", "X-MBX-APIKEY", 2*time.Second, zerolog.Nop())
	fetcher := NewKlineFetcher(rest, AccountSpot)

	klines, err := fetcher.FetchKlines(context.Background(), "BTCUSDT", "1m", 0, 200000, 2)
	require.NoError(t, err)
	require.Len(t, klines, 2)
	assert.Equal(t, int64(1700000000000), klines[0].Start)
	assert.True(t, klines[1].Close.Equal(parseDecimalOrZero("101.5")))
	assert.True(t, klines[0].Confirm)
}

func TestKlinesEndpointPerAccountType(t *testing.T) {
	assert.Equal(t, "/api/v3/klines", klinesEndpoint(AccountSpot))
	assert.Equal(t, "/fapi/v1/klines", klinesEndpoint(AccountFutures))
	assert.Equal(t, "/dapi/v1/klines", klinesEndpoint(AccountInverse))
}
