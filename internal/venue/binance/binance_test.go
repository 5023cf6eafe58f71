package binance

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavumi/nexustrader/internal/domain"
)

func TestParseSymbolSpot(t *testing.T) {
	c := New()
	id, err := c.ParseSymbol("BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", id)
}

func TestParseSymbolDerivative(t *testing.T) {
	c := New()
	id, err := c.ParseSymbol("BTCUSDT-PERP.BINANCE")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", id)
}

func TestFromVenueStatus(t *testing.T) {
	c := New()
	assert.Equal(t, domain.OrderStatusAccepted, c.FromVenueStatus("NEW"))
	assert.Equal(t, domain.OrderStatusPartiallyFilled, c.FromVenueStatus("PARTIALLY_FILLED"))
	assert.Equal(t, domain.OrderStatusFilled, c.FromVenueStatus("FILLED"))
	assert.Equal(t, domain.OrderStatusCanceled, c.FromVenueStatus("CANCELED"))
	assert.Equal(t, domain.OrderStatusFailed, c.FromVenueStatus("REJECTED"))
	assert.Equal(t, domain.OrderStatusPending, c.FromVenueStatus("SOMETHING_UNKNOWN"))
}

func TestSignQueryAppendsTimestampAndSignature(t *testing.T) {
	c := New()
	q := url.Values{"symbol": []string{"BTCUSDT"}}
	signed := c.SignQuery("supersecret", q, 1_700_000_000_000)

	parsed, err := url.ParseQuery(signed)
	require.NoError(t, err)
	assert.Equal(t, "1700000000000", parsed.Get("timestamp"))
	assert.NotEmpty(t, parsed.Get("signature"))

	// same inputs must be deterministic
	again := c.SignQuery("supersecret", url.Values{"symbol": []string{"BTCUSDT"}}, 1_700_000_000_000)
	parsedAgain, err := url.ParseQuery(again)
	require.NoError(t, err)
	assert.Equal(t, parsed.Get("signature"), parsedAgain.Get("signature"))
}

func TestDecodeOrderUpdateExecutionReport(t *testing.T) {
	c := New()
	frame := []byte(`{
		"e":"executionReport","E":1700000000000,"s":"BTCUSDT","c":"client-1",
		"S":"BUY","o":"LIMIT","f":"GTC","q":"1.00000000","p":"50000.00",
		"X":"PARTIALLY_FILLED","i":123456,"l":"0.5","z":"0.5","L":"50000.00",
		"n":"0.001","N":"BNB","T":1700000000500,"Z":"25000.00","R":false,"ps":"BOTH"
	}`)
	ou, err := c.DecodeOrderUpdate(frame)
	require.NoError(t, err)
	require.NotNil(t, ou)
	assert.Equal(t, "123456", ou.VenueOrderID)
	assert.Equal(t, "client-1", ou.ClientOrderID)
	assert.Equal(t, domain.OrderStatusPartiallyFilled, ou.Status)
	assert.Equal(t, "BNB", ou.FeeCurrency)
}

func TestDecodeOrderUpdateIgnoresUnrelatedEvents(t *testing.T) {
	c := New()
	ou, err := c.DecodeOrderUpdate([]byte(`{"e":"aggTrade"}`))
	require.NoError(t, err)
	assert.Nil(t, ou)
}

func TestDecodeBalanceUpdateSpot(t *testing.T) {
	c := New()
	frame := []byte(`{"e":"outboundAccountPosition","E":1700000000000,"B":[{"a":"USDT","f":"100.5","l":"0"}]}`)
	balances, err := c.DecodeBalanceUpdate(frame)
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.Equal(t, "USDT", balances[0].Asset)
	assert.Equal(t, "100.5", balances[0].Free)
}

func TestOrderEndpointPerAccountType(t *testing.T) {
	assert.Equal(t, "/api/v3/order", OrderEndpoint(AccountSpot))
	assert.Equal(t, "/fapi/v1/order", OrderEndpoint(AccountFutures))
	assert.Equal(t, "/dapi/v1/order", OrderEndpoint(AccountInverse))
}
