package bybit

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavumi/nexustrader/internal/domain"
)

func TestParseSymbol(t *testing.T) {
	c := New()
	sym, err := c.ParseSymbol("BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", sym)

	sym, err = c.ParseSymbol("BTCUSDT-PERP.BYBIT")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", sym)
}

func TestToVenueSideTypeTIF(t *testing.T) {
	c := New()
	assert.Equal(t, "Buy", c.ToVenueSide(domain.OrderSideBuy))
	assert.Equal(t, "Sell", c.ToVenueSide(domain.OrderSideSell))
	assert.Equal(t, "Market", c.ToVenueType(domain.OrderTypeMarket))
	assert.Equal(t, "Limit", c.ToVenueType(domain.OrderTypeLimit))
	assert.Equal(t, "IOC", c.ToVenueTIF(domain.TimeInForceIOC))
	assert.Equal(t, "GTC", c.ToVenueTIF(domain.TimeInForceGTC))
}

func TestFromVenueStatus(t *testing.T) {
	c := New()
	assert.Equal(t, domain.OrderStatusAccepted, c.FromVenueStatus("New"))
	assert.Equal(t, domain.OrderStatusPartiallyFilled, c.FromVenueStatus("PartiallyFilled"))
	assert.Equal(t, domain.OrderStatusFilled, c.FromVenueStatus("Filled"))
	assert.Equal(t, domain.OrderStatusCanceled, c.FromVenueStatus("Cancelled"))
	assert.Equal(t, domain.OrderStatusFailed, c.FromVenueStatus("Rejected"))
}

func TestDecodeOrderUpdateHedgeModePositionIdx(t *testing.T) {
	c := New()
	frame := []byte(`{"topic":"order","data":[{
		"orderId":"777","orderLinkId":"client-5","symbol":"BTCUSDT","side":"Buy",
		"orderType":"Limit","timeInForce":"gtc","qty":"1","price":"50000",
		"cumExecQty":"0.5","cumExecValue":"25000","avgPrice":"50000",
		"orderStatus":"PartiallyFilled","reduceOnly":false,"positionIdx":1,
		"updatedTime":"1700000000000"
	}]}`)
	ou, err := c.DecodeOrderUpdate(frame)
	require.NoError(t, err)
	require.NotNil(t, ou)
	assert.Equal(t, "777", ou.VenueOrderID)
	assert.Equal(t, domain.PositionSideLong, ou.PositionSide)
	assert.Equal(t, domain.OrderStatusPartiallyFilled, ou.Status)
}

func TestDecodeOrderUpdateIgnoresOtherTopics(t *testing.T) {
	c := New()
	ou, err := c.DecodeOrderUpdate([]byte(`{"topic":"wallet","data":[{}]}`))
	require.NoError(t, err)
	assert.Nil(t, ou)
}

func TestSignQueryDeterministicAndAppendsSign(t *testing.T) {
	c := New()
	q := url.Values{"api_key": []string{"key1"}, "recv_window": []string{"5000"}, "symbol": []string{"BTCUSDT"}}
	signed := c.SignQuery("secret", q, 1_700_000_000_000)

	parsed, err := url.ParseQuery(signed)
	require.NoError(t, err)
	assert.NotEmpty(t, parsed.Get("sign"))

	again := c.SignQuery("secret", url.Values{"api_key": []string{"key1"}, "recv_window": []string{"5000"}, "symbol": []string{"BTCUSDT"}}, 1_700_000_000_000)
	parsedAgain, err := url.ParseQuery(again)
	require.NoError(t, err)
	assert.Equal(t, parsed.Get("sign"), parsedAgain.Get("sign"))
}

func TestOrderAndCancelEndpoints(t *testing.T) {
	assert.Equal(t, "/v5/order/create", OrderEndpoint())
	assert.Equal(t, "/v5/order/cancel", CancelEndpoint())
}
