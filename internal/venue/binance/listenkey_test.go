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

func TestListenKeyAcquireReturnsKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v3/userDataStream", r.URL.Path)
		w.Write([]byte(`{"listenKey":"abc123"}`))
	}))
	defer srv.Close()

	rest := restclient.New(srv.URL, "key", "secret", "X-MBX-APIKEY", 2*time.Second, zerolog.Nop())
	lk := NewListenKeyClient(rest, AccountSpot)

	key, err := lk.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc123", key)
}

func TestListenKeyKeepaliveSendsPUTWithKey(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	rest := restclient.New(srv.URL, "key", "secret", "X-MBX-APIKEY", 2*time.Second, zerolog.Nop())
	lk := NewListenKeyClient(rest, AccountSpot)

	require.NoError(t, lk.Keepalive(context.Background(), "abc123"))
	assert.Contains(t, gotQuery, "listenKey=abc123")
}

func TestListenKeyIntervalIsUnderVenueTimeout(t *testing.T) {
	lk := NewListenKeyClient(nil, AccountSpot)
	assert.Equal(t, 25*time.Minute, lk.Interval())
	assert.Less(t, lk.Interval(), 30*time.Minute, "must refresh before Binance's 60-minute listen key expiry with margin")
}
