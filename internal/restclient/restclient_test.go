package restclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavumi/nexustrader/internal/xerrors"
)

func TestSignIsDeterministicAndSecretSensitive(t *testing.T) {
	q := url.Values{"symbol": []string{"BTCUSDT"}, "timestamp": []string{"1700000000000"}}
	a := Sign("secret", q)
	b := Sign("secret", q)
	assert.Equal(t, a, b)

	other := Sign("different-secret", q)
	assert.NotEqual(t, a, other)
}

func TestSignedQueryAppendsTimestampAndSignature(t *testing.T) {
	c := New("http://unused", "key", "secret", "X-MBX-APIKEY", time.Second, zerolog.Nop())
	out := c.SignedQuery(url.Values{"symbol": []string{"BTCUSDT"}}, 1700000000000)

	assert.Contains(t, out, "timestamp=1700000000000")
	assert.Contains(t, out, "signature=")
}

func TestRequestSendsAPIKeyHeaderAndDecodesResult(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-MBX-APIKEY")
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "my-key", "secret", "X-MBX-APIKEY", 2*time.Second, zerolog.Nop())

	var out struct {
		Status string `json:"status"`
	}
	require.NoError(t, c.Request(context.Background(), "GET", "/ping", nil, nil, false, &out))
	assert.Equal(t, "my-key", gotHeader)
	assert.Equal(t, "ok", out.Status)
}

func TestRequestClassifiesStatusCodesIntoErrorTaxonomy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/client-error":
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"code":-1013}`))
		case "/server-error":
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`maintenance`))
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "key", "secret", "X-MBX-APIKEY", 2*time.Second, zerolog.Nop())

	err := c.Request(context.Background(), "GET", "/client-error", nil, nil, false, nil)
	require.Error(t, err)
	var clientErr *xerrors.ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, http.StatusBadRequest, clientErr.StatusCode)

	err = c.Request(context.Background(), "GET", "/server-error", nil, nil, false, nil)
	require.Error(t, err)
	var serverErr *xerrors.ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, http.StatusInternalServerError, serverErr.StatusCode)
}

func TestRequestSignsQueryWhenSignedIsTrue(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "key", "secret", "X-MBX-APIKEY", 2*time.Second, zerolog.Nop())
	require.NoError(t, c.Request(context.Background(), "GET", "/order", url.Values{"symbol": []string{"BTCUSDT"}}, nil, true, nil))

	assert.Contains(t, gotQuery, "symbol=BTCUSDT")
	assert.Contains(t, gotQuery, "signature=")
}
