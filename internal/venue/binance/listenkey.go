package binance

import (
	"context"
	"net/url"
	"time"

	"github.com/lavumi/nexustrader/internal/restclient"
)

// ListenKeyClient implements connector/private.ListenKeyClient for
// Binance's explicit listen-key lifecycle (spec §4.7 step 1): acquire via
// POST, keepalive via PUT every <=30 minutes.
type ListenKeyClient struct {
	rest        *restclient.Client
	accountType AccountType
}

func NewListenKeyClient(rest *restclient.Client, at AccountType) *ListenKeyClient {
	return &ListenKeyClient{rest: rest, accountType: at}
}

func (l *ListenKeyClient) Acquire(ctx context.Context) (string, error) {
	var resp struct {
		ListenKey string `json:"listenKey"`
	}
	if err := l.rest.Request(ctx, "POST", ListenKeyEndpoint(l.accountType), nil, nil, false, &resp); err != nil {
		return "", err
	}
	return resp.ListenKey, nil
}

func (l *ListenKeyClient) Keepalive(ctx context.Context, key string) error {
	q := url.Values{"listenKey": []string{key}}
	return l.rest.Request(ctx, "PUT", ListenKeyEndpoint(l.accountType), q, nil, false, nil)
}

func (l *ListenKeyClient) Interval() time.Duration { return 25 * time.Minute }
