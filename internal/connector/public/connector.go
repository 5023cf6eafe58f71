// Package public implements the per-(venue, account_type) public
// connector from spec §4.6: market data subscription/decoding/publish,
// plus a synchronous historical-candle paginator.
package public

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/lavumi/nexustrader/internal/bus"
	"github.com/lavumi/nexustrader/internal/domain"
	"github.com/lavumi/nexustrader/internal/wsclient"
)

// Decoder turns one raw WS frame into zero or more normalized market-data
// events; a venue's public connector wiring supplies the concrete parser.
type Decoder interface {
	DecodeBookL1(frame []byte) (*domain.BookL1, error)
	DecodeTrade(frame []byte) (*domain.Trade, error)
	DecodeKline(frame []byte) (*domain.Kline, error)
}

// KlineFetcher performs one paginated REST call for historical candles.
// A venue implements this with its own klines endpoint and response
// shape; Connector only owns the walk-forward loop.
type KlineFetcher interface {
	FetchKlines(ctx context.Context, symbol, interval string, startMs, endMs int64, limit int) ([]domain.Kline, error)
}

// Connector is one public market-data connection to a single
// (venue, account_type) pair. Per spec §4.6 it must not share its WS
// transport across threads; callers own exactly one goroutine per
// Connector.
type Connector struct {
	log zerolog.Logger

	Venue domain.Venue

	ws      *wsclient.Client
	decoder Decoder
	fetcher KlineFetcher
	bus     *bus.Bus
}

func New(log zerolog.Logger, v domain.Venue, ws *wsclient.Client, decoder Decoder, fetcher KlineFetcher, b *bus.Bus) *Connector {
	c := &Connector{
		log:     log.With().Str("component", "public_connector").Str("venue", string(v)).Logger(),
		Venue:   v,
		ws:      ws,
		decoder: decoder,
		fetcher: fetcher,
		bus:     b,
	}
	ws.SetHandler(c.handleFrame)
	return c
}

func (c *Connector) handleFrame(frame []byte) {
	if book, err := c.decoder.DecodeBookL1(frame); err != nil {
		c.log.Debug().Err(err).Msg("decode bookl1 failed")
	} else if book != nil {
		c.bus.Publish(bus.TopicBookL1, book)
	}

	if trade, err := c.decoder.DecodeTrade(frame); err != nil {
		c.log.Debug().Err(err).Msg("decode trade failed")
	} else if trade != nil {
		c.bus.Publish(bus.TopicTrade, trade)
	}

	if kline, err := c.decoder.DecodeKline(frame); err != nil {
		c.log.Debug().Err(err).Msg("decode kline failed")
	} else if kline != nil {
		c.bus.Publish(bus.TopicKline, kline)
	}
}

// Subscribe remembers and subscribes channel, replaying it on reconnect.
func (c *Connector) Subscribe(ctx context.Context, channel string, frame []byte) error {
	return c.ws.Subscribe(ctx, channel, frame)
}

// RequestKlines paginates historical candles by walking forward in
// batches, per spec §4.6: stop when a batch is short of limit (reached
// the live edge) or the next cursor would exceed endMs.
func (c *Connector) RequestKlines(ctx context.Context, symbol, interval string, startMs, endMs int64, limit int) ([]domain.Kline, error) {
	var out []domain.Kline
	cursor := startMs

	for {
		batch, err := c.fetcher.FetchKlines(ctx, symbol, interval, cursor, endMs, limit)
		if err != nil {
			return out, err
		}
		if len(batch) == 0 {
			return out, nil
		}
		out = append(out, batch...)

		nextStart := batch[len(batch)-1].Start + 1
		if len(batch) < limit || nextStart > endMs {
			return out, nil
		}
		cursor = nextStart

		select {
		case <-ctx.Done():
			return out, ctx.Err()
		default:
		}
	}
}
