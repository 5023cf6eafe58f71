// Command trader runs the live runtime: connectors, cache, EMS, and a
// strategy host wired for every configured venue (Binance, OKX, Bybit)
// in parallel, matching the flow in spec §3-5.
package main

import (
	"context"
	"net/url"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/lavumi/nexustrader/internal/bus"
	"github.com/lavumi/nexustrader/internal/cache"
	"github.com/lavumi/nexustrader/internal/cache/kvstore"
	"github.com/lavumi/nexustrader/internal/clock"
	"github.com/lavumi/nexustrader/internal/connector/private"
	"github.com/lavumi/nexustrader/internal/connector/public"
	"github.com/lavumi/nexustrader/internal/domain"
	"github.com/lavumi/nexustrader/internal/ems"
	"github.com/lavumi/nexustrader/internal/market"
	"github.com/lavumi/nexustrader/internal/ratelimit"
	"github.com/lavumi/nexustrader/internal/registry"
	"github.com/lavumi/nexustrader/internal/restclient"
	"github.com/lavumi/nexustrader/internal/strategy"
	"github.com/lavumi/nexustrader/internal/strategy/examples"
	"github.com/lavumi/nexustrader/internal/task"
	"github.com/lavumi/nexustrader/internal/venue/binance"
	"github.com/lavumi/nexustrader/internal/venue/bybit"
	"github.com/lavumi/nexustrader/internal/venue/okx"
	"github.com/lavumi/nexustrader/internal/wsclient"
	"github.com/lavumi/nexustrader/pkg/config"
)

func main() {
	log := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

	cfg, err := config.Load(".keys/.secrets.toml")
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open kv store")
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mgr := task.New(ctx, log, 10*time.Second)

	messageBus := bus.New(log)
	orderCache := cache.New(log, store)
	orderCache.SetSyncInterval(time.Duration(cfg.EMS.CacheSyncIntervalSec) * time.Second)
	orderCache.SetExpireTime(time.Duration(cfg.EMS.CacheExpireTimeSec) * time.Second)

	if err := orderCache.Restore(ctx); err != nil {
		log.Fatal().Err(err).Msg("restore cache")
	}
	mgr.CreateTask("cache-sync", orderCache.RunSyncLoop)

	catalogue := market.New()
	binanceCreds := cfg.Venue("BINANCE")
	loader := binance.NewMarketLoader(binanceCreds.Testnet)
	if markets, err := loader.LoadSpotMarkets(ctx); err != nil {
		log.Warn().Err(err).Msg("load binance markets failed, continuing without precision metadata")
	} else {
		catalogue.Load(markets)
	}

	reg := registry.New(log)
	rl := ratelimit.New(10)

	wireBinance(ctx, mgr, log, cfg, catalogue, messageBus, orderCache, reg, rl)
	wireOKX(ctx, mgr, log, cfg, catalogue, messageBus, orderCache, reg, rl)
	wireBybit(ctx, mgr, log, cfg, catalogue, messageBus, orderCache, reg, rl)

	log.Info().Msg("nexustrader runtime started")
	mgr.WaitForever()
	log.Info().Msg("shutting down")
	mgr.Shutdown()
}

// openStore picks the persistence backend named by cfg.Storage (spec §6),
// defaulting to SQLite when unset or unrecognized.
func openStore(cfg *config.Config) (kvstore.KvStore, error) {
	if strings.EqualFold(cfg.Storage, "REDIS") {
		return kvstore.NewRedisStore(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.DB, cfg.Redis.Password), nil
	}
	return kvstore.NewSQLiteStore(cfg.SQLitePath)
}

// startEMSAndStrategy wires one venue's EMS and its RSI example strategy
// against an already-connected executor, then registers the EMS run loop
// with mgr. Every venue follows this same shape once its connectors exist.
func startEMSAndStrategy(mgr *task.Manager, log zerolog.Logger, v domain.Venue, accountKey string, executor ems.OrderExecutor, catalogue *market.Catalogue, messageBus *bus.Bus, orderCache *cache.Cache, symbol string) {
	executors := map[string]ems.OrderExecutor{accountKey: executor}
	priority := []string{accountKey}
	venueEMS := ems.New(log, v, executors, priority, catalogue, messageBus, orderCache)
	mgr.CreateTask(strings.ToLower(string(v))+"-ems", venueEMS.Run)

	rsi := examples.NewRSIStrategy(log, nil, v, symbol, decimal.NewFromFloat(0.001))
	host := strategy.New(log, messageBus, rsi, venueEMS)
	rsi.Host = host
	host.Subscribe()
}

func wireBinance(ctx context.Context, mgr *task.Manager, log zerolog.Logger, cfg *config.Config, catalogue *market.Catalogue, messageBus *bus.Bus, orderCache *cache.Cache, reg *registry.Registry, rl *ratelimit.Limiter) {
	creds := cfg.Venue("BINANCE")

	restBaseURL := "https://api.binance.com"
	if creds.Testnet {
		restBaseURL = "https://testnet.binance.vision"
	}
	restClient := restclient.New(restBaseURL, creds.APIKey, creds.Secret, "X-MBX-APIKEY", 10*time.Second, log)

	capability := binance.New()

	buildCreate := func(submit domain.OrderSubmit) private.RequestSpec {
		q := url.Values{
			"symbol":           []string{submit.Symbol},
			"side":             []string{capability.ToVenueSide(submit.Side)},
			"type":             []string{capability.ToVenueType(submit.Type)},
			"quantity":         []string{submit.Amount.String()},
			"newClientOrderId": []string{submit.UUID},
		}
		if submit.Type == domain.OrderTypeLimit {
			q.Set("price", submit.Price.String())
			q.Set("timeInForce", capability.ToVenueTIF(submit.TimeInForce))
		}
		return private.RequestSpec{Method: "POST", Path: binance.OrderEndpoint(binance.AccountSpot), Query: q, Signed: true}
	}
	buildCancel := func(submit domain.OrderSubmit) private.RequestSpec {
		q := url.Values{
			"symbol":            []string{submit.Symbol},
			"origClientOrderId": []string{submit.CancelOrderUUID},
		}
		return private.RequestSpec{Method: "DELETE", Path: binance.OrderEndpoint(binance.AccountSpot), Query: q, Signed: true}
	}

	listenKeyClient := binance.NewListenKeyClient(restClient, binance.AccountSpot)

	userDataWS := wsclient.New(wsclient.Config{
		URL:           "wss://stream.binance.com:9443/ws",
		PingPolicy:    wsclient.PingWhenIdle,
		SubscribeRate: 5,
	}, log, nil)

	privateConnector := private.New(
		log, domain.VenueBinance, string(binance.AccountSpot),
		userDataWS, restClient, capability, messageBus, orderCache, reg, rl,
		buildCreate, buildCancel,
		private.WithListenKey(listenKeyClient),
	)

	marketWS := wsclient.New(wsclient.Config{
		URL:           "wss://stream.binance.com:9443/stream",
		PingPolicy:    wsclient.PingWhenIdle,
		SubscribeRate: 5,
	}, log, nil)

	symbol := "BTC/USDT"
	venueSymbol, err := capability.ParseSymbol(symbol)
	if err != nil {
		log.Fatal().Err(err).Msg("parse binance symbol")
	}
	decoder := binance.NewPublicDecoder(symbol)
	fetcher := binance.NewKlineFetcher(restClient, binance.AccountSpot)
	publicConnector := public.New(log, domain.VenueBinance, marketWS, decoder, fetcher, messageBus)

	mgr.CreateTask("binance-market-ws", marketWS.Run)
	mgr.CreateTask("binance-private-ws", userDataWS.Run)
	mgr.CreateTask("binance-subscribe", func(ctx context.Context) error {
		streamName := venueSymbolLower(venueSymbol) + "@kline_1m"
		frame := []byte(`{"method":"SUBSCRIBE","params":["` + streamName + `"],"id":` + strconv.FormatInt(clock.NowMs(), 10) + `}`)
		return publicConnector.Subscribe(ctx, streamName, frame)
	})

	if err := privateConnector.Connect(ctx); err != nil {
		log.Warn().Err(err).Msg("binance private connector connect failed, continuing on public data only")
	}

	startEMSAndStrategy(mgr, log, domain.VenueBinance, string(binance.AccountSpot), privateConnector, catalogue, messageBus, orderCache, symbol)
}

func wireOKX(ctx context.Context, mgr *task.Manager, log zerolog.Logger, cfg *config.Config, catalogue *market.Catalogue, messageBus *bus.Bus, orderCache *cache.Cache, reg *registry.Registry, rl *ratelimit.Limiter) {
	creds := cfg.Venue("OKX")

	restBaseURL := "https://www.okx.com"
	restClient := restclient.New(restBaseURL, creds.APIKey, creds.Secret, "OK-ACCESS-KEY", 10*time.Second, log)

	capability := okx.New()

	buildCreate := func(submit domain.OrderSubmit) private.RequestSpec {
		q := url.Values{
			"instId":  []string{submit.Symbol},
			"tdMode":  []string{"cash"},
			"side":    []string{capability.ToVenueSide(submit.Side)},
			"ordType": []string{capability.ToVenueType(submit.Type)},
			"sz":      []string{submit.Amount.String()},
			"clOrdId": []string{submit.UUID},
		}
		if submit.Type == domain.OrderTypeLimit {
			q.Set("px", submit.Price.String())
		}
		return private.RequestSpec{Method: "POST", Path: okx.OrderEndpoint(), Query: q, Signed: true}
	}
	buildCancel := func(submit domain.OrderSubmit) private.RequestSpec {
		q := url.Values{
			"instId":  []string{submit.Symbol},
			"clOrdId": []string{submit.CancelOrderUUID},
		}
		return private.RequestSpec{Method: "POST", Path: okx.CancelEndpoint(), Query: q, Signed: true}
	}

	userDataWS := wsclient.New(wsclient.Config{
		URL:            "wss://ws.okx.com:8443/ws/v5/private",
		PingPolicy:     wsclient.PingWhenIdle,
		SubscribeRate:  5,
		AppPingPayload: []byte("ping"),
	}, log, nil)

	// OKX has no listen-key lease, so no WithListenKey option is passed
	// here. No login frame is sent on this private WS; okx.LoginSignature
	// computes the signature such a frame carries but nothing calls it.
	privateConnector := private.New(
		log, domain.VenueOKX, "LIVE",
		userDataWS, restClient, capability, messageBus, orderCache, reg, rl,
		buildCreate, buildCancel,
	)

	marketWS := wsclient.New(wsclient.Config{
		URL:            "wss://ws.okx.com:8443/ws/v5/public",
		PingPolicy:     wsclient.PingWhenIdle,
		SubscribeRate:  5,
		AppPingPayload: []byte("ping"),
	}, log, nil)

	symbol := "BTC/USDT"
	venueSymbol, err := capability.ParseSymbol(symbol)
	if err != nil {
		log.Fatal().Err(err).Msg("parse okx symbol")
	}
	decoder := okx.NewPublicDecoder(symbol, "1m")
	fetcher := okx.NewKlineFetcher(restClient)
	publicConnector := public.New(log, domain.VenueOKX, marketWS, decoder, fetcher, messageBus)

	mgr.CreateTask("okx-market-ws", marketWS.Run)
	mgr.CreateTask("okx-private-ws", userDataWS.Run)
	mgr.CreateTask("okx-subscribe", func(ctx context.Context) error {
		frame := []byte(`{"op":"subscribe","args":[{"channel":"candle1m","instId":"` + venueSymbol + `"}]}`)
		return publicConnector.Subscribe(ctx, "candle1m:"+venueSymbol, frame)
	})

	if err := privateConnector.Connect(ctx); err != nil {
		log.Warn().Err(err).Msg("okx private connector connect failed, continuing on public data only")
	}

	startEMSAndStrategy(mgr, log, domain.VenueOKX, "LIVE", privateConnector, catalogue, messageBus, orderCache, symbol)
}

func wireBybit(ctx context.Context, mgr *task.Manager, log zerolog.Logger, cfg *config.Config, catalogue *market.Catalogue, messageBus *bus.Bus, orderCache *cache.Cache, reg *registry.Registry, rl *ratelimit.Limiter) {
	creds := cfg.Venue("BYBIT")

	restBaseURL := "https://api.bybit.com"
	if creds.Testnet {
		restBaseURL = "https://api-testnet.bybit.com"
	}
	restClient := restclient.New(restBaseURL, creds.APIKey, creds.Secret, "X-BAPI-API-KEY", 10*time.Second, log)

	capability := bybit.New()

	buildCreate := func(submit domain.OrderSubmit) private.RequestSpec {
		q := url.Values{
			"category":    []string{string(bybit.AccountUnified)},
			"symbol":      []string{submit.Symbol},
			"side":        []string{capability.ToVenueSide(submit.Side)},
			"orderType":   []string{capability.ToVenueType(submit.Type)},
			"qty":         []string{submit.Amount.String()},
			"orderLinkId": []string{submit.UUID},
		}
		if submit.Type == domain.OrderTypeLimit {
			q.Set("price", submit.Price.String())
			q.Set("timeInForce", capability.ToVenueTIF(submit.TimeInForce))
		}
		return private.RequestSpec{Method: "POST", Path: bybit.OrderEndpoint(), Query: q, Signed: true}
	}
	buildCancel := func(submit domain.OrderSubmit) private.RequestSpec {
		q := url.Values{
			"category":    []string{string(bybit.AccountUnified)},
			"symbol":      []string{submit.Symbol},
			"orderLinkId": []string{submit.CancelOrderUUID},
		}
		return private.RequestSpec{Method: "POST", Path: bybit.CancelEndpoint(), Query: q, Signed: true}
	}

	userDataWS := wsclient.New(wsclient.Config{
		URL:           "wss://stream.bybit.com/v5/private",
		PingPolicy:    wsclient.PingWhenIdle,
		SubscribeRate: 5,
	}, log, nil)

	// Bybit has no leased listen key, so no WithListenKey option here. No
	// "auth" op frame is sent on this private WS.
	privateConnector := private.New(
		log, domain.VenueBybit, string(bybit.AccountUnified),
		userDataWS, restClient, capability, messageBus, orderCache, reg, rl,
		buildCreate, buildCancel,
	)

	marketWS := wsclient.New(wsclient.Config{
		URL:           "wss://stream.bybit.com/v5/public/spot",
		PingPolicy:    wsclient.PingWhenIdle,
		SubscribeRate: 5,
	}, log, nil)

	symbol := "BTC/USDT"
	venueSymbol, err := capability.ParseSymbol(symbol)
	if err != nil {
		log.Fatal().Err(err).Msg("parse bybit symbol")
	}
	decoder := bybit.NewPublicDecoder(symbol)
	fetcher := bybit.NewKlineFetcher(restClient, string(bybit.AccountUnified))
	publicConnector := public.New(log, domain.VenueBybit, marketWS, decoder, fetcher, messageBus)

	mgr.CreateTask("bybit-market-ws", marketWS.Run)
	mgr.CreateTask("bybit-private-ws", userDataWS.Run)
	mgr.CreateTask("bybit-subscribe", func(ctx context.Context) error {
		topic := "kline.1." + venueSymbol
		frame := []byte(`{"op":"subscribe","args":["` + topic + `"]}`)
		return publicConnector.Subscribe(ctx, topic, frame)
	})

	if err := privateConnector.Connect(ctx); err != nil {
		log.Warn().Err(err).Msg("bybit private connector connect failed, continuing on public data only")
	}

	startEMSAndStrategy(mgr, log, domain.VenueBybit, string(bybit.AccountUnified), privateConnector, catalogue, messageBus, orderCache, symbol)
}

func venueSymbolLower(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
