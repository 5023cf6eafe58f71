// Command collector backfills historical klines through a venue's public
// connector (spec §4.6's RequestKlines pagination) and writes them as
// "klines/..." keys into the kv store chosen by cfg.Storage (SQLite or
// Redis). The trader process does not read these keys back.
package main

import (
	"context"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/lavumi/nexustrader/internal/bus"
	"github.com/lavumi/nexustrader/internal/cache/kvstore"
	"github.com/lavumi/nexustrader/internal/connector/public"
	"github.com/lavumi/nexustrader/internal/domain"
	"github.com/lavumi/nexustrader/internal/restclient"
	"github.com/lavumi/nexustrader/internal/venue/binance"
	"github.com/lavumi/nexustrader/internal/wsclient"
	"github.com/lavumi/nexustrader/pkg/config"
)

func main() {
	log := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

	cfg, err := config.Load(".keys/.secrets.toml")
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	creds := cfg.Venue("BINANCE")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open kv store")
	}
	defer store.Close()

	restBaseURL := "https://api.binance.com"
	if creds.Testnet {
		restBaseURL = "https://testnet.binance.vision"
	}
	restClient := restclient.New(restBaseURL, creds.APIKey, creds.Secret, "X-MBX-APIKEY", 10*time.Second, log)
	fetcher := binance.NewKlineFetcher(restClient, binance.AccountSpot)

	messageBus := bus.New(log)
	ws := wsclient.New(wsclient.Config{URL: "wss://stream.binance.com:9443/stream"}, log, nil)
	decoder := binance.NewPublicDecoder("")
	conn := public.New(log, domain.VenueBinance, ws, decoder, fetcher, messageBus)

	interval := "1m"
	end := time.Now().UnixMilli()
	start := end - int64(24*time.Hour/time.Millisecond)

	for _, symbol := range cfg.Symbols {
		klines, err := conn.RequestKlines(ctx, symbol, interval, start, end, 1000)
		if err != nil {
			log.Error().Err(err).Str("symbol", symbol).Msg("fetch klines failed")
			continue
		}
		if err := persist(ctx, store, symbol, interval, klines); err != nil {
			log.Error().Err(err).Str("symbol", symbol).Msg("persist klines failed")
			continue
		}
		log.Info().Str("symbol", symbol).Int("count", len(klines)).Msg("collected klines")
	}
}

// openStore picks the persistence backend named by cfg.Storage (spec §6),
// defaulting to SQLite when unset or unrecognized.
func openStore(cfg *config.Config) (kvstore.KvStore, error) {
	if strings.EqualFold(cfg.Storage, "REDIS") {
		return kvstore.NewRedisStore(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.DB, cfg.Redis.Password), nil
	}
	return kvstore.NewSQLiteStore(cfg.SQLitePath)
}

func persist(ctx context.Context, store kvstore.KvStore, symbol, interval string, klines []domain.Kline) error {
	for _, k := range klines {
		raw, err := json.Marshal(k)
		if err != nil {
			return err
		}
		key := "klines/" + symbol + "/" + interval + "/" + strconv.FormatInt(k.Start, 10)
		if err := store.Set(ctx, key, raw); err != nil {
			return err
		}
	}
	return nil
}
