// Package config loads runtime configuration the way spec §6 describes:
// environment variables layered over a ".keys/.secrets.toml" file, via
// viper (the teacher's own ambient config collaborator, generalized from
// a single YAML file to env+secrets merging).
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// VenueCredentials holds one venue's API credentials and feature flags.
type VenueCredentials struct {
	APIKey         string `mapstructure:"api_key"`
	Secret         string `mapstructure:"secret"`
	Passphrase     string `mapstructure:"passphrase"` // OKX only
	Testnet        bool   `mapstructure:"testnet"`
	EnableRateLimit bool  `mapstructure:"enableRateLimit"`
}

// RedisConfig holds Redis connection fields.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
}

// EMSConfig holds cache sync/expiry tuning shared by every venue's EMS.
type EMSConfig struct {
	CacheSyncIntervalSec int `mapstructure:"cache_sync_interval"`
	CacheExpireTimeSec   int `mapstructure:"cache_expire_time"`
}

// Config is the assembled runtime configuration (spec §6).
type Config struct {
	ExchangeID string                      `mapstructure:"exchange_id"`
	Venues     map[string]VenueCredentials `mapstructure:"venues"`
	EMS        EMSConfig                   `mapstructure:"ems"`
	Storage    string                      `mapstructure:"storage"` // REDIS or SQLITE
	SQLitePath string                      `mapstructure:"sqlite_path"`
	Redis      RedisConfig                 `mapstructure:"redis"`
	Symbols    []string                    `mapstructure:"symbols"`
}

// Load reads configuration from secretsPath (a TOML file, conventionally
// ".keys/.secrets.toml") merged with environment variables, which always
// take precedence.
func Load(secretsPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(secretsPath)
	v.SetConfigType("toml")

	v.SetDefault("exchange_id", "BINANCE")
	v.SetDefault("storage", "SQLITE")
	v.SetDefault("sqlite_path", "nexustrader.db")
	v.SetDefault("ems.cache_sync_interval", 60)
	v.SetDefault("ems.cache_expire_time", 3600)
	v.SetDefault("redis.port", 6379)

	v.SetEnvPrefix("NEXUSTRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config %s: %w", secretsPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Venue returns the credentials for venueID, or zero-value if absent.
// Viper lowercases every key it reads from the TOML table, so lookups
// normalize to lower case regardless of how the venue id is cased on the
// wire (e.g. domain.VenueBinance is "BINANCE").
func (c *Config) Venue(venueID string) VenueCredentials {
	return c.Venues[strings.ToLower(venueID)]
}
