package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"robo-offer-alerts/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App     AppConfig      `mapstructure:"app"`
	Logging logging.Config `mapstructure:"logging"`
	Relays  RelayConfig    `mapstructure:"relays"`
	Market  MarketConfig   `mapstructure:"market"`
	Filter  FilterConfig   `mapstructure:"filter"`
	Window  WindowConfig   `mapstructure:"window"`
	Dedup   DedupConfig    `mapstructure:"dedup"`
	Notify  NotifyConfig   `mapstructure:"notify"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// RelayConfig lists the Nostr relay endpoints to aggregate over.
type RelayConfig struct {
	Addresses    []string      `mapstructure:"addresses"`
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
}

// MarketConfig pins the server-side order query: event kind plus the
// tag values every returned event must match.
type MarketConfig struct {
	EventKind int    `mapstructure:"event_kind"`
	Currency  string `mapstructure:"currency"`
	Status    string `mapstructure:"status"`
	Source    string `mapstructure:"source"`
}

// FilterConfig holds the client-side acceptance thresholds.
type FilterConfig struct {
	MaxPremium float64 `mapstructure:"max_premium"`
}

// WindowConfig governs the trailing query window.
type WindowConfig struct {
	Lookback time.Duration `mapstructure:"lookback"`
}

// DedupConfig locates the persisted notification ledger.
type DedupConfig struct {
	Path string `mapstructure:"path"`
}

// NotifyConfig routes alerts to an ntfy-compatible endpoint.
type NotifyConfig struct {
	URL     string        `mapstructure:"url"`
	Title   string        `mapstructure:"title"`
	Tag     string        `mapstructure:"tag"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ROBOWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "robowatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("relays.addresses", []string{
		"wss://nostr.satstralia.com",
		"wss://relay.damus.io",
		"wss://nos.lol",
	})
	v.SetDefault("relays.query_timeout", "30s")

	v.SetDefault("market.event_kind", 38383)
	v.SetDefault("market.currency", "BRL")
	v.SetDefault("market.status", "pending")
	v.SetDefault("market.source", "robosats")

	v.SetDefault("filter.max_premium", 2.0)

	v.SetDefault("window.lookback", "360h")

	v.SetDefault("dedup.path", "robowatcher-seen.json")

	v.SetDefault("notify.title", "Nova ordem de venda no RoboSats")
	v.SetDefault("notify.tag", "robot")
	v.SetDefault("notify.timeout", "10s")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if len(c.Relays.Addresses) == 0 {
		return fmt.Errorf("relays.addresses must list at least one relay")
	}
	if c.Market.EventKind <= 0 {
		return fmt.Errorf("market.event_kind must be greater than zero")
	}
	if c.Market.Currency == "" {
		return fmt.Errorf("market.currency must be set")
	}
	if c.Filter.MaxPremium < 0 {
		return fmt.Errorf("filter.max_premium cannot be negative")
	}
	if c.Window.Lookback <= 0 {
		return fmt.Errorf("window.lookback must be greater than zero")
	}
	if c.Dedup.Path == "" {
		return fmt.Errorf("dedup.path must be set")
	}
	return nil
}

// RequireNotifyURL rejects configurations that cannot deliver alerts.
// Commands that never notify (scan) skip this check.
func (c *Config) RequireNotifyURL() error {
	if c.Notify.URL == "" {
		return fmt.Errorf("notify.url 必须配置")
	}
	return nil
}
