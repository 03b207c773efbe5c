// Package config loads engine configuration from YAML files and environment
// overrides. Hot paths read the immutable Config struct, never viper itself.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full engine configuration.
type Config struct {
	Environment string `mapstructure:"environment"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`

	HTTP struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"http"`

	Database struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"database"`

	Redis struct {
		Addr string `mapstructure:"addr"`
		DB   int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Kafka struct {
		Brokers         []string `mapstructure:"brokers"`
		SettlementTopic string   `mapstructure:"settlement_topic"`
	} `mapstructure:"kafka"`

	MarketData struct {
		BaseURL      string        `mapstructure:"base_url"`
		FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
		Validity     time.Duration `mapstructure:"validity"`
	} `mapstructure:"market_data"`

	Router struct {
		// IncrementalMaxDays bounds the incremental route; beyond it requests
		// go historical.
		IncrementalMaxDays int `mapstructure:"incremental_max_days"`
		// RealTimeMaxContracts bounds the inline route.
		RealTimeMaxContracts int `mapstructure:"real_time_max_contracts"`
		// HistoricalContracts forces the historical route at or above this
		// contract count regardless of range.
		HistoricalContracts int `mapstructure:"historical_contracts"`
		// Workers sizes the historical pool. Throughput degrades past
		// roughly 16-32 workers for this workload; tune, don't hardcode.
		Workers int `mapstructure:"workers"`
		// ChunkDays is the date-range chunk size for historical requests.
		ChunkDays int `mapstructure:"chunk_days"`
	} `mapstructure:"router"`

	Settlement struct {
		MaxPublishAttempts int           `mapstructure:"max_publish_attempts"`
		PublishBackoff     time.Duration `mapstructure:"publish_backoff"`
	} `mapstructure:"settlement"`

	Audit struct {
		ArchiveDir string `mapstructure:"archive_dir"`
	} `mapstructure:"audit"`

	Status struct {
		Retention time.Duration `mapstructure:"retention"`
	} `mapstructure:"status"`
}

// Load reads configuration from the given path (optional) plus SWAPFLOW_*
// environment variables, applies defaults and validates.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SWAPFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log.level", "info")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("redis.addr", "")
	v.SetDefault("kafka.settlement_topic", "settlement.instructions")
	v.SetDefault("market_data.base_url", "http://localhost:9090/marketdata")
	v.SetDefault("market_data.fetch_timeout", 5*time.Second)
	v.SetDefault("market_data.validity", 24*time.Hour)
	v.SetDefault("router.incremental_max_days", 30)
	v.SetDefault("router.real_time_max_contracts", 5)
	v.SetDefault("router.historical_contracts", 100)
	v.SetDefault("router.workers", 16)
	v.SetDefault("router.chunk_days", 30)
	v.SetDefault("settlement.max_publish_attempts", 5)
	v.SetDefault("settlement.publish_backoff", 200*time.Millisecond)
	v.SetDefault("audit.archive_dir", "data/audit")
	v.SetDefault("status.retention", 72*time.Hour)
}

func validate(cfg *Config) error {
	if cfg.Router.Workers < 1 {
		return fmt.Errorf("router.workers must be at least 1, got %d", cfg.Router.Workers)
	}
	if cfg.Router.ChunkDays < 1 {
		return fmt.Errorf("router.chunk_days must be at least 1, got %d", cfg.Router.ChunkDays)
	}
	if cfg.Router.IncrementalMaxDays < 2 {
		return fmt.Errorf("router.incremental_max_days must be at least 2, got %d", cfg.Router.IncrementalMaxDays)
	}
	if cfg.MarketData.Validity <= 0 {
		return fmt.Errorf("market_data.validity must be positive")
	}
	return nil
}
