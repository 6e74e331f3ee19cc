package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Catalog    CatalogConfig    `yaml:"catalog" mapstructure:"catalog"`
	Scrape     ScrapeConfig     `yaml:"scrape" mapstructure:"scrape"`
	Export     ExportConfig     `yaml:"export" mapstructure:"export"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// CatalogConfig points the fetcher at a listing site.
type CatalogConfig struct {
	EntryURL  string `yaml:"entry_url" mapstructure:"entry_url"`
	PageURL   string `yaml:"page_url" mapstructure:"page_url"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`
}

// ScrapeConfig holds the default run parameters.
type ScrapeConfig struct {
	Pages         int     `yaml:"pages" mapstructure:"pages"`
	RateLimitSecs float64 `yaml:"rate_limit_secs" mapstructure:"rate_limit_secs"`
	MaxRetries    int     `yaml:"max_retries" mapstructure:"max_retries"`
}

// RateLimit returns the inter-request delay as a duration.
func (s ScrapeConfig) RateLimit() time.Duration {
	return time.Duration(s.RateLimitSecs * float64(time.Second))
}

// ExportConfig configures result file output.
type ExportConfig struct {
	Format string `yaml:"format" mapstructure:"format"`
	Dir    string `yaml:"dir" mapstructure:"dir"`
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP control surface.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	RequestsPerSec float64  `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MonitoringConfig configures run health alerts. Alerts are only sent
// when WebhookURL is set; a zero threshold disables that alert.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	EmptyRateThreshold   float64 `yaml:"empty_rate_threshold" mapstructure:"empty_rate_threshold"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PRICESPY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("catalog.entry_url", "https://books.toscrape.com/index.html")
	v.SetDefault("catalog.page_url", "https://books.toscrape.com/catalogue/page-%d.html")
	v.SetDefault("catalog.base_url", "https://books.toscrape.com/")
	v.SetDefault("catalog.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	v.SetDefault("scrape.pages", 5)
	v.SetDefault("scrape.rate_limit_secs", 0.5)
	v.SetDefault("scrape.max_retries", 3)
	v.SetDefault("export.format", "csv")
	v.SetDefault("export.dir", "results")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "pricespy.db")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.requests_per_sec", 10.0)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.empty_rate_threshold", 0.5)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "scrape":
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Server.RequestsPerSec <= 0 {
			errs = append(errs, "server.requests_per_sec must be > 0")
		}
	case "runs":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if mode != "runs" {
		if c.Scrape.MaxRetries < 1 {
			errs = append(errs, "scrape.max_retries must be >= 1")
		}
		if c.Scrape.RateLimitSecs < 0 {
			errs = append(errs, "scrape.rate_limit_secs must be >= 0")
		}
		if c.Export.Dir == "" {
			errs = append(errs, "export.dir is required")
		}
	}
	if c.Monitoring.FailureRateThreshold < 0 || c.Monitoring.FailureRateThreshold > 1 {
		errs = append(errs, "monitoring.failure_rate_threshold must be between 0 and 1")
	}
	if c.Monitoring.EmptyRateThreshold < 0 || c.Monitoring.EmptyRateThreshold > 1 {
		errs = append(errs, "monitoring.empty_rate_threshold must be between 0 and 1")
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: invalid for %s: %s", mode, strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
