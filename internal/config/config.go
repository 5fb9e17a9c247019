package config

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
	Anthropic    AnthropicConfig    `yaml:"anthropic" mapstructure:"anthropic"`
	Nest         NestConfig         `yaml:"nest" mapstructure:"nest"`
	Retry        RetryConfig        `yaml:"retry" mapstructure:"retry"`
	Prediction   PredictionConfig   `yaml:"prediction" mapstructure:"prediction"`
	Schedule     ScheduleConfig     `yaml:"schedule" mapstructure:"schedule"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Distribution DistributionConfig `yaml:"distribution" mapstructure:"distribution"`
	Company      CompanyConfig      `yaml:"company" mapstructure:"company"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings for notice extraction and
// bid autopsies.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	Model       string `yaml:"model" mapstructure:"model"`
	MaxTokens   int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// NestConfig configures the NeST OCDS release feed.
type NestConfig struct {
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	MaxPages      int     `yaml:"max_pages" mapstructure:"max_pages"`
}

// RetryConfig tunes retries for outbound HTTP calls.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
	FailureThreshold int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int     `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// PredictionConfig configures the tender prediction score.
type PredictionConfig struct {
	MinAwards int           `yaml:"min_awards" mapstructure:"min_awards"`
	Weights   WeightsConfig `yaml:"weights" mapstructure:"weights"`
}

// WeightsConfig holds the seven factor weights. They must sum to 1.
type WeightsConfig struct {
	Capability     float64 `yaml:"capability_match" mapstructure:"capability_match"`
	History        float64 `yaml:"historical_win_rate" mapstructure:"historical_win_rate"`
	BuyerFavor     float64 `yaml:"pe_favorability" mapstructure:"pe_favorability"`
	Price          float64 `yaml:"price_competitiveness" mapstructure:"price_competitiveness"`
	Density        float64 `yaml:"competitor_density" mapstructure:"competitor_density"`
	Compliance     float64 `yaml:"compliance_readiness" mapstructure:"compliance_readiness"`
	SeasonalTiming float64 `yaml:"seasonal_timing" mapstructure:"seasonal_timing"`
}

// Sum returns the total of all factor weights.
func (w WeightsConfig) Sum() float64 {
	return w.Capability + w.History + w.BuyerFavor + w.Price +
		w.Density + w.Compliance + w.SeasonalTiming
}

// ScheduleConfig configures watch mode.
type ScheduleConfig struct {
	IntervalHours int `yaml:"interval_hours" mapstructure:"interval_hours"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// DistributionConfig configures delivery of per-award messages to the
// downstream agents.
type DistributionConfig struct {
	WebhookURL  string `yaml:"webhook_url" mapstructure:"webhook_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// CompanyConfig points at the home company's profile used to score tenders.
type CompanyConfig struct {
	ProfilePath string `yaml:"profile_path" mapstructure:"profile_path"`
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
	v.SetEnvPrefix("POSTAWARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "tenderedge.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-opus-4-6")
	v.SetDefault("anthropic.max_tokens", 1500)
	v.SetDefault("anthropic.timeout_secs", 60)
	v.SetDefault("nest.base_url", "https://nest.go.tz/gateway/nest-data-portal-api/api")
	v.SetDefault("nest.timeout_secs", 30)
	v.SetDefault("nest.rate_per_second", 2.0)
	v.SetDefault("nest.max_pages", 500)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 30000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)
	v.SetDefault("retry.failure_threshold", 5)
	v.SetDefault("retry.reset_timeout_secs", 60)
	v.SetDefault("prediction.min_awards", 50)
	v.SetDefault("prediction.weights.capability_match", 0.25)
	v.SetDefault("prediction.weights.historical_win_rate", 0.20)
	v.SetDefault("prediction.weights.pe_favorability", 0.15)
	v.SetDefault("prediction.weights.price_competitiveness", 0.15)
	v.SetDefault("prediction.weights.competitor_density", 0.10)
	v.SetDefault("prediction.weights.compliance_readiness", 0.10)
	v.SetDefault("prediction.weights.seasonal_timing", 0.05)
	v.SetDefault("schedule.interval_hours", 6)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("distribution.webhook_url", "")
	v.SetDefault("distribution.timeout_secs", 10)
	v.SetDefault("company.profile_path", "")

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

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	var errs []string
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required for postgres")
	}
	if c.Prediction.MinAwards < 0 {
		errs = append(errs, "prediction.min_awards must not be negative")
	}
	if sum := c.Prediction.Weights.Sum(); math.Abs(sum-1) > 1e-6 {
		errs = append(errs, "prediction.weights must sum to 1")
	}
	if c.Schedule.IntervalHours <= 0 {
		errs = append(errs, "schedule.interval_hours must be positive")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Nest.RatePerSecond <= 0 {
		errs = append(errs, "nest.rate_per_second must be positive")
	}
	if len(errs) > 0 {
		return eris.Errorf("config: invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger configures the global zap logger based on config.
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
