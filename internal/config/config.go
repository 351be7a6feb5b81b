package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Meta     MetaConfig     `yaml:"meta" mapstructure:"meta"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Throttle ThrottleConfig `yaml:"throttle" mapstructure:"throttle"`
	Insights InsightsConfig `yaml:"insights" mapstructure:"insights"`
	Scorer   ScorerConfig   `yaml:"scorer" mapstructure:"scorer"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Webhook  WebhookConfig  `yaml:"webhook" mapstructure:"webhook"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// MetaConfig holds upstream ads API credentials and endpoint settings.
type MetaConfig struct {
	AccessToken string `yaml:"access_token" mapstructure:"access_token"`
	AccountID   string `yaml:"account_id" mapstructure:"account_id"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	APIVersion  string `yaml:"api_version" mapstructure:"api_version"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// CacheConfig configures the response cache and its disk snapshot.
type CacheConfig struct {
	Path          string `yaml:"path" mapstructure:"path"`
	SnapshotEvery int    `yaml:"snapshot_every" mapstructure:"snapshot_every"`

	// Per-category TTLs in minutes.
	AccountTTLMins   int `yaml:"account_ttl_mins" mapstructure:"account_ttl_mins"`
	AdListTTLMins    int `yaml:"ad_list_ttl_mins" mapstructure:"ad_list_ttl_mins"`
	InsightsTTLMins  int `yaml:"insights_ttl_mins" mapstructure:"insights_ttl_mins"`
	TodayTTLMins     int `yaml:"today_ttl_mins" mapstructure:"today_ttl_mins"`
	CreativeTTLMins  int `yaml:"creative_ttl_mins" mapstructure:"creative_ttl_mins"`
	CampaignsTTLMins int `yaml:"campaigns_ttl_mins" mapstructure:"campaigns_ttl_mins"`
	DefaultTTLMins   int `yaml:"default_ttl_mins" mapstructure:"default_ttl_mins"`
}

// ThrottleConfig configures outbound request pacing.
type ThrottleConfig struct {
	RequestDelayMS       int `yaml:"request_delay_ms" mapstructure:"request_delay_ms"`
	RateLimitBackoffSecs int `yaml:"rate_limit_backoff_secs" mapstructure:"rate_limit_backoff_secs"`
}

// InsightsConfig configures the resolution strategies and fallback allocator.
type InsightsConfig struct {
	BatchSize            int     `yaml:"batch_size" mapstructure:"batch_size"`
	StaggerMS            int     `yaml:"stagger_ms" mapstructure:"stagger_ms"`
	DefaultPurchaseValue float64 `yaml:"default_purchase_value" mapstructure:"default_purchase_value"`
}

// ScorerConfig configures performance scoring.
type ScorerConfig struct {
	WeightsPath string `yaml:"weights_path" mapstructure:"weights_path"`
}

// StoreConfig configures the conversion store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the dashboard API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// WebhookConfig configures the order-event receiver.
type WebhookConfig struct {
	Port   int    `yaml:"port" mapstructure:"port"`
	Secret string `yaml:"secret" mapstructure:"secret"`
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
	v.SetEnvPrefix("ADPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. The credential keys get empty defaults so AutomaticEnv can
	// populate them: viper only unmarshals keys it knows about.
	v.SetDefault("meta.access_token", "")
	v.SetDefault("meta.account_id", "")
	v.SetDefault("meta.base_url", "https://graph.facebook.com")
	v.SetDefault("meta.api_version", "v21.0")
	v.SetDefault("meta.timeout_secs", 30)
	v.SetDefault("cache.path", "cache.json")
	v.SetDefault("cache.snapshot_every", 10)
	v.SetDefault("cache.account_ttl_mins", 10)
	v.SetDefault("cache.ad_list_ttl_mins", 5)
	v.SetDefault("cache.insights_ttl_mins", 5)
	v.SetDefault("cache.today_ttl_mins", 2)
	v.SetDefault("cache.creative_ttl_mins", 30)
	v.SetDefault("cache.campaigns_ttl_mins", 10)
	v.SetDefault("cache.default_ttl_mins", 5)
	v.SetDefault("throttle.request_delay_ms", 250)
	v.SetDefault("throttle.rate_limit_backoff_secs", 5)
	v.SetDefault("insights.batch_size", 3)
	v.SetDefault("insights.stagger_ms", 150)
	v.SetDefault("insights.default_purchase_value", 50.0)
	v.SetDefault("scorer.weights_path", "")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "adpulse.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("webhook.port", 8081)
	v.SetDefault("webhook.secret", "")
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

// Validate checks required credentials. Missing credentials are fatal at
// startup; the process must not serve without them.
func (c *Config) Validate() error {
	if c.Meta.AccessToken == "" {
		return eris.New("config: meta.access_token is required")
	}
	if c.Meta.AccountID == "" {
		return eris.New("config: meta.account_id is required")
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
