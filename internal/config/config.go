package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/newthinker/trailsim/internal/collector"
	"github.com/newthinker/trailsim/internal/core"
	"github.com/newthinker/trailsim/internal/simulator"
	"github.com/newthinker/trailsim/internal/storage/archive"
	"github.com/spf13/viper"
)

type Config struct {
	Simulation simulator.Params `mapstructure:"simulation"`
	Collector  CollectorConfig  `mapstructure:"collector"`
	Export     ExportConfig     `mapstructure:"export"`
	Server     ServerConfig     `mapstructure:"server"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Log        LogConfig        `mapstructure:"log"`
	Notify     NotifyConfig     `mapstructure:"notify"`
}

type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	APIKey      string `mapstructure:"api_key"`
	JobTTLHours int    `mapstructure:"job_ttl_hours"`
	MaxJobs     int    `mapstructure:"max_jobs"`
}

// CollectorConfig selects the market data provider
type CollectorConfig struct {
	Provider   string        `mapstructure:"provider"` // "yahoo", "eastmoney" or "csv"
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	BackoffMin time.Duration `mapstructure:"backoff_min"`
	BackoffMax time.Duration `mapstructure:"backoff_max"`
	CSVDir     string        `mapstructure:"csv_dir"`
	CachePath  string        `mapstructure:"cache_path"` // Empty disables the bar cache
}

// ExportConfig places exported artifacts
type ExportConfig struct {
	Type    string   `mapstructure:"type"` // "localfs" or "s3"
	Path    string   `mapstructure:"path"` // For localfs
	S3      S3Config `mapstructure:"s3"`   // For S3
	Formats []string `mapstructure:"formats"`
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// NotifyConfig lists endpoints told about finished simulations
type NotifyConfig struct {
	Webhook WebhookConfig `mapstructure:"webhook"`
}

// WebhookConfig enables the webhook notifier when URL is set
type WebhookConfig struct {
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
}

// LogConfig overrides the logger level.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from file over Defaults. An empty path loads defaults and
// environment overrides only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Defaults())

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every default key so environment overrides apply even when the
// file omits a section.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("simulation.buy_pct", d.Simulation.BuyPct)
	v.SetDefault("simulation.sell_pct", d.Simulation.SellPct)
	v.SetDefault("simulation.initial_capital", d.Simulation.InitialCapital)

	v.SetDefault("collector.provider", d.Collector.Provider)
	v.SetDefault("collector.base_url", d.Collector.BaseURL)
	v.SetDefault("collector.timeout", d.Collector.Timeout)
	v.SetDefault("collector.max_retries", d.Collector.MaxRetries)
	v.SetDefault("collector.backoff_min", d.Collector.BackoffMin)
	v.SetDefault("collector.backoff_max", d.Collector.BackoffMax)
	v.SetDefault("collector.csv_dir", d.Collector.CSVDir)
	v.SetDefault("collector.cache_path", d.Collector.CachePath)

	v.SetDefault("export.type", d.Export.Type)
	v.SetDefault("export.path", d.Export.Path)
	v.SetDefault("export.formats", d.Export.Formats)
	v.SetDefault("export.s3.bucket", d.Export.S3.Bucket)
	v.SetDefault("export.s3.endpoint", d.Export.S3.Endpoint)
	v.SetDefault("export.s3.region", d.Export.S3.Region)
	v.SetDefault("export.s3.access_key", d.Export.S3.AccessKey)
	v.SetDefault("export.s3.secret_key", d.Export.S3.SecretKey)
	v.SetDefault("export.s3.prefix", d.Export.S3.Prefix)

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.api_key", d.Server.APIKey)
	v.SetDefault("server.job_ttl_hours", d.Server.JobTTLHours)
	v.SetDefault("server.max_jobs", d.Server.MaxJobs)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)

	v.SetDefault("log.level", d.Log.Level)

	v.SetDefault("notify.webhook.url", d.Notify.Webhook.URL)
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	cc := collector.DefaultConfig()
	return &Config{
		Simulation: simulator.DefaultParams(),
		Collector: CollectorConfig{
			Provider:   "yahoo",
			Timeout:    cc.Timeout,
			MaxRetries: cc.MaxRetries,
			BackoffMin: cc.BackoffMin,
			BackoffMax: cc.BackoffMax,
		},
		Export: ExportConfig{
			Type:    "localfs",
			Path:    "./out",
			Formats: []string{"xlsx", "txt"},
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			JobTTLHours: 1,
			MaxJobs:     100,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.JobTTLHours < 0 || c.Server.MaxJobs < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("job_ttl_hours and max_jobs cannot be negative"))
	}

	if err := c.Simulation.Validate(); err != nil {
		return core.WrapError(core.ErrConfigInvalid, err)
	}

	switch c.Collector.Provider {
	case "yahoo", "eastmoney":
	case "csv":
		if c.Collector.CSVDir == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("collector.csv_dir required when provider is csv"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown collector provider %q", c.Collector.Provider))
	}
	if c.Collector.MaxRetries < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("max_retries cannot be negative, got %d", c.Collector.MaxRetries))
	}
	if c.Collector.BackoffMin > 0 && c.Collector.BackoffMax > 0 && c.Collector.BackoffMin > c.Collector.BackoffMax {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("backoff_min %s exceeds backoff_max %s", c.Collector.BackoffMin, c.Collector.BackoffMax))
	}

	switch c.Export.Type {
	case "localfs":
		if c.Export.Path == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("export.path required when type is localfs"))
		}
	case "s3":
		if c.Export.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("export.s3.bucket required when type is s3"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown export type %q", c.Export.Type))
	}
	for _, f := range c.Export.Formats {
		switch strings.ToLower(f) {
		case "xlsx", "csv", "txt":
		default:
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown export format %q", f))
		}
	}

	return nil
}

// CollectorSettings converts the collector section for collector constructors
func (c *Config) CollectorSettings() collector.Config {
	return collector.Config{
		BaseURL:    c.Collector.BaseURL,
		Timeout:    c.Collector.Timeout,
		MaxRetries: c.Collector.MaxRetries,
		BackoffMin: c.Collector.BackoffMin,
		BackoffMax: c.Collector.BackoffMax,
		Dir:        c.Collector.CSVDir,
	}
}

// ArchiveSettings converts the export section for archive.New
func (c *Config) ArchiveSettings() archive.Config {
	return archive.Config{
		Type: c.Export.Type,
		Path: c.Export.Path,
		S3: archive.S3Config{
			Bucket:    c.Export.S3.Bucket,
			Endpoint:  c.Export.S3.Endpoint,
			Region:    c.Export.S3.Region,
			AccessKey: c.Export.S3.AccessKey,
			SecretKey: c.Export.S3.SecretKey,
			Prefix:    c.Export.S3.Prefix,
		},
	}
}
