package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"cyclescan/internal/logging"
)

// Provider kinds accepted by provider.kind.
const (
	ProviderSmartAPI = "smartapi"
	ProviderAlpaca   = "alpaca"
	ProviderCSV      = "csv"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	SmartAPI  SmartAPIConfig  `mapstructure:"smartapi"`
	Alpaca    AlpacaConfig    `mapstructure:"alpaca"`
	CSV       CSVConfig       `mapstructure:"csv"`
	Scan      ScanConfig      `mapstructure:"scan"`
	Pacing    PacingConfig    `mapstructure:"pacing"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// RegistryConfig locates the instrument registry.
type RegistryConfig struct {
	Path      string `mapstructure:"path"`
	BatchSize int    `mapstructure:"batch_size"`
}

// ProviderConfig selects where price history comes from.
type ProviderConfig struct {
	Kind        string    `mapstructure:"kind"`
	HistoryFrom time.Time `mapstructure:"history_from"`
}

// SmartAPIConfig carries the brokerage endpoint and the externally issued session.
type SmartAPIConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Exchange       string        `mapstructure:"exchange"`
	Interval       string        `mapstructure:"interval"`
	APIKey         string        `mapstructure:"api_key"`
	ClientCode     string        `mapstructure:"client_code"`
	JWTToken       string        `mapstructure:"jwt_token"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// AlpacaConfig covers the Alpaca market data API.
type AlpacaConfig struct {
	APIKey     string `mapstructure:"api_key"`
	APISecret  string `mapstructure:"api_secret"`
	BaseURL    string `mapstructure:"base_url"`
	Feed       string `mapstructure:"feed"`
	Adjustment string `mapstructure:"adjustment"`
}

// CSVConfig points at a directory of <token>.csv files.
type CSVConfig struct {
	Dir string `mapstructure:"dir"`
}

// ScanConfig tunes cycle detection.
type ScanConfig struct {
	ThresholdPct float64 `mapstructure:"threshold_pct"`
	MinDays      int     `mapstructure:"min_days"`
	MaxDays      int     `mapstructure:"max_days"`
	Lookahead    int     `mapstructure:"lookahead"`
	Workers      int     `mapstructure:"workers"`
	Significance float64 `mapstructure:"significance"`
}

// Threshold returns the threshold as a decimal.
func (s ScanConfig) Threshold() decimal.Decimal {
	return decimal.NewFromFloat(s.ThresholdPct)
}

// PacingConfig spaces provider calls.
type PacingConfig struct {
	Delay time.Duration `mapstructure:"delay"`
	Burst int           `mapstructure:"burst"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	EnsureSchema    bool          `mapstructure:"ensure_schema"`
}

// SchedulerConfig governs periodic scans.
type SchedulerConfig struct {
	Cron            string `mapstructure:"cron"`
	Timezone        string `mapstructure:"timezone"`
	AdvisoryLockKey int64  `mapstructure:"advisory_lock_key"`
	RunOnStart      bool   `mapstructure:"run_on_start"`
}

// AlertingConfig defines scan summary routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	TopN     int            `mapstructure:"top_n"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	Dir       string `mapstructure:"dir"`
	MaxCycles int    `mapstructure:"max_cycles"`
}

// Load builds configuration from .env, file, environment, and defaults.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("CYCLESCAN")
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

// loadDotEnv populates the process environment from ./.env when present.
// Variables already set win.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
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
	v.SetDefault("app.name", "cyclescan")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("registry.path", "instruments.yaml")
	v.SetDefault("registry.batch_size", 40)

	v.SetDefault("provider.kind", ProviderSmartAPI)
	v.SetDefault("provider.history_from", "2000-01-01")

	v.SetDefault("smartapi.base_url", "https://apiconnect.angelbroking.com")
	v.SetDefault("smartapi.exchange", "NSE")
	v.SetDefault("smartapi.interval", "ONE_DAY")
	v.SetDefault("smartapi.request_timeout", "20s")
	v.SetDefault("smartapi.user_agent", "cyclescan/1.0")

	v.SetDefault("alpaca.feed", "iex")
	v.SetDefault("alpaca.adjustment", "split")

	v.SetDefault("csv.dir", "data")

	v.SetDefault("scan.threshold_pct", 30.0)
	v.SetDefault("scan.min_days", 30)
	v.SetDefault("scan.max_days", 45)
	v.SetDefault("scan.lookahead", 45)
	v.SetDefault("scan.workers", 1)
	v.SetDefault("scan.significance", 0.10)

	v.SetDefault("pacing.delay", "500ms")
	v.SetDefault("pacing.burst", 1)

	v.SetDefault("scheduler.cron", "30 16 * * 1-5")
	v.SetDefault("scheduler.timezone", "Asia/Kolkata")
	v.SetDefault("scheduler.advisory_lock_key", int64(0x6379636c))
	v.SetDefault("scheduler.run_on_start", false)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.top_n", 10)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.dir", ".")
	v.SetDefault("export.max_cycles", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.ensure_schema", true)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(time.DateOnly),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	switch c.Provider.Kind {
	case ProviderSmartAPI, ProviderAlpaca, ProviderCSV:
	default:
		return fmt.Errorf("provider.kind must be one of smartapi, alpaca, csv (got %q)", c.Provider.Kind)
	}
	if c.Registry.BatchSize <= 0 {
		return fmt.Errorf("registry.batch_size must be greater than zero")
	}
	if c.Scan.MinDays <= 0 || c.Scan.MaxDays < c.Scan.MinDays {
		return fmt.Errorf("scan.min_days/max_days must satisfy 0 < min_days <= max_days")
	}
	if c.Scan.Lookahead <= 0 {
		return fmt.Errorf("scan.lookahead must be greater than zero")
	}
	if c.Scan.Workers <= 0 {
		return fmt.Errorf("scan.workers must be greater than zero")
	}
	if c.Scan.Significance <= 0 || c.Scan.Significance >= 1 {
		return fmt.Errorf("scan.significance must be within (0, 1)")
	}
	if c.Pacing.Delay < 0 {
		return fmt.Errorf("pacing.delay cannot be negative")
	}
	if c.Export.MaxCycles <= 0 {
		return fmt.Errorf("export.max_cycles must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	return nil
}

// ResolveThreshold returns the CLI override when one was given, else the config
// default. Zero and negative overrides are valid thresholds.
func (c *Config) ResolveThreshold(override *float64) decimal.Decimal {
	if override != nil {
		return decimal.NewFromFloat(*override)
	}
	return c.Scan.Threshold()
}

// Location resolves scheduler.timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if c.Scheduler.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
