package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"crm-alerts/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Engine    EngineConfig    `mapstructure:"engine"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	CRM       CRMConfig       `mapstructure:"crm"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SchedulerConfig governs evaluation cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
}

// EngineConfig collapses the alert engine tunables into one place.
type EngineConfig struct {
	MinInterval           time.Duration `mapstructure:"min_interval"`
	MaxAlerts             int           `mapstructure:"max_alerts"`
	MaxDealRiskCandidates int           `mapstructure:"max_deal_risk_candidates"`
	RevenueMilestones     []float64     `mapstructure:"revenue_milestones"`
	RevenueTarget         float64       `mapstructure:"revenue_target"`
	TargetStepsPct        []int         `mapstructure:"target_steps_pct"`
	MaterialityFloor      float64       `mapstructure:"materiality_floor"`
	RiskWindowDays        int           `mapstructure:"risk_window_days"`
	RiskStages            []string      `mapstructure:"risk_stages"`
}

// RateLimitConfig bounds how often evaluation passes may run.
type RateLimitConfig struct {
	MaxPerWindow int           `mapstructure:"max_per_window"`
	Window       time.Duration `mapstructure:"window"`
}

// CRMConfig covers opportunity feed access.
type CRMConfig struct {
	FeedURL           string        `mapstructure:"feed_url"`
	APIToken          string        `mapstructure:"api_token"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
	OpportunitiesFile string        `mapstructure:"opportunities_file"`
}

// AlertingConfig defines alert routing.
type AlertingConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRMWATCHER")
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
	v.SetDefault("app.name", "crmwatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "5m")
	v.SetDefault("scheduler.startup_delay", "10s")
	v.SetDefault("scheduler.advisory_lock_key", int64(0x63726d77))

	v.SetDefault("engine.min_interval", "30m")
	v.SetDefault("engine.max_alerts", 15)
	v.SetDefault("engine.max_deal_risk_candidates", 4)
	v.SetDefault("engine.revenue_milestones", []float64{100000, 500000, 1000000})
	v.SetDefault("engine.revenue_target", 2000000.0)
	v.SetDefault("engine.target_steps_pct", []int{25, 50, 75, 90, 100})
	v.SetDefault("engine.materiality_floor", 50000.0)
	v.SetDefault("engine.risk_window_days", 7)
	v.SetDefault("engine.risk_stages", []string{"acquire", "proposal"})

	v.SetDefault("ratelimit.max_per_window", 4)
	v.SetDefault("ratelimit.window", "1m")

	v.SetDefault("crm.request_timeout", "10s")
	v.SetDefault("crm.user_agent", "crmwatcher/1.0")

	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
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
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Engine.MinInterval < 0 {
		return fmt.Errorf("engine.min_interval cannot be negative")
	}
	if c.Engine.MaxAlerts <= 0 {
		return fmt.Errorf("engine.max_alerts must be greater than zero")
	}
	if c.Engine.RiskWindowDays <= 0 {
		return fmt.Errorf("engine.risk_window_days must be greater than zero")
	}
	for i := 1; i < len(c.Engine.RevenueMilestones); i++ {
		if c.Engine.RevenueMilestones[i] <= c.Engine.RevenueMilestones[i-1] {
			return fmt.Errorf("engine.revenue_milestones must be strictly ascending")
		}
	}
	for i := 1; i < len(c.Engine.TargetStepsPct); i++ {
		if c.Engine.TargetStepsPct[i] <= c.Engine.TargetStepsPct[i-1] {
			return fmt.Errorf("engine.target_steps_pct must be strictly ascending")
		}
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("ratelimit.window must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required when telegram is enabled")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required when telegram is enabled")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
