package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Local       LocalConfig       `yaml:"local" mapstructure:"local"`
	Perenual    PerenualConfig    `yaml:"perenual" mapstructure:"perenual"`
	Permapeople PermapeopleConfig `yaml:"permapeople" mapstructure:"permapeople"`
	Harvest     HarvestConfig     `yaml:"harvest" mapstructure:"harvest"`
	Merge       MergeConfig       `yaml:"merge" mapstructure:"merge"`
	Email       EmailConfig       `yaml:"email" mapstructure:"email"`
	Webhook     WebhookConfig     `yaml:"webhook" mapstructure:"webhook"`
	Zone        ZoneConfig        `yaml:"zone" mapstructure:"zone"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
	Timezone    string            `yaml:"timezone" mapstructure:"timezone"`
}

// StoreConfig configures the canonical Postgres database.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LocalConfig configures the embedded sqlite store used for the raw page
// archive and the hardiness-zone cache.
type LocalConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PerenualConfig holds Perenual API settings.
type PerenualConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PermapeopleConfig holds Permapeople API credentials.
type PermapeopleConfig struct {
	KeyID     string `yaml:"key_id" mapstructure:"key_id"`
	KeySecret string `yaml:"key_secret" mapstructure:"key_secret"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
}

// HarvestConfig configures harvest pacing and the daily request budget.
type HarvestConfig struct {
	PerenualBudget int   `yaml:"perenual_budget" mapstructure:"perenual_budget"`
	PageSize       int   `yaml:"page_size" mapstructure:"page_size"`
	CronHourUTC    int   `yaml:"cron_hour_utc" mapstructure:"cron_hour_utc"`
	RetryHoursUTC  []int `yaml:"retry_hours_utc" mapstructure:"retry_hours_utc"`
}

// MergeConfig configures the merge engine.
type MergeConfig struct {
	BatchSize int    `yaml:"batch_size" mapstructure:"batch_size"`
	RulesFile string `yaml:"rules_file" mapstructure:"rules_file"`
}

// EmailConfig holds SMTP settings for run reports. Reports are skipped with a
// warning when Host is empty.
type EmailConfig struct {
	Host     string   `yaml:"host" mapstructure:"host"`
	Port     int      `yaml:"port" mapstructure:"port"`
	Username string   `yaml:"username" mapstructure:"username"`
	Password string   `yaml:"password" mapstructure:"password"`
	From     string   `yaml:"from" mapstructure:"from"`
	To       []string `yaml:"to" mapstructure:"to"`
}

// WebhookConfig holds an optional JSON webhook for run reports.
type WebhookConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
}

// ZoneConfig configures the hardiness zone locator.
type ZoneConfig struct {
	Shapefile      string `yaml:"shapefile" mapstructure:"shapefile"`
	PHZMapiBaseURL string `yaml:"phzmapi_base_url" mapstructure:"phzmapi_base_url"`
}

// ServerConfig configures the admin HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.AddConfigPath("$HOME/.flora")

	// Environment
	v.SetEnvPrefix("FLORA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("local.path", "flora.db")
	v.SetDefault("perenual.base_url", "https://perenual.com")
	v.SetDefault("permapeople.base_url", "https://permapeople.org")
	v.SetDefault("harvest.perenual_budget", 95)
	v.SetDefault("harvest.page_size", 30)
	v.SetDefault("harvest.cron_hour_utc", 4)
	v.SetDefault("harvest.retry_hours_utc", []int{6, 9, 12})
	v.SetDefault("merge.batch_size", 500)
	v.SetDefault("merge.rules_file", "rules.yaml")
	v.SetDefault("email.port", 587)
	v.SetDefault("zone.phzmapi_base_url", "https://phzmapi.org")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("timezone", "America/Chicago")

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

// Validate checks that the configuration is usable for the given mode.
// Modes: db (anything that only touches Postgres), harvest, serve, schedule.
func (c *Config) Validate(mode string) error {
	var problems []string

	needDB := func() {
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	}
	needHarvest := func() {
		needDB()
		if c.Harvest.PerenualBudget < 1 || c.Harvest.PerenualBudget > 1000 {
			problems = append(problems, "harvest.perenual_budget must be between 1 and 1000")
		}
		if c.Harvest.CronHourUTC < 0 || c.Harvest.CronHourUTC > 23 {
			problems = append(problems, "harvest.cron_hour_utc must be between 0 and 23")
		}
		for _, h := range c.Harvest.RetryHoursUTC {
			if h < 0 || h > 23 {
				problems = append(problems, fmt.Sprintf("harvest.retry_hours_utc entry %d must be between 0 and 23", h))
			}
		}
	}

	switch mode {
	case "db":
		needDB()
	case "harvest":
		needHarvest()
	case "serve":
		needDB()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "schedule":
		needHarvest()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Merge.BatchSize < 1 || c.Merge.BatchSize > 5000 {
		problems = append(problems, "merge.batch_size must be between 1 and 5000")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// Location resolves the configured report timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		zap.L().Warn("invalid timezone, using UTC", zap.String("timezone", c.Timezone))
		return time.UTC
	}
	return loc
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
