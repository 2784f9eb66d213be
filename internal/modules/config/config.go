package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"grail_maker/internal/models"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSN       = "DATABASE_DSN"
	identityENV       = "GRAIL_IDENTITY"

	envPrefix = "GRAIL"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config ...
type Config struct {
	Service struct {
		Name      string `yaml:"name" mapstructure:"name"`
		AdminAddr string `yaml:"admin_addr" mapstructure:"admin_addr"`
	} `yaml:"service" mapstructure:"service"`

	Log struct {
		Level      string `yaml:"level" mapstructure:"level"`
		File       string `yaml:"file" mapstructure:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
	} `yaml:"log" mapstructure:"log"`

	Gateway struct {
		BaseURL   string        `yaml:"base_url" mapstructure:"base_url"`
		// кука .AspNetCore.Identity.Application
		Identity  string        `yaml:"identity" mapstructure:"identity"`
		UserAgent string        `yaml:"user_agent" mapstructure:"user_agent"`
		Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
		// пусто = без websocket, только по таймеру
		StreamURL string        `yaml:"stream_url" mapstructure:"stream_url"`
	} `yaml:"gateway" mapstructure:"gateway"`

	Telegram struct {
		Token  string `yaml:"token" mapstructure:"token"`
		ChatID int64  `yaml:"chat_id" mapstructure:"chat_id"`
	} `yaml:"telegram" mapstructure:"telegram"`

	Storage struct {
		// memory | sqlite | postgres
		Driver string `yaml:"driver" mapstructure:"driver"`
		DSN    string `yaml:"dsn" mapstructure:"dsn"`
		Path   string `yaml:"path" mapstructure:"path"`
	} `yaml:"storage" mapstructure:"storage"`

	Tracing struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		Host    string `yaml:"host" mapstructure:"host"`
		Port    int    `yaml:"port" mapstructure:"port"`
	} `yaml:"tracing" mapstructure:"tracing"`

	Runner struct {
		Interval    time.Duration `yaml:"interval" mapstructure:"interval"`
		Throttle    time.Duration `yaml:"throttle" mapstructure:"throttle"`
		// стартовое состояние, если в хранилище пусто
		Strategy    string        `yaml:"strategy" mapstructure:"strategy"`
		Instruments []int64       `yaml:"instruments" mapstructure:"instruments"`
	} `yaml:"runner" mapstructure:"runner"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.name", "grail_maker")
	v.SetDefault("service.admin_addr", ":8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 14)

	v.SetDefault("gateway.base_url", "https://tinygrail.com")
	v.SetDefault("gateway.identity", "")
	v.SetDefault("gateway.user_agent", "grail_maker/1.0")
	v.SetDefault("gateway.timeout", "10s")
	v.SetDefault("gateway.stream_url", "")

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.chat_id", 0)

	v.SetDefault("storage.driver", DriverSQLite)
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.path", "data/grail.db")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.host", "localhost")
	v.SetDefault("tracing.port", 6831)

	v.SetDefault("runner.interval", "10s")
	v.SetDefault("runner.throttle", "2s")
	v.SetDefault("runner.strategy", string(models.StrategyIgnore))
	v.SetDefault("runner.instruments", []int64{})
}

// NewConfig читает configs/$CONFIG_FILE (по умолчанию values_local.yaml)
// и .env, если он есть.
func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	return Load("configs/" + configFileName)
}

// Load файл, затем GRAIL_* переменные окружения поверх него
// (GRAIL_RUNNER_INTERVAL=5s, GRAIL_RUNNER_INSTRUMENTS=1,2).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}

	if token := os.Getenv(tokenTelegramENV); token != "" {
		cfg.Telegram.Token = token
	}
	if dsn := os.Getenv(databaseDSN); dsn != "" {
		cfg.Storage.DSN = dsn
	}
	if id := os.Getenv(identityENV); id != "" {
		cfg.Gateway.Identity = id
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Dump итоговый конфиг в yaml без секретов, для лога при старте.
func (c Config) Dump() string {
	c.Gateway.Identity = mask(c.Gateway.Identity)
	c.Telegram.Token = mask(c.Telegram.Token)
	c.Storage.DSN = mask(c.Storage.DSN)
	bs, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("<yaml: %v>", err)
	}
	return string(bs)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}

func (c *Config) Validate() error {
	if len(c.Runner.Instruments) == 0 {
		return errors.New("runner.instruments is empty")
	}
	seen := make(map[int64]bool, len(c.Runner.Instruments))
	for _, id := range c.Runner.Instruments {
		if id <= 0 {
			return fmt.Errorf("runner.instruments: bad id %d", id)
		}
		if seen[id] {
			return fmt.Errorf("runner.instruments: duplicate id %d", id)
		}
		seen[id] = true
	}
	if c.Runner.Interval <= 0 {
		return errors.New("runner.interval must be positive")
	}
	if c.Runner.Throttle <= 0 {
		return errors.New("runner.throttle must be positive")
	}
	if _, err := models.ParseStrategyTag(c.Runner.Strategy); err != nil {
		return errors.Wrap(err, "runner.strategy")
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Storage.Path == "" {
			return errors.New("storage.path is required for sqlite")
		}
	case DriverPostgres:
		if c.Storage.DSN == "" {
			return errors.New("storage.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	return nil
}
