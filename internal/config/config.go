package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/robfig/cron/v3"

	"currency-rate-service/internal/domain/model"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	ExchangeAPI ExchangeAPIConfig `yaml:"exchange_api"`
	Conversion  ConversionConfig  `yaml:"conversion"`
	Refresh     RefreshConfig     `yaml:"refresh"`
	Retry       RetryConfig       `yaml:"retry"`
	Cache       CacheConfig       `yaml:"cache"`
	Bus         BusConfig         `yaml:"bus"`
	RPC         RPCConfig         `yaml:"rpc"`
	Log         LogConfig         `yaml:"log"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" env:"SERVER_PORT" env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT" env-default:"5s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" env-default:"10s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" env-default:"120s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"15s"`
}

type ExchangeAPIConfig struct {
	BaseURL      string        `yaml:"base_url" env:"EXCHANGE_API_BASE_URL" env-default:"https://api.exchangerate.host/latest"`
	APIKey       string        `yaml:"api_key" env:"EXCHANGE_API_KEY"`
	BaseCurrency string        `yaml:"base_currency" env:"EXCHANGE_API_BASE_CURRENCY" env-default:"USD"`
	Timeout      time.Duration `yaml:"timeout" env:"EXCHANGE_API_TIMEOUT" env-default:"10s"`
}

type ConversionConfig struct {
	Scale        int    `yaml:"scale" env:"CONVERSION_SCALE" env-default:"2"`
	RoundingMode string `yaml:"rounding_mode" env:"CONVERSION_ROUNDING_MODE" env-default:"HALF_UP"`
}

type RefreshConfig struct {
	// Schedule is a standard 5-field cron spec or descriptor. Empty disables
	// scheduled refreshes.
	Schedule     string `yaml:"schedule" env:"REFRESH_SCHEDULE" env-default:"0 * * * *"`
	StartupCheck bool   `yaml:"startup_check" env:"REFRESH_STARTUP_CHECK" env-default:"true"`
}

type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" env:"RETRY_MAX_ATTEMPTS" env-default:"5"`
	InitialDelay time.Duration `yaml:"initial_delay" env:"RETRY_INITIAL_DELAY" env-default:"1s"`
	Multiplier   float64       `yaml:"multiplier" env:"RETRY_MULTIPLIER" env-default:"2"`
	MaxDelay     time.Duration `yaml:"max_delay" env:"RETRY_MAX_DELAY" env-default:"30s"`
}

type CacheConfig struct {
	Driver          string  `yaml:"driver" env:"CACHE_DRIVER" env-default:"memory"`
	DefaultTTLHours float64 `yaml:"default_ttl_hours" env:"CACHE_DEFAULT_TTL_HOURS" env-default:"24"`
	RateTTLHours    float64 `yaml:"rate_ttl_hours" env:"CACHE_RATE_TTL_HOURS" env-default:"1"`
	RedisAddr       string  `yaml:"redis_addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword   string  `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB         int     `yaml:"redis_db" env:"REDIS_DB" env-default:"0"`
	RedisKeyPrefix  string  `yaml:"redis_key_prefix" env:"REDIS_KEY_PREFIX" env-default:"rates:"`
}

type BusConfig struct {
	Driver  string   `yaml:"driver" env:"BUS_DRIVER" env-default:"memory"`
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:"," env-default:"localhost:9092"`
}

type RPCConfig struct {
	RequestTopic     string        `yaml:"request_topic" env:"RPC_REQUEST_TOPIC" env-default:"currency.conversion.requests"`
	ReplyTopic       string        `yaml:"reply_topic" env:"RPC_REPLY_TOPIC" env-default:"currency.conversion.replies"`
	GroupID          string        `yaml:"group_id" env:"RPC_GROUP_ID" env-default:"currency-rate-service"`
	Timeout          time.Duration `yaml:"timeout" env:"RPC_TIMEOUT" env-default:"10s"`
	ResponderEnabled bool          `yaml:"responder_enabled" env:"RPC_RESPONDER_ENABLED" env-default:"true"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverKafka  = "kafka"
)

// LoadConfig reads CONFIG_PATH when set, then the environment, which wins.
func LoadConfig() (*Config, error) {
	var cfg Config

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if _, err := model.ParseRoundingMode(c.Conversion.RoundingMode); err != nil {
		errs = append(errs, err)
	}
	if c.Conversion.Scale < 0 {
		errs = append(errs, fmt.Errorf("conversion scale must not be negative, got %d", c.Conversion.Scale))
	}
	if _, err := model.ParseCurrency(c.ExchangeAPI.BaseCurrency); err != nil {
		errs = append(errs, fmt.Errorf("base currency: %w", err))
	}

	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry max attempts must be at least 1, got %d", c.Retry.MaxAttempts))
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, fmt.Errorf("retry multiplier must be at least 1, got %g", c.Retry.Multiplier))
	}
	if c.Retry.MaxDelay < c.Retry.InitialDelay {
		errs = append(errs, fmt.Errorf("retry max delay %s is below initial delay %s", c.Retry.MaxDelay, c.Retry.InitialDelay))
	}

	if c.Cache.RateTTLHours <= 0 || c.Cache.DefaultTTLHours <= 0 {
		errs = append(errs, errors.New("cache TTLs must be positive"))
	}
	if c.Cache.RateTTLHours > c.Cache.DefaultTTLHours {
		errs = append(errs, fmt.Errorf("rate TTL %gh exceeds default TTL %gh", c.Cache.RateTTLHours, c.Cache.DefaultTTLHours))
	}
	if c.Cache.Driver != DriverMemory && c.Cache.Driver != DriverRedis {
		errs = append(errs, fmt.Errorf("unknown cache driver %q", c.Cache.Driver))
	}

	if c.Refresh.Schedule != "" {
		if _, err := cron.ParseStandard(c.Refresh.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("refresh schedule: %w", err))
		}
	}

	if c.Bus.Driver != DriverMemory && c.Bus.Driver != DriverKafka {
		errs = append(errs, fmt.Errorf("unknown bus driver %q", c.Bus.Driver))
	}
	if c.Bus.Driver == DriverKafka && len(c.Bus.Brokers) == 0 {
		errs = append(errs, errors.New("kafka bus needs at least one broker"))
	}
	if c.RPC.Timeout <= 0 {
		errs = append(errs, errors.New("rpc timeout must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Config) RoundingMode() model.RoundingMode {
	mode, _ := model.ParseRoundingMode(c.Conversion.RoundingMode)
	return mode
}
