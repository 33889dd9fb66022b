package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// StrategyParams are the per-strategy thresholds. Unset values fall back to
// the strategy's built-in defaults; an explicit 0 is a real threshold.
type StrategyParams struct {
	BuyRSI   *float64 `yaml:"buy_rsi"`
	SellRSI  *float64 `yaml:"sell_rsi"`
	MACDBuy  *float64 `yaml:"macd_buy"`
	MACDSell *float64 `yaml:"macd_sell"`
}

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		BarsTopic    string   `yaml:"bars_topic" default:"market.bars"`
		SignalsTopic string   `yaml:"signals_topic" default:"signals.events"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			BatchTimeout time.Duration `yaml:"batch_timeout" default:"1s"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"signalforge"`
			Workers    int           `yaml:"workers" default:"4"`
			BufferSize int           `yaml:"buffer_size" default:"1024"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"default"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		BarsTable        string        `yaml:"bars_table" default:"price_bars"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Postgres struct {
		Host            string        `yaml:"host" default:"localhost"`
		Port            int           `yaml:"port" default:"5432"`
		User            string        `yaml:"user" default:"postgres"`
		Password        string        `yaml:"password"`
		Database        string        `yaml:"database" default:"signalforge"`
		SSLMode         string        `yaml:"sslmode" default:"disable"`
		MaxOpenConns    int           `yaml:"max_open_conns" default:"20"`
		MaxIdleConns    int           `yaml:"max_idle_conns" default:"5"`
		ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" default:"30m"`
	} `yaml:"postgres"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Indicators struct {
		RSIPeriod  int `yaml:"rsi_period" default:"14" validate:"gt=1"`
		EMAFast    int `yaml:"ema_fast" default:"12" validate:"gt=0"`
		EMASlow    int `yaml:"ema_slow" default:"26" validate:"gt=0"`
		MACDSignal int `yaml:"macd_signal" default:"9" validate:"gt=0"`
		Window     int `yaml:"window" default:"600" validate:"gt=0"`
	} `yaml:"indicators"`
	Strategies struct {
		Symbols []string                  `yaml:"symbols" validate:"min=1"`
		Assign  map[string]string         `yaml:"assign"` // symbol -> strategy kind
		Params  map[string]StrategyParams `yaml:"params"` // strategy kind -> thresholds
	} `yaml:"strategies"`
	Notifier struct {
		URL         string        `yaml:"url"`
		Timeout     time.Duration `yaml:"timeout" default:"5s"`
		Retries     int           `yaml:"retries" default:"3"`
		MinStrength float64       `yaml:"min_strength" default:"70" validate:"gte=0,lte=100"`
		Lookback    time.Duration `yaml:"lookback" default:"24h"`
		Cooldown    time.Duration `yaml:"cooldown" default:"6h"`
	} `yaml:"notifier"`
	Explainer struct {
		Enabled bool          `yaml:"enabled"`
		URL     string        `yaml:"url"`
		Timeout time.Duration `yaml:"timeout" default:"10s"`
	} `yaml:"explainer"`
	Scheduler struct {
		Enabled      bool   `yaml:"enabled" default:"true"`
		SignalSpec   string `yaml:"signal_spec" default:"0 * * * *"`   // hourly
		DispatchSpec string `yaml:"dispatch_spec" default:"5 * * * *"` // after signals
	} `yaml:"scheduler"`
	Backtest struct {
		DefaultRange string `yaml:"default_range" default:"1y"`
	} `yaml:"backtest"`
}

var validate = validator.New()

// Load reads a YAML configuration file, applies defaults and validates it.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Strategies.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		c.Postgres.Password = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("NOTIFIER_URL"); v != "" {
		c.Notifier.URL = v
	}
	if v := os.Getenv("EXPLAINER_URL"); v != "" {
		c.Explainer.URL = v
	}

	return c, nil
}

// Validate checks structural constraints plus the cross-field rules the tag
// language cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Indicators.EMAFast >= c.Indicators.EMASlow {
		return fmt.Errorf("indicators.ema_fast must be shorter than ema_slow")
	}
	for kind := range c.Strategies.Params {
		switch kind {
		case "stock_mean_reversion", "mean_reversion", "crypto_momentum", "momentum", "hold":
		default:
			return fmt.Errorf("strategies.params: unknown strategy kind '%s'", kind)
		}
	}
	return nil
}
