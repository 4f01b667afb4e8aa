package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"MacoPull/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required,oneof=development staging production test"`
	Logging     struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"logging"`
	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"120s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		RunBurst        float64       `yaml:"run_burst" default:"2" validate:"gt=0"`
		RunRefillPerSec float64       `yaml:"run_refill_per_sec" default:"0.1" validate:"gt=0"`
		SummaryCacheTTL time.Duration `yaml:"summary_cache_ttl" default:"30s"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Storage struct {
		Backend  string `yaml:"backend" default:"local" validate:"oneof=local gcs redis"`
		Prefix   string `yaml:"prefix" default:"data/raw" validate:"required"`
		LocalDir string `yaml:"local_dir" default:"./bucket"`
		GCS      struct {
			Bucket          string `yaml:"bucket"`
			CredentialsFile string `yaml:"credentials_file"`
		} `yaml:"gcs"`
		Redis struct {
			KeyPrefix string `yaml:"key_prefix" default:"macopull:blob"`
		} `yaml:"redis"`
	} `yaml:"storage"`
	MarketData struct {
		Provider       string        `yaml:"provider" default:"finnhub" validate:"oneof=finnhub yahoo"`
		Resolution     string        `yaml:"resolution" default:"D" validate:"eq=D"`
		Timeout        time.Duration `yaml:"timeout" default:"20s" validate:"gt=0"`
		MaxRetries     int           `yaml:"max_retries" default:"3" validate:"gte=0,lte=10"`
		BackoffInitial time.Duration `yaml:"backoff_initial" default:"1500ms"`
		BackoffMax     time.Duration `yaml:"backoff_max" default:"30s"`
		RatePerSec     float64       `yaml:"rate_per_sec" default:"1" validate:"gt=0"`
		Burst          int           `yaml:"burst" default:"5" validate:"gt=0"`
	} `yaml:"market_data"`
	Finnhub struct {
		APIKey      string            `yaml:"api_key"`
		BaseURL     string            `yaml:"base_url" default:"https://finnhub.io/api/v1" validate:"url"`
		ProbeSymbol string            `yaml:"probe_symbol" default:"AAPL"`
		SymbolMap   map[string]string `yaml:"symbol_map"`
	} `yaml:"finnhub"`
	Yahoo struct {
		BaseURL     string            `yaml:"base_url" default:"https://query1.finance.yahoo.com" validate:"url"`
		ProbeSymbol string            `yaml:"probe_symbol" default:"AAPL"`
		SymbolMap   map[string]string `yaml:"symbol_map"`
	} `yaml:"yahoo"`
	Pipeline struct {
		Symbols          []string      `yaml:"symbols" default:"[\"AAPL\",\"TSLA\",\"BTC-USD\"]" validate:"min=1,dive,required"`
		ShortWindow      int           `yaml:"short_window" default:"20" validate:"gt=0,ltfield=LongWindow"`
		LongWindow       int           `yaml:"long_window" default:"50" validate:"gt=0"`
		ForecastLookback int           `yaml:"forecast_lookback" default:"20" validate:"gte=3"`
		SeedHorizon      time.Duration `yaml:"seed_horizon" default:"8760h" validate:"gt=0"`
		FailureBackoff   time.Duration `yaml:"failure_backoff" default:"2s"`
		ConflictRetries  int           `yaml:"conflict_retries" default:"1" validate:"gte=0,lte=5"`
		Schedule         string        `yaml:"schedule" default:"0 30 22 * * 1-5"`
		Lock             struct {
			Enabled bool          `yaml:"enabled" default:"false"`
			Key     string        `yaml:"key" default:"pipeline:run"`
			TTL     time.Duration `yaml:"ttl" default:"10m"`
		} `yaml:"lock"`
	} `yaml:"pipeline"`
	Warehouse struct {
		Enabled bool   `yaml:"enabled" default:"false"`
		Table   string `yaml:"table" default:"maco_signals"`
	} `yaml:"warehouse"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"macopull"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled" default:"false"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"maco.signals"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled  bool   `yaml:"enabled" default:"false"`
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"macopull"`
	} `yaml:"redis"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file. A missing file is not an error:
// the defaults plus environment overrides are a complete configuration.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads .env (if present) and the YAML file, then overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c, err := parse(path)
	if err != nil {
		return nil, err
	}

	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func parse(path string) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}

	b, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(b) > 0 {
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	return &c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		c.Finnhub.APIKey = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Pipeline.Symbols = util.SplitList(v)
	}
	if v := os.Getenv("RESOLUTION"); v != "" {
		c.MarketData.Resolution = v
	}
	if v := os.Getenv("MARKET_DATA_PROVIDER"); v != "" {
		c.MarketData.Provider = v
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("GCS_BUCKET"); v != "" {
		c.Storage.GCS.Bucket = v
		if os.Getenv("STORAGE_BACKEND") == "" {
			c.Storage.Backend = "gcs"
		}
	}
	if v := os.Getenv("DATA_PREFIX"); v != "" {
		c.Storage.Prefix = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.Warehouse.Enabled = true
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitList(v)
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Redis.Port = p
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.MarketData.Provider == "finnhub" && c.Finnhub.APIKey == "" {
		return fmt.Errorf("finnhub.api_key is required")
	}
	if c.Storage.Backend == "gcs" && c.Storage.GCS.Bucket == "" {
		return fmt.Errorf("storage.gcs.bucket is required for the gcs backend")
	}
	if c.Storage.Backend == "local" && c.Storage.LocalDir == "" {
		return fmt.Errorf("storage.local_dir is required for the local backend")
	}
	if c.Storage.Backend == "redis" && !c.Redis.Enabled {
		return fmt.Errorf("redis.enabled must be true for the redis backend")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Pipeline.Lock.Enabled && c.Pipeline.Lock.TTL <= 0 {
		return fmt.Errorf("pipeline.lock.ttl must be positive")
	}
	return nil
}
