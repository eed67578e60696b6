package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store drivers
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverBadger   = "badger"
)

// Oracle providers
const (
	OracleNone    = "none"
	OracleBinance = "binance"
)

// Config holds application configuration.
// Values come from the YAML file first, then environment variables override them.
type Config struct {
	Server struct {
		GRPCAddr string `yaml:"grpc_addr"`
		HTTPAddr string `yaml:"http_addr"`
		APIToken string `yaml:"api_token"`
	} `yaml:"server"`

	Store struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`  // postgres connection string
		Path   string `yaml:"path"` // sqlite file or badger directory
	} `yaml:"store"`

	Pool struct {
		Key            string        `yaml:"key"`
		MaxCASAttempts int           `yaml:"max_cas_attempts"`
		MaxRetries     int           `yaml:"max_retries"`
		BackoffBase    time.Duration `yaml:"backoff_base"`
		BackoffMax     time.Duration `yaml:"backoff_max"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
	} `yaml:"pool"`

	Oracle struct {
		Provider          string        `yaml:"provider"`
		BaseURL           string        `yaml:"base_url"`
		APIKey            string        `yaml:"api_key"`
		APISecret         string        `yaml:"api_secret"`
		Asset             string        `yaml:"asset"`
		Timeout           time.Duration `yaml:"timeout"`
		RequestsPerSecond float64       `yaml:"requests_per_second"`
	} `yaml:"oracle"`

	Refresh struct {
		Enabled  bool   `yaml:"enabled"`
		Schedule string `yaml:"schedule"`
	} `yaml:"refresh"`

	Logging struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"logging"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	cfg := &Config{}
	cfg.Server.GRPCAddr = ":8080"
	cfg.Server.HTTPAddr = ":8081"
	cfg.Server.APIToken = "dev-token"

	cfg.Store.Driver = DriverMemory
	cfg.Store.Path = "./data/pool"

	cfg.Pool.Key = "personalUser"
	cfg.Pool.MaxCASAttempts = 5
	cfg.Pool.MaxRetries = 3
	cfg.Pool.BackoffBase = 100 * time.Millisecond
	cfg.Pool.BackoffMax = 2 * time.Second
	cfg.Pool.RequestTimeout = 10 * time.Second

	cfg.Oracle.Provider = OracleNone
	cfg.Oracle.Asset = "USDT"
	cfg.Oracle.Timeout = 10 * time.Second
	cfg.Oracle.RequestsPerSecond = 5

	cfg.Refresh.Schedule = "@every 10s"

	cfg.Logging.Level = "info"
	return cfg
}

// Load reads the optional YAML file at path, then .env, then the environment.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	// Load .env file if it exists
	_ = godotenv.Load()

	if err := overrideWithEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	var errs []error

	if c.Server.APIToken == "" {
		errs = append(errs, errors.New("server.api_token is required"))
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store.dsn is required for postgres"))
		}
	case DriverSQLite, DriverBadger:
		if c.Store.Path == "" {
			errs = append(errs, fmt.Errorf("store.path is required for %s", c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}

	if c.Pool.Key == "" {
		errs = append(errs, errors.New("pool.key is required"))
	}
	if c.Pool.MaxCASAttempts <= 0 {
		errs = append(errs, errors.New("pool.max_cas_attempts must be positive"))
	}
	if c.Pool.MaxRetries < 0 {
		errs = append(errs, errors.New("pool.max_retries cannot be negative"))
	}
	if c.Pool.BackoffBase <= 0 || c.Pool.BackoffMax < c.Pool.BackoffBase {
		errs = append(errs, errors.New("pool backoff requires 0 < backoff_base <= backoff_max"))
	}

	switch c.Oracle.Provider {
	case OracleNone:
		if c.Refresh.Enabled {
			errs = append(errs, errors.New("refresh.enabled requires an oracle.provider"))
		}
	case OracleBinance:
		if c.Oracle.APIKey == "" || c.Oracle.APISecret == "" {
			errs = append(errs, errors.New("oracle.api_key and oracle.api_secret are required for binance"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown oracle.provider %q", c.Oracle.Provider))
	}

	if c.Refresh.Enabled && c.Refresh.Schedule == "" {
		errs = append(errs, errors.New("refresh.schedule is required when refresh is enabled"))
	}

	return errors.Join(errs...)
}

func overrideWithEnv(cfg *Config) error {
	setString(&cfg.Server.GRPCAddr, "GRPC_ADDR")
	setString(&cfg.Server.HTTPAddr, "HTTP_ADDR")
	setString(&cfg.Server.APIToken, "API_TOKEN")

	setString(&cfg.Store.Driver, "STORE_DRIVER")
	setString(&cfg.Store.Path, "STORE_PATH")
	if dsn := postgresDSN(); dsn != "" {
		cfg.Store.DSN = dsn
	}

	setString(&cfg.Pool.Key, "POOL_KEY")

	setString(&cfg.Oracle.Provider, "ORACLE_PROVIDER")
	setString(&cfg.Oracle.BaseURL, "BINANCE_BASE_URL")
	setString(&cfg.Oracle.APIKey, "BINANCE_API_KEY")
	setString(&cfg.Oracle.APISecret, "BINANCE_API_SECRET")

	setString(&cfg.Refresh.Schedule, "REFRESH_SCHEDULE")
	if err := setBool(&cfg.Refresh.Enabled, "REFRESH_ENABLED"); err != nil {
		return err
	}

	setString(&cfg.Logging.Level, "LOG_LEVEL")
	return setBool(&cfg.Logging.Pretty, "LOG_PRETTY")
}

// postgresDSN returns DB_CONN_STR, or builds one from the individual DB_* variables
// (Docker friendly). Empty when none of them is set.
func postgresDSN() string {
	if dsn := os.Getenv("DB_CONN_STR"); dsn != "" {
		return dsn
	}
	if os.Getenv("DB_HOST") == "" {
		return ""
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		os.Getenv("DB_HOST"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_USER", "postgres"),
		getEnv("DB_PASSWORD", "postgres"),
		getEnv("DB_NAME", "investpool"),
	)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func setString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func setBool(dst *bool, key string) error {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}
