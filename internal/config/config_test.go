package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir()) // no stray .env

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, "personalUser", cfg.Pool.Key)
	assert.Equal(t, 5, cfg.Pool.MaxCASAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.Pool.BackoffBase)
	assert.Equal(t, "@every 10s", cfg.Refresh.Schedule)
}

func TestLoad_FileThenEnv(t *testing.T) {
	chdir(t, t.TempDir())
	path := writeFile(t, `
server:
  api_token: from-file
store:
  driver: sqlite
  path: /tmp/pool.db
pool:
  max_cas_attempts: 8
  backoff_base: 250ms
  backoff_max: 5s
oracle:
  provider: binance
  api_key: k
  api_secret: s
refresh:
  enabled: true
  schedule: "@every 1m"
`)
	t.Setenv("API_TOKEN", "from-env")
	t.Setenv("LOG_PRETTY", "true")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Server.APIToken)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, 8, cfg.Pool.MaxCASAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Pool.BackoffBase)
	assert.Equal(t, 5*time.Second, cfg.Pool.BackoffMax)
	assert.True(t, cfg.Refresh.Enabled)
	assert.True(t, cfg.Logging.Pretty)
	assert.Equal(t, ":8080", cfg.Server.GRPCAddr, "unset keys keep defaults")
}

func TestLoad_PostgresDSNFromParts(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PASSWORD", "secret")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, "host=db port=5432 user=postgres password=secret dbname=investpool sslmode=disable", cfg.Store.DSN)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		errText string
	}{
		{"unknown driver", func(c *Config) { c.Store.Driver = "dynamo" }, `unknown store.driver "dynamo"`},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = DriverPostgres }, "store.dsn is required"},
		{"no cas attempts", func(c *Config) { c.Pool.MaxCASAttempts = 0 }, "max_cas_attempts"},
		{"inverted backoff", func(c *Config) { c.Pool.BackoffMax = time.Millisecond }, "backoff"},
		{"refresh without oracle", func(c *Config) { c.Refresh.Enabled = true }, "requires an oracle.provider"},
		{"binance without keys", func(c *Config) { c.Oracle.Provider = OracleBinance }, "api_secret are required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errText)
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestLoad_BadBool(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("REFRESH_ENABLED", "maybe")

	_, err := Load("")

	assert.ErrorContains(t, err, "REFRESH_ENABLED")
}

// chdir changes the working directory for the duration of the test
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
