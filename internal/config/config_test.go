package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, ":9090", cfg.Server.GRPCAddr)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "bizadmin", cfg.Auth.Issuer)
	assert.Equal(t, 5*time.Minute, cfg.Redis.TTL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 100, cfg.Rate.Burst)
	assert.Equal(t, "Operators", cfg.Bootstrap.Organization)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bizadmin.yaml")
	doc := []byte(`
server:
  addr: ":9000"
database:
  dsn: postgres://file
auth:
  secret: from-file
  token_ttl: 15m
permissions:
  console_file: /etc/bizadmin/console.yaml
`)
	require.NoError(t, os.WriteFile(path, doc, 0o600))
	t.Setenv("BIZADMIN_AUTH_SECRET", "from-env")
	t.Setenv("BIZADMIN_REDIS_ADDR", "localhost:6379")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "postgres://file", cfg.Database.DSN)
	assert.Equal(t, "from-env", cfg.Auth.Secret)
	assert.Equal(t, 15*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "/etc/bizadmin/console.yaml", cfg.Permissions.ConsoleFile)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.dsn is required")
	assert.Contains(t, err.Error(), "auth.secret is required")

	cfg.Database.DSN = "postgres://x"
	cfg.Auth.Secret = "s"
	assert.NoError(t, cfg.Validate())

	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.TTL = 0
	assert.ErrorContains(t, cfg.Validate(), "redis.ttl")
}

func TestValidateMemoryDriver(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)

	cfg.Database.Driver = DriverMemory
	cfg.Auth.Secret = "s"
	assert.NoError(t, cfg.Validate())

	cfg.Bootstrap.Email = "root@example.com"
	assert.ErrorContains(t, cfg.Validate(), "bootstrap.password")
	cfg.Bootstrap.Password = "pw"
	assert.NoError(t, cfg.Validate())

	cfg.Database.Driver = "sqlite"
	assert.ErrorContains(t, cfg.Validate(), `database.driver "sqlite"`)
}
