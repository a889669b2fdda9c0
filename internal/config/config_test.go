package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexgate/hexgate/internal/debug"
)

func newTestViper(fs afero.Fs) *viper.Viper {
	v := viper.New()
	v.SetFs(fs)
	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/hexgate")
	bindEnv(v)
	SetDefaults(v)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	fs := afero.NewMemMapFs()

	cfg, err := Load(fs, newTestViper(fs))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "postgres", cfg.Database.Provider)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 30*time.Second, cfg.Gateway.StatementTimeout)
	assert.False(t, cfg.Gateway.AllowUnfilteredOptIn)
	assert.Equal(t, int64(1<<20), cfg.Gateway.MaxBodyBytes)
	assert.Equal(t, "X-Hexgate-Role", cfg.Auth.RoleHeader)
	assert.Equal(t, "memory", cfg.Telemetry.Type)
	assert.Empty(t, cfg.File)
}

func TestLoad_File(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/hexgate/.hexgate.yaml", []byte(`
server:
  addr: ":9090"
database:
  provider: sqlite
  url: "sqlite::memory:"
gateway:
  statement_timeout: 5s
  allow_unfiltered_opt_in: true
catalog:
  enabled: true
  schemas: [public, sales]
log:
  level: debug
  format: json
`), 0o644))

	cfg, err := Load(fs, newTestViper(fs))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Database.Provider)
	assert.Equal(t, "sqlite::memory:", cfg.Database.URL)
	assert.Equal(t, 5*time.Second, cfg.Gateway.StatementTimeout)
	assert.True(t, cfg.Gateway.AllowUnfilteredOptIn)
	assert.True(t, cfg.Catalog.Enabled)
	assert.Equal(t, []string{"public", "sales"}, cfg.Catalog.Schemas)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "/etc/hexgate/.hexgate.yaml", cfg.File)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("HEXGATE_SERVER_ADDR", ":7070")
	t.Setenv("HEXGATE_DATABASE_PROVIDER", "mysql")
	t.Setenv("HEXGATE_DATABASE_URL", "")
	t.Setenv("DATABASE_URL", "mysql://app@tcp(db:3306)/shop")
	fs := afero.NewMemMapFs()

	cfg, err := Load(fs, newTestViper(fs))
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "mysql", cfg.Database.Provider)
	assert.Equal(t, "mysql://app@tcp(db:3306)/shop", cfg.Database.URL)
}

func TestLoad_InvalidFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/hexgate/.hexgate.yaml", []byte("server: [unclosed"), 0o644))

	_, err := Load(fs, newTestViper(fs))
	assert.Error(t, err)
}

func validConfig() *Config {
	return &Config{
		Database:  DatabaseConfig{Provider: "postgres", Driver: "pgx"},
		Gateway:   GatewayConfig{Isolation: "serializable"},
		Auth:      AuthConfig{Mode: "trusted-header"},
		Log:       LogConfig{Level: "warn", Format: "json"},
		Telemetry: TelemetryConfig{Type: "noop"},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"provider", func(c *Config) { c.Database.Provider = "oracle" }},
		{"driver", func(c *Config) { c.Database.Driver = "odbc" }},
		{"isolation", func(c *Config) { c.Gateway.Isolation = "snapshot" }},
		{"auth mode", func(c *Config) { c.Auth.Mode = "jwt" }},
		{"telemetry", func(c *Config) { c.Telemetry.Type = "prometheus" }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
		{"negative timeout", func(c *Config) { c.Gateway.StatementTimeout = -time.Second }},
		{"negative refresh", func(c *Config) { c.Catalog.RefreshInterval = -time.Second }},
		{"negative conns", func(c *Config) { c.Database.MaxOpenConns = -1 }},
		{"negative body", func(c *Config) { c.Gateway.MaxBodyBytes = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	fs := afero.NewMemMapFs()
	cfg := validConfig()
	cfg.Server.Addr = ":8181"
	cfg.Database.Provider = "sqlite"
	cfg.Database.Driver = ""
	cfg.Database.URL = "sqlite://app.db"
	cfg.Gateway.StatementTimeout = 12 * time.Second

	require.NoError(t, Save(fs, cfg, "/etc/hexgate/.hexgate.yaml"))

	loaded, err := Load(fs, newTestViper(fs))
	require.NoError(t, err)
	assert.Equal(t, ":8181", loaded.Server.Addr)
	assert.Equal(t, "sqlite", loaded.Database.Provider)
	assert.Equal(t, "sqlite://app.db", loaded.Database.URL)
	assert.Equal(t, 12*time.Second, loaded.Gateway.StatementTimeout)
	assert.Equal(t, "trusted-header", loaded.Auth.Mode)
	assert.Equal(t, "warn", loaded.Log.Level)
}

func TestReload_AppliesLogLevel(t *testing.T) {
	prev := debug.Level()
	t.Cleanup(func() { debug.SetLevel(prev) })
	debug.SetLevel(slog.LevelInfo)

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/hexgate/.hexgate.yaml", []byte("log:\n  level: debug\n"), 0o644))
	v := newTestViper(fs)

	require.NoError(t, Reload(v))
	assert.Equal(t, slog.LevelDebug, debug.Level())

	require.NoError(t, afero.WriteFile(fs, "/etc/hexgate/.hexgate.yaml", []byte("log:\n  level: loud\n"), 0o644))
	assert.Error(t, Reload(v))
	assert.Equal(t, slog.LevelDebug, debug.Level())
}

func TestWatch_NoFile(t *testing.T) {
	w, err := Watch(viper.New())
	assert.NoError(t, err)
	assert.Nil(t, w)
}

func TestDetectProvider(t *testing.T) {
	tests := map[string]string{
		"":                              "postgres",
		"postgres://app@db/shop":        "postgres",
		"mysql://app@tcp(db:3306)/shop": "mysql",
		"app:secret@tcp(db:3306)/shop":  "mysql",
		"sqlite::memory:":               "sqlite",
		"file:app.db?cache=shared":      "sqlite",
		"./data/app.db":                 "sqlite",
		"host=db user=app dbname=shop":  "postgres",
	}
	for url, want := range tests {
		assert.Equal(t, want, DetectProvider(url), url)
	}
}
