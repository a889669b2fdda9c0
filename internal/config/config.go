// Package config loads gateway configuration from a YAML file, the
// environment and .env files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/hexgate/hexgate/internal/debug"
)

// FileName is the config file name without extension.
const FileName = ".hexgate"

// EnvPrefix prefixes environment overrides, e.g. HEXGATE_SERVER_ADDR.
const EnvPrefix = "HEXGATE"

// AppFs is the filesystem used to probe for .env files.
var AppFs = afero.NewOsFs()

// Config holds the application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigin      string        `mapstructure:"cors_origin"`
}

// DatabaseConfig selects the backend and sizes its connection pool.
type DatabaseConfig struct {
	Provider            string        `mapstructure:"provider"`
	Driver              string        `mapstructure:"driver"`
	URL                 string        `mapstructure:"url"`
	MaxOpenConns        int           `mapstructure:"max_open_conns"`
	MaxIdleConns        int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime     time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime     time.Duration `mapstructure:"conn_max_idle_time"`
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval"`
	ConnectTimeout      time.Duration `mapstructure:"connect_timeout"`
}

// GatewayConfig holds per-request execution limits.
type GatewayConfig struct {
	StatementTimeout     time.Duration `mapstructure:"statement_timeout"`
	AllowUnfilteredOptIn bool          `mapstructure:"allow_unfiltered_opt_in"`
	Isolation            string        `mapstructure:"isolation"`
	MaxBodyBytes         int64         `mapstructure:"max_body_bytes"`
}

// CatalogConfig controls catalog introspection and refresh.
type CatalogConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	Schemas         []string      `mapstructure:"schemas"`
}

// AuthConfig selects how a request identity is derived.
type AuthConfig struct {
	Mode       string `mapstructure:"mode"`
	RoleHeader string `mapstructure:"role_header"`
}

// LogConfig sets the log level and output format.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig selects the telemetry adapter.
type TelemetryConfig struct {
	Type string `mapstructure:"type"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.cors_origin", "")

	v.SetDefault("database.provider", "")
	v.SetDefault("database.driver", "pq")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.conn_max_idle_time", "10m")
	v.SetDefault("database.health_check_interval", "1m")
	v.SetDefault("database.connect_timeout", "10s")

	v.SetDefault("gateway.statement_timeout", "30s")
	v.SetDefault("gateway.allow_unfiltered_opt_in", false)
	v.SetDefault("gateway.isolation", "default")
	v.SetDefault("gateway.max_body_bytes", 1<<20)

	v.SetDefault("catalog.enabled", false)
	v.SetDefault("catalog.refresh_interval", "0s")
	v.SetDefault("catalog.schemas", []string{})

	v.SetDefault("auth.mode", "none")
	v.SetDefault("auth.role_header", "X-Hexgate-Role")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("telemetry.type", "memory")
}

// New returns a viper instance with search paths, env binding and
// defaults configured.
func New() (*viper.Viper, error) {
	home, err := homedir.Dir()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(home)
	v.AddConfigPath(filepath.Join(home, ".config", "hexgate"))
	bindEnv(v)
	SetDefaults(v)
	return v, nil
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// LoadDotEnv loads .env and then .env.local, which takes priority. Missing
// files are skipped.
func LoadDotEnv(fs afero.Fs) {
	if _, err := fs.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			debug.Warn("failed to load .env", "error", err)
		}
	}
	if _, err := fs.Stat(".env.local"); err == nil {
		if err := godotenv.Overload(".env.local"); err != nil {
			debug.Warn("failed to load .env.local", "error", err)
		}
	}
}

// Load reads the config file (if any) into v and returns the validated
// configuration. fs is used to probe for .env files.
func Load(fs afero.Fs, v *viper.Viper) (*Config, error) {
	LoadDotEnv(fs)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return Decode(v)
}

// Decode unmarshals and validates the settings held by v.
func Decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}
	if cfg.Database.Provider == "" {
		cfg.Database.Provider = DetectProvider(cfg.Database.URL)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DetectProvider guesses the provider from a database URL. PostgreSQL is
// assumed when nothing else matches.
func DetectProvider(url string) string {
	switch {
	case strings.HasPrefix(url, "mysql://"), strings.Contains(url, "@tcp("):
		return "mysql"
	case strings.HasPrefix(url, "sqlite:"), strings.HasPrefix(url, "file:"),
		strings.HasSuffix(url, ".db"), strings.HasSuffix(url, ".sqlite"):
		return "sqlite"
	}
	return "postgres"
}

// Validate checks the configuration for unknown values.
func (c *Config) Validate() error {
	switch c.Database.Provider {
	case "postgres", "postgresql", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported database provider: %q", c.Database.Provider)
	}
	switch c.Database.Driver {
	case "", "pq", "pgx":
	default:
		return fmt.Errorf("unsupported postgres driver: %q", c.Database.Driver)
	}
	switch c.Gateway.Isolation {
	case "", "default", "read_committed", "repeatable_read", "serializable":
	default:
		return fmt.Errorf("unsupported isolation level: %q", c.Gateway.Isolation)
	}
	switch c.Auth.Mode {
	case "", "none", "trusted-header":
	default:
		return fmt.Errorf("unsupported auth mode: %q", c.Auth.Mode)
	}
	switch c.Telemetry.Type {
	case "", "noop", "memory":
	default:
		return fmt.Errorf("unsupported telemetry type: %q", c.Telemetry.Type)
	}
	if c.Log.Level != "" {
		if _, err := debug.ParseLevel(c.Log.Level); err != nil {
			return err
		}
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("unsupported log format: %q", c.Log.Format)
	}

	durations := map[string]time.Duration{
		"server.read_timeout":            c.Server.ReadTimeout,
		"server.write_timeout":           c.Server.WriteTimeout,
		"server.shutdown_timeout":        c.Server.ShutdownTimeout,
		"database.conn_max_lifetime":     c.Database.ConnMaxLifetime,
		"database.conn_max_idle_time":    c.Database.ConnMaxIdleTime,
		"database.health_check_interval": c.Database.HealthCheckInterval,
		"database.connect_timeout":       c.Database.ConnectTimeout,
		"gateway.statement_timeout":      c.Gateway.StatementTimeout,
		"catalog.refresh_interval":       c.Catalog.RefreshInterval,
	}
	for key, d := range durations {
		if d < 0 {
			return fmt.Errorf("%s must not be negative", key)
		}
	}
	if c.Database.MaxOpenConns < 0 || c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database connection limits must not be negative")
	}
	if c.Gateway.MaxBodyBytes < 0 {
		return fmt.Errorf("gateway.max_body_bytes must not be negative")
	}
	return nil
}

// Save writes the settings of cfg to path as YAML.
func Save(fs afero.Fs, cfg *Config, path string) error {
	v := viper.New()
	v.SetFs(fs)
	v.SetConfigType("yaml")

	v.Set("server.addr", cfg.Server.Addr)
	v.Set("database.provider", cfg.Database.Provider)
	if cfg.Database.Driver != "" {
		v.Set("database.driver", cfg.Database.Driver)
	}
	if cfg.Database.URL != "" {
		v.Set("database.url", cfg.Database.URL)
	}
	v.Set("gateway.statement_timeout", cfg.Gateway.StatementTimeout.String())
	v.Set("gateway.allow_unfiltered_opt_in", cfg.Gateway.AllowUnfilteredOptIn)
	v.Set("catalog.enabled", cfg.Catalog.Enabled)
	v.Set("auth.mode", cfg.Auth.Mode)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.format", cfg.Log.Format)

	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return v.WriteConfigAs(path)
}

// DefaultPath returns the per-user config file location.
func DefaultPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "hexgate", FileName+".yaml"), nil
}
