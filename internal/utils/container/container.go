// Package container wires the gateway's components from configuration.
package container

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-version"

	"github.com/hexgate/hexgate/internal/adapters/database"
	"github.com/hexgate/hexgate/internal/adapters/database/mysql"
	"github.com/hexgate/hexgate/internal/adapters/database/postgres"
	"github.com/hexgate/hexgate/internal/adapters/database/sqlite"
	"github.com/hexgate/hexgate/internal/adapters/telemetry"
	"github.com/hexgate/hexgate/internal/config"
	"github.com/hexgate/hexgate/internal/core/catalog"
	"github.com/hexgate/hexgate/internal/core/database/pool"
	"github.com/hexgate/hexgate/internal/core/query/compiler"
	"github.com/hexgate/hexgate/internal/core/query/domain"
	"github.com/hexgate/hexgate/internal/core/query/executor"
	"github.com/hexgate/hexgate/internal/core/resource"
	"github.com/hexgate/hexgate/internal/debug"
	"github.com/hexgate/hexgate/internal/server"
	"github.com/hexgate/hexgate/internal/service"
)

// Container holds all application dependencies.
type Container struct {
	config *config.Config

	// Adapters
	dbAdapter database.Adapter
	telemetry telemetry.Telemetry

	// Core
	catalog     *catalog.Catalog
	compiler    *compiler.SQLCompiler
	coordinator *executor.Coordinator

	// Services
	gatewayService *service.GatewayService
}

// NewContainer creates the container. Nothing touches the database until
// Connect.
func NewContainer(cfg *config.Config) (*Container, error) {
	c := &Container{config: cfg}

	var err error
	c.dbAdapter, err = CreateDatabaseAdapter(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to create database adapter: %w", err)
	}

	c.telemetry, err = telemetry.NewTelemetry(&telemetry.Config{Type: cfg.Telemetry.Type})
	if err != nil {
		return nil, fmt.Errorf("failed to create telemetry: %w", err)
	}

	isolation, err := executor.ParseIsolation(cfg.Gateway.Isolation)
	if err != nil {
		return nil, err
	}
	c.coordinator = executor.NewCoordinator(c.dbAdapter, c.telemetry, executor.Options{
		StatementTimeout: cfg.Gateway.StatementTimeout,
		Isolation:        isolation,
	})

	if cfg.Catalog.Enabled {
		c.catalog = catalog.New(c.dbAdapter, catalog.Options{
			Schemas:         cfg.Catalog.Schemas,
			RefreshInterval: cfg.Catalog.RefreshInterval,
		})
	}

	c.compiler = compiler.NewSQLCompiler(c.dbAdapter.GetDialect())
	c.buildGateway()
	return c, nil
}

func (c *Container) buildGateway() {
	var cat resource.Catalog
	if c.catalog != nil {
		cat = c.catalog
	}
	c.gatewayService = service.NewGatewayService(resource.NewResolver(cat), c.compiler, c.coordinator)
}

// Connect opens the pool, loads the catalog when enabled and narrows the
// compiler to what the connected server supports.
func (c *Container) Connect(ctx context.Context) error {
	err := c.dbAdapter.Connect(ctx)
	c.telemetry.RecordConnection(ctx, telemetry.ConnectionInfo{Event: "connect", Success: err == nil})
	if err != nil {
		return err
	}

	var caps compiler.Capabilities
	if c.catalog != nil {
		snap, err := c.catalog.Load(ctx)
		if err != nil {
			return fmt.Errorf("failed to load catalog: %w", err)
		}
		debug.Info("catalog loaded", "tables", len(snap.Tables), "functions", len(snap.Functions), "server_version", snap.ServerVersion)
		caps = c.catalog.Capabilities()
	} else {
		caps = database.Capabilities(c.dbAdapter.GetDialect(), serverVersion(ctx, c.dbAdapter))
	}

	c.compiler = c.compiler.WithCapabilities(caps)
	c.buildGateway()
	return nil
}

func serverVersion(ctx context.Context, a database.Adapter) *version.Version {
	raw, err := a.ServerVersion(ctx)
	if err != nil {
		debug.Warn("failed to read server version", "error", err)
		return nil
	}
	v, err := database.ParseServerVersion(raw)
	if err != nil {
		debug.Warn("unrecognized server version", "version", raw)
		return nil
	}
	return v
}

// Config returns the configuration the container was built from.
func (c *Container) Config() *config.Config {
	return c.config
}

// Adapter returns the database adapter.
func (c *Container) Adapter() database.Adapter {
	return c.dbAdapter
}

// Catalog returns the catalog, or nil when disabled.
func (c *Container) Catalog() *catalog.Catalog {
	return c.catalog
}

// Telemetry returns the telemetry sink.
func (c *Container) Telemetry() telemetry.Telemetry {
	return c.telemetry
}

// GatewayService returns the gateway service.
func (c *Container) GatewayService() *service.GatewayService {
	return c.gatewayService
}

// Server builds the HTTP server. Call after Connect.
func (c *Container) Server() (*server.Server, error) {
	auth, err := server.NewAuthenticator(c.config.Auth.Mode, c.config.Auth.RoleHeader)
	if err != nil {
		return nil, err
	}
	deps := server.Deps{
		Gateway:   c.gatewayService,
		Auth:      auth,
		Telemetry: c.telemetry,
	}
	if p := c.dbAdapter.Pool(); p != nil {
		deps.Health = p
	}
	return server.NewServer(deps, server.Options{
		Addr:                 c.config.Server.Addr,
		ReadTimeout:          c.config.Server.ReadTimeout,
		WriteTimeout:         c.config.Server.WriteTimeout,
		ShutdownTimeout:      c.config.Server.ShutdownTimeout,
		MaxBodyBytes:         c.config.Gateway.MaxBodyBytes,
		AllowUnfilteredOptIn: c.config.Gateway.AllowUnfilteredOptIn,
		CORSOrigin:           c.config.Server.CORSOrigin,
	}), nil
}

// Close flushes telemetry and disconnects from the database.
func (c *Container) Close(ctx context.Context) error {
	if err := c.telemetry.Close(ctx); err != nil {
		debug.Warn("failed to close telemetry", "error", err)
	}
	if c.dbAdapter.Pool() == nil {
		return nil
	}
	err := c.dbAdapter.Disconnect(ctx)
	c.telemetry.RecordConnection(ctx, telemetry.ConnectionInfo{Event: "disconnect", Success: err == nil})
	return err
}

// NewPlanner returns a gateway service that compiles requests for provider
// without a backend.
func NewPlanner(provider string) (*service.GatewayService, error) {
	dialect, err := Dialect(provider)
	if err != nil {
		return nil, err
	}
	return service.NewGatewayService(resource.NewResolver(nil), compiler.NewSQLCompiler(dialect), nil), nil
}

// Dialect maps a provider name onto its SQL dialect.
func Dialect(provider string) (domain.SQLDialect, error) {
	switch provider {
	case "postgresql", "postgres":
		return domain.PostgreSQL, nil
	case "mysql":
		return domain.MySQL, nil
	case "sqlite":
		return domain.SQLite, nil
	}
	return "", fmt.Errorf("unsupported database provider: %s", provider)
}

// CreateDatabaseAdapter creates the adapter for cfg.Provider.
func CreateDatabaseAdapter(cfg config.DatabaseConfig) (database.Adapter, error) {
	dbConfig := database.Config{
		Provider: cfg.Provider,
		Driver:   cfg.Driver,
		URL:      cfg.URL,
		Pool: pool.Config{
			MaxOpenConns:        cfg.MaxOpenConns,
			MaxIdleConns:        cfg.MaxIdleConns,
			ConnMaxLifetime:     cfg.ConnMaxLifetime,
			ConnMaxIdleTime:     cfg.ConnMaxIdleTime,
			HealthCheckInterval: cfg.HealthCheckInterval,
			ConnectTimeout:      cfg.ConnectTimeout,
		},
	}

	var adapter database.Adapter
	var err error

	switch cfg.Provider {
	case "postgresql", "postgres":
		adapter, err = postgres.NewPostgresAdapter(dbConfig)
	case "mysql":
		adapter, err = mysql.NewMySQLAdapter(dbConfig)
	case "sqlite":
		adapter, err = sqlite.NewSQLiteAdapter(dbConfig)
	default:
		return nil, fmt.Errorf("unsupported database provider: %s", cfg.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create adapter: %w", err)
	}
	return adapter, nil
}
