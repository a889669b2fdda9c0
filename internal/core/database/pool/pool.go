// Package pool provides database connection pooling.
package pool

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/hexgate/hexgate/internal/debug"
)

// Config holds connection pool configuration.
type Config struct {
	// MaxOpenConns is the maximum number of open connections (0 = unlimited).
	MaxOpenConns int
	// MaxIdleConns is the maximum number of idle connections.
	MaxIdleConns int
	// ConnMaxLifetime is the maximum lifetime of a connection.
	ConnMaxLifetime time.Duration
	// ConnMaxIdleTime is the maximum idle time of a connection.
	ConnMaxIdleTime time.Duration
	// HealthCheckInterval is how often to run health checks (0 disables).
	HealthCheckInterval time.Duration
	// ConnectTimeout bounds the initial ping.
	ConnectTimeout time.Duration
}

// DefaultConfig returns sensible default pool configuration.
func DefaultConfig() Config {
	return Config{
		MaxOpenConns:        25,
		MaxIdleConns:        5,
		ConnMaxLifetime:     30 * time.Minute,
		ConnMaxIdleTime:     10 * time.Minute,
		HealthCheckInterval: 1 * time.Minute,
		ConnectTimeout:      10 * time.Second,
	}
}

// Pool owns a *sql.DB and checks its health in the background. A Pool is
// created once per process and handed to adapters explicitly.
type Pool struct {
	db     *sql.DB
	driver string
	config Config

	mu              sync.RWMutex
	failedChecks    int64
	lastHealthCheck time.Time
	lastError       error

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Open opens a pool and verifies it with a ping bounded by
// config.ConnectTimeout.
func Open(ctx context.Context, driverName, dataSourceName string, config Config) (*Pool, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	p := newPool(db, driverName, config)

	if config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.ConnectTimeout)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	debug.Info("database pool opened", "driver", driverName, "max_open", config.MaxOpenConns)
	return p, nil
}

func newPool(db *sql.DB, driverName string, config Config) *Pool {
	// Apply pool configuration
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		db:     db,
		driver: driverName,
		config: config,
		ctx:    ctx,
		cancel: cancel,
	}

	// Start health check routine if configured
	if config.HealthCheckInterval > 0 {
		p.wg.Add(1)
		go p.healthCheckLoop()
	}
	return p
}

// DB returns the underlying *sql.DB.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Driver returns the database/sql driver name.
func (p *Pool) Driver() string {
	return p.driver
}

// Stats represents pool statistics.
type Stats struct {
	MaxOpenConnections int           `json:"max_open_connections"`
	OpenConnections    int           `json:"open_connections"`
	InUse              int           `json:"in_use"`
	Idle               int           `json:"idle"`
	WaitCount          int64         `json:"wait_count"`
	WaitDuration       time.Duration `json:"wait_duration_ns"`
	MaxIdleClosed      int64         `json:"max_idle_closed"`
	MaxLifetimeClosed  int64         `json:"max_lifetime_closed"`
	FailedHealthChecks int64         `json:"failed_health_checks"`
	LastHealthCheck    time.Time     `json:"last_health_check"`
	LastError          string        `json:"last_error,omitempty"`
}

// Stats returns current pool statistics.
func (p *Pool) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	dbStats := p.db.Stats()
	stats := Stats{
		MaxOpenConnections: dbStats.MaxOpenConnections,
		OpenConnections:    dbStats.OpenConnections,
		InUse:              dbStats.InUse,
		Idle:               dbStats.Idle,
		WaitCount:          dbStats.WaitCount,
		WaitDuration:       dbStats.WaitDuration,
		MaxIdleClosed:      dbStats.MaxIdleClosed,
		MaxLifetimeClosed:  dbStats.MaxLifetimeClosed,
		FailedHealthChecks: p.failedChecks,
		LastHealthCheck:    p.lastHealthCheck,
	}
	if p.lastError != nil {
		stats.LastError = p.lastError.Error()
	}
	return stats
}

// HealthCheck pings the database and records the outcome.
func (p *Pool) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)

	p.mu.Lock()
	p.lastHealthCheck = time.Now()
	p.lastError = err
	if err != nil {
		p.failedChecks++
	}
	p.mu.Unlock()

	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// healthCheckLoop runs periodic health checks.
func (p *Pool) healthCheckLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(p.ctx, 5*time.Second)
			if err := p.HealthCheck(ctx); err != nil {
				debug.Warn("database health check failed", "driver", p.driver, "error", err)
			}
			cancel()
		}
	}
}

// Close closes the pool and waits for background routines to finish.
func (p *Pool) Close() error {
	p.cancel()
	p.wg.Wait()
	return p.db.Close()
}

// Exec executes a statement without returning rows.
func (p *Pool) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return p.db.ExecContext(ctx, query, args...)
}

// Query executes a query that returns rows.
func (p *Pool) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return p.db.QueryContext(ctx, query, args...)
}

// QueryRow executes a query that returns at most one row.
func (p *Pool) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return p.db.QueryRowContext(ctx, query, args...)
}

// BeginTx starts a transaction with options. The transaction owns one
// connection until it commits or rolls back.
func (p *Pool) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return p.db.BeginTx(ctx, opts)
}
