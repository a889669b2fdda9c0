package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hexgate/hexgate/internal/core/database/pool"
	"github.com/hexgate/hexgate/internal/core/query/domain"
	"github.com/hexgate/hexgate/internal/core/query/mapper"
)

// DriverSpec describes how a dialect talks to database/sql.
type DriverSpec struct {
	Dialect domain.SQLDialect
	// DriverName is the registered database/sql driver.
	DriverName string
	// NormalizeDSN rewrites the configured URL for the driver.
	NormalizeDSN func(url string) (string, error)
	// AdjustPool tweaks pool settings for the DSN.
	AdjustPool func(dsn string, cfg *pool.Config)
	// Classify recognizes driver errors; it returns nil for unknown ones.
	Classify func(err error) *domain.Error
	// Decoder converts scanned values; nil means mapper.DefaultDecoder.
	Decoder mapper.ValueDecoder
	// VersionQuery returns the server version as a single text column.
	VersionQuery string
	// Role builds the role switch statement; nil means roles are unsupported.
	Role func(role string) string
}

// SQLAdapter implements Adapter over database/sql for any DriverSpec.
type SQLAdapter struct {
	spec   DriverSpec
	config Config
	pool   *pool.Pool
}

// NewSQLAdapter creates an adapter; call Connect before use.
func NewSQLAdapter(spec DriverSpec, config Config) *SQLAdapter {
	return &SQLAdapter{spec: spec, config: config}
}

// Connect opens and pings the connection pool.
func (a *SQLAdapter) Connect(ctx context.Context) error {
	dsn := a.config.URL
	if a.spec.NormalizeDSN != nil {
		var err error
		if dsn, err = a.spec.NormalizeDSN(dsn); err != nil {
			return err
		}
	}
	cfg := a.config.Pool
	if a.spec.AdjustPool != nil {
		a.spec.AdjustPool(dsn, &cfg)
	}

	p, err := pool.Open(ctx, a.spec.DriverName, dsn, cfg)
	if err != nil {
		return err
	}
	a.pool = p
	return nil
}

// Disconnect closes the pool.
func (a *SQLAdapter) Disconnect(ctx context.Context) error {
	if a.pool != nil {
		return a.pool.Close()
	}
	return nil
}

// Pool returns the connection pool.
func (a *SQLAdapter) Pool() *pool.Pool {
	return a.pool
}

// Execute executes a statement without returning rows.
func (a *SQLAdapter) Execute(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if a.pool == nil {
		return nil, errNotConnected
	}
	return a.pool.Exec(ctx, query, args...)
}

// Query executes a query that returns rows.
func (a *SQLAdapter) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	if a.pool == nil {
		return nil, errNotConnected
	}
	return a.pool.Query(ctx, query, args...)
}

// QueryRow executes a query that returns a single row.
func (a *SQLAdapter) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	if a.pool == nil {
		return nil
	}
	return a.pool.QueryRow(ctx, query, args...)
}

// Begin starts a new transaction.
func (a *SQLAdapter) Begin(ctx context.Context, opts *sql.TxOptions) (Transaction, error) {
	if a.pool == nil {
		return nil, errNotConnected
	}
	tx, err := a.pool.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &SQLTransaction{tx: tx}, nil
}

// Ping checks if the database connection is alive.
func (a *SQLAdapter) Ping(ctx context.Context) error {
	if a.pool == nil {
		return errNotConnected
	}
	return a.pool.HealthCheck(ctx)
}

// GetDialect returns the SQL dialect.
func (a *SQLAdapter) GetDialect() domain.SQLDialect {
	return a.spec.Dialect
}

// ValueDecoder returns the dialect's decoder.
func (a *SQLAdapter) ValueDecoder() mapper.ValueDecoder {
	if a.spec.Decoder == nil {
		return mapper.DefaultDecoder
	}
	return a.spec.Decoder
}

// RoleStatement returns the role switch statement for the dialect.
func (a *SQLAdapter) RoleStatement(role domain.Identifier) (string, error) {
	if a.spec.Role == nil {
		return "", domain.Errorf(domain.ErrUnsupported, "roles are not supported by %s", a.spec.Dialect)
	}
	return a.spec.Role(role.String()), nil
}

// ServerVersion queries the backend version.
func (a *SQLAdapter) ServerVersion(ctx context.Context) (string, error) {
	if a.pool == nil {
		return "", errNotConnected
	}
	var v string
	if err := a.pool.QueryRow(ctx, a.spec.VersionQuery).Scan(&v); err != nil {
		return "", a.ClassifyError(err)
	}
	return v, nil
}

// SQLTransaction implements the Transaction interface.
type SQLTransaction struct {
	tx *sql.Tx
}

// Commit commits the transaction.
func (t *SQLTransaction) Commit() error {
	return t.tx.Commit()
}

// Rollback rolls back the transaction.
func (t *SQLTransaction) Rollback() error {
	return t.tx.Rollback()
}

// Execute executes a statement within the transaction.
func (t *SQLTransaction) Execute(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}

// Query executes a query within the transaction.
func (t *SQLTransaction) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, query, args...)
}

// Ensure SQLAdapter implements Adapter interface.
var _ Adapter = (*SQLAdapter)(nil)

// Ensure SQLTransaction implements Transaction interface.
var _ Transaction = (*SQLTransaction)(nil)
