// Package database defines database adapter interfaces.
package database

import (
	"context"
	"database/sql"

	"github.com/hexgate/hexgate/internal/core/database/pool"
	"github.com/hexgate/hexgate/internal/core/query/domain"
	"github.com/hexgate/hexgate/internal/core/query/mapper"
)

// Adapter defines the database adapter interface.
type Adapter interface {
	// Connect opens the connection pool.
	Connect(ctx context.Context) error

	// Disconnect closes the connection pool.
	Disconnect(ctx context.Context) error

	// Execute executes a SQL statement.
	Execute(ctx context.Context, query string, args ...interface{}) (sql.Result, error)

	// Query executes a query that returns rows.
	Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)

	// QueryRow executes a query that returns a single row.
	QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row

	// Begin starts a transaction bound to one pooled connection.
	Begin(ctx context.Context, opts *sql.TxOptions) (Transaction, error)

	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// GetDialect returns the SQL dialect.
	GetDialect() domain.SQLDialect

	// ClassifyError maps a driver error onto the gateway error taxonomy,
	// keeping the backend's native code.
	ClassifyError(err error) error

	// ValueDecoder returns the decoder for scanned values.
	ValueDecoder() mapper.ValueDecoder

	// RoleStatement returns the statement that switches the current
	// transaction to role.
	RoleStatement(role domain.Identifier) (string, error)

	// ServerVersion returns the backend's version string.
	ServerVersion(ctx context.Context) (string, error)

	// Pool returns the connection pool, or nil before Connect.
	Pool() *pool.Pool
}

// Transaction defines the transaction interface.
type Transaction interface {
	// Commit commits the transaction.
	Commit() error

	// Rollback rolls back the transaction.
	Rollback() error

	// Execute executes a statement within the transaction.
	Execute(ctx context.Context, query string, args ...interface{}) (sql.Result, error)

	// Query executes a query within the transaction.
	Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Config holds database connection configuration.
type Config struct {
	// Provider is postgres, mysql or sqlite.
	Provider string
	// Driver selects the PostgreSQL driver: pq (default) or pgx.
	Driver string
	// URL is the data source name.
	URL  string
	Pool pool.Config
}
