// Package postgres implements the PostgreSQL database adapter. Both lib/pq
// (driver "pq", the default) and pgx (driver "pgx") are supported.
package postgres

import (
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "github.com/lib/pq"              // registers the "postgres" driver

	"github.com/hexgate/hexgate/internal/adapters/database"
	"github.com/hexgate/hexgate/internal/core/query/domain"
	"github.com/hexgate/hexgate/internal/core/query/mapper"
)

// Driver names accepted in database.Config.Driver.
const (
	DriverPQ  = "pq"
	DriverPGX = "pgx"
)

// PostgresAdapter implements the database.Adapter interface for PostgreSQL.
type PostgresAdapter struct {
	*database.SQLAdapter
}

// NewPostgresAdapter creates a new PostgreSQL adapter.
func NewPostgresAdapter(config database.Config) (*PostgresAdapter, error) {
	spec, err := Spec(config.Driver)
	if err != nil {
		return nil, err
	}
	return &PostgresAdapter{SQLAdapter: database.NewSQLAdapter(spec, config)}, nil
}

// Spec returns the driver description for driver.
func Spec(driver string) (database.DriverSpec, error) {
	spec := database.DriverSpec{
		Dialect:      domain.PostgreSQL,
		Classify:     ClassifyError,
		Decoder:      mapper.DecoderFunc(DecodeValue),
		VersionQuery: "SHOW server_version",
		Role:         roleStatement,
	}
	switch driver {
	case "", DriverPQ:
		spec.DriverName = "postgres"
	case DriverPGX:
		spec.DriverName = "pgx"
	default:
		return database.DriverSpec{}, fmt.Errorf("unsupported postgres driver: %s", driver)
	}
	return spec, nil
}

// roleStatement scopes the role to the current transaction only.
func roleStatement(role string) string {
	return `SET LOCAL ROLE "` + role + `"`
}

// Ensure PostgresAdapter implements Adapter interface.
var _ database.Adapter = (*PostgresAdapter)(nil)
