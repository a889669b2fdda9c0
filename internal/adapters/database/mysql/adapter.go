// Package mysql implements the MySQL database adapter.
package mysql

import (
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/hexgate/hexgate/internal/adapters/database"
	"github.com/hexgate/hexgate/internal/core/query/domain"
)

// MySQLAdapter implements the database.Adapter interface for MySQL.
type MySQLAdapter struct {
	*database.SQLAdapter
}

// NewMySQLAdapter creates a new MySQL adapter.
func NewMySQLAdapter(config database.Config) (*MySQLAdapter, error) {
	return &MySQLAdapter{SQLAdapter: database.NewSQLAdapter(Spec(), config)}, nil
}

// Spec returns the driver description. MySQL has no transaction-scoped
// role switch, so identity roles are rejected.
func Spec() database.DriverSpec {
	return database.DriverSpec{
		Dialect:      domain.MySQL,
		DriverName:   "mysql",
		NormalizeDSN: NormalizeDSN,
		Classify:     ClassifyError,
		VersionQuery: "SELECT VERSION()",
	}
}

// NormalizeDSN accepts a driver DSN with an optional mysql:// prefix and
// forces the options the gateway relies on.
func NormalizeDSN(raw string) (string, error) {
	cfg, err := mysql.ParseDSN(strings.TrimPrefix(raw, "mysql://"))
	if err != nil {
		return "", fmt.Errorf("invalid mysql dsn: %w", err)
	}
	// DATE and DATETIME scan into time.Time
	cfg.ParseTime = true
	// placeholders stay server-side
	cfg.InterpolateParams = false
	cfg.MultiStatements = false
	return cfg.FormatDSN(), nil
}

// Ensure MySQLAdapter implements Adapter interface.
var _ database.Adapter = (*MySQLAdapter)(nil)
