// Package sqlite implements the SQLite database adapter.
package sqlite

import (
	"net/url"
	"strings"

	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver

	"github.com/hexgate/hexgate/internal/adapters/database"
	"github.com/hexgate/hexgate/internal/core/database/pool"
	"github.com/hexgate/hexgate/internal/core/query/domain"
)

// SQLiteAdapter implements the database.Adapter interface for SQLite.
type SQLiteAdapter struct {
	*database.SQLAdapter
}

// NewSQLiteAdapter creates a new SQLite adapter.
func NewSQLiteAdapter(config database.Config) (*SQLiteAdapter, error) {
	return &SQLiteAdapter{SQLAdapter: database.NewSQLAdapter(Spec(), config)}, nil
}

// Spec returns the driver description. SQLite has no roles.
func Spec() database.DriverSpec {
	return database.DriverSpec{
		Dialect:      domain.SQLite,
		DriverName:   "sqlite3",
		NormalizeDSN: NormalizeDSN,
		AdjustPool:   AdjustPool,
		Classify:     ClassifyError,
		VersionQuery: "SELECT sqlite_version()",
	}
}

// defaultOptions are added to every DSN unless already present.
var defaultOptions = [][2]string{
	{"_foreign_keys", "on"},
	{"_busy_timeout", "5000"},
}

// NormalizeDSN strips a sqlite:// or sqlite: scheme and enables foreign
// keys and a busy timeout.
func NormalizeDSN(raw string) (string, error) {
	dsn := strings.TrimPrefix(raw, "sqlite://")
	dsn = strings.TrimPrefix(dsn, "sqlite:")
	if dsn == "" {
		dsn = ":memory:"
	}

	path, rawQuery, _ := strings.Cut(dsn, "?")
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "", domain.Wrap(domain.ErrMalformedQuery, err, "invalid sqlite dsn options")
	}
	for _, opt := range defaultOptions {
		if _, ok := query[opt[0]]; !ok {
			query.Set(opt[0], opt[1])
		}
	}
	return path + "?" + query.Encode(), nil
}

// IsMemory reports whether dsn names an in-memory database.
func IsMemory(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// AdjustPool pins in-memory databases to a single connection that never
// expires, since each connection would otherwise see its own database.
func AdjustPool(dsn string, cfg *pool.Config) {
	if !IsMemory(dsn) {
		return
	}
	cfg.MaxOpenConns = 1
	cfg.MaxIdleConns = 1
	cfg.ConnMaxLifetime = 0
	cfg.ConnMaxIdleTime = 0
}

// Ensure SQLiteAdapter implements Adapter interface.
var _ database.Adapter = (*SQLiteAdapter)(nil)
