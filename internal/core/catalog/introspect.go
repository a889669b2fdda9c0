package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hexgate/hexgate/internal/core/query/domain"
)

// Querier runs catalog queries. database.Adapter satisfies it.
type Querier interface {
	Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// introspector holds the catalog queries of one dialect. Every query
// returns schema and name first; tables add the table type, columns add
// the column name.
type introspector struct {
	tables    string
	columns   string
	functions string
	system    map[string]bool
}

var introspectors = map[domain.SQLDialect]introspector{
	domain.PostgreSQL: {
		tables: `SELECT table_schema, table_name, table_type
			FROM information_schema.tables
			ORDER BY table_schema, table_name`,
		columns: `SELECT table_schema, table_name, column_name
			FROM information_schema.columns
			ORDER BY table_schema, table_name, ordinal_position`,
		functions: `SELECT n.nspname, p.proname
			FROM pg_catalog.pg_proc p
			JOIN pg_catalog.pg_namespace n ON n.oid = p.pronamespace
			ORDER BY n.nspname, p.proname`,
		system: map[string]bool{"pg_catalog": true, "information_schema": true, "pg_toast": true},
	},
	domain.MySQL: {
		tables: `SELECT table_schema, table_name, table_type
			FROM information_schema.tables
			ORDER BY table_schema, table_name`,
		columns: `SELECT table_schema, table_name, column_name
			FROM information_schema.columns
			ORDER BY table_schema, table_name, ordinal_position`,
		functions: `SELECT routine_schema, routine_name
			FROM information_schema.routines
			WHERE routine_type = 'FUNCTION'
			ORDER BY routine_schema, routine_name`,
		system: map[string]bool{"mysql": true, "information_schema": true, "performance_schema": true, "sys": true},
	},
	domain.SQLite: {
		tables: `SELECT 'main', name, type
			FROM sqlite_master
			WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
			ORDER BY name`,
		columns: `SELECT 'main', m.name, p.name
			FROM sqlite_master m
			JOIN pragma_table_info(m.name) p
			WHERE m.type IN ('table', 'view') AND m.name NOT LIKE 'sqlite_%'
			ORDER BY m.name, p.cid`,
		system: map[string]bool{},
	},
}

func introspectorFor(dialect domain.SQLDialect) (introspector, error) {
	in, ok := introspectors[dialect]
	if !ok {
		return introspector{}, fmt.Errorf("no catalog queries for dialect %s", dialect)
	}
	return in, nil
}

// scan runs query and calls fn with each row's text columns.
func scan(ctx context.Context, q Querier, query string, width int, fn func(cols []string)) error {
	rows, err := q.Query(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	cols := make([]string, width)
	ptrs := make([]interface{}, width)
	for i := range cols {
		ptrs[i] = &cols[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		fn(cols)
	}
	return rows.Err()
}
