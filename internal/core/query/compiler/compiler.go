// Package compiler implements SQL compilation from resource addresses and
// operation specs. Compilation is pure: nothing here touches a backend.
package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hexgate/hexgate/internal/core/query/domain"
)

// Capabilities lists dialect features the compiler may emit.
type Capabilities struct {
	// Returning allows RETURNING on insert, update and delete.
	Returning bool
	// NullsOrdering allows NULLS FIRST/LAST in ORDER BY.
	NullsOrdering bool
	// DistinctOn allows DISTINCT ON (...).
	DistinctOn bool
	// NamedArgs allows fn("arg" := $1) calls.
	NamedArgs bool
	// ILike allows the ILIKE operator.
	ILike bool
}

// CapabilitiesFor returns the features of the dialect's current releases.
func CapabilitiesFor(dialect domain.SQLDialect) Capabilities {
	switch dialect {
	case domain.PostgreSQL:
		return Capabilities{Returning: true, NullsOrdering: true, DistinctOn: true, NamedArgs: true, ILike: true}
	case domain.SQLite:
		return Capabilities{Returning: true, NullsOrdering: true}
	default:
		return Capabilities{}
	}
}

// SQLCompiler compiles statements for one dialect.
type SQLCompiler struct {
	dialect domain.SQLDialect
	caps    Capabilities
}

// NewSQLCompiler creates a new SQL compiler.
func NewSQLCompiler(dialect domain.SQLDialect) *SQLCompiler {
	return &SQLCompiler{
		dialect: dialect,
		caps:    CapabilitiesFor(dialect),
	}
}

// WithCapabilities returns a copy of c restricted to caps. It is used when
// the connected server is older than the dialect defaults assume.
func (c *SQLCompiler) WithCapabilities(caps Capabilities) *SQLCompiler {
	return &SQLCompiler{dialect: c.dialect, caps: caps}
}

// Dialect returns the target dialect.
func (c *SQLCompiler) Dialect() domain.SQLDialect {
	return c.dialect
}

// Capabilities returns the features the compiler emits.
func (c *SQLCompiler) Capabilities() Capabilities {
	return c.caps
}

// quote quotes a validated identifier.
func (c *SQLCompiler) quote(id domain.Identifier) string {
	if c.dialect == domain.MySQL {
		return "`" + strings.ReplaceAll(id.String(), "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(id.String(), `"`, `""`) + `"`
}

func (c *SQLCompiler) table(addr domain.ResourceAddress) string {
	return c.quote(addr.Schema) + "." + c.quote(addr.Name)
}

func (c *SQLCompiler) columnList(cols []domain.Identifier) string {
	if len(cols) == 0 {
		return "*"
	}
	quoted := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = c.quote(col)
	}
	return strings.Join(quoted, ", ")
}

// placeholder returns the appropriate placeholder for the dialect.
func (c *SQLCompiler) placeholder(argIndex *int) string {
	defer func() { *argIndex++ }()

	switch c.dialect {
	case domain.PostgreSQL:
		return fmt.Sprintf("$%d", *argIndex)
	case domain.MySQL, domain.SQLite:
		return "?"
	default:
		return "?"
	}
}

// buildWhereClause AND-joins the filter clauses.
func (c *SQLCompiler) buildWhereClause(filters []domain.FilterClause, argIndex *int) (string, []interface{}, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}

	clauses := make([]string, 0, len(filters))
	var args []interface{}
	for _, f := range filters {
		clause, condArgs, err := c.buildCondition(f, argIndex)
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, clause)
		args = append(args, condArgs...)
	}
	return strings.Join(clauses, " AND "), args, nil
}

// buildCondition builds a single condition.
func (c *SQLCompiler) buildCondition(f domain.FilterClause, argIndex *int) (string, []interface{}, error) {
	col := c.quote(f.Column)

	binary := func(op string) (string, []interface{}, error) {
		return fmt.Sprintf("%s %s %s", col, op, c.placeholder(argIndex)), []interface{}{f.Operand.Value()}, nil
	}

	switch f.Operator {
	case domain.Eq:
		return binary("=")
	case domain.Neq:
		return binary("<>")
	case domain.Gt:
		return binary(">")
	case domain.Gte:
		return binary(">=")
	case domain.Lt:
		return binary("<")
	case domain.Lte:
		return binary("<=")
	case domain.Like:
		return binary("LIKE")
	case domain.ILike:
		if c.caps.ILike {
			return binary("ILIKE")
		}
		return fmt.Sprintf("LOWER(%s) LIKE LOWER(%s)", col, c.placeholder(argIndex)), []interface{}{f.Operand.Value()}, nil
	case domain.IsNull:
		if f.Operand.Value() == "false" {
			return col + " IS NOT NULL", nil, nil
		}
		return col + " IS NULL", nil, nil
	case domain.In:
		values := f.Operand.List()
		if len(values) == 0 {
			return "", nil, domain.Errorf(domain.ErrMalformedQuery, "in on %s requires at least one value", f.Column)
		}
		placeholders := make([]string, len(values))
		args := make([]interface{}, len(values))
		for i, v := range values {
			placeholders[i] = c.placeholder(argIndex)
			args[i] = v
		}
		return fmt.Sprintf("%s IN (%s)", col, strings.Join(placeholders, ", ")), args, nil
	default:
		return "", nil, domain.Errorf(domain.ErrMalformedQuery, "unsupported operator %s", f.Operator)
	}
}

// buildOrderBy renders the sort keys.
func (c *SQLCompiler) buildOrderBy(sorts []domain.SortClause) string {
	keys := make([]string, 0, len(sorts))
	for _, s := range sorts {
		col := c.quote(s.Column)
		dir := "ASC"
		if s.Direction == domain.Desc {
			dir = "DESC"
		}

		if s.Nulls != domain.NullsDefault && !c.caps.NullsOrdering {
			// emulate with a leading null-flag key: 1 sorts after 0
			flag := col + " IS NULL"
			if c.dialect == domain.MySQL {
				flag = "ISNULL(" + col + ")"
			}
			if s.Nulls == domain.NullsFirst {
				keys = append(keys, flag+" DESC")
			} else {
				keys = append(keys, flag+" ASC")
			}
		}

		key := col + " " + dir
		if c.caps.NullsOrdering {
			switch s.Nulls {
			case domain.NullsFirst:
				key += " NULLS FIRST"
			case domain.NullsLast:
				key += " NULLS LAST"
			}
		}
		keys = append(keys, key)
	}
	return strings.Join(keys, ", ")
}

// buildPagination renders LIMIT and OFFSET as literals. Both are validated
// unsigned integers, never client text.
func (c *SQLCompiler) buildPagination(spec domain.OperationSpec) string {
	var b strings.Builder
	limit, hasLimit := spec.Limit()
	offset, hasOffset := spec.Offset()

	if hasLimit {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.FormatUint(limit, 10))
	} else if hasOffset {
		switch c.dialect {
		case domain.MySQL:
			b.WriteString(" LIMIT 18446744073709551615")
		case domain.SQLite:
			b.WriteString(" LIMIT -1")
		}
	}
	if hasOffset {
		b.WriteString(" OFFSET ")
		b.WriteString(strconv.FormatUint(offset, 10))
	}
	return b.String()
}

// returning renders the RETURNING clause, or "" when unsupported.
func (c *SQLCompiler) returning(cols []domain.Identifier) string {
	if !c.caps.Returning {
		return ""
	}
	return " RETURNING " + c.columnList(cols)
}
