package compiler

import (
	"strings"

	"github.com/hexgate/hexgate/internal/core/query/domain"
)

// CompileSelect compiles a table read.
func (c *SQLCompiler) CompileSelect(addr domain.ResourceAddress, spec domain.OperationSpec) (domain.CompiledStatement, error) {
	if addr.Kind != domain.Table {
		return domain.CompiledStatement{}, domain.Errorf(domain.ErrMalformedQuery, "%s is not a table", addr)
	}
	argIndex := 1
	return c.compileSelectFrom(c.table(addr), nil, spec, &argIndex)
}

// compileSelectFrom wraps source (a table or a function call) with the
// spec's shaping clauses. sourceArgs are bound before filter values.
func (c *SQLCompiler) compileSelectFrom(source string, sourceArgs []interface{}, spec domain.OperationSpec, argIndex *int) (domain.CompiledStatement, error) {
	var sqlBuilder strings.Builder
	args := append([]interface{}(nil), sourceArgs...)

	// SELECT clause
	sqlBuilder.WriteString("SELECT ")
	if on := spec.DistinctOn(); len(on) > 0 {
		if !c.caps.DistinctOn {
			return domain.CompiledStatement{}, domain.Errorf(domain.ErrUnsupported, "distinct_on is not supported by %s", c.dialect)
		}
		sqlBuilder.WriteString("DISTINCT ON (")
		sqlBuilder.WriteString(c.columnList(on))
		sqlBuilder.WriteString(") ")
	} else if spec.Distinct() {
		sqlBuilder.WriteString("DISTINCT ")
	}
	sqlBuilder.WriteString(c.columnList(spec.Columns()))

	// FROM clause
	sqlBuilder.WriteString(" FROM ")
	sqlBuilder.WriteString(source)

	// WHERE clause
	whereClause, whereArgs, err := c.buildWhereClause(spec.Filters(), argIndex)
	if err != nil {
		return domain.CompiledStatement{}, err
	}
	if whereClause != "" {
		sqlBuilder.WriteString(" WHERE ")
		sqlBuilder.WriteString(whereClause)
		args = append(args, whereArgs...)
	}

	// ORDER BY clause
	if sorts := spec.Sort(); len(sorts) > 0 {
		sqlBuilder.WriteString(" ORDER BY ")
		sqlBuilder.WriteString(c.buildOrderBy(sorts))
	}

	// LIMIT and OFFSET
	sqlBuilder.WriteString(c.buildPagination(spec))

	return domain.CompiledStatement{
		SQL:     sqlBuilder.String(),
		Params:  args,
		Returns: true,
	}, nil
}
