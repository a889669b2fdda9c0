package compiler

import (
	"fmt"
	"strings"

	"github.com/hexgate/hexgate/internal/core/query/domain"
)

// CompileInsert compiles an insert. Rows with columns become one multi-row
// INSERT; a payload of empty objects becomes one default-values statement
// per row, to be run in a single transaction.
func (c *SQLCompiler) CompileInsert(addr domain.ResourceAddress, payload domain.MutationPayload) ([]domain.CompiledStatement, error) {
	if addr.Kind != domain.Table {
		return nil, domain.Errorf(domain.ErrMalformedQuery, "%s is not a table", addr)
	}
	if len(payload.Rows) == 0 {
		return nil, domain.Errorf(domain.ErrSchemaMismatch, "payload must contain at least one row")
	}

	cols, err := rowColumns(payload.Rows[0])
	if err != nil {
		return nil, err
	}
	for i, row := range payload.Rows[1:] {
		rowCols, err := rowColumns(row)
		if err != nil {
			return nil, err
		}
		if !sameColumns(cols, rowCols) {
			return nil, domain.Errorf(domain.ErrSchemaMismatch, "row %d has a different key set than row 0", i+1)
		}
	}

	if len(cols) == 0 {
		stmt := c.defaultValuesInsert(addr)
		stmts := make([]domain.CompiledStatement, len(payload.Rows))
		for i := range stmts {
			stmts[i] = stmt
		}
		return stmts, nil
	}

	var sqlBuilder strings.Builder
	args := make([]interface{}, 0, len(cols)*len(payload.Rows))
	argIndex := 1

	sqlBuilder.WriteString("INSERT INTO ")
	sqlBuilder.WriteString(c.table(addr))
	sqlBuilder.WriteString(" (")
	sqlBuilder.WriteString(c.columnList(cols))
	sqlBuilder.WriteString(") VALUES ")

	for i, row := range payload.Rows {
		if i > 0 {
			sqlBuilder.WriteString(", ")
		}
		placeholders := make([]string, len(cols))
		for j, col := range cols {
			v, err := bindValue(row[col.String()])
			if err != nil {
				return nil, err
			}
			placeholders[j] = c.placeholder(&argIndex)
			args = append(args, v)
		}
		sqlBuilder.WriteString("(")
		sqlBuilder.WriteString(strings.Join(placeholders, ", "))
		sqlBuilder.WriteString(")")
	}
	sqlBuilder.WriteString(c.returning(nil))

	return []domain.CompiledStatement{{
		SQL:     sqlBuilder.String(),
		Params:  args,
		Returns: c.caps.Returning,
	}}, nil
}

func (c *SQLCompiler) defaultValuesInsert(addr domain.ResourceAddress) domain.CompiledStatement {
	sql := "INSERT INTO " + c.table(addr)
	if c.dialect == domain.MySQL {
		sql += " () VALUES ()"
	} else {
		sql += " DEFAULT VALUES"
	}
	return domain.CompiledStatement{
		SQL:     sql + c.returning(nil),
		Returns: c.caps.Returning,
	}
}

// CompileUpdate compiles an UPDATE. Without filters it fails with
// ErrMissingFilter unless opts.AllowUnfiltered is set.
func (c *SQLCompiler) CompileUpdate(addr domain.ResourceAddress, spec domain.OperationSpec, payload domain.MutationPayload, opts domain.MutationOptions) (domain.CompiledStatement, error) {
	if err := c.checkMutation(addr, spec, opts, "update"); err != nil {
		return domain.CompiledStatement{}, err
	}
	if payload.Bulk || len(payload.Rows) != 1 {
		return domain.CompiledStatement{}, domain.Errorf(domain.ErrSchemaMismatch, "update payload must be a single JSON object")
	}
	row := payload.Rows[0]
	cols, err := rowColumns(row)
	if err != nil {
		return domain.CompiledStatement{}, err
	}
	if len(cols) == 0 {
		return domain.CompiledStatement{}, domain.Errorf(domain.ErrSchemaMismatch, "update payload must set at least one column")
	}

	var args []interface{}
	argIndex := 1

	// Build SET clauses
	setClauses := make([]string, len(cols))
	for i, col := range cols {
		v, err := bindValue(row[col.String()])
		if err != nil {
			return domain.CompiledStatement{}, err
		}
		setClauses[i] = fmt.Sprintf("%s = %s", c.quote(col), c.placeholder(&argIndex))
		args = append(args, v)
	}

	sql := fmt.Sprintf("UPDATE %s SET %s", c.table(addr), strings.Join(setClauses, ", "))

	// Add WHERE clause
	whereSQL, whereArgs, err := c.buildWhereClause(spec.Filters(), &argIndex)
	if err != nil {
		return domain.CompiledStatement{}, err
	}
	if whereSQL != "" {
		sql += " WHERE " + whereSQL
		args = append(args, whereArgs...)
	}

	return domain.CompiledStatement{
		SQL:     sql + c.returning(spec.Columns()),
		Params:  args,
		Returns: c.caps.Returning,
	}, nil
}

// CompileDelete compiles a DELETE under the same filter rule as update.
func (c *SQLCompiler) CompileDelete(addr domain.ResourceAddress, spec domain.OperationSpec, opts domain.MutationOptions) (domain.CompiledStatement, error) {
	if err := c.checkMutation(addr, spec, opts, "delete"); err != nil {
		return domain.CompiledStatement{}, err
	}

	sql := fmt.Sprintf("DELETE FROM %s", c.table(addr))

	argIndex := 1
	whereSQL, args, err := c.buildWhereClause(spec.Filters(), &argIndex)
	if err != nil {
		return domain.CompiledStatement{}, err
	}
	if whereSQL != "" {
		sql += " WHERE " + whereSQL
	}

	return domain.CompiledStatement{
		SQL:     sql + c.returning(spec.Columns()),
		Params:  args,
		Returns: c.caps.Returning,
	}, nil
}

// checkMutation applies the rules shared by update and delete.
func (c *SQLCompiler) checkMutation(addr domain.ResourceAddress, spec domain.OperationSpec, opts domain.MutationOptions, verb string) error {
	if addr.Kind != domain.Table {
		return domain.Errorf(domain.ErrMalformedQuery, "%s is not a table", addr)
	}
	if !spec.HasFilters() && !opts.AllowUnfiltered {
		return domain.Errorf(domain.ErrMissingFilter, "%s on %s requires at least one filter", verb, addr)
	}
	if _, ok := spec.Limit(); ok {
		return domain.Errorf(domain.ErrMalformedQuery, "limit is not allowed on %s", verb)
	}
	if _, ok := spec.Offset(); ok {
		return domain.Errorf(domain.ErrMalformedQuery, "offset is not allowed on %s", verb)
	}
	if len(spec.Sort()) > 0 {
		return domain.Errorf(domain.ErrMalformedQuery, "sort is not allowed on %s", verb)
	}
	if spec.Distinct() {
		return domain.Errorf(domain.ErrMalformedQuery, "distinct is not allowed on %s", verb)
	}
	return nil
}
