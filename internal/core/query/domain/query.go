// Package domain contains the value types shared by the query parser,
// compiler, executor and mapper.
package domain

import "fmt"

// Operator is a filter comparison operator. The set is closed; every
// operator is listed in Operators.
type Operator int

const (
	// Eq is "=".
	Eq Operator = iota + 1
	// Neq is "<>".
	Neq
	// Gt is ">".
	Gt
	// Gte is ">=".
	Gte
	// Lt is "<".
	Lt
	// Lte is "<=".
	Lte
	// Like is a case-sensitive pattern match.
	Like
	// ILike is a case-insensitive pattern match.
	ILike
	// IsNull tests for NULL (operand true) or NOT NULL (operand false).
	IsNull
	// In tests list membership.
	In
)

// Operators maps query-string tokens to operators.
var Operators = map[string]Operator{
	"eq":      Eq,
	"neq":     Neq,
	"gt":      Gt,
	"gte":     Gte,
	"lt":      Lt,
	"lte":     Lte,
	"like":    Like,
	"ilike":   ILike,
	"is_null": IsNull,
	"in":      In,
}

// String returns the query-string token.
func (o Operator) String() string {
	for token, op := range Operators {
		if op == o {
			return token
		}
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

// Operand is a filter value: either a single value or a list.
type Operand struct {
	value  string
	list   []string
	isList bool
}

// ValueOperand creates a single-value operand.
func ValueOperand(v string) Operand {
	return Operand{value: v}
}

// ListOperand creates a list operand.
func ListOperand(values []string) Operand {
	return Operand{list: append([]string(nil), values...), isList: true}
}

// IsList reports whether the operand is a list.
func (o Operand) IsList() bool {
	return o.isList
}

// Value returns the single value.
func (o Operand) Value() string {
	return o.value
}

// List returns a copy of the list values.
func (o Operand) List() []string {
	return append([]string(nil), o.list...)
}

// FilterClause is one column-operator-operand condition.
type FilterClause struct {
	Column   Identifier
	Operator Operator
	Operand  Operand
}

// SortDirection is the ORDER BY direction.
type SortDirection int

const (
	// Asc sorts ascending.
	Asc SortDirection = iota
	// Desc sorts descending.
	Desc
)

// NullsOrder controls NULL placement in ORDER BY.
type NullsOrder int

const (
	// NullsDefault leaves NULL placement to the backend.
	NullsDefault NullsOrder = iota
	// NullsFirst sorts NULLs first.
	NullsFirst
	// NullsLast sorts NULLs last.
	NullsLast
)

// SortClause is one ORDER BY key.
type SortClause struct {
	Column    Identifier
	Direction SortDirection
	Nulls     NullsOrder
}

// OperationSpec is the parsed, immutable form of a query string.
type OperationSpec struct {
	limit      *uint64
	offset     *uint64
	columns    []Identifier
	distinct   bool
	distinctOn []Identifier
	filters    []FilterClause
	sort       []SortClause
}

// SpecParts carries the fields used to build an OperationSpec.
type SpecParts struct {
	Limit      *uint64
	Offset     *uint64
	Columns    []Identifier
	Distinct   bool
	DistinctOn []Identifier
	Filters    []FilterClause
	Sort       []SortClause
}

// NewOperationSpec copies parts into an immutable spec.
func NewOperationSpec(p SpecParts) OperationSpec {
	s := OperationSpec{
		distinct:   p.Distinct || len(p.DistinctOn) > 0,
		columns:    append([]Identifier(nil), p.Columns...),
		distinctOn: append([]Identifier(nil), p.DistinctOn...),
		filters:    append([]FilterClause(nil), p.Filters...),
		sort:       append([]SortClause(nil), p.Sort...),
	}
	if p.Limit != nil {
		v := *p.Limit
		s.limit = &v
	}
	if p.Offset != nil {
		v := *p.Offset
		s.offset = &v
	}
	return s
}

// Limit returns the row cap, if any.
func (s OperationSpec) Limit() (uint64, bool) {
	if s.limit == nil {
		return 0, false
	}
	return *s.limit, true
}

// Offset returns the number of skipped rows, if any.
func (s OperationSpec) Offset() (uint64, bool) {
	if s.offset == nil {
		return 0, false
	}
	return *s.offset, true
}

// Columns returns the projected columns; empty means all.
func (s OperationSpec) Columns() []Identifier {
	return append([]Identifier(nil), s.columns...)
}

// Distinct reports whether rows are deduplicated. It is true whenever
// DistinctOn is non-empty.
func (s OperationSpec) Distinct() bool {
	return s.distinct
}

// DistinctOn returns the DISTINCT ON columns.
func (s OperationSpec) DistinctOn() []Identifier {
	return append([]Identifier(nil), s.distinctOn...)
}

// Filters returns the AND-combined filter clauses in query order.
func (s OperationSpec) Filters() []FilterClause {
	return append([]FilterClause(nil), s.filters...)
}

// Sort returns the ORDER BY keys in precedence order.
func (s OperationSpec) Sort() []SortClause {
	return append([]SortClause(nil), s.sort...)
}

// HasFilters reports whether any filter clause is present.
func (s OperationSpec) HasFilters() bool {
	return len(s.filters) > 0
}

// Row is one object of a mutation payload.
type Row map[string]interface{}

// MutationPayload is a decoded JSON object or array of objects.
type MutationPayload struct {
	Rows []Row
	// Bulk is true when the payload was a JSON array.
	Bulk bool
}

// SinglePayload wraps one row.
func SinglePayload(row Row) MutationPayload {
	return MutationPayload{Rows: []Row{row}}
}

// BulkPayload wraps several rows.
func BulkPayload(rows []Row) MutationPayload {
	return MutationPayload{Rows: rows, Bulk: true}
}

// MutationOptions tunes update and delete compilation.
type MutationOptions struct {
	// AllowUnfiltered permits UPDATE and DELETE without filters.
	AllowUnfiltered bool
}

// CompiledStatement is SQL text plus its ordered bound parameters.
type CompiledStatement struct {
	SQL    string
	Params []interface{}
	// Returns is true when the statement yields rows.
	Returns bool
}

// Identity is the already-authorized caller attached by the auth layer.
type Identity struct {
	// Role is applied with SET LOCAL ROLE before any statement runs.
	Role Identifier
}

// SQLDialect represents a SQL dialect.
type SQLDialect string

const (
	// PostgreSQL dialect.
	PostgreSQL SQLDialect = "postgres"
	// MySQL dialect.
	MySQL SQLDialect = "mysql"
	// SQLite dialect.
	SQLite SQLDialect = "sqlite"
)
