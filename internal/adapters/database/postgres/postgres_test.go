package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexgate/hexgate/internal/adapters/database"
	"github.com/hexgate/hexgate/internal/core/query/domain"
)

func TestDecodeValue_Arrays(t *testing.T) {
	tests := []struct {
		name   string
		dbType string
		in     interface{}
		want   interface{}
	}{
		{"int array", "_INT4", []byte("{1,2,NULL}"), []interface{}{int64(1), int64(2), nil}},
		{"float array", "_FLOAT8", "{1.5,2}", []interface{}{1.5, float64(2)}},
		{"bool array", "_BOOL", []byte("{t,f}"), []interface{}{true, false}},
		{"text array", "_TEXT", []byte(`{a,"b,c",NULL}`), []interface{}{"a", "b,c", nil}},
		{"numeric array", "_NUMERIC", []byte("{1.10,2}"), []interface{}{json.Number("1.10"), json.Number("2")}},
		{"empty array", "_INT8", []byte("{}"), []interface{}{}},
		{"two dimensional", "_INT4", []byte("{{1,2},{3,4}}"), "{{1,2},{3,4}}"},
		{"scalar passthrough", "INT4", int64(5), int64(5)},
		{"null array", "_INT4", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeValue(tt.dbType, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		kind       error
		code       string
		category   domain.Category
		connection bool
	}{
		{"pq unique", &pq.Error{Code: "23505", Message: "duplicate key value"}, domain.ErrBackend, "23505", domain.CategoryIntegrity, false},
		{"pgx fk", &pgconn.PgError{Code: "23503", Message: "violates foreign key"}, domain.ErrBackend, "23503", domain.CategoryIntegrity, false},
		{"undefined table", &pq.Error{Code: "42P01", Message: `relation "x" does not exist`}, domain.ErrBackend, "42P01", domain.CategoryUndefined, false},
		{"undefined function", &pgconn.PgError{Code: "42883", Message: "function does not exist"}, domain.ErrBackend, "42883", domain.CategoryUndefined, false},
		{"undefined column", &pq.Error{Code: "42703", Message: "column does not exist"}, domain.ErrBackend, "42703", domain.CategoryInvalidData, false},
		{"bad input", &pq.Error{Code: "22P02", Message: "invalid input syntax for type integer"}, domain.ErrBackend, "22P02", domain.CategoryInvalidData, false},
		{"permission", &pq.Error{Code: "42501", Message: "permission denied"}, domain.ErrBackend, "42501", domain.CategoryPermission, false},
		{"connection", &pq.Error{Code: "08006", Message: "connection failure"}, domain.ErrBackend, "08006", domain.CategoryNone, true},
		{"serialization", &pgconn.PgError{Code: "40001", Message: "could not serialize"}, domain.ErrTransactionAborted, "40001", domain.CategoryNone, false},
		{"canceled", &pq.Error{Code: "57014", Message: "canceling statement"}, domain.ErrTimeout, "57014", domain.CategoryNone, false},
		{"wrapped", fmt.Errorf("exec: %w", &pq.Error{Code: "23502", Message: "null value"}), domain.ErrBackend, "23502", domain.CategoryIntegrity, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := ClassifyError(tt.err)
			require.NotNil(t, e)
			assert.ErrorIs(t, e, tt.kind)
			assert.Equal(t, tt.code, e.Code)
			assert.Equal(t, tt.category, e.Category)
			assert.Equal(t, tt.connection, e.Connection)
		})
	}

	assert.Nil(t, ClassifyError(errors.New("other")))
}

func TestClassifyError_HidesSyntaxDetail(t *testing.T) {
	e := ClassifyError(&pq.Error{Code: "42601", Message: `syntax error at or near "FROM"`})
	require.NotNil(t, e)
	assert.Equal(t, "SQL syntax error", e.Message)
}

func TestSpec(t *testing.T) {
	spec, err := Spec("")
	require.NoError(t, err)
	assert.Equal(t, "postgres", spec.DriverName)

	spec, err = Spec(DriverPGX)
	require.NoError(t, err)
	assert.Equal(t, "pgx", spec.DriverName)

	_, err = Spec("odbc")
	assert.Error(t, err)
}

func TestRoleStatement(t *testing.T) {
	a, err := NewPostgresAdapter(database.Config{})
	require.NoError(t, err)

	stmt, err := a.RoleStatement(domain.MustIdentifier("web_anon"))
	require.NoError(t, err)
	assert.Equal(t, `SET LOCAL ROLE "web_anon"`, stmt)
	assert.Equal(t, domain.PostgreSQL, a.GetDialect())
}
