package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/hexgate/hexgate/internal/adapters/database"
	"github.com/hexgate/hexgate/internal/core/query/domain"
)

// ClassifyError recognizes lib/pq and pgx server errors by SQLSTATE.
func ClassifyError(err error) *domain.Error {
	var code, msg string

	var pqErr *pq.Error
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pqErr):
		code, msg = string(pqErr.Code), pqErr.Message
	case errors.As(err, &pgErr):
		code, msg = pgErr.Code, pgErr.Message
	default:
		return nil
	}
	return FromSQLState(code, msg, err)
}

// FromSQLState classifies a SQLSTATE code.
func FromSQLState(code, msg string, cause error) *domain.Error {
	msg = database.SafeMessage(msg)

	switch code {
	case "57014":
		// statement_timeout or cancel request
		return &domain.Error{Kind: domain.ErrTimeout, Code: code, Message: "statement canceled", Cause: cause}
	case "25P02", "40001", "40P01":
		return &domain.Error{Kind: domain.ErrTransactionAborted, Code: code, Message: msg, Cause: cause}
	case "42P01", "42883", "3F000", "42704":
		return domain.NewBackendError(code, msg, cause).WithCategory(domain.CategoryUndefined)
	case "42703":
		return domain.NewBackendError(code, msg, cause).WithCategory(domain.CategoryInvalidData)
	case "42501":
		return domain.NewBackendError(code, msg, cause).WithCategory(domain.CategoryPermission)
	}

	switch {
	case strings.HasPrefix(code, "23"):
		return domain.NewBackendError(code, msg, cause).WithCategory(domain.CategoryIntegrity)
	case strings.HasPrefix(code, "22"):
		return domain.NewBackendError(code, msg, cause).WithCategory(domain.CategoryInvalidData)
	case strings.HasPrefix(code, "08"), code == "57P01", code == "57P02", code == "57P03":
		e := domain.NewBackendError(code, msg, cause)
		e.Connection = true
		return e
	}
	return domain.NewBackendError(code, msg, cause)
}
