package sqlite

import (
	"errors"
	"strconv"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/hexgate/hexgate/internal/adapters/database"
	"github.com/hexgate/hexgate/internal/core/query/domain"
)

// ClassifyError recognizes sqlite3.Error values by primary result code,
// falling back to the message for missing objects.
func ClassifyError(err error) *domain.Error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return nil
	}
	code := strconv.Itoa(int(sqliteErr.ExtendedCode))
	msg := database.SafeMessage(sqliteErr.Error())

	switch sqliteErr.Code {
	case sqlite3.ErrConstraint:
		return domain.NewBackendError(code, msg, err).WithCategory(domain.CategoryIntegrity)
	case sqlite3.ErrMismatch, sqlite3.ErrRange, sqlite3.ErrTooBig:
		return domain.NewBackendError(code, msg, err).WithCategory(domain.CategoryInvalidData)
	case sqlite3.ErrPerm, sqlite3.ErrAuth, sqlite3.ErrReadonly:
		return domain.NewBackendError(code, msg, err).WithCategory(domain.CategoryPermission)
	case sqlite3.ErrInterrupt:
		return &domain.Error{Kind: domain.ErrTimeout, Code: code, Message: "statement interrupted", Cause: err}
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return &domain.Error{Kind: domain.ErrTransactionAborted, Code: code, Message: msg, Cause: err}
	case sqlite3.ErrCantOpen, sqlite3.ErrNotADB, sqlite3.ErrIoErr:
		e := domain.NewBackendError(code, msg, err)
		e.Connection = true
		return e
	}

	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "no such table"), strings.Contains(lower, "no such function"):
		return domain.NewBackendError(code, msg, err).WithCategory(domain.CategoryUndefined)
	case strings.Contains(lower, "no such column"), strings.Contains(lower, "has no column named"):
		return domain.NewBackendError(code, msg, err).WithCategory(domain.CategoryInvalidData)
	}
	return domain.NewBackendError(code, msg, err)
}
