package mysql

import (
	"errors"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"github.com/hexgate/hexgate/internal/adapters/database"
	"github.com/hexgate/hexgate/internal/core/query/domain"
)

var categories = map[uint16]domain.Category{
	1048: domain.CategoryIntegrity, // ER_BAD_NULL_ERROR
	1062: domain.CategoryIntegrity, // ER_DUP_ENTRY
	1451: domain.CategoryIntegrity, // ER_ROW_IS_REFERENCED_2
	1452: domain.CategoryIntegrity, // ER_NO_REFERENCED_ROW_2
	3819: domain.CategoryIntegrity, // ER_CHECK_CONSTRAINT_VIOLATED
	1049: domain.CategoryUndefined, // ER_BAD_DB_ERROR
	1146: domain.CategoryUndefined, // ER_NO_SUCH_TABLE
	1305: domain.CategoryUndefined, // ER_SP_DOES_NOT_EXIST
	1054: domain.CategoryInvalidData,
	1264: domain.CategoryInvalidData,
	1292: domain.CategoryInvalidData,
	1366: domain.CategoryInvalidData,
	1406: domain.CategoryInvalidData,
	1044: domain.CategoryPermission,
	1142: domain.CategoryPermission,
	1143: domain.CategoryPermission,
}

// ClassifyError recognizes MySQL server errors by error number.
func ClassifyError(err error) *domain.Error {
	if errors.Is(err, mysql.ErrInvalidConn) {
		e := domain.NewBackendError("", "database connection failed", err)
		e.Connection = true
		return e
	}

	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return nil
	}
	code := strconv.Itoa(int(myErr.Number))
	msg := database.SafeMessage(myErr.Message)

	switch myErr.Number {
	case 1213, 1205: // deadlock, lock wait timeout
		return &domain.Error{Kind: domain.ErrTransactionAborted, Code: code, Message: msg, Cause: err}
	case 3024: // max_execution_time exceeded
		return &domain.Error{Kind: domain.ErrTimeout, Code: code, Message: "statement canceled", Cause: err}
	case 1064:
		return domain.NewBackendError(code, "SQL syntax error", err)
	}
	return domain.NewBackendError(code, msg, err).WithCategory(categories[myErr.Number])
}
