package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/hexgate/hexgate/internal/core/query/domain"
)

var errNotConnected = &domain.Error{
	Kind:       domain.ErrBackend,
	Message:    "database not connected",
	Connection: true,
}

// ClassifyError maps err onto the gateway taxonomy. Classified errors pass
// through unchanged.
func (a *SQLAdapter) ClassifyError(err error) error {
	return Classify(err, a.spec.Classify)
}

// Classify maps err onto the gateway taxonomy using the driver classifier
// first and generic rules after it.
func Classify(err error, driverClassify func(error) *domain.Error) error {
	if err == nil {
		return nil
	}
	if _, ok := domain.AsError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return domain.Wrap(domain.ErrTimeout, err, "operation exceeded its deadline")
	case errors.Is(err, context.Canceled):
		return domain.Wrap(domain.ErrTimeout, err, "canceled")
	}
	if driverClassify != nil {
		if e := driverClassify(err); e != nil {
			return e
		}
	}
	switch {
	case errors.Is(err, sql.ErrTxDone):
		return domain.Wrap(domain.ErrTransactionAborted, err, "transaction already finished")
	case IsConnectionError(err):
		e := domain.NewBackendError("", "database connection failed", err)
		e.Connection = true
		return e
	}
	return domain.NewBackendError("", "database error", err)
}

// IsConnectionError reports whether err came from the transport rather
// than from statement execution.
func IsConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// SafeMessage drops backend messages that echo statement text.
func SafeMessage(msg string) string {
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "syntax") || strings.Contains(lower, "near \"") || strings.Contains(lower, "near '") {
		return "SQL syntax error"
	}
	return msg
}
