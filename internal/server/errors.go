package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hexgate/hexgate/internal/core/query/domain"
	"github.com/hexgate/hexgate/internal/debug"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// StatusFor maps an error onto an HTTP status.
func StatusFor(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}

	e, ok := domain.AsError(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch {
	case errors.Is(e, domain.ErrInvalidIdentifier),
		errors.Is(e, domain.ErrMalformedQuery),
		errors.Is(e, domain.ErrSchemaMismatch),
		errors.Is(e, domain.ErrMissingFilter):
		return http.StatusBadRequest
	case errors.Is(e, domain.ErrUnknownResource):
		return http.StatusNotFound
	case errors.Is(e, domain.ErrUnsupported):
		return http.StatusNotImplemented
	case errors.Is(e, domain.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(e, domain.ErrTransactionAborted):
		return http.StatusInternalServerError
	}

	if e.Connection {
		return http.StatusServiceUnavailable
	}
	switch e.Category {
	case domain.CategoryIntegrity:
		return http.StatusConflict
	case domain.CategoryUndefined:
		return http.StatusNotFound
	case domain.CategoryInvalidData:
		return http.StatusBadRequest
	case domain.CategoryPermission:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	body := errorBody{Error: domain.KindBackendError, Message: "internal server error"}

	var tooLarge *http.MaxBytesError
	if e, ok := domain.AsError(err); ok {
		body = errorBody{Error: e.KindName(), Message: e.Message, Code: e.Code}
	} else if errors.As(err, &tooLarge) {
		body = errorBody{Error: "PayloadTooLarge", Message: err.Error()}
	}

	if status >= 500 {
		debug.Error("request error", "request_id", RequestID(r.Context()), "error", err)
	}
	writeErrorBody(w, status, body)
}

func writeErrorBody(w http.ResponseWriter, status int, body errorBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
