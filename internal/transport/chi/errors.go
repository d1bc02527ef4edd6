package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nxx-sync/nxx/internal/domain"
)

// ErrorCode is the machine-readable code of an error response.
type ErrorCode string

// Error response codes.
const (
	CodeBadRequest         ErrorCode = "bad_request"
	CodeUnauthorized       ErrorCode = "unauthorized"
	CodeValidationFailed   ErrorCode = "validation_failed"
	CodeInvalidSchema      ErrorCode = "invalid_schema"
	CodeSchemaNotFound     ErrorCode = "schema_not_found"
	CodeChannelNotFound    ErrorCode = "channel_not_found"
	CodeDeviceNotConnected ErrorCode = "device_not_connected"
	CodeInvalidFilterQuery ErrorCode = "invalid_filter_query"
	CodeInvalidPatch       ErrorCode = "invalid_patch"
	CodeInvalidEvent       ErrorCode = "invalid_event"
	CodeNotFound           ErrorCode = "not_found"
	CodeInternalError      ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Reason  string    `json:"reason,omitempty"`
	Path    string    `json:"path,omitempty"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		filterErrorHandler,
		patchErrorHandler,
		sentinelHandler(domain.ErrInvalidFilterQuery, http.StatusBadRequest, CodeInvalidFilterQuery),
		sentinelHandler(domain.ErrInvalidPatch, http.StatusUnprocessableEntity, CodeInvalidPatch),
		sentinelHandler(domain.ErrInvalidSchema, http.StatusBadRequest, CodeInvalidSchema),
		sentinelHandler(domain.ErrInvalidSubscription, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrInvalidEvent, http.StatusBadRequest, CodeInvalidEvent),
		sentinelHandler(domain.ErrChannelNotFound, http.StatusNotFound, CodeChannelNotFound),
		sentinelHandler(domain.ErrSchemaNotFound, http.StatusNotFound, CodeSchemaNotFound),
		sentinelHandler(domain.ErrDeviceNotConnected, http.StatusNotFound, CodeDeviceNotConnected),
	}
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	var fe *domain.FilterError
	if errors.As(err, &fe) {
		return fe.Error()
	}
	var pe *domain.PatchError
	if errors.As(err, &pe) {
		return pe.Error()
	}
	sentinels := []error{
		domain.ErrInvalidSchema,
		domain.ErrInvalidSubscription,
		domain.ErrInvalidEvent,
		domain.ErrChannelNotFound,
		domain.ErrSchemaNotFound,
		domain.ErrDeviceNotConnected,
		domain.ErrInvalidFilterQuery,
		domain.ErrInvalidPatch,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// filterErrorHandler reports the rejection reason and offending path of a filter.
func filterErrorHandler(w http.ResponseWriter, err error, msg string) bool {
	var fe *domain.FilterError
	if !errors.As(err, &fe) {
		return false
	}
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Code:    CodeInvalidFilterQuery,
		Message: msg,
		Reason:  string(fe.Reason),
		Path:    fe.Path,
	})
	return true
}

// patchErrorHandler reports the rejection reason and offending path of a patch.
func patchErrorHandler(w http.ResponseWriter, err error, msg string) bool {
	var pe *domain.PatchError
	if !errors.As(err, &pe) {
		return false
	}
	writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
		Code:    CodeInvalidPatch,
		Message: msg,
		Reason:  string(pe.Reason),
		Path:    pe.Path,
	})
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}
