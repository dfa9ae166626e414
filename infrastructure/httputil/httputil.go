// Package httputil provides common HTTP utilities for gateway handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/lattice-data/gateway/infrastructure/logging"
)

// ErrorResponse represents a standard error response.
type ErrorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	TraceID string      `json:"trace_id,omitempty"`
}

var defaultLogger = logging.NewFromEnv("httputil")

// RequestIDHeader is the header used for request-scoped correlation.
const RequestIDHeader = "X-Request-ID"

// TimeFormatHeader selects the timestamp rendering used for audit fields in responses.
const TimeFormatHeader = "X-Time-Format"

// EnvHeader carries the caller's expected deployment environment for the
// environment-validation filter.
const EnvHeader = "env"

// TimeFormat enumerates the timestamp renderings accepted by X-Time-Format.
type TimeFormat string

const (
	TimeFormatISO8601            TimeFormat = "ISO-8601"
	TimeFormatISOInstant         TimeFormat = "ISO_INSTANT"
	TimeFormatRFC3339            TimeFormat = "RFC-3339"
	TimeFormatISOOffsetDateTime  TimeFormat = "ISO_OFFSET_DATE_TIME"
	TimeFormatUnix               TimeFormat = "UNIX"
	TimeFormatUnixMillis         TimeFormat = "UNIX-MILLIS"
	TimeFormatBasicISODate       TimeFormat = "BASIC_ISO_DATE"
	TimeFormatISOLocalDate       TimeFormat = "ISO_LOCAL_DATE"
	TimeFormatISOLocalDateTime   TimeFormat = "ISO_LOCAL_DATE_TIME"
	DefaultTimeFormat            TimeFormat = TimeFormatISO8601
)

var knownTimeFormats = map[TimeFormat]struct{}{
	TimeFormatISO8601:           {},
	TimeFormatISOInstant:        {},
	TimeFormatRFC3339:           {},
	TimeFormatISOOffsetDateTime: {},
	TimeFormatUnix:              {},
	TimeFormatUnixMillis:        {},
	TimeFormatBasicISODate:      {},
	TimeFormatISOLocalDate:      {},
	TimeFormatISOLocalDateTime:  {},
}

// ParseTimeFormat validates a raw X-Time-Format header value, falling back to
// DefaultTimeFormat for unknown or empty values.
func ParseTimeFormat(raw string) TimeFormat {
	tf := TimeFormat(strings.TrimSpace(raw))
	if _, ok := knownTimeFormats[tf]; ok {
		return tf
	}
	return DefaultTimeFormat
}

// RequestTimeFormat extracts and validates the requested time format from the
// incoming request, defaulting to ISO-8601 when absent or unrecognised.
func RequestTimeFormat(r *http.Request) TimeFormat {
	if r == nil {
		return DefaultTimeFormat
	}
	return ParseTimeFormat(r.Header.Get(TimeFormatHeader))
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		defaultLogger.WithError(err).Warn("write json response")
	}
}

func requestIDFromRequestOrResponse(w http.ResponseWriter, r *http.Request) string {
	if r != nil {
		if requestID := logging.GetTraceID(r.Context()); requestID != "" {
			return requestID
		}
		if requestID := r.Header.Get(RequestIDHeader); requestID != "" {
			return requestID
		}
	}

	return w.Header().Get(RequestIDHeader)
}

// WriteErrorResponse writes a standard JSON error response envelope.
func WriteErrorResponse(w http.ResponseWriter, r *http.Request, status int, code, message string, details interface{}) {
	if code == "" {
		code = fmt.Sprintf("HTTP_%d", status)
	}

	requestID := requestIDFromRequestOrResponse(w, r)
	if requestID != "" && w.Header().Get(RequestIDHeader) == "" {
		w.Header().Set(RequestIDHeader, requestID)
	}

	WriteJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
		TraceID: requestID,
	})
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteErrorResponse(w, nil, status, "", message, nil)
}

// WriteErrorWithCode writes a JSON error response with an error code.
func WriteErrorWithCode(w http.ResponseWriter, status int, code, message string) {
	WriteErrorResponse(w, nil, status, code, message, nil)
}

// BadRequest writes a 400 Bad Request response.
func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message)
}

// Unauthorized writes a 401 Unauthorized response.
func Unauthorized(w http.ResponseWriter, message string) {
	if message == "" {
		message = "unauthorized"
	}
	WriteError(w, http.StatusUnauthorized, message)
}

// Forbidden writes a 403 Forbidden response.
func Forbidden(w http.ResponseWriter, message string) {
	if message == "" {
		message = "forbidden"
	}
	WriteError(w, http.StatusForbidden, message)
}

// NotFound writes a 404 Not Found response.
func NotFound(w http.ResponseWriter, message string) {
	if message == "" {
		message = "not found"
	}
	WriteError(w, http.StatusNotFound, message)
}

// Conflict writes a 409 Conflict response.
func Conflict(w http.ResponseWriter, message string) {
	if message == "" {
		message = "conflict"
	}
	WriteError(w, http.StatusConflict, message)
}

// InternalError writes a 500 Internal Server Error response.
func InternalError(w http.ResponseWriter, message string) {
	if message == "" {
		message = "internal server error"
	}
	WriteError(w, http.StatusInternalServerError, message)
}

// ServiceUnavailable writes a 503 Service Unavailable response.
func ServiceUnavailable(w http.ResponseWriter, message string) {
	if message == "" {
		message = "service unavailable"
	}
	WriteError(w, http.StatusServiceUnavailable, message)
}

// DecodeJSON decodes a JSON request body into the provided struct.
// Returns false and writes an error response if decoding fails.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteErrorResponse(w, r, http.StatusRequestEntityTooLarge, "", "request body too large", map[string]any{
				"limit_bytes": maxErr.Limit,
			})
			return false
		}
		BadRequest(w, "invalid request body")
		return false
	}
	return true
}

// DecodeJSONOptional decodes a JSON request body into the provided struct when present.
// It returns true when the body is empty and no decoding is needed.
func DecodeJSONOptional(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r == nil || r.Body == nil || r.Body == http.NoBody {
		return true
	}

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}

		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteErrorResponse(w, r, http.StatusRequestEntityTooLarge, "", "request body too large", map[string]any{
				"limit_bytes": maxErr.Limit,
			})
			return false
		}
		BadRequest(w, "invalid request body")
		return false
	}
	return true
}

// PathParam extracts a path parameter from the URL.
// Example: PathParam("/users/123/orders", "/users/", "/orders") returns "123"
func PathParam(path, prefix, suffix string) string {
	path = strings.TrimPrefix(path, prefix)
	if suffix != "" {
		if idx := strings.Index(path, suffix); idx >= 0 {
			path = path[:idx]
		}
	}
	// Handle trailing slashes and additional path segments
	if idx := strings.Index(path, "/"); idx >= 0 {
		path = path[:idx]
	}
	return path
}

// PathParamAt extracts a path parameter at the given index (0-based).
// Example: PathParamAt("/users/123/orders/456", 1) returns "123"
func PathParamAt(path string, index int) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if index >= 0 && index < len(parts) {
		return parts[index]
	}
	return ""
}

// QueryInt extracts an integer query parameter with a default value.
func QueryInt(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(val); err == nil {
		return n
	}
	return defaultVal
}

// QueryInt64 extracts an int64 query parameter with a default value.
func QueryInt64(r *http.Request, key string, defaultVal int64) int64 {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	if n, err := strconv.ParseInt(val, 10, 64); err == nil {
		return n
	}
	return defaultVal
}

// QueryString extracts a string query parameter with a default value.
func QueryString(r *http.Request, key, defaultVal string) string {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// QueryBool extracts a boolean query parameter with a default value.
func QueryBool(r *http.Request, key string, defaultVal bool) bool {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	return val == "true" || val == "1" || val == "yes"
}

// PaginationParams extracts pagination parameters from the request.
func PaginationParams(r *http.Request, defaultLimit, maxLimit int) (offset, limit int) {
	offset = QueryInt(r, "offset", 0)
	limit = QueryInt(r, "limit", defaultLimit)
	if limit > maxLimit {
		limit = maxLimit
	}
	if limit < 1 {
		limit = 1
	}
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}

// WrapError wraps an error with context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
