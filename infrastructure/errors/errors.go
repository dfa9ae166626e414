// Package errors provides unified error handling for the gateway.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode string

const (
	// Filter engine errors (1xxx)
	ErrCodeInvalidFilterStructure ErrorCode = "FILTER_1001"
	ErrCodeFilterValidationFailed ErrorCode = "FILTER_1002"

	// Write pipeline errors (2xxx)
	ErrCodeSchemaValidationFailed ErrorCode = "WRITE_2001"
	ErrCodeSubEntityConflict      ErrorCode = "WRITE_2002"

	// Dispatch errors (3xxx)
	ErrCodeMethodNotAllowed   ErrorCode = "DISPATCH_3001"
	ErrCodeEndpointNotFound   ErrorCode = "DISPATCH_3002"
	ErrCodeEnvironmentMismatch ErrorCode = "DISPATCH_3003"

	// Configuration errors (4xxx)
	ErrCodeConfigMissing ErrorCode = "CONFIG_4001"

	// Backend/service errors (5xxx)
	ErrCodeBackendUnavailable ErrorCode = "SVC_5001"
	ErrCodeInternal           ErrorCode = "SVC_5002"
	ErrCodeTimeout            ErrorCode = "SVC_5003"
	ErrCodeRateLimitExceeded  ErrorCode = "SVC_5004"
)

// ServiceError represents a structured error with code, message, and HTTP status
type ServiceError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WithDetails adds additional details to the error
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// DetailStrings flattens Details into the "key: value" string list used by
// the error-response body's "details" field. The order of the entries is not
// defined.
func (e *ServiceError) DetailStrings() []string {
	if len(e.Details) == 0 {
		return nil
	}
	out := make([]string, 0, len(e.Details))
	for k, v := range e.Details {
		out = append(out, fmt.Sprintf("%s: %v", k, v))
	}
	return out
}

// New creates a new ServiceError
func New(code ErrorCode, message string, httpStatus int) *ServiceError {
	return &ServiceError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an existing error with a ServiceError
func Wrap(code ErrorCode, message string, httpStatus int, err error) *ServiceError {
	return &ServiceError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// Filter engine errors

func InvalidFilterStructure(reason string) *ServiceError {
	return New(ErrCodeInvalidFilterStructure, "Invalid filter structure", http.StatusBadRequest).
		WithDetails("reason", reason)
}

func FilterValidationFailed(details ...string) *ServiceError {
	err := New(ErrCodeFilterValidationFailed, "Filter validation failed", http.StatusBadRequest)
	for i, d := range details {
		err.WithDetails(fmt.Sprintf("error_%d", i), d)
	}
	return err
}

// Write pipeline errors

func SchemaValidationFailed(schema string, details ...string) *ServiceError {
	err := New(ErrCodeSchemaValidationFailed, "Schema validation failed", http.StatusBadRequest).
		WithDetails("schema", schema)
	for i, d := range details {
		err.WithDetails(fmt.Sprintf("error_%d", i), d)
	}
	return err
}

func SubEntityConflict(field, reason string) *ServiceError {
	return New(ErrCodeSubEntityConflict, "Sub-entity merge conflict", http.StatusBadRequest).
		WithDetails("field", field).
		WithDetails("reason", reason)
}

// Dispatch errors

func MethodNotAllowed(method string) *ServiceError {
	return New(ErrCodeMethodNotAllowed, "Method not allowed", http.StatusMethodNotAllowed).
		WithDetails("method", method)
}

func EndpointNotFound(method, path string) *ServiceError {
	return New(ErrCodeEndpointNotFound, "Endpoint not found", http.StatusNotFound).
		WithDetails("method", method).
		WithDetails("path", path)
}

func EnvironmentMismatch(want, got string) *ServiceError {
	return New(ErrCodeEnvironmentMismatch, "Fatal attempt of a breach of environments.", http.StatusForbidden).
		WithDetails("want", want).
		WithDetails("got", got)
}

// Configuration errors

func ConfigMissing(path string) *ServiceError {
	return New(ErrCodeConfigMissing, "Required configuration is missing", http.StatusInternalServerError).
		WithDetails("path", path)
}

// Backend/service errors

func BackendUnavailable(operation string, err error) *ServiceError {
	return Wrap(ErrCodeBackendUnavailable, "Backend unavailable", http.StatusServiceUnavailable, err).
		WithDetails("operation", operation)
}

func Internal(message string, err error) *ServiceError {
	return Wrap(ErrCodeInternal, message, http.StatusInternalServerError, err)
}

func Timeout(operation string) *ServiceError {
	return New(ErrCodeTimeout, "Operation timed out", http.StatusGatewayTimeout).
		WithDetails("operation", operation)
}

func RateLimitExceeded(limit int, window string) *ServiceError {
	return New(ErrCodeRateLimitExceeded, "Rate limit exceeded", http.StatusTooManyRequests).
		WithDetails("limit", limit).
		WithDetails("window", window)
}

// Helper functions

// IsServiceError checks if an error is a ServiceError
func IsServiceError(err error) bool {
	var serviceErr *ServiceError
	return errors.As(err, &serviceErr)
}

// GetServiceError extracts a ServiceError from an error chain
func GetServiceError(err error) *ServiceError {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr
	}
	return nil
}

// GetHTTPStatus returns the HTTP status code for an error. Per the
// orchestrator's error-mapping rule, any error that isn't a recognised
// ServiceError is treated as an uncaught programmer error and mapped to 500.
func GetHTTPStatus(err error) int {
	if serviceErr := GetServiceError(err); serviceErr != nil {
		return serviceErr.HTTPStatus
	}
	return http.StatusInternalServerError
}
