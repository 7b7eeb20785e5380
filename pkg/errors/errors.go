package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorCode represents different types of errors
type ErrorCode string

const (
	// Crawl pipeline errors
	ErrCodeNetwork ErrorCode = "NETWORK_ERROR"
	ErrCodeParse   ErrorCode = "PARSE_ERROR"
	ErrCodeInput   ErrorCode = "INPUT_ERROR"

	// API errors
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeRateLimit    ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeUnavailable  ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
)

// AppError represents an application error with additional context
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	Cause      error     `json:"-"`
	Timestamp  time.Time `json:"timestamp"`
	HTTPStatus int       `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCause adds a cause error
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails adds additional details
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Timestamp:  time.Now(),
		HTTPStatus: getHTTPStatusForCode(code),
	}
}

func getHTTPStatusForCode(code ErrorCode) int {
	switch code {
	case ErrCodeInput:
		return http.StatusBadRequest
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeRateLimit:
		return http.StatusTooManyRequests
	case ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NetworkError is a failed fetch of one page: a timeout, a transport failure,
// or a status the client gave up on.
type NetworkError struct {
	Page       int
	StatusCode int
	Cause      error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("network error on page %d: status %d: %v", e.Page, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("network error on page %d: %v", e.Page, e.Cause)
}

func (e *NetworkError) Unwrap() error {
	return e.Cause
}

// Code reports the error code used by the API layer.
func (e *NetworkError) Code() ErrorCode {
	return ErrCodeNetwork
}

// ParseError is either a page without the expected headers or a single
// malformed numeric cell.
type ParseError struct {
	Field string
	Value string
	Msg   string
	Cause error
}

func (e *ParseError) Error() string {
	switch {
	case e.Field != "" && e.Cause != nil:
		return fmt.Sprintf("parse error: %s %q: %v", e.Field, e.Value, e.Cause)
	case e.Field != "":
		return fmt.Sprintf("parse error: %s: %s", e.Field, e.Msg)
	default:
		return "parse error: " + e.Msg
	}
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

func (e *ParseError) Code() ErrorCode {
	return ErrCodeParse
}

// NewInputError reports an invalid value supplied at the boundary (CLI flag, API body).
func NewInputError(message string) *AppError {
	return NewAppError(ErrCodeInput, message)
}

// Predefined errors for common scenarios
var (
	ErrNotFound     = NewAppError(ErrCodeNotFound, "Resource not found")
	ErrUnauthorized = NewAppError(ErrCodeUnauthorized, "Valid API key required")
	ErrCrawlBusy    = NewAppError(ErrCodeConflict, "A crawl is already running")
	ErrRateLimit    = NewAppError(ErrCodeRateLimit, "Rate limit exceeded")
	ErrUnavailable  = NewAppError(ErrCodeUnavailable, "Service unavailable")
)

// IsNetworkError reports whether err carries a NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return stderrors.As(err, &ne)
}

// IsParseError reports whether err carries a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return stderrors.As(err, &pe)
}

// GetAppError extracts an AppError from an error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// StatusFor maps any error to the HTTP status the API answers with.
func StatusFor(err error) int {
	if appErr := GetAppError(err); appErr != nil {
		return appErr.HTTPStatus
	}
	var coded interface{ Code() ErrorCode }
	if stderrors.As(err, &coded) {
		return getHTTPStatusForCode(coded.Code())
	}
	return http.StatusInternalServerError
}

// ErrorResponse represents an HTTP error response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ToErrorResponse converts any error to an ErrorResponse
func ToErrorResponse(err error) ErrorResponse {
	if appErr := GetAppError(err); appErr != nil {
		return ErrorResponse{
			Error:     "error",
			Code:      appErr.Code,
			Message:   appErr.Message,
			Details:   appErr.Details,
			Timestamp: appErr.Timestamp,
		}
	}
	code := ErrCodeInternal
	var coded interface{ Code() ErrorCode }
	if stderrors.As(err, &coded) {
		code = coded.Code()
	}
	return ErrorResponse{
		Error:     "error",
		Code:      code,
		Message:   err.Error(),
		Timestamp: time.Now(),
	}
}
