// Package apperrors defines the error taxonomy shared by the server, the API
// client and the simulator.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
)

// ErrorType groups errors by how they are surfaced.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeRejected   ErrorType = "rejected"
	ErrorTypeRequest    ErrorType = "request"
)

const (
	CodeMissingFile          = "MISSING_FILE"
	CodeUnsupportedMediaType = "UNSUPPORTED_MEDIA_TYPE"
	CodePayloadTooLarge      = "PAYLOAD_TOO_LARGE"
	CodeInvalidWeight        = "INVALID_WEIGHT"
	CodeMalformedRequest     = "MALFORMED_REQUEST"
	CodeNoData               = "NO_DATA"
	CodeInternal             = "INTERNAL"
	CodeNetwork              = "NETWORK"
	CodeTimeout              = "TIMEOUT"
	CodeServerRejected       = "SERVER_REJECTED"
	CodeBadRequest           = "BAD_REQUEST"
)

// AppError is an error with a client-safe message and an optional internal cause.
type AppError struct {
	Type     ErrorType
	Code     string
	Message  string
	Status   int // HTTP status, when one applies
	Internal error
	Source   string
}

func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Type, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Internal
}

// Is matches another AppError by type and code.
func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); ok {
		return e.Type == t.Type && e.Code == t.Code
	}
	return false
}

// LogFields returns structured logging fields.
func (e *AppError) LogFields() []any {
	fields := []any{
		"error_type", e.Type,
		"error_code", e.Code,
		"error_message", e.Message,
		"source", e.Source,
	}
	if e.Status != 0 {
		fields = append(fields, "status", e.Status)
	}
	if e.Internal != nil {
		fields = append(fields, "internal_error", e.Internal.Error())
	}
	return fields
}

// New creates an AppError and records its call site.
func New(errorType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:    errorType,
		Code:    code,
		Message: message,
		Status:  defaultStatus(errorType),
		Source:  caller(),
	}
}

// Wrap creates an AppError around an existing error.
func Wrap(err error, errorType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:     errorType,
		Code:     code,
		Message:  message,
		Status:   defaultStatus(errorType),
		Internal: err,
		Source:   caller(),
	}
}

func caller() string {
	_, file, line, _ := runtime.Caller(2)
	return fmt.Sprintf("%s:%d", file, line)
}

func defaultStatus(t ErrorType) int {
	switch t {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeInternal:
		return http.StatusInternalServerError
	default:
		return 0
	}
}

// Sentinels for errors.Is checks.
var (
	ErrMissingFile          = New(ErrorTypeValidation, CodeMissingFile, "No image file uploaded")
	ErrUnsupportedMediaType = New(ErrorTypeValidation, CodeUnsupportedMediaType, "Only image files are allowed.")
	ErrPayloadTooLarge      = New(ErrorTypeValidation, CodePayloadTooLarge, "File too large. Maximum size is 5MB.")
	ErrInvalidWeight        = New(ErrorTypeValidation, CodeInvalidWeight, "Valid weight is required")
	ErrMalformedRequest     = New(ErrorTypeValidation, CodeMalformedRequest, "Malformed multipart form")
	ErrNoData               = New(ErrorTypeNotFound, CodeNoData, "No analysis data available")
	ErrInternal             = New(ErrorTypeInternal, CodeInternal, "Internal server error")
	ErrNetwork              = New(ErrorTypeNetwork, CodeNetwork, "No response from server - check if server is running")
	ErrTimeout              = New(ErrorTypeTimeout, CodeTimeout, "Request timed out")
	ErrServerRejected       = New(ErrorTypeRejected, CodeServerRejected, "Server rejected the request")
	ErrBadRequest           = New(ErrorTypeRequest, CodeBadRequest, "Request error")
)

func NewUnsupportedMediaType(mediaType string) *AppError {
	return Wrap(fmt.Errorf("media type %q", mediaType), ErrorTypeValidation, CodeUnsupportedMediaType,
		ErrUnsupportedMediaType.Message)
}

// NewPayloadTooLarge reports an upload over limit bytes.
func NewPayloadTooLarge(limit int64) *AppError {
	msg := ErrPayloadTooLarge.Message
	if limit != 5<<20 {
		msg = fmt.Sprintf("File too large. Maximum size is %d bytes.", limit)
	}
	return New(ErrorTypeValidation, CodePayloadTooLarge, msg)
}

func NewInvalidWeight(raw string) *AppError {
	return Wrap(fmt.Errorf("weight %q", raw), ErrorTypeValidation, CodeInvalidWeight, ErrInvalidWeight.Message)
}

func NewMalformedRequest(err error) *AppError {
	return Wrap(err, ErrorTypeValidation, CodeMalformedRequest, ErrMalformedRequest.Message)
}

func NewInternal(err error) *AppError {
	return Wrap(err, ErrorTypeInternal, CodeInternal, ErrInternal.Message)
}

func NewNetwork(err error) *AppError {
	return Wrap(err, ErrorTypeNetwork, CodeNetwork, ErrNetwork.Message)
}

func NewTimeout(err error) *AppError {
	return Wrap(err, ErrorTypeTimeout, CodeTimeout, ErrTimeout.Message)
}

// NewServerRejected is returned by clients when a response arrived with a
// non-success status. message is the server's error text, if any.
func NewServerRejected(status int, message string) *AppError {
	if message == "" {
		message = http.StatusText(status)
	}
	e := New(ErrorTypeRejected, CodeServerRejected, fmt.Sprintf("Server error: %d - %s", status, message))
	e.Status = status
	return e
}

func NewBadRequest(err error) *AppError {
	return Wrap(err, ErrorTypeRequest, CodeBadRequest, fmt.Sprintf("Request error: %v", err))
}

// HTTPStatus returns the status an error maps to, 500 for anything unknown.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the text that may be shown to a client.
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Type != ErrorTypeInternal {
		return appErr.Message
	}
	return ErrInternal.Message
}
