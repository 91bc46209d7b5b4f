package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Intake errors, terminal before any file is touched
	ErrorTypeSourceNotFound    ErrorType = "source_not_found"
	ErrorTypeUnreadableSource  ErrorType = "unreadable_source"
	ErrorTypeInvalidUpload     ErrorType = "invalid_upload"
	ErrorTypeInvalidUploadType ErrorType = "invalid_upload_type"
	ErrorTypeUploadTooLarge    ErrorType = "upload_too_large"

	// Destination errors
	ErrorTypeDestinationNotWritable ErrorType = "destination_not_writable"

	// Processing errors
	ErrorTypeEncodeFailed       ErrorType = "encode_failed"
	ErrorTypeNoBackendAvailable ErrorType = "no_backend_available"
	ErrorTypeTimeout            ErrorType = "timeout"

	// Generic
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeExternal   ErrorType = "external"
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeUnknown    ErrorType = "unknown"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	InnerError error                  `json:"-"`
	Stack      []string               `json:"-"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.InnerError != nil {
		return e.InnerError.Error()
	}
	return string(e.Type)
}

// Unwrap returns the inner error
func (e *AppError) Unwrap() error {
	return e.InnerError
}

// WithMessage adds a message to the error
func (e *AppError) WithMessage(msg string) *AppError {
	e.Message = msg
	return e
}

// WithDetail adds a detail to the error
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithHTTPStatus sets the HTTP status code
func (e *AppError) WithHTTPStatus(status int) *AppError {
	e.HTTPStatus = status
	return e
}

// WithInnerError sets the inner error
func (e *AppError) WithInnerError(err error) *AppError {
	e.InnerError = err
	return e
}

// WithStack captures the call stack
func (e *AppError) WithStack() *AppError {
	e.Stack = captureStack(3)
	return e
}

// Is matches another *AppError of the same type.
func (e *AppError) Is(target error) bool {
	if targetApp, ok := target.(*AppError); ok {
		return e.Type == targetApp.Type
	}
	return false
}

// New creates a new AppError
func New(errType ErrorType, message string) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Code:    string(errType),
	}
}

// FromError converts a standard error to AppError
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return &AppError{
		Type:       ErrorTypeUnknown,
		Code:       string(ErrorTypeUnknown),
		Message:    err.Error(),
		InnerError: err,
	}
}

// Wrap wraps an error with a specific type
func Wrap(err error, errType ErrorType, message string) *AppError {
	return &AppError{
		Type:       errType,
		Code:       string(errType),
		Message:    message,
		InnerError: err,
	}
}

// IsType reports whether err carries an *AppError of the given type anywhere
// in its chain.
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Type == errType
}

// TypeOf returns the AppError type of err, or ErrorTypeUnknown.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeUnknown
}

func NewSourceNotFound(path string) *AppError {
	return New(ErrorTypeSourceNotFound, fmt.Sprintf("source image not found: %s", path)).
		WithDetail("path", path).
		WithHTTPStatus(http.StatusBadRequest)
}

func NewUnreadableSource(path string, err error) *AppError {
	return Wrap(err, ErrorTypeUnreadableSource, fmt.Sprintf("source %s is not a readable image", path)).
		WithDetail("path", path).
		WithHTTPStatus(http.StatusUnprocessableEntity)
}

func NewInvalidUpload(reason string) *AppError {
	return New(ErrorTypeInvalidUpload, fmt.Sprintf("upload rejected: %s", reason)).
		WithHTTPStatus(http.StatusBadRequest)
}

func NewInvalidUploadType(mimeType string) *AppError {
	return New(ErrorTypeInvalidUploadType, fmt.Sprintf("unsupported image type %q", mimeType)).
		WithDetail("mime_type", mimeType).
		WithHTTPStatus(http.StatusUnsupportedMediaType)
}

func NewUploadTooLarge(size, limit int64) *AppError {
	return New(ErrorTypeUploadTooLarge, fmt.Sprintf("upload of %d bytes exceeds limit of %d bytes", size, limit)).
		WithDetail("size", size).
		WithDetail("limit", limit).
		WithHTTPStatus(http.StatusRequestEntityTooLarge)
}

func NewDestinationNotWritable(dir string, err error) *AppError {
	return Wrap(err, ErrorTypeDestinationNotWritable, fmt.Sprintf("destination %s is not writable", dir)).
		WithDetail("dir", dir).
		WithHTTPStatus(http.StatusInternalServerError)
}

func NewEncodeFailed(preset string, err error) *AppError {
	return Wrap(err, ErrorTypeEncodeFailed, fmt.Sprintf("encoding %s failed", preset)).
		WithDetail("preset", preset).
		WithHTTPStatus(http.StatusInternalServerError)
}

func NewNoBackendAvailable() *AppError {
	return New(ErrorTypeNoBackendAvailable, "no image backend available").
		WithHTTPStatus(http.StatusServiceUnavailable)
}

func NewValidation(message string) *AppError {
	return New(ErrorTypeValidation, message).WithHTTPStatus(http.StatusBadRequest)
}

func NewNotFound(resource string, id interface{}) *AppError {
	return New(ErrorTypeNotFound, fmt.Sprintf("%s not found", resource)).
		WithDetail("resource", resource).
		WithDetail("id", id).
		WithHTTPStatus(http.StatusNotFound)
}

func NewInternal(message string) *AppError {
	return New(ErrorTypeInternal, message).WithHTTPStatus(http.StatusInternalServerError)
}

// HTTPStatusOf maps err to a response status, defaulting to 500.
func HTTPStatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.HTTPStatus > 0 {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// RecoverWithHandler recovers from panics and hands them to handler as an
// internal AppError. It must be deferred directly.
func RecoverWithHandler(handler func(*AppError)) {
	if r := recover(); r != nil {
		var appErr *AppError
		switch v := r.(type) {
		case error:
			appErr = Wrap(v, ErrorTypeInternal, "panic recovered: "+v.Error())
		case string:
			appErr = New(ErrorTypeInternal, "panic recovered: "+v)
		default:
			appErr = New(ErrorTypeInternal, fmt.Sprintf("panic recovered: %v", v))
		}
		appErr = appErr.WithHTTPStatus(http.StatusInternalServerError).WithStack()
		handler(appErr)
	}
}

// captureStack captures the call stack
func captureStack(skip int) []string {
	var stack []string
	for i := skip; i < 12; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		funcName := fn.Name()
		if idx := strings.LastIndex(funcName, "/"); idx >= 0 {
			funcName = funcName[idx+1:]
		}

		stack = append(stack, fmt.Sprintf("%s:%d %s", file, line, funcName))
	}
	return stack
}
