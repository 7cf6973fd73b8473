// Package errors provides structured error handling for the parser framework
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrorType groups errors by the boundary they surface at
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeNotFound      ErrorType = "not_found"
	ErrorTypeUnsupported   ErrorType = "unsupported"
	ErrorTypeParse         ErrorType = "parse"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeTimeout       ErrorType = "timeout"
	ErrorTypeExternal      ErrorType = "external"
	ErrorTypeUnauthorized  ErrorType = "unauthorized"
	ErrorTypeInternal      ErrorType = "internal"
)

// ErrorCode identifies specific failure conditions
type ErrorCode string

const (
	// Validation errors
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// File errors
	ErrCodeFileNotFound   ErrorCode = "FILE_NOT_FOUND"
	ErrCodeFileUnreadable ErrorCode = "FILE_UNREADABLE"
	ErrCodeNotAFile       ErrorCode = "NOT_A_FILE"

	// Format and parse errors
	ErrCodeUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"
	ErrCodeParseFailed       ErrorCode = "PARSE_FAILED"
	ErrCodeCorruptContent    ErrorCode = "CORRUPT_CONTENT"
	ErrCodeElementInvalid    ErrorCode = "ELEMENT_INVALID"

	// Registry and configuration errors
	ErrCodeConfigError           ErrorCode = "CONFIG_ERROR"
	ErrCodeConfigInvalid         ErrorCode = "CONFIG_INVALID"
	ErrCodeStrategyNotRegistered ErrorCode = "STRATEGY_NOT_REGISTERED"
	ErrCodeParserInitFailed      ErrorCode = "PARSER_INIT_FAILED"

	// System errors
	ErrCodeTimeout         ErrorCode = "TIMEOUT"
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE"
	ErrCodeRemoteJobFailed ErrorCode = "REMOTE_JOB_FAILED"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"

	// Auth errors surfaced by the API layer
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenExpired ErrorCode = "TOKEN_EXPIRED"
)

// FrameworkError is a structured error carrying a type, a code and open details
type FrameworkError struct {
	Type       ErrorType              `json:"type"`
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	StackTrace string                 `json:"stack_trace,omitempty"`
	RequestID  string                 `json:"request_id,omitempty"`
}

// Error implements the error interface
func (e *FrameworkError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (caused by: %v)", e.Code, e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Type, e.Message)
}

// Unwrap returns the underlying cause
func (e *FrameworkError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *FrameworkError) WithDetail(key string, value interface{}) *FrameworkError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithRequestID tags the error with the originating request
func (e *FrameworkError) WithRequestID(requestID string) *FrameworkError {
	e.RequestID = requestID
	return e
}

// WithStackTrace captures the call stack on the error
func (e *FrameworkError) WithStackTrace() *FrameworkError {
	e.StackTrace = getStackTrace()
	return e
}

// New creates a structured error
func New(errType ErrorType, code ErrorCode, message string) *FrameworkError {
	return &FrameworkError{
		Type:    errType,
		Code:    code,
		Message: message,
	}
}

// NewWithCause creates a structured error wrapping a cause
func NewWithCause(errType ErrorType, code ErrorCode, message string, cause error) *FrameworkError {
	return &FrameworkError{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Validation error constructors

func NewValidationError(message string) *FrameworkError {
	return New(ErrorTypeValidation, ErrCodeValidation, message)
}

func NewInvalidInputError(message string) *FrameworkError {
	return New(ErrorTypeValidation, ErrCodeInvalidInput, message)
}

// File error constructors

func NewFileNotFoundError(filePath string) *FrameworkError {
	return New(ErrorTypeNotFound, ErrCodeFileNotFound,
		fmt.Sprintf("file not found: %s", filePath)).WithDetail("file_path", filePath)
}

func NewNotAFileError(filePath string) *FrameworkError {
	return New(ErrorTypeValidation, ErrCodeNotAFile,
		fmt.Sprintf("not a regular file: %s", filePath)).WithDetail("file_path", filePath)
}

func NewFileUnreadableError(filePath string, cause error) *FrameworkError {
	return NewWithCause(ErrorTypeValidation, ErrCodeFileUnreadable,
		fmt.Sprintf("file is not readable: %s", filePath), cause).WithDetail("file_path", filePath)
}

// Format and parse error constructors

func NewUnsupportedFormatError(extension string) *FrameworkError {
	return New(ErrorTypeUnsupported, ErrCodeUnsupportedFormat,
		fmt.Sprintf("unsupported document format: %s", extension)).WithDetail("extension", extension)
}

func NewParseError(message string) *FrameworkError {
	return New(ErrorTypeParse, ErrCodeParseFailed, message)
}

func NewParseErrorWithCause(message string, cause error) *FrameworkError {
	return NewWithCause(ErrorTypeParse, ErrCodeParseFailed, message, cause)
}

func NewCorruptContentError(message string) *FrameworkError {
	return New(ErrorTypeParse, ErrCodeCorruptContent, message)
}

func NewElementInvalidError(elementID, reason string) *FrameworkError {
	return New(ErrorTypeValidation, ErrCodeElementInvalid,
		fmt.Sprintf("element %s failed validation: %s", elementID, reason)).
		WithDetail("element_id", elementID)
}

// Registry and configuration error constructors

func NewConfigurationError(message string) *FrameworkError {
	return New(ErrorTypeConfiguration, ErrCodeConfigError, message)
}

func NewConfigurationErrorWithCause(message string, cause error) *FrameworkError {
	return NewWithCause(ErrorTypeConfiguration, ErrCodeConfigError, message, cause)
}

func NewConfigInvalidError(message string, cause error) *FrameworkError {
	return NewWithCause(ErrorTypeConfiguration, ErrCodeConfigInvalid, message, cause)
}

func NewStrategyNotRegisteredError(strategy string) *FrameworkError {
	return New(ErrorTypeConfiguration, ErrCodeStrategyNotRegistered,
		fmt.Sprintf("no parser registered for strategy: %s", strategy)).WithDetail("strategy", strategy)
}

func NewParserInitError(strategy string, cause error) *FrameworkError {
	return NewWithCause(ErrorTypeConfiguration, ErrCodeParserInitFailed,
		fmt.Sprintf("failed to instantiate parser for strategy: %s", strategy), cause).
		WithDetail("strategy", strategy)
}

// System error constructors

func NewTimeoutError(operation string) *FrameworkError {
	return New(ErrorTypeTimeout, ErrCodeTimeout,
		fmt.Sprintf("%s operation timed out", operation)).WithDetail("operation", operation)
}

func NewExternalServiceError(service string, cause error) *FrameworkError {
	return NewWithCause(ErrorTypeExternal, ErrCodeExternalService,
		fmt.Sprintf("%s service request failed", service), cause).WithDetail("service", service)
}

func NewRemoteJobFailedError(jobID, status string) *FrameworkError {
	return New(ErrorTypeExternal, ErrCodeRemoteJobFailed,
		fmt.Sprintf("remote parse job %s ended with status %s", jobID, status)).
		WithDetail("job_id", jobID).WithDetail("status", status)
}

func NewInternalError(message string) *FrameworkError {
	return New(ErrorTypeInternal, ErrCodeInternal, message)
}

func NewInternalErrorWithCause(message string, cause error) *FrameworkError {
	return NewWithCause(ErrorTypeInternal, ErrCodeInternal, message, cause)
}

// Auth error constructors

func NewUnauthorizedError(message string) *FrameworkError {
	return New(ErrorTypeUnauthorized, ErrCodeUnauthorized, message)
}

func NewInvalidTokenError() *FrameworkError {
	return New(ErrorTypeUnauthorized, ErrCodeInvalidToken, "invalid token")
}

func NewTokenExpiredError() *FrameworkError {
	return New(ErrorTypeUnauthorized, ErrCodeTokenExpired, "token has expired")
}

// Helper functions

func getStackTrace() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var trace strings.Builder
	for {
		frame, more := frames.Next()
		if !more {
			break
		}
		fmt.Fprintf(&trace, "%s:%d %s\n", frame.File, frame.Line, frame.Function)
	}

	return trace.String()
}

// AsFrameworkError extracts a FrameworkError from anywhere in the chain
func AsFrameworkError(err error) (*FrameworkError, bool) {
	var fe *FrameworkError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// IsCode reports whether the error chain carries the given code
func IsCode(err error, code ErrorCode) bool {
	if fe, ok := AsFrameworkError(err); ok {
		return fe.Code == code
	}
	return false
}

// IsNotFound reports whether the error is a not-found condition
func IsNotFound(err error) bool {
	if fe, ok := AsFrameworkError(err); ok {
		return fe.Type == ErrorTypeNotFound
	}
	return false
}

// IsUnsupportedFormat reports whether the error is an unsupported-format condition
func IsUnsupportedFormat(err error) bool {
	return IsCode(err, ErrCodeUnsupportedFormat)
}

// IsTimeout reports whether the error is a timeout condition
func IsTimeout(err error) bool {
	if fe, ok := AsFrameworkError(err); ok {
		return fe.Type == ErrorTypeTimeout
	}
	return false
}

// Wrap wraps an arbitrary error as a FrameworkError
func Wrap(err error, errType ErrorType, code ErrorCode, message string) *FrameworkError {
	return NewWithCause(errType, code, message, err)
}

// ErrorList accumulates structured errors
type ErrorList struct {
	Errors []*FrameworkError `json:"errors"`
}

// NewErrorList creates an empty error list
func NewErrorList() *ErrorList {
	return &ErrorList{Errors: make([]*FrameworkError, 0)}
}

// Error implements the error interface
func (el *ErrorList) Error() string {
	messages := make([]string, 0, len(el.Errors))
	for _, err := range el.Errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// Add appends an error to the list
func (el *ErrorList) Add(err *FrameworkError) {
	el.Errors = append(el.Errors, err)
}

// HasErrors reports whether the list is non-empty
func (el *ErrorList) HasErrors() bool {
	return len(el.Errors) > 0
}

// ToError returns the list as an error when non-empty, else nil
func (el *ErrorList) ToError() error {
	if el.HasErrors() {
		return el
	}
	return nil
}

// Collect gathers non-nil errors into a list
func Collect(errs ...*FrameworkError) *ErrorList {
	el := NewErrorList()
	for _, err := range errs {
		if err != nil {
			el.Add(err)
		}
	}
	return el
}
