// Package errors provides a structured error system for cachesim with error
// codes, categories, and severity, mapping the simulator's error taxonomy:
// configuration errors are fatal before any request is processed, capacity
// violations are per-request and recoverable, and consistency violations are
// fatal because they indicate a kernel or policy bug.
package errors

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents a structured error code for cachesim operations.
type ErrorCode string

// Error code constants organized by category.
const (
	// Configuration errors: rejected before request processing begins.
	ErrCodeInvalidConfig    ErrorCode = "INVALID_CONFIG"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"
	ErrCodeConfigLoad       ErrorCode = "CONFIG_LOAD"
	ErrCodeUnknownPolicy    ErrorCode = "UNKNOWN_POLICY"
	ErrCodeInvalidParam     ErrorCode = "INVALID_PARAM"

	// Plugin errors: also configuration-time, but produced by the loader.
	ErrCodePluginLoad      ErrorCode = "PLUGIN_LOAD"
	ErrCodePluginSymbol    ErrorCode = "PLUGIN_SYMBOL"
	ErrCodePluginSignature ErrorCode = "PLUGIN_SIGNATURE"

	// Capacity errors: non-fatal, the offending request is rejected.
	ErrCodeObjectTooLarge ErrorCode = "OBJECT_TOO_LARGE"

	// Consistency errors: fatal, the run aborts rather than continuing
	// with corrupted accounting.
	ErrCodeDuplicateObject  ErrorCode = "DUPLICATE_OBJECT"
	ErrCodeEmptyEviction    ErrorCode = "EMPTY_EVICTION"
	ErrCodeAccountingDrift  ErrorCode = "ACCOUNTING_DRIFT"
	ErrCodeMissingObject    ErrorCode = "MISSING_OBJECT"
	ErrCodeCorruptQueue     ErrorCode = "CORRUPT_QUEUE"
	ErrCodeEvictionStalled  ErrorCode = "EVICTION_STALLED"
	ErrCodeInvalidStateFlag ErrorCode = "INVALID_STATE_FLAG"

	// Trace errors: malformed trace input.
	ErrCodeTraceParse ErrorCode = "TRACE_PARSE"
	ErrCodeTraceRead  ErrorCode = "TRACE_READ"

	// Internal system errors.
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrCodeUnknownError  ErrorCode = "UNKNOWN_ERROR"
)

// ErrorCategory represents the general category of an error.
type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryPlugin        ErrorCategory = "plugin"
	CategoryCapacity      ErrorCategory = "capacity"
	CategoryConsistency   ErrorCategory = "consistency"
	CategoryTrace         ErrorCategory = "trace"
	CategoryInternal      ErrorCategory = "internal"
)

// SimError represents a structured error with context and metadata.
type SimError struct {
	Code     ErrorCode              `json:"code"`
	Category ErrorCategory          `json:"category"`
	Message  string                 `json:"message"`
	Details  map[string]interface{} `json:"details,omitempty"`

	Cause     error     `json:"-"` // Not serialized to avoid circular refs
	Timestamp time.Time `json:"timestamp"`

	Component string `json:"component,omitempty"`
	Operation string `json:"operation,omitempty"`
}

// Error implements the error interface.
func (e *SimError) Error() string {
	if e.Component != "" {
		if e.Operation != "" {
			return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, e.Message)
		}
		return fmt.Sprintf("[%s] %s: %s", e.Component, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error wrapping compatibility.
func (e *SimError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error (for errors.Is compatibility).
func (e *SimError) Is(target error) bool {
	if simErr, ok := target.(*SimError); ok {
		return e.Code == simErr.Code
	}
	return false
}

// String returns a detailed string representation for logging.
func (e *SimError) String() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Code=%s", e.Code))
	parts = append(parts, fmt.Sprintf("Category=%s", e.Category))
	parts = append(parts, fmt.Sprintf("Message=%q", e.Message))

	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("Component=%s", e.Component))
	}
	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("Operation=%s", e.Operation))
	}
	if len(e.Details) > 0 {
		details, _ := json.Marshal(e.Details)
		parts = append(parts, fmt.Sprintf("Details=%s", details))
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause=%q", e.Cause.Error()))
	}

	return fmt.Sprintf("SimError{%s}", strings.Join(parts, ", "))
}

// New creates a new cachesim error.
func New(code ErrorCode, message string) *SimError {
	return &SimError{
		Code:      code,
		Category:  GetCategory(code),
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Newf creates a new cachesim error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *SimError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates a new cachesim error wrapping an underlying cause.
func Wrap(code ErrorCode, message string, cause error) *SimError {
	err := New(code, message)
	err.Cause = cause
	return err
}

// WithComponent attaches the originating component name.
func (e *SimError) WithComponent(component string) *SimError {
	e.Component = component
	return e
}

// WithOperation attaches the operation that produced the error.
func (e *SimError) WithOperation(operation string) *SimError {
	e.Operation = operation
	return e
}

// WithDetail attaches one key/value detail.
func (e *SimError) WithDetail(key string, value interface{}) *SimError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// GetCategory determines the category based on the error code.
func GetCategory(code ErrorCode) ErrorCategory {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "INVALID_CONFIG") || strings.HasPrefix(codeStr, "CONFIG_") ||
		strings.HasPrefix(codeStr, "UNKNOWN_POLICY") || strings.HasPrefix(codeStr, "INVALID_PARAM"):
		return CategoryConfiguration
	case strings.HasPrefix(codeStr, "PLUGIN_"):
		return CategoryPlugin
	case strings.HasPrefix(codeStr, "OBJECT_TOO_"):
		return CategoryCapacity
	case strings.HasPrefix(codeStr, "DUPLICATE_") || strings.HasPrefix(codeStr, "EMPTY_EVICTION") ||
		strings.HasPrefix(codeStr, "ACCOUNTING_") || strings.HasPrefix(codeStr, "MISSING_OBJECT") ||
		strings.HasPrefix(codeStr, "CORRUPT_") || strings.HasPrefix(codeStr, "EVICTION_") ||
		strings.HasPrefix(codeStr, "INVALID_STATE"):
		return CategoryConsistency
	case strings.HasPrefix(codeStr, "TRACE_"):
		return CategoryTrace
	default:
		return CategoryInternal
	}
}

// IsFatal reports whether an error of this category must abort the run.
// Capacity violations reject a single request and processing continues;
// everything else in the taxonomy is fatal.
func IsFatal(err error) bool {
	simErr, ok := AsSimError(err)
	if !ok {
		return true
	}
	return simErr.Category != CategoryCapacity
}

// IsCapacityRejection reports whether err is a per-request capacity
// violation rather than a real failure.
func IsCapacityRejection(err error) bool {
	simErr, ok := AsSimError(err)
	return ok && simErr.Category == CategoryCapacity
}

// AsSimError extracts a *SimError from an error chain.
func AsSimError(err error) (*SimError, bool) {
	for err != nil {
		if simErr, ok := err.(*SimError); ok {
			return simErr, true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = unwrapper.Unwrap()
	}
	return nil, false
}
