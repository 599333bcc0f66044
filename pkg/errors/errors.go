// Package errors provides structured error handling for the impact engine
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeConfigFile represents missing or unreadable configuration files
	ErrorTypeConfigFile ErrorType = "config_file"
	// ErrorTypeConfigSyntax represents configuration parse failures
	ErrorTypeConfigSyntax ErrorType = "config_syntax"
	// ErrorTypeConfigStructure represents missing required configuration sections or keys
	ErrorTypeConfigStructure ErrorType = "config_structure"
	// ErrorTypeConfigParameter represents invalid configuration parameter values
	ErrorTypeConfigParameter ErrorType = "config_parameter"
	// ErrorTypeConnection represents adapter connect/readiness failures
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeValidation represents data or parameter validation failures
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeLookup represents unknown registry name errors
	ErrorTypeLookup ErrorType = "lookup"
	// ErrorTypeFit represents delegated model fit failures
	ErrorTypeFit ErrorType = "fit"
	// ErrorTypeIncompatibleSchema represents manifest schema version mismatches
	ErrorTypeIncompatibleSchema ErrorType = "incompatible_schema"
	// ErrorTypeStorage represents artifact store read/write failures
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeConflict represents duplicate registration errors
	ErrorTypeConflict ErrorType = "conflict"
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// Wrapf wraps an existing error with formatted context
func Wrapf(err error, errType ErrorType, format string, args ...interface{}) *Error {
	return Wrap(err, errType, fmt.Sprintf(format, args...))
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// TypeOf returns the error type, or ErrorTypeInternal for foreign errors
func TypeOf(err error) ErrorType {
	var e *Error
	if !errors.As(err, &e) {
		return ErrorTypeInternal
	}
	return e.Type
}

// captureStack captures the current call stack
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
