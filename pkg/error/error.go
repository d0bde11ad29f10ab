package error

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrorCategory classifies errors by their nature and appropriate handling strategy.
type ErrorCategory int

const (
	// ErrCategoryUser represents errors caused by invalid input, such as a
	// malformed query line or a query that needs a cross product.
	ErrCategoryUser ErrorCategory = iota

	// ErrCategorySystem represents environment failures: missing relation
	// files, mmap failures, closed pools.
	ErrCategorySystem

	// ErrCategoryData represents relation files whose contents do not match
	// their header.
	ErrCategoryData

	// ErrCategoryInvariant represents a broken contract between operators,
	// e.g. resolving a column that was never required. These are raised
	// with panic and never returned.
	ErrCategoryInvariant
)

func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryUser:
		return "user"
	case ErrCategorySystem:
		return "system"
	case ErrCategoryData:
		return "data"
	case ErrCategoryInvariant:
		return "invariant"
	default:
		return "unknown"
	}
}

// Error codes used across parajoin.
const (
	CodeQuerySyntax       = "QUERY_SYNTAX"
	CodeCrossProduct      = "CROSS_PRODUCT"
	CodeRelationNotFound  = "RELATION_NOT_FOUND"
	CodeRelationCorrupt   = "RELATION_CORRUPT"
	CodeRelationIO        = "RELATION_IO"
	CodeColumnOutOfRange  = "COLUMN_OUT_OF_RANGE"
	CodeColumnNotRequired = "COLUMN_NOT_REQUIRED"
	CodeOperatorRerun     = "OPERATOR_RERUN"
	CodePoolClosed        = "POOL_CLOSED"
	CodeTaskPanic         = "TASK_PANIC"
)

// DBError represents a structured error with context information.
type DBError struct {
	// Code is a unique identifier for this error type (e.g. "QUERY_SYNTAX").
	Code string

	// Category classifies the error for appropriate handling strategy.
	Category ErrorCategory

	// Message is a human-readable description of what went wrong.
	Message string

	// Detail provides additional context about the specific error instance.
	Detail string

	// Hint suggests how the caller might fix the problem.
	Hint string

	// Operation identifies the operation being performed, e.g. "Parse", "Load".
	Operation string

	// Component identifies where the error originated, e.g. "Parser", "Join".
	Component string

	// Cause is the underlying error, if any.
	Cause error

	// Stack is captured in New and Wrap.
	Stack []uintptr
}

// New creates a new DBError with the specified code, category, and message.
func New(category ErrorCategory, code, message string) *DBError {
	return &DBError{
		Code:     code,
		Category: category,
		Message:  message,
		Stack:    captureStack(),
	}
}

// Wrap wraps an existing error with context information.
// If the error is already a DBError, its operation and component are filled
// in when empty and the same value is returned.
func Wrap(err error, code, operation, component string) *DBError {
	if err == nil {
		return nil
	}

	var dbErr *DBError
	if errors.As(err, &dbErr) {
		if dbErr.Operation == "" {
			dbErr.Operation = operation
		}
		if dbErr.Component == "" {
			dbErr.Component = component
		}
		return dbErr
	}

	return &DBError{
		Code:      code,
		Category:  ErrCategorySystem,
		Message:   err.Error(),
		Operation: operation,
		Component: component,
		Cause:     err,
		Stack:     captureStack(),
	}
}

// Invariant builds the error value that operators panic with when a caller
// broke the operator contract.
func Invariant(code, component, operation, format string, args ...any) *DBError {
	return &DBError{
		Code:      code,
		Category:  ErrCategoryInvariant,
		Message:   fmt.Sprintf(format, args...),
		Operation: operation,
		Component: component,
		Stack:     captureStack(),
	}
}

// WithDetail sets Detail and returns the receiver for chaining.
func (e *DBError) WithDetail(format string, args ...any) *DBError {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// WithHint sets Hint and returns the receiver for chaining.
func (e *DBError) WithHint(hint string) *DBError {
	e.Hint = hint
	return e
}

// WithOperation sets Operation and Component and returns the receiver.
func (e *DBError) WithOperation(operation, component string) *DBError {
	e.Operation = operation
	e.Component = component
	return e
}

// HasCode reports whether err or any error it wraps is a DBError with code.
func HasCode(err error, code string) bool {
	var dbErr *DBError
	for err != nil {
		if !errors.As(err, &dbErr) {
			return false
		}
		if dbErr.Code == code {
			return true
		}
		err = dbErr.Cause
	}
	return false
}

// captureStack skips runtime.Callers, captureStack and its caller.
func captureStack() []uintptr {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	return pcs[0:n]
}

// Error implements the error interface.
//
// Format: [CODE] Message: Detail (operation: Operation, component: Component) caused by: cause
func (e *DBError) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)

	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}

	if e.Operation != "" {
		fmt.Fprintf(&b, " (operation: %s", e.Operation)
		if e.Component != "" {
			fmt.Fprintf(&b, ", component: %s", e.Component)
		}
		b.WriteString(")")
	}

	if e.Cause != nil {
		fmt.Fprintf(&b, " caused by: %v", e.Cause)
	}

	return b.String()
}

// Unwrap returns the underlying cause.
func (e *DBError) Unwrap() error {
	return e.Cause
}

// FormatStack returns a human-readable stack trace.
func (e *DBError) FormatStack() string {
	if len(e.Stack) == 0 {
		return ""
	}

	var b strings.Builder
	frames := runtime.CallersFrames(e.Stack)

	b.WriteString("Stack trace:\n")
	for {
		f, more := frames.Next()
		fmt.Fprintf(&b, "  %s\n    %s:%d\n", f.Function, f.File, f.Line)
		if !more {
			break
		}
	}

	return b.String()
}
