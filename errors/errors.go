// Package errors provides the error classification used across vizflow.
// Structural network errors are classified invalid, unrecoverable processor
// failures fatal, and storage or transport hiccups transient.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorTransient represents temporary errors that may be retried
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors due to invalid input or structural edits
	ErrorInvalid
	// ErrorFatal represents unrecoverable errors that should stop the current pass
	ErrorFatal
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions
var (
	// Network structure errors
	ErrDuplicateIdentifier    = errors.New("duplicate identifier")
	ErrNotFound               = errors.New("not found")
	ErrIncompatibleTypes      = errors.New("incompatible types")
	ErrAlreadyConnected       = errors.New("inport already connected")
	ErrForeignPort            = errors.New("port does not belong to the network")
	ErrForeignProperty        = errors.New("property does not belong to the network")
	ErrUnknownClassIdentifier = errors.New("unknown class identifier")
	ErrInvariantViolation     = errors.New("invariant violation")

	// Evaluation errors
	ErrConnectionCycle = errors.New("connection cycle")
	ErrProcessFailed   = errors.New("process failed")
	ErrNotReady        = errors.New("processor not ready")

	// Property errors
	ErrOutOfRange = errors.New("value out of range")
	ErrReadOnly   = errors.New("property is read-only")

	// Data errors
	ErrInvalidData     = errors.New("invalid data format")
	ErrParsingFailed   = errors.New("parsing failed")
	ErrSchemaViolation = errors.New("document does not match schema")
	ErrVersionTooNew   = errors.New("document version newer than supported")

	// Storage and transport errors
	ErrNoConnection       = errors.New("no connection available")
	ErrConnectionLost     = errors.New("connection lost")
	ErrConnectionTimeout  = errors.New("connection timeout")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrKeyNotFound        = errors.New("key not found")
	ErrVersionConflict    = errors.New("version conflict")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingConfig = errors.New("missing required configuration")

	// Resource errors
	ErrRateLimited  = errors.New("rate limited")
	ErrShuttingDown = errors.New("shutting down")
)

// ClassifiedError wraps an error with its classification
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// ProcessorError reports a recoverable failure raised by a processor's
// compute step. The processor keeps its invalidation level and is retried on
// the next evaluation pass.
type ProcessorError struct {
	Processor string
	Err       error
}

// NewProcessorError creates a recoverable processor failure.
func NewProcessorError(processor string, err error) *ProcessorError {
	return &ProcessorError{Processor: processor, Err: err}
}

// Error implements the error interface
func (pe *ProcessorError) Error() string {
	return fmt.Sprintf("processor %q: %v", pe.Processor, pe.Err)
}

// Unwrap returns the underlying error
func (pe *ProcessorError) Unwrap() error {
	return pe.Err
}

// AsProcessorError extracts a ProcessorError from err's chain.
func AsProcessorError(err error) (*ProcessorError, bool) {
	var pe *ProcessorError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsTransient checks if an error is transient and should be retried
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorTransient
	}

	if errors.Is(err, ErrConnectionTimeout) ||
		errors.Is(err, ErrConnectionLost) ||
		errors.Is(err, ErrNoConnection) ||
		errors.Is(err, ErrStorageUnavailable) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{"timeout", "temporary", "unavailable"} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// IsFatal checks if an error is fatal and should stop processing
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}

	return errors.Is(err, ErrConnectionCycle) ||
		errors.Is(err, ErrInvariantViolation) ||
		errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingConfig)
}

// IsInvalid checks if an error is due to invalid input or a rejected edit
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}

	return errors.Is(err, ErrDuplicateIdentifier) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrIncompatibleTypes) ||
		errors.Is(err, ErrAlreadyConnected) ||
		errors.Is(err, ErrForeignPort) ||
		errors.Is(err, ErrForeignProperty) ||
		errors.Is(err, ErrUnknownClassIdentifier) ||
		errors.Is(err, ErrOutOfRange) ||
		errors.Is(err, ErrReadOnly) ||
		errors.Is(err, ErrInvalidData) ||
		errors.Is(err, ErrParsingFailed) ||
		errors.Is(err, ErrSchemaViolation)
}

// Classify returns the error class for an error
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorTransient
	}

	// Explicit classification wins over sentinel matching.
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class
	}

	if IsFatal(err) {
		return ErrorFatal
	}
	if IsInvalid(err) {
		return ErrorInvalid
	}
	return ErrorTransient
}

func newClassified(class ErrorClass, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapTransient wraps an error as transient with context
func WrapTransient(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorTransient, wrappedErr, component, method, wrappedErr.Error())
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorFatal, wrappedErr, component, method, wrappedErr.Error())
}

// WrapInvalid wraps an error as invalid with context
func WrapInvalid(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorInvalid, wrappedErr, component, method, wrappedErr.Error())
}

// Invariant panics with ErrInvariantViolation when cond is false. It guards
// internal bookkeeping that no caller input can break.
func Invariant(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Errorf("%w: %s", ErrInvariantViolation, fmt.Sprintf(format, args...)))
	}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return errors.As(err, target) }

// New returns an error that formats as the given text.
func New(text string) error { return errors.New(text) }

// Join returns an error that wraps the given errors, or nil when all are nil.
func Join(errs ...error) error { return errors.Join(errs...) }
