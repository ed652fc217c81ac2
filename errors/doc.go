// Package errors provides standardized error handling for vizflow.
//
// # Overview
//
// Errors fall into three classes: Transient (temporary, retryable), Invalid
// (rejected input or structural edit, network left unchanged) and Fatal
// (the current evaluation pass or process must stop).
//
// # Error Wrapping Pattern
//
// All wrapping follows the format:
//
//	"component.method: action failed: %w"
//
// Three wrappers attach a classification:
//
//	errors.WrapInvalid(errors.ErrDuplicateIdentifier, "Network", "AddProcessor", "identifier check")
//	errors.WrapFatal(err, "Evaluator", "Evaluate", "topological sort")
//	errors.WrapTransient(err, "Store", "Get", "kv get")
//
// Sentinels survive the wrapping, so callers test them with errors.Is:
//
//	if errors.Is(err, errors.ErrAlreadyConnected) {
//	    // ask whether to replace the existing connection
//	}
//
// # Processor failures
//
// A processor's compute step reports a recoverable failure by returning a
// *ProcessorError. The evaluator records it, leaves the processor invalid and
// continues with the rest of the pass. Returning an error classified fatal
// aborts the pass.
//
// # Invariants
//
// Internal bookkeeping failures are programming errors. Invariant panics with
// an error wrapping ErrInvariantViolation.
package errors
