package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			assert.Equal(t, test.expected, test.class.String())
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection timeout", ErrConnectionTimeout, true},
		{"storage unavailable", ErrStorageUnavailable, true},
		{"context canceled", context.Canceled, true},
		{"timeout in message", fmt.Errorf("operation timeout occurred"), true},
		{"connection cycle", ErrConnectionCycle, false},
		{"duplicate identifier", ErrDuplicateIdentifier, false},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: fmt.Errorf("x")}, true},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("x")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, IsTransient(test.err))
		})
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection cycle", ErrConnectionCycle, true},
		{"invariant violation", ErrInvariantViolation, true},
		{"invalid config", ErrInvalidConfig, true},
		{"not found", ErrNotFound, false},
		{"wrapped fatal", WrapFatal(errors.New("boom"), "Evaluator", "Evaluate", "process"), true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, IsFatal(test.err))
		})
	}
}

func TestIsInvalid(t *testing.T) {
	structural := []error{
		ErrDuplicateIdentifier,
		ErrNotFound,
		ErrIncompatibleTypes,
		ErrAlreadyConnected,
		ErrForeignPort,
		ErrForeignProperty,
		ErrUnknownClassIdentifier,
	}
	for _, err := range structural {
		t.Run(err.Error(), func(t *testing.T) {
			assert.True(t, IsInvalid(err))
			assert.Equal(t, ErrorInvalid, Classify(err))
		})
	}
	assert.False(t, IsInvalid(nil))
	assert.False(t, IsInvalid(ErrConnectionTimeout))
}

func TestWrap(t *testing.T) {
	err := Wrap(ErrNotFound, "Network", "RemoveProcessor", "lookup")
	assert.Equal(t, "Network.RemoveProcessor: lookup failed: not found", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, Wrap(nil, "a", "b", "c"))
}

func TestWrapClassified(t *testing.T) {
	tests := []struct {
		name  string
		wrap  func(error, string, string, string) error
		class ErrorClass
	}{
		{"transient", WrapTransient, ErrorTransient},
		{"invalid", WrapInvalid, ErrorInvalid},
		{"fatal", WrapFatal, ErrorFatal},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.wrap(ErrIncompatibleTypes, "Network", "AddConnection", "type check")
			require.Error(t, err)

			var ce *ClassifiedError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, test.class, ce.Class)
			assert.Equal(t, "Network", ce.Component)
			assert.Equal(t, "AddConnection", ce.Operation)
			assert.Equal(t, test.class, Classify(err))
			assert.ErrorIs(t, err, ErrIncompatibleTypes)

			assert.Nil(t, test.wrap(nil, "a", "b", "c"))
		})
	}
}

func TestProcessorError(t *testing.T) {
	cause := errors.New("volume missing")
	err := fmt.Errorf("pass: %w", NewProcessorError("Raycaster", cause))

	pe, ok := AsProcessorError(err)
	require.True(t, ok)
	assert.Equal(t, "Raycaster", pe.Processor)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), `processor "Raycaster": volume missing`)

	_, ok = AsProcessorError(cause)
	assert.False(t, ok)
}

func TestInvariant(t *testing.T) {
	assert.NotPanics(t, func() { Invariant(true, "fine") })

	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		assert.ErrorIs(t, err, ErrInvariantViolation)
		assert.Contains(t, err.Error(), "dangling connection")
	}()
	Invariant(false, "dangling %s", "connection")
}
