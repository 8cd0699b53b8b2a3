package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInkdexError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("original error")

	// When: wrapping with InkdexError
	inkErr := New(ErrCodeSettingsLoad, "cannot load settings", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, inkErr)
	assert.Equal(t, originalErr, errors.Unwrap(inkErr))
	assert.True(t, errors.Is(inkErr, originalErr))
}

func TestInkdexError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "settings error",
			code:     ErrCodeSettingsLoad,
			message:  "settings document unreadable",
			expected: "[ERR_101_SETTINGS_LOAD] settings document unreadable",
		},
		{
			name:     "busy error",
			code:     ErrCodeIndexBusy,
			message:  "indexing already running",
			expected: "[ERR_601_INDEX_BUSY] indexing already running",
		},
		{
			name:     "rpc error",
			code:     ErrCodeRPCTimeout,
			message:  "request timed out",
			expected: "[ERR_301_RPC_TIMEOUT] request timed out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestInkdexError_Is_MatchesByCode(t *testing.T) {
	err1 := New(ErrCodeIndexBusy, "workspace A busy", nil)
	err2 := New(ErrCodeIndexBusy, "workspace B busy", nil)

	assert.True(t, errors.Is(err1, err2))
}

func TestInkdexError_Is_DoesNotMatchDifferentCodes(t *testing.T) {
	err1 := New(ErrCodeIndexBusy, "busy", nil)
	err2 := New(ErrCodeSettingsLoad, "load failed", nil)

	assert.False(t, errors.Is(err1, err2))
}

func TestInkdexError_WithDetails_AddsContext(t *testing.T) {
	err := New(ErrCodeSettingsSave, "save failed", nil)

	err = err.WithDetail("workspace", "/home/user/notes")
	err = err.WithDetail("attempt", "1")

	assert.Equal(t, "/home/user/notes", err.Details["workspace"])
	assert.Equal(t, "1", err.Details["attempt"])
}

func TestInkdexError_WithSuggestion_AddsSuggestion(t *testing.T) {
	err := New(ErrCodeRPCUnavailable, "engine socket unreachable", nil)

	err = err.WithSuggestion("Check that the indexing engine is running")

	assert.Equal(t, "Check that the indexing engine is running", err.Suggestion)
}

func TestInkdexError_CategoryFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantCategory Category
	}{
		{ErrCodeSettingsLoad, CategoryConfig},
		{ErrCodeSettingsSave, CategoryConfig},
		{ErrCodeFileNotFound, CategoryIO},
		{ErrCodeSettingsCorrupt, CategoryIO},
		{ErrCodeRPCTimeout, CategoryRPC},
		{ErrCodeRPCProtocol, CategoryRPC},
		{ErrCodeInvalidInput, CategoryValidation},
		{ErrCodeBadModelValue, CategoryValidation},
		{ErrCodeInternal, CategoryInternal},
		{ErrCodeIndexBusy, CategoryIndexing},
		{ErrCodeEngineCommand, CategoryIndexing},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantCategory, err.Category)
		})
	}
}

func TestInkdexError_SeverityFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantSeverity Severity
	}{
		{ErrCodeSettingsCorrupt, SeverityFatal},
		{ErrCodeFileNotFound, SeverityError},
		{ErrCodeRPCTimeout, SeverityWarning}, // Retryable, so warning
		{ErrCodeIndexBusy, SeverityWarning},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantSeverity, err.Severity)
		})
	}
}

func TestInkdexError_RetryableFromCode(t *testing.T) {
	tests := []struct {
		code          string
		wantRetryable bool
	}{
		{ErrCodeRPCTimeout, true},
		{ErrCodeRPCUnavailable, true},
		{ErrCodeIndexBusy, true},
		{ErrCodeFileNotFound, false},
		{ErrCodeConfigInvalid, false},
		{ErrCodeSettingsCorrupt, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantRetryable, err.Retryable)
		})
	}
}

func TestWrap_CreatesInkdexErrorFromError(t *testing.T) {
	originalErr := errors.New("something went wrong")

	inkErr := Wrap(ErrCodeInternal, originalErr)

	require.NotNil(t, inkErr)
	assert.Equal(t, ErrCodeInternal, inkErr.Code)
	assert.Equal(t, "something went wrong", inkErr.Message)
	assert.Equal(t, originalErr, inkErr.Cause)
}

func TestWrap_NilError_ReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestRPCError_CreatesRetryableError(t *testing.T) {
	err := RPCError("connection refused", nil)

	assert.Equal(t, CategoryRPC, err.Category)
	assert.True(t, err.Retryable)
}

func TestValidationError_CreatesValidationCategoryError(t *testing.T) {
	err := ValidationError("workspace path cannot be empty", nil)

	assert.Equal(t, CategoryValidation, err.Category)
}

func TestIsRetryable_ChecksRetryableFlag(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "retryable InkdexError",
			err:      New(ErrCodeRPCTimeout, "timeout", nil),
			expected: true,
		},
		{
			name:     "non-retryable InkdexError",
			err:      New(ErrCodeFileNotFound, "not found", nil),
			expected: false,
		},
		{
			name:     "wrapped retryable error",
			err:      Wrap(ErrCodeRPCTimeout, errors.New("wrapped")),
			expected: true,
		},
		{
			name:     "standard error",
			err:      errors.New("standard error"),
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.err))
		})
	}
}

func TestIsFatal_ChecksFatalSeverity(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "corrupt settings error",
			err:      New(ErrCodeSettingsCorrupt, "settings document corrupt", nil),
			expected: true,
		},
		{
			name:     "non-fatal error",
			err:      New(ErrCodeFileNotFound, "not found", nil),
			expected: false,
		},
		{
			name:     "standard error",
			err:      errors.New("standard error"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsFatal(tt.err))
		})
	}
}
