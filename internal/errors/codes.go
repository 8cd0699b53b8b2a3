// Package errors provides structured error handling for Inkdex.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Settings and configuration errors
//   - 2XX: IO errors (file, disk)
//   - 3XX: RPC and socket errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
//   - 6XX: Indexing errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates settings and configuration errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and disk I/O errors.
	CategoryIO Category = "IO"
	// CategoryRPC indicates socket and protocol errors.
	CategoryRPC Category = "RPC"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
	// CategoryIndexing indicates indexing workflow errors.
	CategoryIndexing Category = "INDEXING"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Settings errors (100-199)
	ErrCodeSettingsLoad  = "ERR_101_SETTINGS_LOAD"
	ErrCodeSettingsSave  = "ERR_102_SETTINGS_SAVE"
	ErrCodeConfigInvalid = "ERR_103_CONFIG_INVALID"

	// IO errors (200-299)
	ErrCodeFileNotFound    = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFilePermission  = "ERR_202_FILE_PERMISSION"
	ErrCodeSettingsCorrupt = "ERR_203_SETTINGS_CORRUPT"

	// RPC errors (300-399)
	ErrCodeRPCTimeout     = "ERR_301_RPC_TIMEOUT"
	ErrCodeRPCUnavailable = "ERR_302_RPC_UNAVAILABLE"
	ErrCodeRPCProtocol    = "ERR_303_RPC_PROTOCOL"

	// Validation errors (400-499)
	ErrCodeInvalidInput   = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidPath    = "ERR_402_INVALID_PATH"
	ErrCodeBadModelValue  = "ERR_403_BAD_MODEL_VALUE"
	ErrCodeMissingModel   = "ERR_404_MISSING_MODEL"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"

	// Indexing errors (600-699)
	ErrCodeIndexBusy     = "ERR_601_INDEX_BUSY"
	ErrCodeEngineCommand = "ERR_602_ENGINE_COMMAND"
	ErrCodeMetaFetch     = "ERR_603_META_FETCH"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "101" from "ERR_101_SETTINGS_LOAD")
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryRPC
	case '4':
		return CategoryValidation
	case '6':
		return CategoryIndexing
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	if code == ErrCodeSettingsCorrupt {
		return SeverityFatal
	}

	// Retryable errors get warning severity
	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
// A busy workspace is retryable: the caller may try again once the
// current run completes.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeRPCTimeout, ErrCodeRPCUnavailable, ErrCodeIndexBusy:
		return true
	default:
		return false
	}
}
