// Package errors provides structured error handling for Quarry.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Not-found errors (file, directory, page)
//   - 3XX: Timeout errors
//   - 4XX: Validation and conflict errors
//   - 5XX: Internal and collaborator errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryNotFound indicates a missing file, directory, or page.
	CategoryNotFound Category = "NOT_FOUND"
	// CategoryTimeout indicates an operation exceeded its deadline.
	CategoryTimeout Category = "TIMEOUT"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryConflict indicates a uniqueness or registration conflict.
	CategoryConflict Category = "CONFLICT"
	// CategoryExternal indicates a failure in an external collaborator
	// (extraction, embedding) that was wrapped, not swallowed.
	CategoryExternal Category = "EXTERNAL"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
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
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigInvalid = "ERR_101_CONFIG_INVALID"

	// Not-found errors (200-299)
	ErrCodeFileNotFound       = "ERR_201_FILE_NOT_FOUND"
	ErrCodeDirectoryNotFound  = "ERR_202_DIRECTORY_NOT_FOUND"
	ErrCodePageNotFound       = "ERR_203_PAGE_NOT_FOUND"
	ErrCodeCollectionNotFound = "ERR_204_COLLECTION_NOT_FOUND"

	// Timeout errors (300-399)
	ErrCodeTimeout = "ERR_301_TIMEOUT"

	// Validation errors (400-449)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidCollection = "ERR_402_INVALID_COLLECTION"
	ErrCodeDimensionMismatch = "ERR_403_DIMENSION_MISMATCH"
	ErrCodeUnsupportedFormat = "ERR_404_UNSUPPORTED_FORMAT"

	// Conflict errors (450-499)
	ErrCodeDuplicateDirectory  = "ERR_451_DUPLICATE_DIRECTORY"
	ErrCodeDuplicateCollection = "ERR_452_DUPLICATE_COLLECTION"
	ErrCodeSyncBusy            = "ERR_453_SYNC_BUSY"

	// Internal and collaborator errors (500-599)
	ErrCodeInternal         = "ERR_501_INTERNAL"
	ErrCodeEmbeddingFailed  = "ERR_502_EMBEDDING_FAILED"
	ErrCodeExtractionFailed = "ERR_503_EXTRACTION_FAILED"
	ErrCodeStoreFailed      = "ERR_504_STORE_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	switch code {
	case ErrCodeConfigInvalid:
		return CategoryConfig
	case ErrCodeFileNotFound, ErrCodeDirectoryNotFound, ErrCodePageNotFound, ErrCodeCollectionNotFound:
		return CategoryNotFound
	case ErrCodeTimeout:
		return CategoryTimeout
	case ErrCodeInvalidInput, ErrCodeInvalidCollection, ErrCodeDimensionMismatch, ErrCodeUnsupportedFormat:
		return CategoryValidation
	case ErrCodeDuplicateDirectory, ErrCodeDuplicateCollection, ErrCodeSyncBusy:
		return CategoryConflict
	case ErrCodeEmbeddingFailed, ErrCodeExtractionFailed:
		return CategoryExternal
	default:
		return CategoryInternal
	}
}

// severityFromCode derives severity from error code.
// Collaborator failures are per-file and survivable; store and internal
// failures abort the surrounding operation.
func severityFromCode(code string) Severity {
	switch categoryFromCode(code) {
	case CategoryInternal:
		return SeverityFatal
	case CategoryExternal:
		return SeverityWarning
	default:
		return SeverityError
	}
}
