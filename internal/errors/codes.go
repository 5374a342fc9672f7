package errors

// ErrorCode represents a machine-readable error identifier for gateway and
// frontend error handling.
type ErrorCode string

// Webhook authentication and classification errors
const (
	// Signature header missing or does not match the shared secret.
	ErrCodeInvalidSignature ErrorCode = "invalid_signature"

	// Event metadata is missing required fields (buyer, book, or seller id).
	ErrCodeMalformedEvent ErrorCode = "malformed_event"
)

// Validation errors (request input validation)
const (
	ErrCodeMissingField  ErrorCode = "missing_field"
	ErrCodeInvalidField  ErrorCode = "invalid_field"
	ErrCodeInvalidAmount ErrorCode = "invalid_amount"
)

// Resource/state errors
const (
	ErrCodeTransactionNotFound ErrorCode = "transaction_not_found"
	ErrCodeLedgerNotFound      ErrorCode = "ledger_not_found"
	ErrCodeLibraryNotFound     ErrorCode = "library_not_found"
)

// Internal/system errors
const (
	ErrCodeInternalError ErrorCode = "internal_error"
	ErrCodeStorageError  ErrorCode = "storage_error"
	ErrCodeConfigError   ErrorCode = "config_error"
)

// IsRetryable returns whether an error code represents a retryable error.
// The gateway redelivers on retryable failures; settlement idempotence makes
// that safe. Validation and authentication failures will fail identically on
// redelivery, so they are not retryable.
func (e ErrorCode) IsRetryable() bool {
	switch e {
	case ErrCodeStorageError, ErrCodeInternalError:
		return true
	default:
		return false
	}
}

// HTTPStatus returns the appropriate HTTP status code for this error.
func (e ErrorCode) HTTPStatus() int {
	switch e {
	// 400 Bad Request - client/payload validation errors
	case ErrCodeMalformedEvent,
		ErrCodeMissingField,
		ErrCodeInvalidField,
		ErrCodeInvalidAmount:
		return 400

	// 401 Unauthorized - the webhook signature is the sole authentication
	// boundary, so a bad signature is an authorization failure, not a
	// validation failure
	case ErrCodeInvalidSignature:
		return 401

	// 404 Not Found
	case ErrCodeTransactionNotFound,
		ErrCodeLedgerNotFound,
		ErrCodeLibraryNotFound:
		return 404

	// 500 Internal Server Error - storage and system errors; the gateway
	// retries these
	default:
		return 500
	}
}
