package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrAdminDisabled      ErrCode = "ADMIN_DISABLED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden       ErrCode = "FORBIDDEN"
	ErrAdminAccessOnly ErrCode = "ADMIN_ACCESS_ONLY"
	ErrAttemptMismatch ErrCode = "ATTEMPT_MISMATCH"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Exam-specific ─────────────────────────────────────────────────
	ErrNoQuestions        ErrCode = "NO_QUESTIONS"
	ErrAttemptSubmitted   ErrCode = "ATTEMPT_SUBMITTED"
	ErrSubmitInProgress   ErrCode = "SUBMIT_IN_PROGRESS"
	ErrAttemptNotFinished ErrCode = "ATTEMPT_NOT_FINISHED"
	ErrInvalidIndex       ErrCode = "INVALID_QUESTION_INDEX"
	ErrInvalidOption      ErrCode = "INVALID_OPTION"
	ErrSubmitFailed       ErrCode = "SUBMIT_FAILED"

	// ─── Import ────────────────────────────────────────────────────────
	ErrFileRequired    ErrCode = "FILE_REQUIRED"
	ErrUnsupportedFile ErrCode = "UNSUPPORTED_FILE_TYPE"
	ErrFileTooLarge    ErrCode = "FILE_TOO_LARGE"
	ErrImportRejected  ErrCode = "IMPORT_REJECTED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Invalid password."
	case ErrAdminDisabled:
		return "Admin login is not configured on this server."
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid."
	case ErrTokenExpired:
		return "Authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrAdminAccessOnly:
		return "This resource is restricted to administrators."
	case ErrAttemptMismatch:
		return "This token does not belong to the requested attempt."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."

	// ─── Exam-specific ─────────────────────────────────────────────────
	case ErrNoQuestions:
		return "This test has no questions."
	case ErrAttemptSubmitted:
		return "This attempt has already been submitted."
	case ErrSubmitInProgress:
		return "This attempt is being submitted. Answers can no longer change."
	case ErrAttemptNotFinished:
		return "This attempt has not been submitted yet."
	case ErrInvalidIndex:
		return "Question index is out of range."
	case ErrInvalidOption:
		return "This option is not available for the current question."
	case ErrSubmitFailed:
		return "Failed to submit the test. Please try again."

	// ─── Import ────────────────────────────────────────────────────────
	case ErrFileRequired:
		return "File upload is required."
	case ErrUnsupportedFile:
		return "Unsupported file type. Upload a .csv or .xlsx file."
	case ErrFileTooLarge:
		return "File size exceeds the limit."
	case ErrImportRejected:
		return "The question file contains errors. Nothing was imported."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
