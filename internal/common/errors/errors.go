// Package errors provides standardized error handling for the intake bot core.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeAnswerValidationFailed ErrorCode = "ANSWER_VALIDATION_FAILED"
	ErrCodeCatalogInconsistent    ErrorCode = "CATALOG_INCONSISTENT"
	ErrCodeCatalogEmpty           ErrorCode = "CATALOG_EMPTY"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeApplicationNotFound      ErrorCode = "APPLICATION_NOT_FOUND"

	ErrCodeChatSendFailed         ErrorCode = "CHAT_SEND_FAILED"
	ErrCodeChatFileFetchFailed    ErrorCode = "CHAT_FILE_FETCH_FAILED"
	ErrCodeTranslationFailed      ErrorCode = "TRANSLATION_FAILED"
	ErrCodeTranslationTimeout     ErrorCode = "TRANSLATION_TIMEOUT"
	ErrCodeTranscriptionFailed    ErrorCode = "TRANSCRIPTION_FAILED"
	ErrCodeTranscriptionTimeout   ErrorCode = "TRANSCRIPTION_TIMEOUT"
	ErrCodeSynthesisFailed        ErrorCode = "SYNTHESIS_FAILED"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewAnswerValidationFailedError creates a non-retryable answer validation error.
// The hint is short text safe to show to the applicant inline with the re-prompt.
func NewAnswerValidationFailedError(stepID, hint string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAnswerValidationFailed,
		Message:   "Answer does not satisfy the step's input constraints",
		Details:   fmt.Sprintf("stepId: %s", stepID),
		Retryable: false,
		Metadata:  map[string]interface{}{"hint": hint},
		Timestamp: time.Now().UTC(),
	}
}

// NewCatalogInconsistentError creates a fatal-for-this-application catalog error.
func NewCatalogInconsistentError(stepID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCatalogInconsistent,
		Message:   "Current step no longer resolvable against the question catalog",
		Details:   fmt.Sprintf("stepId: %s", stepID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCatalogEmptyError signals a catalog with no active steps.
func NewCatalogEmptyError() *StandardError {
	return &StandardError{
		Code:      ErrCodeCatalogEmpty,
		Message:   "Question catalog has no active steps",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewApplicationNotFoundError creates a non-retryable lookup error.
func NewApplicationNotFoundError(userID int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeApplicationNotFound,
		Message:   "No application for platform user",
		Details:   fmt.Sprintf("userId: %d", userID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewChatSendFailedError creates a retryable chat platform send error.
func NewChatSendFailedError(method string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeChatSendFailed,
		Message:   "Chat platform send failed",
		Details:   fmt.Sprintf("method: %s, error: %s", method, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewChatFileFetchFailedError creates a retryable media fetch error.
func NewChatFileFetchFailedError(fileID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeChatFileFetchFailed,
		Message:   "Chat platform file fetch failed",
		Details:   fmt.Sprintf("fileId: %s, error: %s", fileID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewTranslationFailedError creates a retryable translation provider error.
// Callers degrade to storing the original text rather than failing the event.
func NewTranslationFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTranslationFailed,
		Message:   "Translation provider error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewTranslationTimeoutError creates a non-retryable (degrade to original) timeout error.
func NewTranslationTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeTranslationTimeout,
		Message:   "Translation call exceeded timeout threshold",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTranscriptionFailedError creates a retryable transcription provider error.
// Callers degrade to skipping the transcript rather than failing the event.
func NewTranscriptionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTranscriptionFailed,
		Message:   "Transcription provider error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewTranscriptionTimeoutError creates a non-retryable (skip transcript) timeout error.
func NewTranscriptionTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeTranscriptionTimeout,
		Message:   "Transcription call exceeded timeout threshold",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSynthesisFailedError creates a non-retryable speech synthesis error.
func NewSynthesisFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSynthesisFailed,
		Message:   "Speech synthesis provider error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Retry Policy
// ==========================

// GetRetryCount returns the recommended retry count per error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeNotificationSendFailed:
		return 3

	case ErrCodeChatSendFailed,
		ErrCodeChatFileFetchFailed:
		return 1 // bounded retry for platform sends

	case ErrCodeTranslationFailed,
		ErrCodeTranscriptionFailed:
		return 1 // then degrade

	default:
		return 0 // validation / stale / catalog errors: no retry
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// CodeOf extracts the error code, or empty for non-standard errors.
func CodeOf(err error) ErrorCode {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsCode reports whether err is a StandardError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// Hint extracts the applicant-facing hint from a validation error, if any.
func Hint(e *StandardError) string {
	if e == nil || e.Metadata == nil {
		return ""
	}
	if h, ok := e.Metadata["hint"].(string); ok {
		return h
	}
	return ""
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.Contains(codeStr, "CATALOG"):
		return "CATALOG"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY") || strings.Contains(codeStr, "APPLICATION"):
		return "DATABASE"
	case strings.Contains(codeStr, "TRANSLATION") || strings.Contains(codeStr, "TRANSCRIPTION") || strings.Contains(codeStr, "SYNTHESIS"):
		return "PROVIDER"
	case strings.Contains(codeStr, "CHAT"):
		return "CHAT"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	default:
		return "OTHER"
	}
}
