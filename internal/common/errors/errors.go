// Package errors provides standardized error handling for the HTTP API and BPMN workflow integration.
package errors

import (
	stderrors "errors"
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
	ErrCodeValidationFailed        ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidInput            ErrorCode = "INVALID_INPUT"
	ErrCodeRateLimited             ErrorCode = "RATE_LIMITED"
	ErrCodeInvalidStatusTransition ErrorCode = "INVALID_STATUS_TRANSITION"
	ErrCodeSubmissionNotFound      ErrorCode = "SUBMISSION_NOT_FOUND"
	ErrCodeBusinessNotFound        ErrorCode = "BUSINESS_NOT_FOUND"
	ErrCodeImageNotFound           ErrorCode = "IMAGE_NOT_FOUND"
	ErrCodeStoreUnavailable        ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeDatabaseInsertFailed    ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeImageProcessingFailed   ErrorCode = "IMAGE_PROCESSING_FAILED"
	ErrCodeDuplicateCheckFailed    ErrorCode = "DUPLICATE_CHECK_FAILED"
	ErrCodeNotificationSendFailed  ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeSearchQueryFailed       ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeIndexingFailed          ErrorCode = "INDEXING_FAILED"
	ErrCodeWorkflowUnavailable     ErrorCode = "WORKFLOW_UNAVAILABLE"
	ErrCodeAuthentication          ErrorCode = "AUTHENTICATION_ERROR"
	ErrCodeForbidden               ErrorCode = "FORBIDDEN"
	ErrCodeBusinessRuleViolation   ErrorCode = "BUSINESS_RULE_VIOLATION"
	ErrCodeExternalService         ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout                 ErrorCode = "TIMEOUT_ERROR"
	ErrCodeResourceNotFound        ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeInternal                ErrorCode = "INTERNAL_ERROR"
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
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// FieldErrors returns the per-field messages attached to a validation error.
func (e *StandardError) FieldErrors() map[string]string {
	if e.Metadata == nil {
		return nil
	}
	fields, _ := e.Metadata["errors"].(map[string]string)
	return fields
}

// As unwraps err into a StandardError when one is in the chain.
func As(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationFailedError carries every offending field so callers can report them all at once.
func NewValidationFailedError(fields map[string]string) *StandardError {
	err := newError(ErrCodeValidationFailed, "Submission validation failed", fmt.Sprintf("%d invalid field(s)", len(fields)), false)
	err.Metadata = map[string]interface{}{"errors": fields}
	return err
}

func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Invalid request payload", details, false)
}

// NewRateLimitedError reports a resubmission inside the cool-down window.
func NewRateLimitedError(retryAfter time.Duration) *StandardError {
	err := newError(ErrCodeRateLimited, "Too many submissions, please wait before submitting again",
		fmt.Sprintf("retryAfter: %s", retryAfter), false)
	err.Metadata = map[string]interface{}{"retryAfterSeconds": int(retryAfter.Round(time.Second).Seconds())}
	return err
}

func NewInvalidStatusTransitionError(submissionID, from, to string) *StandardError {
	return newError(ErrCodeInvalidStatusTransition, "Submission is not pending",
		fmt.Sprintf("submissionId: %s, status: %s, requested: %s", submissionID, from, to), false)
}

func NewSubmissionNotFoundError(id string) *StandardError {
	return newError(ErrCodeSubmissionNotFound, "Submission not found", fmt.Sprintf("id: %s", id), false)
}

func NewBusinessNotFoundError(id string) *StandardError {
	return newError(ErrCodeBusinessNotFound, "Business not found", fmt.Sprintf("id: %s", id), false)
}

func NewImageNotFoundError(id string) *StandardError {
	return newError(ErrCodeImageNotFound, "Image not found", fmt.Sprintf("fileId: %s", id), false)
}

// NewStoreUnavailableError wraps a failure talking to the document store.
func NewStoreUnavailableError(operation string, err error) *StandardError {
	return newError(ErrCodeStoreUnavailable, "Document store unavailable",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), true)
}

func NewDatabaseInsertFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseInsertFailed, "Database insert operation failed", err.Error(), true)
}

func NewImageProcessingFailedError(err error) *StandardError {
	return newError(ErrCodeImageProcessingFailed, "Image processing failed", err.Error(), true)
}

func NewDuplicateCheckFailedError(submissionID string, err error) *StandardError {
	return newError(ErrCodeDuplicateCheckFailed, "Duplicate check failed",
		fmt.Sprintf("submissionId: %s, error: %s", submissionID, err.Error()), true)
}

func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed",
		fmt.Sprintf("type: %s, error: %s", notificationType, err.Error()), true)
}

func NewSearchQueryFailedError(err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Elasticsearch query error", err.Error(), true)
}

func NewIndexingFailedError(businessID string, err error) *StandardError {
	return newError(ErrCodeIndexingFailed, "Search indexing failed",
		fmt.Sprintf("businessId: %s, error: %s", businessID, err.Error()), true)
}

func NewWorkflowUnavailableError(err error) *StandardError {
	return newError(ErrCodeWorkflowUnavailable, "Workflow engine unavailable", err.Error(), true)
}

func NewForbiddenError(details string) *StandardError {
	return newError(ErrCodeForbidden, "Admin access only", details, false)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

// Generic constructors

func NewBusinessRuleError(message, details string) *StandardError {
	return newError(ErrCodeBusinessRuleViolation, message, details, false)
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalService, fmt.Sprintf("External service '%s' error", service), err.Error(), true)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Service '%s' timeout", service), err.Error(), true)
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return newError(ErrCodeResourceNotFound, fmt.Sprintf("Resource not found in %s", service), details, false)
}

func NewAuthenticationError(details string) *StandardError {
	return newError(ErrCodeAuthentication, "Authentication failed", details, false)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to the error codes modelled in the review process.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeSubmissionNotFound:     "SUBMISSION_NOT_FOUND",
	ErrCodeBusinessNotFound:       "BUSINESS_NOT_FOUND",
	ErrCodeStoreUnavailable:       "STORE_UNAVAILABLE",
	ErrCodeDuplicateCheckFailed:   "DUPLICATE_CHECK_FAILED",
	ErrCodeNotificationSendFailed: "NOTIFICATION_SEND_FAILED",
	ErrCodeIndexingFailed:         "INDEXING_FAILED",
	ErrCodeSearchQueryFailed:      "SEARCH_QUERY_FAILED",
	ErrCodeInvalidInput:           "INVALID_INPUT",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeStoreUnavailable,
		ErrCodeDatabaseInsertFailed,
		ErrCodeDuplicateCheckFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeIndexingFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeExternalService:
		return 3

	case ErrCodeTimeout,
		ErrCodeImageProcessingFailed,
		ErrCodeWorkflowUnavailable:
		return 2

	default:
		return 0 // business errors
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	case strings.Contains(codeStr, "NOT_FOUND"):
		return "NOT_FOUND"
	case strings.Contains(codeStr, "STORE") || strings.Contains(codeStr, "DATABASE"):
		return "DATABASE"
	case strings.Contains(codeStr, "SEARCH") || strings.Contains(codeStr, "INDEX"):
		return "SEARCH"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "AUTH") || strings.Contains(codeStr, "FORBIDDEN"):
		return "AUTH"
	case strings.Contains(codeStr, "DUPLICATE"):
		return "DUPLICATES"
	default:
		return "OTHER"
	}
}
