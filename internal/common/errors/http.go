package errors

import "net/http"

// HTTPStatus maps an error code to the status returned by the public API.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeValidationFailed, ErrCodeInvalidInput:
		return http.StatusBadRequest
	case ErrCodeAuthentication:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeSubmissionNotFound, ErrCodeBusinessNotFound, ErrCodeImageNotFound, ErrCodeResourceNotFound:
		return http.StatusNotFound
	case ErrCodeInvalidStatusTransition, ErrCodeBusinessRuleViolation:
		return http.StatusConflict
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeImageProcessingFailed, ErrCodeExternalService:
		return http.StatusBadGateway
	case ErrCodeStoreUnavailable, ErrCodeSearchQueryFailed, ErrCodeWorkflowUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Body is the JSON error envelope written by the API.
type Body struct {
	Error   string            `json:"error"`
	Code    ErrorCode         `json:"code"`
	Details string            `json:"details,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// ToBody builds the response envelope. Details of non-retryable internal errors are not exposed.
func ToBody(e *StandardError) Body {
	body := Body{
		Error:  e.Message,
		Code:   e.Code,
		Errors: e.FieldErrors(),
	}
	if e.Code != ErrCodeInternal {
		body.Details = e.Details
	}
	return body
}
