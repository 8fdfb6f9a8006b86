package errors

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name        string
		err         *StandardError
		wantCode    string
		wantRetries int
	}{
		{
			name:        "retryable store failure",
			err:         NewStoreUnavailableError("find", fmt.Errorf("connection refused")),
			wantCode:    "STORE_UNAVAILABLE",
			wantRetries: 3,
		},
		{
			name:        "not found is terminal",
			err:         NewSubmissionNotFoundError("abc"),
			wantCode:    "SUBMISSION_NOT_FOUND",
			wantRetries: 0,
		},
		{
			name:        "unmapped code falls back to itself",
			err:         NewRateLimitedError(10 * time.Second),
			wantCode:    "RATE_LIMITED",
			wantRetries: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmn := ConvertToBPMNError(tt.err)
			assert.Equal(t, tt.wantCode, bpmn.Code)
			assert.Equal(t, tt.wantRetries, bpmn.Retries)

			vars := bpmn.ToErrorVariables()
			assert.Equal(t, string(tt.err.Code), vars["originalErrorCode"])
			assert.Equal(t, tt.err.Retryable, vars["retryable"])
		})
	}
}

func TestValidationFailedError_FieldErrors(t *testing.T) {
	fields := map[string]string{"mobile": "invalid", "cities": "required"}
	err := NewValidationFailedError(fields)

	assert.Equal(t, ErrCodeValidationFailed, err.Code)
	assert.Equal(t, fields, err.FieldErrors())
	assert.False(t, err.Retryable)

	body := ToBody(err)
	assert.Equal(t, fields, body.Errors)
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(body.Code))
}

func TestAs_UnwrapsChain(t *testing.T) {
	wrapped := fmt.Errorf("approve: %w", NewInvalidStatusTransitionError("s1", "approved", "approved"))

	stdErr, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrCodeInvalidStatusTransition, stdErr.Code)

	_, ok = As(fmt.Errorf("plain"))
	assert.False(t, ok)
}

func TestNormalize(t *testing.T) {
	stdErr := Normalize(fmt.Errorf("boom"))
	assert.Equal(t, ErrCodeInternal, stdErr.Code)
	assert.Equal(t, "boom", stdErr.Details)
	assert.Empty(t, ToBody(stdErr).Details)
}

func TestHTTPStatus(t *testing.T) {
	tests := map[ErrorCode]int{
		ErrCodeSubmissionNotFound:      http.StatusNotFound,
		ErrCodeBusinessNotFound:        http.StatusNotFound,
		ErrCodeInvalidStatusTransition: http.StatusConflict,
		ErrCodeRateLimited:             http.StatusTooManyRequests,
		ErrCodeStoreUnavailable:        http.StatusServiceUnavailable,
		ErrCodeAuthentication:          http.StatusUnauthorized,
		ErrCodeForbidden:               http.StatusForbidden,
		ErrCodeImageProcessingFailed:   http.StatusBadGateway,
		ErrCodeInternal:                http.StatusInternalServerError,
	}
	for code, want := range tests {
		assert.Equal(t, want, HTTPStatus(code), string(code))
	}
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeValidationFailed))
	assert.Equal(t, "NOT_FOUND", GetErrorCategory(ErrCodeSubmissionNotFound))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeStoreUnavailable))
	assert.Equal(t, "SEARCH", GetErrorCategory(ErrCodeIndexingFailed))
	assert.Equal(t, "DUPLICATES", GetErrorCategory(ErrCodeDuplicateCheckFailed))
	assert.True(t, IsRetryableErrorCode(ErrCodeNotificationSendFailed))
	assert.False(t, IsRetryableErrorCode(ErrCodeValidationFailed))
}
