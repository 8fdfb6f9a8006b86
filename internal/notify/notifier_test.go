package notify

import (
	"context"
	"errors"
	"testing"

	apperrors "business-directory/internal/common/errors"
	"business-directory/internal/common/logger"
	"business-directory/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentEmail struct{ to, subject, body string }

type fakeEmail struct {
	sent []sentEmail
	err  error
}

func (f *fakeEmail) SendText(_ context.Context, to, subject, body string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, sentEmail{to, subject, body})
	return "msg-1", nil
}

type fakeSMS struct {
	phones []string
	err    error
}

func (f *fakeSMS) SendSMS(_ context.Context, phone, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.phones = append(f.phones, phone)
	return "sms-1", nil
}

func approvedMessage() Message {
	return Message{
		Type:          TypeSubmissionApproved,
		Email:         "owner@kitchen.ge",
		Mobile:        "+995599304009",
		TrackingID:    "SUB-1A2B3C4D",
		BusinessName:  "Kitchen Masters",
		SubmitterName: "Nino",
	}
}

func TestNotify_ApprovedSendsEmailAndSMS(t *testing.T) {
	email, sms := &fakeEmail{}, &fakeSMS{}
	n := New(Config{EmailEnabled: true, SMSEnabled: true}, email, sms, logger.NewTestLogger(t))

	res, err := n.Notify(context.Background(), approvedMessage())
	require.NoError(t, err)

	assert.Equal(t, models.NotificationSent, res.Status)
	assert.True(t, res.EmailSent)
	assert.True(t, res.SMSSent)
	require.Len(t, email.sent, 1)
	assert.Equal(t, "Kitchen Masters is now listed", email.sent[0].subject)
	assert.Contains(t, email.sent[0].body, "SUB-1A2B3C4D")
	assert.Equal(t, []string{"+995599304009"}, sms.phones)
}

func TestNotify_RejectedIncludesReasonWithoutSMS(t *testing.T) {
	email, sms := &fakeEmail{}, &fakeSMS{}
	n := New(Config{EmailEnabled: true, SMSEnabled: true}, email, sms, logger.NewTestLogger(t))

	msg := approvedMessage()
	msg.Type = TypeSubmissionRejected
	msg.Reason = "Business already listed"

	res, err := n.Notify(context.Background(), msg)
	require.NoError(t, err)
	assert.False(t, res.SMSSent)
	assert.Empty(t, sms.phones)
	assert.Contains(t, email.sent[0].body, "Reason: Business already listed")
}

func TestNotify_EmailFailureIsRetryable(t *testing.T) {
	n := New(Config{EmailEnabled: true}, &fakeEmail{err: errors.New("throttled")}, nil, logger.NewTestLogger(t))

	res, err := n.Notify(context.Background(), approvedMessage())
	require.Error(t, err)
	assert.Equal(t, models.NotificationFailed, res.Status)

	stdErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeNotificationSendFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)
}

func TestNotify_SMSFailureDoesNotFail(t *testing.T) {
	n := New(Config{EmailEnabled: true, SMSEnabled: true}, &fakeEmail{}, &fakeSMS{err: errors.New("opted out")}, logger.NewTestLogger(t))

	res, err := n.Notify(context.Background(), approvedMessage())
	require.NoError(t, err)
	assert.Equal(t, models.NotificationSent, res.Status)
	assert.False(t, res.SMSSent)
}

func TestNotify_DisabledChannels(t *testing.T) {
	n := New(Config{EmailEnabled: true, SMSEnabled: true}, nil, nil, logger.NewTestLogger(t))

	res, err := n.Notify(context.Background(), approvedMessage())
	require.NoError(t, err)
	assert.Equal(t, models.NotificationDisabled, res.Status)
}

func TestNotify_UnknownType(t *testing.T) {
	n := New(Config{}, nil, nil, logger.NewTestLogger(t))
	_, err := n.Notify(context.Background(), Message{Type: "newsletter"})
	assert.Error(t, err)
}

func TestRenderTemplate(t *testing.T) {
	out := renderTemplate("Hi {{name}}, ref {{missing}}.", map[string]interface{}{"name": "Nino"})
	assert.Equal(t, "Hi Nino, ref .", out)
}

func TestRenderTemplate_ValuesAreNotReexpanded(t *testing.T) {
	out := renderTemplate("{{businessName}} was rejected: {{reason}}", map[string]interface{}{
		"businessName": "Shop {{reason}} {{trackingId}}",
		"reason":       "duplicate listing",
	})
	assert.Equal(t, "Shop {{reason}} {{trackingId}} was rejected: duplicate listing", out)
}
