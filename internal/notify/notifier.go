// Package notify tells submitters what happened to their submission.
package notify

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"business-directory/internal/common/errors"
	"business-directory/internal/common/logger"
	"business-directory/internal/models"

	"github.com/google/uuid"
)

const (
	TypeSubmissionReceived = "submission_received"
	TypeSubmissionApproved = "submission_approved"
	TypeSubmissionRejected = "submission_rejected"
)

type EmailSender interface {
	SendText(ctx context.Context, to, subject, body string) (string, error)
}

type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) (string, error)
}

// Message carries everything the templates may reference.
type Message struct {
	Type          string `json:"notificationType"`
	Email         string `json:"email"`
	Mobile        string `json:"mobile,omitempty"`
	TrackingID    string `json:"trackingId"`
	BusinessName  string `json:"businessName"`
	SubmitterName string `json:"submitterName,omitempty"`
	Reason        string `json:"reason,omitempty"`
	BusinessID    string `json:"businessId,omitempty"`
}

type Config struct {
	EmailEnabled bool
	SMSEnabled   bool
}

type Notifier struct {
	cfg       Config
	email     EmailSender
	sms       SMSSender
	logger    logger.Logger
	templates map[string]map[string]string
}

// New builds a notifier; a nil sender disables its channel.
func New(cfg Config, email EmailSender, sms SMSSender, log logger.Logger) *Notifier {
	if email == nil {
		cfg.EmailEnabled = false
	}
	if sms == nil {
		cfg.SMSEnabled = false
	}
	return &Notifier{
		cfg:       cfg,
		email:     email,
		sms:       sms,
		logger:    log.WithFields(map[string]interface{}{"component": "notify"}),
		templates: defaultTemplates(),
	}
}

// Notify sends the e-mail for msg.Type, plus an SMS to the business mobile on approval.
// An e-mail failure is returned so callers can retry; an SMS failure is only logged.
func (n *Notifier) Notify(ctx context.Context, msg Message) (*models.NotificationResult, error) {
	tmpl, ok := n.templates[msg.Type]
	if !ok {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("unknown notification type: %s", msg.Type))
	}

	data := map[string]interface{}{
		"trackingId":    msg.TrackingID,
		"businessName":  msg.BusinessName,
		"submitterName": msg.SubmitterName,
		"reason":        msg.Reason,
		"businessId":    msg.BusinessID,
	}
	subject := renderTemplate(tmpl["subject"], data)
	body := renderTemplate(tmpl["body"], data)

	result := &models.NotificationResult{
		NotificationID: uuid.New().String(),
		Status:         models.NotificationDisabled,
		SentAt:         time.Now().UTC().Format(time.RFC3339),
	}

	if n.cfg.EmailEnabled && msg.Email != "" {
		if _, err := n.email.SendText(ctx, msg.Email, subject, body); err != nil {
			n.logger.Error("email send failed", map[string]interface{}{
				"error":      err,
				"trackingId": msg.TrackingID,
				"type":       msg.Type,
			})
			result.Status = models.NotificationFailed
			return result, errors.NewNotificationSendFailedError(msg.Type, err)
		}
		result.EmailSent = true
	}

	if n.cfg.SMSEnabled && msg.Mobile != "" && msg.Type == TypeSubmissionApproved {
		if sms, ok := n.templates[msg.Type]["sms"]; ok {
			if _, err := n.sms.SendSMS(ctx, msg.Mobile, renderTemplate(sms, data)); err != nil {
				n.logger.Warn("SMS send failed", map[string]interface{}{
					"error":      err,
					"trackingId": msg.TrackingID,
				})
			} else {
				result.SMSSent = true
			}
		}
	}

	if result.EmailSent || result.SMSSent {
		result.Status = models.NotificationSent
	}
	n.logger.Info("notification processed", map[string]interface{}{
		"notificationId": result.NotificationID,
		"type":           msg.Type,
		"status":         result.Status,
	})
	return result, nil
}

var placeholderPattern = regexp.MustCompile(`\{\{([^{}]*)\}\}`)

// renderTemplate replaces {{key}} placeholders and drops any left unresolved.
// Substituted values are never scanned again, so braces typed by a submitter stay literal.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(placeholder string) string {
		v, ok := data[strings.TrimSpace(placeholder[2:len(placeholder)-2])]
		if !ok || v == nil {
			return ""
		}
		return fmt.Sprintf("%v", v)
	})
}

func defaultTemplates() map[string]map[string]string {
	return map[string]map[string]string{
		TypeSubmissionReceived: {
			"subject": "We received your submission for {{businessName}}",
			"body": "Hello {{submitterName}},\n\nThank you for submitting {{businessName}} to the directory. " +
				"Your tracking number is {{trackingId}}. We will review it shortly.",
		},
		TypeSubmissionApproved: {
			"subject": "{{businessName}} is now listed",
			"body": "Hello {{submitterName}},\n\nYour submission {{trackingId}} was approved and " +
				"{{businessName}} is now visible in the directory.",
			"sms": "{{businessName}} is now listed in the business directory.",
		},
		TypeSubmissionRejected: {
			"subject": "Update on your submission {{trackingId}}",
			"body": "Hello {{submitterName}},\n\nUnfortunately your submission for {{businessName}} was not approved.\n" +
				"Reason: {{reason}}",
		},
	}
}
