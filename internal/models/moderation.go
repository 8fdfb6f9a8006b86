package models

import "time"

const (
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

// ModerationDecision is the audit and workflow record of an admin action.
type ModerationDecision struct {
	SubmissionID   string    `json:"submissionId"`
	TrackingID     string    `json:"trackingId"`
	Decision       string    `json:"decision"`
	AdminID        string    `json:"adminId"`
	Reason         string    `json:"reason,omitempty"`
	BusinessID     string    `json:"businessId,omitempty"`
	Merged         bool      `json:"merged,omitempty"`
	SubmitterEmail string    `json:"submitterEmail"`
	DecidedAt      time.Time `json:"decidedAt"`
}

// AuditEntry is one row of the moderation audit log.
type AuditEntry struct {
	ID           int64                  `json:"id"`
	EventType    string                 `json:"eventType"`
	ResourceType string                 `json:"resourceType"`
	ResourceID   string                 `json:"resourceId"`
	Details      map[string]interface{} `json:"details"`
	CreatedAt    time.Time              `json:"createdAt"`
}

// NotificationResult reports what the notifier delivered.
type NotificationResult struct {
	NotificationID string `json:"notificationId"`
	Status         string `json:"status"` // "sent", "failed", "disabled"
	EmailSent      bool   `json:"emailSent"`
	SMSSent        bool   `json:"smsSent"`
	SentAt         string `json:"sentAt"`
}

const (
	NotificationSent     = "sent"
	NotificationFailed   = "failed"
	NotificationDisabled = "disabled"
)
