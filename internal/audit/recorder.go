// Package audit writes moderation events to the PostgreSQL audit_log table.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"business-directory/internal/common/logger"
	"business-directory/internal/models"
)

const (
	EventSubmissionReceived = "submission_received"
	EventSubmissionApproved = "submission_approved"
	EventSubmissionRejected = "submission_rejected"
	EventApprovalReverted   = "approval_reverted"

	ResourceSubmission = "submission"
)

type Recorder interface {
	RecordSubmission(ctx context.Context, s *models.BusinessSubmission) error
	RecordDecision(ctx context.Context, d *models.ModerationDecision) error
	RecordRevert(ctx context.Context, submissionID, adminID string, cause error) error
	ListForResource(ctx context.Context, resourceType, resourceID string) ([]models.AuditEntry, error)
}

type PostgresRecorder struct {
	db     *sql.DB
	logger logger.Logger
}

func NewPostgresRecorder(db *sql.DB, log logger.Logger) *PostgresRecorder {
	return &PostgresRecorder{db: db, logger: log.WithFields(map[string]interface{}{"component": "audit"})}
}

func (r *PostgresRecorder) RecordSubmission(ctx context.Context, s *models.BusinessSubmission) error {
	return r.insert(ctx, EventSubmissionReceived, s.ID.Hex(), map[string]interface{}{
		"trackingId":     s.TrackingID,
		"businessName":   s.BusinessName,
		"submitterEmail": s.SubmitterEmail,
	}, s.CreatedAt)
}

func (r *PostgresRecorder) RecordDecision(ctx context.Context, d *models.ModerationDecision) error {
	event := EventSubmissionRejected
	if d.Decision == models.DecisionApproved {
		event = EventSubmissionApproved
	}

	details := map[string]interface{}{
		"trackingId": d.TrackingID,
		"adminId":    d.AdminID,
	}
	if d.Reason != "" {
		details["reason"] = d.Reason
	}
	if d.BusinessID != "" {
		details["businessId"] = d.BusinessID
		details["merged"] = d.Merged
	}
	return r.insert(ctx, event, d.SubmissionID, details, d.DecidedAt)
}

func (r *PostgresRecorder) RecordRevert(ctx context.Context, submissionID, adminID string, cause error) error {
	return r.insert(ctx, EventApprovalReverted, submissionID, map[string]interface{}{
		"adminId": adminID,
		"cause":   cause.Error(),
	}, time.Now().UTC())
}

func (r *PostgresRecorder) insert(ctx context.Context, event, resourceID string, details map[string]interface{}, at time.Time) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		r.logger.Warn("failed to marshal audit log details", map[string]interface{}{"error": err})
		detailsJSON = []byte("{}")
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO audit_log (event_type, resource_type, resource_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		event,
		ResourceSubmission,
		resourceID,
		detailsJSON,
		at.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("audit log insert failed: %w", err)
	}
	return nil
}

func (r *PostgresRecorder) ListForResource(ctx context.Context, resourceType, resourceID string) ([]models.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, event_type, resource_type, resource_id, details, created_at
		FROM audit_log
		WHERE resource_type = $1 AND resource_id = $2
		ORDER BY created_at ASC, id ASC`,
		resourceType, resourceID,
	)
	if err != nil {
		return nil, fmt.Errorf("audit log query failed: %w", err)
	}
	defer rows.Close()

	entries := []models.AuditEntry{}
	for rows.Next() {
		var (
			e       models.AuditEntry
			details []byte
		)
		if err := rows.Scan(&e.ID, &e.EventType, &e.ResourceType, &e.ResourceID, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit log scan failed: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				r.logger.Warn("unreadable audit details", map[string]interface{}{"id": e.ID, "error": err})
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Noop discards audit events. Used when PostgreSQL is disabled.
type Noop struct{}

func (Noop) RecordSubmission(context.Context, *models.BusinessSubmission) error { return nil }
func (Noop) RecordDecision(context.Context, *models.ModerationDecision) error { return nil }
func (Noop) RecordRevert(context.Context, string, string, error) error { return nil }
func (Noop) ListForResource(context.Context, string, string) ([]models.AuditEntry, error) {
	return []models.AuditEntry{}, nil
}
