// Package moderation implements the admin review of pending submissions:
// listing, approval with promotion to a public Business, and rejection.
package moderation

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"business-directory/internal/audit"
	"business-directory/internal/common/errors"
	"business-directory/internal/common/logger"
	"business-directory/internal/common/metrics"
	"business-directory/internal/models"
	"business-directory/internal/store"

	"github.com/google/uuid"
)

// Recorder is the audit trail the service writes decisions to.
type Recorder interface {
	RecordDecision(ctx context.Context, d *models.ModerationDecision) error
	RecordRevert(ctx context.Context, submissionID, adminID string, cause error) error
	ListForResource(ctx context.Context, resourceType, resourceID string) ([]models.AuditEntry, error)
}

// DecisionPublisher hands a decision to whatever runs the follow-up steps.
type DecisionPublisher interface {
	PublishDecision(ctx context.Context, d *models.ModerationDecision) error
}

type DuplicateFinder interface {
	BatchCheckDuplicates(ctx context.Context, ids []string) map[string]*models.DuplicateResult
}

type Deps struct {
	Submissions store.SubmissionStore
	Businesses  store.BusinessStore
	Audit       Recorder
	Publisher   DecisionPublisher
	Duplicates  DuplicateFinder
}

// ApproveRequest optionally verifies the business or merges the submission
// into an existing one instead of creating a new record.
type ApproveRequest struct {
	Verified            *bool  `json:"verified,omitempty"`
	MergeIntoBusinessID string `json:"mergeIntoBusinessId,omitempty"`
}

type Approval struct {
	Submission *models.BusinessSubmission `json:"submission"`
	Business   *models.Business           `json:"business"`
	Merged     bool                       `json:"merged"`
}

type SubmissionList struct {
	store.SubmissionPage
	TotalPages int                                `json:"totalPages"`
	Duplicates map[string]*models.DuplicateResult `json:"duplicates,omitempty"`
}

type Service struct {
	deps   Deps
	logger logger.Logger
	now    func() time.Time
}

func NewService(deps Deps, log logger.Logger) *Service {
	return &Service{
		deps:   deps,
		logger: log.WithFields(map[string]interface{}{"component": "moderation"}),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) ListSubmissions(ctx context.Context, f store.SubmissionFilter, withDuplicates bool) (*SubmissionList, error) {
	switch f.Status {
	case "", models.StatusPending, models.StatusApproved, models.StatusRejected:
	default:
		return nil, errors.NewInvalidInputError("status must be pending, approved or rejected")
	}

	page, err := s.deps.Submissions.List(ctx, f)
	if err != nil {
		return nil, errors.NewStoreUnavailableError("moderation.list", err)
	}

	out := &SubmissionList{SubmissionPage: page}
	if page.Limit > 0 {
		out.TotalPages = int((page.Total + int64(page.Limit) - 1) / int64(page.Limit))
	}
	if withDuplicates && s.deps.Duplicates != nil && len(page.Items) > 0 {
		ids := make([]string, len(page.Items))
		for i := range page.Items {
			ids[i] = page.Items[i].ID.Hex()
		}
		out.Duplicates = s.deps.Duplicates.BatchCheckDuplicates(ctx, ids)
	}
	return out, nil
}

func (s *Service) GetSubmission(ctx context.Context, id string) (*models.BusinessSubmission, error) {
	sub, err := s.deps.Submissions.GetByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return nil, errors.NewSubmissionNotFoundError(id)
		}
		return nil, errors.NewStoreUnavailableError("moderation.get", err)
	}
	return sub, nil
}

// Approve promotes a pending submission. The submission is claimed first so a
// concurrent second approval fails; if the business write then fails the claim
// is reverted and the revert is audited.
func (s *Service) Approve(ctx context.Context, id, adminID string, req ApproveRequest) (*Approval, error) {
	sub, err := s.GetSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.Status != models.StatusPending {
		return nil, errors.NewInvalidStatusTransitionError(id, sub.Status, models.StatusApproved)
	}

	var target *models.Business
	businessID := uuid.NewString()
	if mergeID := strings.TrimSpace(req.MergeIntoBusinessID); mergeID != "" {
		target, err = s.deps.Businesses.GetByAnyID(ctx, mergeID)
		if err != nil {
			if stderrors.Is(err, store.ErrNotFound) {
				return nil, errors.NewBusinessNotFoundError(mergeID)
			}
			return nil, errors.NewStoreUnavailableError("moderation.mergeTarget", err)
		}
		businessID = target.BusinessID
	}

	now := s.now()
	claimed, err := s.deps.Submissions.UpdateDecision(ctx, id, models.StatusPending, store.DecisionUpdate{
		Status:              models.StatusApproved,
		ReviewedBy:          adminID,
		ReviewedAt:          now,
		PublishedBusinessID: businessID,
	})
	if err != nil {
		return nil, s.claimError(ctx, id, models.StatusApproved, err)
	}

	business, err := s.promote(ctx, claimed, target, businessID, req.Verified, now)
	if err != nil {
		s.revert(ctx, claimed, adminID, err)
		return nil, errors.NewStoreUnavailableError("moderation.promote", err)
	}

	decision := &models.ModerationDecision{
		SubmissionID:   claimed.ID.Hex(),
		TrackingID:     claimed.TrackingID,
		Decision:       models.DecisionApproved,
		AdminID:        adminID,
		BusinessID:     business.BusinessID,
		Merged:         target != nil,
		SubmitterEmail: claimed.SubmitterEmail,
		DecidedAt:      now,
	}
	s.afterDecision(ctx, decision)

	return &Approval{Submission: claimed, Business: business, Merged: target != nil}, nil
}

func (s *Service) promote(ctx context.Context, sub *models.BusinessSubmission, target *models.Business, businessID string, verified *bool, now time.Time) (*models.Business, error) {
	if target != nil {
		target.ApplySubmission(sub)
		if verified != nil {
			target.Verified = *verified
		}
		target.UpdatedAt = now
		if err := s.deps.Businesses.Update(ctx, target); err != nil {
			return nil, err
		}
		return target, nil
	}

	b := &models.Business{BusinessID: businessID, CreatedAt: now, UpdatedAt: now}
	b.ApplySubmission(sub)
	if verified != nil {
		b.Verified = *verified
	}
	if err := s.deps.Businesses.Insert(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) revert(ctx context.Context, sub *models.BusinessSubmission, adminID string, cause error) {
	fields := map[string]interface{}{
		"submission_id": sub.ID.Hex(),
		"cause":         cause.Error(),
	}
	if _, err := s.deps.Submissions.UpdateDecision(ctx, sub.ID.Hex(), models.StatusApproved, store.DecisionUpdate{
		Status: models.StatusPending,
	}); err != nil {
		fields["error"] = err.Error()
		s.logger.Error("Failed to revert approval, submission left approved without a business", fields)
		return
	}
	s.logger.Warn("Approval reverted after business write failed", fields)

	if s.deps.Audit != nil {
		if err := s.deps.Audit.RecordRevert(ctx, sub.ID.Hex(), adminID, cause); err != nil {
			s.logger.Warn("Audit write failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

// Reject closes a pending submission. A reason is mandatory.
func (s *Service) Reject(ctx context.Context, id, adminID, reason string) (*models.BusinessSubmission, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, errors.NewValidationFailedError(map[string]string{"reason": "Rejection reason is required"})
	}

	sub, err := s.GetSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.Status != models.StatusPending {
		return nil, errors.NewInvalidStatusTransitionError(id, sub.Status, models.StatusRejected)
	}

	now := s.now()
	rejected, err := s.deps.Submissions.UpdateDecision(ctx, id, models.StatusPending, store.DecisionUpdate{
		Status:          models.StatusRejected,
		ReviewedBy:      adminID,
		ReviewedAt:      now,
		RejectionReason: reason,
	})
	if err != nil {
		return nil, s.claimError(ctx, id, models.StatusRejected, err)
	}

	s.afterDecision(ctx, &models.ModerationDecision{
		SubmissionID:   rejected.ID.Hex(),
		TrackingID:     rejected.TrackingID,
		Decision:       models.DecisionRejected,
		AdminID:        adminID,
		Reason:         reason,
		SubmitterEmail: rejected.SubmitterEmail,
		DecidedAt:      now,
	})
	return rejected, nil
}

func (s *Service) claimError(ctx context.Context, id, to string, err error) error {
	switch {
	case stderrors.Is(err, store.ErrStatusConflict):
		from := "changed"
		if cur, getErr := s.deps.Submissions.GetByID(ctx, id); getErr == nil {
			from = cur.Status
		}
		return errors.NewInvalidStatusTransitionError(id, from, to)
	case stderrors.Is(err, store.ErrNotFound):
		return errors.NewSubmissionNotFoundError(id)
	default:
		return errors.NewStoreUnavailableError("moderation.decide", err)
	}
}

// afterDecision runs the non-critical steps; failures are logged only.
func (s *Service) afterDecision(ctx context.Context, d *models.ModerationDecision) {
	metrics.ModerationDecisions.WithLabelValues(d.Decision).Inc()
	fields := map[string]interface{}{
		"submission_id": d.SubmissionID,
		"decision":      d.Decision,
		"admin_id":      d.AdminID,
	}
	s.logger.Info("Submission decided", fields)

	if s.deps.Audit != nil {
		if err := s.deps.Audit.RecordDecision(ctx, d); err != nil {
			s.logger.Warn("Audit write failed", map[string]interface{}{"submission_id": d.SubmissionID, "error": err.Error()})
		}
	}
	if s.deps.Publisher != nil {
		if err := s.deps.Publisher.PublishDecision(ctx, d); err != nil {
			s.logger.Warn("Decision follow-up failed", map[string]interface{}{"submission_id": d.SubmissionID, "error": err.Error()})
		}
	}
}

// AuditTrail lists the audit rows recorded for a submission, oldest first.
func (s *Service) AuditTrail(ctx context.Context, id string) ([]models.AuditEntry, error) {
	if _, err := s.GetSubmission(ctx, id); err != nil {
		return nil, err
	}
	if s.deps.Audit == nil {
		return []models.AuditEntry{}, nil
	}
	entries, err := s.deps.Audit.ListForResource(ctx, audit.ResourceSubmission, id)
	if err != nil {
		return nil, errors.NewStoreUnavailableError("moderation.audit", err)
	}
	return entries, nil
}
