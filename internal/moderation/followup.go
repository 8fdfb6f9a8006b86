package moderation

import (
	"context"
	stderrors "errors"

	"business-directory/internal/common/logger"
	"business-directory/internal/models"
	"business-directory/internal/notify"
	"business-directory/internal/search"
	"business-directory/internal/store"
)

type Notifier interface {
	Notify(ctx context.Context, msg notify.Message) (*models.NotificationResult, error)
}

// InlineFollowUp performs the decision follow-ups in-process. It stands in for
// the workflow engine when none is configured.
type InlineFollowUp struct {
	submissions store.SubmissionStore
	businesses  store.BusinessStore
	notifier    Notifier
	indexer     search.Indexer
	logger      logger.Logger
}

// NewInlineFollowUp wires the follow-ups; notifier and indexer may be nil.
func NewInlineFollowUp(submissions store.SubmissionStore, businesses store.BusinessStore, notifier Notifier, indexer search.Indexer, log logger.Logger) *InlineFollowUp {
	return &InlineFollowUp{
		submissions: submissions,
		businesses:  businesses,
		notifier:    notifier,
		indexer:     indexer,
		logger:      log.WithFields(map[string]interface{}{"component": "followup"}),
	}
}

// PublishDecision notifies the submitter and, on approval, indexes the business.
// Both steps are attempted and their errors joined.
func (f *InlineFollowUp) PublishDecision(ctx context.Context, d *models.ModerationDecision) error {
	var errs []error

	if f.notifier != nil {
		sub, err := f.submissions.GetByID(ctx, d.SubmissionID)
		if err != nil {
			errs = append(errs, err)
		} else if _, err := f.notifier.Notify(ctx, DecisionMessage(sub, d)); err != nil {
			errs = append(errs, err)
		}
	}

	if f.indexer != nil && d.Decision == models.DecisionApproved && d.BusinessID != "" {
		b, err := f.businesses.GetByAnyID(ctx, d.BusinessID)
		if err != nil {
			errs = append(errs, err)
		} else if err := f.indexer.IndexBusiness(ctx, b); err != nil {
			errs = append(errs, err)
		}
	}

	return stderrors.Join(errs...)
}

// DecisionMessage builds the submitter notification for a decision.
func DecisionMessage(sub *models.BusinessSubmission, d *models.ModerationDecision) notify.Message {
	msg := notify.Message{
		Type:          notify.TypeSubmissionRejected,
		Email:         sub.SubmitterEmail,
		TrackingID:    sub.TrackingID,
		BusinessName:  sub.BusinessName,
		SubmitterName: sub.SubmitterName,
		Reason:        d.Reason,
	}
	if d.Decision == models.DecisionApproved {
		msg.Type = notify.TypeSubmissionApproved
		msg.Mobile = sub.Mobile
		msg.BusinessID = d.BusinessID
	}
	return msg
}
