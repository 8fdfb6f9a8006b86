// Package store defines the persistence capabilities the services depend on,
// with MongoDB implementations for production and in-memory ones for tests.
package store

import (
	"context"
	"errors"
	"time"

	"business-directory/internal/models"
)

var (
	ErrNotFound       = errors.New("store: record not found")
	ErrStatusConflict = errors.New("store: submission status changed")
)

const (
	DefaultPageSize = 12
	MaxPageSize     = 100
)

// BusinessQuery is the read-only lookup surface duplicate detection needs.
type BusinessQuery interface {
	FindByNameExact(ctx context.Context, name string) ([]models.Business, error)
	FindByMobile(ctx context.Context, mobile string) ([]models.Business, error)
	FindByEmail(ctx context.Context, email string) ([]models.Business, error)
	// FindBySocialContains matches businesses whose socialLinks.<platform> contains
	// fragment, case-insensitively.
	FindBySocialContains(ctx context.Context, platform, fragment string) ([]models.Business, error)
}

type BusinessFilter struct {
	Categories    []string
	Cities        []string
	BusinessTypes []string
	Search        string
	Verified      *bool
	Page          int
	Limit         int
}

type BusinessPage struct {
	Items []models.Business `json:"items"`
	Total int64             `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}

// TotalPages rounds up; an empty result has zero pages.
func (p BusinessPage) TotalPages() int {
	if p.Limit <= 0 {
		return 0
	}
	return int((p.Total + int64(p.Limit) - 1) / int64(p.Limit))
}

type BusinessStore interface {
	BusinessQuery
	Insert(ctx context.Context, b *models.Business) error
	Update(ctx context.Context, b *models.Business) error
	// GetByAnyID resolves either the public businessId or the storage key.
	GetByAnyID(ctx context.Context, id string) (*models.Business, error)
	List(ctx context.Context, f BusinessFilter) (BusinessPage, error)
}

type SubmissionFilter struct {
	Status string
	Page   int
	Limit  int
}

type SubmissionPage struct {
	Items []models.BusinessSubmission `json:"items"`
	Total int64                       `json:"total"`
	Page  int                         `json:"page"`
	Limit int                         `json:"limit"`
}

// DecisionUpdate moves a submission out of (or back into) pending.
// Moving back to pending clears every moderation field.
type DecisionUpdate struct {
	Status              string
	ReviewedBy          string
	ReviewedAt          time.Time
	RejectionReason     string
	PublishedBusinessID string
}

type SubmissionStore interface {
	Insert(ctx context.Context, s *models.BusinessSubmission) error
	GetByID(ctx context.Context, id string) (*models.BusinessSubmission, error)
	GetByTrackingID(ctx context.Context, trackingID string) (*models.BusinessSubmission, error)
	List(ctx context.Context, f SubmissionFilter) (SubmissionPage, error)
	// ListCreatedSince returns the newest submissions created at or after since.
	ListCreatedSince(ctx context.Context, since time.Time, limit int) ([]models.BusinessSubmission, error)
	// UpdateDecision applies upd only while the submission is still in expectedStatus.
	// It returns ErrStatusConflict when the status moved underneath the caller.
	UpdateDecision(ctx context.Context, id, expectedStatus string, upd DecisionUpdate) (*models.BusinessSubmission, error)
}

// NormalizePage applies the default and maximum page sizes.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit
}

func applyDecision(s *models.BusinessSubmission, upd DecisionUpdate) {
	s.Status = upd.Status
	s.UpdatedAt = time.Now().UTC()
	if upd.Status == models.StatusPending {
		s.ReviewedBy = ""
		s.ReviewedAt = nil
		s.RejectionReason = ""
		s.PublishedBusinessID = ""
		return
	}
	reviewedAt := upd.ReviewedAt
	s.ReviewedBy = upd.ReviewedBy
	s.ReviewedAt = &reviewedAt
	s.RejectionReason = upd.RejectionReason
	s.PublishedBusinessID = upd.PublishedBusinessID
}
