// Package duplicates finds published businesses that look like a pending submission.
// Results are advisory input for moderators and are never persisted.
package duplicates

import (
	"context"
	stderrors "errors"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"business-directory/internal/common/errors"
	"business-directory/internal/common/logger"
	"business-directory/internal/common/metrics"
	"business-directory/internal/models"
	"business-directory/internal/store"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultChunkSize       = 10
	DefaultStatsSampleSize = 100
	DefaultStatsWindowDays = 7
)

// fieldRank orders match fields; lower wins when one business matches on several.
var fieldRank = map[string]int{
	models.FieldBusinessName: 1,
	models.FieldMobile:       2,
	models.FieldEmail:        3,
	models.FieldFacebook:     4,
	models.FieldInstagram:    5,
}

// Rank returns the priority of a match field, or math.MaxInt for unknown fields.
func Rank(field string) int {
	if r, ok := fieldRank[field]; ok {
		return r
	}
	return math.MaxInt
}

// SubmissionSource is the part of the submission store detection reads.
type SubmissionSource interface {
	GetByID(ctx context.Context, id string) (*models.BusinessSubmission, error)
	ListCreatedSince(ctx context.Context, since time.Time, limit int) ([]models.BusinessSubmission, error)
}

type Options struct {
	ChunkSize       int
	StatsSampleSize int
	StatsWindowDays int
}

type Service struct {
	businesses  store.BusinessQuery
	submissions SubmissionSource
	logger      logger.Logger
	opts        Options
	now         func() time.Time
}

func NewService(businesses store.BusinessQuery, submissions SubmissionSource, log logger.Logger, opts Options) *Service {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.StatsSampleSize <= 0 {
		opts.StatsSampleSize = DefaultStatsSampleSize
	}
	if opts.StatsWindowDays <= 0 {
		opts.StatsWindowDays = DefaultStatsWindowDays
	}
	return &Service{
		businesses:  businesses,
		submissions: submissions,
		logger:      log.WithFields(map[string]interface{}{"component": "duplicates"}),
		opts:        opts,
		now:         time.Now,
	}
}

type signal struct {
	field     string
	matchType string
	query     func(ctx context.Context) ([]models.Business, error)
	value     func(b models.Business) string
}

// FindDuplicates runs one store query per populated signal and keeps the
// best-ranked match per business. Store failures are returned, not swallowed.
func (s *Service) FindDuplicates(ctx context.Context, sub *models.BusinessSubmission) (*models.DuplicateResult, error) {
	start := time.Now()
	defer func() { metrics.DuplicateCheckDuration.Observe(time.Since(start).Seconds()) }()

	signals, checked := s.signalsFor(sub)

	best := make(map[string]models.DuplicateMatch)
	for _, sig := range signals {
		found, err := sig.query(ctx)
		if err != nil {
			metrics.DuplicateChecks.WithLabelValues("failed").Inc()
			return nil, errors.NewStoreUnavailableError("duplicates."+sig.field, err)
		}
		for _, b := range found {
			m := models.DuplicateMatch{
				Field:        sig.field,
				MatchedValue: sig.value(b),
				BusinessID:   b.ID.Hex(),
				BusinessName: b.BusinessName,
				MatchType:    sig.matchType,
			}
			if prev, ok := best[m.BusinessID]; !ok || Rank(m.Field) < Rank(prev.Field) {
				best[m.BusinessID] = m
			}
		}
	}

	matches := make([]models.DuplicateMatch, 0, len(best))
	for _, m := range best {
		matches = append(matches, m)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if Rank(matches[i].Field) != Rank(matches[j].Field) {
			return Rank(matches[i].Field) < Rank(matches[j].Field)
		}
		return matches[i].BusinessID < matches[j].BusinessID
	})

	outcome := "clean"
	if len(matches) > 0 {
		outcome = "duplicates"
	}
	metrics.DuplicateChecks.WithLabelValues(outcome).Inc()

	return &models.DuplicateResult{
		HasDuplicates: len(matches) > 0,
		MatchCount:    len(matches),
		Matches:       matches,
		CheckedFields: checked,
	}, nil
}

func (s *Service) signalsFor(sub *models.BusinessSubmission) ([]signal, models.CheckedFields) {
	var (
		signals []signal
		checked models.CheckedFields
	)

	if name := strings.TrimSpace(sub.BusinessName); name != "" {
		checked.BusinessName = true
		signals = append(signals, signal{
			field:     models.FieldBusinessName,
			matchType: models.MatchTypeExact,
			query:     func(ctx context.Context) ([]models.Business, error) { return s.businesses.FindByNameExact(ctx, name) },
			value:     func(b models.Business) string { return b.BusinessName },
		})
	}

	if mobile := strings.TrimSpace(sub.Mobile); mobile != "" {
		checked.Mobile = true
		signals = append(signals, signal{
			field:     models.FieldMobile,
			matchType: models.MatchTypeExact,
			query:     func(ctx context.Context) ([]models.Business, error) { return s.businesses.FindByMobile(ctx, mobile) },
			value:     func(b models.Business) string { return b.Mobile },
		})
	}

	if email := strings.TrimSpace(sub.SubmitterEmail); email != "" {
		checked.Email = true
		signals = append(signals, signal{
			field:     models.FieldEmail,
			matchType: models.MatchTypeExact,
			query:     func(ctx context.Context) ([]models.Business, error) { return s.businesses.FindByEmail(ctx, email) },
			value:     func(b models.Business) string { return b.Email },
		})
	}

	if link := strings.TrimSpace(sub.SocialLinks.Facebook); link != "" {
		checked.Facebook = true
		if fragment, ok := NormalizeSocialURL(link); ok {
			signals = append(signals, socialSignal(s.businesses, models.FieldFacebook, "facebook", fragment,
				func(b models.Business) string { return b.SocialLinks.Facebook }))
		}
	}

	if link := strings.TrimSpace(sub.SocialLinks.Instagram); link != "" {
		checked.Instagram = true
		if fragment, ok := NormalizeSocialURL(link); ok {
			signals = append(signals, socialSignal(s.businesses, models.FieldInstagram, "instagram", fragment,
				func(b models.Business) string { return b.SocialLinks.Instagram }))
		}
	}

	return signals, checked
}

func socialSignal(q store.BusinessQuery, field, platform, fragment string, value func(models.Business) string) signal {
	return signal{
		field:     field,
		matchType: models.MatchTypePartial,
		query: func(ctx context.Context) ([]models.Business, error) {
			return q.FindBySocialContains(ctx, platform, fragment)
		},
		value: value,
	}
}

// FindDuplicatesByID resolves the submission first; an unknown id is a not-found error.
func (s *Service) FindDuplicatesByID(ctx context.Context, id string) (*models.DuplicateResult, error) {
	sub, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return nil, errors.NewSubmissionNotFoundError(id)
		}
		return nil, errors.NewStoreUnavailableError("submissions.get", err)
	}
	return s.FindDuplicates(ctx, sub)
}

// BatchCheckDuplicates checks ids chunk by chunk, running each chunk concurrently.
// Per-id errors are downgraded so one bad id never cancels its siblings: a failing id yields an empty result flagged CheckFailed; the rest of the batch continues.
func (s *Service) BatchCheckDuplicates(ctx context.Context, ids []string) map[string]*models.DuplicateResult {
	results := make(map[string]*models.DuplicateResult, len(ids))
	var mu sync.Mutex

	for _, batch := range chunk(ids, s.opts.ChunkSize) {
		var g errgroup.Group
		for _, id := range batch {
			g.Go(func() error {
				res, err := s.FindDuplicatesByID(ctx, id)
				if err != nil {
					s.logger.Warn("Duplicate check failed for submission", map[string]interface{}{
						"submissionId": id,
						"error":        err.Error(),
					})
					res = failedResult(err)
				}

				mu.Lock()
				results[id] = res
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}
	return results
}

func failedResult(err error) *models.DuplicateResult {
	return &models.DuplicateResult{
		Matches:     []models.DuplicateMatch{},
		CheckFailed: true,
		Error:       err.Error(),
	}
}

// chunk splits ids into consecutive slices of at most size elements.
func chunk(ids []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}

// GetDuplicateStats samples recent submissions and reports how many look duplicated.
// Submissions whose check fails are left out of the sample.
func (s *Service) GetDuplicateStats(ctx context.Context) (*models.DuplicateStats, error) {
	now := s.now().UTC()
	since := now.AddDate(0, 0, -s.opts.StatsWindowDays)

	sample, err := s.submissions.ListCreatedSince(ctx, since, s.opts.StatsSampleSize)
	if err != nil {
		return nil, errors.NewStoreUnavailableError("submissions.listRecent", err)
	}

	stats := &models.DuplicateStats{WindowDays: s.opts.StatsWindowDays, GeneratedAt: now}
	for i := range sample {
		res, err := s.FindDuplicates(ctx, &sample[i])
		if err != nil {
			s.logger.Warn("Skipping submission in duplicate stats", map[string]interface{}{
				"submissionId": sample[i].ID.Hex(),
				"error":        err.Error(),
			})
			continue
		}
		stats.Checked++
		if res.HasDuplicates {
			stats.WithDuplicates++
		}
	}

	if stats.Checked > 0 {
		stats.DuplicateRate = int(math.Round(float64(stats.WithDuplicates) * 100 / float64(stats.Checked)))
	}
	return stats, nil
}
