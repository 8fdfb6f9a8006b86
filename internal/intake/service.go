// Package intake turns a submitted form into a pending BusinessSubmission.
package intake

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"business-directory/internal/common/errors"
	"business-directory/internal/common/logger"
	"business-directory/internal/common/metrics"
	"business-directory/internal/common/validation"
	"business-directory/internal/imaging"
	"business-directory/internal/models"
	"business-directory/internal/notify"
	"business-directory/internal/ratelimit"
	"business-directory/internal/rules"
	"business-directory/internal/storage"
	"business-directory/internal/store"

	"github.com/google/uuid"
)

const DefaultMaxImageBytes = 5 << 20

// Upload is the profile image as read from the multipart envelope.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Form is the raw multipart payload. Categories, Cities and SocialLinks hold
// the JSON strings the client serialized into the envelope.
type Form struct {
	BusinessName           string
	Categories             string
	BusinessType           string
	Cities                 string
	Mobile                 string
	ShortDescription       string
	HasCertificate         bool
	CertificateDescription string
	SocialLinks            string
	SubmitterEmail         string
	SubmitterName          string
	Image                  *Upload
	// ClientKey identifies the submitting client for the resubmission window.
	ClientKey string
}

type DuplicateChecker interface {
	FindDuplicates(ctx context.Context, sub *models.BusinessSubmission) (*models.DuplicateResult, error)
}

type ReviewStarter interface {
	StartSubmissionReview(ctx context.Context, sub *models.BusinessSubmission) (int64, error)
}

type SubmissionRecorder interface {
	RecordSubmission(ctx context.Context, sub *models.BusinessSubmission) error
}

type Notifier interface {
	Notify(ctx context.Context, msg notify.Message) (*models.NotificationResult, error)
}

// Deps are the collaborators of the intake service. Duplicates, Review and
// Notifier are optional.
type Deps struct {
	Submissions store.SubmissionStore
	Images      storage.ImageStore
	Processor   imaging.Processor
	Limiter     ratelimit.Limiter
	Audit       SubmissionRecorder
	Duplicates  DuplicateChecker
	Review      ReviewStarter
	Notifier    Notifier
}

type Options struct {
	CheckDuplicatesOnSubmit bool
	MaxImageBytes           int64
}

type Service struct {
	deps   Deps
	opts   Options
	logger logger.Logger
	now    func() time.Time
}

func NewService(deps Deps, opts Options, log logger.Logger) *Service {
	if opts.MaxImageBytes <= 0 {
		opts.MaxImageBytes = DefaultMaxImageBytes
	}
	if deps.Processor == nil {
		deps.Processor = imaging.Passthrough{}
	}
	if deps.Limiter == nil {
		deps.Limiter = ratelimit.Noop{}
	}
	return &Service{
		deps:   deps,
		opts:   opts,
		logger: log.WithFields(map[string]interface{}{"component": "intake"}),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Submit validates the form and persists it as a pending submission.
func (s *Service) Submit(ctx context.Context, form Form) (*models.BusinessSubmission, error) {
	payload, fieldErrs := decode(form)
	result := rules.Validate(payload)
	for field, msg := range result.Errors {
		if _, exists := fieldErrs[field]; !exists {
			fieldErrs[field] = msg
		}
	}
	if form.Image != nil && len(form.Image.Data) > 0 {
		if msg := s.checkImage(form.Image); msg != "" {
			fieldErrs["profileImage"] = msg
		}
	}
	if len(fieldErrs) > 0 {
		metrics.SubmissionsReceived.WithLabelValues("invalid").Inc()
		return nil, errors.NewValidationFailedError(fieldErrs)
	}

	if form.ClientKey != "" {
		allowed, retryAfter, err := s.deps.Limiter.Allow(ctx, form.ClientKey)
		if err != nil {
			s.logger.Warn("Rate limiter unavailable, admitting submission", map[string]interface{}{
				"error": err.Error(),
			})
		} else if !allowed {
			metrics.SubmissionsReceived.WithLabelValues("rate_limited").Inc()
			return nil, errors.NewRateLimitedError(retryAfter)
		}
	}

	sub, err := s.persist(ctx, form, payload)
	if err != nil {
		if form.ClientKey != "" {
			if resetErr := s.deps.Limiter.Reset(ctx, form.ClientKey); resetErr != nil {
				s.logger.Warn("Failed to reset resubmission window", map[string]interface{}{"error": resetErr.Error()})
			}
		}
		metrics.SubmissionsReceived.WithLabelValues("failed").Inc()
		return nil, err
	}

	metrics.SubmissionsReceived.WithLabelValues("accepted").Inc()
	s.logger.Info("Submission accepted", map[string]interface{}{
		"submission_id": sub.ID.Hex(),
		"tracking_id":   sub.TrackingID,
	})

	s.followUp(ctx, sub)
	return sub, nil
}

func (s *Service) checkImage(img *Upload) string {
	if int64(len(img.Data)) > s.opts.MaxImageBytes {
		return "Profile image must be at most " + humanSize(s.opts.MaxImageBytes)
	}
	if !strings.HasPrefix(http.DetectContentType(img.Data), "image/") {
		return "Profile image must be an image file"
	}
	return ""
}

func (s *Service) persist(ctx context.Context, form Form, p rules.Payload) (*models.BusinessSubmission, error) {
	data, contentType, err := s.deps.Processor.Process(ctx, form.Image.Filename, sniff(form.Image), form.Image.Data)
	if err != nil {
		return nil, errors.Normalize(err)
	}

	image, err := s.deps.Images.Save(ctx, form.Image.Filename, contentType, data)
	if err != nil {
		return nil, errors.NewStoreUnavailableError("intake.saveImage", err)
	}

	now := s.now()
	sub := &models.BusinessSubmission{
		TrackingID:             NewTrackingID(),
		BusinessName:           strings.TrimSpace(p.BusinessName),
		Categories:             clean(p.Categories),
		BusinessType:           strings.TrimSpace(p.BusinessType),
		Cities:                 clean(p.Cities),
		Mobile:                 p.Mobile,
		ShortDescription:       strings.TrimSpace(p.ShortDescription),
		HasCertificate:         p.HasCertificate,
		CertificateDescription: certificateDescription(p),
		ProfileImage:           image,
		SocialLinks:            trimLinks(p.SocialLinks),
		SubmitterName:          strings.TrimSpace(p.SubmitterName),
		SubmitterEmail:         strings.TrimSpace(p.SubmitterEmail),
		Status:                 models.StatusPending,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	if err := s.deps.Submissions.Insert(ctx, sub); err != nil {
		return nil, errors.NewStoreUnavailableError("intake.insert", err)
	}
	return sub, nil
}

// followUp runs the steps that must never fail an accepted submission.
func (s *Service) followUp(ctx context.Context, sub *models.BusinessSubmission) {
	fields := map[string]interface{}{"tracking_id": sub.TrackingID}

	if s.deps.Audit != nil {
		if err := s.deps.Audit.RecordSubmission(ctx, sub); err != nil {
			s.logger.Warn("Audit write failed", withError(fields, err))
		}
	}

	if s.opts.CheckDuplicatesOnSubmit && s.deps.Duplicates != nil {
		res, err := s.deps.Duplicates.FindDuplicates(ctx, sub)
		if err != nil {
			s.logger.Warn("Duplicate check on submit failed", withError(fields, err))
		} else if res.HasDuplicates {
			s.logger.Info("Submission resembles existing businesses", map[string]interface{}{
				"tracking_id": sub.TrackingID,
				"match_count": res.MatchCount,
			})
		}
	}

	if s.deps.Review != nil {
		key, err := s.deps.Review.StartSubmissionReview(ctx, sub)
		if err == nil {
			s.logger.Debug("Review process started", map[string]interface{}{
				"tracking_id":          sub.TrackingID,
				"process_instance_key": key,
			})
			return
		}
		s.logger.Warn("Could not start review process", withError(fields, err))
	}

	// Without a running review process nobody else sends the receipt.
	if s.deps.Notifier != nil {
		if _, err := s.deps.Notifier.Notify(ctx, ReceivedMessage(sub)); err != nil {
			s.logger.Warn("Receipt notification failed", withError(fields, err))
		}
	}
}

// Track returns the submitter-facing view of a submission.
func (s *Service) Track(ctx context.Context, trackingID string) (*models.StatusView, error) {
	sub, err := s.deps.Submissions.GetByTrackingID(ctx, strings.TrimSpace(trackingID))
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return nil, errors.NewSubmissionNotFoundError(trackingID)
		}
		return nil, errors.NewStoreUnavailableError("intake.track", err)
	}
	view := sub.ToStatusView()
	return &view, nil
}

// ReceivedMessage is the receipt sent once a submission is stored.
func ReceivedMessage(sub *models.BusinessSubmission) notify.Message {
	return notify.Message{
		Type:          notify.TypeSubmissionReceived,
		Email:         sub.SubmitterEmail,
		TrackingID:    sub.TrackingID,
		BusinessName:  sub.BusinessName,
		SubmitterName: sub.SubmitterName,
	}
}

// NewTrackingID returns a short id the submitter can quote, e.g. SUB-3F9A21C0.
func NewTrackingID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "SUB-" + strings.ToUpper(id[:8])
}

func humanSize(n int64) string {
	if n >= 1<<20 && n%(1<<20) == 0 {
		return fmt.Sprintf("%d MB", n>>20)
	}
	return fmt.Sprintf("%d bytes", n)
}

func sniff(img *Upload) string {
	ct := http.DetectContentType(img.Data)
	if strings.HasPrefix(ct, "image/") {
		return ct
	}
	return img.ContentType
}

func certificateDescription(p rules.Payload) string {
	if !p.HasCertificate {
		return ""
	}
	return strings.TrimSpace(p.CertificateDescription)
}

func clean(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func trimLinks(l models.SocialLinks) models.SocialLinks {
	return models.SocialLinks{
		Facebook:  strings.TrimSpace(l.Facebook),
		Instagram: strings.TrimSpace(l.Instagram),
		Tiktok:    strings.TrimSpace(l.Tiktok),
		Youtube:   strings.TrimSpace(l.Youtube),
	}
}

func withError(fields map[string]interface{}, err error) map[string]interface{} {
	out := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["error"] = err.Error()
	return out
}

// decode maps the form onto a rules.Payload. JSON fields that fail their
// schema are reported under the field name and left empty.
func decode(form Form) (rules.Payload, map[string]string) {
	errs := make(map[string]string)
	p := rules.Payload{
		BusinessName:           form.BusinessName,
		BusinessType:           form.BusinessType,
		Mobile:                 rules.NormalizeMobile(form.Mobile),
		ShortDescription:       form.ShortDescription,
		HasCertificate:         form.HasCertificate,
		CertificateDescription: form.CertificateDescription,
		HasProfileImage:        form.Image != nil && len(form.Image.Data) > 0,
		SubmitterEmail:         form.SubmitterEmail,
		SubmitterName:          form.SubmitterName,
	}

	decodeJSON(validation.StringSet, "categories", form.Categories, &p.Categories, errs)
	decodeJSON(validation.StringSet, "cities", form.Cities, &p.Cities, errs)
	decodeJSON(validation.SocialLinks, "socialLinks", form.SocialLinks, &p.SocialLinks, errs)
	return p, errs
}

func decodeJSON(schema *validation.Schema, field, raw string, out interface{}, errs map[string]string) {
	if strings.TrimSpace(raw) == "" {
		return
	}
	msgs, err := schema.DecodeInto(raw, out)
	if err != nil {
		errs[field] = "Invalid value"
		return
	}
	if len(msgs) > 0 {
		errs[field] = "Invalid format: " + msgs[0]
	}
}
