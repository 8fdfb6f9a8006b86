package intake

import (
	"context"
	stderrors "errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"business-directory/internal/common/errors"
	"business-directory/internal/common/logger"
	"business-directory/internal/models"
	"business-directory/internal/notify"
	"business-directory/internal/ratelimit"
	"business-directory/internal/storage"
	"business-directory/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)

func validForm() Form {
	return Form{
		BusinessName:     "  Kitchen Masters ",
		Categories:       `["Furniture","Kitchens","Furniture"]`,
		BusinessType:     "company",
		Cities:           `["Tbilisi"]`,
		Mobile:           "+995 599-30-40-09",
		ShortDescription: "Custom kitchens",
		SocialLinks:      `{"facebook":"https://facebook.com/kitchenmasters"}`,
		SubmitterEmail:   "owner@kitchen.ge",
		SubmitterName:    "Nino",
		Image:            &Upload{Filename: "logo.png", ContentType: "image/png", Data: pngBytes},
		ClientKey:        "203.0.113.7",
	}
}

type fakeAudit struct{ recorded []string }

func (f *fakeAudit) RecordSubmission(_ context.Context, s *models.BusinessSubmission) error {
	f.recorded = append(f.recorded, s.TrackingID)
	return nil
}

type fakeReview struct {
	err     error
	started int
}

func (f *fakeReview) StartSubmissionReview(context.Context, *models.BusinessSubmission) (int64, error) {
	f.started++
	return 2251799813685249, f.err
}

type fakeNotifier struct{ sent []notify.Message }

func (f *fakeNotifier) Notify(_ context.Context, msg notify.Message) (*models.NotificationResult, error) {
	f.sent = append(f.sent, msg)
	return &models.NotificationResult{Status: models.NotificationSent}, nil
}

type fakeDuplicates struct{ calls int }

func (f *fakeDuplicates) FindDuplicates(context.Context, *models.BusinessSubmission) (*models.DuplicateResult, error) {
	f.calls++
	return nil, stderrors.New("store down")
}

func newTestService(t *testing.T, deps Deps, opts Options) *Service {
	if deps.Submissions == nil {
		deps.Submissions = store.NewMemorySubmissions()
	}
	if deps.Images == nil {
		deps.Images = storage.NewMemoryImages()
	}
	return NewService(deps, opts, logger.NewTestLogger(t))
}

func TestSubmit_PersistsPendingSubmission(t *testing.T) {
	submissions := store.NewMemorySubmissions()
	audit := &fakeAudit{}
	svc := newTestService(t, Deps{Submissions: submissions, Audit: audit}, Options{})

	sub, err := svc.Submit(context.Background(), validForm())
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^SUB-[0-9A-F]{8}$`), sub.TrackingID)
	assert.Equal(t, models.StatusPending, sub.Status)
	assert.Equal(t, "Kitchen Masters", sub.BusinessName)
	assert.Equal(t, "+995599304009", sub.Mobile)
	assert.Equal(t, []string{"Furniture", "Kitchens"}, sub.Categories)
	require.NotNil(t, sub.ProfileImage)
	assert.Equal(t, "image/png", sub.ProfileImage.ContentType)
	assert.True(t, strings.HasPrefix(sub.ProfileImage.URL, storage.ImagePathPrefix))
	assert.False(t, sub.CreatedAt.IsZero())

	stored, err := submissions.GetByTrackingID(context.Background(), sub.TrackingID)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, stored.ID)
	assert.Equal(t, []string{sub.TrackingID}, audit.recorded)
}

func TestSubmit_ReportsEveryInvalidField(t *testing.T) {
	svc := newTestService(t, Deps{}, Options{})

	form := validForm()
	form.BusinessName = ""
	form.Mobile = "599304009"
	form.Cities = `["All Georgia","Tbilisi"]`
	form.SocialLinks = `{"tiktok":"tiktok.com/@km"}`
	form.Image = nil

	_, err := svc.Submit(context.Background(), form)
	stdErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeValidationFailed, stdErr.Code)

	fields := stdErr.FieldErrors()
	for _, key := range []string{"businessName", "mobile", "cities", "socialLinks", "socialLinks.tiktok", "profileImage"} {
		assert.Contains(t, fields, key)
	}
}

func TestSubmit_MalformedJSONField(t *testing.T) {
	svc := newTestService(t, Deps{}, Options{})

	form := validForm()
	form.Categories = `{"name":"Furniture"}`

	_, err := svc.Submit(context.Background(), form)
	stdErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Contains(t, stdErr.FieldErrors()["categories"], "Invalid format")
}

func TestSubmit_RejectsNonImageAndOversizedUploads(t *testing.T) {
	svc := newTestService(t, Deps{}, Options{MaxImageBytes: 32})

	form := validForm()
	_, err := svc.Submit(context.Background(), form)
	stdErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Contains(t, stdErr.FieldErrors()["profileImage"], "at most")

	svc = newTestService(t, Deps{}, Options{})
	form.Image = &Upload{Filename: "notes.txt", Data: []byte("plain text, not an image")}
	_, err = svc.Submit(context.Background(), form)
	stdErr, ok = errors.As(err)
	require.True(t, ok)
	assert.Equal(t, "Profile image must be an image file", stdErr.FieldErrors()["profileImage"])
}

func TestSubmit_ResubmissionWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	svc := newTestService(t, Deps{Limiter: ratelimit.NewRedisLimiter(rdb, 30*time.Second)}, Options{})
	ctx := context.Background()

	_, err := svc.Submit(ctx, validForm())
	require.NoError(t, err)

	_, err = svc.Submit(ctx, validForm())
	stdErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeRateLimited, stdErr.Code)

	other := validForm()
	other.ClientKey = "198.51.100.1"
	_, err = svc.Submit(ctx, other)
	assert.NoError(t, err)

	mr.FastForward(31 * time.Second)
	_, err = svc.Submit(ctx, validForm())
	assert.NoError(t, err)
}

func TestSubmit_StoreFailureReopensWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	submissions := store.NewMemorySubmissions()
	submissions.Err = stderrors.New("connection reset")
	svc := newTestService(t, Deps{
		Submissions: submissions,
		Limiter:     ratelimit.NewRedisLimiter(rdb, 30*time.Second),
	}, Options{})

	_, err := svc.Submit(context.Background(), validForm())
	stdErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeStoreUnavailable, stdErr.Code)

	submissions.Err = nil
	_, err = svc.Submit(context.Background(), validForm())
	assert.NoError(t, err)
}

func TestSubmit_FollowUpsNeverFailTheSubmission(t *testing.T) {
	review := &fakeReview{err: stderrors.New("broker unreachable")}
	notifier := &fakeNotifier{}
	dups := &fakeDuplicates{}
	svc := newTestService(t, Deps{Review: review, Notifier: notifier, Duplicates: dups}, Options{CheckDuplicatesOnSubmit: true})

	sub, err := svc.Submit(context.Background(), validForm())
	require.NoError(t, err)

	assert.Equal(t, 1, dups.calls)
	assert.Equal(t, 1, review.started)
	require.Len(t, notifier.sent, 1, "receipt falls back to inline delivery")
	assert.Equal(t, notify.TypeSubmissionReceived, notifier.sent[0].Type)
	assert.Equal(t, sub.TrackingID, notifier.sent[0].TrackingID)
}

func TestSubmit_ReviewProcessOwnsTheReceipt(t *testing.T) {
	review := &fakeReview{}
	notifier := &fakeNotifier{}
	svc := newTestService(t, Deps{Review: review, Notifier: notifier}, Options{})

	_, err := svc.Submit(context.Background(), validForm())
	require.NoError(t, err)
	assert.Equal(t, 1, review.started)
	assert.Empty(t, notifier.sent)
}

func TestTrack(t *testing.T) {
	svc := newTestService(t, Deps{}, Options{})
	ctx := context.Background()

	sub, err := svc.Submit(ctx, validForm())
	require.NoError(t, err)

	view, err := svc.Track(ctx, sub.TrackingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, view.Status)
	assert.Equal(t, "Kitchen Masters", view.BusinessName)

	_, err = svc.Track(ctx, "SUB-00000000")
	stdErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeSubmissionNotFound, stdErr.Code)
}
