package duplicates

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	apperrors "business-directory/internal/common/errors"
	"business-directory/internal/common/logger"
	"business-directory/internal/models"
	"business-directory/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func kitchenMasters() models.Business {
	return models.Business{
		BusinessID:   "public-kitchen",
		BusinessName: "Kitchen Masters",
		Mobile:       "+995599304009",
		Email:        "owner@kitchen.ge",
		SocialLinks: models.SocialLinks{
			Facebook:  "https://www.facebook.com/KitchenMasters",
			Instagram: "https://instagram.com/kitchen.masters",
		},
		CreatedAt: time.Now(),
	}
}

func newTestService(t *testing.T, businesses store.BusinessQuery, submissions SubmissionSource) *Service {
	return NewService(businesses, submissions, logger.NewTestLogger(t), Options{})
}

// countingQuery records the peak number of concurrent lookups.
type countingQuery struct {
	store.BusinessQuery
	mu       sync.Mutex
	inFlight int
	peak     int
}

func (c *countingQuery) enter() func() {
	c.mu.Lock()
	c.inFlight++
	if c.inFlight > c.peak {
		c.peak = c.inFlight
	}
	c.mu.Unlock()
	time.Sleep(2 * time.Millisecond)
	return func() {
		c.mu.Lock()
		c.inFlight--
		c.mu.Unlock()
	}
}

func (c *countingQuery) FindByNameExact(ctx context.Context, name string) ([]models.Business, error) {
	defer c.enter()()
	return c.BusinessQuery.FindByNameExact(ctx, name)
}

// ==========================
// Normalization
// ==========================

func TestNormalizeSocialURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"https://www.facebook.com/MyPage/?ref=123", "facebook.com/mypage", true},
		{"http://instagram.com/kitchen.masters/", "instagram.com/kitchen.masters", true},
		{"FACEBOOK.COM/Page", "facebook.com/page", true},
		{"https://example.com/foo", "", false},
		{"https://facebook.com", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := NormalizeSocialURL(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRank(t *testing.T) {
	order := []string{
		models.FieldBusinessName,
		models.FieldMobile,
		models.FieldEmail,
		models.FieldFacebook,
		models.FieldInstagram,
	}
	for i := 1; i < len(order); i++ {
		assert.Less(t, Rank(order[i-1]), Rank(order[i]), "%s should outrank %s", order[i-1], order[i])
	}
	assert.Greater(t, Rank("unknown"), Rank(models.FieldInstagram))
}

// ==========================
// FindDuplicates
// ==========================

func TestFindDuplicates_NameIsCaseInsensitiveExact(t *testing.T) {
	businesses := store.NewMemoryBusinesses(kitchenMasters(), models.Business{BusinessName: "Kitchen Masters Plus"})
	svc := newTestService(t, businesses, store.NewMemorySubmissions())

	res, err := svc.FindDuplicates(context.Background(), &models.BusinessSubmission{BusinessName: "kitchen masters"})
	require.NoError(t, err)

	require.Len(t, res.Matches, 1)
	assert.True(t, res.HasDuplicates)
	assert.Equal(t, 1, res.MatchCount)
	assert.Equal(t, models.FieldBusinessName, res.Matches[0].Field)
	assert.Equal(t, models.MatchTypeExact, res.Matches[0].MatchType)
	assert.Equal(t, "Kitchen Masters", res.Matches[0].MatchedValue)
	assert.True(t, res.CheckedFields.BusinessName)
	assert.False(t, res.CheckedFields.Mobile)
}

func TestFindDuplicates_MergesPerBusinessByPriority(t *testing.T) {
	existing := kitchenMasters()
	businesses := store.NewMemoryBusinesses(existing)
	svc := newTestService(t, businesses, store.NewMemorySubmissions())

	res, err := svc.FindDuplicates(context.Background(), &models.BusinessSubmission{
		BusinessName:   "KITCHEN MASTERS",
		Mobile:         "+995599304009",
		SubmitterEmail: "owner@kitchen.ge",
		SocialLinks:    models.SocialLinks{Facebook: "https://facebook.com/kitchenmasters"},
	})
	require.NoError(t, err)

	require.Len(t, res.Matches, 1)
	assert.Equal(t, models.FieldBusinessName, res.Matches[0].Field)
	assert.Equal(t, 4, businesses.Queries(), "one query per populated signal")
}

func TestFindDuplicates_LowerPriorityWhenNameDiffers(t *testing.T) {
	businesses := store.NewMemoryBusinesses(kitchenMasters())
	svc := newTestService(t, businesses, store.NewMemorySubmissions())

	res, err := svc.FindDuplicates(context.Background(), &models.BusinessSubmission{
		BusinessName: "Totally Different",
		SocialLinks:  models.SocialLinks{Instagram: "https://www.instagram.com/Kitchen.Masters/?hl=en"},
	})
	require.NoError(t, err)

	require.Len(t, res.Matches, 1)
	assert.Equal(t, models.FieldInstagram, res.Matches[0].Field)
	assert.Equal(t, models.MatchTypePartial, res.Matches[0].MatchType)
	assert.Equal(t, "https://instagram.com/kitchen.masters", res.Matches[0].MatchedValue)
}

func TestFindDuplicates_OffPlatformSocialIsUnmatchable(t *testing.T) {
	businesses := store.NewMemoryBusinesses(kitchenMasters())
	svc := newTestService(t, businesses, store.NewMemorySubmissions())

	res, err := svc.FindDuplicates(context.Background(), &models.BusinessSubmission{
		SocialLinks: models.SocialLinks{Facebook: "https://example.com/kitchenmasters"},
	})
	require.NoError(t, err)

	assert.False(t, res.HasDuplicates)
	assert.Empty(t, res.Matches)
	assert.True(t, res.CheckedFields.Facebook)
	assert.Equal(t, 0, businesses.Queries())
}

func TestFindDuplicates_MultipleBusinesses(t *testing.T) {
	other := models.Business{BusinessName: "Other", Mobile: "+995599304009"}
	businesses := store.NewMemoryBusinesses(kitchenMasters(), other)
	svc := newTestService(t, businesses, store.NewMemorySubmissions())

	res, err := svc.FindDuplicates(context.Background(), &models.BusinessSubmission{
		BusinessName: "Kitchen Masters",
		Mobile:       "+995599304009",
	})
	require.NoError(t, err)

	require.Equal(t, 2, res.MatchCount)
	assert.Equal(t, models.FieldBusinessName, res.Matches[0].Field)
	assert.Equal(t, models.FieldMobile, res.Matches[1].Field)
	assert.Equal(t, "Other", res.Matches[1].BusinessName)
}

func TestFindDuplicates_StoreErrorPropagates(t *testing.T) {
	businesses := store.NewMemoryBusinesses()
	businesses.Err = errors.New("connection refused")
	svc := newTestService(t, businesses, store.NewMemorySubmissions())

	_, err := svc.FindDuplicates(context.Background(), &models.BusinessSubmission{BusinessName: "x"})
	require.Error(t, err)

	stdErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeStoreUnavailable, stdErr.Code)
	assert.Contains(t, stdErr.Details, "connection refused")
}

func TestFindDuplicatesByID_UnknownID(t *testing.T) {
	svc := newTestService(t, store.NewMemoryBusinesses(), store.NewMemorySubmissions())

	_, err := svc.FindDuplicatesByID(context.Background(), "000000000000000000000000")
	stdErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeSubmissionNotFound, stdErr.Code)
}

// ==========================
// BatchCheckDuplicates
// ==========================

func TestChunk(t *testing.T) {
	ids := make([]string, 25)
	for i := range ids {
		ids[i] = fmt.Sprintf("id-%d", i)
	}

	chunks := chunk(ids, DefaultChunkSize)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 10)
	assert.Len(t, chunks[1], 10)
	assert.Len(t, chunks[2], 5)
	assert.Equal(t, "id-20", chunks[2][0])

	assert.Empty(t, chunk(nil, DefaultChunkSize))
}

func TestBatchCheckDuplicates_IsolatesFailuresAndBoundsConcurrency(t *testing.T) {
	submissions := store.NewMemorySubmissions()
	ctx := context.Background()

	var ids []string
	for i := 0; i < 25; i++ {
		s := &models.BusinessSubmission{BusinessName: "Kitchen Masters", CreatedAt: time.Now()}
		require.NoError(t, submissions.Insert(ctx, s))
		ids = append(ids, s.ID.Hex())
	}
	// One unresolvable id in the first chunk and one malformed id in the last.
	ids[3] = "000000000000000000000000"
	ids[24] = "not-an-id"

	query := &countingQuery{BusinessQuery: store.NewMemoryBusinesses(kitchenMasters())}
	svc := newTestService(t, query, submissions)

	results := svc.BatchCheckDuplicates(ctx, ids)

	require.Len(t, results, 25)
	for i, id := range ids {
		res := results[id]
		require.NotNil(t, res, id)
		if i == 3 || i == 24 {
			assert.True(t, res.CheckFailed)
			assert.False(t, res.HasDuplicates)
			assert.NotEmpty(t, res.Error)
			assert.NotNil(t, res.Matches)
			continue
		}
		assert.False(t, res.CheckFailed)
		assert.True(t, res.HasDuplicates)
	}
	assert.LessOrEqual(t, query.peak, DefaultChunkSize)
}

// brokenNameQuery fails lookups for one business name and answers the rest.
type brokenNameQuery struct {
	store.BusinessQuery
	broken string
}

func (q *brokenNameQuery) FindByNameExact(ctx context.Context, name string) ([]models.Business, error) {
	if name == q.broken {
		return nil, errors.New("connection reset by peer")
	}
	time.Sleep(5 * time.Millisecond)
	return q.BusinessQuery.FindByNameExact(ctx, name)
}

func TestBatchCheckDuplicates_StoreErrorKeepsSiblingsRunning(t *testing.T) {
	submissions := store.NewMemorySubmissions()
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		name := "Kitchen Masters"
		if i == 1 {
			name = "Broken Co"
		}
		s := &models.BusinessSubmission{BusinessName: name, CreatedAt: time.Now()}
		require.NoError(t, submissions.Insert(ctx, s))
		ids = append(ids, s.ID.Hex())
	}

	query := &brokenNameQuery{BusinessQuery: store.NewMemoryBusinesses(kitchenMasters()), broken: "Broken Co"}
	svc := newTestService(t, query, submissions)

	results := svc.BatchCheckDuplicates(ctx, ids)

	require.Len(t, results, 5)
	failed := results[ids[1]]
	assert.True(t, failed.CheckFailed)
	assert.Contains(t, failed.Error, "Document store unavailable")
	for i, id := range ids {
		if i == 1 {
			continue
		}
		assert.False(t, results[id].CheckFailed, id)
		assert.True(t, results[id].HasDuplicates, id)
	}
}

// ==========================
// GetDuplicateStats
// ==========================

func TestGetDuplicateStats(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	submissions := store.NewMemorySubmissions(
		models.BusinessSubmission{BusinessName: "Kitchen Masters", CreatedAt: now.Add(-time.Hour)},
		models.BusinessSubmission{BusinessName: "Fresh Bakery", CreatedAt: now.Add(-2 * time.Hour)},
		models.BusinessSubmission{BusinessName: "Flower Shop", CreatedAt: now.Add(-3 * time.Hour)},
		models.BusinessSubmission{BusinessName: "Kitchen Masters", CreatedAt: now.Add(-10 * 24 * time.Hour)},
	)
	svc := newTestService(t, store.NewMemoryBusinesses(kitchenMasters()), submissions)
	svc.now = func() time.Time { return now }

	stats, err := svc.GetDuplicateStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Checked)
	assert.Equal(t, 1, stats.WithDuplicates)
	assert.Equal(t, 33, stats.DuplicateRate)
	assert.Equal(t, DefaultStatsWindowDays, stats.WindowDays)
}

func TestGetDuplicateStats_EmptySample(t *testing.T) {
	svc := newTestService(t, store.NewMemoryBusinesses(), store.NewMemorySubmissions())

	stats, err := svc.GetDuplicateStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Checked)
	assert.Equal(t, 0, stats.DuplicateRate)
}

func TestGetDuplicateStats_StoreError(t *testing.T) {
	submissions := store.NewMemorySubmissions()
	submissions.Err = errors.New("timeout")
	svc := newTestService(t, store.NewMemoryBusinesses(), submissions)

	_, err := svc.GetDuplicateStats(context.Background())
	assert.Error(t, err)
}

func BenchmarkFindDuplicates(b *testing.B) {
	seed := make([]models.Business, 0, 500)
	for i := 0; i < 500; i++ {
		seed = append(seed, models.Business{
			BusinessName: fmt.Sprintf("Business %d", i),
			Mobile:       fmt.Sprintf("+995599%06d", i),
		})
	}
	svc := NewService(store.NewMemoryBusinesses(seed...), store.NewMemorySubmissions(), logger.NewNoOpLogger(), Options{})
	sub := &models.BusinessSubmission{
		BusinessName:   "Business 250",
		Mobile:         "+995599000250",
		SubmitterEmail: "someone@example.ge",
		SocialLinks:    models.SocialLinks{Facebook: "https://facebook.com/business250"},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := svc.FindDuplicates(context.Background(), sub); err != nil {
			b.Fatal(err)
		}
	}
}
