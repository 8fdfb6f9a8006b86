package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"business-directory/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryBusinesses is an in-process BusinessStore. Setting Err makes every call fail with it.
type MemoryBusinesses struct {
	mu      sync.RWMutex
	items   []models.Business
	queries int

	Err error
}

func NewMemoryBusinesses(seed ...models.Business) *MemoryBusinesses {
	m := &MemoryBusinesses{}
	for i := range seed {
		b := seed[i]
		if b.ID.IsZero() {
			b.ID = primitive.NewObjectID()
		}
		m.items = append(m.items, b)
	}
	return m
}

// Queries reports how many lookups have been served.
func (m *MemoryBusinesses) Queries() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queries
}

func (m *MemoryBusinesses) Insert(_ context.Context, b *models.Business) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID.IsZero() {
		b.ID = primitive.NewObjectID()
	}
	m.items = append(m.items, *b)
	return nil
}

func (m *MemoryBusinesses) Update(_ context.Context, b *models.Business) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == b.ID {
			m.items[i] = *b
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryBusinesses) GetByAnyID(_ context.Context, id string) (*models.Business, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.items {
		if b.BusinessID == id || b.ID.Hex() == id {
			out := b
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryBusinesses) FindByNameExact(_ context.Context, name string) ([]models.Business, error) {
	return m.match(func(b models.Business) bool { return strings.EqualFold(b.BusinessName, name) })
}

func (m *MemoryBusinesses) FindByMobile(_ context.Context, mobile string) ([]models.Business, error) {
	return m.match(func(b models.Business) bool { return b.Mobile == mobile })
}

func (m *MemoryBusinesses) FindByEmail(_ context.Context, email string) ([]models.Business, error) {
	return m.match(func(b models.Business) bool { return b.Email == email })
}

func (m *MemoryBusinesses) FindBySocialContains(_ context.Context, platform, fragment string) ([]models.Business, error) {
	fragment = strings.ToLower(fragment)
	return m.match(func(b models.Business) bool {
		var link string
		switch platform {
		case "facebook":
			link = b.SocialLinks.Facebook
		case "instagram":
			link = b.SocialLinks.Instagram
		case "tiktok":
			link = b.SocialLinks.Tiktok
		case "youtube":
			link = b.SocialLinks.Youtube
		}
		return link != "" && strings.Contains(strings.ToLower(link), fragment)
	})
}

func (m *MemoryBusinesses) match(pred func(models.Business) bool) ([]models.Business, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries++

	out := []models.Business{}
	for _, b := range m.items {
		if pred(b) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *MemoryBusinesses) List(_ context.Context, f BusinessFilter) (BusinessPage, error) {
	if m.Err != nil {
		return BusinessPage{}, m.Err
	}
	page, limit := NormalizePage(f.Page, f.Limit)

	m.mu.RLock()
	matched := []models.Business{}
	for _, b := range m.items {
		if listMatches(b, f) {
			matched = append(matched, b)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Verified != matched[j].Verified {
			return matched[i].Verified
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	return BusinessPage{
		Items: window(matched, page, limit),
		Total: int64(len(matched)),
		Page:  page,
		Limit: limit,
	}, nil
}

func listMatches(b models.Business, f BusinessFilter) bool {
	if len(f.Categories) > 0 && !overlaps(b.Categories, f.Categories) {
		return false
	}
	if len(f.Cities) > 0 && !overlaps(b.Cities, append([]string{models.AllGeorgia}, f.Cities...)) {
		return false
	}
	if len(f.BusinessTypes) > 0 && !overlaps([]string{b.BusinessType}, f.BusinessTypes) {
		return false
	}
	if f.Verified != nil && b.Verified != *f.Verified {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(b.BusinessName), q) &&
			!strings.Contains(strings.ToLower(b.ShortDescription), q) {
			return false
		}
	}
	return true
}

func overlaps(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}

func window[T any](items []T, page, limit int) []T {
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// MemorySubmissions is an in-process SubmissionStore. Setting Err makes every call fail with it.
type MemorySubmissions struct {
	mu    sync.RWMutex
	items map[primitive.ObjectID]*models.BusinessSubmission

	Err error
}

func NewMemorySubmissions(seed ...models.BusinessSubmission) *MemorySubmissions {
	m := &MemorySubmissions{items: make(map[primitive.ObjectID]*models.BusinessSubmission)}
	for i := range seed {
		s := seed[i]
		if s.ID.IsZero() {
			s.ID = primitive.NewObjectID()
		}
		m.items[s.ID] = &s
	}
	return m
}

func (m *MemorySubmissions) Insert(_ context.Context, s *models.BusinessSubmission) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID.IsZero() {
		s.ID = primitive.NewObjectID()
	}
	cp := *s
	m.items[s.ID] = &cp
	return nil
}

func (m *MemorySubmissions) GetByID(_ context.Context, id string) (*models.BusinessSubmission, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.items[oid]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemorySubmissions) GetByTrackingID(_ context.Context, trackingID string) (*models.BusinessSubmission, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.items {
		if s.TrackingID == trackingID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemorySubmissions) List(_ context.Context, f SubmissionFilter) (SubmissionPage, error) {
	if m.Err != nil {
		return SubmissionPage{}, m.Err
	}
	page, limit := NormalizePage(f.Page, f.Limit)
	all := m.sorted(func(s *models.BusinessSubmission) bool {
		return f.Status == "" || s.Status == f.Status
	})
	return SubmissionPage{
		Items: window(all, page, limit),
		Total: int64(len(all)),
		Page:  page,
		Limit: limit,
	}, nil
}

func (m *MemorySubmissions) ListCreatedSince(_ context.Context, since time.Time, limit int) ([]models.BusinessSubmission, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	all := m.sorted(func(s *models.BusinessSubmission) bool { return !s.CreatedAt.Before(since) })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// sorted returns matching submissions newest first.
func (m *MemorySubmissions) sorted(pred func(*models.BusinessSubmission) bool) []models.BusinessSubmission {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.BusinessSubmission{}
	for _, s := range m.items {
		if pred(s) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *MemorySubmissions) UpdateDecision(_ context.Context, id, expectedStatus string, upd DecisionUpdate) (*models.BusinessSubmission, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.items[oid]
	if !ok {
		return nil, ErrNotFound
	}
	if s.Status != expectedStatus {
		return nil, ErrStatusConflict
	}
	applyDecision(s, upd)
	cp := *s
	return &cp, nil
}
