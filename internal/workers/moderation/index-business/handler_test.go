package indexbusiness

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"business-directory/internal/common/config"
	"business-directory/internal/common/errors"
	"business-directory/internal/common/logger"
	"business-directory/internal/models"
	"business-directory/internal/search"
	"business-directory/internal/store"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeES accepts document writes and records their paths.
type fakeES struct {
	mu     sync.Mutex
	paths  []string
	status int
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.paths = append(f.paths, r.Method+" "+r.URL.Path)
	f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.status)
	_, _ = w.Write([]byte(`{"result":"created"}`))
}

func newTestHandler(t *testing.T, status int, seed ...models.Business) (*Handler, *fakeES) {
	fake := &fakeES{status: status}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	log := logger.NewTestLogger(t)
	idx := search.NewESIndex(es, "businesses", log)
	return NewHandler(LoadConfig(config.WorkerConfig{}), store.NewMemoryBusinesses(seed...), idx, log), fake
}

func TestHandler_Execute_IndexesApprovedBusiness(t *testing.T) {
	h, fake := newTestHandler(t, http.StatusCreated, models.Business{BusinessID: "kitchen-masters", BusinessName: "Kitchen Masters"})

	out, err := h.execute(context.Background(), &Input{Decision: models.DecisionApproved, BusinessID: "kitchen-masters"})
	require.NoError(t, err)
	assert.True(t, out.Indexed)
	assert.NotEmpty(t, out.IndexedAt)

	require.Len(t, fake.paths, 1)
	assert.True(t, strings.HasSuffix(fake.paths[0], "/businesses/_doc/kitchen-masters"), fake.paths[0])
}

func TestHandler_Execute_RejectionIsSkipped(t *testing.T) {
	h, fake := newTestHandler(t, http.StatusCreated)

	out, err := h.execute(context.Background(), &Input{Decision: models.DecisionRejected})
	require.NoError(t, err)
	assert.False(t, out.Indexed)
	assert.Empty(t, fake.paths)
}

func TestHandler_Execute_Errors(t *testing.T) {
	h, _ := newTestHandler(t, http.StatusInternalServerError, models.Business{BusinessID: "kitchen-masters"})

	tests := []struct {
		name  string
		input Input
		code  errors.ErrorCode
	}{
		{"missing id", Input{Decision: models.DecisionApproved}, errors.ErrCodeInvalidInput},
		{"unknown business", Input{Decision: models.DecisionApproved, BusinessID: "missing"}, errors.ErrCodeBusinessNotFound},
		{"index failure", Input{Decision: models.DecisionApproved, BusinessID: "kitchen-masters"}, errors.ErrCodeIndexingFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.execute(context.Background(), &tt.input)
			stdErr, ok := errors.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, stdErr.Code)
		})
	}
}
