package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"business-directory/internal/common/config"
	"business-directory/internal/common/logger"
	"business-directory/internal/duplicates"
	"business-directory/internal/intake"
	"business-directory/internal/models"
	"business-directory/internal/moderation"
	"business-directory/internal/ratelimit"
	"business-directory/internal/storage"
	"business-directory/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)

type testEnv struct {
	router      *gin.Engine
	submissions *store.MemorySubmissions
	businesses  *store.MemoryBusinesses
	images      *storage.MemoryImages
	redis       *miniredis.Miniredis
	storeErr    error
}

func newTestEnv(t *testing.T, seed ...models.Business) *testEnv {
	return newTestEnvWithConfig(t, nil, seed...)
}

func newTestEnvWithConfig(t *testing.T, configure func(*config.Config), seed ...models.Business) *testEnv {
	gin.SetMode(gin.TestMode)
	log := logger.NewTestLogger(t)

	env := &testEnv{
		submissions: store.NewMemorySubmissions(),
		businesses:  store.NewMemoryBusinesses(seed...),
		images:      storage.NewMemoryImages(),
		redis:       miniredis.RunT(t),
	}
	rdb := redis.NewClient(&redis.Options{Addr: env.redis.Addr()})

	dups := duplicates.NewService(env.businesses, env.submissions, log, duplicates.Options{})
	cfg := &config.Config{
		App:    config.AppConfig{Name: "business-directory"},
		Auth:   config.AuthConfig{JWTSecret: testSecret, AdminRole: "admin", SigningMethods: []string{"HS256"}},
		Intake: config.IntakeConfig{MaxImageBytes: 1 << 20},
	}
	if configure != nil {
		configure(cfg)
	}

	env.router = NewRouter(cfg, Deps{
		Intake: intake.NewService(intake.Deps{
			Submissions: env.submissions,
			Images:      env.images,
			Limiter:     ratelimit.NewRedisLimiter(rdb, 30*time.Second),
			Duplicates:  dups,
		}, intake.Options{CheckDuplicatesOnSubmit: true}, log),
		Moderation: moderation.NewService(moderation.Deps{
			Submissions: env.submissions,
			Businesses:  env.businesses,
			Duplicates:  dups,
		}, log),
		Duplicates: dups,
		Stats:      dups,
		Businesses: env.businesses,
		Images:     env.images,
		Checks: map[string]Check{
			"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
			"mongo": func(context.Context) error { return env.storeErr },
		},
	}, log)
	return env
}

func adminToken(t *testing.T, roles interface{}) string {
	claims := jwt.MapClaims{
		"sub":   "admin-42",
		"roles": roles,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func multipartSubmission(t *testing.T, fields map[string]string, image []byte) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if image != nil {
		part, err := w.CreateFormFile("profileImage", "logo.png")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func validFields() map[string]string {
	return map[string]string{
		"businessName":   "Kitchen Masters",
		"categories":     `["Kitchens"]`,
		"businessType":   "company",
		"cities":         `["Tbilisi"]`,
		"mobile":         "+995599304009",
		"socialLinks":    `{"facebook":"https://facebook.com/kitchenmasters"}`,
		"submitterEmail": "owner@kitchen.ge",
		"submitterName":  "Nino",
	}
}

func (env *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) submit(t *testing.T, fields map[string]string, image []byte, clientIP string) *httptest.ResponseRecorder {
	body, contentType := multipartSubmission(t, fields, image)
	req := httptest.NewRequest(http.MethodPost, "/api/submissions", body)
	req.Header.Set("Content-Type", contentType)
	req.RemoteAddr = clientIP + ":51234"
	return env.do(req)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func TestSubmit_Created(t *testing.T) {
	env := newTestEnv(t)

	rec := env.submit(t, validFields(), pngBytes, "203.0.113.7")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Submission models.BusinessSubmission `json:"submission"`
	}
	decode(t, rec, &resp)
	assert.NotEmpty(t, resp.Submission.ID)
	assert.Equal(t, models.StatusPending, resp.Submission.Status)
	require.NotNil(t, resp.Submission.ProfileImage)

	img := env.do(httptest.NewRequest(http.MethodGet, resp.Submission.ProfileImage.URL, nil))
	assert.Equal(t, http.StatusOK, img.Code)
	assert.Equal(t, "image/png", img.Header().Get("Content-Type"))
	assert.Equal(t, pngBytes, img.Body.Bytes())

	track := env.do(httptest.NewRequest(http.MethodGet, "/api/submissions/track/"+resp.Submission.TrackingID, nil))
	assert.Equal(t, http.StatusOK, track.Code)
	assert.Contains(t, track.Body.String(), `"status":"pending"`)
}

func TestSubmit_ValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	fields := validFields()
	fields["mobile"] = "599304009"
	delete(fields, "socialLinks")

	rec := env.submit(t, fields, nil, "203.0.113.8")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Error  string            `json:"error"`
		Code   string            `json:"code"`
		Errors map[string]string `json:"errors"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "VALIDATION_FAILED", body.Code)
	assert.Contains(t, body.Errors, "mobile")
	assert.Contains(t, body.Errors, "socialLinks")
	assert.Contains(t, body.Errors, "profileImage")
}

func TestSubmit_RateLimited(t *testing.T) {
	env := newTestEnv(t)

	first := env.submit(t, validFields(), pngBytes, "203.0.113.9")
	require.Equal(t, http.StatusCreated, first.Code)

	second := env.submit(t, validFields(), pngBytes, "203.0.113.9")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
}

func (env *testEnv) submitForwarded(t *testing.T, remoteIP, forwardedFor string) *httptest.ResponseRecorder {
	body, contentType := multipartSubmission(t, validFields(), pngBytes)
	req := httptest.NewRequest(http.MethodPost, "/api/submissions", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Forwarded-For", forwardedFor)
	req.RemoteAddr = remoteIP + ":51234"
	return env.do(req)
}

func TestSubmit_RateLimitIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	env := newTestEnv(t)

	first := env.submitForwarded(t, "203.0.113.9", "1.1.1.1")
	require.Equal(t, http.StatusCreated, first.Code)

	for _, spoofed := range []string{"2.2.2.2", "3.3.3.3"} {
		rec := env.submitForwarded(t, "203.0.113.9", spoofed)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code, spoofed)
	}
}

func TestSubmit_RateLimitUsesForwardedForFromTrustedProxy(t *testing.T) {
	env := newTestEnvWithConfig(t, func(cfg *config.Config) {
		cfg.Server.TrustedProxies = []string{"10.0.0.0/8"}
	})

	first := env.submitForwarded(t, "10.0.0.5", "198.51.100.7")
	require.Equal(t, http.StatusCreated, first.Code)

	other := env.submitForwarded(t, "10.0.0.5", "198.51.100.8")
	assert.Equal(t, http.StatusCreated, other.Code)

	again := env.submitForwarded(t, "10.0.0.5", "198.51.100.7")
	assert.Equal(t, http.StatusTooManyRequests, again.Code)
}

func TestGetImage_QuotesFilename(t *testing.T) {
	env := newTestEnv(t)
	img, err := env.images.Save(context.Background(), `menu "final".png`, "image/png", pngBytes)
	require.NoError(t, err)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/images/"+img.FileID, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, pngBytes, rec.Body.Bytes())

	disposition := rec.Header().Get("Content-Disposition")
	assert.Equal(t, `inline; filename="menu \"final\".png"`, disposition)
	kind, params, err := mime.ParseMediaType(disposition)
	require.NoError(t, err)
	assert.Equal(t, "inline", kind)
	assert.Equal(t, `menu "final".png`, params["filename"])

	missing := env.do(httptest.NewRequest(http.MethodGet, "/api/images/unknown", nil))
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestGetBusiness_EitherIdentifier(t *testing.T) {
	env := newTestEnv(t, models.Business{BusinessID: "kitchen-masters", BusinessName: "Kitchen Masters"})
	page, err := env.businesses.List(context.Background(), store.BusinessFilter{})
	require.NoError(t, err)
	storageKey := page.Items[0].ID.Hex()

	for _, id := range []string{"kitchen-masters", storageKey} {
		rec := env.do(httptest.NewRequest(http.MethodGet, "/api/businesses/"+id, nil))
		require.Equal(t, http.StatusOK, rec.Code, id)
		assert.Contains(t, rec.Body.String(), `"businessId":"kitchen-masters"`)
	}

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/businesses/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListBusinesses(t *testing.T) {
	env := newTestEnv(t,
		models.Business{BusinessID: "a", BusinessName: "Alpha", Cities: []string{"Tbilisi"}, CreatedAt: time.Now().Add(-time.Hour)},
		models.Business{BusinessID: "b", BusinessName: "Beta", Cities: []string{"Batumi"}, Verified: true, CreatedAt: time.Now().Add(-2 * time.Hour)},
		models.Business{BusinessID: "c", BusinessName: "Gamma", Cities: []string{models.AllGeorgia}, CreatedAt: time.Now()},
	)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/businesses?cities[]=Tbilisi&limit=10", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Items      []models.Business `json:"items"`
		Total      int64             `json:"total"`
		TotalPages int               `json:"totalPages"`
	}
	decode(t, rec, &body)
	assert.Equal(t, int64(2), body.Total)
	assert.Equal(t, 1, body.TotalPages)
	require.Len(t, body.Items, 2)
	assert.Equal(t, "c", body.Items[0].BusinessID)

	bad := env.do(httptest.NewRequest(http.MethodGet, "/api/businesses?page=x", nil))
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestAdminAuth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/admin/submissions", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/submissions", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, []string{"editor"}))
	assert.Equal(t, http.StatusForbidden, env.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/submissions", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, env.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/submissions", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, "admin"))
	assert.Equal(t, http.StatusOK, env.do(req).Code)
}

func TestAdminApproveFlow(t *testing.T) {
	env := newTestEnv(t)
	token := "Bearer " + adminToken(t, []string{"admin"})

	created := env.submit(t, validFields(), pngBytes, "203.0.113.10")
	require.Equal(t, http.StatusCreated, created.Code)
	var resp struct {
		Submission models.BusinessSubmission `json:"submission"`
	}
	decode(t, created, &resp)
	id := resp.Submission.ID.Hex()

	dupReq := httptest.NewRequest(http.MethodGet, "/api/admin/submissions/"+id+"/duplicates", nil)
	dupReq.Header.Set("Authorization", token)
	dupRec := env.do(dupReq)
	require.Equal(t, http.StatusOK, dupRec.Code)
	assert.Contains(t, dupRec.Body.String(), `"hasDuplicates":false`)

	approve := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/submissions/"+id+"/approve", bytes.NewBufferString(`{"verified":true}`))
		req.Header.Set("Authorization", token)
		req.Header.Set("Content-Type", "application/json")
		return env.do(req)
	}

	first := approve()
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	var approval moderation.Approval
	decode(t, first, &approval)
	assert.Equal(t, "admin-42", approval.Submission.ReviewedBy)
	assert.True(t, approval.Business.Verified)

	assert.Equal(t, http.StatusConflict, approve().Code)

	public := env.do(httptest.NewRequest(http.MethodGet, "/api/businesses/"+approval.Business.BusinessID, nil))
	assert.Equal(t, http.StatusOK, public.Code)
}

func TestAdminReject_RequiresReason(t *testing.T) {
	env := newTestEnv(t)
	token := "Bearer " + adminToken(t, []string{"admin"})

	sub := &models.BusinessSubmission{BusinessName: "X", Status: models.StatusPending, CreatedAt: time.Now()}
	require.NoError(t, env.submissions.Insert(context.Background(), sub))

	req := httptest.NewRequest(http.MethodPost, "/api/admin/submissions/"+sub.ID.Hex()+"/reject", bytes.NewBufferString(`{"reason":""}`))
	req.Header.Set("Authorization", token)
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, env.do(req).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/admin/submissions/"+sub.ID.Hex()+"/reject", bytes.NewBufferString(`{"reason":"Spam"}`))
	req.Header.Set("Authorization", token)
	req.Header.Set("Content-Type", "application/json")
	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"rejected"`)
}

func TestAdminBatchDuplicates(t *testing.T) {
	env := newTestEnv(t, models.Business{BusinessID: "km", BusinessName: "Kitchen Masters"})
	token := "Bearer " + adminToken(t, []string{"admin"})

	sub := &models.BusinessSubmission{BusinessName: "kitchen masters", Status: models.StatusPending, CreatedAt: time.Now()}
	require.NoError(t, env.submissions.Insert(context.Background(), sub))

	body := `{"submissionIds":["` + sub.ID.Hex() + `","bogus"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/submissions/duplicates/batch", bytes.NewBufferString(body))
	req.Header.Set("Authorization", token)
	req.Header.Set("Content-Type", "application/json")
	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	var results map[string]models.DuplicateResult
	decode(t, rec, &results)
	assert.True(t, results[sub.ID.Hex()].HasDuplicates)
	assert.True(t, results["bogus"].CheckFailed)

	empty := httptest.NewRequest(http.MethodPost, "/api/admin/submissions/duplicates/batch", bytes.NewBufferString(`{"submissionIds":[]}`))
	empty.Header.Set("Authorization", token)
	empty.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, env.do(empty).Code)
}

func TestOpsEndpoints(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusOK, env.do(httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
	assert.Equal(t, http.StatusOK, env.do(httptest.NewRequest(http.MethodGet, "/ready", nil)).Code)

	metrics := env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, metrics.Code)

	env.storeErr = errors.New("server selection timeout")
	assert.Equal(t, http.StatusServiceUnavailable, env.do(httptest.NewRequest(http.MethodGet, "/ready", nil)).Code)
}
