// Package api is the HTTP boundary of the directory.
package api

import (
	"context"

	"business-directory/internal/common/config"
	"business-directory/internal/common/logger"
	"business-directory/internal/common/observability"
	"business-directory/internal/duplicates"
	"business-directory/internal/intake"
	"business-directory/internal/models"
	"business-directory/internal/moderation"
	"business-directory/internal/search"
	"business-directory/internal/storage"
	"business-directory/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type DuplicateService interface {
	FindDuplicatesByID(ctx context.Context, id string) (*models.DuplicateResult, error)
	BatchCheckDuplicates(ctx context.Context, ids []string) map[string]*models.DuplicateResult
}

type Deps struct {
	Intake     *intake.Service
	Moderation *moderation.Service
	Duplicates DuplicateService
	Stats      duplicates.StatsProvider
	Listing    search.Lister
	Businesses store.BusinessStore
	Images     storage.ImageStore
	Checks     map[string]Check
	Obs        *observability.Observability
}

type Handler struct {
	intake        *intake.Service
	moderation    *moderation.Service
	duplicates    DuplicateService
	stats         duplicates.StatsProvider
	listing       search.Lister
	businesses    store.BusinessStore
	images        storage.ImageStore
	checks        map[string]Check
	serviceName   string
	maxImageBytes int64
}

// NewRouter registers every route on a fresh gin engine.
func NewRouter(cfg *config.Config, deps Deps, log logger.Logger) *gin.Engine {
	if deps.Listing == nil {
		deps.Listing = deps.Businesses
	}
	if deps.Stats == nil {
		deps.Stats = noStats{}
	}
	h := &Handler{
		intake:        deps.Intake,
		moderation:    deps.Moderation,
		duplicates:    deps.Duplicates,
		stats:         deps.Stats,
		listing:       deps.Listing,
		businesses:    deps.Businesses,
		images:        deps.Images,
		checks:        deps.Checks,
		serviceName:   cfg.App.Name,
		maxImageBytes: cfg.Intake.MaxImageBytes,
	}
	if h.maxImageBytes <= 0 {
		h.maxImageBytes = intake.DefaultMaxImageBytes
	}

	r := gin.New()
	r.MaxMultipartMemory = h.maxImageBytes + 1<<20
	// ClientIP keys the resubmission window, so forwarded headers count only from configured proxies.
	if err := r.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		log.Error("Invalid trusted proxies, using the socket address as client ip", map[string]interface{}{
			"trustedProxies": cfg.Server.TrustedProxies,
			"error":          err.Error(),
		})
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery(), RequestLogger(log.WithFields(map[string]interface{}{"component": "http"}), deps.Obs))

	r.GET("/health", h.health)
	r.GET("/ready", h.ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.POST("/submissions", h.submit)
	api.GET("/submissions/track/:trackingId", h.track)
	api.GET("/businesses", h.listBusinesses)
	api.GET("/businesses/:id", h.getBusiness)
	api.GET("/images/:fileId", h.getImage)

	admin := api.Group("/admin", AdminAuth(cfg.Auth))
	admin.GET("/submissions", h.listSubmissions)
	admin.POST("/submissions/duplicates/batch", h.batchDuplicates)
	admin.GET("/submissions/:id", h.getSubmission)
	admin.GET("/submissions/:id/duplicates", h.submissionDuplicates)
	admin.GET("/submissions/:id/audit", h.auditTrail)
	admin.POST("/submissions/:id/approve", h.approve)
	admin.POST("/submissions/:id/reject", h.reject)
	admin.GET("/duplicates/stats", h.duplicateStats)

	return r
}

type noStats struct{}

func (noStats) GetDuplicateStats(context.Context) (*models.DuplicateStats, error) {
	return &models.DuplicateStats{}, nil
}
