// cmd/directory-api/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"business-directory/internal/api"
	"business-directory/internal/audit"
	"business-directory/internal/common/camunda"
	"business-directory/internal/common/config"
	"business-directory/internal/common/database"
	"business-directory/internal/common/logger"
	"business-directory/internal/common/observability"
	"business-directory/internal/duplicates"
	"business-directory/internal/imaging"
	"business-directory/internal/intake"
	"business-directory/internal/moderation"
	"business-directory/internal/notify"
	"business-directory/internal/ratelimit"
	"business-directory/internal/search"
	"business-directory/internal/storage"
	"business-directory/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting directory API...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.Telemetry, log)
	ctx := context.Background()
	checks := map[string]api.Check{}
	var closers []func(context.Context) error

	// --- MongoDB ---
	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	mongoClient, err := database.NewMongo(connectCtx, cfg.Database.Mongo)
	if err == nil {
		err = mongoClient.EnsureIndexes(connectCtx, cfg.Database.Mongo)
	}
	cancel()
	if err != nil {
		zapLog.Fatal("failed to initialise mongo", zap.Error(err))
	}
	checks["mongo"] = mongoClient.Ping
	closers = append(closers, mongoClient.Close)

	submissions := store.NewMongoSubmissions(mongoClient.DB, cfg.Database.Mongo.SubmissionsColl)
	businesses := store.NewMongoBusinesses(mongoClient.DB, cfg.Database.Mongo.BusinessesColl)
	images, err := storage.NewGridFSImages(mongoClient.DB, cfg.Database.Mongo.ImageBucket)
	if err != nil {
		zapLog.Fatal("failed to open image bucket", zap.Error(err))
	}

	// --- PostgreSQL audit log (optional) ---
	var recorder interface {
		intake.SubmissionRecorder
		moderation.Recorder
	} = audit.Noop{}
	if cfg.Database.Postgres.Enabled {
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			zapLog.Fatal("failed to open postgres", zap.Error(err))
		}
		migrateCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		err = pg.Migrate(migrateCtx)
		cancel()
		if err != nil {
			zapLog.Fatal("failed to migrate audit schema", zap.Error(err))
		}
		recorder = audit.NewPostgresRecorder(pg.DB, log)
		checks["postgres"] = pg.Ping
		closers = append(closers, func(context.Context) error { return pg.Close() })
	}

	finder := duplicates.NewService(businesses, submissions, log, duplicates.Options{
		ChunkSize:       cfg.Duplicates.BatchChunkSize,
		StatsSampleSize: cfg.Duplicates.StatsSampleSize,
		StatsWindowDays: cfg.Duplicates.StatsWindowDays,
	})

	// --- Redis: resubmission window and stats cache (optional) ---
	var limiter ratelimit.Limiter = ratelimit.Noop{}
	var stats duplicates.StatsProvider = finder
	if cfg.Database.Redis.Enabled {
		rdb := database.NewRedis(cfg.Database.Redis)
		limiter = ratelimit.NewRedisLimiter(rdb.Client, config.GetDuration(cfg.Intake.RateLimitWindow))
		stats = duplicates.NewCachedStats(finder, rdb.Client, config.GetDuration(cfg.Duplicates.StatsCacheTTL), log)
		checks["redis"] = rdb.Ping
		closers = append(closers, func(context.Context) error { return rdb.Close() })
	}

	// --- Elasticsearch (optional) ---
	var indexer search.Indexer
	var lister search.Lister = businesses
	if cfg.Database.Elasticsearch.Enabled {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			zapLog.Fatal("failed to create elasticsearch client", zap.Error(err))
		}
		index := search.NewESIndex(es.Client, cfg.Search.Index, log)
		ensureCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		err = index.EnsureIndex(ensureCtx)
		cancel()
		if err != nil {
			zapLog.Fatal("failed to prepare search index", zap.Error(err))
		}
		indexer = index
		if cfg.Search.Backend == "elasticsearch" {
			lister = index
		}
		checks["elasticsearch"] = es.Ping
	}

	notifier, err := notify.FromConfig(ctx, cfg.Integrations, log)
	if err != nil {
		zapLog.Fatal("failed to create notifier", zap.Error(err))
	}

	// --- Workflow: Zeebe when enabled, in-process follow-ups otherwise ---
	var (
		review    intake.ReviewStarter
		publisher moderation.DecisionPublisher
	)
	if cfg.Camunda.Enabled {
		zeebe, err := camunda.NewClient(cfg.Camunda.BrokerAddress, config.GetDuration(cfg.Camunda.RequestTimeout))
		if err != nil {
			zapLog.Fatal("failed to create zeebe client", zap.Error(err))
		}
		p := camunda.NewPublisher(zeebe, cfg.Camunda.ProcessID, cfg.Camunda.DecisionMsg, config.GetDuration(cfg.Camunda.MessageTTL))
		review, publisher = p, p
		checks["zeebe"] = zeebe.HealthCheck
		closers = append(closers, func(context.Context) error { return zeebe.Close() })
	} else {
		zapLog.Info("Workflow engine disabled, running follow-ups in-process")
		publisher = moderation.NewInlineFollowUp(submissions, businesses, notifier, indexer, log)
	}

	intakeSvc := intake.NewService(intake.Deps{
		Submissions: submissions,
		Images:      images,
		Processor:   imaging.New(cfg.Integrations.ImageProcessor.BaseURL, config.GetDuration(cfg.Integrations.ImageProcessor.Timeout), log),
		Limiter:     limiter,
		Audit:       recorder,
		Duplicates:  finder,
		Review:      review,
		Notifier:    notifier,
	}, intake.Options{
		CheckDuplicatesOnSubmit: cfg.Intake.CheckDuplicatesOnSubmit,
		MaxImageBytes:           cfg.Intake.MaxImageBytes,
	}, log)

	moderationSvc := moderation.NewService(moderation.Deps{
		Submissions: submissions,
		Businesses:  businesses,
		Audit:       recorder,
		Publisher:   publisher,
		Duplicates:  finder,
	}, log)

	router := api.NewRouter(cfg, api.Deps{
		Intake:     intakeSvc,
		Moderation: moderationSvc,
		Duplicates: finder,
		Stats:      stats,
		Listing:    lister,
		Businesses: businesses,
		Images:     images,
		Checks:     checks,
		Obs:        obs,
	}, log)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("Directory API listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping http server", zap.Error(err))
	}
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](shutdownCtx); err != nil {
			zapLog.Warn("Error closing client", zap.Error(err))
		}
	}
	obs.Shutdown(shutdownCtx)

	zapLog.Info("Directory API stopped gracefully")
}
