// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"business-directory/internal/common/camunda"
	"business-directory/internal/common/config"
	"business-directory/internal/common/database"
	"business-directory/internal/common/logger"
	"business-directory/internal/common/observability"
	"business-directory/internal/duplicates"
	"business-directory/internal/notify"
	"business-directory/internal/search"
	"business-directory/internal/store"

	cd "business-directory/internal/workers/moderation/check-submission-duplicates"
	ib "business-directory/internal/workers/moderation/index-business"
	ns "business-directory/internal/workers/moderation/notify-submitter"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...", zap.String("environment", cfg.App.Environment))

	telemetry := cfg.Telemetry
	telemetry.ServiceName = cfg.Telemetry.ServiceName + "-workers"
	obs := observability.New(telemetry, log)

	ctx := context.Background()

	// --- Zeebe ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClient(cfg.Camunda.BrokerAddress, config.GetDuration(cfg.Camunda.RequestTimeout))
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("failed to create zeebe client", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected", zap.String("gateway", cfg.Camunda.BrokerAddress))

	// --- MongoDB ---
	var mongoClient *database.MongoClient
	err = retryWithBackoff(func() error {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		var err error
		if mongoClient, err = database.NewMongo(connectCtx, cfg.Database.Mongo); err != nil {
			return err
		}
		return mongoClient.Ping(connectCtx)
	}, 5, 2*time.Second, zapLog, "MongoDB connection")
	if err != nil {
		zapLog.Fatal("failed to connect to mongo", zap.Error(err))
	}

	submissions := store.NewMongoSubmissions(mongoClient.DB, cfg.Database.Mongo.SubmissionsColl)
	businesses := store.NewMongoBusinesses(mongoClient.DB, cfg.Database.Mongo.BusinessesColl)

	// --- Elasticsearch (optional) ---
	var indexer search.Indexer
	if cfg.Database.Elasticsearch.Enabled {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			zapLog.Fatal("failed to create elasticsearch client", zap.Error(err))
		}
		index := search.NewESIndex(es.Client, cfg.Search.Index, log)
		err = retryWithBackoff(func() error {
			ensureCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return index.EnsureIndex(ensureCtx)
		}, 5, 2*time.Second, zapLog, "Elasticsearch index setup")
		if err != nil {
			zapLog.Fatal("failed to prepare search index", zap.Error(err))
		}
		indexer = index
	}

	notifier, err := notify.FromConfig(ctx, cfg.Integrations, log)
	if err != nil {
		zapLog.Fatal("failed to create notifier", zap.Error(err))
	}

	finder := duplicates.NewService(businesses, submissions, log, duplicates.Options{
		ChunkSize:       cfg.Duplicates.BatchChunkSize,
		StatsSampleSize: cfg.Duplicates.StatsSampleSize,
		StatsWindowDays: cfg.Duplicates.StatsWindowDays,
	})

	// --- Register Workers ---
	zapLog.Info("Registering workers...")
	var workers []*camunda.Worker

	if wc := cfg.Workers[cd.TaskType]; wc.Enabled {
		handler := cd.NewHandler(cd.LoadConfig(wc), finder, log)
		workers = append(workers, camunda.StartWorker(zeebe.GetClient(), cd.TaskType, wc, handler, log))
	}

	if wc := cfg.Workers[ns.TaskType]; wc.Enabled {
		handler := ns.NewHandler(ns.LoadConfig(wc), notifier, log)
		workers = append(workers, camunda.StartWorker(zeebe.GetClient(), ns.TaskType, wc, handler, log))
	}

	if wc := cfg.Workers[ib.TaskType]; wc.Enabled && indexer == nil {
		zapLog.Warn("index-business enabled but elasticsearch is not configured, skipping")
	} else if wc.Enabled {
		handler := ib.NewHandler(ib.LoadConfig(wc), businesses, indexer, log)
		workers = append(workers, camunda.StartWorker(zeebe.GetClient(), ib.TaskType, wc, handler, log))
	}
	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status, code := "ready", http.StatusOK
		if err := zeebe.HealthCheck(r.Context()); err != nil {
			status, code = "zeebe unavailable", http.StatusServiceUnavailable
		}
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{
			"status": status,
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	metricsAddr := fmt.Sprintf(":%d", cfg.Server.MetricsPort)
	metricsServer := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", metricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	for _, w := range workers {
		w.Stop()
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping metrics server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}
	if err := mongoClient.Close(shutdownCtx); err != nil {
		zapLog.Error("Error closing MongoDB client", zap.Error(err))
	}
	obs.Shutdown(shutdownCtx)

	zapLog.Info("Worker manager stopped gracefully")
}
