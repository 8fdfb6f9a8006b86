// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"time"

	"business-directory/internal/common/config"
	"business-directory/internal/common/logger"
	"business-directory/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// JobHandler completes or fails the job itself.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

type Worker struct {
	taskType string
	worker   worker.JobWorker
	logger   logger.Logger
}

// StartWorker opens a job worker for taskType and records job metrics around handler.
func StartWorker(client zbc.Client, taskType string, cfg config.WorkerConfig, handler JobHandler, log logger.Logger) *Worker {
	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(Instrument(taskType, handler).Handle).
		MaxJobsActive(cfg.MaxJobsActive).
		Timeout(config.GetDuration(cfg.Timeout)).
		Name(taskType).
		Open()

	log.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": cfg.MaxJobsActive,
		"timeoutMs":     cfg.Timeout,
	})

	return &Worker{taskType: taskType, worker: jobWorker, logger: log}
}

func (w *Worker) Stop() {
	w.logger.Info("stopping worker", map[string]interface{}{"taskType": w.taskType})
	w.worker.Close()
	w.worker.AwaitClose()
}

type instrumented struct {
	taskType string
	next     JobHandler
}

// Instrument wraps handler with the worker_jobs_* metrics.
func Instrument(taskType string, handler JobHandler) JobHandler {
	return &instrumented{taskType: taskType, next: handler}
}

func (i *instrumented) Handle(client worker.JobClient, job entities.Job) {
	metrics.WorkerJobsActive.WithLabelValues(i.taskType).Inc()
	start := time.Now()
	defer func() {
		metrics.WorkerJobsActive.WithLabelValues(i.taskType).Dec()
		metrics.WorkerJobDuration.WithLabelValues(i.taskType).Observe(time.Since(start).Seconds())
	}()
	i.next.Handle(client, job)
}

// CompleteJob sends the job's output variables and counts the completion.
func CompleteJob(ctx context.Context, client worker.JobClient, job entities.Job, output interface{}, log logger.Logger) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		log.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err,
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		log.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err,
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(job.Type).Inc()
}
