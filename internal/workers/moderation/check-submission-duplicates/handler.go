package checkduplicates

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"business-directory/internal/common/camunda"
	"business-directory/internal/common/errors"
	"business-directory/internal/common/logger"
	"business-directory/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "check-submission-duplicates"

type Finder interface {
	FindDuplicatesByID(ctx context.Context, id string) (*models.DuplicateResult, error)
}

type Handler struct {
	config *Config
	finder Finder
	errors *errors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, finder Finder, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		finder: finder,
		errors: errors.NewErrorHandler(log),
		logger: log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.errors.HandleJobError(ctx, client, job, errors.NewInvalidInputError(err.Error()))
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.errors.HandleJobError(ctx, client, job, err)
		return
	}
	camunda.CompleteJob(ctx, client, job, output, h.logger)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	id := strings.TrimSpace(input.SubmissionID)
	if id == "" {
		return nil, errors.NewInvalidInputError("submissionId is required")
	}

	res, err := h.finder.FindDuplicatesByID(ctx, id)
	if err != nil {
		if stdErr, ok := errors.As(err); ok && stdErr.Code == errors.ErrCodeSubmissionNotFound {
			return nil, stdErr
		}
		return nil, errors.NewDuplicateCheckFailedError(id, err)
	}

	out := &Output{
		HasDuplicates: res.HasDuplicates,
		MatchCount:    res.MatchCount,
		CheckedAt:     time.Now().UTC().Format(time.RFC3339),
	}
	// Matches are ordered by priority.
	if len(res.Matches) > 0 {
		out.TopMatchField = res.Matches[0].Field
		out.TopMatchBusinessID = res.Matches[0].BusinessID
	}

	h.logger.Info("duplicate check complete", map[string]interface{}{
		"submissionId": id,
		"matchCount":   out.MatchCount,
	})
	return out, nil
}
