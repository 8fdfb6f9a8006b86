package indexbusiness

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"business-directory/internal/common/camunda"
	"business-directory/internal/common/errors"
	"business-directory/internal/common/logger"
	"business-directory/internal/models"
	"business-directory/internal/search"
	"business-directory/internal/store"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "index-business"

type BusinessReader interface {
	GetByAnyID(ctx context.Context, id string) (*models.Business, error)
}

type Handler struct {
	config     *Config
	businesses BusinessReader
	indexer    search.Indexer
	errors     *errors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, businesses BusinessReader, indexer search.Indexer, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		businesses: businesses,
		indexer:    indexer,
		errors:     errors.NewErrorHandler(log),
		logger:     log,
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

// execute indexes the published business. Rejections have nothing to index
// and complete without touching the index.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.Decision != models.DecisionApproved {
		return &Output{Indexed: false}, nil
	}
	if input.BusinessID == "" {
		return nil, errors.NewInvalidInputError("businessId is required for approved submissions")
	}

	b, err := h.businesses.GetByAnyID(ctx, input.BusinessID)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return nil, errors.NewBusinessNotFoundError(input.BusinessID)
		}
		return nil, errors.NewStoreUnavailableError("indexBusiness.get", err)
	}

	if err := h.indexer.IndexBusiness(ctx, b); err != nil {
		return nil, err
	}

	h.logger.Info("business indexed", map[string]interface{}{"businessId": b.BusinessID})
	return &Output{Indexed: true, IndexedAt: time.Now().UTC().Format(time.RFC3339)}, nil
}
