package notifysubmitter

import (
	"context"
	"encoding/json"

	"business-directory/internal/common/camunda"
	"business-directory/internal/common/errors"
	"business-directory/internal/common/logger"
	"business-directory/internal/models"
	"business-directory/internal/notify"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "notify-submitter"

type Notifier interface {
	Notify(ctx context.Context, msg notify.Message) (*models.NotificationResult, error)
}

type Handler struct {
	config   *Config
	notifier Notifier
	errors   *errors.ErrorHandler
	logger   logger.Logger
}

func NewHandler(config *Config, notifier Notifier, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		notifier: notifier,
		errors:   errors.NewErrorHandler(log),
		logger:   log,
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
	msg, err := messageFor(input)
	if err != nil {
		return nil, err
	}

	res, err := h.notifier.Notify(ctx, msg)
	if err != nil {
		return nil, err
	}
	return &Output{
		NotificationID: res.NotificationID,
		Status:         res.Status,
		SentAt:         res.SentAt,
	}, nil
}

// messageFor picks the template from the decision; no decision yet means the
// submission was just received.
func messageFor(input *Input) (notify.Message, error) {
	msg := notify.Message{
		Email:         input.SubmitterEmail,
		TrackingID:    input.TrackingID,
		BusinessName:  input.BusinessName,
		SubmitterName: input.SubmitterName,
	}

	switch input.Decision {
	case "":
		msg.Type = notify.TypeSubmissionReceived
	case models.DecisionApproved:
		msg.Type = notify.TypeSubmissionApproved
		msg.Mobile = input.Mobile
		msg.BusinessID = input.BusinessID
	case models.DecisionRejected:
		msg.Type = notify.TypeSubmissionRejected
		msg.Reason = input.Reason
	default:
		return notify.Message{}, errors.NewInvalidInputError("unknown decision: " + input.Decision)
	}

	if msg.Email == "" {
		return notify.Message{}, errors.NewInvalidInputError("submitterEmail is required")
	}
	return msg, nil
}
