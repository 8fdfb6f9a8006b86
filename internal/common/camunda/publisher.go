package camunda

import (
	"context"
	"time"

	"business-directory/internal/models"
)

// ReviewVariables seed a submission-review process instance.
type ReviewVariables struct {
	SubmissionID   string `json:"submissionId"`
	TrackingID     string `json:"trackingId"`
	BusinessName   string `json:"businessName"`
	SubmitterName  string `json:"submitterName"`
	SubmitterEmail string `json:"submitterEmail"`
	Mobile         string `json:"mobile"`
}

// Publisher starts review processes and correlates moderation decisions to them.
type Publisher struct {
	client      *Client
	processID   string
	decisionMsg string
	messageTTL  time.Duration
}

func NewPublisher(client *Client, processID, decisionMsg string, messageTTL time.Duration) *Publisher {
	return &Publisher{
		client:      client,
		processID:   processID,
		decisionMsg: decisionMsg,
		messageTTL:  messageTTL,
	}
}

// StartSubmissionReview creates a process instance for a new submission and returns its key.
func (p *Publisher) StartSubmissionReview(ctx context.Context, s *models.BusinessSubmission) (int64, error) {
	vars := ReviewVariables{
		SubmissionID:   s.ID.Hex(),
		TrackingID:     s.TrackingID,
		BusinessName:   s.BusinessName,
		SubmitterName:  s.SubmitterName,
		SubmitterEmail: s.SubmitterEmail,
		Mobile:         s.Mobile,
	}

	var key int64
	err := p.client.Do(ctx, "createInstance:"+p.processID, func(ctx context.Context) error {
		cmd, err := p.client.GetClient().NewCreateInstanceCommand().
			BPMNProcessId(p.processID).
			LatestVersion().
			VariablesFromObject(vars)
		if err != nil {
			return err
		}
		resp, err := cmd.Send(ctx)
		if err != nil {
			return err
		}
		key = resp.GetProcessInstanceKey()
		return nil
	})
	return key, err
}

// PublishDecision correlates the decision message on the submission id.
func (p *Publisher) PublishDecision(ctx context.Context, d *models.ModerationDecision) error {
	return p.client.Do(ctx, "publishMessage:"+p.decisionMsg, func(ctx context.Context) error {
		cmd, err := p.client.GetClient().NewPublishMessageCommand().
			MessageName(p.decisionMsg).
			CorrelationKey(d.SubmissionID).
			TimeToLive(p.messageTTL).
			VariablesFromObject(d)
		if err != nil {
			return err
		}
		_, err = cmd.Send(ctx)
		return err
	})
}
