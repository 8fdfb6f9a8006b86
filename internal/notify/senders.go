package notify

import (
	"context"
	"fmt"

	"business-directory/internal/common/aws"
	"business-directory/internal/common/config"
	"business-directory/internal/common/logger"
)

// FromConfig builds a notifier backed by SES and SNS for whichever channels are enabled.
func FromConfig(ctx context.Context, cfg config.IntegrationConfig, log logger.Logger) (*Notifier, error) {
	var (
		email EmailSender
		sms   SMSSender
	)

	if cfg.AWS.SES.Enabled {
		client, err := aws.NewSESClient(ctx, cfg.AWS.Region, cfg.AWS.SES.FromEmail)
		if err != nil {
			return nil, fmt.Errorf("ses client: %w", err)
		}
		email = client
	}
	if cfg.AWS.SNS.Enabled {
		client, err := aws.NewSNSClient(ctx, cfg.AWS.Region, cfg.AWS.SNS.DefaultSMSSenderID)
		if err != nil {
			return nil, fmt.Errorf("sns client: %w", err)
		}
		sms = client
	}

	return New(Config{EmailEnabled: email != nil, SMSEnabled: sms != nil}, email, sms, log), nil
}
