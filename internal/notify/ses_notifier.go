package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"

	"github.com/noah-isme/roster-api/internal/models"
	"github.com/noah-isme/roster-api/pkg/config"
)

// EmailSender is the subset of the SES v2 client used for delivery.
type EmailSender interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESNotifier e-mails error notifications to operators through Amazon SES.
// Success notices are not mailed.
type SESNotifier struct {
	client     EmailSender
	from       string
	recipients []string
	logger     *zap.Logger
}

// NewSESNotifier loads the default AWS configuration for the region and
// builds an SES client.
func NewSESNotifier(ctx context.Context, cfg config.NotifyConfig, logger *zap.Logger) (*SESNotifier, error) {
	if cfg.FromEmail == "" || len(cfg.Recipients) == 0 {
		return nil, fmt.Errorf("ses notifier requires SES_FROM_EMAIL and NOTIFY_RECIPIENTS")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.SESRegion))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSESNotifierWithClient(sesv2.NewFromConfig(awsCfg), cfg.FromEmail, cfg.Recipients, logger), nil
}

// NewSESNotifierWithClient wires an existing client.
func NewSESNotifierWithClient(client EmailSender, from string, recipients []string, logger *zap.Logger) *SESNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SESNotifier{client: client, from: from, recipients: recipients, logger: logger}
}

// Name identifies the channel.
func (n *SESNotifier) Name() string { return "ses" }

// Send mails error-level notifications.
func (n *SESNotifier) Send(ctx context.Context, note models.Notification) error {
	if note.Level != models.NotificationError {
		return nil
	}
	subject := fmt.Sprintf("[roster] %s", note.Message)
	var body strings.Builder
	fmt.Fprintf(&body, "%s\n\nSource: %s\nTime: %s\n", note.Message, note.Source, note.At.Format("2006-01-02 15:04:05 MST"))
	if note.Detail != "" {
		fmt.Fprintf(&body, "Detail: %s\n", note.Detail)
	}

	_, err := n.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(n.from),
		Destination:      &types.Destination{ToAddresses: n.recipients},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body.String()), Charset: aws.String("UTF-8")},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send email: %w", err)
	}
	n.logger.Debug("notification mailed", zap.String("message", note.Message), zap.Int("recipients", len(n.recipients)))
	return nil
}
