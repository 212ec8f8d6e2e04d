package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/BradenHooton/loginsentry/internal/models"
)

// RecipientResolver maps a user ID to a deliverable email address. The
// account database is external; this is the only thing the sink needs
// from it.
type RecipientResolver interface {
	EmailForUser(ctx context.Context, userID int64) (string, error)
}

// PatternRecipientResolver derives addresses from a printf pattern
// holding a single %d verb for the user ID. Used when the deployment
// routes mail through a per-user alias instead of a directory lookup.
type PatternRecipientResolver struct {
	pattern string
}

// NewPatternRecipientResolver creates a new PatternRecipientResolver
func NewPatternRecipientResolver(pattern string) *PatternRecipientResolver {
	return &PatternRecipientResolver{pattern: pattern}
}

// EmailForUser builds the recipient address for a user ID
func (r *PatternRecipientResolver) EmailForUser(ctx context.Context, userID int64) (string, error) {
	return fmt.Sprintf(r.pattern, userID), nil
}

// SESNotificationSink delivers login notifications by email using AWS SES.
type SESNotificationSink struct {
	sesClient   *ses.Client
	recipients  RecipientResolver
	fromAddress string
	logger      *slog.Logger
}

// NewSESNotificationSink creates a new AWS SES notification sink
func NewSESNotificationSink(region, fromAddress string, recipients RecipientResolver, logger *slog.Logger) (*SESNotificationSink, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESNotificationSink{
		sesClient:   ses.NewFromConfig(cfg),
		recipients:  recipients,
		fromAddress: fromAddress,
		logger:      logger,
	}, nil
}

// Emit sends the notification email for the given event
func (s *SESNotificationSink) Emit(ctx context.Context, notification models.Notification) error {
	recipient, err := s.recipients.EmailForUser(ctx, notification.UserID)
	if err != nil {
		return fmt.Errorf("failed to resolve recipient: %w", err)
	}

	subject, textBody := renderNotification(notification)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{recipient},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send notification via SES",
			slog.String("type", notification.Type),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("notification email sent",
		slog.String("type", notification.Type),
		slog.String("message_id", *result.MessageId))

	return nil
}

func renderNotification(notification models.Notification) (subject, body string) {
	switch notification.Type {
	case models.NotifyFailKnown:
		subject = "Failed login attempts on your account"
		body = fmt.Sprintf(`Hello %s,

There have been %d failed attempts to log in to your account from a device
you have used before. If this was you, you can ignore this message.

If this was not you, we recommend changing your password.
`, notification.Username, notification.Count)
	case models.NotifyFailNew:
		subject = "Failed login attempts from an unrecognized device"
		body = fmt.Sprintf(`Hello %s,

There have been %d failed attempts to log in to your account from a device
or network we do not recognize.

If this was not you, we recommend changing your password.
`, notification.Username, notification.Count)
	case models.NotifySuccess:
		subject = "New login to your account"
		body = fmt.Sprintf(`Hello %s,

Your account was just logged in to from a device or network we do not
recognize. If this was you, you can ignore this message.

If this was not you, change your password immediately.
`, notification.Username)
	default:
		subject = "Login activity on your account"
		body = fmt.Sprintf("Hello %s,\n\nThere has been login activity on your account.\n", notification.Username)
	}
	return subject, body
}
