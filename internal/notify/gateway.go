// internal/notify/gateway.go
package notify

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"demand-broker/internal/common/logger"
	"demand-broker/internal/common/metrics"
	"demand-broker/internal/models"
)

// EmailSender is the slice of the SES client the gateway needs.
type EmailSender interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

// SMSSender is the slice of the SNS client the gateway needs.
type SMSSender interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

// Gateway routes messages to the channel their command arrived on: mail
// goes out over SES, twitter replies degrade to SMS, api and simulated
// sources are log-only. Delivery failures are logged and counted, never
// surfaced, so a dead mail relay cannot wedge a confirmation.
type Gateway struct {
	email     EmailSender
	sms       SMSSender
	fromEmail string
	senderID  string
	log       logger.Logger
}

func NewGateway(email EmailSender, sms SMSSender, fromEmail, senderID string, log logger.Logger) *Gateway {
	return &Gateway{
		email:     email,
		sms:       sms,
		fromEmail: fromEmail,
		senderID:  senderID,
		log:       log,
	}
}

func (g *Gateway) Notify(ctx context.Context, msg Message) error {
	var (
		channel string
		err     error
	)
	switch msg.Source {
	case models.SourceMail:
		channel = "email"
		err = g.sendEmail(ctx, msg)
	case models.SourceTwitter:
		channel = "sms"
		err = g.sendSMS(ctx, msg)
	default:
		channel = "log"
		g.log.Info("notification (log only)", map[string]interface{}{
			"recipient": msg.Recipient,
			"subject":   msg.Subject,
			"body":      msg.Body,
		})
	}

	if err != nil {
		metrics.NotificationsSent.WithLabelValues(channel, "failure").Inc()
		g.log.WithError(err).Error("notification delivery failed", map[string]interface{}{
			"channel":   channel,
			"recipient": msg.Recipient,
		})
		return nil
	}
	metrics.NotificationsSent.WithLabelValues(channel, "success").Inc()
	return nil
}

func (g *Gateway) sendEmail(ctx context.Context, msg Message) error {
	if g.email == nil {
		return nil
	}
	_, err := g.email.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(g.fromEmail),
		Destination: &sestypes.Destination{
			ToAddresses: []string{msg.Recipient},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(msg.Subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(msg.Body)},
			},
		},
	})
	return err
}

func (g *Gateway) sendSMS(ctx context.Context, msg Message) error {
	if g.sms == nil {
		return nil
	}
	_, err := g.sms.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(msg.Recipient),
		Message:     aws.String(msg.Body),
	})
	return err
}
