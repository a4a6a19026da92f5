package notify

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/wolfman30/rehab-clinic-platform/pkg/logging"
)

const charsetUTF8 = "UTF-8"

// sesAPI is the subset of *sesv2.Client used here.
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESConfig holds configuration for AWS SES.
type SESConfig struct {
	FromEmail string
	FromName  string
	// ConfigurationSet routes delivery events (bounces, complaints) to the
	// clinic's SES event destination. Optional.
	ConfigurationSet string
}

// SESSender delivers through the SES v2 SendEmail API.
type SESSender struct {
	client    sesAPI
	from      string
	configSet string
	logger    *logging.Logger
}

// NewSESSender returns nil without a client so callers can fall back.
func NewSESSender(client *sesv2.Client, cfg SESConfig, logger *logging.Logger) *SESSender {
	if client == nil {
		return nil
	}
	return newSESSender(client, cfg, logger)
}

func newSESSender(client sesAPI, cfg SESConfig, logger *logging.Logger) *SESSender {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = DefaultFromName
	}
	from := (&mail.Address{Name: cfg.FromName, Address: cfg.FromEmail}).String()
	return &SESSender{
		client:    client,
		from:      from,
		configSet: cfg.ConfigurationSet,
		logger:    logger,
	}
}

func (s *SESSender) Send(ctx context.Context, msg EmailMessage) error {
	if s.client == nil {
		return errors.New("notify: ses client not configured")
	}

	out, err := s.client.SendEmail(ctx, buildSESInput(s.from, s.configSet, msg))
	if err != nil {
		s.logger.Error("ses delivery failed", "error", err, "to", msg.To, "category", msg.Category)
		return fmt.Errorf("notify: ses send: %w", err)
	}

	s.logger.Info("email sent via ses",
		"to", msg.To,
		"category", msg.Category,
		"message_id", aws.ToString(out.MessageId),
	)
	return nil
}

func buildSESInput(from, configSet string, msg EmailMessage) *sesv2.SendEmailInput {
	body := &types.Body{}
	if msg.Body != "" {
		body.Text = sesContent(msg.Body)
	}
	if msg.HTML != "" {
		body.Html = sesContent(msg.HTML)
	}

	in := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: sesContent(msg.Subject),
				Body:    body,
			},
		},
	}
	if msg.ReplyTo != "" {
		in.ReplyToAddresses = []string{msg.ReplyTo}
	}
	if configSet != "" {
		in.ConfigurationSetName = aws.String(configSet)
	}
	if msg.Category != "" {
		in.EmailTags = []types.MessageTag{{Name: aws.String("category"), Value: aws.String(msg.Category)}}
	}
	return in
}

func sesContent(data string) *types.Content {
	return &types.Content{Data: aws.String(data), Charset: aws.String(charsetUTF8)}
}

var _ EmailSender = (*SESSender)(nil)
