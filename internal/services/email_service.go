package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/kamino-guard/internal/models"
	"github.com/BradenHooton/kamino-guard/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// EmailSender delivers templated messages.
type EmailSender interface {
	SendTemplateEmail(ctx context.Context, toEmail, toName, templateID string, variables map[string]string) error
}

// sesAPI is the part of the SES client the sender uses.
type sesAPI interface {
	SendTemplatedEmail(ctx context.Context, params *ses.SendTemplatedEmailInput, optFns ...func(*ses.Options)) (*ses.SendTemplatedEmailOutput, error)
}

// SESEmailSender sends emails using AWS SES stored templates
type SESEmailSender struct {
	client      sesAPI
	fromAddress string
	logger      *slog.Logger
}

// NewSESEmailSender creates a sender using the default AWS credential chain
func NewSESEmailSender(ctx context.Context, region, fromAddress string, logger *slog.Logger) (*SESEmailSender, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newSESEmailSender(ses.NewFromConfig(cfg), fromAddress, logger), nil
}

func newSESEmailSender(client sesAPI, fromAddress string, logger *slog.Logger) *SESEmailSender {
	return &SESEmailSender{
		client:      client,
		fromAddress: fromAddress,
		logger:      logger,
	}
}

// SendTemplateEmail implements EmailSender. toName is passed to the template as "name"
// unless variables already sets it.
func (s *SESEmailSender) SendTemplateEmail(ctx context.Context, toEmail, toName, templateID string, variables map[string]string) error {
	data := make(map[string]string, len(variables)+1)
	if toName != "" {
		data["name"] = toName
	}
	for k, v := range variables {
		data[k] = v
	}

	templateData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode template data: %w", err)
	}

	result, err := s.client.SendTemplatedEmail(ctx, &ses.SendTemplatedEmailInput{
		Source:       aws.String(s.fromAddress),
		Destination:  &types.Destination{ToAddresses: []string{toEmail}},
		Template:     aws.String(templateID),
		TemplateData: aws.String(string(templateData)),
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to send templated email via SES",
			logger.EmailAttr(toEmail),
			slog.String("template", templateID),
			slog.Any("error", err))
		return fmt.Errorf("%w: %v", models.ErrEmailDelivery, err)
	}

	s.logger.InfoContext(ctx, "templated email sent",
		logger.EmailAttr(toEmail),
		slog.String("template", templateID),
		slog.String("message_id", aws.ToString(result.MessageId)))
	return nil
}

// LogEmailSender only logs messages. Used for local runs.
type LogEmailSender struct {
	logger *slog.Logger
}

// NewLogEmailSender creates a new LogEmailSender
func NewLogEmailSender(logger *slog.Logger) *LogEmailSender {
	return &LogEmailSender{logger: logger}
}

// SendTemplateEmail implements EmailSender. Variable values are not logged.
func (s *LogEmailSender) SendTemplateEmail(ctx context.Context, toEmail, toName, templateID string, variables map[string]string) error {
	keys := make([]string, 0, len(variables))
	for k := range variables {
		keys = append(keys, k)
	}
	s.logger.InfoContext(ctx, "email not sent (log provider)",
		logger.EmailAttr(toEmail),
		slog.String("template", templateID),
		slog.Any("variables", keys))
	return nil
}
