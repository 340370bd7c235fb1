package sesmail

import (
	"context"
	"net/mail"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/pkg/errors"

	"github.com/MagetoJ/EduKE-sub001/core"
)

// Sender is the part of the SES client the service uses.
type Sender interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type service struct {
	conf       *core.Config
	logger     core.Logger
	client     Sender
	from       string
	subjPrefix string
}

var _ core.EmailService = (*service)(nil)

// NewService loads the default AWS configuration (env, shared config, instance role) for
// conf.Mail.AWSRegion and returns an Amazon SES email service.
func NewService(ctx context.Context, conf *core.Config, logger core.Logger) (core.EmailService, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(conf.Mail.AWSRegion))
	if err != nil {
		return nil, errors.Wrap(err, "loading AWS config")
	}
	return NewServiceWithClient(conf, logger, sesv2.NewFromConfig(cfg)), nil
}

func NewServiceWithClient(conf *core.Config, logger core.Logger, client Sender) core.EmailService {
	from := mail.Address{Name: conf.AppName, Address: conf.DefaultFromEmail}
	return &service{
		conf:       conf,
		logger:     logger,
		client:     client,
		from:       from.String(),
		subjPrefix: "[" + conf.AppName + "] ",
	}
}

func (svc *service) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go func(msg *core.EmailMessage) {
			if err := svc.sendMessage(context.Background(), msg); err != nil {
				svc.logger.Error("ses: sending email", err, map[string]interface{}{"subject": msg.Subject})
			}
		}(msg)
	}
}

func (svc *service) sendMessage(ctx context.Context, msg *core.EmailMessage) error {
	if err := msg.Render(svc.conf); err != nil {
		return errors.Wrap(err, "rendering email")
	}
	if !msg.HasRecipients() || !msg.HasContent() {
		return nil
	}
	_, err := svc.client.SendEmail(ctx, svc.prepare(*msg))
	return errors.Wrap(err, "calling SES")
}

func (svc *service) prepare(msg core.EmailMessage) *sesv2.SendEmailInput {
	body := &types.Body{
		Text: &types.Content{Data: aws.String(msg.TextContent), Charset: aws.String("UTF-8")},
	}
	if msg.HTMLContent != "" {
		body.Html = &types.Content{Data: aws.String(msg.HTMLContent), Charset: aws.String("UTF-8")}
	}
	return &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(svc.from),
		Destination: &types.Destination{
			ToAddresses:  addresses(msg.To),
			CcAddresses:  addresses(msg.Cc),
			BccAddresses: addresses(msg.Bcc),
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(svc.subjPrefix + msg.Subject), Charset: aws.String("UTF-8")},
				Body:    body,
			},
		},
	}
}

func addresses(addrs []mail.Address) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.String())
	}
	return out
}
