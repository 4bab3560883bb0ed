// Package mailer delivers transactional email through a pluggable provider.
package mailer

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/keighl/postmark"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// Message is a rendered email.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a Message.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// PostmarkSender sends mail through the Postmark API.
type PostmarkSender struct {
	client *postmark.Client
}

// NewPostmarkSender returns a PostmarkSender authenticated with serverToken.
func NewPostmarkSender(serverToken string) *PostmarkSender {
	return &PostmarkSender{client: postmark.NewClient(serverToken, "")}
}

// Send implements Sender.
func (s *PostmarkSender) Send(_ context.Context, m Message) error {
	resp, err := s.client.SendEmail(postmark.Email{
		From:     m.From,
		To:       m.To,
		Subject:  m.Subject,
		HtmlBody: m.HTML,
		TextBody: m.Text,
	})
	if err != nil {
		return errors.Wrap(err, "postmark send")
	}
	if resp.ErrorCode != 0 {
		return errors.Errorf("postmark rejected message: %d %s", resp.ErrorCode, resp.Message)
	}
	return nil
}

// SendgridSender sends mail through the SendGrid v3 API.
type SendgridSender struct {
	client *sendgrid.Client
}

// NewSendgridSender returns a SendgridSender authenticated with apiKey.
func NewSendgridSender(apiKey string) *SendgridSender {
	return &SendgridSender{client: sendgrid.NewSendClient(apiKey)}
}

// Send implements Sender.
func (s *SendgridSender) Send(ctx context.Context, m Message) error {
	msg := mail.NewSingleEmail(
		mail.NewEmail("", m.From),
		m.Subject,
		mail.NewEmail("", m.To),
		m.Text,
		m.HTML,
	)
	resp, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return errors.Wrap(err, "sendgrid send")
	}
	if resp.StatusCode >= 300 {
		return errors.Errorf("sendgrid rejected message: %d %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	lg *zap.Logger
}

// NewLogSender returns a LogSender.
func NewLogSender(lg *zap.Logger) *LogSender {
	return &LogSender{lg: lg}
}

// Send implements Sender.
func (s *LogSender) Send(_ context.Context, m Message) error {
	s.lg.Info("Email",
		zap.String("to", m.To),
		zap.String("subject", m.Subject),
		zap.String("text", m.Text),
	)
	return nil
}
