package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type EmailConfig struct {
	Server   string   `json:"server"`
	Port     int      `json:"port"`
	Username string   `json:"username"`
	Password string   `json:"password"`
	From     string   `json:"from"`
	To       []string `json:"to"`
}

type EmailNotifier struct {
	config EmailConfig
}

func NewEmailNotifier(config EmailConfig) (EmailNotifier, error) {
	if config.Server == "" || config.From == "" || len(config.To) == 0 {
		return EmailNotifier{}, fmt.Errorf("email notifier requires a server, a sender and at least one recipient")
	}
	if config.Port == 0 {
		config.Port = 587
	}
	return EmailNotifier{config: config}, nil
}

func (n EmailNotifier) Notify(ctx context.Context, notification Notification) error {
	_, span := tracer.Start(ctx, "email:Notify")
	defer span.End()
	span.SetAttributes(
		attribute.String("kind", notification.Kind.String()),
		attribute.Int("recipients", len(n.config.To)),
	)

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("hwnotifier <%s>", n.config.From)
	mail.To = n.config.To
	mail.Subject = notification.Title
	mail.Text = []byte(notification.Body())

	addr := fmt.Sprintf("%s:%d", n.config.Server, n.config.Port)

	var auth smtp.Auth
	if n.config.Username != "" {
		auth = smtp.PlainAuth("", n.config.Username, n.config.Password, n.config.Server)
	}
	err := mail.Send(addr, auth)
	if err != nil && auth != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return err
	}
	return nil
}
