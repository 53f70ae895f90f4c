package email

import (
	"context"
)

// Sender delivers the e-mail copy of an in-app notification.
type Sender interface {
	SendNotificationEmail(ctx context.Context, toEmail, recipientName, notificationType, message string) error
}

// NoopSender drops every message. Used when EMAIL_ENABLED is false.
type NoopSender struct{}

func (NoopSender) SendNotificationEmail(ctx context.Context, toEmail, recipientName, notificationType, message string) error {
	return nil
}
