package service

import (
	"context"
	"log/slog"
	"time"
)

type VerificationNotification struct {
	Email           string
	Token           string
	ExpiresAt       time.Time
	VerificationURL string
}

// EmailVerificationNotifier delivers the verification link. Callers
// dispatch it fire-and-forget; delivery failure never fails the request
// that triggered it.
type EmailVerificationNotifier interface {
	SendEmailVerification(ctx context.Context, notification VerificationNotification) error
}

// DevEmailVerificationNotifier logs the link instead of sending mail.
// Stands in for a real provider in development and tests.
type DevEmailVerificationNotifier struct {
	logger *slog.Logger
}

func NewDevEmailVerificationNotifier(logger *slog.Logger) *DevEmailVerificationNotifier {
	return &DevEmailVerificationNotifier{logger: logger}
}

func (n *DevEmailVerificationNotifier) SendEmailVerification(ctx context.Context, notification VerificationNotification) error {
	n.logger.InfoContext(ctx, "email verification token issued",
		"email", notification.Email,
		"expires_at", notification.ExpiresAt,
		"verification", notification.VerificationURL,
	)
	return nil
}
