package service

import (
	"context"
	"time"

	"github.com/nazlul/analytics-dash/internal/domain"
	"github.com/nazlul/analytics-dash/internal/oauth"
)

// SessionAPI is the surface the HTTP layer programs against. Handler
// tests substitute a stub.
type SessionAPI interface {
	Register(ctx context.Context, email, password, name string) (string, error)
	VerifyEmail(ctx context.Context, token string) (*SignInResult, error)
	ResendVerification(ctx context.Context, email string) (string, error)
	Login(ctx context.Context, email, password string, rememberMe bool) (*SignInResult, error)
	GoogleLogin(ctx context.Context, idToken string) (*SignInResult, error)
	LoginWithIdentity(ctx context.Context, identity *oauth.Identity) (*SignInResult, error)
	Refresh(refreshToken string) (accessToken string, expiresAt time.Time, email string, err error)
	AccountByEmail(email string) (*domain.Account, error)
	DeleteAccount(email string) error
}

var _ SessionAPI = (*SessionService)(nil)
