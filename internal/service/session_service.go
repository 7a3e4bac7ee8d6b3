package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/nazlul/analytics-dash/internal/config"
	"github.com/nazlul/analytics-dash/internal/domain"
	"github.com/nazlul/analytics-dash/internal/oauth"
	"github.com/nazlul/analytics-dash/internal/repository"
	"github.com/nazlul/analytics-dash/internal/security"
)

var (
	ErrDuplicateAccount   = errors.New("email already registered")
	ErrAccountNotFound    = errors.New("account not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrEmailNotVerified   = errors.New("email verification required")
	ErrAlreadyVerified    = errors.New("email is already verified")
	ErrInvalidToken       = security.ErrInvalidToken
	ErrInvalidOAuthToken  = errors.New("invalid oauth token")
	ErrUpstreamVerifier   = errors.New("identity verifier unavailable")
)

// SessionService is the authentication state machine: it decides which
// credentials are valid, what tokens to mint, and how long they live.
// Tokens are stateless; the service mints and verifies, never stores.
type SessionService struct {
	cfg      *config.Config
	codec    *security.TokenCodec
	accounts repository.AccountRepository
	verifier oauth.Verifier
	notifier EmailVerificationNotifier
	logger   *slog.Logger
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	RefreshTTL   time.Duration
	ExpiresAt    time.Time
}

type SignInResult struct {
	Account *domain.Account
	Tokens  TokenPair
}

func NewSessionService(
	cfg *config.Config,
	codec *security.TokenCodec,
	accounts repository.AccountRepository,
	verifier oauth.Verifier,
	notifier EmailVerificationNotifier,
	logger *slog.Logger,
) *SessionService {
	return &SessionService{
		cfg:      cfg,
		codec:    codec,
		accounts: accounts,
		verifier: verifier,
		notifier: notifier,
		logger:   logger,
	}
}

// Register creates an unverified account and dispatches a verification
// link. The raw token is returned so non-production transports may
// surface it directly.
func (s *SessionService) Register(ctx context.Context, email, password, name string) (string, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if err := validateEmail(email); err != nil {
		return "", err
	}
	if name == "" {
		return "", fmt.Errorf("name is required")
	}
	if password == "" {
		return "", fmt.Errorf("password is required")
	}

	if _, err := s.accounts.FindByEmail(email); err == nil {
		return "", ErrDuplicateAccount
	} else if !errors.Is(err, repository.ErrAccountNotFound) {
		return "", err
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return "", err
	}
	acct := &domain.Account{Email: email, Name: name, PasswordHash: hash}
	if err := s.accounts.Create(acct); err != nil {
		return "", err
	}

	token, err := s.sendVerification(ctx, email)
	if err != nil {
		// Account creation is not coupled to deliverability; minting only
		// fails on a broken signing setup.
		return "", err
	}
	return token, nil
}

// VerifyEmail redeems a verification token and signs the account in.
// Redeeming an already-verified account repeats the effect harmlessly.
func (s *SessionService) VerifyEmail(ctx context.Context, token string) (*SignInResult, error) {
	claims, err := s.codec.VerifyEmailVerification(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	acct, err := s.accounts.FindByEmail(claims.Email)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	if !acct.Verified {
		if err := s.accounts.MarkVerified(acct.Email); err != nil {
			return nil, err
		}
		now := time.Now().UTC()
		acct.Verified = true
		acct.VerifiedAt = &now
	}
	return s.signIn(acct, s.cfg.RefreshTokenTTL)
}

// ResendVerification mints a fresh token for an unverified account.
// Previously issued tokens stay valid until their own expiry.
func (s *SessionService) ResendVerification(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	acct, err := s.accounts.FindByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return "", ErrAccountNotFound
		}
		return "", err
	}
	if acct.Verified {
		return "", ErrAlreadyVerified
	}
	return s.sendVerification(ctx, email)
}

// Login authenticates a password credential. Checks run in a fixed
// order: credential shape, verification gate, then the hash comparison.
func (s *SessionService) Login(ctx context.Context, email, password string, rememberMe bool) (*SignInResult, error) {
	email = strings.TrimSpace(email)
	acct, err := s.accounts.FindByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !acct.HasPassword() {
		return nil, ErrInvalidCredentials
	}
	if !acct.Verified {
		return nil, ErrEmailNotVerified
	}
	ok, err := security.VerifyPassword(acct.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidPassword
	}

	refreshTTL := s.cfg.RefreshTokenTTL
	if rememberMe {
		refreshTTL = s.cfg.ExtendedRefreshTTL
	}
	return s.signIn(acct, refreshTTL)
}

// GoogleLogin validates a client-posted ID token and signs in the
// asserted identity, creating or promoting the account as needed.
func (s *SessionService) GoogleLogin(ctx context.Context, idToken string) (*SignInResult, error) {
	identity, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamVerifier, err)
	}
	return s.LoginWithIdentity(ctx, identity)
}

// LoginWithIdentity is the shared trust decision for both OAuth entry
// points. An audience minted for a different application is rejected
// exactly like a failed verification, before any account is touched.
func (s *SessionService) LoginWithIdentity(ctx context.Context, identity *oauth.Identity) (*SignInResult, error) {
	if identity == nil || identity.Audience != s.cfg.GoogleClientID {
		return nil, ErrInvalidOAuthToken
	}

	acct, err := s.accounts.FindByEmail(identity.Email)
	switch {
	case errors.Is(err, repository.ErrAccountNotFound):
		now := time.Now().UTC()
		acct = &domain.Account{
			Email:       identity.Email,
			Name:        identity.Name,
			OAuthLinked: true,
			Verified:    true,
			VerifiedAt:  &now,
		}
		if err := s.accounts.Create(acct); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	case !acct.Verified:
		// OAuth presence proves email ownership: promote the account.
		if err := s.promoteToVerified(acct); err != nil {
			return nil, err
		}
	}
	if !acct.OAuthLinked {
		acct.OAuthLinked = true
		if err := s.accounts.Update(acct); err != nil {
			return nil, err
		}
	}

	// OAuth sign-ins always get the extended refresh lifetime.
	return s.signIn(acct, s.cfg.ExtendedRefreshTTL)
}

// Refresh exchanges a refresh token for a new access token. The refresh
// token itself is not rotated; it stays valid until its natural expiry.
func (s *SessionService) Refresh(refreshToken string) (accessToken string, expiresAt time.Time, email string, err error) {
	claims, err := s.codec.VerifyRefresh(refreshToken)
	if err != nil {
		return "", time.Time{}, "", ErrInvalidToken
	}
	access, err := s.codec.MintAccess(claims.Email, s.cfg.AccessTokenTTL)
	if err != nil {
		return "", time.Time{}, "", err
	}
	return access, time.Now().Add(s.cfg.AccessTokenTTL), claims.Email, nil
}

// CurrentUser resolves an access token to its account.
func (s *SessionService) CurrentUser(accessToken string) (*domain.Account, error) {
	claims, err := s.codec.VerifyAccess(accessToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return s.AccountByEmail(claims.Email)
}

// AccountByEmail serves the transport layer after the middleware has
// already authenticated the caller.
func (s *SessionService) AccountByEmail(email string) (*domain.Account, error) {
	acct, err := s.accounts.FindByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return acct, nil
}

// DeleteAccount removes the record. Tokens already in the wild remain
// valid until expiry; the transport clears the refresh cookie.
func (s *SessionService) DeleteAccount(email string) error {
	err := s.accounts.DeleteByEmail(strings.TrimSpace(email))
	if errors.Is(err, repository.ErrAccountNotFound) {
		return ErrAccountNotFound
	}
	return err
}

// promoteToVerified is the explicit unverified→verified transition
// granted by a trusted OAuth assertion.
func (s *SessionService) promoteToVerified(acct *domain.Account) error {
	if err := s.accounts.MarkVerified(acct.Email); err != nil {
		return err
	}
	now := time.Now().UTC()
	acct.Verified = true
	acct.VerifiedAt = &now
	return nil
}

func (s *SessionService) signIn(acct *domain.Account, refreshTTL time.Duration) (*SignInResult, error) {
	access, err := s.codec.MintAccess(acct.Email, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.codec.MintRefresh(acct.Email, refreshTTL)
	if err != nil {
		return nil, err
	}
	return &SignInResult{
		Account: acct,
		Tokens: TokenPair{
			AccessToken:  access,
			RefreshToken: refresh,
			RefreshTTL:   refreshTTL,
			ExpiresAt:    time.Now().Add(s.cfg.AccessTokenTTL),
		},
	}, nil
}

func (s *SessionService) sendVerification(ctx context.Context, email string) (string, error) {
	token, err := s.codec.MintEmailVerification(email, s.cfg.VerifyTokenTTL)
	if err != nil {
		return "", err
	}
	notification := VerificationNotification{
		Email:           email,
		Token:           token,
		ExpiresAt:       time.Now().Add(s.cfg.VerifyTokenTTL),
		VerificationURL: s.verificationURL(token),
	}
	// Fire-and-forget: delivery is never awaited and its failure never
	// surfaces to the caller.
	go func() {
		if err := s.notifier.SendEmailVerification(context.WithoutCancel(ctx), notification); err != nil {
			s.logger.Warn("verification email delivery failed", "email", email, "error", err)
		}
	}()
	return token, nil
}

func (s *SessionService) verificationURL(token string) string {
	u, err := url.Parse(s.cfg.FrontendURL)
	if err != nil {
		return ""
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/verify-email"
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("invalid email")
	}
	return nil
}
