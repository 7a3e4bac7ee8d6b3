package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/nazlul/analytics-dash/internal/config"
	"github.com/nazlul/analytics-dash/internal/http/response"
	"github.com/nazlul/analytics-dash/internal/oauth"
	"github.com/nazlul/analytics-dash/internal/observability"
	"github.com/nazlul/analytics-dash/internal/security"
	"github.com/nazlul/analytics-dash/internal/service"
)

const oauthStateCookie = "oauth_state"

type AuthHandler struct {
	cfg       *config.Config
	sessions  service.SessionAPI
	cookieMgr *security.CookieManager
	redirect  *oauth.RedirectProvider
}

func NewAuthHandler(cfg *config.Config, sessions service.SessionAPI, cookieMgr *security.CookieManager, redirect *oauth.RedirectProvider) *AuthHandler {
	return &AuthHandler{cfg: cfg, sessions: sessions, cookieMgr: cookieMgr, redirect: redirect}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "register", status, time.Since(start))
	}()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status = "failure"
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}

	token, err := h.sessions.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		status = "failure"
		observability.RecordAuthRegister(r.Context(), "failure")
		if errors.Is(err, service.ErrDuplicateAccount) {
			observability.Audit(r, "auth.register.rejected", "reason", "duplicate_email")
			response.Error(w, r, http.StatusBadRequest, "EMAIL_TAKEN", "email already registered", nil)
			return
		}
		observability.Audit(r, "auth.register.rejected", "reason", "validation")
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}

	observability.Audit(r, "auth.register.success", "email", req.Email)
	observability.RecordAuthRegister(r.Context(), "success")
	body := map[string]any{
		"message": "verification email sent",
		"email":   strings.TrimSpace(req.Email),
	}
	if !h.cfg.IsProduction() {
		// Dev convenience: lets the frontend complete the flow without a
		// mail provider.
		body["verification_token"] = token
	}
	response.JSON(w, r, http.StatusOK, body)
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "verify_email", status, time.Since(start))
	}()

	// The emailed link arrives as GET ?token=; SPA clients post JSON.
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		var req struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			token = strings.TrimSpace(req.Token)
		}
	}
	if token == "" {
		status = "failure"
		observability.RecordEmailVerification(r.Context(), "verify", "failure")
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "missing verification token", nil)
		return
	}

	result, err := h.sessions.VerifyEmail(r.Context(), token)
	if err != nil {
		status = "failure"
		observability.RecordEmailVerification(r.Context(), "verify", "failure")
		switch {
		case errors.Is(err, service.ErrAccountNotFound):
			observability.Audit(r, "auth.verify.failed", "reason", "account_missing")
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "account not found", nil)
		case errors.Is(err, service.ErrInvalidToken):
			observability.Audit(r, "auth.verify.failed", "reason", "invalid_token")
			response.Error(w, r, http.StatusBadRequest, "INVALID_TOKEN", "invalid or expired token", nil)
		default:
			response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "verification failed", nil)
		}
		return
	}

	h.cookieMgr.SetRefreshCookie(w, result.Tokens.RefreshToken, result.Tokens.RefreshTTL)
	observability.Audit(r, "auth.verify.success", "email", result.Account.Email)
	observability.RecordEmailVerification(r.Context(), "verify", "success")
	response.JSON(w, r, http.StatusOK, map[string]any{
		"user":         result.Account,
		"access_token": result.Tokens.AccessToken,
		"expires_at":   result.Tokens.ExpiresAt,
	})
}

func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "resend_verification", status, time.Since(start))
	}()

	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		status = "failure"
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "missing email", nil)
		return
	}

	token, err := h.sessions.ResendVerification(r.Context(), req.Email)
	if err != nil {
		status = "failure"
		observability.RecordEmailVerification(r.Context(), "resend", "failure")
		switch {
		case errors.Is(err, service.ErrAccountNotFound):
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "account not found", nil)
		case errors.Is(err, service.ErrAlreadyVerified):
			response.Error(w, r, http.StatusBadRequest, "ALREADY_VERIFIED", "email is already verified", nil)
		default:
			response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "resend failed", nil)
		}
		return
	}

	observability.Audit(r, "auth.verify.resend", "email", req.Email)
	observability.RecordEmailVerification(r.Context(), "resend", "success")
	body := map[string]any{"message": "verification email sent"}
	if !h.cfg.IsProduction() {
		body["verification_token"] = token
	}
	response.JSON(w, r, http.StatusOK, body)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "login", status, time.Since(start))
	}()

	var req struct {
		Email      string `json:"email"`
		Password   string `json:"password"`
		RememberMe bool   `json:"remember_me"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status = "failure"
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}

	result, err := h.sessions.Login(r.Context(), req.Email, req.Password, req.RememberMe)
	if err != nil {
		status = "failure"
		observability.RecordAuthLogin(r.Context(), "password", "failure")
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			observability.Audit(r, "auth.login.failed", "reason", "invalid_credentials")
			response.Error(w, r, http.StatusBadRequest, "INVALID_CREDENTIALS", "invalid credentials", nil)
		case errors.Is(err, service.ErrEmailNotVerified):
			observability.Audit(r, "auth.login.failed", "reason", "email_not_verified")
			response.Error(w, r, http.StatusForbidden, "EMAIL_NOT_VERIFIED", "email verification required", nil)
		case errors.Is(err, service.ErrInvalidPassword):
			observability.Audit(r, "auth.login.failed", "reason", "invalid_password", "client_ip", clientIP(r))
			response.Error(w, r, http.StatusUnauthorized, "INVALID_PASSWORD", "invalid password", nil)
		default:
			response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "login failed", nil)
		}
		return
	}

	h.cookieMgr.SetRefreshCookie(w, result.Tokens.RefreshToken, result.Tokens.RefreshTTL)
	observability.Audit(r, "auth.login.success", "email", result.Account.Email, "provider", "password", "client_ip", clientIP(r))
	observability.RecordAuthLogin(r.Context(), "password", "success")
	response.JSON(w, r, http.StatusOK, map[string]any{
		"user":         result.Account,
		"access_token": result.Tokens.AccessToken,
		"expires_at":   result.Tokens.ExpiresAt,
	})
}

// GoogleTokenLogin handles the SPA flow: the browser obtained an ID token
// from Google directly and posts it here.
func (h *AuthHandler) GoogleTokenLogin(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "google_login", status, time.Since(start))
	}()

	var req struct {
		IDToken string `json:"id_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IDToken == "" {
		status = "failure"
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "missing id_token", nil)
		return
	}

	result, err := h.sessions.GoogleLogin(r.Context(), req.IDToken)
	if err != nil {
		status = "failure"
		observability.Audit(r, "auth.login.failed", "provider", "google", "reason", "verification")
		observability.RecordAuthLogin(r.Context(), "google", "failure")
		response.Error(w, r, http.StatusUnauthorized, "OAUTH_FAILED", "google sign-in failed", nil)
		return
	}

	h.cookieMgr.SetRefreshCookie(w, result.Tokens.RefreshToken, result.Tokens.RefreshTTL)
	observability.Audit(r, "auth.login.success", "email", result.Account.Email, "provider", "google")
	observability.RecordAuthLogin(r.Context(), "google", "success")
	response.JSON(w, r, http.StatusOK, map[string]any{
		"user":         result.Account,
		"access_token": result.Tokens.AccessToken,
		"expires_at":   result.Tokens.ExpiresAt,
	})
}

// GoogleRedirectLogin starts the server-side authorization-code flow.
func (h *AuthHandler) GoogleRedirectLogin(w http.ResponseWriter, r *http.Request) {
	state, err := security.NewRandomString(24)
	if err != nil {
		observability.Audit(r, "auth.google.redirect.failed", "reason", "state_generation")
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to generate oauth state", nil)
		return
	}
	signed := security.SignState(state, h.cfg.OAuthStateSecret)
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    signed,
		Path:     "/api/auth/google",
		HttpOnly: true,
		Secure:   h.cookieMgr.Secure,
		SameSite: h.cookieMgr.SameSite,
		Domain:   h.cookieMgr.Domain,
		MaxAge:   300,
	})
	observability.Audit(r, "auth.google.redirect")
	http.Redirect(w, r, h.redirect.AuthCodeURL(state), http.StatusFound)
}

func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "google_callback", status, time.Since(start))
	}()

	queryState := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if queryState == "" || code == "" {
		status = "failure"
		observability.Audit(r, "auth.google.callback.failed", "reason", "missing_code_or_state")
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "missing state or code", nil)
		return
	}
	stateCookie := security.GetCookie(r, oauthStateCookie)
	state, ok := security.VerifySignedState(stateCookie, h.cfg.OAuthStateSecret)
	if !ok || state != queryState {
		status = "failure"
		observability.Audit(r, "auth.google.callback.failed", "reason", "invalid_state")
		observability.RecordAuthLogin(r.Context(), "google", "failure")
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid oauth state", nil)
		return
	}
	// One-time state: invalidate as soon as it verifies.
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/api/auth/google",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieMgr.Secure,
		SameSite: h.cookieMgr.SameSite,
		Domain:   h.cookieMgr.Domain,
	})

	token, err := h.redirect.Exchange(r.Context(), code)
	if err != nil {
		status = "failure"
		observability.Audit(r, "auth.google.callback.failed", "reason", "code_exchange")
		observability.RecordAuthLogin(r.Context(), "google", "failure")
		response.Error(w, r, http.StatusUnauthorized, "OAUTH_FAILED", "google sign-in failed", nil)
		return
	}
	identity, err := h.redirect.FetchIdentity(r.Context(), token)
	if err != nil {
		status = "failure"
		observability.Audit(r, "auth.google.callback.failed", "reason", "userinfo")
		observability.RecordAuthLogin(r.Context(), "google", "failure")
		response.Error(w, r, http.StatusUnauthorized, "OAUTH_FAILED", "google sign-in failed", nil)
		return
	}

	result, err := h.sessions.LoginWithIdentity(r.Context(), identity)
	if err != nil {
		status = "failure"
		observability.Audit(r, "auth.google.callback.failed", "reason", "identity_rejected")
		observability.RecordAuthLogin(r.Context(), "google", "failure")
		response.Error(w, r, http.StatusUnauthorized, "OAUTH_FAILED", "google sign-in failed", nil)
		return
	}

	h.cookieMgr.SetRefreshCookie(w, result.Tokens.RefreshToken, result.Tokens.RefreshTTL)
	observability.Audit(r, "auth.login.success", "email", result.Account.Email, "provider", "google")
	observability.RecordAuthLogin(r.Context(), "google", "success")
	response.JSON(w, r, http.StatusOK, map[string]any{
		"user":         result.Account,
		"access_token": result.Tokens.AccessToken,
		"expires_at":   result.Tokens.ExpiresAt,
	})
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "refresh", status, time.Since(start))
	}()

	refresh := security.GetCookie(r, security.RefreshCookieName)
	if refresh == "" {
		status = "failure"
		observability.Audit(r, "auth.refresh.failed", "reason", "missing_refresh_cookie")
		observability.RecordAuthRefresh(r.Context(), "failure")
		response.Error(w, r, http.StatusUnauthorized, "MISSING_TOKEN", "missing refresh token", nil)
		return
	}
	access, expiresAt, email, err := h.sessions.Refresh(refresh)
	if err != nil {
		status = "failure"
		observability.Audit(r, "auth.refresh.failed", "reason", "invalid_refresh")
		observability.RecordAuthRefresh(r.Context(), "failure")
		response.Error(w, r, http.StatusUnauthorized, "INVALID_TOKEN", "invalid refresh token", nil)
		return
	}

	observability.Audit(r, "auth.refresh.success", "email", email)
	observability.RecordAuthRefresh(r.Context(), "success")
	response.JSON(w, r, http.StatusOK, map[string]any{
		"access_token": access,
		"expires_at":   expiresAt,
	})
}

// Logout clears the refresh cookie. Tokens are stateless, so already
// issued ones stay valid until expiry; the client discards its copy.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "logout", "success", time.Since(start))
	}()

	h.cookieMgr.ClearRefreshCookie(w)
	observability.Audit(r, "auth.logout.success")
	observability.RecordAuthLogout(r.Context(), "success")
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "logged_out"})
}

func clientIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	return r.RemoteAddr
}
