package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nazlul/analytics-dash/internal/config"
	"github.com/nazlul/analytics-dash/internal/domain"
	"github.com/nazlul/analytics-dash/internal/http/handler"
	"github.com/nazlul/analytics-dash/internal/http/router"
	"github.com/nazlul/analytics-dash/internal/insights"
	"github.com/nazlul/analytics-dash/internal/oauth"
	"github.com/nazlul/analytics-dash/internal/repository"
	"github.com/nazlul/analytics-dash/internal/security"
	"github.com/nazlul/analytics-dash/internal/service"
)

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// verificationCaptureNotifier records deliveries on a channel because
// the service dispatches them asynchronously.
type verificationCaptureNotifier struct {
	sent chan service.VerificationNotification
}

func newVerificationCaptureNotifier() *verificationCaptureNotifier {
	return &verificationCaptureNotifier{sent: make(chan service.VerificationNotification, 8)}
}

func (n *verificationCaptureNotifier) SendEmailVerification(_ context.Context, notification service.VerificationNotification) error {
	n.sent <- notification
	return nil
}

func (n *verificationCaptureNotifier) wait(t *testing.T) service.VerificationNotification {
	t.Helper()
	select {
	case notification := <-n.sent:
		return notification
	case <-time.After(5 * time.Second):
		t.Fatal("verification notification never delivered")
		return service.VerificationNotification{}
	}
}

type identityStub struct {
	identity *oauth.Identity
	err      error
}

func (s *identityStub) Verify(context.Context, string) (*oauth.Identity, error) {
	return s.identity, s.err
}

var dbCounter int
var dbCounterMu sync.Mutex

func newAuthTestServer(t *testing.T, verifier oauth.Verifier) (string, *http.Client, *verificationCaptureNotifier) {
	t.Helper()

	dbCounterMu.Lock()
	dbCounter++
	dsn := fmt.Sprintf("file:authlifecycle%d?mode=memory&cache=shared", dbCounter)
	dbCounterMu.Unlock()

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Account{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := &config.Config{
		Env:                 "test",
		JWTIssuer:           "analytics-dash",
		JWTSecret:           strings.Repeat("k", 32),
		AccessTokenTTL:      30 * time.Minute,
		RefreshTokenTTL:     30 * 24 * time.Hour,
		ExtendedRefreshTTL:  90 * 24 * time.Hour,
		VerifyTokenTTL:      time.Hour,
		CookieSameSite:      "lax",
		CORSAllowedOrigins:  []string{"http://localhost:3000"},
		FrontendURL:         "http://localhost:3000",
		GoogleClientID:      "test-client-id",
		OAuthStateSecret:    "state-secret",
		AuthRateLimitPerMin: 1000,
		APIRateLimitPerMin:  1000,
	}

	codec := security.NewTokenCodec(cfg.JWTSecret, cfg.JWTIssuer)
	cookieMgr := security.NewCookieManager("", false, "lax")
	notifier := newVerificationCaptureNotifier()
	if verifier == nil {
		verifier = &identityStub{err: fmt.Errorf("not configured")}
	}
	sessions := service.NewSessionService(cfg, codec, repository.NewAccountRepository(db), verifier, notifier, slog.Default())

	deps := router.Dependencies{
		AuthHandler:      handler.NewAuthHandler(cfg, sessions, cookieMgr, oauth.NewRedirectProvider(cfg)),
		UserHandler:      handler.NewUserHandler(sessions, cookieMgr),
		InsightsHandler:  handler.NewInsightsHandler(insights.NewClient(cfg)),
		TokenCodec:       codec,
		CORSOrigins:      cfg.CORSAllowedOrigins,
		AuthRateLimitRPM: cfg.AuthRateLimitPerMin,
		APIRateLimitRPM:  cfg.APIRateLimitPerMin,
	}
	server := httptest.NewServer(router.NewRouter(deps))
	t.Cleanup(server.Close)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return server.URL, &http.Client{Jar: jar}, notifier
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, bearer string) (*http.Response, apiEnvelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return resp, env
}

func TestAuthLifecycle(t *testing.T) {
	baseURL, client, notifier := newAuthTestServer(t, nil)

	// Register: account exists, login is still gated. The test env echoes
	// the verification token in the response.
	resp, env := doJSON(t, client, http.MethodPost, baseURL+"/api/register", map[string]string{
		"email":    "lifecycle@example.com",
		"name":     "Lifecycle",
		"password": "pw123",
	}, "")
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("register failed: status=%d body=%s", resp.StatusCode, env.Data)
	}
	var registerData struct {
		VerificationToken string `json:"verification_token"`
	}
	if err := json.Unmarshal(env.Data, &registerData); err != nil || registerData.VerificationToken == "" {
		t.Fatalf("missing verification token: %v %s", err, env.Data)
	}
	if delivered := notifier.wait(t); delivered.Token != registerData.VerificationToken {
		t.Fatal("delivered token does not match the echoed one")
	}

	resp, env = doJSON(t, client, http.MethodPost, baseURL+"/api/login", map[string]any{
		"email": "lifecycle@example.com", "password": "pw123",
	}, "")
	if resp.StatusCode != http.StatusForbidden || env.Error == nil || env.Error.Code != "EMAIL_NOT_VERIFIED" {
		t.Fatalf("pre-verification login: status=%d error=%+v", resp.StatusCode, env.Error)
	}

	// Clicking the emailed link (a plain GET) signs the account in.
	resp, env = doJSON(t, client, http.MethodGet, baseURL+"/api/verify-email?token="+url.QueryEscape(registerData.VerificationToken), nil, "")
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("verify failed: status=%d error=%+v", resp.StatusCode, env.Error)
	}
	var verifyData struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(env.Data, &verifyData); err != nil || verifyData.AccessToken == "" {
		t.Fatalf("missing access token: %v %s", err, env.Data)
	}

	// Login now succeeds; wrong password is still rejected.
	resp, env = doJSON(t, client, http.MethodPost, baseURL+"/api/login", map[string]any{
		"email": "lifecycle@example.com", "password": "pw123",
	}, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: status=%d error=%+v", resp.StatusCode, env.Error)
	}
	var loginData struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(env.Data, &loginData); err != nil {
		t.Fatalf("decode login data: %v", err)
	}

	resp, env = doJSON(t, client, http.MethodPost, baseURL+"/api/login", map[string]any{
		"email": "lifecycle@example.com", "password": "wrong",
	}, "")
	if resp.StatusCode != http.StatusUnauthorized || env.Error == nil || env.Error.Code != "INVALID_PASSWORD" {
		t.Fatalf("wrong password: status=%d error=%+v", resp.StatusCode, env.Error)
	}

	// Authenticated surface.
	resp, env = doJSON(t, client, http.MethodGet, baseURL+"/api/me", nil, loginData.AccessToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me failed: status=%d error=%+v", resp.StatusCode, env.Error)
	}
	var meData struct {
		User struct {
			Email    string `json:"email"`
			Verified bool   `json:"verified"`
		} `json:"user"`
	}
	if err := json.Unmarshal(env.Data, &meData); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if meData.User.Email != "lifecycle@example.com" || !meData.User.Verified {
		t.Fatalf("unexpected me payload: %+v", meData.User)
	}

	// Refresh rides the cookie the login set.
	resp, env = doJSON(t, client, http.MethodPost, baseURL+"/api/refresh", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh failed: status=%d error=%+v", resp.StatusCode, env.Error)
	}
	var refreshData struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(env.Data, &refreshData); err != nil || refreshData.AccessToken == "" {
		t.Fatalf("missing refreshed access token: %v %s", err, env.Data)
	}

	// Logout clears the cookie, so the next refresh has nothing to send.
	resp, _ = doJSON(t, client, http.MethodPost, baseURL+"/api/logout", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout failed: status=%d", resp.StatusCode)
	}
	resp, env = doJSON(t, client, http.MethodPost, baseURL+"/api/refresh", nil, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: status=%d error=%+v", resp.StatusCode, env.Error)
	}

	// Delete the account; credentials stop working.
	resp, _ = doJSON(t, client, http.MethodDelete, baseURL+"/api/delete-user", nil, refreshData.AccessToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete failed: status=%d", resp.StatusCode)
	}
	resp, env = doJSON(t, client, http.MethodPost, baseURL+"/api/login", map[string]any{
		"email": "lifecycle@example.com", "password": "pw123",
	}, "")
	if resp.StatusCode != http.StatusBadRequest || env.Error == nil || env.Error.Code != "INVALID_CREDENTIALS" {
		t.Fatalf("login after delete: status=%d error=%+v", resp.StatusCode, env.Error)
	}
}

func TestGoogleLoginLifecycle(t *testing.T) {
	t.Run("new identity gets a verified account", func(t *testing.T) {
		stub := &identityStub{identity: &oauth.Identity{
			Email:    "google@example.com",
			Audience: "test-client-id",
			Name:     "Google User",
		}}
		baseURL, client, _ := newAuthTestServer(t, stub)

		resp, env := doJSON(t, client, http.MethodPost, baseURL+"/api/google-login", map[string]string{"id_token": "stub"}, "")
		if resp.StatusCode != http.StatusOK || !env.Success {
			t.Fatalf("google login: status=%d error=%+v", resp.StatusCode, env.Error)
		}
		var data struct {
			AccessToken string `json:"access_token"`
			User        struct {
				Verified    bool `json:"verified"`
				OAuthLinked bool `json:"oauth_linked"`
			} `json:"user"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !data.User.Verified || !data.User.OAuthLinked {
			t.Fatalf("unexpected account state: %+v", data.User)
		}

		resp, _ = doJSON(t, client, http.MethodGet, baseURL+"/api/me", nil, data.AccessToken)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("me after google login: status=%d", resp.StatusCode)
		}
	})

	t.Run("audience mismatch is a 401", func(t *testing.T) {
		stub := &identityStub{identity: &oauth.Identity{
			Email:    "google@example.com",
			Audience: "someone-else",
		}}
		baseURL, client, _ := newAuthTestServer(t, stub)

		resp, env := doJSON(t, client, http.MethodPost, baseURL+"/api/google-login", map[string]string{"id_token": "stub"}, "")
		if resp.StatusCode != http.StatusUnauthorized || env.Error == nil || env.Error.Code != "OAUTH_FAILED" {
			t.Fatalf("expected OAUTH_FAILED 401, got status=%d error=%+v", resp.StatusCode, env.Error)
		}
	})
}
