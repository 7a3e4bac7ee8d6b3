package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nazlul/analytics-dash/internal/domain"
	"github.com/nazlul/analytics-dash/internal/http/middleware"
	"github.com/nazlul/analytics-dash/internal/security"
	"github.com/nazlul/analytics-dash/internal/service"
)

func withClaims(r *http.Request, email string) *http.Request {
	claims := &security.Claims{Email: email, Purpose: security.PurposeAccess}
	return r.WithContext(context.WithValue(r.Context(), middleware.ClaimsContextKey, claims))
}

func newUserHandler(stub *stubSessions) *UserHandler {
	return NewUserHandler(stub, security.NewCookieManager("", false, "lax"))
}

func TestMeHandler(t *testing.T) {
	t.Run("returns account", func(t *testing.T) {
		stub := &stubSessions{account: &domain.Account{ID: 1, Email: "a@x.com", Name: "Ann", Verified: true}}
		h := newUserHandler(stub)

		req := withClaims(httptest.NewRequest(http.MethodGet, "/api/me", nil), "a@x.com")
		rec := httptest.NewRecorder()
		h.Me(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		_, data, _ := decodeEnvelope(t, rec)
		user, ok := data["user"].(map[string]any)
		if !ok || user["email"] != "a@x.com" {
			t.Fatalf("unexpected data: %+v", data)
		}
	})

	t.Run("no auth context", func(t *testing.T) {
		h := newUserHandler(&stubSessions{})
		rec := httptest.NewRecorder()
		h.Me(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("account deleted since token minted", func(t *testing.T) {
		h := newUserHandler(&stubSessions{accountErr: service.ErrAccountNotFound})
		req := withClaims(httptest.NewRequest(http.MethodGet, "/api/me", nil), "gone@x.com")
		rec := httptest.NewRecorder()
		h.Me(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		_, _, errBody := decodeEnvelope(t, rec)
		if errBody["code"] != "UNAUTHORIZED" {
			t.Fatalf("unexpected code: %v", errBody["code"])
		}
	})
}

func TestDeleteUserHandler(t *testing.T) {
	t.Run("self delete clears refresh cookie", func(t *testing.T) {
		stub := &stubSessions{}
		h := newUserHandler(stub)
		req := withClaims(httptest.NewRequest(http.MethodDelete, "/api/delete-user", nil), "a@x.com")
		rec := httptest.NewRecorder()
		h.DeleteUser(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if stub.deletedEmail != "a@x.com" {
			t.Fatalf("expected caller's account deleted, got %q", stub.deletedEmail)
		}
		cookie := refreshCookie(rec)
		if cookie == nil || cookie.MaxAge != -1 {
			t.Fatalf("refresh cookie not cleared: %+v", cookie)
		}
	})

	t.Run("email parameter names the target account", func(t *testing.T) {
		stub := &stubSessions{}
		h := newUserHandler(stub)
		req := withClaims(httptest.NewRequest(http.MethodDelete, "/api/delete-user?email=other%40x.com", nil), "a@x.com")
		rec := httptest.NewRecorder()
		h.DeleteUser(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if stub.deletedEmail != "other@x.com" {
			t.Fatalf("expected targeted account deleted, got %q", stub.deletedEmail)
		}
		if cookie := refreshCookie(rec); cookie != nil {
			t.Fatalf("caller's refresh cookie must survive deleting another account: %+v", cookie)
		}
	})

	t.Run("unknown email parameter is a 404", func(t *testing.T) {
		h := newUserHandler(&stubSessions{deleteErr: service.ErrAccountNotFound})
		req := withClaims(httptest.NewRequest(http.MethodDelete, "/api/delete-user?email=nobody%40x.com", nil), "a@x.com")
		rec := httptest.NewRecorder()
		h.DeleteUser(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("already deleted", func(t *testing.T) {
		h := newUserHandler(&stubSessions{deleteErr: service.ErrAccountNotFound})
		req := withClaims(httptest.NewRequest(http.MethodDelete, "/api/delete-user", nil), "gone@x.com")
		rec := httptest.NewRecorder()
		h.DeleteUser(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}
