package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/nazlul/analytics-dash/internal/http/middleware"
	"github.com/nazlul/analytics-dash/internal/http/response"
	"github.com/nazlul/analytics-dash/internal/observability"
	"github.com/nazlul/analytics-dash/internal/security"
	"github.com/nazlul/analytics-dash/internal/service"
)

type UserHandler struct {
	sessions  service.SessionAPI
	cookieMgr *security.CookieManager
}

func NewUserHandler(sessions service.SessionAPI, cookieMgr *security.CookieManager) *UserHandler {
	return &UserHandler{sessions: sessions, cookieMgr: cookieMgr}
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	acct, err := h.sessions.AccountByEmail(claims.Email)
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			// A signed token for a deleted account is as unauthorized as no
			// token at all.
			response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "account no longer exists", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "lookup failed", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"user": acct})
}

// DeleteUser removes the account named by the email query parameter,
// defaulting to the caller's own. A self-delete also clears the refresh
// cookie so the browser does not keep presenting a dangling session.
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		email = claims.Email
	}
	if err := h.sessions.DeleteAccount(email); err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			observability.RecordAccountDeletion(r.Context(), "not_found")
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "account not found", nil)
			return
		}
		observability.RecordAccountDeletion(r.Context(), "failure")
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "delete failed", nil)
		return
	}
	if email == claims.Email {
		h.cookieMgr.ClearRefreshCookie(w)
	}
	observability.Audit(r, "account.delete.success", "email", email, "actor", claims.Email)
	observability.RecordAccountDeletion(r.Context(), "success")
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "deleted"})
}
