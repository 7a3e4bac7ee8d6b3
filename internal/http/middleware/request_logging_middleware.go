package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// StructuredRequestLogger writes one slog line per request on the way
// out, tagged with the chi route pattern so /api/login and /api/refresh
// aggregate separately even when raw paths carry query strings.
func StructuredRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		line := []any{
			"method", r.Method,
			"route", route,
			"path", r.URL.Path,
			"status", status,
			"bytes_out", ww.BytesWritten(),
			"elapsed", time.Since(start).String(),
			"request_id", chimiddleware.GetReqID(r.Context()),
			"remote", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		}
		switch {
		case status >= http.StatusInternalServerError:
			slog.ErrorContext(r.Context(), "request completed", line...)
		case status >= http.StatusBadRequest:
			slog.WarnContext(r.Context(), "request completed", line...)
		default:
			slog.InfoContext(r.Context(), "request completed", line...)
		}
	})
}
