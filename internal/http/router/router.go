package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/nazlul/analytics-dash/internal/health"
	"github.com/nazlul/analytics-dash/internal/http/handler"
	"github.com/nazlul/analytics-dash/internal/http/middleware"
	"github.com/nazlul/analytics-dash/internal/http/response"
	"github.com/nazlul/analytics-dash/internal/security"
)

type Dependencies struct {
	AuthHandler      *handler.AuthHandler
	UserHandler      *handler.UserHandler
	InsightsHandler  *handler.InsightsHandler
	TokenCodec       *security.TokenCodec
	CORSOrigins      []string
	AuthRateLimitRPM int
	APIRateLimitRPM  int
	GlobalLimiter    func(http.Handler) http.Handler
	AuthLimiter      func(http.Handler) http.Handler
	Readiness        *health.ProbeRunner
	EnableOTelHTTP   bool
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))
	r.Use(middleware.BodyLimit(1 << 20))
	if dep.GlobalLimiter != nil {
		r.Use(dep.GlobalLimiter)
	} else {
		r.Use(middleware.NewRateLimiter(dep.APIRateLimitRPM, time.Minute, "api").Middleware())
	}

	authLimiter := dep.AuthLimiter
	if authLimiter == nil {
		authLimiter = middleware.NewRateLimiter(dep.AuthRateLimitRPM, time.Minute, "auth").Middleware()
	}
	requireAuth := middleware.AuthMiddleware(dep.TokenCodec)

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "dependencies are not ready", map[string]any{"checks": results})
	})

	r.Route("/api", func(r chi.Router) {
		r.With(authLimiter).Post("/register", dep.AuthHandler.Register)
		// GET serves the emailed link, POST the SPA flow.
		r.With(authLimiter).Get("/verify-email", dep.AuthHandler.VerifyEmail)
		r.With(authLimiter).Post("/verify-email", dep.AuthHandler.VerifyEmail)
		r.With(authLimiter).Post("/resend-verification-email", dep.AuthHandler.ResendVerification)
		r.With(authLimiter).Post("/login", dep.AuthHandler.Login)
		r.With(authLimiter).Post("/google-login", dep.AuthHandler.GoogleTokenLogin)
		r.With(authLimiter).Post("/refresh", dep.AuthHandler.Refresh)
		r.Post("/logout", dep.AuthHandler.Logout)

		r.Route("/auth/google", func(r chi.Router) {
			r.With(authLimiter).Get("/login", dep.AuthHandler.GoogleRedirectLogin)
			r.With(authLimiter).Get("/callback", dep.AuthHandler.GoogleCallback)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/me", dep.UserHandler.Me)
			r.Delete("/delete-user", dep.UserHandler.DeleteUser)
			r.Get("/fb-insights", dep.InsightsHandler.CampaignInsights)
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
