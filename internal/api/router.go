package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	mw "github.com/kiranshivaraju/vidlens/internal/api/middleware"
	"github.com/kiranshivaraju/vidlens/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler    http.HandlerFunc
	AnalyzeHandler   http.HandlerFunc
	StatusHandler    http.HandlerFunc
	InfoHandler      http.HandlerFunc
	ListJobsHandler  http.HandlerFunc
	StatsHandler     http.HandlerFunc
	DeleteJobHandler http.HandlerFunc
	CancelJobHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Resource not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	// Public health check
	r.Get("/health", orNotImplemented(deps.HealthHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		if deps.Auth != nil {
			r.Use(deps.Auth.Authenticate)
		}
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit.Limit)
		}

		r.Route("/api/video", func(r chi.Router) {
			r.Post("/analyze", orNotImplemented(deps.AnalyzeHandler))
			r.Get("/status/{job_id}", orNotImplemented(deps.StatusHandler))
			r.Get("/info", orNotImplemented(deps.InfoHandler))
		})

		r.Route("/api/jobs", func(r chi.Router) {
			r.Get("/", orNotImplemented(deps.ListJobsHandler))
			r.Get("/stats", orNotImplemented(deps.StatsHandler))
			r.Delete("/{job_id}", orNotImplemented(deps.DeleteJobHandler))
			r.Post("/{job_id}/cancel", orNotImplemented(deps.CancelJobHandler))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
