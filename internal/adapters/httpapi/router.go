package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterOptions struct {
	// AuthMiddleware populates the request identity. Without it every onboarding route answers 401.
	AuthMiddleware func(http.Handler) http.Handler
	// Metrics is served at /metrics when set.
	Metrics http.Handler
}

// NewRouter constructs the API HTTP router without authentication.
func NewRouter(s *Server) http.Handler {
	return NewRouterWithOptions(s, RouterOptions{})
}

func NewRouterWithOptions(s *Server, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Group(func(r chi.Router) {
		if opts.AuthMiddleware != nil {
			r.Use(opts.AuthMiddleware)
		}

		r.Route("/onboarding", func(r chi.Router) {
			r.Get("/session", s.GetSession)
			r.Post("/role", s.SelectRole)
			r.Post("/basic-info", s.SubmitBasicInfo)
			r.Post("/role-details", s.SubmitRoleDetails)
			r.Post("/back", s.Back)
			r.Get("/review", s.GetReview)
			r.Post("/complete", s.Complete)
			r.Post("/edit", s.BeginEdit)
			r.Delete("/extension/{role}", s.RetireExtension)
		})
		r.Get("/profiles/me/status", s.GetProfileStatus)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "route not found", nil)
	})
	return r
}
