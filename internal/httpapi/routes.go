package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/socialn/socialn/middleware"
)

func (s *Server) routes(reg *prometheus.Registry, mediaHandler http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(s.clientContext)
	r.Use(s.logRequests)
	r.Use(s.metrics.instrument)
	r.Use(chimw.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	if reg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	if mediaHandler != nil {
		r.Handle(s.cfg.MediaPrefix+"/*", http.StripPrefix(s.cfg.MediaPrefix, mediaHandler))
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(s.throttle.limit).Post("/register", s.register)
			r.With(s.throttle.limit).Post("/login", s.login)
			r.Post("/refresh", s.refresh)
			r.Post("/logout", s.logout)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Guard(s.auth))

			r.Route("/users", func(r chi.Router) {
				r.Get("/", s.listUsers)
				r.Get("/me", s.me)
				r.With(s.throttle.limit).Patch("/update/{id}", s.updateUser)
				r.Delete("/delete/{id}", s.deleteUser)
			})

			r.Route("/posts", func(r chi.Router) {
				r.With(s.throttle.limit).Post("/", s.createPost)
				r.Get("/feed", s.feed)
				r.Get("/{id}", s.getPost)
				r.Delete("/{id}", s.deletePost)
			})

			r.With(s.throttle.limit).Post("/likes/{postId}/toggle", s.toggleLike)
		})
	})

	return r
}
