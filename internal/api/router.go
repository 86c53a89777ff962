package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/LeventeLantos/result-messaging/internal/auth"
	"github.com/LeventeLantos/result-messaging/internal/metrics"
)

type RouterConfig struct {
	CORSOrigins []string
	Metrics     *metrics.Metrics
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
}

func Router(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(CORS(cfg.CORSOrigins))
	r.Use(cfg.Metrics.Middleware)

	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Post("/auth/register", h.Register)
		r.Post("/auth/token", h.Token)

		r.Group(func(r chi.Router) {
			r.Use(h.accounts.Middleware)

			r.With(auth.Require(auth.PermProfile)).Get("/users/me", h.Me)
			r.With(auth.Require(auth.PermProfile)).Put("/users/me", h.UpdateMe)

			r.Group(func(r chi.Router) {
				r.Use(auth.Require(auth.PermSend))
				r.Post("/upload", h.Upload)
				r.Post("/send-sms", h.SendRows)
				r.Post("/send-manual", h.SendManual)
				r.Get("/sms/recent", h.RecentSent)
				r.Get("/balance", h.Balance)
			})

			r.Group(func(r chi.Router) {
				r.Use(auth.Require(auth.PermTemplates))
				r.Post("/templates/preview", h.PreviewTemplate)
				r.Post("/templates/download", h.DownloadTemplate)
			})

			r.Group(func(r chi.Router) {
				r.Use(auth.Require(auth.PermFailures))
				r.Get("/failed-sms", h.ListFailures)
				r.Post("/failed-sms/resend", h.ResendFailures)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(auth.Require(auth.PermAdmin))
				r.Get("/users", h.PendingUsers)
				r.Get("/all-users", h.AllUsers)
				r.Post("/approve/{id}", h.ApproveUser)
				r.Delete("/user/{id}", h.DeleteUser)
			})

			r.Route("/resend-scheduler", func(r chi.Router) {
				r.Use(auth.Require(auth.PermAdmin))
				r.Get("/status", h.SchedulerStatus)
				r.Post("/start", h.SchedulerStart)
				r.Post("/stop", h.SchedulerStop)
			})
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("result-messaging"))
	})

	return r
}
