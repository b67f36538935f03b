package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/PhilTenno/filesyncgo/internal/middleware"
)

type RouterConfig struct {
	TriggerPath    string
	Trigger        *TriggerHandler
	Tokens         *TokenHandler
	AdminUsername  string
	AdminPassword  string
	TrustProxy     bool
	MaxBodyBytes   int64
	RequestTimeout time.Duration
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	if cfg.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
	}
	r.Use(middleware.NewBodyLimitMiddleware(cfg.MaxBodyBytes).Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	r.Post(cfg.TriggerPath, cfg.Trigger.Trigger)

	if cfg.Tokens != nil && cfg.AdminUsername != "" && cfg.AdminPassword != "" {
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.NewSecureTransportMiddleware(cfg.TrustProxy).Handler)
			r.Use(chimiddleware.BasicAuth("filesync-admin", map[string]string{
				cfg.AdminUsername: cfg.AdminPassword,
			}))
			r.Mount("/tokens", cfg.Tokens.Routes())
		})
	}

	return r
}
