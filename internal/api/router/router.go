package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/castrolabs/osbot/internal/http/handlers"
	httpmiddleware "github.com/castrolabs/osbot/internal/http/middleware"
	"github.com/castrolabs/osbot/internal/leads"
	"github.com/castrolabs/osbot/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	Webhook            *handlers.EvolutionWebhookHandler
	OrdersAPI          *handlers.OrdersAPIHandler
	Admin              *handlers.AdminHandler
	LeadsHandler       *leads.Handler
	MetricsHandler     http.Handler
	FilesDir           string
	AdminJWTSecret     string
	CORSAllowedOrigins []string
	LeadRatePerMinute  int
}

// New creates the chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", handlers.Health)

		if cfg.Webhook != nil {
			public.Post("/webhook", cfg.Webhook.Handle)
			public.Post("/webhook/*", cfg.Webhook.Handle)
		}

		if cfg.LeadsHandler != nil {
			rate := cfg.LeadRatePerMinute
			if rate <= 0 {
				rate = 5
			}
			public.With(httpmiddleware.RateLimit(rate, time.Minute)).
				Post("/api/leads/cadastrar", cfg.LeadsHandler.Cadastrar)
		}

		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}

		if cfg.FilesDir != "" {
			fs := http.StripPrefix("/files/", http.FileServer(http.Dir(cfg.FilesDir)))
			public.Get("/files/*", fs.ServeHTTP)
		}
	})

	// Ops REST surface
	if cfg.OrdersAPI != nil {
		r.Route("/api", func(api chi.Router) {
			api.Get("/os", cfg.OrdersAPI.List)
			api.Post("/os", cfg.OrdersAPI.Create)
			api.Get("/os/{id}", cfg.OrdersAPI.Get)
			api.Patch("/os/{id}/status", cfg.OrdersAPI.UpdateStatus)
			api.Get("/balance", cfg.OrdersAPI.Balance)
		})
	}

	// Operator endpoints behind JWT auth
	if cfg.Admin != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminJWTSecret))
			admin.Get("/leads", cfg.Admin.ListLeads)
			admin.Get("/notifications", cfg.Admin.ListNotifications)
			admin.Post("/messages", cfg.Admin.SendMessage)
		})
	}

	return r
}
