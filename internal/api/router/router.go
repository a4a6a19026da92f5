package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/rehab-clinic-platform/internal/appointments"
	"github.com/wolfman30/rehab-clinic-platform/internal/audit"
	"github.com/wolfman30/rehab-clinic-platform/internal/chat"
	"github.com/wolfman30/rehab-clinic-platform/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/rehab-clinic-platform/internal/http/middleware"
	"github.com/wolfman30/rehab-clinic-platform/internal/leads"
	"github.com/wolfman30/rehab-clinic-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Health             *handlers.HealthHandler
	BookingSessions    *handlers.BookingSessionHandler
	Catalog            *handlers.CatalogHandler
	Appointments       *appointments.Handler
	LeadsHandler       *leads.Handler
	Chat               *chat.Handler
	Audit              *audit.Handler
	Dashboard          *handlers.AdminDashboardHandler
	AdminAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// FormLimiter throttles the public write endpoints (forms, new sessions
	// and appointment requests). Nil disables rate limiting.
	FormLimiter *httpmiddleware.RateLimiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	limited := func(h http.HandlerFunc) http.Handler {
		if cfg.FormLimiter == nil {
			return h
		}
		return httpmiddleware.RateLimit(cfg.FormLimiter)(h)
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		if cfg.Health != nil {
			public.Get("/health", cfg.Health.HealthCheck)
		} else {
			public.Get("/health", handlers.NewHealthHandler(nil).HealthCheck)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	r.Route("/api", func(api chi.Router) {
		if cfg.BookingSessions != nil {
			api.Route("/booking/sessions", func(sessions chi.Router) {
				sessions.Method(http.MethodPost, "/", limited(cfg.BookingSessions.Create))
				sessions.Route("/{sessionID}", cfg.BookingSessions.SessionRoutes)
			})
		}
		if cfg.Catalog != nil {
			api.Get("/catalog/departments", cfg.Catalog.ListDepartments)
			api.Get("/catalog/departments/{name}/doctors", cfg.Catalog.ListDoctors)
		}
		if cfg.Appointments != nil {
			api.Method(http.MethodPost, "/appointments", limited(cfg.Appointments.Create))
			// The patient dashboard needs a token from an emailed sign-in link.
			if cfg.AdminAuthSecret != "" {
				api.Method(http.MethodPost, "/appointments/access", limited(cfg.Appointments.RequestAccess))
				api.With(httpmiddleware.AdminJWT(cfg.AdminAuthSecret, httpmiddleware.RolePatient)).
					Method(http.MethodGet, "/appointments", limited(cfg.Appointments.ListForPatient))
			}
		}
		if cfg.LeadsHandler != nil {
			api.Method(http.MethodPost, "/contact", limited(cfg.LeadsHandler.CreateContact))
			api.Method(http.MethodPost, "/newsletter", limited(cfg.LeadsHandler.Subscribe))
		}
		if cfg.Chat != nil {
			api.Route("/chat", func(c chi.Router) {
				c.Method(http.MethodPost, "/message", limited(cfg.Chat.HandleMessage))
				c.Get("/history", cfg.Chat.HandleHistory)
				c.Get("/ws", cfg.Chat.HandleWebSocket)
			})
		}
	})

	// Staff routes (HMAC JWT). Doctors reach their own appointments; the rest
	// is admin only.
	if cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(middleware.Compress(5))
			if cfg.Appointments != nil {
				admin.Group(func(staff chi.Router) {
					staff.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret, httpmiddleware.RoleAdmin, httpmiddleware.RoleDoctor))
					staff.Get("/appointments", cfg.Appointments.List)
				})
			}
			admin.Group(func(adm chi.Router) {
				adm.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret, httpmiddleware.RoleAdmin))
				if cfg.Appointments != nil {
					adm.Get("/appointments/{id}", cfg.Appointments.Get)
					adm.Patch("/appointments/{id}/status", cfg.Appointments.UpdateStatus)
				}
				if cfg.LeadsHandler != nil {
					adm.Get("/contacts", cfg.LeadsHandler.ListContacts)
				}
				if cfg.Audit != nil {
					adm.Get("/audit", cfg.Audit.List)
				}
				if cfg.Dashboard != nil {
					adm.Get("/dashboard", cfg.Dashboard.GetDashboardOverview)
				}
			})
		})
	}

	return r
}
