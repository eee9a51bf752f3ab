package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/example/campus-rooms/internal/application"
)

// RouterConfig collects the handlers and middleware mounted by NewRouter.
// Nil handlers leave their routes unmounted.
type RouterConfig struct {
	Auth        *AuthHandler
	Bookings    *BookingHandler
	Rooms       *RoomHandler
	Departments *DepartmentHandler
	Users       *UserHandler
	Maintenance *MaintenanceHandler
	Reports     *ReportHandler
	Audit       *AuditHandler

	Authenticator Authenticator
	LoginLimiter  *LoginLimiter
	Metrics       http.Handler
	Health        http.HandlerFunc
	Middleware    []func(http.Handler) http.Handler
	Logger        *slog.Logger
}

// NewRouter mounts every route of the API on a chi router.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := defaultLogger(cfg.Logger)
	responder := newResponder(logger)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cfg.Middleware...)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		responder.writeError(req.Context(), w, http.StatusNotFound, errRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		responder.writeError(req.Context(), w, http.StatusMethodNotAllowed, errMethodNotAllowed)
	})

	health := cfg.Health
	if health == nil {
		health = func(w http.ResponseWriter, req *http.Request) {
			responder.ok(req.Context(), w, http.StatusOK, "OK", map[string]string{"status": "ok"})
		}
	}
	r.Get("/health", health)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	authRequired := RequireAuth(cfg.Authenticator, logger)
	adminOnly := RequireRole(logger, application.RoleAdmin)

	if cfg.Auth != nil {
		r.Route("/auth", func(r chi.Router) {
			login := r.With()
			if cfg.LoginLimiter != nil {
				login = r.With(cfg.LoginLimiter.Middleware)
			}
			login.Post("/login", cfg.Auth.Login)

			r.Group(func(r chi.Router) {
				r.Use(authRequired)
				r.Post("/logout", cfg.Auth.Logout)
				r.Get("/me", cfg.Auth.Me)
				r.Put("/password", cfg.Auth.ChangePassword)
			})
		})
	}

	r.Group(func(r chi.Router) {
		r.Use(authRequired)

		if h := cfg.Bookings; h != nil {
			r.Route("/bookings", func(r chi.Router) {
				r.With(adminOnly).Get("/", h.List)
				r.Post("/", h.Create)
				r.Get("/my-bookings", h.Mine)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.Get)
					r.Put("/", h.Update)
					r.Delete("/", h.Cancel)
					r.With(adminOnly).Delete("/permanent", h.Delete)
					r.With(adminOnly).Patch("/status", h.SetStatus)
				})
			})
		}

		if h := cfg.Rooms; h != nil {
			r.Route("/rooms", func(r chi.Router) {
				r.Get("/", h.List)
				r.With(adminOnly).Post("/", h.Create)
				r.Get("/available", h.Available)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.Get)
					r.Get("/availability", h.Availability)
					r.With(adminOnly).Put("/", h.Update)
					r.With(adminOnly).Delete("/", h.Delete)
					r.With(adminOnly).Patch("/status", h.SetStatus)
				})
			})
		}

		if h := cfg.Departments; h != nil {
			r.Route("/departments", func(r chi.Router) {
				r.Get("/", h.List)
				r.With(adminOnly).Post("/", h.Create)
				r.Get("/{id}", h.Get)
				r.With(adminOnly).Put("/{id}", h.Update)
				r.With(adminOnly).Delete("/{id}", h.Delete)
			})
		}

		if h := cfg.Users; h != nil {
			r.Route("/users", func(r chi.Router) {
				r.With(adminOnly).Get("/", h.List)
				r.With(adminOnly).Post("/", h.Create)
				r.Get("/{id}", h.Get)
				r.With(adminOnly).Put("/{id}", h.Update)
				r.With(adminOnly).Delete("/{id}", h.Delete)
				r.With(adminOnly).Patch("/{id}/status", h.SetStatus)
			})
		}

		if h := cfg.Maintenance; h != nil {
			r.Route("/maintenance", func(r chi.Router) {
				r.Get("/", h.List)
				r.Post("/", h.Create)
				r.Get("/{id}", h.Get)
				r.Put("/{id}", h.Update)
				r.With(adminOnly).Delete("/{id}", h.Delete)
			})
		}

		if h := cfg.Reports; h != nil {
			r.Route("/reports", func(r chi.Router) {
				r.Get("/room-utilization", h.RoomUtilization)
				r.Get("/booking-summary", h.BookingSummary)
				r.With(adminOnly).Get("/department-usage", h.DepartmentUsage)
				r.Get("/maintenance-summary", h.MaintenanceSummary)
			})
		}

		if h := cfg.Audit; h != nil {
			r.With(adminOnly).Get("/audit-logs", h.List)
		}
	})

	return r
}
