package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/redmonkez12/contacts-api/internal/auth"
	"github.com/redmonkez12/contacts-api/internal/config"
	"github.com/redmonkez12/contacts-api/internal/contact"
	"github.com/redmonkez12/contacts-api/internal/logging"
	"github.com/redmonkez12/contacts-api/internal/ratelimit"
)

// RateLimiter wraps a route with a per-purpose request limit
type RateLimiter interface {
	Middleware(purpose string) func(http.Handler) http.Handler
}

// Handlers groups everything the router mounts
type Handlers struct {
	Auth           *auth.Handler
	AuthMiddleware *auth.Middleware
	Contacts       *contact.Handler
	RateLimiter    RateLimiter
	Health         []HealthCheck
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, h Handlers, logger *logging.Logger) *chi.Mux {
	r := chi.NewRouter()

	// CORS - must be first
	if len(cfg.Server.TrustedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.TrustedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300, // 5 minutes
		}))
	}

	r.Use(SecurityHeaders(cfg.Server.IsProduction()))
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.Compress(5))

	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	r.Get("/health", healthHandler(h.Health))

	// Production builds will not have this route at all
	if cfg.Server.IsDevelopment() {
		logger.Info("swagger UI enabled at /swagger/*")
		r.Get("/swagger/*", httpSwagger.WrapHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(h.RateLimiter.Middleware(ratelimit.PurposeRegister)).Post("/register", h.Auth.Register)
			r.Post("/verify-email", h.Auth.VerifyEmail)
			r.With(h.RateLimiter.Middleware(ratelimit.PurposeLogin)).Post("/login", h.Auth.Login)
			r.With(h.RateLimiter.Middleware(ratelimit.PurposeForgotPassword)).Post("/forgot-password", h.Auth.ForgotPassword)
			r.Post("/reset-password", h.Auth.ResetPassword)

			r.With(h.AuthMiddleware.RequireAccess).Get("/current", h.Auth.Current)
			r.With(h.AuthMiddleware.RequireAccess).Delete("/logout", h.Auth.Logout)
			r.With(h.AuthMiddleware.RequireRefresh).Post("/refresh-token", h.Auth.RefreshToken)
		})

		r.Route("/contacts", func(r chi.Router) {
			r.Use(h.AuthMiddleware.RequireAccess)

			r.Post("/", h.Contacts.Create)
			r.Get("/", h.Contacts.Search)

			r.Route("/{contactId}", func(r chi.Router) {
				r.Get("/", h.Contacts.Get)
				r.Patch("/", h.Contacts.Update)
				r.Delete("/", h.Contacts.Delete)

				r.Post("/addresses", h.Contacts.CreateAddress)
				r.Get("/addresses", h.Contacts.ListAddresses)
				r.Get("/addresses/{addressId}", h.Contacts.GetAddress)
				r.Patch("/addresses/{addressId}", h.Contacts.UpdateAddress)
				r.Delete("/addresses/{addressId}", h.Contacts.DeleteAddress)
			})
		})
	})

	return r
}
