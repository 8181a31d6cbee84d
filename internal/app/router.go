package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aliuyar1234/taskhub/internal/apperrors"
	"github.com/aliuyar1234/taskhub/internal/audit"
	"github.com/aliuyar1234/taskhub/internal/auth"
	"github.com/aliuyar1234/taskhub/internal/config"
	"github.com/aliuyar1234/taskhub/internal/metrics"
	"github.com/aliuyar1234/taskhub/internal/orgs"
	"github.com/aliuyar1234/taskhub/internal/store"
	"github.com/aliuyar1234/taskhub/internal/tasks"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates and configures the Chi router with all middleware and routes
func NewRouter(cfg *config.Config, s *store.Store, m *metrics.Metrics) (*chi.Mux, error) {
	issuer, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create token issuer: %w", err)
	}
	hasher := auth.NewBcryptHasher(cfg.BcryptCost)

	// Audit writer (shared across API routes)
	auditor := audit.NewWriter(s)
	auditReader := audit.NewReader(s)

	authz := orgs.NewAuthorizer(s, m)
	members := orgs.NewMembersService(s, authz, hasher, auditor, m, orgs.MembersConfig{
		DefaultPassword:  cfg.DefaultMemberPassword,
		ProtectLastOwner: cfg.ProtectLastOwner,
	})
	taskSvc := tasks.NewService(s, authz, auditor, m)

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RealIP)
	r.Use(apperrors.RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)
	r.Use(m.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.BaseURL},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", orgs.OrgHeader},
		ExposedHeaders:   []string{apperrors.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check routes (no authentication required)
	r.Get("/healthz", handleHealthz)
	r.Get("/readyz", handleReadyz(s))
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/api", func(r chi.Router) {
		r.With(LoginRateLimitMiddleware(cfg.LoginRateLimit)).Post("/auth/login", auth.HandleLogin(s, hasher, issuer))

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireBearer(issuer))

			r.Get("/me", auth.HandleMe())
			r.Get("/me/organizations", orgs.HandleMyOrganizations(members))

			r.Get("/tasks", tasks.HandleList(taskSvc))
			r.Post("/tasks", tasks.HandleCreate(taskSvc))
			r.Get("/tasks/{task_id}", tasks.HandleGet(taskSvc))
			r.Patch("/tasks/{task_id}", tasks.HandleUpdate(taskSvc))
			r.Delete("/tasks/{task_id}", tasks.HandleDelete(taskSvc))

			r.Get("/org-users", orgs.HandleListMembers(members, authz))
			r.Post("/org-users", orgs.HandleAddOrUpdateMember(members))
			r.Delete("/org-users/{membership_id}", orgs.HandleRemoveMember(members))

			r.Get("/audit", orgs.HandleListAudit(authz, auditReader))
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apperrors.WriteNotFound(w, r, "Route not found")
	})

	return r, nil
}

// handleHealthz returns a simple liveness check
// Always returns 200 OK if the service is running
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

type pinger interface {
	Ping(ctx context.Context) error
}

// handleReadyz returns a readiness check that includes database connectivity
// Returns 200 OK if service is ready to accept traffic, 503 if not
func handleReadyz(db pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			apperrors.WriteServiceUnavailable(w, r, "Database connection failed")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{
			"status": "ready",
			"db":     "ok",
		})
	}
}
