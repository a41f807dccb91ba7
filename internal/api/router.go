package api

import (
	"net/http"
	"time"

	"prepmate/internal/api/handler"
	"prepmate/internal/app/service"
	"prepmate/internal/common/security"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
)

func NewRouter(
	authService *service.AuthService,
	problemService *service.ProblemService,
	contentService *service.ContentService,
	mentorService *service.MentorService,
) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger) // Chi's logger
	r.Use(chiMiddleware.Recoverer)
	// Generation calls can be slow; the per-call LLM timeout is tighter
	// than this outer bound.
	r.Use(chiMiddleware.Timeout(120 * time.Second))

	// JWT Auth Middleware Setup: verifies a bearer token when present and
	// puts claims in the request context.
	r.Use(jwtauth.Verifier(security.TokenAuth))

	// Public health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// API v1 Routes
	r.Route("/api/v1", func(v1 chi.Router) {
		// Auth routes (public)
		authHandler := handler.NewAuthHandler(authService)
		v1.Group(func(publicAuth chi.Router) {
			authHandler.RegisterRoutes(publicAuth)
		})

		// Problem routes (reads public, seeding admin-only)
		problemHandler := handler.NewProblemHandler(problemService, contentService)
		v1.Route("/problems", problemHandler.RegisterRoutes)

		// Mentor chat routes (authenticated)
		mentorHandler := handler.NewMentorHandler(mentorService)
		v1.Route("/mentor", mentorHandler.RegisterRoutes)
	})

	return r
}
