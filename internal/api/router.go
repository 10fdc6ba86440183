package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"

	"reimburse/internal/api/handler"
	"reimburse/internal/app/service"
	"reimburse/internal/common"
	"reimburse/internal/common/security"
)

type RouterOptions struct {
	// MaxCreateBody bounds a whole expense creation request, files included.
	MaxCreateBody int64
	// AccessLog enables chi's request logger.
	AccessLog bool
}

func NewRouter(
	tokens *security.TokenAuthority,
	authService *service.AuthService,
	expenseService *service.ExpenseService,
	opts RouterOptions,
) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	if opts.AccessLog {
		r.Use(chiMiddleware.Logger)
	}
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// Finds "Authorization: Bearer T" and verifies it; middleware.Authenticator
	// decides per route whether a verified token is required.
	r.Use(jwtauth.Verifier(tokens.JWTAuth()))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		common.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		common.RespondWithError(w, r, common.Errorf("no route for %s %s: %w", r.Method, r.URL.Path, common.ErrNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		common.RespondWithError(w, r, common.Errorf("%s is not supported on %s: %w", r.Method, r.URL.Path, common.ErrMethodNotAllowed))
	})

	r.Route("/api/v1", func(v1 chi.Router) {
		authHandler := handler.NewAuthHandler(authService)
		v1.Route("/auth", authHandler.RegisterRoutes)

		expenseHandler := handler.NewExpenseHandler(expenseService, opts.MaxCreateBody)
		v1.Route("/expenses", expenseHandler.RegisterRoutes)
	})

	return r
}
