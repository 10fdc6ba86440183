package middleware

import (
	"context"
	"fmt"
	"net/http"

	log "github.com/Ptt-Alertor/logrus"
	"github.com/go-chi/jwtauth/v5"

	"reimburse/internal/common"
	"reimburse/internal/common/security"
	"reimburse/internal/domain/model"
	"reimburse/internal/domain/policy"
)

type contextKey string

const principalCtxKey contextKey = "principal"

// Authenticator rejects requests whose token jwtauth.Verifier could not
// validate, and stores the caller's Principal in the request context.
func Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			common.RespondWithError(w, r, security.VerificationError(err))
			return
		}
		if token == nil {
			common.RespondWithError(w, r, security.VerificationError(jwtauth.ErrNoTokenFound))
			return
		}

		principal, err := security.PrincipalFromClaims(claims)
		if err != nil {
			common.RespondWithError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

// Allow short-circuits callers whose role may not perform op.
func Allow(op policy.Operation) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				common.RespondWithError(w, r, fmt.Errorf("authorization token required: %w", common.ErrUnauthorized))
				return
			}
			if err := policy.Authorize(p.Role, op); err != nil {
				log.WithFields(log.Fields{"account_id": p.ID, "role": p.Role, "path": r.URL.Path}).Warn("Access denied")
				common.RespondWithError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithPrincipal(ctx context.Context, p model.Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey, p)
}

// PrincipalFromContext returns the caller set by Authenticator.
func PrincipalFromContext(ctx context.Context) (model.Principal, bool) {
	p, ok := ctx.Value(principalCtxKey).(model.Principal)
	return p, ok
}
