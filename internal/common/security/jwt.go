package security

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"

	"reimburse/internal/common"
	"reimburse/internal/domain/model"
)

// TokenAuthority issues and verifies HS256 session tokens. The register/login
// path and the request middleware must share one instance (or at least one
// secret); rotating the secret invalidates every outstanding session.
type TokenAuthority struct {
	auth *jwtauth.JWTAuth
	ttl  time.Duration
	now  func() time.Time
}

func NewTokenAuthority(secret []byte, ttl time.Duration) (*TokenAuthority, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret must not be empty")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("jwt ttl must be positive, got %s", ttl)
	}
	return &TokenAuthority{
		auth: jwtauth.New("HS256", secret, nil),
		ttl:  ttl,
		now:  time.Now,
	}, nil
}

// JWTAuth exposes the underlying verifier for jwtauth.Verifier.
func (a *TokenAuthority) JWTAuth() *jwtauth.JWTAuth {
	return a.auth
}

// Issue signs a token for subjectID carrying role, valid for the configured ttl.
func (a *TokenAuthority) Issue(subjectID string, role model.Role) (string, time.Time, error) {
	now := a.now()
	expiresAt := now.Add(a.ttl)
	claims := jwt.MapClaims{
		"sub":  subjectID,
		"role": string(role),
		"iat":  now.Unix(),
		"exp":  expiresAt.Unix(),
	}
	_, tokenString, err := a.auth.Encode(claims)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}

// Authenticate validates a raw token string and resolves it to the caller.
func (a *TokenAuthority) Authenticate(raw string) (model.Principal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return model.Principal{}, fmt.Errorf("authorization token required: %w", common.ErrUnauthorized)
	}
	token, err := jwtauth.VerifyToken(a.auth, raw)
	if err != nil {
		return model.Principal{}, VerificationError(err)
	}
	claims, err := token.AsMap(context.Background())
	if err != nil {
		return model.Principal{}, fmt.Errorf("invalid token claims: %w", common.ErrUnauthorized)
	}
	return PrincipalFromClaims(claims)
}

// VerificationError turns a jwtauth verification failure into an
// Unauthorized error with a short reason.
func VerificationError(err error) error {
	switch {
	case errors.Is(err, jwtauth.ErrNoTokenFound):
		return fmt.Errorf("authorization token required: %w", common.ErrUnauthorized)
	case errors.Is(err, jwtauth.ErrExpired):
		return fmt.Errorf("token expired: %w", common.ErrUnauthorized)
	default:
		return fmt.Errorf("invalid token: %w", common.ErrUnauthorized)
	}
}

// PrincipalFromClaims extracts subject and role; both must be present and the
// role must be one we know.
func PrincipalFromClaims(claims jwt.MapClaims) (model.Principal, error) {
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return model.Principal{}, fmt.Errorf("sub claim is missing or not a string: %w", common.ErrUnauthorized)
	}
	rawRole, ok := claims["role"].(string)
	if !ok {
		return model.Principal{}, fmt.Errorf("role claim is missing or not a string: %w", common.ErrUnauthorized)
	}
	role, ok := model.ParseRole(rawRole)
	if !ok {
		return model.Principal{}, fmt.Errorf("role claim %q is not recognised: %w", rawRole, common.ErrUnauthorized)
	}
	return model.Principal{ID: sub, Role: role}, nil
}
