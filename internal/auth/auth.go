package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"drone-dispatch/internal/domain"
)

// Claims carries the caller role. Subject is the user id orders are owned by.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) IsAdmin() bool { return c.Role == domain.RoleAdmin }

type Authenticator struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func New(secret string, ttl time.Duration) *Authenticator {
	return &Authenticator{secret: []byte(secret), ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

func (a *Authenticator) IssueToken(name, role string) (string, time.Time, error) {
	if strings.TrimSpace(name) == "" {
		return "", time.Time{}, fmt.Errorf("name is required: %w", domain.ErrInvalid)
	}
	if !domain.ValidateRole(role) {
		return "", time.Time{}, fmt.Errorf("role %q: %w", role, domain.ErrInvalid)
	}
	now := a.now()
	exp := now.Add(a.ttl)
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   name,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	str, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return str, exp, nil
}

// ParseToken verifies the signature and expiry. Every failure wraps domain.ErrUnauthorized.
func (a *Authenticator) ParseToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || !domain.ValidateRole(claims.Role) {
		return nil, fmt.Errorf("%w: invalid token", domain.ErrUnauthorized)
	}
	return claims, nil
}

// Authorize checks a bearer header and, when roles is non-empty, that the role is one of them.
func (a *Authenticator) Authorize(header string, roles ...string) (*Claims, error) {
	token := ExtractBearerToken(header)
	if token == "" {
		return nil, fmt.Errorf("%w: missing bearer token", domain.ErrUnauthorized)
	}
	claims, err := a.ParseToken(token)
	if err != nil {
		return nil, err
	}
	if len(roles) > 0 && !hasRole(claims.Role, roles) {
		return nil, domain.ErrForbidden
	}
	return claims, nil
}

func hasRole(role string, roles []string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func ExtractBearerToken(authHeader string) string {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

type ctxKey struct{}

func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, claims)
}

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	v := ctx.Value(ctxKey{})
	claims, ok := v.(*Claims)
	return claims, ok
}
