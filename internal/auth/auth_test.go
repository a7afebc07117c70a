package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"drone-dispatch/internal/domain"
)

func TestIssueAndAuthorize(t *testing.T) {
	a := New("secret", time.Hour)
	token, exp, err := a.IssueToken("alice", domain.RoleEndUser)
	require.NoError(t, err)
	require.True(t, exp.After(time.Now()))

	claims, err := a.Authorize("Bearer "+token, domain.RoleEndUser, domain.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Subject)
	require.False(t, claims.IsAdmin())

	_, err = a.Authorize("Bearer "+token, domain.RoleAdmin)
	require.ErrorIs(t, err, domain.ErrForbidden)
}

func TestAuthorizeRejects(t *testing.T) {
	a := New("secret", time.Hour)
	other := New("other", time.Hour)
	token, _, err := other.IssueToken("bob", domain.RoleAdmin)
	require.NoError(t, err)

	_, err = a.Authorize("Bearer " + token)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = a.Authorize("")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = a.Authorize("Basic abc")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestExpiredToken(t *testing.T) {
	a := New("secret", time.Minute)
	a.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, _, err := a.IssueToken("carol", domain.RoleAdmin)
	require.NoError(t, err)

	a.now = func() time.Time { return time.Now().UTC() }
	_, err = a.ParseToken(token)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestIssueTokenValidatesRole(t *testing.T) {
	a := New("secret", time.Hour)
	_, _, err := a.IssueToken("dave", "pilot")
	require.ErrorIs(t, err, domain.ErrInvalid)
	_, _, err = a.IssueToken(" ", domain.RoleAdmin)
	require.ErrorIs(t, err, domain.ErrInvalid)
}

func TestClaimsContext(t *testing.T) {
	_, ok := ClaimsFromContext(context.Background())
	require.False(t, ok)
	ctx := ContextWithClaims(context.Background(), &Claims{Role: domain.RoleAdmin})
	claims, ok := ClaimsFromContext(ctx)
	require.True(t, ok)
	require.True(t, claims.IsAdmin())
}
