package testutil

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// TestJWTSecret is the HS256 secret test guards are configured with.
const TestJWTSecret = "test-secret-that-is-at-least-32-characters"

// SignToken issues a provider-style access token for subject.
func SignToken(t *testing.T, secret string, subject uuid.UUID, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject.String(),
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
		"iss": "guildhall-auth",
		"aud": "authenticated",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}
