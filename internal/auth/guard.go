// Package auth resolves the caller behind a request and gates operations by role.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"guildhall/internal/cache"
	"guildhall/internal/models"
	"guildhall/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Role is the privilege an operation requires.
type Role int

const (
	RoleAuthenticated Role = iota
	RoleAdmin
)

func (r Role) String() string {
	if r == RoleAdmin {
		return "admin"
	}
	return "authenticated"
}

// Caller is the identity behind one request, resolved once and passed explicitly.
type Caller struct {
	ID      uuid.UUID `json:"id"`
	Email   string    `json:"email"`
	IsAdmin bool      `json:"is_admin"`
}

// Authorize checks caller against the required role. It has no side effects.
func Authorize(caller *Caller, required Role) (Caller, error) {
	if caller == nil || caller.ID == uuid.Nil {
		return Caller{}, models.NewUnauthorizedError("Authentication required")
	}
	if required == RoleAdmin && !caller.IsAdmin {
		return Caller{}, models.NewForbiddenError("Admin access required")
	}
	return *caller, nil
}

// RoleLookup loads the role flags for a profile.
type RoleLookup interface {
	GetRoleFlags(ctx context.Context, id uuid.UUID) (*repository.RoleFlags, error)
}

// Config holds the token verification settings of the external auth provider.
type Config struct {
	Secret        string
	Issuer        string
	Audience      string
	LookupTimeout time.Duration
}

// Guard turns bearer tokens into Callers.
type Guard struct {
	cfg      Config
	profiles RoleLookup
	redis    *redis.Client
}

// NewGuard builds a Guard. rdb may be nil, in which case role flags are not cached
// and websocket tickets are unavailable.
func NewGuard(cfg Config, profiles RoleLookup, rdb *redis.Client) *Guard {
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = 10 * time.Second
	}
	return &Guard{cfg: cfg, profiles: profiles, redis: rdb}
}

type providerClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// VerifyToken validates an access token and returns the profile id in its subject.
func (g *Guard) VerifyToken(tokenString string) (uuid.UUID, error) {
	if strings.TrimSpace(tokenString) == "" {
		return uuid.Nil, models.NewUnauthorizedError("Authorization required")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if g.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(g.cfg.Issuer))
	}
	if g.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(g.cfg.Audience))
	}

	claims := &providerClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(g.cfg.Secret), nil
	}, opts...)
	if err != nil || !token.Valid {
		return uuid.Nil, models.NewUnauthorizedError("Invalid or expired token")
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, models.NewUnauthorizedError("Invalid subject claim")
	}
	return id, nil
}

// Authenticate verifies the token and resolves the caller's role flags.
func (g *Guard) Authenticate(ctx context.Context, tokenString string) (Caller, error) {
	id, err := g.VerifyToken(tokenString)
	if err != nil {
		return Caller{}, err
	}
	return g.resolve(ctx, id)
}

func (g *Guard) resolve(ctx context.Context, id uuid.UUID) (Caller, error) {
	var cached Caller
	if err := cache.GetJSON(ctx, g.redis, cache.CallerKey(id), &cached); err == nil && cached.ID == id {
		return cached, nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, g.cfg.LookupTimeout)
	defer cancel()

	flags, err := g.profiles.GetRoleFlags(lookupCtx, id)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return Caller{}, models.NewUnauthorizedError("No profile for this session")
		}
		if errors.Is(lookupCtx.Err(), context.DeadlineExceeded) {
			return Caller{}, models.NewInternalError(fmt.Errorf("profile lookup timed out after %s", g.cfg.LookupTimeout))
		}
		return Caller{}, err
	}

	caller := Caller{ID: flags.ID, Email: flags.Email, IsAdmin: flags.IsAdmin}
	_ = cache.SetJSON(ctx, g.redis, cache.CallerKey(id), caller, cache.CallerTTL)
	return caller, nil
}
