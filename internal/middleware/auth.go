// Package middleware provides request-scoped HTTP middleware: logging, metrics,
// tracing, rate limiting and shared-secret checks.
package middleware

import (
	"crypto/subtle"
	"strings"

	"guildhall/internal/models"

	"github.com/gofiber/fiber/v2"
)

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(c *fiber.Ctx) (string, bool) {
	authHeader := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// CronSecretRequired guards scheduler-triggered endpoints. With an empty secret
// every request passes; otherwise the bearer token must match exactly.
func CronSecretRequired(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return c.Next()
		}
		token, ok := BearerToken(c)
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid cron secret"))
		}
		return c.Next()
	}
}
