package auth

import (
	"guildhall/internal/middleware"
	"guildhall/internal/models"

	"github.com/gofiber/fiber/v2"
)

const callerLocal = "caller"

// RequireRole authenticates the bearer token and rejects callers lacking role.
// On success the caller is stored in c.Locals for handlers.
func (g *Guard) RequireRole(role Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := middleware.BearerToken(c)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}
		caller, err := g.Authenticate(c.UserContext(), token)
		if err != nil {
			return models.Respond(c, err)
		}
		if _, err := Authorize(&caller, role); err != nil {
			return models.Respond(c, err)
		}
		SetCaller(c, caller)
		return c.Next()
	}
}

// RequireWSTicket authenticates websocket upgrades by their ?ticket= parameter.
func (g *Guard) RequireWSTicket() fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, err := g.RedeemWSTicket(c.UserContext(), c.Query("ticket"))
		if err != nil {
			return models.Respond(c, err)
		}
		SetCaller(c, caller)
		return c.Next()
	}
}

// SetCaller attaches caller to the request.
func SetCaller(c *fiber.Ctx, caller Caller) {
	c.Locals(callerLocal, caller)
	c.Locals("userID", caller.ID.String())
	c.SetUserContext(middleware.WithUserID(c.UserContext(), caller.ID.String()))
}

// CallerFrom returns the caller stored by RequireRole, or nil.
func CallerFrom(c *fiber.Ctx) *Caller {
	caller, ok := c.Locals(callerLocal).(Caller)
	if !ok {
		return nil
	}
	return &caller
}
