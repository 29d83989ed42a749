package server

import (
	"encoding/json"
	"log/slog"

	"guildhall/internal/auth"
	"guildhall/internal/middleware"
	"guildhall/internal/models"
	"guildhall/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// IssueWSTicket handles POST /api/ws/ticket
// @Summary Issue a websocket ticket
// @Description Returns a single-use ticket for GET /api/ws?ticket=...
// @Tags realtime
// @Produce json
// @Success 200 {object} object{ticket=string}
// @Failure 401 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /ws/ticket [post]
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	ticket, err := s.guard.IssueWSTicket(c.UserContext(), callerOf(c))
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{"ticket": ticket})
}

// WebsocketHandler streams referral and application events to the connected member.
func (s *Server) WebsocketHandler() fiber.Handler {
	upgrade := websocket.New(func(conn *websocket.Conn) {
		caller, ok := conn.Locals("caller").(auth.Caller)
		if !ok {
			middleware.Logger.Warn("websocket: unauthenticated connection attempt")
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}

		if s.hub == nil {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"realtime unavailable"}`))
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(caller.ID, conn)
		if err != nil {
			middleware.Logger.Warn("websocket: register failed",
				slog.String("user_id", caller.ID.String()), slog.String("error", err.Error()))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		middleware.Logger.Info("websocket: member connected", slog.String("user_id", caller.ID.String()))

		welcome, _ := json.Marshal(notifications.NewEvent("connected", map[string]any{
			"user_id": caller.ID.String(),
		}))
		client.TrySend(welcome)

		go client.WritePump()
		client.ReadPump()
	})

	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return upgrade(c)
	}
}
