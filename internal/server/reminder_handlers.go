package server

import (
	"fmt"

	"guildhall/internal/models"
	"guildhall/internal/reminders"

	"github.com/gofiber/fiber/v2"
)

// ReminderPassResponse is the cron reply for one reminder pass.
type ReminderPassResponse struct {
	Success bool                 `json:"success"`
	Results reminders.PassResult `json:"results"`
	Message string               `json:"message"`
}

// RunApplicationReminders handles GET|POST /api/cron/application-reminders
// @Summary Run one reminder pass
// @Description Sends due reminders to applicants with pending applications. Requires the cron secret.
// @Tags cron
// @Produce json
// @Success 200 {object} ReminderPassResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /cron/application-reminders [post]
func (s *Server) RunApplicationReminders(c *fiber.Ctx) error {
	result, err := s.reminders.RunPass(c.UserContext())
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(ReminderPassResponse{
		Success: true,
		Results: result,
		Message: fmt.Sprintf("Sent %d of %d pending applications checked", result.Sent, result.Checked),
	})
}

// SendSingleReminder handles POST /api/admin/send-single-reminder
// @Summary Send one reminder now
// @Tags admin
// @Accept json
// @Produce json
// @Param request body object{applicationId=string} true "Application"
// @Success 200 {object} reminders.SingleResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/send-single-reminder [post]
func (s *Server) SendSingleReminder(c *fiber.Ctx) error {
	var req applicationIDRequest
	if err := parseBody(c, &req); err != nil {
		return models.Respond(c, err)
	}
	id, err := parseUUID(req.ApplicationID, "applicationId")
	if err != nil {
		return models.Respond(c, err)
	}
	result, err := s.reminders.SendSingle(c.UserContext(), callerOf(c), id)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(result)
}
