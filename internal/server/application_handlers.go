package server

import (
	"guildhall/internal/models"
	"guildhall/internal/service"

	"github.com/gofiber/fiber/v2"
)

type applicationIDRequest struct {
	ApplicationID string `json:"applicationId" validate:"required,uuid"`
}

type approveRequest struct {
	ApplicationID string `json:"applicationId" validate:"required,uuid"`
	BadgeLevel    string `json:"badgeLevel" validate:"required"`
}

type rejectRequest struct {
	ApplicationID string `json:"applicationId" validate:"required,uuid"`
	AdminNotes    string `json:"adminNotes" validate:"omitempty,max=5000"`
}

// SubmitApplication handles POST /api/applications
// @Summary Submit a vetting application
// @Tags applications
// @Accept json
// @Produce json
// @Param request body service.SubmitApplicationRequest true "Application"
// @Success 201 {object} models.Application
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /applications [post]
func (s *Server) SubmitApplication(c *fiber.Ctx) error {
	var req service.SubmitApplicationRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	app, err := s.review.Submit(c.UserContext(), callerOf(c), req)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(app)
}

// GetMyApplication handles GET /api/applications/me
// @Summary Get my application
// @Tags applications
// @Produce json
// @Success 200 {object} models.Application
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /applications/me [get]
func (s *Server) GetMyApplication(c *fiber.Ctx) error {
	app, err := s.review.GetMine(c.UserContext(), callerOf(c))
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(app)
}

// ApproveApplication handles POST /api/applications/approve
// @Summary Send the approval notice
// @Tags applications
// @Accept json
// @Produce json
// @Param request body object{applicationId=string,badgeLevel=string} true "Approval"
// @Success 200 {object} service.NotificationReport
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /applications/approve [post]
func (s *Server) ApproveApplication(c *fiber.Ctx) error {
	var req approveRequest
	if err := parseBody(c, &req); err != nil {
		return models.Respond(c, err)
	}
	id, err := parseUUID(req.ApplicationID, "applicationId")
	if err != nil {
		return models.Respond(c, err)
	}
	report, err := s.review.Approve(c.UserContext(), callerOf(c), id, req.BadgeLevel)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(report)
}

// RejectApplication handles POST /api/applications/reject
// @Summary Reject an application
// @Tags applications
// @Accept json
// @Produce json
// @Param request body object{applicationId=string,adminNotes=string} true "Rejection"
// @Success 200 {object} service.NotificationReport
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /applications/reject [post]
func (s *Server) RejectApplication(c *fiber.Ctx) error {
	var req rejectRequest
	if err := parseBody(c, &req); err != nil {
		return models.Respond(c, err)
	}
	id, err := parseUUID(req.ApplicationID, "applicationId")
	if err != nil {
		return models.Respond(c, err)
	}
	report, err := s.review.Reject(c.UserContext(), callerOf(c), id, req.AdminNotes)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(report)
}

// NotifyApplicationSubmission handles POST /api/applications/notify-submission
// @Summary Acknowledge a submitted application
// @Tags applications
// @Accept json
// @Produce json
// @Param request body object{applicationId=string} true "Application"
// @Success 200 {object} service.SubmissionReport
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /applications/notify-submission [post]
func (s *Server) NotifyApplicationSubmission(c *fiber.Ctx) error {
	var req applicationIDRequest
	if err := parseBody(c, &req); err != nil {
		return models.Respond(c, err)
	}
	id, err := parseUUID(req.ApplicationID, "applicationId")
	if err != nil {
		return models.Respond(c, err)
	}
	report, err := s.review.NotifySubmission(c.UserContext(), callerOf(c), id)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(report)
}
