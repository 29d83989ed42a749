package server

import (
	"log/slog"
	"strings"

	"guildhall/internal/middleware"
	"guildhall/internal/models"
	"guildhall/internal/repository"
	"guildhall/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type referralIDRequest struct {
	ReferralID string `json:"referralId" validate:"required,uuid"`
}

type notifyMemberRequest struct {
	ReferralID string `json:"referralId" validate:"required,uuid"`
	MemberID   string `json:"memberId" validate:"required,uuid"`
}

type notifyStatusRequest struct {
	ReferralID string `json:"referralId" validate:"required,uuid"`
	NewStatus  string `json:"newStatus" validate:"required"`
}

type transitionBody struct {
	Status     string  `json:"status" validate:"required,referral_status"`
	MatchedTo  *string `json:"matchedTo" validate:"omitempty,uuid"`
	FinalValue *string `json:"finalValue" validate:"omitempty,max=80"`
	AdminNotes *string `json:"adminNotes" validate:"omitempty,max=5000"`
}

// TransitionResponse pairs the updated referral with the notification outcome.
type TransitionResponse struct {
	Referral     *models.Referral            `json:"referral"`
	From         models.ReferralStatus       `json:"from"`
	To           models.ReferralStatus       `json:"to"`
	Notification *service.NotificationReport `json:"notification"`
}

// parseReferralID decodes a {referralId} body.
func parseReferralID(c *fiber.Ctx) (uuid.UUID, error) {
	var req referralIDRequest
	if err := parseBody(c, &req); err != nil {
		return uuid.Nil, err
	}
	return parseUUID(req.ReferralID, "referralId")
}

// CreateReferral handles POST /api/referrals
// @Summary Submit a referral
// @Description Submit a client lead for matching. The referral starts in SUBMITTED.
// @Tags referrals
// @Accept json
// @Produce json
// @Param request body service.CreateReferralRequest true "Referral"
// @Success 201 {object} models.Referral
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /referrals [post]
func (s *Server) CreateReferral(c *fiber.Ctx) error {
	var req service.CreateReferralRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	referral, err := s.referrals.Create(c.UserContext(), callerOf(c), req)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(referral)
}

// GetMyReferrals handles GET /api/referrals/me
// @Summary List my referrals
// @Description Referrals the caller submitted and referrals matched to the caller.
// @Tags referrals
// @Produce json
// @Success 200 {object} service.MyReferrals
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /referrals/me [get]
func (s *Server) GetMyReferrals(c *fiber.Ctx) error {
	mine, err := s.referrals.ListMine(c.UserContext(), callerOf(c))
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(mine)
}

// GetReferral handles GET /api/referrals/:id
// @Summary Get referral
// @Description Visible to the submitter, the matched member and admins.
// @Tags referrals
// @Produce json
// @Param id path string true "Referral ID"
// @Success 200 {object} models.Referral
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /referrals/{id} [get]
func (s *Server) GetReferral(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return models.Respond(c, err)
	}
	referral, err := s.referrals.Get(c.UserContext(), callerOf(c), id)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(referral)
}

// NotifyReferralSubmitter handles POST /api/referrals/notify-submitter
// @Summary Confirm a referral to its submitter
// @Tags referrals
// @Accept json
// @Produce json
// @Param request body object{referralId=string} true "Referral"
// @Success 200 {object} service.NotificationReport
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /referrals/notify-submitter [post]
func (s *Server) NotifyReferralSubmitter(c *fiber.Ctx) error {
	id, err := parseReferralID(c)
	if err != nil {
		return models.Respond(c, err)
	}
	report, err := s.referralNotifier.NotifySubmitter(c.UserContext(), callerOf(c), id)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(report)
}

// NotifyReferralAdmin handles POST /api/referrals/notify-admin
// @Summary Alert admins about a new referral
// @Tags referrals
// @Accept json
// @Produce json
// @Param request body object{referralId=string} true "Referral"
// @Success 200 {object} service.NotificationReport
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /referrals/notify-admin [post]
func (s *Server) NotifyReferralAdmin(c *fiber.Ctx) error {
	id, err := parseReferralID(c)
	if err != nil {
		return models.Respond(c, err)
	}
	report, err := s.referralNotifier.NotifyAdmin(c.UserContext(), callerOf(c), id)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(report)
}

// NotifyReferralMember handles POST /api/referrals/notify-member
// @Summary Send client contact details to the matched member
// @Tags referrals
// @Accept json
// @Produce json
// @Param request body object{referralId=string,memberId=string} true "Match"
// @Success 200 {object} service.NotificationReport
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /referrals/notify-member [post]
func (s *Server) NotifyReferralMember(c *fiber.Ctx) error {
	var req notifyMemberRequest
	if err := parseBody(c, &req); err != nil {
		return models.Respond(c, err)
	}
	referralID, err := parseUUID(req.ReferralID, "referralId")
	if err != nil {
		return models.Respond(c, err)
	}
	memberID, err := parseUUID(req.MemberID, "memberId")
	if err != nil {
		return models.Respond(c, err)
	}

	report, err := s.referralNotifier.NotifyMatchedMember(c.UserContext(), callerOf(c), referralID, memberID)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(report)
}

// NotifyReferralStatusUpdate handles POST /api/referrals/notify-status-update
// @Summary Tell members about a referral status change
// @Description REVIEWED notifies the submitter; ENGAGED notifies the submitter and the matched member.
// @Tags referrals
// @Accept json
// @Produce json
// @Param request body object{referralId=string,newStatus=string} true "Status"
// @Success 200 {object} service.NotificationReport
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /referrals/notify-status-update [post]
func (s *Server) NotifyReferralStatusUpdate(c *fiber.Ctx) error {
	var req notifyStatusRequest
	if err := parseBody(c, &req); err != nil {
		return models.Respond(c, err)
	}
	id, err := parseUUID(req.ReferralID, "referralId")
	if err != nil {
		return models.Respond(c, err)
	}

	report, err := s.referralNotifier.NotifyStatusUpdate(c.UserContext(), callerOf(c), id, req.NewStatus)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(report)
}

// NotifyReferralCompleted handles POST /api/referrals/notify-completed
// @Summary Send completion notices
// @Tags referrals
// @Accept json
// @Produce json
// @Param request body object{referralId=string} true "Referral"
// @Success 200 {object} service.NotificationReport
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /referrals/notify-completed [post]
func (s *Server) NotifyReferralCompleted(c *fiber.Ctx) error {
	id, err := parseReferralID(c)
	if err != nil {
		return models.Respond(c, err)
	}
	report, err := s.referralNotifier.NotifyCompleted(c.UserContext(), callerOf(c), id)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(report)
}

// AdminListReferrals handles GET /api/admin/referrals
// @Summary List referrals
// @Tags admin
// @Produce json
// @Param status query string false "Filter by status"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} models.Referral
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/referrals [get]
func (s *Server) AdminListReferrals(c *fiber.Ctx) error {
	page := parsePagination(c, 50)
	filter := repository.ReferralFilter{Limit: page.Limit, Offset: page.Offset}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status, err := models.ParseReferralStatus(raw)
		if err != nil {
			return models.Respond(c, err)
		}
		filter.Status = &status
	}

	referrals, err := s.referrals.ListAll(c.UserContext(), callerOf(c), filter)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(referrals)
}

// AdminTransitionReferral handles POST /api/admin/referrals/:id/transition
// @Summary Advance a referral
// @Description Moves the referral one stage forward and sends the notifications for the new stage.
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Referral ID"
// @Param request body object{status=string,matchedTo=string,finalValue=string,adminNotes=string} true "Transition"
// @Success 200 {object} TransitionResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/referrals/{id}/transition [post]
func (s *Server) AdminTransitionReferral(c *fiber.Ctx) error {
	ctx := c.UserContext()
	caller := callerOf(c)

	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return models.Respond(c, err)
	}
	var body transitionBody
	if err := parseBody(c, &body); err != nil {
		return models.Respond(c, err)
	}
	target, err := models.ParseReferralStatus(body.Status)
	if err != nil {
		return models.Respond(c, err)
	}

	req := service.TransitionRequest{
		Target:     target,
		FinalValue: body.FinalValue,
		AdminNotes: body.AdminNotes,
	}
	if body.MatchedTo != nil {
		matchedTo, err := parseUUID(*body.MatchedTo, "matchedTo")
		if err != nil {
			return models.Respond(c, err)
		}
		req.MatchedTo = &matchedTo
	}

	result, err := s.lifecycle.Transition(ctx, caller, id, req)
	if err != nil {
		return models.Respond(c, err)
	}

	// The transition is committed; a notification failure is reported, not returned.
	report, err := s.referralNotifier.DispatchForTransition(ctx, caller, result)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "transition notifications failed",
			slog.String("referral_id", id.String()), slog.String("error", err.Error()))
		report = &service.NotificationReport{Success: false, Message: "Notifications could not be sent"}
	}

	return c.JSON(TransitionResponse{
		Referral:     result.Referral,
		From:         result.From,
		To:           result.To,
		Notification: report,
	})
}
