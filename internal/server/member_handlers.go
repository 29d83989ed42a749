package server

import (
	"errors"
	"log/slog"

	"guildhall/internal/cache"
	"guildhall/internal/middleware"
	"guildhall/internal/models"

	"github.com/gofiber/fiber/v2"
)

const defaultMembersPageSize = 24

// GetPublicMembers handles GET /api/members
// @Summary Public member directory
// @Description Verified members who opted into the directory. Contact details are omitted.
// @Tags members
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} models.PublicProfile
// @Router /members [get]
func (s *Server) GetPublicMembers(c *fiber.Ctx) error {
	ctx := c.UserContext()
	page := parsePagination(c, defaultMembersPageSize)

	// Only the landing page is cached.
	cacheable := page.Limit == defaultMembersPageSize && page.Offset == 0
	if cacheable {
		var cached []models.PublicProfile
		err := cache.GetJSON(ctx, s.redis, cache.PublicMembersKey, &cached)
		if err == nil {
			return c.JSON(cached)
		}
		if !errors.Is(err, cache.ErrMiss) {
			middleware.Logger.WarnContext(ctx, "member cache read failed", slog.String("error", err.Error()))
		}
	}

	profiles, err := s.profileRepo.ListPublicMembers(ctx, page.Limit, page.Offset)
	if err != nil {
		return models.Respond(c, err)
	}

	out := make([]models.PublicProfile, 0, len(profiles))
	for i := range profiles {
		out = append(out, profiles[i].Public())
	}

	if cacheable {
		if err := cache.SetJSON(ctx, s.redis, cache.PublicMembersKey, out, cache.PublicMembersTTL); err != nil {
			middleware.Logger.WarnContext(ctx, "member cache write failed", slog.String("error", err.Error()))
		}
	}
	return c.JSON(out)
}
