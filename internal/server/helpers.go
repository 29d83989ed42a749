package server

import (
	"strings"

	"guildhall/internal/auth"
	"guildhall/internal/models"
	"guildhall/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

const (
	maxPaginationLimit = 100
)

// parsePagination extracts limit and offset query parameters with the given default limit.
func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	return Pagination{
		Limit:  limit,
		Offset: offset,
	}
}

// parseUUIDParam extracts a route parameter by name as a UUID.
// The error message is derived from the parameter name (e.g. "id" -> "Invalid ID",
// "memberId" -> "Invalid member ID").
func parseUUIDParam(c *fiber.Ctx, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(c.Params(param)))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, models.NewValidationError("Invalid " + humanizeParam(param))
	}
	return id, nil
}

// parseUUID parses a body field that already passed the required/uuid checks.
func parseUUID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, models.NewValidationError(field + " must be a valid id")
	}
	return id, nil
}

// parseBody decodes the JSON body into req and validates its struct tags.
func parseBody(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return models.NewValidationError("Invalid request body")
	}
	return validation.Struct(req)
}

// callerOf returns the caller resolved by the guard. Routes without a guard get
// the zero Caller, which every authorization check rejects.
func callerOf(c *fiber.Ctx) auth.Caller {
	if caller := auth.CallerFrom(c); caller != nil {
		return *caller
	}
	return auth.Caller{}
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "memberId" -> "member ID", "applicationId" -> "application ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		prefix := param[:len(param)-2]
		return strings.ToLower(strings.Join(splitCamel(prefix), " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			words = append(words, s[start:i])
			start = i
		}
	}
	words = append(words, s[start:])
	return words
}
