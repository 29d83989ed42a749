package server

import (
	"context"
	"time"

	"guildhall/internal/database"

	"github.com/gofiber/fiber/v2"
)

const (
	probeHealthy     = "healthy"
	probeUnhealthy   = "unhealthy"
	probeUnavailable = "unavailable"
	probeDegraded    = "degraded"

	readinessTimeout = 5 * time.Second
)

// HealthReport is the readiness probe body.
type HealthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
	Time   time.Time         `json:"time"`
}

// LivenessCheck answers as long as the process can serve requests.
// @Summary Liveness probe
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health/live [get]
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "up", "time": time.Now().UTC()})
}

// ReadinessCheck pings the database and Redis. Only the database is required;
// Redis backs caching, tickets, quotas and realtime, so losing it degrades the API.
// @Summary Readiness probe
// @Tags health
// @Produce json
// @Success 200 {object} HealthReport
// @Failure 503 {object} HealthReport
// @Router /health/ready [get]
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
	defer cancel()

	report := HealthReport{
		Status: probeHealthy,
		Checks: map[string]string{
			"database": probe(func() error { return database.Ping(ctx, s.db) }),
			"redis":    probeUnavailable,
		},
		Time: time.Now().UTC(),
	}
	if s.redis != nil {
		report.Checks["redis"] = probe(func() error { return s.redis.Ping(ctx).Err() })
	}

	status := fiber.StatusOK
	switch {
	case report.Checks["database"] != probeHealthy:
		report.Status = probeUnhealthy
		status = fiber.StatusServiceUnavailable
	case report.Checks["redis"] != probeHealthy:
		report.Status = probeDegraded
	}
	return c.Status(status).JSON(report)
}

func probe(ping func() error) string {
	if err := ping(); err != nil {
		return probeUnhealthy
	}
	return probeHealthy
}
