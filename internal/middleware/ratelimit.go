package middleware

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"guildhall/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// CodeRateLimited is the error code on 429 responses.
const CodeRateLimited = "RATE_LIMITED"

// Quota is a fixed-window request budget for one named resource.
type Quota struct {
	Name   string
	Limit  int
	Window time.Duration
	// FailClosed answers 503 when Redis cannot be reached. The default lets the request through.
	FailClosed bool
}

// Usage is the outcome of counting one request against a Quota.
type Usage struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

type counter func(ctx context.Context, rdb *redis.Client, q Quota, subject string) (Usage, error)

// quotasEnforced is false in local and test environments.
func quotasEnforced() bool {
	switch os.Getenv("APP_ENV") {
	case "", "test", "development":
		return false
	}
	return true
}

// Consume counts one request for subject against q.
func Consume(ctx context.Context, rdb *redis.Client, q Quota, subject string) (Usage, error) {
	if !quotasEnforced() {
		return Usage{Allowed: true, Remaining: q.Limit, ResetIn: q.Window}, nil
	}
	return consume(ctx, rdb, q, subject)
}

// consume increments a counter bucketed by window start. INCR and EXPIRE go
// out in one MULTI so a key never lives without a TTL.
func consume(ctx context.Context, rdb *redis.Client, q Quota, subject string) (Usage, error) {
	if rdb == nil {
		return Usage{}, fmt.Errorf("quota %s: redis unavailable", q.Name)
	}

	now := time.Now()
	bucket := now.Truncate(q.Window)
	key := fmt.Sprintf("quota:%s:%s:%d", q.Name, subject, bucket.Unix())

	var incr *redis.IntCmd
	_, err := rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		p.Expire(ctx, key, q.Window)
		return nil
	})
	if err != nil {
		return Usage{}, err
	}

	used := int(incr.Val())
	remaining := q.Limit - used
	if remaining < 0 {
		remaining = 0
	}
	return Usage{
		Allowed:   used <= q.Limit,
		Remaining: remaining,
		ResetIn:   bucket.Add(q.Window).Sub(now),
	}, nil
}

// RateLimit enforces q per caller, falling back to the client IP for anonymous requests.
func RateLimit(rdb *redis.Client, q Quota) fiber.Handler {
	return quotaHandler(rdb, q, Consume)
}

func quotaHandler(rdb *redis.Client, q Quota, count counter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		subject := "ip:" + c.IP()
		if uid, ok := c.Locals("userID").(string); ok && uid != "" {
			subject = "user:" + uid
		}

		usage, err := count(c.UserContext(), rdb, q, subject)
		if err != nil {
			Logger.WarnContext(c.UserContext(), "quota store unavailable",
				"quota", q.Name, "fail_closed", q.FailClosed, "error", err.Error())
			if q.FailClosed {
				return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
					Error: "Service temporarily unavailable",
					Code:  CodeRateLimited,
				})
			}
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(q.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(usage.Remaining))
		if !usage.Allowed {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(usage.ResetIn.Round(time.Second).Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please try again later",
				Code:  CodeRateLimited,
			})
		}
		return c.Next()
	}
}
