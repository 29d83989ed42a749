package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"errors"
	"strings"
	"testing"

	"guildhall/internal/config"
	"guildhall/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupMockDB creates a GORM *gorm.DB backed by sqlmock for unit tests.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)
	return gormDB, mock
}

// --- humanizeParam (pure function, no HTTP) ---

func TestHumanizeParam(t *testing.T) {
	tests := []struct {
		param    string
		expected string
	}{
		{"id", "ID"},
		{"memberId", "member ID"},
		{"referralId", "referral ID"},
		{"applicationId", "application ID"},
		{"matchedMemberId", "matched member ID"},
		{"something", "something"},
	}
	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			assert.Equal(t, tt.expected, humanizeParam(tt.param))
		})
	}
}

// --- parsePagination ---

func TestParsePagination_Defaults(t *testing.T) {
	app := fiber.New()
	app.Get("/items", func(c *fiber.Ctx) error {
		p := parsePagination(c, 25)
		return c.JSON(fiber.Map{"limit": p.Limit, "offset": p.Offset})
	})

	req := httptest.NewRequest(http.MethodGet, "/items", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var body map[string]float64
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.Equal(t, float64(25), body["limit"])
	assert.Equal(t, float64(0), body["offset"])
}

func TestParsePagination_Custom(t *testing.T) {
	app := fiber.New()
	app.Get("/items", func(c *fiber.Ctx) error {
		p := parsePagination(c, 25)
		return c.JSON(fiber.Map{"limit": p.Limit, "offset": p.Offset})
	})

	req := httptest.NewRequest(http.MethodGet, "/items?limit=10&offset=30", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var body map[string]float64
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.Equal(t, float64(10), body["limit"])
	assert.Equal(t, float64(30), body["offset"])
}

// --- parseUUIDParam ---

func TestParseUUIDParam(t *testing.T) {
	app := fiber.New()
	app.Get("/items/:memberId", func(c *fiber.Ctx) error {
		id, err := parseUUIDParam(c, "memberId")
		if err != nil {
			return models.Respond(c, err)
		}
		return c.JSON(fiber.Map{"id": id})
	})

	t.Run("valid", func(t *testing.T) {
		id := uuid.New()
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/items/"+id.String(), nil))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, id.String(), body["id"])
	})

	for _, raw := range []string{"42", "not-a-uuid", uuid.Nil.String()} {
		t.Run("rejects "+raw, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/items/"+raw, nil))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			var body models.ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, "Invalid member ID", body.Error)
			assert.Equal(t, models.CodeValidation, body.Code)
		})
	}
}

func TestParseUUID(t *testing.T) {
	id := uuid.New()
	got, err := parseUUID("  "+id.String()+" ", "referralId")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = parseUUID("nope", "referralId")
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeValidation))
	assert.Equal(t, "referralId must be a valid id", err.Error())
}

// --- parseBody ---

func TestParseBody(t *testing.T) {
	app := fiber.New()
	app.Post("/notify", func(c *fiber.Ctx) error {
		var req notifyMemberRequest
		if err := parseBody(c, &req); err != nil {
			return models.Respond(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	post := func(t *testing.T, body string) (*http.Response, models.ErrorResponse) {
		t.Helper()
		req := httptest.NewRequest(http.MethodPost, "/notify", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		var out models.ErrorResponse
		if resp.StatusCode != fiber.StatusNoContent {
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		}
		return resp, out
	}

	t.Run("valid", func(t *testing.T) {
		resp, _ := post(t, `{"referralId":"`+uuid.NewString()+`","memberId":"`+uuid.NewString()+`"}`)
		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	})

	t.Run("malformed json", func(t *testing.T) {
		resp, body := post(t, `{"referralId":`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Invalid request body", body.Error)
	})

	t.Run("missing field", func(t *testing.T) {
		resp, body := post(t, `{"referralId":"`+uuid.NewString()+`"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, body.Error, "memberId is required")
	})

	t.Run("bad uuid", func(t *testing.T) {
		resp, body := post(t, `{"referralId":"abc","memberId":"`+uuid.NewString()+`"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, body.Error, "referralId must be a valid id")
	})
}

// --- callerOf ---

func TestCallerOf_NoGuard(t *testing.T) {
	app := fiber.New()
	app.Get("/who", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"nil": callerOf(c).ID == uuid.Nil})
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/who", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var body map[string]bool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body["nil"])
}

// --- ReadinessCheck ---

func TestReadinessCheck(t *testing.T) {
	readiness := func(t *testing.T, pingErr error) (int, map[string]any) {
		t.Helper()
		gormDB, mock := setupMockDB(t)
		if pingErr != nil {
			mock.ExpectPing().WillReturnError(pingErr)
		} else {
			mock.ExpectPing()
		}
		s := &Server{db: gormDB, config: &config.Config{}}

		app := fiber.New()
		app.Get("/health/ready", s.ReadinessCheck)
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.NoError(t, mock.ExpectationsWereMet())
		return resp.StatusCode, body
	}

	t.Run("database up without redis is degraded", func(t *testing.T) {
		status, body := readiness(t, nil)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "degraded", body["status"])
		checks := body["checks"].(map[string]any)
		assert.Equal(t, "healthy", checks["database"])
		assert.Equal(t, "unavailable", checks["redis"])
	})

	t.Run("database down is unavailable", func(t *testing.T) {
		status, body := readiness(t, errors.New("connection refused"))
		assert.Equal(t, http.StatusServiceUnavailable, status)
		assert.Equal(t, "unhealthy", body["status"])
	})
}
