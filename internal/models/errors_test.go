package models

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{NewUnauthorizedError("x"), http.StatusUnauthorized},
		{NewForbiddenError("x"), http.StatusForbidden},
		{NewValidationError("x"), http.StatusBadRequest},
		{NewNotFoundError("Referral", 1), http.StatusNotFound},
		{NewInvalidTransitionError(ReferralStatusSubmitted, ReferralStatusCompleted), http.StatusConflict},
		{NewConflictError("x"), http.StatusConflict},
		{NewInternalError(errors.New("boom")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestRespondWithError_HidesInternalCause(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return Respond(c, NewInternalError(errors.New("pq: password authentication failed")))
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "Internal server error", body.Error)
	assert.NotContains(t, string(raw), "password")
}

func TestIsCode_Wrapped(t *testing.T) {
	err := errors.Join(errors.New("context"), NewNotFoundError("Application", "x"))
	assert.True(t, IsCode(err, CodeNotFound))
	assert.False(t, IsCode(err, CodeValidation))
}
