package apierror_test

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lerianlabs/batchgate/pkg/apierror"
)

func do(t *testing.T, err error) (int, map[string]any) {
	t.Helper()

	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return apierror.WithError(c, err)
	})

	resp, testErr := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil), -1)
	require.NoError(t, testErr)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	return resp.StatusCode, out
}

func TestWithError_MissingAPIKeyIsUnauthorized(t *testing.T) {
	status, body := do(t, apierror.MissingAPIKeyError{})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "Authorization header with Bearer token is required", body["error"].(map[string]any)["message"])
}

func TestWithError_ValidationErrorIsBadRequest(t *testing.T) {
	status, body := do(t, apierror.ValidationError{Message: "model is required"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "invalid_request_error", body["error"].(map[string]any)["type"])
}

func TestWithError_EntityNotFoundIsNotFound(t *testing.T) {
	status, _ := do(t, apierror.EntityNotFoundError{RequestID: "req-1"})
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestWithError_BatchFailedIsInternalServerError(t *testing.T) {
	status, body := do(t, apierror.BatchFailedError{Reason: "expired"})
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "Batch processing failed: expired", body["error"].(map[string]any)["message"])
}

func TestWithError_UnknownErrorIsInternalServerErrorWithoutLeaking(t *testing.T) {
	status, body := do(t, errors.New("redis: connection refused at 10.0.0.5:6379"))
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "internal server error", body["error"].(map[string]any)["message"])
}
