// Package apierror defines batchgate's typed error taxonomy and its
// dispatch to HTTP status codes.
package apierror

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// MissingAPIKeyError is returned when a request arrives without a Bearer
// Authorization header.
type MissingAPIKeyError struct{}

func (MissingAPIKeyError) Error() string {
	return "Authorization header with Bearer token is required"
}

// ValidationError is returned when the inbound completion request fails
// shape validation (missing model, no messages, ...).
type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string { return e.Message }

// EntityNotFoundError is returned when a request id has no known state.
type EntityNotFoundError struct {
	RequestID string
}

func (e EntityNotFoundError) Error() string {
	return fmt.Sprintf("no request found with id %s", e.RequestID)
}

// BatchFailedError wraps the upstream's terminal failure reason for a batch
// (failed, expired or cancelled).
type BatchFailedError struct {
	Reason string
}

func (e BatchFailedError) Error() string {
	return fmt.Sprintf("Batch processing failed: %s", e.Reason)
}

// InternalError wraps an unexpected failure (store unreachable, upstream
// response malformed, ...) that should surface as a 500 without leaking
// internals to the caller.
type InternalError struct {
	Err error
}

func (e InternalError) Error() string { return e.Err.Error() }

func (e InternalError) Unwrap() error { return e.Err }

type body struct {
	Error detail `json:"error"`
}

type detail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// WithError maps err to the appropriate fiber response. Unrecognized errors
// are treated as InternalError so a bug never leaks its message to a caller.
func WithError(c *fiber.Ctx, err error) error {
	switch e := err.(type) {
	case MissingAPIKeyError:
		return respond(c, fiber.StatusUnauthorized, e.Error(), "api_error")
	case ValidationError:
		return respond(c, fiber.StatusBadRequest, e.Error(), "invalid_request_error")
	case EntityNotFoundError:
		return respond(c, fiber.StatusNotFound, e.Error(), "api_error")
	case BatchFailedError:
		return respond(c, fiber.StatusInternalServerError, e.Error(), "api_error")
	case InternalError:
		return respond(c, fiber.StatusInternalServerError, "internal server error", "api_error")
	default:
		return respond(c, fiber.StatusInternalServerError, "internal server error", "api_error")
	}
}

func respond(c *fiber.Ctx, status int, message, errType string) error {
	return c.Status(status).JSON(body{Error: detail{Message: message, Type: errType}})
}
