// Package in is the Request Handler (spec §4.1): the synchronous HTTP edge
// that accepts a chat-completion request, queues it, and blocks the caller's
// connection open until the State Engine reports a terminal result.
package in

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/lerianlabs/batchgate/internal/domain"
	"github.com/lerianlabs/batchgate/internal/services/engine"
	"github.com/lerianlabs/batchgate/pkg/apierror"
	"github.com/lerianlabs/batchgate/pkg/mlog"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	pollInterval         = 30 * time.Second
)

var errNoResultForCompletedRequest = errors.New("no result found for completed request")

// Handler serves the synchronous completion endpoint.
type Handler struct {
	engine    *engine.Engine
	logger    mlog.Logger
	validator *validator.Validate
}

// NewHandler builds a Handler.
func NewHandler(eng *engine.Engine, logger mlog.Logger) *Handler {
	return &Handler{engine: eng, logger: logger, validator: validator.New()}
}

// Health answers the liveness probe.
func (h *Handler) Health(c *fiber.Ctx) error {
	return c.SendString("OK")
}

// CreateChatCompletion implements POST /v1/chat/completions (spec §4.1).
func (h *Handler) CreateChatCompletion(c *fiber.Ctx) error {
	ctx := context.Background()
	logger := mlog.FromContext(c.UserContext(), h.logger)

	var request domain.CompletionRequest
	if err := c.BodyParser(&request); err != nil {
		return apierror.WithError(c, apierror.ValidationError{Message: "request body is not valid JSON"})
	}

	if err := h.validator.Struct(request); err != nil {
		return apierror.WithError(c, apierror.ValidationError{Message: err.Error()})
	}

	idempotencyKey := c.Get(headerIdempotencyKey)
	if idempotencyKey == "" {
		idempotencyKey = engine.NewIdempotencyKey()
		logger.Infof("no idempotency key provided, generated: %s", idempotencyKey)
	}

	apiKey, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
	if !ok {
		return apierror.WithError(c, apierror.MissingAPIKeyError{})
	}

	logger.Infof("received request with idempotency key: %s", idempotencyKey)

	state, created, err := h.engine.GetOrCreate(ctx, idempotencyKey, request, apiKey)
	if err != nil {
		return apierror.WithError(c, apierror.InternalError{Err: err})
	}

	if !created {
		switch state.Status {
		case domain.StatusComplete:
			logger.Infof("returning cached result for: %s", idempotencyKey)

			if state.Result == nil {
				return apierror.WithError(c, apierror.InternalError{Err: errNoResultForCompletedRequest})
			}

			return c.JSON(state.Result)
		case domain.StatusFailed:
			reason := "unknown error"
			if state.Error != nil {
				reason = *state.Error
			}

			logger.Errorf("request failed previously: %s", reason)

			return apierror.WithError(c, apierror.BatchFailedError{Reason: reason})
		default:
			logger.Infof("request already in progress, waiting: %s", idempotencyKey)
		}
	} else {
		logger.Infof("created new request: %s", idempotencyKey)
	}

	return h.waitForCompletion(ctx, c, idempotencyKey, logger)
}

// waitForCompletion blocks the connection until requestID's state reaches a
// terminal status, following the original's subscribe/poll fallback dance
// (spec §9): a 30s idle window falls back to a direct status read, and a
// pubsub stream that ends unexpectedly is resubscribed without an immediate
// recheck first — carried over verbatim, including the narrow window where a
// completion published between the stream closing and the resubscribe
// taking effect is missed until the next 30s poll.
func (h *Handler) waitForCompletion(ctx context.Context, c *fiber.Ctx, requestID string, logger mlog.Logger) error {
	pubsub, err := h.engine.Subscribe(ctx, requestID)
	if err != nil {
		return apierror.WithError(c, apierror.InternalError{Err: err})
	}
	defer pubsub.Close()

	messages := pubsub.Channel()

	for {
		select {
		case _, ok := <-messages:
			if !ok {
				logger.Warnln("pubsub stream ended unexpectedly, resubscribing")

				pubsub.Close()

				pubsub, err = h.engine.Subscribe(ctx, requestID)
				if err != nil {
					return apierror.WithError(c, apierror.InternalError{Err: err})
				}

				messages = pubsub.Channel()

				continue
			}

			if done, respond := h.checkTerminal(ctx, requestID, logger, "completed"); done {
				return respond(c)
			}
		case <-time.After(pollInterval):
			if done, respond := h.checkTerminal(ctx, requestID, logger, "completed (via poll)"); done {
				return respond(c)
			}
		}
	}
}

// checkTerminal reads the current state and, if it is terminal, returns a
// closure that writes the appropriate response. A non-terminal read asks the
// caller to keep waiting.
func (h *Handler) checkTerminal(ctx context.Context, requestID string, logger mlog.Logger, logSuffix string) (bool, func(*fiber.Ctx) error) {
	state, err := h.engine.Get(ctx, requestID)
	if err != nil {
		return true, func(c *fiber.Ctx) error {
			return apierror.WithError(c, apierror.InternalError{Err: err})
		}
	}

	switch state.Status {
	case domain.StatusComplete:
		logger.Infof("request %s: %s", requestID, logSuffix)

		return true, func(c *fiber.Ctx) error {
			return c.JSON(state.Result)
		}
	case domain.StatusFailed:
		reason := "unknown error"
		if state.Error != nil {
			reason = *state.Error
		}

		logger.Errorf("request %s failed: %s", requestID, reason)

		return true, func(c *fiber.Ctx) error {
			return apierror.WithError(c, apierror.BatchFailedError{Reason: reason})
		}
	default:
		return false, nil
	}
}

func bearerToken(authorization string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(authorization, prefix) {
		return "", false
	}

	return strings.TrimPrefix(authorization, prefix), true
}
