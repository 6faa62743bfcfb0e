package in

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/lerianlabs/batchgate/pkg/mlog"
)

// NewRouter builds the fiber app serving the Request Handler's HTTP surface
// (spec §6): GET /health and POST /v1/chat/completions.
func NewRouter(handler *Handler, logger mlog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Use(cors.New())
	app.Use(WithHTTPLogging(logger))

	app.Get("/health", handler.Health)
	app.Post("/v1/chat/completions", handler.CreateChatCompletion)

	return app
}
