package in

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/lerianlabs/batchgate/pkg/mlog"
)

const headerCorrelationID = "X-Request-Id"

// requestInfo captures the bits of a request/response pair that make up one
// access-log line.
type requestInfo struct {
	method        string
	uri           string
	remoteAddress string
	userAgent     string
	correlationID string
	status        int
	duration      time.Duration
}

func (r requestInfo) clfString() string {
	return strings.Join([]string{
		r.remoteAddress, "-", `"` + r.method, r.uri + `"`,
		strconv.Itoa(r.status), r.duration.String(), r.userAgent,
	}, " ")
}

// WithHTTPLogging logs one CLF-style line per request (skipping /health, the
// same way every other component in this stack keeps its liveness probe out
// of the access log) and attaches a correlation-scoped logger to the
// request's UserContext for downstream handlers to log through.
func WithHTTPLogging(logger mlog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Path() == "/health" {
			return c.Next()
		}

		start := time.Now()
		correlationID := c.Get(headerCorrelationID)

		scoped := logger.WithFields(headerCorrelationID, correlationID)
		c.SetUserContext(mlog.ContextWithLogger(c.UserContext(), scoped))

		err := c.Next()

		info := requestInfo{
			method:        c.Method(),
			uri:           c.OriginalURL(),
			remoteAddress: c.IP(),
			userAgent:     c.Get(fiber.HeaderUserAgent),
			correlationID: correlationID,
			status:        c.Response().StatusCode(),
			duration:      time.Since(start),
		}

		scoped.Infoln(info.clfString())

		return err
	}
}
