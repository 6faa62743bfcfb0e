// Package upstream is the Upstream Adapter (spec §4.5): the four operations
// the Dispatcher and Poller use to hand a batch of chat completions to an
// OpenAI-compatible batch API and read its result back.
package upstream

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/lerianlabs/batchgate/pkg/mlog"
)

const (
	defaultBaseURL  = "https://api.openai.com/v1"
	requestTimeout  = 120 * time.Second
	connectTimeout  = 30 * time.Second
	breakerTimeout  = 30 * time.Second
	breakerMaxFails = 5
)

// Client talks to the upstream batch API on behalf of one or more API keys.
// A circuit breaker is kept per credential so one hard-down tenant cannot
// stall dispatch for every other tenant sharing this process.
type Client struct {
	baseURL string
	http    *http.Client
	logger  mlog.Logger

	breakers sync.Map // api key -> *gobreaker.CircuitBreaker
}

// New builds a Client. baseURL defaults to the public OpenAI API when empty,
// matching UPSTREAM_BASE_URL being an optional override (spec §6).
func New(baseURL string, logger mlog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
	}

	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: requestTimeout, Transport: transport},
		logger:  logger,
	}
}

func (c *Client) breakerFor(apiKey string) *gobreaker.CircuitBreaker {
	if b, ok := c.breakers.Load(apiKey); ok {
		return b.(*gobreaker.CircuitBreaker)
	}

	b, _ := c.breakers.LoadOrStore(apiKey, gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "upstream:" + fingerprint(apiKey),
		Timeout: breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerMaxFails
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger := c.logger
			if logger != nil {
				logger.Warnf("circuit breaker %s: %s -> %s", name, from, to)
			}
		},
	}))

	return b.(*gobreaker.CircuitBreaker)
}

// fingerprint avoids ever logging or naming a breaker with the raw key.
func fingerprint(apiKey string) string {
	if len(apiKey) <= 8 {
		return "****"
	}

	return apiKey[:4] + "…" + apiKey[len(apiKey)-4:]
}

func (c *Client) do(ctx context.Context, apiKey string, req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+apiKey)

	result, err := c.breakerFor(apiKey).Execute(func() (any, error) {
		return c.http.Do(req.WithContext(ctx))
	})
	if err != nil {
		return nil, err
	}

	return result.(*http.Response), nil
}
