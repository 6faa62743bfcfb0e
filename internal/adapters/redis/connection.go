// Package redis is the Store Adapter: every piece of authoritative,
// durable state (request records, the queued and processing-batch sets,
// and the per-request completion channel) lives here and nowhere else.
package redis

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/lerianlabs/batchgate/pkg/mlog"
)

// Connection is a lazily-connected singleton over a redis.Client, mirroring
// the connect-on-first-use discipline the rest of this stack uses for every
// external dependency.
type Connection struct {
	URL    string
	Client *redis.Client
	Logger mlog.Logger
}

// Connect parses URL and pings the server once, eagerly, so a
// misconfiguration is caught at startup instead of on the first request.
func (c *Connection) Connect(ctx context.Context) error {
	c.Logger.Info("connecting to redis store...")

	opts, err := redis.ParseURL(c.URL)
	if err != nil {
		return errors.Wrap(err, "parsing redis url")
	}

	client := redis.NewClient(opts)

	if _, err := client.Ping(ctx).Result(); err != nil {
		return errors.Wrap(err, "pinging redis store")
	}

	c.Logger.Info("connected to redis store")
	c.Client = client

	return nil
}

// GetClient returns the underlying client, connecting first if necessary.
func (c *Connection) GetClient(ctx context.Context) (*redis.Client, error) {
	if c.Client == nil {
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
	}

	return c.Client, nil
}
