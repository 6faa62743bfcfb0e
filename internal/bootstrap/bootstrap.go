package bootstrap

import (
	"context"
	"time"

	"github.com/pkg/errors"

	storeadapter "github.com/lerianlabs/batchgate/internal/adapters/redis"
	"github.com/lerianlabs/batchgate/internal/adapters/upstream"
	httpin "github.com/lerianlabs/batchgate/internal/adapters/http/in"
	"github.com/lerianlabs/batchgate/internal/services/dispatcher"
	"github.com/lerianlabs/batchgate/internal/services/engine"
	"github.com/lerianlabs/batchgate/internal/services/poller"
	"github.com/lerianlabs/batchgate/pkg/mlog"
	"github.com/lerianlabs/batchgate/pkg/mzap"
)

// InitServers wires every adapter and service into a runnable Server,
// grounded on components/audit/internal/bootstrap's InitServers.
func InitServers(ctx context.Context) (*Server, mlog.Logger, error) {
	logger := mzap.InitializeLogger()

	cfg, err := LoadConfig()
	if err != nil {
		return nil, logger, errors.Wrap(err, "loading config")
	}

	conn := &storeadapter.Connection{URL: cfg.RedisURL, Logger: logger}
	if err := conn.Connect(ctx); err != nil {
		return nil, logger, errors.Wrap(err, "connecting to redis store")
	}

	store := storeadapter.NewStore(conn, logger)
	eng := engine.New(store, logger)
	upstreamClient := upstream.New(cfg.UpstreamBaseURL, logger)

	handler := httpin.NewHandler(eng, logger)
	router := httpin.NewRouter(handler, logger)

	disp := dispatcher.New(eng, upstreamClient, logger, time.Duration(cfg.BatchWindowSecs)*time.Second)
	poll := poller.New(eng, upstreamClient, logger, time.Duration(cfg.BatchPollIntervalSecs)*time.Second)

	server := &Server{
		app:        router,
		dispatcher: disp,
		poller:     poll,
		cfg:        cfg,
		logger:     logger,
	}

	return server, logger, nil
}
