package bootstrap

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/lerianlabs/batchgate/internal/services/dispatcher"
	"github.com/lerianlabs/batchgate/internal/services/poller"
	"github.com/lerianlabs/batchgate/pkg/mlog"
)

// Server owns the running process: the fiber app plus the Dispatcher and
// Poller background loops, grounded on components/audit's bootstrap.Server.
type Server struct {
	app        *fiber.App
	dispatcher *dispatcher.Dispatcher
	poller     *poller.Poller
	cfg        Config
	logger     mlog.Logger
}

// Run starts the Dispatcher and Poller loops and blocks serving HTTP until
// ctx is cancelled, then gives in-flight requests a grace period to finish.
func (s *Server) Run(ctx context.Context) error {
	workers, workerCtx := errgroup.WithContext(ctx)

	workers.Go(func() error {
		s.dispatcher.Run(workerCtx)
		return nil
	})

	workers.Go(func() error {
		s.poller.Run(workerCtx)
		return nil
	})

	listener, err := newKeepaliveListener(s.cfg.ServerHost, s.cfg.ServerPort, time.Duration(s.cfg.TCPKeepaliveSecs)*time.Second)
	if err != nil {
		return errors.Wrap(err, "binding listener")
	}

	serveErr := make(chan error, 1)

	go func() {
		serveErr <- s.app.Listener(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
			s.logger.Errorf("error shutting down http server: %v", err)
		}

		return workers.Wait()
	case err := <-serveErr:
		if err != nil {
			return errors.Wrap(err, "failed to run the server")
		}

		return nil
	}
}
