// Command app is the batchgate process entrypoint.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/lerianlabs/batchgate/internal/bootstrap"
	"github.com/lerianlabs/batchgate/pkg/env"
)

func main() {
	env.LoadDotEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, logger, err := bootstrap.InitServers(ctx)

	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			logger.Infof("failed to sync logger: %s", syncErr)
		}
	}()

	if err != nil {
		logger.Fatalf("failed to initialize batchgate: %s", err)
	}

	logger.Info("batchgate starting")

	if err := server.Run(ctx); err != nil {
		logger.Fatalf("batchgate exited with error: %s", err)
	}

	logger.Info("batchgate stopped")
}
