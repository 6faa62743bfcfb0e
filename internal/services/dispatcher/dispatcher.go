// Package dispatcher is the Dispatcher (spec §4.3): on every tick it drains
// the queued-request set, groups requests by the API key they were
// submitted with, and uploads one batch per credential to the upstream.
package dispatcher

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lerianlabs/batchgate/internal/adapters/upstream"
	"github.com/lerianlabs/batchgate/internal/domain"
	"github.com/lerianlabs/batchgate/internal/services/engine"
	"github.com/lerianlabs/batchgate/pkg/mlog"
)

// Dispatcher periodically coalesces queued requests into upstream batches.
type Dispatcher struct {
	engine   *engine.Engine
	upstream *upstream.Client
	logger   mlog.Logger
	interval time.Duration
}

// New builds a Dispatcher that ticks every window.
func New(eng *engine.Engine, up *upstream.Client, logger mlog.Logger, window time.Duration) *Dispatcher {
	return &Dispatcher{engine: eng, upstream: up, logger: logger, interval: window}
}

// Run ticks until ctx is cancelled. A failed tick is logged and never stops
// the loop: the next tick is the only retry this gateway ever performs.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.tick(ctx); err != nil {
				d.logger.Errorf("dispatcher tick failed: %v", err)
			}
		}
	}
}

func (d *Dispatcher) tick(ctx context.Context) error {
	ids, err := d.engine.QueuedRequests(ctx)
	if err != nil {
		return err
	}

	if len(ids) == 0 {
		return nil
	}

	partitions, err := d.partitionByAPIKey(ctx, ids)
	if err != nil {
		return err
	}

	group, gctx := errgroup.WithContext(ctx)

	for apiKey, partition := range partitions {
		apiKey, partition := apiKey, partition

		group.Go(func() error {
			d.dispatchPartition(gctx, apiKey, partition)
			return nil
		})
	}

	return group.Wait()
}

type partitionMember struct {
	id      string
	request domain.CompletionRequest
}

// partitionByAPIKey groups queued request ids by the credential each was
// submitted with, matching the Rust original's HashMap<api_key, Vec<id>>
// grouping in dispatch_batch.
func (d *Dispatcher) partitionByAPIKey(ctx context.Context, ids []string) (map[string][]partitionMember, error) {
	partitions := map[string][]partitionMember{}

	for _, id := range ids {
		state, err := d.engine.Get(ctx, id)
		if err != nil {
			d.logger.Warnf("dispatcher: skipping vanished request %s: %v", id, err)
			continue
		}

		if state.Status != domain.StatusQueued {
			// Another dispatcher tick (or a partial MoveToBatching crash)
			// already advanced this request past Queued; re-dispatching it
			// here would submit a duplicate batch.
			continue
		}

		partitions[state.APIKey] = append(partitions[state.APIKey], partitionMember{id: id, request: state.Request})
	}

	return partitions, nil
}

// dispatchPartition uploads and submits one batch for a single credential.
// Every failure is tolerated by leaving the members Queued for the next
// tick to retry, mirroring dispatch_batch_for_key's error handling: this
// gateway never marks a request Failed just because an upload attempt
// didn't land.
func (d *Dispatcher) dispatchPartition(ctx context.Context, apiKey string, members []partitionMember) {
	ids := make([]string, len(members))
	requests := make([]domain.CompletionRequest, len(members))

	for i, m := range members {
		ids[i] = m.id
		requests[i] = m.request
	}

	uploaded, err := d.upstream.UploadBatchFile(ctx, apiKey, ids, requests)
	if err != nil {
		d.logger.Errorf("dispatcher: upload failed for %d requests, left queued: %v", len(ids), err)
		return
	}

	batch, err := d.upstream.CreateBatch(ctx, apiKey, uploaded.ID)
	if err != nil {
		d.logger.Errorf("dispatcher: create batch failed for file %s, left queued: %v", uploaded.ID, err)
		return
	}

	if err := d.engine.MoveToBatching(ctx, ids, batch.ID, apiKey); err != nil {
		d.logger.Errorf("dispatcher: failed to record batch %s membership: %v", batch.ID, err)
	}
}
