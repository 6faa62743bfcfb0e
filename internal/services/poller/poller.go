// Package poller is the Poller (spec §4.4): on every tick it sweeps every
// batch still marked processing, checks its upstream status, and either
// fans completed results back to the waiting requests or marks the whole
// batch failed.
package poller

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lerianlabs/batchgate/internal/adapters/upstream"
	"github.com/lerianlabs/batchgate/internal/domain"
	"github.com/lerianlabs/batchgate/internal/services/engine"
	"github.com/lerianlabs/batchgate/pkg/mlog"
)

// Poller periodically checks every in-flight batch's upstream status.
//
// Unlike the implementation this gateway is descended from, which spawns
// one long-lived watcher task per batch, every batch here is swept by the
// same ticker: the processing-batch set already survives a restart in the
// store, so a single sweep loop recovers crashed-and-restarted batches for
// free instead of needing a separate startup-sweep code path.
type Poller struct {
	engine   *engine.Engine
	upstream *upstream.Client
	logger   mlog.Logger
	interval time.Duration
}

// New builds a Poller that ticks every interval.
func New(eng *engine.Engine, up *upstream.Client, logger mlog.Logger, interval time.Duration) *Poller {
	return &Poller{engine: eng, upstream: up, logger: logger, interval: interval}
}

// Run ticks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Sweep once immediately so batches left processing by a previous
	// process lifetime are picked up without waiting a full interval.
	if err := p.tick(ctx); err != nil {
		p.logger.Errorf("poller startup sweep failed: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.tick(ctx); err != nil {
				p.logger.Errorf("poller tick failed: %v", err)
			}
		}
	}
}

func (p *Poller) tick(ctx context.Context) error {
	batchIDs, err := p.engine.ProcessingBatches(ctx)
	if err != nil {
		return err
	}

	group, gctx := errgroup.WithContext(ctx)

	for _, batchID := range batchIDs {
		batchID := batchID

		group.Go(func() error {
			p.pollBatch(gctx, batchID)
			return nil
		})
	}

	return group.Wait()
}

// pollBatch checks one batch's upstream status. A transient error (upstream
// unreachable, breaker open) is logged and left for the next tick — the
// batch stays in the processing set, exactly as a failed get_batch_status
// call does in the original.
func (p *Poller) pollBatch(ctx context.Context, batchID string) {
	apiKey, err := p.engine.BatchAPIKey(ctx, batchID)
	if err != nil {
		p.logger.Errorf("poller: no api key recorded for batch %s: %v", batchID, err)
		return
	}

	status, err := p.upstream.GetBatchStatus(ctx, apiKey, batchID)
	if err != nil {
		p.logger.Warnf("poller: status check failed for batch %s, retrying next tick: %v", batchID, err)
		return
	}

	if members, err := p.engine.BatchRequests(ctx, batchID); err != nil {
		p.logger.Errorf("poller: failed to list members of batch %s: %v", batchID, err)
	} else {
		p.engine.MarkProcessing(ctx, members, batchID)
	}

	switch {
	case status.Status == domain.BatchStatusCompleted:
		p.finishCompleted(ctx, batchID, apiKey, status)
	case domain.TerminalFailureStatuses[status.Status]:
		p.finishFailed(ctx, batchID, status.Status)
	default:
		// still in flight (validating, in_progress, finalizing, ...)
	}
}

func (p *Poller) finishCompleted(ctx context.Context, batchID, apiKey string, status *domain.BatchResponse) {
	if status.OutputFileID == nil {
		// Preserved from the original implementation: a completed batch
		// with no output file leaves its members Processing forever,
		// until the store's TTL reclaims them. See the matching open
		// question in the project's design notes.
		p.logger.Errorf("poller: batch %s completed with no output file, members stuck Processing", batchID)
		return
	}

	results, err := p.upstream.RetrieveBatchResults(ctx, apiKey, *status.OutputFileID)
	if err != nil {
		p.logger.Errorf("poller: failed to retrieve results for batch %s, retrying next tick: %v", batchID, err)
		return
	}

	members, err := p.engine.BatchRequests(ctx, batchID)
	if err != nil {
		p.logger.Errorf("poller: failed to list members of batch %s: %v", batchID, err)
		return
	}

	for _, id := range members {
		result, ok := results[id]
		if !ok {
			p.logger.Errorf("poller: no result line for request %s in batch %s", id, batchID)
			continue
		}

		if err := p.engine.CompleteRequest(ctx, id, result); err != nil {
			p.logger.Errorf("poller: failed to complete request %s: %v", id, err)
		}
	}

	if err := p.engine.RetireBatch(ctx, batchID); err != nil {
		p.logger.Errorf("poller: failed to retire batch %s: %v", batchID, err)
	}
}

func (p *Poller) finishFailed(ctx context.Context, batchID, status string) {
	members, err := p.engine.BatchRequests(ctx, batchID)
	if err != nil {
		p.logger.Errorf("poller: failed to list members of batch %s: %v", batchID, err)
		return
	}

	reason := "Batch " + status

	for _, id := range members {
		if err := p.engine.FailRequest(ctx, id, reason); err != nil {
			p.logger.Errorf("poller: failed to fail request %s: %v", id, err)
		}
	}

	if err := p.engine.RetireBatch(ctx, batchID); err != nil {
		p.logger.Errorf("poller: failed to retire batch %s: %v", batchID, err)
	}
}
