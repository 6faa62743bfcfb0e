// Package engine is the State Engine (spec §4.2): the lifecycle operations
// every other service calls instead of touching the Store Adapter directly,
// so the Queued -> Batching -> Processing -> {Complete, Failed} invariant is
// enforced in exactly one place.
package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	storeadapter "github.com/lerianlabs/batchgate/internal/adapters/redis"
	"github.com/lerianlabs/batchgate/internal/domain"
	"github.com/lerianlabs/batchgate/pkg/mlog"
)

// Engine is the State Engine.
type Engine struct {
	store  *storeadapter.Store
	logger mlog.Logger
}

// New builds an Engine over store.
func New(store *storeadapter.Store, logger mlog.Logger) *Engine {
	return &Engine{store: store, logger: logger}
}

// Get returns the current state of id. storeadapter.ErrNotFound is returned
// verbatim when id is unknown or has expired.
func (e *Engine) Get(ctx context.Context, id string) (*domain.RequestState, error) {
	return e.store.GetRequest(ctx, id)
}

// GetOrCreate implements the request handler's idempotency-key dance
// (spec §4.1 steps 3-4): if id already has a record it is returned
// unmodified so the caller can branch on its status; otherwise a fresh
// Queued record is created and returned.
func (e *Engine) GetOrCreate(ctx context.Context, id string, request domain.CompletionRequest, apiKey string) (state *domain.RequestState, created bool, err error) {
	existing, err := e.store.GetRequest(ctx, id)
	if err == nil {
		return existing, false, nil
	}

	if err != storeadapter.ErrNotFound {
		return nil, false, err
	}

	fresh := domain.NewRequestState(id, request, apiKey)

	if err := e.store.CreateRequest(ctx, fresh); err != nil {
		return nil, false, err
	}

	return &fresh, true, nil
}

// NewIdempotencyKey generates a request id for callers that omit one.
func NewIdempotencyKey() string {
	return uuid.New().String()
}

// CompleteRequest marks id Complete with result and wakes any waiter.
func (e *Engine) CompleteRequest(ctx context.Context, id string, result domain.CompletionResponse) error {
	return e.store.CompleteRequest(ctx, id, result)
}

// FailRequest marks id Failed with reason and wakes any waiter.
func (e *Engine) FailRequest(ctx context.Context, id string, reason string) error {
	return e.store.FailRequest(ctx, id, reason)
}

// QueuedRequests returns every request id waiting to be batched.
func (e *Engine) QueuedRequests(ctx context.Context) ([]string, error) {
	return e.store.GetQueuedRequests(ctx)
}

// MoveToBatching transitions requestIDs from Queued to Batching under
// batchID, submitted with apiKey.
func (e *Engine) MoveToBatching(ctx context.Context, requestIDs []string, batchID, apiKey string) error {
	return e.store.MoveToBatching(ctx, requestIDs, batchID, apiKey)
}

// MarkProcessing transitions a batch's members from Batching to Processing.
// Called on every successful status check, not just the first, since the
// transition is idempotent and cheaper than tracking whether it already ran.
func (e *Engine) MarkProcessing(ctx context.Context, requestIDs []string, batchID string) {
	bID := batchID

	for _, id := range requestIDs {
		state, err := e.store.GetRequest(ctx, id)
		if err != nil {
			if err != storeadapter.ErrNotFound {
				e.logger.Errorf("engine: failed to read %s before marking processing: %v", id, err)
			}

			continue
		}

		if state.Status != domain.StatusBatching {
			continue
		}

		if err := e.store.UpdateStatus(ctx, id, domain.StatusProcessing, &bID); err != nil {
			e.logger.Errorf("engine: failed to mark %s processing: %v", id, err)
		}
	}
}

// BatchAPIKey returns the credential batchID was submitted under.
func (e *Engine) BatchAPIKey(ctx context.Context, batchID string) (string, error) {
	return e.store.GetBatchAPIKey(ctx, batchID)
}

// BatchRequests returns the member request ids of batchID.
func (e *Engine) BatchRequests(ctx context.Context, batchID string) ([]string, error) {
	return e.store.GetBatchRequests(ctx, batchID)
}

// ProcessingBatches returns every batch id still awaiting an upstream result.
func (e *Engine) ProcessingBatches(ctx context.Context) ([]string, error) {
	return e.store.GetProcessingBatches(ctx)
}

// RetireBatch removes batchID from the processing set once it has reached a
// terminal state.
func (e *Engine) RetireBatch(ctx context.Context, batchID string) error {
	return e.store.RemoveProcessingBatch(ctx, batchID)
}

// Subscribe subscribes to id's completion channel.
func (e *Engine) Subscribe(ctx context.Context, id string) (*redis.PubSub, error) {
	return e.store.SubscribeToCompletion(ctx, id)
}
