package redis

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/lerianlabs/batchgate/internal/domain"
	"github.com/lerianlabs/batchgate/pkg/mlog"
)

const (
	queuedRequestsKey    = "queued_requests"
	processingBatchesKey = "processing_batches"
)

// ErrNotFound is returned when a request or batch key has no record, distinct
// from a store error, so callers can tell "absent" from "broken".
var ErrNotFound = errors.New("redis: key not found")

// Store is the Store Adapter (spec §4.6): the only place request and batch
// state is read from or written to. Every other service treats it as the
// single source of truth and keeps no authoritative state of its own.
type Store struct {
	conn   *Connection
	logger mlog.Logger
}

// NewStore builds a Store over an already-configured Connection.
func NewStore(conn *Connection, logger mlog.Logger) *Store {
	return &Store{conn: conn, logger: logger}
}

func requestKey(id string) string  { return "request:" + id }
func batchKey(id string) string    { return "batch:" + id }
func batchAPIKeyKey(id string) string { return "batch_api_key:" + id }
func completionChannel(id string) string { return "completion:" + id }

// GetRequest returns the current RequestState for id, or ErrNotFound if it
// has expired or never existed.
func (s *Store) GetRequest(ctx context.Context, id string) (*domain.RequestState, error) {
	client, err := s.conn.GetClient(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := client.Get(ctx, requestKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, errors.Wrapf(err, "getting request %s", id)
	}

	var state domain.RequestState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, errors.Wrapf(err, "decoding request %s", id)
	}

	return &state, nil
}

// CreateRequest persists a brand-new Queued record and adds it to the
// queued set the Dispatcher sweeps on its next tick.
func (s *Store) CreateRequest(ctx context.Context, state domain.RequestState) error {
	client, err := s.conn.GetClient(ctx)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "encoding request")
	}

	if err := client.Set(ctx, requestKey(state.RequestID), raw, domain.TTL).Err(); err != nil {
		return errors.Wrapf(err, "creating request %s", state.RequestID)
	}

	if err := client.SAdd(ctx, queuedRequestsKey, state.RequestID).Err(); err != nil {
		return errors.Wrapf(err, "queuing request %s", state.RequestID)
	}

	return nil
}

// UpdateStatus transitions an existing request to status, optionally
// attaching a batch id. A request that no longer exists (expired) is
// silently ignored, matching the store's TTL-governed lifecycle.
func (s *Store) UpdateStatus(ctx context.Context, id string, status domain.Status, batchID *string) error {
	return s.mutate(ctx, id, func(state *domain.RequestState) {
		state.Status = status
		state.BatchID = batchID
	})
}

// CompleteRequest marks id Complete with result and publishes a wakeup to
// anyone subscribed to its completion channel.
func (s *Store) CompleteRequest(ctx context.Context, id string, result domain.CompletionResponse) error {
	client, err := s.conn.GetClient(ctx)
	if err != nil {
		return err
	}

	published := false

	if err := s.mutate(ctx, id, func(state *domain.RequestState) {
		state.Status = domain.StatusComplete
		state.Result = &result
		published = true
	}); err != nil {
		return err
	}

	if !published {
		return nil
	}

	if err := client.Publish(ctx, completionChannel(id), "complete").Err(); err != nil {
		return errors.Wrapf(err, "publishing completion for %s", id)
	}

	return nil
}

// FailRequest marks id Failed with reason and publishes reason itself to the
// completion channel, same as a successful completion would.
func (s *Store) FailRequest(ctx context.Context, id string, reason string) error {
	client, err := s.conn.GetClient(ctx)
	if err != nil {
		return err
	}

	published := false

	if err := s.mutate(ctx, id, func(state *domain.RequestState) {
		state.Status = domain.StatusFailed
		state.Error = &reason
		published = true
	}); err != nil {
		return err
	}

	if !published {
		return nil
	}

	if err := client.Publish(ctx, completionChannel(id), reason).Err(); err != nil {
		return errors.Wrapf(err, "publishing failure for %s", id)
	}

	return nil
}

// mutate loads id, applies fn if the record still exists, and writes it
// back with a refreshed TTL. A vanished record (past its TTL) is a no-op,
// matching the original's tolerant "if let Some(state) = ..." behavior.
func (s *Store) mutate(ctx context.Context, id string, fn func(state *domain.RequestState)) error {
	client, err := s.conn.GetClient(ctx)
	if err != nil {
		return err
	}

	state, err := s.GetRequest(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	} else if err != nil {
		return err
	}

	fn(state)
	state.UpdatedAt = nowUTC()

	raw, err := json.Marshal(state)
	if err != nil {
		return errors.Wrapf(err, "encoding request %s", id)
	}

	if err := client.Set(ctx, requestKey(id), raw, domain.TTL).Err(); err != nil {
		return errors.Wrapf(err, "saving request %s", id)
	}

	return nil
}

// GetQueuedRequests returns every request id waiting to be batched.
func (s *Store) GetQueuedRequests(ctx context.Context) ([]string, error) {
	client, err := s.conn.GetClient(ctx)
	if err != nil {
		return nil, err
	}

	ids, err := client.SMembers(ctx, queuedRequestsKey).Result()
	if err != nil {
		return nil, errors.Wrap(err, "listing queued requests")
	}

	return ids, nil
}

// MoveToBatching records the batch's member list and owning API key,
// transitions each member to Batching with batchID attached, removes each
// from the queued set, and finally tracks the batch as processing.
//
// The order matters: writing BatchRecord + api key before anything else
// means a crash partway through always leaves an in-progress request
// recoverable, either still in the queued set (dispatcher retries it next
// tick, skipping it once it sees the batch id) or already reachable via
// ProcessingBatches (poller startup sweep picks it up) — never neither.
func (s *Store) MoveToBatching(ctx context.Context, requestIDs []string, batchID, apiKey string) error {
	client, err := s.conn.GetClient(ctx)
	if err != nil {
		return err
	}

	memberJSON, err := json.Marshal(requestIDs)
	if err != nil {
		return errors.Wrap(err, "encoding batch members")
	}

	if err := client.Set(ctx, batchKey(batchID), memberJSON, domain.TTL).Err(); err != nil {
		return errors.Wrapf(err, "recording batch %s members", batchID)
	}

	if err := client.Set(ctx, batchAPIKeyKey(batchID), apiKey, domain.TTL).Err(); err != nil {
		return errors.Wrapf(err, "recording batch %s api key", batchID)
	}

	for _, id := range requestIDs {
		bID := batchID
		if err := s.UpdateStatus(ctx, id, domain.StatusBatching, &bID); err != nil {
			return err
		}

		if err := client.SRem(ctx, queuedRequestsKey, id).Err(); err != nil {
			return errors.Wrapf(err, "removing %s from queued set", id)
		}
	}

	if err := client.SAdd(ctx, processingBatchesKey, batchID).Err(); err != nil {
		return errors.Wrapf(err, "tracking batch %s", batchID)
	}

	return nil
}

// GetBatchAPIKey returns the credential a batch was submitted under, or
// ErrNotFound once it has expired.
func (s *Store) GetBatchAPIKey(ctx context.Context, batchID string) (string, error) {
	client, err := s.conn.GetClient(ctx)
	if err != nil {
		return "", err
	}

	key, err := client.Get(ctx, batchAPIKeyKey(batchID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	} else if err != nil {
		return "", errors.Wrapf(err, "getting api key for batch %s", batchID)
	}

	return key, nil
}

// GetBatchRequests returns the member request ids of batchID, or an empty
// slice if the record has expired.
func (s *Store) GetBatchRequests(ctx context.Context, batchID string) ([]string, error) {
	client, err := s.conn.GetClient(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := client.Get(ctx, batchKey(batchID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "getting members of batch %s", batchID)
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, errors.Wrapf(err, "decoding members of batch %s", batchID)
	}

	return ids, nil
}

// GetProcessingBatches returns every batch id currently awaiting an upstream
// result, used by the Poller's startup sweep.
func (s *Store) GetProcessingBatches(ctx context.Context) ([]string, error) {
	client, err := s.conn.GetClient(ctx)
	if err != nil {
		return nil, err
	}

	ids, err := client.SMembers(ctx, processingBatchesKey).Result()
	if err != nil {
		return nil, errors.Wrap(err, "listing processing batches")
	}

	return ids, nil
}

// RemoveProcessingBatch retires batchID once it has reached a terminal state.
func (s *Store) RemoveProcessingBatch(ctx context.Context, batchID string) error {
	client, err := s.conn.GetClient(ctx)
	if err != nil {
		return err
	}

	if err := client.SRem(ctx, processingBatchesKey, batchID).Err(); err != nil {
		return errors.Wrapf(err, "removing batch %s", batchID)
	}

	return nil
}

// SubscribeToCompletion subscribes to id's completion channel. The caller is
// responsible for closing the returned PubSub.
func (s *Store) SubscribeToCompletion(ctx context.Context, id string) (*redis.PubSub, error) {
	client, err := s.conn.GetClient(ctx)
	if err != nil {
		return nil, err
	}

	pubsub := client.Subscribe(ctx, completionChannel(id))

	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, errors.Wrapf(err, "subscribing to completion of %s", id)
	}

	return pubsub, nil
}
