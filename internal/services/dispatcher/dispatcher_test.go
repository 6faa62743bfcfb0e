package dispatcher_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storeadapter "github.com/lerianlabs/batchgate/internal/adapters/redis"
	"github.com/lerianlabs/batchgate/internal/adapters/upstream"
	"github.com/lerianlabs/batchgate/internal/domain"
	"github.com/lerianlabs/batchgate/internal/services/dispatcher"
	"github.com/lerianlabs/batchgate/internal/services/engine"
	"github.com/lerianlabs/batchgate/pkg/mlog"
)

type testLogger struct{}

func (testLogger) Info(args ...any)                   {}
func (testLogger) Infof(format string, args ...any)    {}
func (testLogger) Infoln(args ...any)                  {}
func (testLogger) Error(args ...any)                   {}
func (testLogger) Errorf(format string, args ...any)   {}
func (testLogger) Errorln(args ...any)                 {}
func (testLogger) Warn(args ...any)                    {}
func (testLogger) Warnf(format string, args ...any)    {}
func (testLogger) Warnln(args ...any)                  {}
func (testLogger) Debug(args ...any)                   {}
func (testLogger) Debugf(format string, args ...any)   {}
func (testLogger) Debugln(args ...any)                 {}
func (testLogger) Fatal(args ...any)                   {}
func (testLogger) Fatalf(format string, args ...any)   {}
func (testLogger) Fatalln(args ...any)                 {}
func (l testLogger) WithFields(fields ...any) mlog.Logger { return l }
func (testLogger) Sync() error                         { return nil }

func setupEngine(t *testing.T) *engine.Engine {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	store := storeadapter.NewStore(&storeadapter.Connection{Client: client, Logger: testLogger{}}, testLogger{})

	return engine.New(store, testLogger{})
}

func TestDispatcher_MovesQueuedRequestsToBatching(t *testing.T) {
	ctx := context.Background()
	eng := setupEngine(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(domain.FileUploadResponse{ID: "file-1", Object: "file", Purpose: "batch"})
	})
	mux.HandleFunc("/batches", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(domain.BatchResponse{ID: "batch-1", Status: "validating"})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	upstreamClient := upstream.New(server.URL, testLogger{})

	req := domain.CompletionRequest{Model: "gpt-4", Messages: []domain.Message{{Role: "user", Content: "hi"}}}
	_, _, err := eng.GetOrCreate(ctx, "req-1", req, "sk-test")
	require.NoError(t, err)

	fastDisp := dispatcher.New(eng, upstreamClient, testLogger{}, 10*time.Millisecond)

	fastCtx, fastCancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer fastCancel()

	fastDisp.Run(fastCtx)

	state, err := eng.Get(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusBatching, state.Status)
	require.NotNil(t, state.BatchID)
	assert.Equal(t, "batch-1", *state.BatchID)
}

// TestDispatcher_SkipsRequestsNotInQueuedStatus covers the concurrent-
// dispatcher tolerance: a request that is still present in the queued set
// (e.g. left behind by a partial crash partway through a prior
// MoveToBatching) but whose status has already advanced past Queued must
// never be re-dispatched into a second, duplicate batch.
func TestDispatcher_SkipsRequestsNotInQueuedStatus(t *testing.T) {
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	store := storeadapter.NewStore(&storeadapter.Connection{Client: client, Logger: testLogger{}}, testLogger{})
	eng := engine.New(store, testLogger{})

	var batchCalls int

	mux := http.NewServeMux()
	mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
		batchCalls++
		_ = json.NewEncoder(w).Encode(domain.FileUploadResponse{ID: "file-1", Object: "file", Purpose: "batch"})
	})
	mux.HandleFunc("/batches", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(domain.BatchResponse{ID: "batch-1", Status: "validating"})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	upstreamClient := upstream.New(server.URL, testLogger{})

	req := domain.CompletionRequest{Model: "gpt-4", Messages: []domain.Message{{Role: "user", Content: "hi"}}}
	_, _, err := eng.GetOrCreate(ctx, "req-1", req, "sk-test")
	require.NoError(t, err)

	// Simulate a crash partway through a previous MoveToBatching: the
	// request's status already advanced to Batching, but it was never
	// removed from the queued set (still returned by QueuedRequests).
	bID := "already-batched"
	require.NoError(t, store.UpdateStatus(ctx, "req-1", domain.StatusBatching, &bID))

	fastDisp := dispatcher.New(eng, upstreamClient, testLogger{}, 10*time.Millisecond)

	fastCtx, fastCancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer fastCancel()

	fastDisp.Run(fastCtx)

	assert.Zero(t, batchCalls, "dispatcher must not re-upload a request that already advanced past Queued")

	state, err := eng.Get(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusBatching, state.Status)
	require.NotNil(t, state.BatchID)
	assert.Equal(t, "already-batched", *state.BatchID)
}
