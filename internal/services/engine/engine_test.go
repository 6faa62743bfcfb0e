package engine_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storeadapter "github.com/lerianlabs/batchgate/internal/adapters/redis"
	"github.com/lerianlabs/batchgate/internal/domain"
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

func TestEngine_GetOrCreate_CreatesOnceThenReturnsExisting(t *testing.T) {
	ctx := context.Background()
	eng := setupEngine(t)

	req := domain.CompletionRequest{Model: "gpt-4", Messages: []domain.Message{{Role: "user", Content: "hi"}}}

	state1, created1, err := eng.GetOrCreate(ctx, "req-1", req, "sk-test")
	require.NoError(t, err)
	assert.True(t, created1)
	assert.Equal(t, domain.StatusQueued, state1.Status)

	state2, created2, err := eng.GetOrCreate(ctx, "req-1", req, "sk-test")
	require.NoError(t, err)
	assert.False(t, created2)
	assert.Equal(t, state1.RequestID, state2.RequestID)
}

func TestEngine_MoveToBatchingThenComplete(t *testing.T) {
	ctx := context.Background()
	eng := setupEngine(t)

	req := domain.CompletionRequest{Model: "gpt-4", Messages: []domain.Message{{Role: "user", Content: "hi"}}}

	_, _, err := eng.GetOrCreate(ctx, "req-1", req, "sk-test")
	require.NoError(t, err)

	require.NoError(t, eng.MoveToBatching(ctx, []string{"req-1"}, "batch-1", "sk-test"))

	queued, err := eng.QueuedRequests(ctx)
	require.NoError(t, err)
	assert.Empty(t, queued)

	eng.MarkProcessing(ctx, []string{"req-1"}, "batch-1")

	state, err := eng.Get(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, state.Status)

	require.NoError(t, eng.CompleteRequest(ctx, "req-1", domain.CompletionResponse{ID: "cmpl-1"}))

	state, err = eng.Get(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusComplete, state.Status)

	require.NoError(t, eng.RetireBatch(ctx, "batch-1"))

	batches, err := eng.ProcessingBatches(ctx)
	require.NoError(t, err)
	assert.Empty(t, batches)
}
