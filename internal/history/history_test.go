package history

import (
	"context"
	"testing"
	"time"

	"opsflow/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(runID, workflowID string, start time.Time) Record {
	return Record{
		RunID:      runID,
		WorkflowID: workflowID,
		Success:    true,
		StartTime:  start,
		EndTime:    start.Add(time.Second),
		DurationMs: 1000,
		Succeeded:  1,
		Steps: []StepTrace{
			{StepID: "s1", StepName: "first", Success: true, Message: "ok", Attempts: 1},
		},
	}
}

func setupRedis(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{
		Addr:            server.Addr(),
		Protocol:        2,
		DisableIdentity: true,
	})
	store := NewRedisStore(client, "test", ttl)
	t.Cleanup(func() { _ = store.Close() })
	return store, server
}

// storeContract runs the behaviour every Store must share.
func storeContract(t *testing.T, store Store) {
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, record("run-1", "deploy", base)))
	require.NoError(t, store.Save(ctx, record("run-3", "deploy", base.Add(2*time.Minute))))
	require.NoError(t, store.Save(ctx, record("run-2", "deploy", base.Add(time.Minute))))
	require.NoError(t, store.Save(ctx, record("other-1", "cleanup", base)))

	got, err := store.Get(ctx, "run-2")
	require.NoError(t, err)
	assert.Equal(t, "deploy", got.WorkflowID)
	assert.True(t, got.StartTime.Equal(base.Add(time.Minute)))
	require.Len(t, got.Steps, 1)
	assert.Equal(t, "s1", got.Steps[0].StepID)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	all, err := store.ListByWorkflow(ctx, "deploy", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "run-3", all[0].RunID, "newest first")
	assert.Equal(t, "run-2", all[1].RunID)
	assert.Equal(t, "run-1", all[2].RunID)

	limited, err := store.ListByWorkflow(ctx, "deploy", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "run-3", limited[0].RunID)

	none, err := store.ListByWorkflow(ctx, "unknown", 5)
	require.NoError(t, err)
	assert.Empty(t, none)

	updated := record("run-1", "deploy", base)
	updated.Success = false
	updated.Error = "step s1 failed"
	require.NoError(t, store.Save(ctx, updated))
	got, err = store.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.False(t, got.Success)
	all, err = store.ListByWorkflow(ctx, "deploy", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3, "re-saving a run does not duplicate it")
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore(0))
}

func TestMemoryStore_Eviction(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2)
	base := time.Now()

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Save(ctx, record(id, "wf", base.Add(time.Duration(i)*time.Second))))
	}

	_, err := store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrRunNotFound)

	records, err := store.ListByWorkflow(ctx, "wf", 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "c", records[0].RunID)
	assert.Equal(t, "b", records[1].RunID)
}

func TestRedisStore(t *testing.T) {
	store, _ := setupRedis(t, time.Hour)
	storeContract(t, store)
}

func TestRedisStore_TTL(t *testing.T) {
	ctx := context.Background()
	store, server := setupRedis(t, time.Minute)

	require.NoError(t, store.Save(ctx, record("run-1", "deploy", time.Now())))
	assert.Equal(t, time.Minute, server.TTL("test:run:run-1"))
	assert.True(t, server.Exists("test:workflow:deploy:runs"))

	server.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "run-1")
	assert.ErrorIs(t, err, ErrRunNotFound)

	records, err := store.ListByWorkflow(ctx, "deploy", 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRedisStore_PrunesExpiredIDs(t *testing.T) {
	ctx := context.Background()
	store, server := setupRedis(t, 0)

	require.NoError(t, store.Save(ctx, record("kept", "deploy", time.Now())))
	require.NoError(t, store.Save(ctx, record("gone", "deploy", time.Now().Add(time.Second))))
	server.Del("test:run:gone")

	records, err := store.ListByWorkflow(ctx, "deploy", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "kept", records[0].RunID)

	members, err := server.ZMembers("test:workflow:deploy:runs")
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, members)
}

func TestRedisStore_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:            "127.0.0.1:1",
		Protocol:        2,
		DisableIdentity: true,
		MaxRetries:      -1,
	})
	store := NewRedisStore(client, "", 0)
	defer func() { _ = store.Close() }()

	err := store.Save(context.Background(), record("r", "wf", time.Now()))
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, config.HistoryConfig{Backend: config.HistoryBackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	store, err = Open(ctx, config.HistoryConfig{
		Backend:   config.HistoryBackendRedis,
		RedisAddr: server.Addr(),
		KeyPrefix: "opsflow",
		TTL:       time.Hour,
	})
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, store)
	require.NoError(t, store.Close())

	_, err = Open(ctx, config.HistoryConfig{Backend: "postgres"})
	assert.Error(t, err)
}
