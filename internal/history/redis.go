package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"opsflow/pkg/logging"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each record as a JSON string with a TTL plus a per-workflow
// sorted set of run ids scored by start time.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore wraps an existing client. A zero ttl keeps records forever.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "opsflow"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) runKey(runID string) string {
	return fmt.Sprintf("%s:run:%s", s.prefix, runID)
}

func (s *RedisStore) workflowKey(workflowID string) string {
	return fmt.Sprintf("%s:workflow:%s:runs", s.prefix, workflowID)
}

func (s *RedisStore) Save(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode run %s: %w", rec.RunID, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.runKey(rec.RunID), data, s.ttl)
	pipe.ZAdd(ctx, s.workflowKey(rec.WorkflowID), redis.Z{
		Score:  float64(rec.StartTime.UnixNano()),
		Member: rec.RunID,
	})
	if s.ttl > 0 {
		pipe.Expire(ctx, s.workflowKey(rec.WorkflowID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save run %s: %w", rec.RunID, err)
	}

	logging.Debug("HistoryStore", "Saved run %s of workflow %s", rec.RunID, rec.WorkflowID)
	return nil
}

func (s *RedisStore) Get(ctx context.Context, runID string) (Record, error) {
	data, err := s.client.Get(ctx, s.runKey(runID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrRunNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to load run %s: %w", runID, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("failed to decode run %s: %w", runID, err)
	}
	return rec, nil
}

func (s *RedisStore) ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]Record, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := s.client.ZRevRange(ctx, s.workflowKey(workflowID), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list runs of %s: %w", workflowID, err)
	}

	records := make([]Record, 0, len(ids))
	var expired []interface{}
	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if errors.Is(err, ErrRunNotFound) {
			expired = append(expired, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if len(expired) > 0 {
		if err := s.client.ZRem(ctx, s.workflowKey(workflowID), expired...).Err(); err != nil {
			logging.Warn("HistoryStore", "Failed to prune expired runs of %s: %v", workflowID, err)
		}
	}
	return records, nil
}

// Ping checks connectivity to the server.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
