package history

import (
	"context"
	"sort"
	"sync"
)

// DefaultMaxRunsPerWorkflow bounds the memory store.
const DefaultMaxRunsPerWorkflow = 100

// MemoryStore keeps records in process memory. The oldest runs of a
// workflow are evicted once it exceeds maxPerWorkflow records.
type MemoryStore struct {
	mu             sync.RWMutex
	runs           map[string]Record
	byWorkflow     map[string][]string
	maxPerWorkflow int
}

// NewMemoryStore creates an empty store. maxPerWorkflow <= 0 selects the default.
func NewMemoryStore(maxPerWorkflow int) *MemoryStore {
	if maxPerWorkflow <= 0 {
		maxPerWorkflow = DefaultMaxRunsPerWorkflow
	}
	return &MemoryStore{
		runs:           make(map[string]Record),
		byWorkflow:     make(map[string][]string),
		maxPerWorkflow: maxPerWorkflow,
	}
}

func (m *MemoryStore) Save(ctx context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.runs[rec.RunID]; !exists {
		m.byWorkflow[rec.WorkflowID] = append(m.byWorkflow[rec.WorkflowID], rec.RunID)
	}
	m.runs[rec.RunID] = rec

	ids := m.byWorkflow[rec.WorkflowID]
	sort.SliceStable(ids, func(i, j int) bool {
		return m.runs[ids[i]].StartTime.Before(m.runs[ids[j]].StartTime)
	})
	for len(ids) > m.maxPerWorkflow {
		delete(m.runs, ids[0])
		ids = ids[1:]
	}
	m.byWorkflow[rec.WorkflowID] = ids
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, runID string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.runs[runID]
	if !ok {
		return Record{}, ErrRunNotFound
	}
	return rec, nil
}

func (m *MemoryStore) ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.byWorkflow[workflowID]
	records := make([]Record, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		records = append(records, m.runs[ids[i]])
		if limit > 0 && len(records) == limit {
			break
		}
	}
	return records, nil
}

func (m *MemoryStore) Close() error { return nil }
