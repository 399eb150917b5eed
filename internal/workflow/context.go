package workflow

import "sync"

// Store is the per-run key/value context shared by the steps of one run.
// Later writes overwrite earlier ones.
type Store struct {
	mu     sync.RWMutex
	values map[string]interface{}
}

// NewStore creates a store seeded with a copy of vars.
func NewStore(vars map[string]interface{}) *Store {
	values := make(map[string]interface{}, len(vars))
	for k, v := range vars {
		values[k] = v
	}
	return &Store{values: values}
}

// Get returns the value stored under key.
func (s *Store) Get(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Put stores value under key.
func (s *Store) Put(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Snapshot returns a copy of the current contents.
func (s *Store) Snapshot() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]interface{}, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
