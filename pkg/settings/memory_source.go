package settings

import (
	"context"
	"sync"
)

// MemorySource is a Source backed by a map.
type MemorySource struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewMemorySource returns a MemorySource holding a copy of values.
func NewMemorySource(values map[string]any) *MemorySource {
	s := &MemorySource{values: make(map[string]any, len(values))}
	for k, v := range values {
		s.values[k] = v
	}
	return s
}

func (s *MemorySource) Lookup(_ context.Context, key string) (any, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// Set stores value under key.
func (s *MemorySource) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}
