package layout

import (
	"sync"

	"tangent-backend/internal/domain/node"
)

// DimensionSource supplies measured node sizes. Measurements come from the
// rendering layer; the engine treats them as read-only and falls back to
// the per-type default when none exists yet.
type DimensionSource interface {
	Dimensions(id string) (node.Size, bool)
}

// DimensionStore is the in-process DimensionSource the view layer reports
// into. Safe for concurrent use.
type DimensionStore struct {
	mu    sync.RWMutex
	sizes map[string]node.Size
}

// NewDimensionStore creates an empty store.
func NewDimensionStore() *DimensionStore {
	return &DimensionStore{sizes: make(map[string]node.Size)}
}

// Dimensions returns the measured size for a node, if any.
func (s *DimensionStore) Dimensions(id string) (node.Size, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sz, ok := s.sizes[id]
	return sz, ok
}

// Report records a fresh measurement.
func (s *DimensionStore) Report(id string, size node.Size) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sizes[id] = size
}

// Forget drops the measurement for a removed node.
func (s *DimensionStore) Forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sizes, id)
}
