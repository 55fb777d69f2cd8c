package cache

import "sync"

// matchedQuantityCache keeps the cumulative matched quantity per security.
// It has its own lock because the matcher increments it from whichever store
// operation triggered the scan, including parallel workers.
type matchedQuantityCache struct {
	mu         sync.RWMutex
	bySecurity map[string]uint64
}

func newMatchedQuantityCache() *matchedQuantityCache {
	return &matchedQuantityCache{bySecurity: make(map[string]uint64)}
}

// add records qty matched lots for the security. The total is monotonically
// non-decreasing; cancellations do not reverse recorded fills.
func (m *matchedQuantityCache) add(securityID string, qty uint64) {
	if qty == 0 {
		return
	}
	m.mu.Lock()
	m.bySecurity[securityID] += qty
	m.mu.Unlock()
}

// get returns the running total, or 0 for an unknown security.
func (m *matchedQuantityCache) get(securityID string) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bySecurity[securityID]
}
