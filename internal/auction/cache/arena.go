package cache

import (
	"sync"

	"github.com/orbitcex/auctioncache/internal/auction/model"
)

// slot is one arena cell. The embedded mutex is the order's exclusive
// section: parallel matching scans and parallel cancellation workers take it
// before touching WorkingQty or the shared indices for this order.
type slot struct {
	mu    sync.Mutex
	order model.Order
	live  bool
}

// orderArena owns the canonical order collection. Orders are addressed by
// stable integer handles, never by pointer identity; all secondary indices
// store handles. Releasing an order frees its slot for reuse, which keeps
// single-order removal O(1) while enumeration walks live slots only.
type orderArena struct {
	mu    sync.Mutex
	slots []*slot
	free  []int
	live  int
}

func newOrderArena(capacity int) *orderArena {
	return &orderArena{
		slots: make([]*slot, 0, capacity),
	}
}

// alloc stores the order and returns its handle. Callers must hold the store
// lock exclusively.
func (a *orderArena) alloc(o model.Order) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.live++
	if n := len(a.free); n > 0 {
		h := a.free[n-1]
		a.free = a.free[:n-1]
		s := a.slots[h]
		s.order = o
		s.live = true
		return h
	}
	a.slots = append(a.slots, &slot{order: o, live: true})
	return len(a.slots) - 1
}

// release frees the slot for reuse. The slot's own mutex must not be held.
func (a *orderArena) release(h int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.slots[h]
	if !s.live {
		return
	}
	s.live = false
	s.order = model.Order{}
	a.live--
	a.free = append(a.free, h)
}

func (a *orderArena) at(h int) *slot {
	return a.slots[h]
}

func (a *orderArena) len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.live
}

// snapshot copies all live orders in slot order. Slot order tracks insertion
// order until slots are recycled by cancellations.
func (a *orderArena) snapshot() []model.Order {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]model.Order, 0, a.live)
	for _, s := range a.slots {
		if s.live {
			out = append(out, s.order)
		}
	}
	return out
}
