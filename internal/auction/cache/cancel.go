package cache

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/orbitcex/auctioncache/pkg/metrics"
)

// CancelOrder removes one order from all four indices in O(1). Cancelling an
// absent id fails with ErrOrderNotFound (or no-ops under the silent policy).
func (c *OrderCache) CancelOrder(ctx context.Context, orderID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.byID[orderID]; !ok {
		return c.absent(ctx, fmt.Errorf("cancel order %q: %w", orderID, ErrOrderNotFound))
	}
	c.removeOrder(ctx, orderID, 0, false, metrics.CancelReasonSingle)
	return nil
}

// CancelOrdersForUser removes every resting order owned by the user.
func (c *OrderCache) CancelOrdersForUser(ctx context.Context, user string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.byUser[user]
	if !ok {
		return c.absent(ctx, fmt.Errorf("cancel orders for user %q: %w", user, ErrUserNotFound))
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	c.cancelBatch(ctx, ids, 0, metrics.CancelReasonUser)
	if c.verbose {
		c.log.Debug("cancelled orders for user",
			zap.String("trace_id", TraceIDFromContext(ctx)),
			zap.String("user", user),
			zap.Int("count", len(ids)))
	}
	return nil
}

// CancelOrdersForSecurity removes every resting order on the security whose
// original quantity is >= minQty; minQty 0 means no filter.
func (c *OrderCache) CancelOrdersForSecurity(ctx context.Context, securityID string, minQty uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.bySecurity[securityID]
	if !ok {
		return c.absent(ctx, fmt.Errorf("cancel orders for security %q: %w", securityID, ErrSecurityNotFound))
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	c.cancelBatch(ctx, ids, minQty, metrics.CancelReasonSecurity)
	if c.verbose {
		c.log.Debug("cancelled orders for security",
			zap.String("trace_id", TraceIDFromContext(ctx)),
			zap.String("security_id", securityID),
			zap.Uint64("min_qty", minQty),
			zap.Int("resolved", len(ids)))
	}
	return nil
}

// cancelBatch applies single-order cancellation to every id in the resolved
// key set. Large batches are split into contiguous per-worker chunks; each
// worker takes the per-order lock and the index mutexes so removals cannot
// race. Chunks below the configured size run sequentially, where the
// exclusive store lock alone is enough.
func (c *OrderCache) cancelBatch(ctx context.Context, ids []string, minQty uint64, reason string) {
	workers := c.cfg.EffectiveWorkers()
	if len(ids) == 0 {
		return
	}
	chunk := (len(ids) + workers - 1) / workers
	if !c.cfg.Cancel.Parallel || workers < 2 || chunk < c.cfg.Cancel.ChunkSize {
		for _, id := range ids {
			c.removeOrder(ctx, id, minQty, false, reason)
		}
		return
	}

	g := new(errgroup.Group)
	for start := 0; start < len(ids); start += chunk {
		part := ids[start:min(start+chunk, len(ids))]
		g.Go(func() error {
			for _, id := range part {
				c.removeOrder(ctx, id, minQty, true, reason)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// removeOrder deletes one order from byID, byUser, bySecurity and its side
// index, then frees its arena slot. The caller holds the store lock
// exclusively; lockOrder additionally serializes against sibling batch
// workers. Returns false when the id is gone or below the minQty filter.
func (c *OrderCache) removeOrder(ctx context.Context, orderID string, minQty uint64, lockOrder bool, reason string) bool {
	c.idMu.Lock()
	h, ok := c.byID[orderID]
	c.idMu.Unlock()
	if !ok {
		return false
	}
	s := c.arena.at(h)
	// Quantity, User, SecurityID and Side are immutable once resting, so
	// the filter and index keys can be read before taking the order lock.
	if minQty > 0 && s.order.Quantity < minQty {
		return false
	}
	if lockOrder {
		s.mu.Lock()
	}
	user := s.order.User
	securityID := s.order.SecurityID
	isBuy := s.order.IsBuy()

	c.refMu.Lock()
	removeRef(c.byUser, user, orderID)
	removeRef(c.bySecurity, securityID, orderID)
	c.refMu.Unlock()

	if isBuy {
		c.longMu.Lock()
		c.longBySecurity[securityID] = removeHandle(c.longBySecurity[securityID], h)
		if len(c.longBySecurity[securityID]) == 0 {
			delete(c.longBySecurity, securityID)
		}
		c.longMu.Unlock()
	} else {
		c.shortMu.Lock()
		c.shortBySecurity[securityID] = removeHandle(c.shortBySecurity[securityID], h)
		if len(c.shortBySecurity[securityID]) == 0 {
			delete(c.shortBySecurity, securityID)
		}
		c.shortMu.Unlock()
	}

	c.idMu.Lock()
	delete(c.byID, orderID)
	c.idMu.Unlock()

	if lockOrder {
		s.mu.Unlock()
	}
	c.arena.release(h)

	metrics.OrdersCancelled.WithLabelValues(reason).Inc()
	metrics.RestingOrders.Dec()
	if c.verbose {
		c.log.Debug("order cancelled",
			zap.String("trace_id", TraceIDFromContext(ctx)),
			zap.String("order_id", orderID),
			zap.String("reason", reason))
	}
	return true
}

// removeHandle drops one handle from a side index, preserving arrival order
// of the remaining orders.
func removeHandle(handles []int, h int) []int {
	for i, v := range handles {
		if v == h {
			return append(handles[:i], handles[i+1:]...)
		}
	}
	return handles
}
