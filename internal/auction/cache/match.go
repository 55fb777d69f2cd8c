package cache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/orbitcex/auctioncache/internal/auction/model"
	"github.com/orbitcex/auctioncache/internal/config"
	"github.com/orbitcex/auctioncache/pkg/metrics"
)

// GetMatchingSizeForSecurity returns the total quantity matchable for the
// security.
//
// Under the eager strategy matching already ran inside AddOrder, so this is
// an O(1) read of the matched-quantity cache under the shared store lock.
//
// Under the lazy strategy the call takes the store lock exclusively and scans
// every resting buy order for the security against its sell-side candidates.
// With parallelism enabled each scan is dispatched to a bounded worker pool;
// the call blocks until all scans finish. Either way the aggregated total is
// then read from the matched-quantity cache, which makes repeated queries
// idempotent: re-scanning filled orders adds nothing.
func (c *OrderCache) GetMatchingSizeForSecurity(ctx context.Context, securityID string) (uint64, error) {
	if c.cfg.Matching.Strategy == config.StrategyEager {
		c.mu.RLock()
		defer c.mu.RUnlock()
		if _, ok := c.bySecurity[securityID]; !ok {
			return 0, c.absent(ctx, fmt.Errorf("matching size for security %q: %w", securityID, ErrSecurityNotFound))
		}
		return c.matched.get(securityID), nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.bySecurity[securityID]; !ok {
		return 0, c.absent(ctx, fmt.Errorf("matching size for security %q: %w", securityID, ErrSecurityNotFound))
	}

	longs := c.longBySecurity[securityID]
	if c.cfg.Matching.Parallel && len(longs) > 1 {
		// One scan per buy order, bounded by hardware parallelism. Workers
		// lock their own buy order for the whole scan and counterparty sells
		// one at a time; buy locks are never taken as counterparties, so the
		// lock order is acyclic.
		g := new(errgroup.Group)
		g.SetLimit(c.cfg.EffectiveWorkers())
		for _, h := range longs {
			h := h
			g.Go(func() error {
				c.matchOrder(ctx, h, true)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for _, h := range longs {
			c.matchOrder(ctx, h, false)
		}
	}
	return c.matched.get(securityID), nil
}

// matchOrder runs the unsorted-greedy scan for one order: counterparties are
// all opposite-side orders on the same security, visited in arrival order.
// Fully filled candidates and same-company candidates are skipped; each match
// fills both sides by min(working, working) and the scan stops as soon as the
// subject order is filled. Returns the quantity matched by this scan.
//
// lockOrders is set only when multiple workers may touch the same order
// concurrently; sequential callers already hold the store lock exclusively.
func (c *OrderCache) matchOrder(ctx context.Context, h int, lockOrders bool) uint64 {
	start := time.Now()
	s := c.arena.at(h)
	if lockOrders {
		s.mu.Lock()
		defer s.mu.Unlock()
	}

	if s.order.IsFilled() {
		// re-scanning a filled order is a guaranteed no-op
		return 0
	}

	isBuy := s.order.IsBuy()
	securityID := s.order.SecurityID
	var candidates []int
	if isBuy {
		candidates = c.shortBySecurity[securityID]
	} else {
		candidates = c.longBySecurity[securityID]
	}
	if len(candidates) == 0 {
		return 0
	}

	var matched uint64
	for _, ch := range candidates {
		cs := c.arena.at(ch)
		if lockOrders {
			cs.mu.Lock()
		}
		if cs.order.IsFilled() || cs.order.Company == s.order.Company {
			if lockOrders {
				cs.mu.Unlock()
			}
			continue
		}
		qty := min(s.order.WorkingQty, cs.order.WorkingQty)
		if qty == 0 {
			if lockOrders {
				cs.mu.Unlock()
			}
			continue
		}
		s.order.Fill(qty)
		cs.order.Fill(qty)
		matched += qty

		if c.cfg.Matching.MatchLog {
			if isBuy {
				c.recordFill(securityID, s.order.OrderID, cs.order.OrderID, qty)
			} else {
				c.recordFill(securityID, cs.order.OrderID, s.order.OrderID, qty)
			}
		}
		if c.verbose {
			c.log.Debug("orders matched",
				zap.String("trace_id", TraceIDFromContext(ctx)),
				zap.String("order_id", s.order.OrderID),
				zap.String("counterparty_id", cs.order.OrderID),
				zap.String("security_id", securityID),
				zap.Uint64("qty", qty))
		}
		if lockOrders {
			cs.mu.Unlock()
		}

		if s.order.IsFilled() {
			break
		}
	}

	c.matched.add(securityID, matched)
	if matched > 0 {
		metrics.MatchedLots.Add(float64(matched))
	}
	metrics.MatchLatency.Observe(time.Since(start).Seconds())
	return matched
}

func (c *OrderCache) recordFill(securityID, buyOrderID, sellOrderID string, qty uint64) {
	fill := model.NewOrderFill(securityID, buyOrderID, sellOrderID, qty)
	c.fillMu.Lock()
	c.fills = append(c.fills, fill)
	c.fillMu.Unlock()
}
