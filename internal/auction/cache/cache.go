package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orbitcex/auctioncache/internal/auction/model"
	"github.com/orbitcex/auctioncache/internal/config"
	"github.com/orbitcex/auctioncache/pkg/metrics"
)

// TraceIDKey is the context key for trace ID propagation
const TraceIDKey = "trace_id"

// TraceIDFromContext extracts the trace ID from context, or generates one if missing
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v := ctx.Value(TraceIDKey); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return uuid.New().String()
}

// OrderCache is an in-memory store of resting orders for a quantity-only
// call-auction venue. It keeps four derived indices consistent with the
// canonical arena on every mutation:
//
//	byID            orderID    -> handle          (1:1)
//	byUser          user       -> orderID set     (1:n)
//	bySecurity      securityID -> orderID set     (1:n)
//	long/short      securityID -> handles in arrival order, one per side
//
// All mutating operations take the store lock exclusively; pure readers take
// it in shared mode. The per-order locks in the arena and the index mutexes
// below are only contended on the parallel lazy-matching and parallel
// batch-cancellation paths, both of which run entirely under the exclusive
// store lock held by the dispatching call.
type OrderCache struct {
	cfg     config.Config
	log     *zap.Logger
	verbose bool

	mu sync.RWMutex

	arena           *orderArena
	byID            map[string]int
	byUser          map[string]map[string]int
	bySecurity      map[string]map[string]int
	longBySecurity  map[string][]int
	shortBySecurity map[string][]int

	// index mutexes for the parallel cancellation workers
	idMu    sync.Mutex
	refMu   sync.Mutex
	longMu  sync.Mutex
	shortMu sync.Mutex

	matched *matchedQuantityCache

	// append-only match log, populated only when cfg.Matching.MatchLog is set
	fillMu sync.Mutex
	fills  []model.OrderFill
}

// New builds an order cache with the given configuration. The logger must not
// be nil; pass zap.NewNop() to silence it.
func New(cfg config.Config, log *zap.Logger) (*OrderCache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("order cache config: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderCache{
		cfg:             cfg,
		log:             log,
		verbose:         cfg.Logging.Verbose,
		arena:           newOrderArena(1024),
		byID:            make(map[string]int),
		byUser:          make(map[string]map[string]int),
		bySecurity:      make(map[string]map[string]int),
		longBySecurity:  make(map[string][]int),
		shortBySecurity: make(map[string][]int),
		matched:         newMatchedQuantityCache(),
	}, nil
}

// absent applies the configured propagation policy to an absence condition.
func (c *OrderCache) absent(ctx context.Context, err error) error {
	if !c.cfg.SilentErrors {
		return err
	}
	if c.verbose {
		c.log.Debug("ignoring absence condition",
			zap.String("trace_id", TraceIDFromContext(ctx)),
			zap.Error(err))
	}
	return nil
}

// AddOrder stores the order, updates all indices in O(1), and under the eager
// strategy immediately runs the matcher for it. Adding an id that already
// exists fails with ErrDuplicateOrderID (or no-ops under the silent policy).
func (c *OrderCache) AddOrder(ctx context.Context, order model.Order) error {
	if err := order.Validate(); err != nil {
		return fmt.Errorf("add order: %w", err)
	}
	// orders always enter the book fully working
	order.WorkingQty = order.Quantity

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.byID[order.OrderID]; ok {
		return c.absent(ctx, fmt.Errorf("add order %q: %w", order.OrderID, ErrDuplicateOrderID))
	}

	h := c.arena.alloc(order)
	c.byID[order.OrderID] = h
	addRef(c.byUser, order.User, order.OrderID, h)
	addRef(c.bySecurity, order.SecurityID, order.OrderID, h)
	if order.IsBuy() {
		c.longBySecurity[order.SecurityID] = append(c.longBySecurity[order.SecurityID], h)
	} else {
		c.shortBySecurity[order.SecurityID] = append(c.shortBySecurity[order.SecurityID], h)
	}

	metrics.OrdersAdded.WithLabelValues(order.Side).Inc()
	metrics.RestingOrders.Inc()

	if c.verbose {
		c.log.Debug("order added",
			zap.String("trace_id", TraceIDFromContext(ctx)),
			zap.String("order_id", order.OrderID),
			zap.String("security_id", order.SecurityID),
			zap.String("side", order.Side),
			zap.Uint64("qty", order.Quantity),
			zap.Int("resting", len(c.byID)))
	}

	if c.cfg.Matching.Strategy == config.StrategyEager {
		c.matchOrder(ctx, h, false)
	}
	return nil
}

// GetOrder returns a copy of the resting order, or ErrOrderNotFound.
func (c *OrderCache) GetOrder(orderID string) (model.Order, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.byID[orderID]
	if !ok {
		return model.Order{}, c.absent(context.Background(),
			fmt.Errorf("get order %q: %w", orderID, ErrOrderNotFound))
	}
	return c.arena.at(h).order, nil
}

// Exists reports whether an order id is resting in the cache.
func (c *OrderCache) Exists(orderID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.byID[orderID]
	return ok
}

// Size returns the number of resting orders in any fill state.
func (c *OrderCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}

// GetAllOrders returns a snapshot of all resting orders. The relative order
// follows insertion until cancellations recycle arena slots.
func (c *OrderCache) GetAllOrders() []model.Order {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.arena.snapshot()
}

// GetAllOrderMatches returns the append-only match log. Empty unless the
// match log is enabled in the configuration.
func (c *OrderCache) GetAllOrderMatches() []model.OrderFill {
	c.mu.RLock()
	defer c.mu.RUnlock()
	c.fillMu.Lock()
	defer c.fillMu.Unlock()
	out := make([]model.OrderFill, len(c.fills))
	copy(out, c.fills)
	return out
}

// GetOrderMatchesBySecurity returns the recorded pair-events for one
// security. Unknown securities yield an empty slice, not an error.
func (c *OrderCache) GetOrderMatchesBySecurity(securityID string) []model.OrderFill {
	c.mu.RLock()
	defer c.mu.RUnlock()
	c.fillMu.Lock()
	defer c.fillMu.Unlock()
	out := make([]model.OrderFill, 0)
	for _, f := range c.fills {
		if f.SecurityID == securityID {
			out = append(out, f)
		}
	}
	return out
}

func addRef(idx map[string]map[string]int, key, orderID string, h int) {
	set, ok := idx[key]
	if !ok {
		set = make(map[string]int)
		idx[key] = set
	}
	set[orderID] = h
}

// removeRef deletes an order from a 1:n index, dropping the key once its set
// is empty so absence checks stay meaningful.
func removeRef(idx map[string]map[string]int, key, orderID string) {
	set, ok := idx[key]
	if !ok {
		return
	}
	delete(set, orderID)
	if len(set) == 0 {
		delete(idx, key)
	}
}
