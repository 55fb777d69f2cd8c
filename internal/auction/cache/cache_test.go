package cache

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/orbitcex/auctioncache/internal/auction/model"
	"github.com/orbitcex/auctioncache/internal/config"
)

func testConfig(strategy config.MatchingStrategy) config.Config {
	cfg := config.Default()
	cfg.Matching.Strategy = strategy
	return cfg
}

func newTestCache(t testing.TB, cfg config.Config) *OrderCache {
	t.Helper()
	c, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	return c
}

// checkIndexConsistency verifies that every id in byID appears in byUser,
// bySecurity and exactly one side index, and that the arena agrees on the
// live count.
func checkIndexConsistency(t *testing.T, c *OrderCache) {
	t.Helper()
	require.Equal(t, len(c.byID), c.arena.len())
	for id, h := range c.byID {
		s := c.arena.at(h)
		require.True(t, s.live, "order %s points at a dead slot", id)
		o := s.order

		_, ok := c.byUser[o.User][id]
		require.True(t, ok, "order %s missing from byUser", id)
		_, ok = c.bySecurity[o.SecurityID][id]
		require.True(t, ok, "order %s missing from bySecurity", id)

		inLong := containsHandle(c.longBySecurity[o.SecurityID], h)
		inShort := containsHandle(c.shortBySecurity[o.SecurityID], h)
		require.True(t, inLong != inShort, "order %s must be in exactly one side index", id)
		require.Equal(t, o.IsBuy(), inLong)
	}
	for user, set := range c.byUser {
		require.NotEmpty(t, set, "empty byUser entry for %s", user)
		for id := range set {
			_, ok := c.byID[id]
			require.True(t, ok, "byUser holds stale id %s", id)
		}
	}
	for sec, set := range c.bySecurity {
		require.NotEmpty(t, set, "empty bySecurity entry for %s", sec)
		for id := range set {
			_, ok := c.byID[id]
			require.True(t, ok, "bySecurity holds stale id %s", id)
		}
	}
}

func orderID(prefix string, i int) string {
	return fmt.Sprintf("%s-%d", prefix, i)
}

func containsHandle(handles []int, h int) bool {
	for _, v := range handles {
		if v == h {
			return true
		}
	}
	return false
}

// walkthroughOrders is the standard eight-order example.
func walkthroughOrders() []model.Order {
	return []model.Order{
		model.NewOrder("OrdId1", "SecId1", model.SideBuy, 1000, "User1", "CompanyA"),
		model.NewOrder("OrdId2", "SecId2", model.SideSell, 3000, "User2", "CompanyB"),
		model.NewOrder("OrdId3", "SecId1", model.SideSell, 500, "User3", "CompanyA"),
		model.NewOrder("OrdId4", "SecId2", model.SideBuy, 600, "User4", "CompanyC"),
		model.NewOrder("OrdId5", "SecId2", model.SideBuy, 100, "User5", "CompanyB"),
		model.NewOrder("OrdId6", "SecId3", model.SideBuy, 1000, "User6", "CompanyD"),
		model.NewOrder("OrdId7", "SecId2", model.SideBuy, 2000, "User7", "CompanyE"),
		model.NewOrder("OrdId8", "SecId2", model.SideSell, 5000, "User8", "CompanyE"),
	}
}

func addAll(t testing.TB, c *OrderCache, orders []model.Order) {
	t.Helper()
	ctx := context.Background()
	for _, o := range orders {
		require.NoError(t, c.AddOrder(ctx, o))
	}
}

func TestAddOrder_IndexesAllViews(t *testing.T) {
	c := newTestCache(t, testConfig(config.StrategyLazy))
	addAll(t, c, walkthroughOrders())

	assert.Equal(t, 8, c.Size())
	assert.True(t, c.Exists("OrdId1"))
	assert.False(t, c.Exists("OrdId99"))

	o, err := c.GetOrder("OrdId4")
	require.NoError(t, err)
	assert.Equal(t, "OrdId4", o.OrderID)
	assert.Equal(t, "SecId2", o.SecurityID)
	assert.Equal(t, uint64(600), o.Quantity)
	assert.Equal(t, uint64(600), o.WorkingQty)

	checkIndexConsistency(t, c)
}

func TestAddOrder_DuplicateID(t *testing.T) {
	t.Run("strict", func(t *testing.T) {
		cfg := testConfig(config.StrategyLazy)
		cfg.SilentErrors = false
		c := newTestCache(t, cfg)
		ctx := context.Background()

		require.NoError(t, c.AddOrder(ctx, model.NewOrder("OrdId1", "SecId1", model.SideBuy, 100, "User1", "CompanyA")))
		err := c.AddOrder(ctx, model.NewOrder("OrdId1", "SecId2", model.SideSell, 500, "User2", "CompanyB"))
		assert.ErrorIs(t, err, ErrDuplicateOrderID)
		assert.Equal(t, 1, c.Size())
	})

	t.Run("silent", func(t *testing.T) {
		c := newTestCache(t, testConfig(config.StrategyLazy))
		ctx := context.Background()

		require.NoError(t, c.AddOrder(ctx, model.NewOrder("OrdId1", "SecId1", model.SideBuy, 100, "User1", "CompanyA")))
		require.NoError(t, c.AddOrder(ctx, model.NewOrder("OrdId1", "SecId2", model.SideSell, 500, "User2", "CompanyB")))
		assert.Equal(t, 1, c.Size())

		// the resting order is the original, untouched
		o, err := c.GetOrder("OrdId1")
		require.NoError(t, err)
		assert.Equal(t, "SecId1", o.SecurityID)
		assert.Equal(t, uint64(100), o.Quantity)
	})
}

func TestAddOrder_Validation(t *testing.T) {
	c := newTestCache(t, testConfig(config.StrategyLazy))
	ctx := context.Background()

	// validation failures are surfaced even under the silent policy
	assert.Error(t, c.AddOrder(ctx, model.NewOrder("OrdId1", "SecId1", model.SideBuy, 0, "User1", "CompanyA")))
	assert.Error(t, c.AddOrder(ctx, model.NewOrder("OrdId1", "SecId1", "Short", 10, "User1", "CompanyA")))
	assert.Error(t, c.AddOrder(ctx, model.NewOrder("", "SecId1", model.SideBuy, 10, "User1", "CompanyA")))
	assert.Error(t, c.AddOrder(ctx, model.NewOrder("OrdId1", "", model.SideBuy, 10, "User1", "CompanyA")))
	assert.Equal(t, 0, c.Size())
}

func TestGetAllOrders_Snapshot(t *testing.T) {
	c := newTestCache(t, testConfig(config.StrategyLazy))
	addAll(t, c, walkthroughOrders())

	all := c.GetAllOrders()
	require.Len(t, all, 8)

	// the snapshot is a copy; mutating it must not leak into the store
	all[0].WorkingQty = 0
	o, err := c.GetOrder(all[0].OrderID)
	require.NoError(t, err)
	assert.Equal(t, o.Quantity, o.WorkingQty)
}

func TestGetOrder_NotFound(t *testing.T) {
	cfg := testConfig(config.StrategyLazy)
	cfg.SilentErrors = false
	c := newTestCache(t, cfg)

	_, err := c.GetOrder("missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestFilledOrdersStayResident(t *testing.T) {
	cfg := testConfig(config.StrategyEager)
	c := newTestCache(t, cfg)
	ctx := context.Background()

	require.NoError(t, c.AddOrder(ctx, model.NewOrder("b1", "SecId1", model.SideBuy, 500, "User1", "CompanyA")))
	require.NoError(t, c.AddOrder(ctx, model.NewOrder("s1", "SecId1", model.SideSell, 500, "User2", "CompanyB")))

	size, err := c.GetMatchingSizeForSecurity(ctx, "SecId1")
	require.NoError(t, err)
	assert.Equal(t, uint64(500), size)

	// fully filled orders remain visible until explicitly cancelled
	assert.Equal(t, 2, c.Size())
	b, err := c.GetOrder("b1")
	require.NoError(t, err)
	assert.True(t, b.IsFilled())
	assert.Equal(t, uint64(500), b.Quantity)
}
