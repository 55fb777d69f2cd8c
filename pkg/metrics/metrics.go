package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OrdersAdded counts orders accepted into the cache by side (Buy/Sell)
var OrdersAdded = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auctioncache_orders_added_total",
		Help: "Total number of orders added to the cache",
	},
	[]string{"side"},
)

// OrdersCancelled counts removed orders by cancellation path
var OrdersCancelled = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auctioncache_orders_cancelled_total",
		Help: "Total number of orders removed from the cache",
	},
	[]string{"reason"},
)

// MatchedLots counts total lots paired off by the matching engine
var MatchedLots = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "auctioncache_matched_lots_total",
		Help: "Total quantity of lots matched across all securities",
	},
)

// MatchLatency records latency distribution for per-order matching scans
var MatchLatency = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "auctioncache_match_latency_seconds",
		Help:    "Latency in seconds of individual order matching scans",
		Buckets: prometheus.DefBuckets,
	},
)

// RestingOrders tracks the number of orders currently resting in the cache
var RestingOrders = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "auctioncache_resting_orders",
		Help: "Number of orders currently resting in the cache",
	},
)

func init() {
	prometheus.MustRegister(OrdersAdded, OrdersCancelled)
	prometheus.MustRegister(MatchedLots, MatchLatency, RestingOrders)
}

// Cancellation reasons used as label values for OrdersCancelled.
const (
	CancelReasonSingle   = "single"
	CancelReasonUser     = "user"
	CancelReasonSecurity = "security"
)
