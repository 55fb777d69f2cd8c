package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/orbitcex/auctioncache/internal/auction/cache"
	"github.com/orbitcex/auctioncache/internal/auction/model"
	"github.com/orbitcex/auctioncache/internal/config"
	"github.com/orbitcex/auctioncache/pkg/logger"
)

func main() {
	var (
		configPath string
		strategy   string
		parallel   bool
		verbose    bool
		benchSize  int
		seed       int64
	)
	pflag.StringVar(&configPath, "config", "", "path to YAML configuration file")
	pflag.StringVar(&strategy, "strategy", "", "matching strategy override (eager|lazy)")
	pflag.BoolVar(&parallel, "parallel", false, "enable parallel matching and cancellation")
	pflag.BoolVar(&verbose, "verbose", false, "log every match/cancel decision")
	pflag.IntVar(&benchSize, "bench", 0, "run a randomized benchmark with N orders instead of the demo")
	pflag.Int64Var(&seed, "seed", time.Now().UnixNano(), "benchmark random seed")
	pflag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if strategy != "" {
		cfg.Matching.Strategy = config.MatchingStrategy(strategy)
	}
	if parallel {
		cfg.Matching.Parallel = true
		cfg.Cancel.Parallel = true
	}
	if verbose {
		cfg.Logging.Verbose = true
		cfg.Logging.Level = "debug"
	}

	zapLogger, err := logger.New(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	if err := cfg.Validate(); err != nil {
		zapLogger.Fatal("Invalid configuration", zap.Error(err))
	}

	oc, err := cache.New(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create order cache", zap.Error(err))
	}

	ctx := context.Background()
	if benchSize > 0 {
		runBench(ctx, oc, zapLogger, benchSize, seed)
		return
	}
	runDemo(ctx, oc, zapLogger)
}

// runDemo replays the standard eight-order walk-through and prints the
// matching size per security.
func runDemo(ctx context.Context, oc *cache.OrderCache, log *zap.Logger) {
	orders := []model.Order{
		model.NewOrder("OrdId1", "SecId1", model.SideBuy, 1000, "User1", "CompanyA"),
		model.NewOrder("OrdId2", "SecId2", model.SideSell, 3000, "User2", "CompanyB"),
		model.NewOrder("OrdId3", "SecId1", model.SideSell, 500, "User3", "CompanyA"),
		model.NewOrder("OrdId4", "SecId2", model.SideBuy, 600, "User4", "CompanyC"),
		model.NewOrder("OrdId5", "SecId2", model.SideBuy, 100, "User5", "CompanyB"),
		model.NewOrder("OrdId6", "SecId3", model.SideBuy, 1000, "User6", "CompanyD"),
		model.NewOrder("OrdId7", "SecId2", model.SideBuy, 2000, "User7", "CompanyE"),
		model.NewOrder("OrdId8", "SecId2", model.SideSell, 5000, "User8", "CompanyE"),
	}
	for _, o := range orders {
		if err := oc.AddOrder(ctx, o); err != nil {
			log.Fatal("Failed to add order", zap.String("order_id", o.OrderID), zap.Error(err))
		}
	}
	for _, sec := range []string{"SecId1", "SecId2", "SecId3"} {
		size, err := oc.GetMatchingSizeForSecurity(ctx, sec)
		if err != nil {
			log.Fatal("Matching size query failed", zap.String("security_id", sec), zap.Error(err))
		}
		fmt.Printf("%s: matching size %d\n", sec, size)
	}
}

// runBench inserts n random orders on one security and times insertion,
// matching and bulk cancellation.
func runBench(ctx context.Context, oc *cache.OrderCache, log *zap.Logger, n int, seed int64) {
	rng := rand.New(rand.NewSource(seed))
	companies := []string{"CompanyA", "CompanyB", "CompanyC", "CompanyD"}

	start := time.Now()
	for i := 0; i < n; i++ {
		side := model.SideBuy
		if rng.Intn(2) == 0 {
			side = model.SideSell
		}
		o := model.NewOrder(
			fmt.Sprintf("ord-%d", i),
			"SecId1",
			side,
			uint64(rng.Intn(100)+1),
			fmt.Sprintf("user-%d", i%16),
			companies[rng.Intn(len(companies))],
		)
		if err := oc.AddOrder(ctx, o); err != nil {
			log.Fatal("Failed to add order", zap.Error(err))
		}
	}
	log.Info("inserted orders", zap.Int("count", n), zap.Duration("elapsed", time.Since(start)))

	start = time.Now()
	size, err := oc.GetMatchingSizeForSecurity(ctx, "SecId1")
	if err != nil {
		log.Fatal("Matching size query failed", zap.Error(err))
	}
	log.Info("matching size computed",
		zap.Uint64("matching_size", size),
		zap.Duration("elapsed", time.Since(start)))

	start = time.Now()
	if err := oc.CancelOrdersForSecurity(ctx, "SecId1", 0); err != nil {
		log.Fatal("Bulk cancel failed", zap.Error(err))
	}
	log.Info("cancelled all orders",
		zap.Int("remaining", oc.Size()),
		zap.Duration("elapsed", time.Since(start)))
}
