// Command mnemex-lifecycled runs the lifecycle engine's background
// evaluate and cleanup loops (§4.9) as a standalone daemon, grounded on
// the teacher's cmd/memento-backup service loop: flag-parsed overrides
// over config.LoadConfig, a signal.Notify shutdown wait, the teacher's own
// "Press Ctrl+C" banner, and a periodic metrics log line.
package main

import (
	"context"
	"flag"
	"log"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/scrypster/mnemex/internal/config"
	"github.com/scrypster/mnemex/internal/engine"
	"github.com/scrypster/mnemex/internal/storage"
	"github.com/scrypster/mnemex/internal/storage/postgres"
	"github.com/scrypster/mnemex/internal/storage/sqlite"
	"github.com/scrypster/mnemex/internal/vectorindex/pgvectorindex"
	"github.com/scrypster/mnemex/internal/vectorindex/sqlitevec"
	"github.com/scrypster/mnemex/pkg/types"
)

var (
	dsn          = flag.String("dsn", "", "Database DSN (overrides config)")
	dbEngine     = flag.String("db-engine", "", "sqlite or postgres (overrides config)")
	workspaceArg = flag.String("workspaces", "", "Comma-separated workspace IDs to sweep (required)")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("mnemex-lifecycled: loading configuration: %v", err)
	}
	if *dsn != "" {
		cfg.Database.DSN = *dsn
	}
	if *dbEngine != "" {
		cfg.Database.Engine = *dbEngine
	}

	workspaceIDs := splitNonEmpty(*workspaceArg)
	if len(workspaceIDs) == 0 {
		log.Fatal("mnemex-lifecycled: -workspaces is required")
	}

	ctx := context.Background()
	store, closeFn, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("mnemex-lifecycled: opening store: %v", err)
	}
	defer closeFn()

	decayFn := types.NewExponentialDecay(decayLambda(cfg.Engine.DecayHalfLifeHours))
	manager := engine.NewManager(store, engine.ManagerConfig{
		DecayFunction:     decayFn,
		EvaluateInterval:  time.Duration(cfg.Engine.EvaluateIntervalSeconds) * time.Second,
		CleanupInterval:   time.Duration(cfg.Engine.CleanupIntervalSeconds) * time.Second,
		EventRetention:    time.Duration(cfg.Engine.EventRetentionDays) * 24 * time.Hour,
		EvaluateBatchSize: cfg.Engine.EvaluateBatchSize,
		ArchiveRetention:  time.Duration(cfg.Engine.ArchiveRetentionDays) * 24 * time.Hour,
	})

	if err := manager.Start(ctx, workspaceIDs); err != nil {
		log.Fatalf("mnemex-lifecycled: starting manager: %v", err)
	}

	log.Printf("mnemex-lifecycled started: workspaces=%v evaluate_interval=%ds cleanup_interval=%ds",
		workspaceIDs, cfg.Engine.EvaluateIntervalSeconds, cfg.Engine.CleanupIntervalSeconds)
	log.Println("Press Ctrl+C to stop")

	metricsTicker := time.NewTicker(time.Minute)
	defer metricsTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-sigCh:
			log.Println("mnemex-lifecycled: shutting down")
			manager.Stop()
			log.Println("mnemex-lifecycled: stopped")
			return
		case <-metricsTicker.C:
			m := manager.GetMetrics()
			log.Printf("mnemex-lifecycled: evaluated=%d transitioned=%d archived=%d expired=%d errors=%d",
				m.EvaluatedTotal, m.TransitionsTotal, m.ArchivedTotal, m.ExpiredTotal, m.ErrorsTotal)
		}
	}
}

// decayLambda converts a half-life in hours to an exponential decay rate
// over elapsed days, matching ComputeDecayScore's elapsed-days basis.
func decayLambda(halfLifeHours float64) float64 {
	if halfLifeHours <= 0 {
		halfLifeHours = 168.0
	}
	halfLifeDays := halfLifeHours / 24.0
	return math.Ln2 / halfLifeDays
}

func splitNonEmpty(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// openStore opens the configured backend and wires its vector index, if
// one is available, falling back to a store with vector search disabled
// rather than failing the daemon outright.
func openStore(ctx context.Context, cfg *config.Config) (storage.MemoryStore, func(), error) {
	if cfg.Database.Engine == "postgres" {
		adapter, err := postgres.Open(ctx, cfg.Database.DSN, cfg.Database.Dimension)
		if err != nil {
			return nil, nil, err
		}
		var index *pgvectorindex.Index
		if adapter.PgvectorAvailable {
			index = pgvectorindex.New(adapter.DB(), cfg.Database.Dimension)
		}
		return postgres.NewMemoryStore(adapter, index), func() { adapter.Close() }, nil
	}

	adapter, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		return nil, nil, err
	}
	index, err := sqlitevec.New(ctx, adapter.DB(), cfg.Database.Dimension)
	if err != nil {
		log.Printf("mnemex-lifecycled: sqlite-vec unavailable, continuing without vector search: %v", err)
		index = nil
	}
	return sqlite.NewMemoryStore(adapter, index), func() { adapter.Close() }, nil
}
