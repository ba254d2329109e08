package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/khalecl/supply-chain-idle/internal/api"
	"github.com/khalecl/supply-chain-idle/internal/catalog"
	"github.com/khalecl/supply-chain-idle/internal/config"
	"github.com/khalecl/supply-chain-idle/internal/engine"
	"github.com/khalecl/supply-chain-idle/internal/geology"
	"github.com/khalecl/supply-chain-idle/internal/metrics"
	"github.com/khalecl/supply-chain-idle/internal/persistence"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the simulation and HTTP API",
		Long: `Load the saved game (or start a fresh one), drive it in real time and
serve it over HTTP until interrupted. The game is autosaved periodically
and once more on shutdown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfg)
		},
	}
}

func openDB(path string) (*persistence.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := persistence.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func money(v float64) string { return "$" + humanize.FormatFloat("#,###.##", v) }

// loadOrNew restores the saved game, or starts a fresh one when the slot is
// empty. Saves migrated from formats without a seed take the configured one.
func loadOrNew(ctx context.Context, db *persistence.DB, seed int64) (*engine.Game, *geology.Map, error) {
	cat := catalog.Default()

	snap, err := db.LoadGame(ctx)
	loaded := err == nil
	if err != nil && !errors.Is(err, persistence.ErrNoSave) {
		return nil, nil, fmt.Errorf("load game: %w", err)
	}
	if loaded && snap.Seed != 0 {
		seed = snap.Seed
	}

	geo := geology.New(seed, cat)
	game := engine.NewGame(engine.Options{Seed: seed, Catalog: cat, Geology: geo})
	if !loaded {
		slog.Info("no saved game found, starting fresh", "seed", seed)
		return game, geo, nil
	}

	snap.Seed = seed
	if err := game.Restore(snap); err != nil {
		return nil, nil, err
	}
	return game, geo, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	slog.Info("supply chain idle starting", "port", cfg.Server.Port, "db", cfg.Storage.DBPath)

	// ── Database ──────────────────────────────────────────────────────
	db, err := openDB(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	// ── Game ──────────────────────────────────────────────────────────
	game, geo, err := loadOrNew(ctx, db, cfg.Sim.Seed)
	if err != nil {
		return err
	}
	slog.Info("game ready",
		"seed", game.Seed(),
		"money", money(game.Money()),
		"game_time", game.GameTime(),
	)

	// ── Metrics ───────────────────────────────────────────────────────
	reg, cmds, err := metrics.NewRegistry(game)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	subID, events := game.Subscribe(1024)
	defer game.Unsubscribe(subID)
	go func() {
		for e := range events {
			cmds.RecordEvent(e)
		}
	}()

	// ── Engine ────────────────────────────────────────────────────────
	eng := engine.NewEngine(game)
	eng.Interval = cfg.Sim.TickInterval
	eng.SetSpeed(cfg.Sim.Speed)
	eng.AutosaveInterval = cfg.Sim.AutosaveInterval
	eng.OnAutosave = func(ctx context.Context) {
		snap := game.Snapshot()
		if err := db.SaveGame(ctx, snap); err != nil {
			slog.Error("autosave failed", "error", err)
			return
		}
		slog.Debug("autosaved", "game_time", snap.GameTime, "money", money(snap.Money))
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.Server.AdminKey == "" {
		slog.Warn("SCIDLE_SERVER_ADMIN_KEY not set, admin endpoints will be disabled")
	}
	apiServer := &api.Server{
		Game:        game,
		Eng:         eng,
		Geo:         geo,
		DB:          db,
		Metrics:     cmds,
		Gatherer:    reg,
		Limiter:     api.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst),
		Port:        cfg.Server.Port,
		AdminKey:    cfg.Server.AdminKey,
		CORSOrigins: cfg.Server.CORSOrigins,
	}
	apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("API: http://localhost:%d/api/v1/state\n", cfg.Server.Port)
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown failed", "error", err)
	}

	// Final save on shutdown.
	slog.Info("final save...")
	if err := db.SaveGame(shutdownCtx, game.Snapshot()); err != nil {
		return fmt.Errorf("final save: %w", err)
	}
	fmt.Println("Simulation stopped. Game saved.")
	return nil
}
