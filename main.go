package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"

	"github.com/pthm-cable/weaver/config"
	"github.com/pthm-cable/weaver/game"
	"github.com/pthm-cable/weaver/persistence"
	"github.com/pthm-cable/weaver/telemetry"
)

func main() {
	os.Exit(execute())
}

// execute runs the command; deferred cleanup happens before the exit code is returned.
func execute() int {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	seed := flag.Uint64("seed", 0, "RNG seed (0 = time-based)")
	days := flag.Int("days", 0, "Days to simulate (0 = use config)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot (empty = use config)")
	checkpointPath := flag.String("checkpoint", "", "SQLite file to write checkpoints to (empty = use config)")
	resume := flag.String("resume", "", "SQLite checkpoint to resume from")
	workers := flag.Int("workers", -1, "Worker goroutines for per-animal phases (-1 = use config, 0 = all CPUs)")
	logStats := flag.Bool("log-stats", false, "Output window stats via slog")
	snapshotDir := flag.String("snapshot-dir", "", "Directory for bookmark snapshot files")

	flag.Parse()

	// Text logs on a terminal, JSON when piped.
	var handler slog.Handler
	if isatty.IsTerminal(os.Stdout.Fd()) {
		handler = slog.NewTextHandler(os.Stdout, nil)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, nil)
	}
	slog.SetDefault(slog.New(handler))

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}
	cfg := config.Cfg()

	if *days > 0 {
		cfg.Simulation.Days = *days
	}
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}
	if *checkpointPath != "" {
		cfg.Checkpoint.Path = *checkpointPath
	}
	if *workers >= 0 {
		cfg.Parallel.Enabled = true
		cfg.Parallel.Workers = *workers
	}

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = uint64(time.Now().UnixNano())
	}

	output, err := telemetry.NewOutputManager(cfg.Output.Dir)
	if err != nil {
		slog.Error("failed to create output", "error", err)
		return 1
	}
	defer output.Close()
	if err := output.WriteConfig(cfg); err != nil {
		slog.Error("failed to write config", "error", err)
	}

	opts := game.Options{
		Seed:        rngSeed,
		RunID:       uuid.NewString(),
		Output:      output,
		SnapshotDir: *snapshotDir,
		LogStats:    *logStats,
	}

	var sim *game.Simulation
	if *resume != "" {
		// A resumed run keeps its original id and seed.
		opts.RunID = ""
		sim, err = persistence.Load(*resume, cfg, opts)
	} else {
		sim, err = game.New(cfg, opts)
	}
	if err != nil {
		slog.Error("failed to create simulation", "error", err)
		return 1
	}
	defer sim.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return run(ctx, sim, cfg)
}

// run steps the simulation until the configured day and returns the exit code.
func run(ctx context.Context, sim *game.Simulation, cfg *config.Config) int {
	slog.Info("starting simulation",
		"run_id", sim.RunID(),
		"seed", sim.Seed(),
		"day", sim.Day(),
		"days", cfg.Simulation.Days,
		"animals", humanize.Comma(int64(sim.Population())),
		"workers", cfg.Parallel.Workers,
	)

	start := time.Now()
	code := 0
	for sim.Day() < cfg.Simulation.Days {
		if ctx.Err() != nil {
			slog.Warn("interrupted", "day", sim.Day())
			code = 130
			break
		}
		if err := sim.Step(); err != nil {
			slog.Error("simulation stopped", "day", sim.Day(), "error", err)
			code = 2
			break
		}
		if sim.Population() == 0 {
			slog.Info("community extinct", "day", sim.Day())
			break
		}
		if every := cfg.Checkpoint.Every; every > 0 && cfg.Checkpoint.Path != "" && sim.Day()%every == 0 {
			if err := persistence.Save(cfg.Checkpoint.Path, sim); err != nil {
				slog.Error("failed to save checkpoint", "error", err)
			}
		}
	}

	sim.SaveSnapshot(nil)
	if cfg.Checkpoint.Path != "" && code != 2 {
		if err := persistence.Save(cfg.Checkpoint.Path, sim); err != nil {
			slog.Error("failed to save checkpoint", "error", err)
			code = 1
		}
	}

	elapsed := time.Since(start)
	slog.Info("simulation finished",
		"day", sim.Day(),
		"animals", humanize.Comma(int64(sim.Population())),
		"elapsed", elapsed.Round(time.Millisecond),
		"started", humanize.Time(start),
	)
	return code
}
