package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/gobstocks/fundsync/internal/clients/fmp"
	"github.com/gobstocks/fundsync/internal/config"
	"github.com/gobstocks/fundsync/internal/database"
	"github.com/gobstocks/fundsync/internal/scheduler"
	"github.com/gobstocks/fundsync/internal/snapshot"
	"github.com/gobstocks/fundsync/internal/syncer"
	"github.com/gobstocks/fundsync/internal/universe"
	"github.com/gobstocks/fundsync/pkg/logger"
)

func main() {
	var (
		limit     = flag.Int("limit", 0, "max tickers to sync this run (0 = all)")
		batchSize = flag.Int("batch-size", 1, "tickers per progress report")
		delayMS   = flag.Int("delay", 0, "milliseconds between tickers (0 = config default)")
		start     = flag.String("start", "", "resume the universe from this ticker")
		only      = flag.String("only", "", "comma-separated tickers to sync instead of the universe")
		addTicker = flag.String("add", "", "comma-separated tickers to add to the universe, then exit")
		dryRun    = flag.Bool("dry-run", false, "run the pipeline without writing snapshots")
		resync    = flag.Bool("resync", false, "re-sync tickers that already have a current snapshot")
		verbose   = flag.Bool("verbose", false, "debug logging")
		schedule  = flag.String("schedule", "", "cron expression; run as a daemon instead of once (empty = config default when -daemon)")
		daemon    = flag.Bool("daemon", false, "run on the configured cron schedule")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		bl := bootstrapLog()
		bl.Fatal().Err(err).Msg("Failed to load configuration")
	}

	level := cfg.LogLevel
	if *verbose {
		level = "debug"
	}
	log := logger.New(logger.Config{Level: level, Pretty: true})
	logger.SetGlobalLogger(log)

	log.Info().Str("data_dir", cfg.DataDir).Bool("strict", cfg.StrictSync).Msg("Starting fundsync")

	db, err := database.New(database.Config{Path: cfg.DatabasePath(), Name: "fundsync"})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	if err := db.Migrate(snapshot.Schema); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate snapshot schema")
	}
	if err := db.Migrate(universe.Schema); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate universe schema")
	}

	universeRepo := universe.NewRepository(db.Conn(), log)

	if *addTicker != "" {
		for _, symbol := range splitList(*addTicker) {
			if err := universeRepo.Upsert(symbol, ""); err != nil {
				log.Fatal().Err(err).Str("ticker", symbol).Msg("Failed to add ticker")
			}
			log.Info().Str("ticker", symbol).Msg("Ticker added to universe")
		}
		return
	}

	client := fmp.New(fmp.Config{
		BaseURL: cfg.FMPBaseURL,
		APIKey:  cfg.FMPAPIKey,
		Limiter: rate.NewLimiter(rate.Limit(float64(cfg.RatePerMinute)/60.0), 1),
		Log:     log,
	})
	store := snapshot.NewRepository(db.Conn(), log)

	delay := cfg.SyncDelay
	if *delayMS > 0 {
		delay = time.Duration(*delayMS) * time.Millisecond
	}

	opts := syncer.Options{
		Limit:         *limit,
		Only:          splitList(*only),
		StartTicker:   *start,
		DryRun:        *dryRun,
		Delay:         delay,
		BatchSize:     *batchSize,
		SkipFresh:     !*resync,
		Strict:        cfg.StrictSync,
		RequiredYears: cfg.RequiredYears,
	}
	orchestrator := syncer.New(client, store, universeRepo, opts, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *schedule != "" || *daemon {
		cronExpr := cfg.CronExpression
		if *schedule != "" {
			cronExpr = *schedule
		}
		runScheduled(ctx, cronExpr, orchestrator, log)
		return
	}

	report, err := orchestrator.Sync(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Sync run aborted")
	}
	for _, failure := range report.Failures() {
		log.Warn().
			Str("ticker", failure.Ticker).
			Str("stage", failure.Stage).
			Str("error", failure.Error).
			Msg("Ticker failed")
	}
	// Per-ticker failures are reported above but never fail the run:
	// the job's contract is best-effort over the whole universe.
	log.Info().
		Int("success", report.Success).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Msg("Done")
}

// syncJob adapts the orchestrator to the scheduler's Job interface.
type syncJob struct {
	ctx          context.Context
	orchestrator *syncer.Orchestrator
}

func (j *syncJob) Name() string { return "sync-universe" }

func (j *syncJob) Run() error {
	_, err := j.orchestrator.Sync(j.ctx)
	return err
}

func runScheduled(ctx context.Context, cronExpr string, orchestrator *syncer.Orchestrator, log zerolog.Logger) {
	sched := scheduler.New(log)
	if err := sched.AddJob(cronExpr, &syncJob{ctx: ctx, orchestrator: orchestrator}); err != nil {
		log.Fatal().Err(err).Str("schedule", cronExpr).Msg("Failed to register sync job")
	}
	sched.Start()
	defer sched.Stop()

	log.Info().Str("schedule", cronExpr).Msg("Running in daemon mode")
	<-ctx.Done()
	log.Info().Msg("Shutting down")
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// bootstrapLog is used before configuration determines the real log level.
func bootstrapLog() zerolog.Logger {
	return logger.New(logger.Config{Level: "info", Pretty: true})
}
