// Package syncer runs the full sync pipeline over the ticker universe:
// fetch, fuse, derive, commit, one ticker at a time.
package syncer

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gobstocks/fundsync/internal/clients/fmp"
	"github.com/gobstocks/fundsync/internal/domain"
	"github.com/gobstocks/fundsync/internal/fuse"
	"github.com/gobstocks/fundsync/internal/metrics"
	"github.com/gobstocks/fundsync/internal/numeric"
	"github.com/gobstocks/fundsync/internal/snapshot"
)

// DefaultDelay is the pause between tickers; it keeps the whole-universe
// run well inside the provider's request budget even with five calls per
// ticker.
const DefaultDelay = 3 * time.Second

// maxDescriptionLen caps the stored company description.
const maxDescriptionLen = 500

// Options configures a sync run.
type Options struct {
	Limit         int           // max tickers to process, 0 = all
	Only          []string      // explicit ticker list, overrides the universe
	StartTicker   string        // resume the universe from this symbol
	DryRun        bool          // run the pipeline but skip the commit
	Delay         time.Duration // pause between tickers, 0 = DefaultDelay
	BatchSize     int           // progress log grouping, 0 = 1
	SkipFresh     bool          // skip tickers that already have a current snapshot
	Strict        bool
	RequiredYears int
	HorizonYears  int
}

// Orchestrator drives the sync pipeline.
type Orchestrator struct {
	market   MarketData
	store    SnapshotStore
	universe Universe
	builder  *fuse.Builder
	calc     *metrics.Calculator
	opts     Options
	log      zerolog.Logger
	now      func() time.Time
}

// New creates an orchestrator. The builder and calculator are constructed
// here so strictness and horizon are configured in exactly one place.
func New(market MarketData, store SnapshotStore, uni Universe, opts Options, log zerolog.Logger) *Orchestrator {
	if opts.Delay == 0 {
		opts.Delay = DefaultDelay
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1
	}
	if opts.HorizonYears <= 0 {
		opts.HorizonYears = domain.DefaultHorizonYears
	}
	if opts.RequiredYears <= 0 {
		opts.RequiredYears = opts.HorizonYears
	}
	componentLog := log.With().Str("component", "syncer").Logger()
	return &Orchestrator{
		market:   market,
		store:    store,
		universe: uni,
		builder: fuse.NewBuilder(fuse.Config{
			Horizon:       opts.HorizonYears,
			RequiredYears: opts.RequiredYears,
			Strict:        opts.Strict,
			Log:           componentLog,
		}),
		calc: metrics.NewCalculator(metrics.Config{
			Strict: opts.Strict,
			Log:    componentLog,
		}),
		opts: opts,
		log:  componentLog,
		now:  time.Now,
	}
}

// Sync processes the selected tickers sequentially and returns the run
// report. Per-ticker failures are recorded in the report and never abort
// the run; Sync itself only errors when the ticker list cannot be loaded
// or the context is cancelled.
func (o *Orchestrator) Sync(ctx context.Context) (*domain.SyncReport, error) {
	tickers, err := o.selectTickers()
	if err != nil {
		return nil, err
	}

	report := &domain.SyncReport{
		RunID:     uuid.NewString(),
		StartedAt: o.now(),
		Total:     len(tickers),
		DryRun:    o.opts.DryRun,
	}

	o.log.Info().
		Str("run_id", report.RunID).
		Int("tickers", len(tickers)).
		Bool("strict", o.opts.Strict).
		Bool("dry_run", o.opts.DryRun).
		Msg("Starting sync run")

	for i, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			report.FinishedAt = o.now()
			return report, fmt.Errorf("sync run cancelled after %d tickers: %w", i, err)
		}

		outcome := o.syncOne(ctx, ticker)
		report.Outcomes = append(report.Outcomes, outcome)
		switch {
		case outcome.Skipped:
			report.Skipped++
		case outcome.Success:
			report.Success++
		default:
			report.Failed++
		}

		if (i+1)%o.opts.BatchSize == 0 || i+1 == len(tickers) {
			o.logProgress(report, i+1)
		}

		// No need to pace after the final ticker.
		if i+1 < len(tickers) && !outcome.Skipped {
			if err := sleepCtx(ctx, o.opts.Delay); err != nil {
				report.FinishedAt = o.now()
				return report, fmt.Errorf("sync run cancelled after %d tickers: %w", i+1, err)
			}
		}
	}

	report.FinishedAt = o.now()
	o.log.Info().
		Str("run_id", report.RunID).
		Int("success", report.Success).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Dur("elapsed", report.FinishedAt.Sub(report.StartedAt)).
		Msg("Sync run finished")
	return report, nil
}

func (o *Orchestrator) selectTickers() ([]string, error) {
	if len(o.opts.Only) > 0 {
		return o.opts.Only, nil
	}
	listed, err := o.universe.ListActive(o.opts.StartTicker)
	if err != nil {
		return nil, fmt.Errorf("failed to load ticker universe: %w", err)
	}
	symbols := make([]string, 0, len(listed))
	for _, t := range listed {
		symbols = append(symbols, t.Symbol)
	}
	if o.opts.Limit > 0 && len(symbols) > o.opts.Limit {
		symbols = symbols[:o.opts.Limit]
	}
	return symbols, nil
}

// syncOne runs the whole pipeline for a single ticker and maps any failure
// to the stage it happened in.
func (o *Orchestrator) syncOne(ctx context.Context, ticker string) domain.SyncOutcome {
	start := o.now()
	outcome := domain.SyncOutcome{Ticker: ticker}

	if o.opts.SkipFresh {
		current, err := o.store.GetCurrent(ticker)
		if err == nil && o.isFresh(current) {
			o.log.Debug().Str("ticker", ticker).Msg("Already synced today, skipping")
			outcome.Skipped = true
			outcome.Elapsed = o.now().Sub(start)
			return outcome
		}
	}

	fail := func(stage string, err error) domain.SyncOutcome {
		o.log.Warn().Str("ticker", ticker).Str("stage", stage).Err(err).Msg("Ticker sync failed")
		outcome.Stage = stage
		outcome.Error = err.Error()
		outcome.Elapsed = o.now().Sub(start)
		return outcome
	}

	profile, keyMetrics, income, cashFlow, prices, err := o.fetchAll(ctx, ticker)
	if err != nil {
		return fail(domain.StageFetching, err)
	}

	// A delisted or unpriced ticker must never replace a good snapshot
	// with a zero-price one.
	if !numeric.Finite(profile.Price) || profile.Price <= 0 {
		return fail(domain.StageDeriving, fmt.Errorf("current price %v is not positive", profile.Price))
	}

	series, revenue, err := o.builder.Build(ticker, keyMetrics, income, cashFlow, prices)
	if err != nil {
		return fail(domain.StageFusing, err)
	}

	assumptions, err := o.calc.Calculate(ticker, series, profile.Price, revenue)
	if err != nil {
		return fail(domain.StageDeriving, err)
	}

	if !o.opts.DryRun {
		syncedAt := o.now()
		meta := domain.SyncMetadata{
			SyncedAt:      syncedAt,
			Source:        domain.DataSourceVerified,
			DataYears:     len(series),
			StrictMode:    o.opts.Strict,
			RequiredYears: o.opts.RequiredYears,
		}
		if err := o.store.CommitCurrent(ticker, series, assumptions, companyFromProfile(profile, syncedAt), meta); err != nil {
			return fail(domain.StageCommitting, err)
		}
		if err := o.universe.MarkSynced(ticker, syncedAt); err != nil {
			// The snapshot committed; a stale last_sync_at only costs a
			// redundant re-sync next run.
			o.log.Warn().Str("ticker", ticker).Err(err).Msg("Failed to record sync time")
		}
	}

	outcome.Success = true
	outcome.DataYears = len(series)
	outcome.Elapsed = o.now().Sub(start)
	o.log.Info().
		Str("ticker", ticker).
		Int("years", len(series)).
		Dur("elapsed", outcome.Elapsed).
		Bool("dry_run", o.opts.DryRun).
		Msg("Ticker synced")
	return outcome
}

// isFresh reports whether an existing current snapshot makes re-syncing the
// ticker redundant: committed earlier the same UTC day, carrying at least
// the required years, with a positive current price. A snapshot failing the
// validity half is treated as never synced so the next run repairs it.
func (o *Orchestrator) isFresh(current *snapshot.Stored) bool {
	if current == nil {
		return false
	}
	syncedY, syncedM, syncedD := current.Metadata.SyncedAt.UTC().Date()
	nowY, nowM, nowD := o.now().UTC().Date()
	if syncedY != nowY || syncedM != nowM || syncedD != nowD {
		return false
	}
	if len(current.Series) < o.opts.RequiredYears {
		return false
	}
	return current.Assumptions.CurrentPrice > 0
}

// fetchAll pulls the five provider payloads for one ticker.
func (o *Orchestrator) fetchAll(ctx context.Context, ticker string) (
	*fmp.Profile, []fmp.KeyMetricsRow, []fmp.IncomeRow, []fmp.CashFlowRow, []fmp.PricePoint, error,
) {
	profile, err := o.market.FetchProfile(ctx, ticker)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	keyMetrics, err := o.market.FetchKeyMetrics(ctx, ticker, o.opts.HorizonYears)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	income, err := o.market.FetchIncomeStatement(ctx, ticker, o.opts.HorizonYears)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	cashFlow, err := o.market.FetchCashFlow(ctx, ticker, o.opts.HorizonYears)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	to := o.now()
	from := to.AddDate(-o.opts.HorizonYears, 0, 0)
	prices, err := o.market.FetchHistoricalPrices(ctx, ticker, from, to)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	return profile, keyMetrics, income, cashFlow, prices, nil
}

func (o *Orchestrator) logProgress(report *domain.SyncReport, done int) {
	elapsed := o.now().Sub(report.StartedAt)
	remaining := report.Total - done
	var eta time.Duration
	if done > 0 && remaining > 0 {
		eta = time.Duration(float64(elapsed) / float64(done) * float64(remaining)).Round(time.Second)
	}
	o.log.Info().
		Int("done", done).
		Int("total", report.Total).
		Int("success", report.Success).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Dur("eta", eta).
		Msg("Sync progress")
}

func companyFromProfile(p *fmp.Profile, syncedAt time.Time) domain.CompanySnapshot {
	description := p.Description
	if utf8.RuneCountInString(description) > maxDescriptionLen {
		runes := []rune(description)
		description = string(runes[:maxDescriptionLen])
	}
	name := p.CompanyName
	if name == "" {
		name = p.Symbol
	}
	beta := p.Beta
	if beta == 0 {
		beta = 1.0
	}
	return domain.CompanySnapshot{
		Symbol:      p.Symbol,
		Name:        name,
		Sector:      defaultStr(p.Sector, "Unknown"),
		Industry:    defaultStr(p.Industry, "Unknown"),
		MarketCap:   p.MktCap,
		Beta:        beta,
		Exchange:    defaultStr(p.ExchangeShortName, "NYSE"),
		Currency:    defaultStr(p.Currency, "USD"),
		Country:     defaultStr(p.Country, "US"),
		Website:     p.Website,
		Description: description,
		Image:       p.Image,
		DataSource:  domain.DataSourceVerified,
		SyncedAt:    syncedAt.UTC().Format(time.RFC3339),
	}
}

func defaultStr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
