package syncer

import (
	"context"
	"time"

	"github.com/gobstocks/fundsync/internal/clients/fmp"
	"github.com/gobstocks/fundsync/internal/domain"
	"github.com/gobstocks/fundsync/internal/snapshot"
	"github.com/gobstocks/fundsync/internal/universe"
)

// MarketData is the provider surface the orchestrator consumes.
type MarketData interface {
	FetchProfile(ctx context.Context, ticker string) (*fmp.Profile, error)
	FetchKeyMetrics(ctx context.Context, ticker string, limit int) ([]fmp.KeyMetricsRow, error)
	FetchIncomeStatement(ctx context.Context, ticker string, limit int) ([]fmp.IncomeRow, error)
	FetchCashFlow(ctx context.Context, ticker string, limit int) ([]fmp.CashFlowRow, error)
	FetchHistoricalPrices(ctx context.Context, ticker string, from, to time.Time) ([]fmp.PricePoint, error)
}

// SnapshotStore persists and reads back versioned snapshots.
type SnapshotStore interface {
	CommitCurrent(ticker string, series domain.AnnualSeries, assumptions domain.Assumptions,
		company domain.CompanySnapshot, meta domain.SyncMetadata) error
	GetCurrent(ticker string) (*snapshot.Stored, error)
}

// Universe lists the tickers a run iterates over.
type Universe interface {
	ListActive(startSymbol string) ([]universe.Ticker, error)
	MarkSynced(symbol string, at time.Time) error
}
