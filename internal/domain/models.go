// Package domain provides the core models shared by the sync pipeline:
// fused annual records, derived assumptions, company metadata and per-run
// sync reporting.
package domain

import "time"

// DataSourceVerified tags records fused from verified provider payloads.
const DataSourceVerified = "fmp-verified"

// DefaultHorizonYears is the maximum number of fiscal years retained in a
// fused series, and the completeness requirement under strict mode.
const DefaultHorizonYears = 30

// RequiredReturn is the fixed policy discount rate, in percent.
const RequiredReturn = 10.0

// AnnualRecord holds one fiscal year's per-share fundamentals plus the
// yearly price range for a ticker. A record is complete when all six
// numeric fields are present and finite; only complete records survive
// fusion.
type AnnualRecord struct {
	Year              int     `json:"year"`
	EarningsPerShare  float64 `json:"earningsPerShare"`
	CashFlowPerShare  float64 `json:"cashFlowPerShare"`
	BookValuePerShare float64 `json:"bookValuePerShare"`
	DividendPerShare  float64 `json:"dividendPerShare"`
	PriceHigh         float64 `json:"priceHigh"`
	PriceLow          float64 `json:"priceLow"`
	AutoFetched       bool    `json:"autoFetched"`
	DataSource        string  `json:"dataSource"`
}

// AnnualSeries is an ordered (year descending), year-deduplicated list of
// complete annual records, capped at the configured horizon. It is built
// fresh per sync run and never mutated after construction.
type AnnualSeries []AnnualRecord

// BaseYear returns the most recent fiscal year in the series, or 0 for an
// empty series.
func (s AnnualSeries) BaseYear() int {
	if len(s) == 0 {
		return 0
	}
	return s[0].Year
}

// RevenuePoint is one year of total revenue, used for the sales growth rate.
type RevenuePoint struct {
	Year  int     `json:"year"`
	Value float64 `json:"value"`
}

// Assumptions is the derived scalar bundle persisted alongside a series.
// Growth rates and target ratios are percentages / multiples already
// clamped to their policy ranges; under lenient mode a value that could not
// be derived is zero.
type Assumptions struct {
	CurrentPrice        float64 `json:"currentPrice"`
	CurrentDividend     float64 `json:"currentDividend"`
	GrowthRateEPS       float64 `json:"growthRateEPS"`
	GrowthRateSales     float64 `json:"growthRateSales"`
	GrowthRateCF        float64 `json:"growthRateCF"`
	GrowthRateBV        float64 `json:"growthRateBV"`
	GrowthRateDiv       float64 `json:"growthRateDiv"`
	TargetPE            float64 `json:"targetPE"`
	TargetPCF           float64 `json:"targetPCF"`
	TargetPBV           float64 `json:"targetPBV"`
	TargetYield         float64 `json:"targetYield"`
	RequiredReturn      float64 `json:"requiredReturn"`
	DividendPayoutRatio float64 `json:"dividendPayoutRatio"`
	BaseYear            int     `json:"baseYear"`
}

// CompanySnapshot is immutable company metadata captured at sync time.
type CompanySnapshot struct {
	Symbol      string  `json:"symbol"`
	Name        string  `json:"name"`
	Sector      string  `json:"sector"`
	Industry    string  `json:"industry"`
	MarketCap   float64 `json:"marketCap"`
	Beta        float64 `json:"beta"`
	Exchange    string  `json:"exchange"`
	Currency    string  `json:"currency"`
	Country     string  `json:"country"`
	Website     string  `json:"website"`
	Description string  `json:"description"`
	Image       string  `json:"image"`
	DataSource  string  `json:"dataSource"`
	SyncedAt    string  `json:"syncedAt"`
}

// SyncMetadata is the free-form audit bag stored with each snapshot.
type SyncMetadata struct {
	SyncedAt      time.Time `json:"syncedAt"`
	Source        string    `json:"source"`
	DataYears     int       `json:"dataYears"`
	StrictMode    bool      `json:"strictMode"`
	RequiredYears int       `json:"requiredYears"`
}

// SyncOutcome is the per-ticker result recorded by the orchestrator.
type SyncOutcome struct {
	Ticker    string        `json:"ticker"`
	Success   bool          `json:"success"`
	Skipped   bool          `json:"skipped"`
	Error     string        `json:"error,omitempty"`
	Stage     string        `json:"stage,omitempty"`
	DataYears int           `json:"dataYears"`
	Elapsed   time.Duration `json:"elapsed"`
}

// SyncReport aggregates a whole run. It is write-once at the end of the run
// and emitted as a log artifact, never persisted to the snapshot store.
type SyncReport struct {
	RunID      string        `json:"runId"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Total      int           `json:"total"`
	Success    int           `json:"success"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	DryRun     bool          `json:"dryRun"`
	Outcomes   []SyncOutcome `json:"outcomes"`
}

// Failures returns the outcomes that ended in error, in run order.
func (r *SyncReport) Failures() []SyncOutcome {
	var failed []SyncOutcome
	for _, o := range r.Outcomes {
		if !o.Success && !o.Skipped {
			failed = append(failed, o)
		}
	}
	return failed
}
