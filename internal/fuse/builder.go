// Package fuse merges heterogeneous provider payloads into the canonical
// per-year table. Field values follow an explicit source-precedence order,
// partial years are dropped rather than guessed at, and the result is
// sorted year-descending and capped at the configured horizon.
package fuse

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/gobstocks/fundsync/internal/clients/fmp"
	"github.com/gobstocks/fundsync/internal/domain"
	"github.com/gobstocks/fundsync/internal/numeric"
)

// Builder fuses provider responses into an AnnualSeries.
type Builder struct {
	horizon       int
	requiredYears int
	strict        bool
	log           zerolog.Logger
}

// Config holds builder construction parameters.
type Config struct {
	Horizon       int // maximum years retained, defaults to domain.DefaultHorizonYears
	RequiredYears int // strict-mode completeness floor, defaults to Horizon
	Strict        bool
	Log           zerolog.Logger
}

// NewBuilder creates a fusion builder.
func NewBuilder(cfg Config) *Builder {
	if cfg.Horizon <= 0 {
		cfg.Horizon = domain.DefaultHorizonYears
	}
	if cfg.RequiredYears <= 0 {
		cfg.RequiredYears = cfg.Horizon
	}
	return &Builder{
		horizon:       cfg.Horizon,
		requiredYears: cfg.RequiredYears,
		strict:        cfg.Strict,
		log:           cfg.Log.With().Str("component", "fuse").Logger(),
	}
}

// Build fuses the four fundamentals payloads plus daily prices into a
// complete-years-only series and the revenue series used for the sales
// growth rate. Pure: identical inputs always produce identical output.
func (b *Builder) Build(
	ticker string,
	keyMetrics []fmp.KeyMetricsRow,
	income []fmp.IncomeRow,
	cashFlow []fmp.CashFlowRow,
	prices []fmp.PricePoint,
) (domain.AnnualSeries, []domain.RevenuePoint, error) {
	inputs := indexByYear(keyMetrics, income, cashFlow)
	priceRange := yearlyPriceRange(prices)

	var series domain.AnnualSeries
	for year, in := range inputs {
		eps, _ := resolve(epsPrecedence, in)
		cf, _ := resolve(cashFlowPrecedence, in)
		bv, _ := resolve(bookValuePrecedence, in)
		div, _ := resolve(dividendPrecedence, in)

		pr, hasPrices := priceRange[year]

		// A year missing any of the six fields is excluded outright:
		// partial years are never persisted with guessed values.
		if eps == nil || cf == nil || bv == nil || div == nil || !hasPrices {
			continue
		}

		series = append(series, domain.AnnualRecord{
			Year:              year,
			EarningsPerShare:  *eps,
			CashFlowPerShare:  *cf,
			BookValuePerShare: *bv,
			DividendPerShare:  *div,
			PriceHigh:         pr.high,
			PriceLow:          pr.low,
			AutoFetched:       true,
			DataSource:        domain.DataSourceVerified,
		})
	}

	sort.Slice(series, func(i, j int) bool { return series[i].Year > series[j].Year })
	if len(series) > b.horizon {
		series = series[:b.horizon]
	}

	if len(series) == 0 {
		return nil, nil, &domain.IncompleteSeriesError{Ticker: ticker, Have: 0, Want: 1}
	}
	if b.strict && len(series) < b.requiredYears {
		return nil, nil, &domain.IncompleteSeriesError{Ticker: ticker, Have: len(series), Want: b.requiredYears}
	}

	b.log.Debug().
		Str("ticker", ticker).
		Int("years", len(series)).
		Msg("Built annual series")

	return series, revenueSeries(income), nil
}

// indexByYear groups the fundamentals rows by fiscal year. Rows whose year
// cannot be determined are dropped.
func indexByYear(keyMetrics []fmp.KeyMetricsRow, income []fmp.IncomeRow, cashFlow []fmp.CashFlowRow) map[int]yearInputs {
	byYear := make(map[int]yearInputs)

	for i := range keyMetrics {
		year := keyMetrics[i].FiscalYear()
		if year == 0 {
			continue
		}
		in := byYear[year]
		in.keyMetrics = &keyMetrics[i]
		byYear[year] = in
	}
	for i := range income {
		year := income[i].FiscalYear()
		if year == 0 {
			continue
		}
		in := byYear[year]
		in.income = &income[i]
		byYear[year] = in
	}
	for i := range cashFlow {
		year := cashFlow[i].FiscalYear()
		if year == 0 {
			continue
		}
		in := byYear[year]
		in.cashFlow = &cashFlow[i]
		byYear[year] = in
	}

	return byYear
}

type priceRange struct {
	high float64
	low  float64
}

// yearlyPriceRange scans daily bars and keeps max(high) / min(low) per
// calendar year, falling back to close when high or low is absent.
func yearlyPriceRange(prices []fmp.PricePoint) map[int]priceRange {
	ranges := make(map[int]priceRange)
	for _, p := range prices {
		year := p.FiscalYear()
		if year == 0 {
			continue
		}

		high := p.High
		if !numeric.FinitePtr(high) {
			high = p.Close
		}
		low := p.Low
		if !numeric.FinitePtr(low) {
			low = p.Close
		}
		if !numeric.FinitePtr(high) || !numeric.FinitePtr(low) {
			continue
		}

		r, ok := ranges[year]
		if !ok {
			ranges[year] = priceRange{high: *high, low: *low}
			continue
		}
		if *high > r.high {
			r.high = *high
		}
		if *low < r.low {
			r.low = *low
		}
		ranges[year] = r
	}
	return ranges
}

// revenueSeries extracts the (year, revenue) points with usable values.
func revenueSeries(income []fmp.IncomeRow) []domain.RevenuePoint {
	var points []domain.RevenuePoint
	for _, row := range income {
		year := row.FiscalYear()
		if year == 0 || !numeric.FinitePtr(row.Revenue) {
			continue
		}
		points = append(points, domain.RevenuePoint{Year: year, Value: *row.Revenue})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Year > points[j].Year })
	return points
}
