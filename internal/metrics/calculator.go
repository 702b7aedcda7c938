// Package metrics derives growth rates and target valuation ratios from a
// fused annual series. The numeric core is branch-free with respect to
// strict mode: values are computed leniently as nullable results first,
// then a single completeness validation pass either accepts them or fails
// the ticker with the full list of missing fields.
package metrics

import (
	"github.com/rs/zerolog"

	"github.com/gobstocks/fundsync/internal/domain"
	"github.com/gobstocks/fundsync/internal/numeric"
)

// Window sizes and clamp ranges are policy constants, not configuration:
// changing them silently changes every stored valuation anchor.
const (
	growthWindowYears = 5
	ratioWindowYears  = 3

	growthMin = -50.0
	growthMax = 100.0
)

type clampRange struct {
	lo float64
	hi float64
}

var (
	clampPE    = clampRange{1, 100}
	clampPCF   = clampRange{1, 100}
	clampPBV   = clampRange{0.1, 50}
	clampYield = clampRange{0, 20}
)

// Calculator derives Assumptions from an annual series.
type Calculator struct {
	strict bool
	log    zerolog.Logger
}

// Config holds calculator construction parameters.
type Config struct {
	Strict bool
	Log    zerolog.Logger
}

// NewCalculator creates a metrics calculator.
func NewCalculator(cfg Config) *Calculator {
	return &Calculator{
		strict: cfg.Strict,
		log:    cfg.Log.With().Str("component", "metrics").Logger(),
	}
}

// derived carries the nullable results of the lenient core; nil means the
// value could not be computed from the available years.
type derived struct {
	growthEPS   *float64
	growthCF    *float64
	growthBV    *float64
	growthDiv   *float64
	growthSales *float64
	targetPE    *float64
	targetPCF   *float64
	targetPBV   *float64
	targetYield *float64
}

// Calculate derives the full assumptions bundle. Under strict mode any
// missing derived value fails the ticker with a MissingFieldsError naming
// every absent field; under lenient mode missing values become 0.
func (c *Calculator) Calculate(
	ticker string,
	series domain.AnnualSeries,
	currentPrice float64,
	revenue []domain.RevenuePoint,
) (domain.Assumptions, error) {
	d := derived{
		growthEPS:   growthRate(series, func(r domain.AnnualRecord) float64 { return r.EarningsPerShare }),
		growthCF:    growthRate(series, func(r domain.AnnualRecord) float64 { return r.CashFlowPerShare }),
		growthBV:    growthRate(series, func(r domain.AnnualRecord) float64 { return r.BookValuePerShare }),
		growthDiv:   growthRate(series, func(r domain.AnnualRecord) float64 { return r.DividendPerShare }),
		growthSales: revenueGrowthRate(revenue),
		targetPE:    targetRatio(series, func(r domain.AnnualRecord) float64 { return r.EarningsPerShare }),
		targetPCF:   targetRatio(series, func(r domain.AnnualRecord) float64 { return r.CashFlowPerShare }),
		targetPBV:   targetRatio(series, func(r domain.AnnualRecord) float64 { return r.BookValuePerShare }),
		targetYield: targetYield(series),
	}

	if err := validateCompleteness(ticker, d, c.strict); err != nil {
		return domain.Assumptions{}, err
	}

	baseYear := series.BaseYear()
	var currentDividend, baseEPS float64
	if len(series) > 0 {
		currentDividend = series[0].DividendPerShare
		baseEPS = series[0].EarningsPerShare
	}

	// Informational only: never strict-mode-fatal.
	payoutRatio := 0.0
	if baseEPS > 0 {
		payoutRatio = currentDividend / baseEPS * 100
	}

	return domain.Assumptions{
		CurrentPrice:        currentPrice,
		CurrentDividend:     currentDividend,
		GrowthRateEPS:       clampOrZero(d.growthEPS, clampRange{growthMin, growthMax}),
		GrowthRateSales:     clampOrZero(d.growthSales, clampRange{growthMin, growthMax}),
		GrowthRateCF:        clampOrZero(d.growthCF, clampRange{growthMin, growthMax}),
		GrowthRateBV:        clampOrZero(d.growthBV, clampRange{growthMin, growthMax}),
		GrowthRateDiv:       clampOrZero(d.growthDiv, clampRange{growthMin, growthMax}),
		TargetPE:            clampOrZero(d.targetPE, clampPE),
		TargetPCF:           clampOrZero(d.targetPCF, clampPCF),
		TargetPBV:           clampOrZero(d.targetPBV, clampPBV),
		TargetYield:         clampOrZero(d.targetYield, clampYield),
		RequiredReturn:      domain.RequiredReturn,
		DividendPayoutRatio: payoutRatio,
		BaseYear:            baseYear,
	}, nil
}

// validateCompleteness is the single strict-mode gate: the numeric core
// above never branches on strictness.
func validateCompleteness(ticker string, d derived, strict bool) error {
	if !strict {
		return nil
	}

	var missing []string
	check := func(v *float64, name string) {
		if v == nil {
			missing = append(missing, name)
		}
	}
	check(d.growthEPS, "growthRateEPS")
	check(d.growthCF, "growthRateCF")
	check(d.growthBV, "growthRateBV")
	check(d.growthDiv, "growthRateDiv")
	check(d.growthSales, "growthRateSales")
	check(d.targetPE, "targetPE")
	check(d.targetPCF, "targetPCF")
	check(d.targetPBV, "targetPBV")
	check(d.targetYield, "targetYield")

	if len(missing) > 0 {
		return &domain.MissingFieldsError{Ticker: ticker, Fields: missing}
	}
	return nil
}

// growthRate computes the CAGR (percent) of one per-share metric over the
// most recent growth window. Both endpoints must be strictly positive;
// a sign flip or short window yields nil rather than a misleading rate.
// The exponent uses the fiscal-year gap between the endpoints, so a sparse
// window with missing interior years is still annualized correctly.
func growthRate(series domain.AnnualSeries, value func(domain.AnnualRecord) float64) *float64 {
	window := recentWindow(series, growthWindowYears)
	if len(window) < 2 {
		return nil
	}
	oldest, newest := window[0], window[len(window)-1]
	years := newest.Year - oldest.Year
	start := value(oldest)
	end := value(newest)
	if years <= 0 || !numeric.Finite(start) || !numeric.Finite(end) || start <= 0 || end <= 0 {
		return nil
	}
	return numeric.Ptr(numeric.CAGR(start, end, years))
}

// revenueGrowthRate is growthRate over the standalone revenue series.
func revenueGrowthRate(revenue []domain.RevenuePoint) *float64 {
	if len(revenue) == 0 {
		return nil
	}
	// Points arrive year-descending; mirror the record window: take the
	// most recent N, then flip to oldest-first.
	n := growthWindowYears
	if len(revenue) < n {
		n = len(revenue)
	}
	window := make([]domain.RevenuePoint, n)
	for i := 0; i < n; i++ {
		window[i] = revenue[n-1-i]
	}
	if len(window) < 2 {
		return nil
	}
	oldest, newest := window[0], window[len(window)-1]
	years := newest.Year - oldest.Year
	if years <= 0 || !numeric.Finite(oldest.Value) || !numeric.Finite(newest.Value) ||
		oldest.Value <= 0 || newest.Value <= 0 {
		return nil
	}
	return numeric.Ptr(numeric.CAGR(oldest.Value, newest.Value, years))
}

// targetRatio averages avgYearPrice / metric over the most recent ratio
// window. Years with a non-positive denominator or unusable price range
// are excluded; zero qualifying years yields nil.
func targetRatio(series domain.AnnualSeries, value func(domain.AnnualRecord) float64) *float64 {
	var ratios []float64
	for _, rec := range recentWindow(series, ratioWindowYears) {
		metric := value(rec)
		if !numeric.Finite(metric) || metric <= 0 {
			continue
		}
		avgPrice := (rec.PriceHigh + rec.PriceLow) / 2
		if !numeric.Finite(avgPrice) || avgPrice <= 0 {
			continue
		}
		ratios = append(ratios, avgPrice/metric)
	}
	if len(ratios) == 0 {
		return nil
	}
	return numeric.Ptr(numeric.Mean(ratios))
}

// targetYield averages dividend / avgYearPrice * 100 over the ratio window.
func targetYield(series domain.AnnualSeries) *float64 {
	var yields []float64
	for _, rec := range recentWindow(series, ratioWindowYears) {
		if !numeric.Finite(rec.DividendPerShare) {
			continue
		}
		avgPrice := (rec.PriceHigh + rec.PriceLow) / 2
		if !numeric.Finite(avgPrice) || avgPrice <= 0 {
			continue
		}
		y := rec.DividendPerShare / avgPrice * 100
		if y < 0 {
			continue
		}
		yields = append(yields, y)
	}
	if len(yields) == 0 {
		return nil
	}
	return numeric.Ptr(numeric.Mean(yields))
}

// recentWindow returns the most recent n records ordered oldest to newest.
// The series itself is year-descending and is not mutated.
func recentWindow(series domain.AnnualSeries, n int) []domain.AnnualRecord {
	if len(series) < n {
		n = len(series)
	}
	window := make([]domain.AnnualRecord, n)
	for i := 0; i < n; i++ {
		window[i] = series[n-1-i]
	}
	return window
}

func clampOrZero(v *float64, r clampRange) float64 {
	if v == nil {
		return 0
	}
	return numeric.Clamp(*v, r.lo, r.hi)
}
