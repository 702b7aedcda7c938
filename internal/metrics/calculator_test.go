package metrics

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gobstocks/fundsync/internal/domain"
)

// rec builds a complete record with all per-share metrics set to v and a
// flat 90..110 price range (average year price 100).
func rec(year int, v float64) domain.AnnualRecord {
	return domain.AnnualRecord{
		Year:              year,
		EarningsPerShare:  v,
		CashFlowPerShare:  v,
		BookValuePerShare: v,
		DividendPerShare:  v,
		PriceHigh:         110,
		PriceLow:          90,
		AutoFetched:       true,
		DataSource:        domain.DataSourceVerified,
	}
}

// growthSeries is a contiguous year-descending series where every metric
// doubles from oldest to newest within the 5-year window.
func growthSeries() domain.AnnualSeries {
	return domain.AnnualSeries{
		rec(2023, 2.0),
		rec(2022, 1.7),
		rec(2021, 1.5),
		rec(2020, 1.2),
		rec(2019, 1.0),
	}
}

func lenientCalc() *Calculator { return NewCalculator(Config{Log: zerolog.Nop()}) }
func strictCalc() *Calculator  { return NewCalculator(Config{Strict: true, Log: zerolog.Nop()}) }

func revenuePoints(series domain.AnnualSeries) []domain.RevenuePoint {
	points := make([]domain.RevenuePoint, len(series))
	for i, r := range series {
		points[i] = domain.RevenuePoint{Year: r.Year, Value: r.EarningsPerShare * 1e8}
	}
	return points
}

func TestCalculate_GrowthRates(t *testing.T) {
	series := growthSeries()
	a, err := strictCalc().Calculate("TEST", series, 100, revenuePoints(series))
	require.NoError(t, err)

	// (2/1)^(1/4) - 1 = 18.92%
	assert.InDelta(t, 18.92, a.GrowthRateEPS, 0.01)
	assert.InDelta(t, 18.92, a.GrowthRateCF, 0.01)
	assert.InDelta(t, 18.92, a.GrowthRateBV, 0.01)
	assert.InDelta(t, 18.92, a.GrowthRateDiv, 0.01)
	assert.InDelta(t, 18.92, a.GrowthRateSales, 0.01)
	assert.Equal(t, 2023, a.BaseYear)
	assert.Equal(t, domain.RequiredReturn, a.RequiredReturn)
}

func TestCalculate_SparseWindowUsesYearGap(t *testing.T) {
	// Two records four fiscal years apart: annualize over the gap, not the
	// record count.
	series := domain.AnnualSeries{rec(2023, 2.0), rec(2019, 1.0)}
	a, err := lenientCalc().Calculate("TEST", series, 100, nil)
	require.NoError(t, err)
	assert.InDelta(t, 18.92, a.GrowthRateEPS, 0.01)
}

func TestCalculate_GrowthClampedToBounds(t *testing.T) {
	// 1 -> 40 over 4 years is ~151%/yr, clamped to 100.
	up := domain.AnnualSeries{rec(2023, 40.0), rec(2019, 1.0)}
	a, err := lenientCalc().Calculate("TEST", up, 100, nil)
	require.NoError(t, err)
	assert.Equal(t, 100.0, a.GrowthRateEPS)

	// 40 -> 1 over 4 years is ~-60%/yr, clamped to -50. Dividend/targets
	// still compute, so only the magnitude matters here.
	down := domain.AnnualSeries{rec(2023, 1.0), rec(2019, 40.0)}
	a, err = lenientCalc().Calculate("TEST", down, 100, nil)
	require.NoError(t, err)
	assert.Equal(t, -50.0, a.GrowthRateEPS)
}

func TestCalculate_SignFlipIsMissingNotNegative(t *testing.T) {
	// Negative start endpoint: CAGR is undefined, lenient mode records 0.
	series := domain.AnnualSeries{rec(2023, 2.0), rec(2019, -1.0)}
	a, err := lenientCalc().Calculate("TEST", series, 100, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, a.GrowthRateEPS)

	// Strict mode refuses instead of zero-filling.
	_, err = strictCalc().Calculate("TEST", series, 100, nil)
	require.Error(t, err)
	var missing *domain.MissingFieldsError
	require.ErrorAs(t, err, &missing)
	assert.Contains(t, missing.Fields, "growthRateEPS")
}

func TestCalculate_SingleYearHasNoGrowthRate(t *testing.T) {
	series := domain.AnnualSeries{rec(2023, 2.0)}
	a, err := lenientCalc().Calculate("TEST", series, 100, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, a.GrowthRateEPS)
	// Target ratios still derive from the single year.
	assert.InDelta(t, 50.0, a.TargetPE, 1e-9) // 100 / 2.0
}

func TestCalculate_TargetRatios(t *testing.T) {
	// Three most recent years with avg price 100 and metric values 4, 5, 8:
	// multiples 25, 20, 12.5 -> mean 19.1666.
	series := domain.AnnualSeries{
		rec(2023, 4.0),
		rec(2022, 5.0),
		rec(2021, 8.0),
		rec(2020, 1.0), // outside the 3-year ratio window
	}
	a, err := lenientCalc().Calculate("TEST", series, 100, nil)
	require.NoError(t, err)
	assert.InDelta(t, 19.1666, a.TargetPE, 0.001)
	assert.InDelta(t, 19.1666, a.TargetPCF, 0.001)
	assert.InDelta(t, 19.1666, a.TargetPBV, 0.001)
	// Yield: (4+5+8)/100*100 averaged = 5.6666.
	assert.InDelta(t, 5.6666, a.TargetYield, 0.001)
}

func TestCalculate_TargetRatioBounds(t *testing.T) {
	// Tiny EPS against a 100 average price: raw P/E 10000, clamped to 100;
	// P/BV clamps at 50, yield at 20... each ratio keeps its own range.
	series := domain.AnnualSeries{rec(2023, 0.01), rec(2022, 0.01), rec(2021, 0.01)}
	a, err := lenientCalc().Calculate("TEST", series, 100, nil)
	require.NoError(t, err)
	assert.Equal(t, 100.0, a.TargetPE)
	assert.Equal(t, 100.0, a.TargetPCF)
	assert.Equal(t, 50.0, a.TargetPBV)
	// 0.01/100*100 = 0.01% yield, within [0, 20].
	assert.InDelta(t, 0.01, a.TargetYield, 1e-9)
}

func TestCalculate_NonPositiveDenominatorYearsExcluded(t *testing.T) {
	series := domain.AnnualSeries{
		rec(2023, -1.0), // excluded from ratio averages
		rec(2022, 5.0),
		rec(2021, 5.0),
	}
	a, err := lenientCalc().Calculate("TEST", series, 100, nil)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, a.TargetPE, 1e-9)
}

func TestCalculate_StrictListsEveryMissingField(t *testing.T) {
	// A single year: every growth rate is underivable, targets still exist.
	series := domain.AnnualSeries{rec(2023, 2.0)}
	_, err := strictCalc().Calculate("XYZ", series, 100, nil)
	require.Error(t, err)

	var missing *domain.MissingFieldsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "XYZ", missing.Ticker)
	assert.ElementsMatch(t, []string{
		"growthRateEPS", "growthRateCF", "growthRateBV", "growthRateDiv", "growthRateSales",
	}, missing.Fields)
}

func TestCalculate_PayoutRatioInformational(t *testing.T) {
	series := growthSeries()
	a, err := lenientCalc().Calculate("TEST", series, 100, revenuePoints(series))
	require.NoError(t, err)
	// currentDividend 2.0 / baseEPS 2.0 * 100
	assert.InDelta(t, 100.0, a.DividendPayoutRatio, 1e-9)

	// Zero base EPS: payout is 0, never an error even in strict mode.
	flat := domain.AnnualSeries{
		rec(2023, 0), rec(2022, 1.0), rec(2021, 1.0), rec(2020, 1.0), rec(2019, 1.0),
	}
	a, err = lenientCalc().Calculate("TEST", flat, 100, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, a.DividendPayoutRatio)
}

func TestCalculate_Idempotent(t *testing.T) {
	series := growthSeries()
	revenue := revenuePoints(series)
	calc := strictCalc()

	first, err := calc.Calculate("TEST", series, 123.45, revenue)
	require.NoError(t, err)
	second, err := calc.Calculate("TEST", series, 123.45, revenue)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
