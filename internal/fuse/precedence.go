package fuse

import (
	"github.com/gobstocks/fundsync/internal/clients/fmp"
	"github.com/gobstocks/fundsync/internal/numeric"
)

// yearInputs collects the provider rows available for one fiscal year.
// Any of the pointers may be nil when that endpoint had no row for the year.
type yearInputs struct {
	keyMetrics *fmp.KeyMetricsRow
	income     *fmp.IncomeRow
	cashFlow   *fmp.CashFlowRow
}

// fieldSource is one (source, accessor) pair in a precedence list. Sources
// are named so precedence stays auditable in tests and logs.
type fieldSource struct {
	name   string
	access func(yearInputs) *float64
}

// resolve walks a precedence list and returns the first finite value, along
// with the name of the source that supplied it. Returns (nil, "") when no
// source yields a finite value.
func resolve(precedence []fieldSource, in yearInputs) (*float64, string) {
	for _, src := range precedence {
		if v := src.access(in); numeric.FinitePtr(v) {
			return v, src.name
		}
	}
	return nil, ""
}

// sharesOutstanding returns the weighted average share count for a cash
// flow row, preferring the basic count over the diluted one. Returns nil
// unless the count is finite and positive.
func sharesOutstanding(cf *fmp.CashFlowRow) *float64 {
	if cf == nil {
		return nil
	}
	for _, shares := range []*float64{cf.WeightedAverageShsOut, cf.WeightedAverageShsOutDiluted} {
		if numeric.FinitePtr(shares) && *shares > 0 {
			return shares
		}
	}
	return nil
}

// perShare divides total by the row's share count, or nil when either side
// is unusable.
func perShare(total *float64, cf *fmp.CashFlowRow) *float64 {
	shares := sharesOutstanding(cf)
	if shares == nil || !numeric.FinitePtr(total) {
		return nil
	}
	return numeric.Ptr(*total / *shares)
}

// Ordered precedence per derived field. Earlier entries win; later entries
// are consulted only when the earlier source is absent or non-finite.

var epsPrecedence = []fieldSource{
	{"key-metrics.netIncomePerShare", func(in yearInputs) *float64 {
		if in.keyMetrics == nil {
			return nil
		}
		return in.keyMetrics.NetIncomePerShare
	}},
	{"income-statement.epsdiluted", func(in yearInputs) *float64 {
		if in.income == nil {
			return nil
		}
		return in.income.EPSDiluted
	}},
	{"income-statement.eps", func(in yearInputs) *float64 {
		if in.income == nil {
			return nil
		}
		return in.income.EPS
	}},
}

var cashFlowPrecedence = []fieldSource{
	{"key-metrics.operatingCashFlowPerShare", func(in yearInputs) *float64 {
		if in.keyMetrics == nil {
			return nil
		}
		return in.keyMetrics.OperatingCashFlowPerShare
	}},
	{"cash-flow.freeCashFlow/shares", func(in yearInputs) *float64 {
		if in.cashFlow == nil {
			return nil
		}
		return perShare(in.cashFlow.FreeCashFlow, in.cashFlow)
	}},
	{"cash-flow.operatingCashFlow/shares", func(in yearInputs) *float64 {
		if in.cashFlow == nil {
			return nil
		}
		return perShare(in.cashFlow.OperatingCashFlow, in.cashFlow)
	}},
}

var bookValuePrecedence = []fieldSource{
	{"key-metrics.bookValuePerShare", func(in yearInputs) *float64 {
		if in.keyMetrics == nil {
			return nil
		}
		return in.keyMetrics.BookValuePerShare
	}},
}

var dividendPrecedence = []fieldSource{
	{"key-metrics.dividendPerShare", func(in yearInputs) *float64 {
		if in.keyMetrics == nil {
			return nil
		}
		return in.keyMetrics.DividendPerShare
	}},
	{"cash-flow.abs(dividendsPaid)/shares", func(in yearInputs) *float64 {
		if in.cashFlow == nil {
			return nil
		}
		v := perShare(in.cashFlow.DividendsPaid, in.cashFlow)
		if v == nil {
			return nil
		}
		if *v < 0 {
			return numeric.Ptr(-*v)
		}
		return v
	}},
}
