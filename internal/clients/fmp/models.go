package fmp

import "strconv"

// Wire types for the provider's v3 endpoints. Numeric fields that can be
// absent in a payload are pointers; nil means "not reported", which the
// fuser treats differently from zero.

// Profile is the company profile payload.
type Profile struct {
	Symbol            string  `json:"symbol"`
	CompanyName       string  `json:"companyName"`
	Sector            string  `json:"sector"`
	Industry          string  `json:"industry"`
	ExchangeShortName string  `json:"exchangeShortName"`
	Currency          string  `json:"currency"`
	Country           string  `json:"country"`
	Website           string  `json:"website"`
	Description       string  `json:"description"`
	Image             string  `json:"image"`
	Beta              float64 `json:"beta"`
	MktCap            float64 `json:"mktCap"`
	Price             float64 `json:"price"`
}

// KeyMetricsRow is one fiscal year of per-share key metrics.
type KeyMetricsRow struct {
	Date                      string   `json:"date"`
	CalendarYear              string   `json:"calendarYear"`
	NetIncomePerShare         *float64 `json:"netIncomePerShare"`
	OperatingCashFlowPerShare *float64 `json:"operatingCashFlowPerShare"`
	BookValuePerShare         *float64 `json:"bookValuePerShare"`
	DividendPerShare          *float64 `json:"dividendPerShare"`
}

// FiscalYear derives the fiscal year from the row date, falling back to the
// calendarYear field. Returns 0 when neither parses.
func (r KeyMetricsRow) FiscalYear() int {
	if y := yearOfDate(r.Date); y != 0 {
		return y
	}
	if y, err := strconv.Atoi(r.CalendarYear); err == nil {
		return y
	}
	return 0
}

// IncomeRow is one fiscal year of income statement data.
type IncomeRow struct {
	Date       string   `json:"date"`
	EPS        *float64 `json:"eps"`
	EPSDiluted *float64 `json:"epsdiluted"`
	Revenue    *float64 `json:"revenue"`
}

// FiscalYear derives the fiscal year from the row date.
func (r IncomeRow) FiscalYear() int {
	return yearOfDate(r.Date)
}

// CashFlowRow is one fiscal year of cash flow statement data.
type CashFlowRow struct {
	Date                         string   `json:"date"`
	FreeCashFlow                 *float64 `json:"freeCashFlow"`
	OperatingCashFlow            *float64 `json:"operatingCashFlow"`
	DividendsPaid                *float64 `json:"dividendsPaid"`
	WeightedAverageShsOut        *float64 `json:"weightedAverageShsOut"`
	WeightedAverageShsOutDiluted *float64 `json:"weightedAverageShsOutDil"`
}

// FiscalYear derives the fiscal year from the row date.
func (r CashFlowRow) FiscalYear() int {
	return yearOfDate(r.Date)
}

// PricePoint is one daily bar from the historical price endpoint.
type PricePoint struct {
	Date  string   `json:"date"`
	High  *float64 `json:"high"`
	Low   *float64 `json:"low"`
	Close *float64 `json:"close"`
}

// FiscalYear derives the calendar year from the bar date.
func (p PricePoint) FiscalYear() int {
	return yearOfDate(p.Date)
}

// historicalResponse wraps the historical price payload.
type historicalResponse struct {
	Symbol     string       `json:"symbol"`
	Historical []PricePoint `json:"historical"`
}

// yearOfDate parses the leading YYYY of an ISO date string. Returns 0 when
// the string is too short or not numeric.
func yearOfDate(date string) int {
	if len(date) < 4 {
		return 0
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return y
}
