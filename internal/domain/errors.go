package domain

import (
	"fmt"
	"strings"
)

// Pipeline stage names used in SyncOutcome and error reporting.
const (
	StageFetching   = "fetching"
	StageFusing     = "fusing"
	StageDeriving   = "deriving"
	StageCommitting = "committing"
)

// FetchError is returned when a provider endpoint fails after exhausting
// its retry budget, or returns an empty payload.
type FetchError struct {
	Endpoint string
	Ticker   string
	Cause    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s for %s: %v", e.Endpoint, e.Ticker, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// IncompleteSeriesError is returned under strict mode when fusion produces
// fewer complete years than required.
type IncompleteSeriesError struct {
	Ticker string
	Have   int
	Want   int
}

func (e *IncompleteSeriesError) Error() string {
	return fmt.Sprintf("%s: only %d complete years (required %d)", e.Ticker, e.Have, e.Want)
}

// MissingFieldsError is returned under strict mode when one or more derived
// assumption fields could not be computed.
type MissingFieldsError struct {
	Ticker string
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("%s: missing derived values (%s)", e.Ticker, strings.Join(e.Fields, ", "))
}
