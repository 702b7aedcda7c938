package fmp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gobstocks/fundsync/internal/domain"
)

// fastPolicy keeps backoff sleeps out of the test suite.
func fastPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		MaxRateLimitWaits: 5,
		RateLimitBase:     time.Millisecond,
		FailureBase:       time.Millisecond,
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := New(Config{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Retry:   fastPolicy(),
		Log:     zerolog.Nop(),
	})
	return client, srv
}

func TestFetchProfile_Success(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/profile/AAPL", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))
		w.Write([]byte(`[{"symbol":"AAPL","companyName":"Apple Inc.","sector":"Technology","beta":1.2,"mktCap":3000000000000,"price":195.5}]`))
	})

	profile, err := client.FetchProfile(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc.", profile.CompanyName)
	assert.Equal(t, 195.5, profile.Price)
}

func TestFetchProfile_EmptyPayloadIsNoData(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	_, err := client.FetchProfile(context.Background(), "ZZZZ")
	require.Error(t, err)

	var fetchErr *domain.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "profile", fetchErr.Endpoint)
	assert.Equal(t, "ZZZZ", fetchErr.Ticker)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestFetchKeyMetrics_RateLimitedTwiceThenSucceeds(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`[{"date":"2023-09-30","netIncomePerShare":6.13,"operatingCashFlowPerShare":7.02,"bookValuePerShare":3.95,"dividendPerShare":0.94}]`))
	})

	rows, err := client.FetchKeyMetrics(context.Background(), "AAPL", 30)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, 2023, rows[0].FiscalYear())
	assert.Equal(t, 6.13, *rows[0].NetIncomePerShare)
}

func TestFetchIncomeStatement_ExhaustsRetries(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.FetchIncomeStatement(context.Background(), "AAPL", 30)
	require.Error(t, err)

	var fetchErr *domain.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "income-statement", fetchErr.Endpoint)
	// Retry ceiling is respected: exactly MaxAttempts calls, no more.
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchCashFlow_MalformedBodyRetriesThenFails(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"not":"an array"`))
	})

	_, err := client.FetchCashFlow(context.Background(), "AAPL", 30)
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchHistoricalPrices_ParsesWindow(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1994-01-02", r.URL.Query().Get("from"))
		assert.Equal(t, "2024-01-02", r.URL.Query().Get("to"))
		w.Write([]byte(`{"symbol":"AAPL","historical":[{"date":"2023-12-29","high":194.66,"low":193.17,"close":193.58}]}`))
	})

	from := time.Date(1994, 1, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	points, err := client.FetchHistoricalPrices(context.Background(), "AAPL", from, to)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 2023, points[0].FiscalYear())
	assert.Equal(t, 194.66, *points[0].High)
}

func TestDoWithRetry_RateLimitWaitsExhaust(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:       3,
		MaxRateLimitWaits: 2,
		RateLimitBase:     time.Millisecond,
		FailureBase:       time.Millisecond,
	}

	var calls int
	err := doWithRetry(context.Background(), policy, func() error {
		calls++
		return errRateLimited
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, errRateLimited)
	// Initial call plus MaxRateLimitWaits retries, then the loop stops.
	assert.Equal(t, 3, calls)
}

func TestDoWithRetry_ContextCancelStopsBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := doWithRetry(ctx, fastPolicy(), func() error {
		return errors.New("should not run")
	})
	assert.ErrorIs(t, err, context.Canceled)
}
