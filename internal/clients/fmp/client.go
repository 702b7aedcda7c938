// Package fmp is a rate-limit-aware client for the market data provider's
// v3 REST API. Every fetch shares one token-bucket limiter and one retry
// policy; there is no caching layer, so each sync run re-fetches full
// history rather than risking stale partial data.
package fmp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/gobstocks/fundsync/internal/domain"
)

// DefaultBaseURL is the provider's production API root.
const DefaultBaseURL = "https://financialmodelingprep.com/api/v3"

// Client fetches fundamentals and prices for a ticker.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
	retry      RetryPolicy
	log        zerolog.Logger
}

// Config holds client construction parameters.
type Config struct {
	BaseURL string        // defaults to DefaultBaseURL
	APIKey  string        // required
	Limiter *rate.Limiter // shared call-rate ceiling; nil means unlimited
	Retry   RetryPolicy
	Timeout time.Duration // per-request timeout, defaults to 30s
	Log     zerolog.Logger
}

// New creates a provider client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Limiter == nil {
		cfg.Limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		limiter:    cfg.Limiter,
		retry:      cfg.Retry,
		log:        cfg.Log.With().Str("client", "fmp").Logger(),
	}
}

// FetchProfile fetches the company profile.
func (c *Client) FetchProfile(ctx context.Context, ticker string) (*Profile, error) {
	var rows []Profile
	if err := c.getJSON(ctx, "profile/"+url.PathEscape(ticker), nil, &rows); err != nil {
		return nil, &domain.FetchError{Endpoint: "profile", Ticker: ticker, Cause: err}
	}
	if len(rows) == 0 || rows[0].Symbol == "" {
		return nil, &domain.FetchError{Endpoint: "profile", Ticker: ticker, Cause: ErrNoData}
	}
	return &rows[0], nil
}

// FetchKeyMetrics fetches up to limit fiscal years of annual key metrics.
func (c *Client) FetchKeyMetrics(ctx context.Context, ticker string, limit int) ([]KeyMetricsRow, error) {
	q := url.Values{}
	q.Set("period", "annual")
	q.Set("limit", fmt.Sprint(limit))
	var rows []KeyMetricsRow
	if err := c.getJSON(ctx, "key-metrics/"+url.PathEscape(ticker), q, &rows); err != nil {
		return nil, &domain.FetchError{Endpoint: "key-metrics", Ticker: ticker, Cause: err}
	}
	if len(rows) == 0 {
		return nil, &domain.FetchError{Endpoint: "key-metrics", Ticker: ticker, Cause: ErrNoData}
	}
	return rows, nil
}

// FetchIncomeStatement fetches up to limit fiscal years of annual income
// statements.
func (c *Client) FetchIncomeStatement(ctx context.Context, ticker string, limit int) ([]IncomeRow, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprint(limit))
	var rows []IncomeRow
	if err := c.getJSON(ctx, "income-statement/"+url.PathEscape(ticker), q, &rows); err != nil {
		return nil, &domain.FetchError{Endpoint: "income-statement", Ticker: ticker, Cause: err}
	}
	if len(rows) == 0 {
		return nil, &domain.FetchError{Endpoint: "income-statement", Ticker: ticker, Cause: ErrNoData}
	}
	return rows, nil
}

// FetchCashFlow fetches up to limit fiscal years of annual cash flow
// statements.
func (c *Client) FetchCashFlow(ctx context.Context, ticker string, limit int) ([]CashFlowRow, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprint(limit))
	var rows []CashFlowRow
	if err := c.getJSON(ctx, "cash-flow-statement/"+url.PathEscape(ticker), q, &rows); err != nil {
		return nil, &domain.FetchError{Endpoint: "cash-flow-statement", Ticker: ticker, Cause: err}
	}
	if len(rows) == 0 {
		return nil, &domain.FetchError{Endpoint: "cash-flow-statement", Ticker: ticker, Cause: ErrNoData}
	}
	return rows, nil
}

// FetchHistoricalPrices fetches daily bars between from and to (inclusive).
func (c *Client) FetchHistoricalPrices(ctx context.Context, ticker string, from, to time.Time) ([]PricePoint, error) {
	q := url.Values{}
	q.Set("from", from.Format("2006-01-02"))
	q.Set("to", to.Format("2006-01-02"))
	var resp historicalResponse
	if err := c.getJSON(ctx, "historical-price-full/"+url.PathEscape(ticker), q, &resp); err != nil {
		return nil, &domain.FetchError{Endpoint: "historical-price-full", Ticker: ticker, Cause: err}
	}
	if len(resp.Historical) == 0 {
		return nil, &domain.FetchError{Endpoint: "historical-price-full", Ticker: ticker, Cause: ErrNoData}
	}
	return resp.Historical, nil
}

// getJSON performs one GET against the provider with the shared limiter and
// retry policy, decoding the body into out.
func (c *Client) getJSON(ctx context.Context, endpoint string, query url.Values, out interface{}) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("apikey", c.apiKey)
	reqURL := c.baseURL + "/" + endpoint + "?" + query.Encode()

	return doWithRetry(ctx, c.retry, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			c.log.Warn().Str("endpoint", endpoint).Msg("Rate limited by provider")
			return errRateLimited
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("parse body: %w", err)
		}
		return nil
	})
}
