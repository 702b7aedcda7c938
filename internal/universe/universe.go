// Package universe manages the set of tickers the sync job iterates over.
package universe

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Schema creates the tickers table.
const Schema = `
CREATE TABLE IF NOT EXISTS tickers (
	symbol       TEXT PRIMARY KEY,
	name         TEXT NOT NULL DEFAULT '',
	active       INTEGER NOT NULL DEFAULT 1,
	added_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_sync_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_tickers_active ON tickers (active, symbol);
`

// Ticker is one row of the sync universe.
type Ticker struct {
	Symbol     string
	Name       string
	Active     bool
	LastSyncAt *time.Time
}

// Repository handles ticker universe database operations.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a universe repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "universe").Logger(),
	}
}

// Upsert adds a ticker to the universe or reactivates and renames an
// existing one. Symbols are stored uppercase.
func (r *Repository) Upsert(symbol, name string) error {
	symbol = normalize(symbol)
	if symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	_, err := r.db.Exec(`
		INSERT INTO tickers (symbol, name, active) VALUES (?, ?, 1)
		ON CONFLICT(symbol) DO UPDATE SET name = excluded.name, active = 1`,
		symbol, name,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert ticker %s: %w", symbol, err)
	}
	return nil
}

// Deactivate removes a ticker from future sync runs without deleting its
// row or its snapshots.
func (r *Repository) Deactivate(symbol string) error {
	symbol = normalize(symbol)
	res, err := r.db.Exec("UPDATE tickers SET active = 0 WHERE symbol = ?", symbol)
	if err != nil {
		return fmt.Errorf("failed to deactivate ticker %s: %w", symbol, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("ticker %s not found", symbol)
	}
	return nil
}

// ListActive returns active tickers in symbol order. A non-empty
// startSymbol resumes the list from that symbol inclusive, which lets an
// interrupted run pick up where it stopped.
func (r *Repository) ListActive(startSymbol string) ([]Ticker, error) {
	rows, err := r.db.Query(`
		SELECT symbol, name, active, last_sync_at
		FROM tickers
		WHERE active = 1 AND symbol >= ?
		ORDER BY symbol ASC`,
		normalize(startSymbol),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickers: %w", err)
	}
	defer rows.Close()

	var tickers []Ticker
	for rows.Next() {
		var t Ticker
		var lastSync sql.NullTime
		if err := rows.Scan(&t.Symbol, &t.Name, &t.Active, &lastSync); err != nil {
			return nil, fmt.Errorf("failed to scan ticker row: %w", err)
		}
		if lastSync.Valid {
			t.LastSyncAt = &lastSync.Time
		}
		tickers = append(tickers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ticker rows: %w", err)
	}
	return tickers, nil
}

// MarkSynced records a successful sync time for the ticker.
func (r *Repository) MarkSynced(symbol string, at time.Time) error {
	_, err := r.db.Exec(
		"UPDATE tickers SET last_sync_at = ? WHERE symbol = ?",
		at.UTC(), normalize(symbol),
	)
	if err != nil {
		return fmt.Errorf("failed to mark ticker %s synced: %w", symbol, err)
	}
	return nil
}

// Seed inserts any of the given symbols not already present, leaving
// existing rows untouched. Used to bootstrap a fresh database.
func (r *Repository) Seed(symbols []string) (int, error) {
	added := 0
	for _, symbol := range symbols {
		symbol = normalize(symbol)
		if symbol == "" {
			continue
		}
		res, err := r.db.Exec(
			"INSERT OR IGNORE INTO tickers (symbol, active) VALUES (?, 1)", symbol,
		)
		if err != nil {
			return added, fmt.Errorf("failed to seed ticker %s: %w", symbol, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}
	if added > 0 {
		r.log.Info().Int("added", added).Msg("Seeded ticker universe")
	}
	return added, nil
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
