// Package snapshot persists fused series, derived assumptions and company
// metadata as versioned snapshots. Exactly one snapshot per ticker is
// "current" at any moment; superseded snapshots are retained as history
// and never deleted, enabling point-in-time audit.
package snapshot

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gobstocks/fundsync/internal/database"
	"github.com/gobstocks/fundsync/internal/domain"
)

// Repository handles snapshot database operations.
type Repository struct {
	db    *sql.DB
	newID func() string
	now   func() time.Time
	log   zerolog.Logger
}

// NewRepository creates a snapshot repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:    db,
		newID: uuid.NewString,
		now:   time.Now,
		log:   log.With().Str("repo", "snapshot").Logger(),
	}
}

// Stored is one snapshot row with its JSON payloads decoded.
type Stored struct {
	ID           string
	Ticker       string
	Series       domain.AnnualSeries
	Assumptions  domain.Assumptions
	Company      domain.CompanySnapshot
	Metadata     domain.SyncMetadata
	IsCurrent    bool
	AutoFetched  bool
	SnapshotDate string
}

// CommitCurrent atomically replaces the ticker's current snapshot: the
// previous current row is demoted and the new row inserted in a single
// transaction. On any failure the transaction rolls back and the prior
// current snapshot is left untouched.
func (r *Repository) CommitCurrent(
	ticker string,
	series domain.AnnualSeries,
	assumptions domain.Assumptions,
	company domain.CompanySnapshot,
	meta domain.SyncMetadata,
) error {
	if ticker == "" {
		return fmt.Errorf("ticker is required")
	}

	annualJSON, err := json.Marshal(series)
	if err != nil {
		return fmt.Errorf("failed to encode annual data: %w", err)
	}
	assumptionsJSON, err := json.Marshal(assumptions)
	if err != nil {
		return fmt.Errorf("failed to encode assumptions: %w", err)
	}
	companyJSON, err := json.Marshal(company)
	if err != nil {
		return fmt.Errorf("failed to encode company info: %w", err)
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode sync metadata: %w", err)
	}

	id := r.newID()
	snapshotDate := r.now().UTC().Format("2006-01-02")

	err = database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			"UPDATE snapshots SET is_current = 0 WHERE ticker = ? AND is_current = 1",
			ticker,
		); err != nil {
			return fmt.Errorf("failed to demote previous snapshot: %w", err)
		}

		if _, err := tx.Exec(`
			INSERT INTO snapshots
				(id, ticker, annual_data, assumptions, company_info, sync_metadata,
				 is_current, auto_fetched, snapshot_date)
			VALUES (?, ?, ?, ?, ?, ?, 1, 1, ?)`,
			id, ticker, string(annualJSON), string(assumptionsJSON),
			string(companyJSON), string(metaJSON), snapshotDate,
		); err != nil {
			return fmt.Errorf("failed to insert snapshot: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Debug().
		Str("ticker", ticker).
		Str("snapshot_id", id).
		Int("years", len(series)).
		Msg("Committed current snapshot")
	return nil
}

// GetCurrent returns the ticker's current snapshot, or nil when the ticker
// has never been synced.
func (r *Repository) GetCurrent(ticker string) (*Stored, error) {
	row := r.db.QueryRow(`
		SELECT id, ticker, annual_data, assumptions, company_info, sync_metadata,
		       is_current, auto_fetched, snapshot_date
		FROM snapshots WHERE ticker = ? AND is_current = 1`,
		ticker,
	)
	stored, err := scanStored(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load current snapshot for %s: %w", ticker, err)
	}
	return stored, nil
}

// HistoryCount returns the total number of snapshots retained for a
// ticker, current and superseded.
func (r *Repository) HistoryCount(ticker string) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM snapshots WHERE ticker = ?", ticker).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count snapshots for %s: %w", ticker, err)
	}
	return count, nil
}

// CurrentCount returns how many rows are flagged current for a ticker.
// Used by tests and integrity checks; the schema's partial unique index
// keeps this at most 1.
func (r *Repository) CurrentCount(ticker string) (int, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM snapshots WHERE ticker = ? AND is_current = 1", ticker,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count current snapshots for %s: %w", ticker, err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStored(row rowScanner) (*Stored, error) {
	var s Stored
	var annualJSON, assumptionsJSON, companyJSON string
	var metaJSON sql.NullString

	if err := row.Scan(
		&s.ID, &s.Ticker, &annualJSON, &assumptionsJSON, &companyJSON, &metaJSON,
		&s.IsCurrent, &s.AutoFetched, &s.SnapshotDate,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(annualJSON), &s.Series); err != nil {
		return nil, fmt.Errorf("failed to decode annual data: %w", err)
	}
	if err := json.Unmarshal([]byte(assumptionsJSON), &s.Assumptions); err != nil {
		return nil, fmt.Errorf("failed to decode assumptions: %w", err)
	}
	if err := json.Unmarshal([]byte(companyJSON), &s.Company); err != nil {
		return nil, fmt.Errorf("failed to decode company info: %w", err)
	}
	if metaJSON.Valid && metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &s.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode sync metadata: %w", err)
		}
	}
	return &s, nil
}
