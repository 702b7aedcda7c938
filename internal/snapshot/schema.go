package snapshot

// Schema for the snapshot store. The partial unique index is the hard
// guard behind the atomic-current invariant: SQLite itself refuses a
// second is_current row for a ticker, independent of application logic.
const Schema = `
CREATE TABLE IF NOT EXISTS snapshots (
    id            TEXT PRIMARY KEY,
    ticker        TEXT NOT NULL,
    annual_data   TEXT NOT NULL,
    assumptions   TEXT NOT NULL,
    company_info  TEXT NOT NULL,
    sync_metadata TEXT,
    is_current    INTEGER NOT NULL DEFAULT 0,
    auto_fetched  INTEGER NOT NULL DEFAULT 1,
    snapshot_date TEXT NOT NULL,
    created_at    TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_snapshots_one_current
    ON snapshots (ticker) WHERE is_current = 1;

CREATE INDEX IF NOT EXISTS idx_snapshots_ticker_date
    ON snapshots (ticker, snapshot_date);
`
