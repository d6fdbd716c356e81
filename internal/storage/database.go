// Package storage handles data persistence: SQLite database and the bulk-file cache on disk.
package storage

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // Blank import: registers the SQLite driver.
)

// The schema mirrors the columns an imported stock needs. Tenant scoping is a
// plain column here; tenants themselves live in the upstream application.
const schema = `
CREATE TABLE IF NOT EXISTS stocks (
    id                  TEXT PRIMARY KEY,
    tenant_id           TEXT NOT NULL,
    stock_id            TEXT NOT NULL,
    genotype            TEXT NOT NULL,
    original_genotype   TEXT NOT NULL DEFAULT '',
    species             TEXT NOT NULL DEFAULT '',
    origin              TEXT NOT NULL DEFAULT 'internal',
    repository          TEXT,
    repository_stock_id TEXT,
    location            TEXT,
    notes               TEXT,
    is_active           BOOLEAN NOT NULL DEFAULT 1,
    created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (tenant_id, stock_id)
);

CREATE TABLE IF NOT EXISTS external_references (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    stock_ref   TEXT NOT NULL REFERENCES stocks(id) ON DELETE CASCADE,
    repository  TEXT NOT NULL,
    external_id TEXT NOT NULL,
    metadata    TEXT NOT NULL DEFAULT '{}',
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_stocks_tenant ON stocks(tenant_id);
CREATE INDEX IF NOT EXISTS idx_external_refs_stock ON external_references(stock_ref);
CREATE INDEX IF NOT EXISTS idx_external_refs_lookup ON external_references(repository, external_id);
`

// NewDatabase creates a new SQLite connection and runs migrations.
// The constructor creates the resource AND validates it (Ping).
func NewDatabase(dbPath string) (*sqlx.DB, error) {
	// - WAL mode: allows concurrent reads while writing
	// - foreign_keys: enforce referential integrity
	// - busy_timeout: wait up to 5s instead of failing on lock contention
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", dbPath)

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Ping actually opens the connection (Open is lazy in database/sql)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// SQLite performs best with a single writer connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return db, nil
}
