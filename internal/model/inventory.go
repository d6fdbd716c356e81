package model

import "time"

// StockOrigin records where a local stock came from. Stocks created by hand
// in the inventory app default to "internal" at the schema level; this
// service only ever writes repository stocks.
type StockOrigin string

const OriginRepository StockOrigin = "repository"

// StockDraft is what the import flow hands to persistence for a new stock.
type StockDraft struct {
	StockID           string      `db:"stock_id"`
	Genotype          string      `db:"genotype"`
	OriginalGenotype  string      `db:"original_genotype"`
	Species           string      `db:"species"`
	Origin            StockOrigin `db:"origin"`
	Repository        Repository  `db:"repository"`
	RepositoryStockID string      `db:"repository_stock_id"`
	Location          string      `db:"location"`
	Notes             string      `db:"notes"`
}

// ExternalRefDraft links a stock being created to its external record.
type ExternalRefDraft struct {
	Repository Repository
	ExternalID string
	Metadata   ImportMetadata
}

// Stock is a persisted, tenant-scoped stock.
// Each field has two tags:
//   - `db:"column_name"`: used by sqlx to scan database rows
//   - `json:"field_name"`: used for JSON serialization (API responses)
type Stock struct {
	ID                string      `db:"id" json:"id"`
	TenantID          string      `db:"tenant_id" json:"tenant_id"`
	StockID           string      `db:"stock_id" json:"stock_id"`
	Genotype          string      `db:"genotype" json:"genotype"`
	OriginalGenotype  string      `db:"original_genotype" json:"original_genotype"`
	Species           string      `db:"species" json:"species"`
	Origin            StockOrigin `db:"origin" json:"origin"`
	Repository        *string     `db:"repository" json:"repository,omitempty"`
	RepositoryStockID *string     `db:"repository_stock_id" json:"repository_stock_id,omitempty"`
	Location          *string     `db:"location" json:"location,omitempty"`
	Notes             *string     `db:"notes" json:"notes,omitempty"`
	IsActive          bool        `db:"is_active" json:"is_active"`
	CreatedAt         time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time   `db:"updated_at" json:"updated_at"`
}

// ExternalReference links a local stock to its record in an external repository.
type ExternalReference struct {
	ID         int64          `db:"id" json:"id"`
	StockID    string         `db:"stock_ref" json:"stock_ref"`
	Repository Repository     `db:"repository" json:"repository"`
	ExternalID string         `db:"external_id" json:"external_id"`
	Metadata   ImportMetadata `db:"-" json:"metadata"`
	RawJSON    string         `db:"metadata" json:"-"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}
