// Package model defines the core data types for the stock import service.
// Struct tags (`json:"..."` and `db:"..."`) tell serialization libraries how
// to map fields.
package model

import (
	"strings"
	"time"
)

// Repository identifies an external stock center (not a source-code repo).
// Typed string constants stand in for an enum.
type Repository string

const (
	RepoBDSC     Repository = "bdsc"     // Bloomington Drosophila Stock Center
	RepoVDRC     Repository = "vdrc"     // Vienna Drosophila Resource Center
	RepoKyoto    Repository = "kyoto"    // Kyoto Stock Center (DGGR)
	RepoNIG      Repository = "nig"      // NIG-Fly, National Institute of Genetics
	RepoKDRC     Repository = "kdrc"     // Korea Drosophila Resource Center
	RepoFlyORF   Repository = "flyorf"   // FlyORF, Zurich
	RepoNDSSC    Repository = "ndssc"    // National Drosophila Species Stock Center
	RepoExelixis Repository = "exelixis" // Exelixis collection at Harvard
)

// Upper returns the repository id in upper case, used to build default
// local stock ids like "BDSC-80563".
func (r Repository) Upper() string {
	return strings.ToUpper(string(r))
}

// StockRecord is one stock offered by an external repository, as read from
// the bulk data file. It is keyed by (Repository, StockNumber) in the index.
type StockRecord struct {
	Repository  Repository `json:"repository"`
	StockNumber string     `json:"stock_number"`
	FlyBaseID   string     `json:"flybase_id"`
	Genotype    string     `json:"genotype"`
	Species     string     `json:"species"`
	StockType   string     `json:"stock_type,omitempty"`
	Collection  string     `json:"collection"`
}

// CacheMetadata describes the locally cached bulk file. It is persisted as a
// JSON sidecar so a restart doesn't force a re-download.
type CacheMetadata struct {
	DownloadedAt  time.Time `json:"downloaded_at"`
	SourceVersion string    `json:"source_version"`
	SourceURL     string    `json:"source_url"`
	FilePath      string    `json:"file_path"`
	ByteSize      int64     `json:"byte_size"`
}

// Age returns how long ago the file was downloaded.
func (m *CacheMetadata) Age(now time.Time) time.Duration {
	return now.Sub(m.DownloadedAt)
}

// ImportMetadata carries the provenance of an external stock.
type ImportMetadata struct {
	FlyBaseID     string `json:"flybase_id"`
	SourceURL     string `json:"source_url"`
	ExternalURL   string `json:"external_url"`
	SourceVersion string `json:"source_version"`
	StockType     string `json:"stock_type,omitempty"`
}

// StockImportData is the transient result of search and details lookups.
// It is what the import flow turns into a local Stock.
type StockImportData struct {
	ExternalID string         `json:"external_id"`
	Repository Repository     `json:"repository"`
	Genotype   string         `json:"genotype"`
	Species    string         `json:"species"`
	Metadata   ImportMetadata `json:"metadata"`
}

// ImportItem is one entry of an import selection.
type ImportItem struct {
	ExternalID     string     `json:"external_id" binding:"required"`
	Repository     Repository `json:"repository" binding:"required"`
	DesiredStockID string     `json:"desired_stock_id,omitempty"`
	Location       string     `json:"location,omitempty"`
	Notes          string     `json:"notes,omitempty"`
}

// TargetStockID is the local identifier the item will be imported under:
// the desired id when given, otherwise "{REPOSITORY}-{external_id}".
func (i ImportItem) TargetStockID() string {
	if id := strings.TrimSpace(i.DesiredStockID); id != "" {
		return id
	}
	return i.Repository.Upper() + "-" + i.ExternalID
}

// ImportOutcome aggregates the per-item results of one import call.
// Slices are initialized so they serialize as [] rather than null.
type ImportOutcome struct {
	ImportedCount       int      `json:"imported_count"`
	SkippedCount        int      `json:"skipped_count"`
	ErrorMessages       []string `json:"error_messages"`
	ImportedIdentifiers []string `json:"imported_identifiers"`
}

// NewImportOutcome returns an empty outcome.
func NewImportOutcome() *ImportOutcome {
	return &ImportOutcome{
		ErrorMessages:       []string{},
		ImportedIdentifiers: []string{},
	}
}

// SourceStats is the read-only introspection view of one repository.
type SourceStats struct {
	Repository    Repository `json:"repository"`
	TotalStocks   int        `json:"total_stocks"`
	SourceVersion string     `json:"source_version"`
	CacheValid    bool       `json:"cache_valid"`
	DownloadedAt  *time.Time `json:"downloaded_at,omitempty"`
	Conflicts     int        `json:"conflicts"`
}

// RepositoryInfo describes a supported external repository.
type RepositoryInfo struct {
	ID   Repository `json:"id"`
	Name string     `json:"name"`
	URL  string     `json:"url"`
}
