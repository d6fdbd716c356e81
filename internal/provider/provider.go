// Package provider defines the interface for external stock sources.
// Each provider is scoped to one external repository and knows how to search
// it and resolve stock details.
package provider

import (
	"context"
	"errors"

	"github.com/fleveque/flystocks/internal/bulkdata"
	"github.com/fleveque/flystocks/internal/model"
)

// DefaultSearchLimit applies when a caller doesn't ask for a limit.
const DefaultSearchLimit = 20

// MaxSearchLimit caps how many results one search returns.
const MaxSearchLimit = 200

var (
	// ErrNotFound is a lookup miss: a normal outcome callers map to 404.
	ErrNotFound = errors.New("stock not found in repository")
	// ErrMalformedQuery is returned for an empty query or non-positive limit.
	ErrMalformedQuery = errors.New("malformed query")
	// ErrUnknownRepository is returned for a repository id with no provider.
	ErrUnknownRepository = errors.New("unknown repository")
)

// StockProvider is the interface for external stock sources.
type StockProvider interface {
	// Repository returns the external repository this provider is scoped to.
	Repository() model.RepositoryInfo

	// Search returns up to limit stocks matching query.
	Search(ctx context.Context, query string, limit int) ([]model.StockImportData, error)

	// GetDetails resolves one stock by its native id. A miss returns ErrNotFound.
	GetDetails(ctx context.Context, externalID string) (*model.StockImportData, error)

	// Refresh reloads the underlying data and returns the new count for this repository.
	Refresh(ctx context.Context, force bool) (*RefreshResult, error)

	// Stats reports counts and cache state. It never triggers a fetch.
	Stats(ctx context.Context) (*model.SourceStats, error)
}

// RefreshResult is what a provider reports after a refresh.
type RefreshResult struct {
	Repository    model.Repository   `json:"repository"`
	TotalStocks   int                `json:"total_stocks"`
	SourceVersion string             `json:"source_version"`
	Rebuilt       bool               `json:"rebuilt"`
	FetchFailed   bool               `json:"fetch_failed"`
	Warning       string             `json:"warning,omitempty"`
	Scan          bulkdata.ScanStats `json:"scan"`
}

// IsSourceUnavailable reports whether err means no data can be served at all.
func IsSourceUnavailable(err error) bool {
	return errors.Is(err, bulkdata.ErrSourceUnavailable)
}
