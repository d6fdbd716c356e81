package provider

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fleveque/flystocks/internal/bulkdata"
	"github.com/fleveque/flystocks/internal/model"
)

// FlyBaseProvider serves one stock center out of the shared FlyBase index.
// All providers built from the same Store share one download and one index;
// each only looks at its own repository key.
type FlyBaseProvider struct {
	def    *bulkdata.RepositoryDef
	store  *bulkdata.Store
	logger *zap.Logger
}

// NewFlyBaseProvider creates a provider for repo backed by store.
func NewFlyBaseProvider(repo model.Repository, store *bulkdata.Store, logger *zap.Logger) (*FlyBaseProvider, error) {
	def, ok := bulkdata.LookupRepository(repo)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRepository, repo)
	}
	return &FlyBaseProvider{
		def:    def,
		store:  store,
		logger: logger.With(zap.String("repository", string(repo))),
	}, nil
}

func (p *FlyBaseProvider) Repository() model.RepositoryInfo {
	return p.def.Info()
}

// Search loads the index on first use, then matches against it.
func (p *FlyBaseProvider) Search(ctx context.Context, query string, limit int) ([]model.StockImportData, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", ErrMalformedQuery)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", ErrMalformedQuery, limit)
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	ix, err := p.store.Ensure(ctx)
	if err != nil {
		return nil, err
	}

	recs := ix.Search(p.def, query, limit)
	out := make([]model.StockImportData, len(recs))
	for i, rec := range recs {
		out[i] = p.toImportData(rec, ix.Metadata().SourceVersion)
	}
	return out, nil
}

func (p *FlyBaseProvider) GetDetails(ctx context.Context, externalID string) (*model.StockImportData, error) {
	ix, err := p.store.Ensure(ctx)
	if err != nil {
		return nil, err
	}

	rec, ok := ix.Get(p.def.ID, externalID)
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, p.def.ID, externalID)
	}
	data := p.toImportData(rec, ix.Metadata().SourceVersion)
	return &data, nil
}

func (p *FlyBaseProvider) Refresh(ctx context.Context, force bool) (*RefreshResult, error) {
	res, err := p.store.Refresh(ctx, force)
	if err != nil {
		return nil, err
	}

	out := &RefreshResult{
		Repository:    p.def.ID,
		SourceVersion: res.SourceVersion,
		Rebuilt:       res.Rebuilt,
		FetchFailed:   res.FetchFailed,
		Scan:          res.Scan,
	}
	if res.FetchFailed {
		out.Warning = "download failed, serving cached data: " + res.FetchError
	}
	if ix := p.store.Current(); ix != nil {
		out.TotalStocks = ix.Count(p.def.ID)
	}

	p.logger.Info("refreshed repository",
		zap.Int("total_stocks", out.TotalStocks),
		zap.String("source_version", out.SourceVersion),
		zap.Bool("rebuilt", out.Rebuilt),
		zap.Bool("fetch_failed", out.FetchFailed),
	)
	return out, nil
}

// Stats reads whatever is already loaded; an unloaded index reports zero stocks.
func (p *FlyBaseProvider) Stats(_ context.Context) (*model.SourceStats, error) {
	stats := &model.SourceStats{Repository: p.def.ID}

	meta, valid := p.store.CacheStatus()
	stats.CacheValid = valid
	if meta != nil {
		stats.SourceVersion = meta.SourceVersion
		downloaded := meta.DownloadedAt
		stats.DownloadedAt = &downloaded
	}

	if ix := p.store.Current(); ix != nil {
		stats.TotalStocks = ix.Count(p.def.ID)
		stats.Conflicts = ix.Conflicts(p.def.ID)
		stats.SourceVersion = ix.Metadata().SourceVersion
	}
	return stats, nil
}

func (p *FlyBaseProvider) toImportData(rec model.StockRecord, sourceVersion string) model.StockImportData {
	return model.StockImportData{
		ExternalID: rec.StockNumber,
		Repository: rec.Repository,
		Genotype:   rec.Genotype,
		Species:    rec.Species,
		Metadata: model.ImportMetadata{
			FlyBaseID:     rec.FlyBaseID,
			SourceURL:     bulkdata.FlyBaseURL(rec.FlyBaseID),
			ExternalURL:   p.def.ExternalURL(rec.StockNumber),
			SourceVersion: sourceVersion,
			StockType:     rec.StockType,
		},
	}
}
