package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fleveque/flystocks/internal/bulkdata"
	"github.com/fleveque/flystocks/internal/model"
)

// Registry maps repository ids to their providers, in display order.
type Registry struct {
	order     []model.Repository
	providers map[model.Repository]StockProvider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[model.Repository]StockProvider)}
}

// NewFlyBaseRegistry registers a FlyBase provider for every supported
// repository, all sharing store.
func NewFlyBaseRegistry(store *bulkdata.Store, logger *zap.Logger) *Registry {
	r := NewRegistry()
	for _, def := range bulkdata.Repositories() {
		p, err := NewFlyBaseProvider(def.ID, store, logger)
		if err != nil {
			// Repositories() only returns known ids.
			panic(err)
		}
		r.Register(p)
	}
	return r
}

// Register adds or replaces the provider for its repository.
func (r *Registry) Register(p StockProvider) {
	id := p.Repository().ID
	if _, exists := r.providers[id]; !exists {
		r.order = append(r.order, id)
	}
	r.providers[id] = p
}

// Get returns the provider of a repository.
func (r *Registry) Get(repo model.Repository) (StockProvider, error) {
	p, ok := r.providers[repo]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRepository, repo)
	}
	return p, nil
}

// List describes every registered repository.
func (r *Registry) List() []model.RepositoryInfo {
	out := make([]model.RepositoryInfo, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.providers[id].Repository())
	}
	return out
}

// Search queries one repository, or all of them when repo is empty, returning
// at most limit results in total.
//
// Across repositories every provider is asked for the full limit and the
// results are merged with the same ordering a single repository uses: exact
// stock number match first, then stock number, then repository display order.
func (r *Registry) Search(ctx context.Context, query string, repo model.Repository, limit int) ([]model.StockImportData, error) {
	if repo != "" {
		p, err := r.Get(repo)
		if err != nil {
			return nil, err
		}
		return p.Search(ctx, query, limit)
	}

	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", ErrMalformedQuery, limit)
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	type ranked struct {
		data     model.StockImportData
		exact    bool
		number   string
		repoRank int
	}

	q := strings.TrimSpace(query)
	var hits []ranked
	for rank, id := range r.order {
		found, err := r.providers[id].Search(ctx, query, limit)
		if err != nil {
			return nil, err
		}
		for _, d := range found {
			hits = append(hits, ranked{
				data:     d,
				exact:    strings.EqualFold(d.ExternalID, q),
				number:   strings.ToLower(d.ExternalID),
				repoRank: rank,
			})
		}
	}

	// Stable: ties within one repository keep that provider's order.
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.exact != b.exact {
			return a.exact
		}
		if c := bulkdata.CompareStockNumbers(a.number, b.number); c != 0 {
			return c < 0
		}
		return a.repoRank < b.repoRank
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	results := make([]model.StockImportData, len(hits))
	for i, h := range hits {
		results[i] = h.data
	}
	return results, nil
}
