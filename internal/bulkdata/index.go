package bulkdata

import (
	"sort"
	"strconv"
	"strings"

	"github.com/fleveque/flystocks/internal/model"
)

// Index is the in-memory lookup structure: repository → stock number → record.
// An Index is immutable once built; refreshing builds a new one and swaps it in.
type Index struct {
	repos map[model.Repository]*repoIndex
	total int
	meta  model.CacheMetadata
}

type repoIndex struct {
	byNumber  map[string]*entry
	order     []*entry
	conflicts int
}

type entry struct {
	rec           model.StockRecord
	seq           int // position of the first occurrence in the file
	numberLower   string
	genotypeLower string
}

type indexBuilder struct {
	ix  *Index
	seq int
}

func newIndexBuilder(meta model.CacheMetadata) *indexBuilder {
	return &indexBuilder{ix: &Index{
		repos: make(map[model.Repository]*repoIndex),
		meta:  meta,
	}}
}

// add inserts a record and reports whether it replaced an earlier one with the
// same key. The last occurrence wins, but keeps the first one's position.
func (b *indexBuilder) add(rec model.StockRecord) bool {
	ri, ok := b.ix.repos[rec.Repository]
	if !ok {
		ri = &repoIndex{byNumber: make(map[string]*entry)}
		b.ix.repos[rec.Repository] = ri
	}

	e := &entry{
		rec:           rec,
		numberLower:   strings.ToLower(rec.StockNumber),
		genotypeLower: strings.ToLower(rec.Genotype),
	}
	if old, dup := ri.byNumber[rec.StockNumber]; dup {
		e.seq = old.seq
		*old = *e
		ri.conflicts++
		return true
	}

	e.seq = b.seq
	b.seq++
	ri.byNumber[rec.StockNumber] = e
	ri.order = append(ri.order, e)
	b.ix.total++
	return false
}

func (b *indexBuilder) finish() *Index {
	return b.ix
}

// Metadata returns the metadata of the file the index was built from.
func (ix *Index) Metadata() model.CacheMetadata {
	return ix.meta
}

// Total returns the number of distinct stocks across all repositories.
func (ix *Index) Total() int {
	return ix.total
}

// Count returns the number of stocks indexed for one repository.
func (ix *Index) Count(repo model.Repository) int {
	if ri, ok := ix.repos[repo]; ok {
		return len(ri.order)
	}
	return 0
}

// Conflicts returns how many duplicate stock numbers were overwritten for a repository.
func (ix *Index) Conflicts(repo model.Repository) int {
	if ri, ok := ix.repos[repo]; ok {
		return ri.conflicts
	}
	return 0
}

// TotalConflicts sums Conflicts over all repositories.
func (ix *Index) TotalConflicts() int {
	n := 0
	for _, ri := range ix.repos {
		n += ri.conflicts
	}
	return n
}

// Get looks up one stock by its native number.
func (ix *Index) Get(repo model.Repository, stockNumber string) (model.StockRecord, bool) {
	ri, ok := ix.repos[repo]
	if !ok {
		return model.StockRecord{}, false
	}
	e, ok := ri.byNumber[strings.TrimSpace(stockNumber)]
	if !ok {
		return model.StockRecord{}, false
	}
	return e.rec, true
}

// Search returns up to limit records of one repository matching query.
//
// A query written in the repository's stock number grammar is a prefix match
// on the stock number ("8056" matches "80563"); anything else is a
// case-insensitive substring match on the genotype. Results are ordered: exact
// stock number match first, then ascending stock number, then file order.
func (ix *Index) Search(def *RepositoryDef, query string, limit int) []model.StockRecord {
	ri, ok := ix.repos[def.ID]
	if !ok || limit <= 0 {
		return nil
	}

	q := strings.ToLower(strings.TrimSpace(query))
	byNumber := def.IsNativeID(q)

	var hits []*entry
	for _, e := range ri.order {
		if byNumber {
			if strings.HasPrefix(e.numberLower, q) {
				hits = append(hits, e)
			}
		} else if strings.Contains(e.genotypeLower, q) {
			hits = append(hits, e)
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if byNumber {
			ae, be := a.numberLower == q, b.numberLower == q
			if ae != be {
				return ae
			}
		}
		if c := CompareStockNumbers(a.numberLower, b.numberLower); c != 0 {
			return c < 0
		}
		return a.seq < b.seq
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]model.StockRecord, len(hits))
	for i, e := range hits {
		out[i] = e.rec
	}
	return out
}

// CompareStockNumbers orders purely numeric stock numbers numerically and
// everything else lexically, with numbers before non-numbers. Callers pass
// lower-cased values.
func CompareStockNumbers(a, b string) int {
	an, aErr := strconv.ParseUint(a, 10, 64)
	bn, bErr := strconv.ParseUint(b, 10, 64)
	switch {
	case aErr == nil && bErr == nil:
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		}
		return strings.Compare(a, b)
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	}
	return strings.Compare(a, b)
}
