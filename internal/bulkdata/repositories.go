package bulkdata

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/fleveque/flystocks/internal/model"
)

// RepositoryDef is the behavior table for one external stock center.
// The set is closed: adding a center means adding a row here.
type RepositoryDef struct {
	ID   model.Repository
	Name string
	Home string
	// Collections are the collection_short_name values FlyBase uses for this center.
	Collections []string
	// NativeID matches queries written in the center's own stock number grammar.
	NativeID *regexp.Regexp
	// StockURL is a fmt template taking the escaped stock number; empty if the
	// center has no per-stock page.
	StockURL string
}

// ExternalURL returns the center's page for a stock number.
func (d *RepositoryDef) ExternalURL(stockNumber string) string {
	if d.StockURL == "" {
		return ""
	}
	return fmt.Sprintf(d.StockURL, url.QueryEscape(stockNumber))
}

// IsNativeID reports whether a query is written as a stock number of this center.
func (d *RepositoryDef) IsNativeID(query string) bool {
	return d.NativeID.MatchString(query)
}

// Info returns the public description of the repository.
func (d *RepositoryDef) Info() model.RepositoryInfo {
	return model.RepositoryInfo{ID: d.ID, Name: d.Name, URL: d.Home}
}

var repositories = []*RepositoryDef{
	{
		ID:          model.RepoBDSC,
		Name:        "Bloomington Drosophila Stock Center",
		Home:        "https://bdsc.indiana.edu",
		Collections: []string{"Bloomington", "BDSC"},
		NativeID:    regexp.MustCompile(`^\d+$`),
		StockURL:    "https://bdsc.indiana.edu/Home/Search?presearch=%s",
	},
	{
		ID:          model.RepoVDRC,
		Name:        "Vienna Drosophila Resource Center",
		Home:        "https://stockcenter.vdrc.at",
		Collections: []string{"Vienna", "VDRC"},
		NativeID:    regexp.MustCompile(`(?i)^(gd|kk|v)?\d+$`),
		StockURL:    "https://shop.vdrc.at/en/catalogsearch/result/?q=%s",
	},
	{
		ID:          model.RepoKyoto,
		Name:        "Kyoto Stock Center (DGGR)",
		Home:        "https://kyotofly.kit.jp",
		Collections: []string{"Kyoto", "DGGR", "DGRC Kyoto"},
		NativeID:    regexp.MustCompile(`^\d+$`),
		StockURL:    "https://kyotofly.kit.jp/cgi-bin/stocks/search_res_det.cgi?DB_NUM=1&DG_NUM=%s",
	},
	{
		ID:          model.RepoNIG,
		Name:        "NIG-Fly (National Institute of Genetics)",
		Home:        "https://shigen.nig.ac.jp/fly/nigfly/",
		Collections: []string{"NIG-Fly", "NIG"},
		NativeID:    regexp.MustCompile(`(?i)^\d+[a-z]?(-\d+)?$`),
		StockURL:    "https://shigen.nig.ac.jp/fly/nigfly/cgi-bin/search_result.cgi?keyword=%s",
	},
	{
		ID:          model.RepoKDRC,
		Name:        "Korea Drosophila Resource Center",
		Home:        "http://kdrc.kr",
		Collections: []string{"KDRC"},
		NativeID:    regexp.MustCompile(`^\d+$`),
	},
	{
		ID:          model.RepoFlyORF,
		Name:        "FlyORF",
		Home:        "https://flyorf.ch",
		Collections: []string{"FlyORF"},
		NativeID:    regexp.MustCompile(`(?i)^f\d+$`),
		StockURL:    "https://flyorf.ch/index.php/component/jshopping/product/view/1/%s",
	},
	{
		ID:          model.RepoNDSSC,
		Name:        "National Drosophila Species Stock Center",
		Home:        "https://www.drosophilaspecies.com",
		Collections: []string{"NDSSC", "Drosophila Species"},
		NativeID:    regexp.MustCompile(`^\d[\d.\-]*$`),
	},
	{
		ID:          model.RepoExelixis,
		Name:        "Exelixis at Harvard Medical School",
		Home:        "https://drosophila.med.harvard.edu",
		Collections: []string{"Exelixis", "Harvard"},
		NativeID:    regexp.MustCompile(`(?i)^[cdef]?\d+$`),
	},
}

// collectionIndex maps a lower-cased collection label to its repository.
var collectionIndex = func() map[string]*RepositoryDef {
	m := make(map[string]*RepositoryDef)
	for _, def := range repositories {
		for _, label := range def.Collections {
			m[strings.ToLower(label)] = def
		}
	}
	return m
}()

// ClassifyCollection maps a free-text collection label from the bulk file to a
// repository. Labels with no mapping return false and are not indexed.
func ClassifyCollection(label string) (model.Repository, bool) {
	def, ok := collectionIndex[strings.ToLower(strings.TrimSpace(label))]
	if !ok {
		return "", false
	}
	return def.ID, true
}

// LookupRepository returns the behavior table of a repository.
func LookupRepository(id model.Repository) (*RepositoryDef, bool) {
	for _, def := range repositories {
		if def.ID == id {
			return def, true
		}
	}
	return nil, false
}

// Repositories returns all supported repositories in display order.
func Repositories() []*RepositoryDef {
	out := make([]*RepositoryDef, len(repositories))
	copy(out, repositories)
	return out
}

// FlyBaseURL returns the FlyBase report page of a stock.
func FlyBaseURL(flybaseID string) string {
	if flybaseID == "" {
		return ""
	}
	return "https://flybase.org/reports/" + url.PathEscape(flybaseID)
}
