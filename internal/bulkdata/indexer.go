package bulkdata

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/fleveque/flystocks/internal/model"
)

// ErrMissingColumn is returned when the header lacks a required column.
// Unlike a bad row, this makes the whole file unusable.
var ErrMissingColumn = errors.New("required column missing from header")

// Column names of the FlyBase precomputed stocks file.
const (
	colFlyBaseID   = "FBst"
	colCollection  = "collection_short_name"
	colStockType   = "stock_type_cv"
	colSpecies     = "species"
	colGenotype    = "FB_genotype"
	colStockNumber = "stock_number"
)

var requiredColumns = []string{colFlyBaseID, colCollection, colSpecies, colGenotype, colStockNumber}

// ScanStats counts what happened to each data row of the file.
type ScanStats struct {
	Rows         int `json:"rows"`
	Indexed      int `json:"indexed"`
	Malformed    int `json:"malformed"`
	Unrecognized int `json:"unrecognized"`
	Conflicts    int `json:"conflicts"`
}

// columns holds the position of each named column in a row.
type columns struct {
	flybaseID, collection, stockType, species, genotype, stockNumber int
	width                                                            int
}

func parseHeader(line string) (columns, error) {
	line = strings.TrimPrefix(line, "#")
	pos := make(map[string]int)
	for i, name := range strings.Split(line, "\t") {
		pos[strings.TrimSpace(name)] = i
	}
	for _, name := range requiredColumns {
		if _, ok := pos[name]; !ok {
			return columns{}, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}

	cols := columns{
		flybaseID:   pos[colFlyBaseID],
		collection:  pos[colCollection],
		species:     pos[colSpecies],
		genotype:    pos[colGenotype],
		stockNumber: pos[colStockNumber],
		stockType:   -1,
	}
	if i, ok := pos[colStockType]; ok {
		cols.stockType = i
	}
	for _, name := range requiredColumns {
		if pos[name]+1 > cols.width {
			cols.width = pos[name] + 1
		}
	}
	return cols, nil
}

func field(fields []string, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[i])
}

// Scan streams a decompressed stocks file and calls fn for every row that maps
// to a supported repository. Comment lines ("##") and blank lines are ignored;
// the first other line is the header. Rows that are short, lack a stock
// number, or name an unknown collection are skipped and counted.
//
// Only one line is held in memory at a time, so file size doesn't matter.
func Scan(r io.Reader, logger *zap.Logger, fn func(rec model.StockRecord) error) (ScanStats, error) {
	var stats ScanStats
	br := bufio.NewReaderSize(r, 64<<10)

	var cols columns
	haveHeader := false
	lineNo := 0

	for {
		line, readErr := br.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return stats, fmt.Errorf("reading line %d: %w", lineNo+1, readErr)
		}
		if line == "" && readErr == io.EOF {
			break
		}
		lineNo++
		line = strings.TrimRight(line, "\r\n")

		switch {
		case strings.TrimSpace(line) == "", strings.HasPrefix(line, "##"):
			// comment or blank
		case !haveHeader:
			var err error
			if cols, err = parseHeader(line); err != nil {
				return stats, err
			}
			haveHeader = true
		default:
			stats.Rows++
			rec, ok := parseRow(line, cols, lineNo, &stats, logger)
			if ok {
				if err := fn(rec); err != nil {
					return stats, err
				}
				stats.Indexed++
			}
		}

		if readErr == io.EOF {
			break
		}
	}

	if !haveHeader {
		return stats, fmt.Errorf("%w: file has no header", ErrMissingColumn)
	}
	return stats, nil
}

func parseRow(line string, cols columns, lineNo int, stats *ScanStats, logger *zap.Logger) (model.StockRecord, bool) {
	fields := strings.Split(line, "\t")
	if len(fields) < cols.width {
		stats.Malformed++
		logger.Debug("skipping short row",
			zap.Int("line", lineNo),
			zap.Int("fields", len(fields)),
			zap.Int("expected", cols.width),
		)
		return model.StockRecord{}, false
	}

	stockNumber := field(fields, cols.stockNumber)
	if stockNumber == "" {
		stats.Malformed++
		logger.Debug("skipping row without stock number", zap.Int("line", lineNo))
		return model.StockRecord{}, false
	}

	collection := field(fields, cols.collection)
	repo, ok := ClassifyCollection(collection)
	if !ok {
		stats.Unrecognized++
		logger.Debug("skipping unrecognized collection",
			zap.Int("line", lineNo),
			zap.String("collection", collection),
		)
		return model.StockRecord{}, false
	}

	return model.StockRecord{
		Repository:  repo,
		StockNumber: stockNumber,
		FlyBaseID:   field(fields, cols.flybaseID),
		Genotype:    field(fields, cols.genotype),
		Species:     field(fields, cols.species),
		StockType:   field(fields, cols.stockType),
		Collection:  collection,
	}, true
}

// BuildIndex decompresses and scans the cached file into a fresh Index.
// The previous index is never touched; the caller decides when to swap.
func BuildIndex(path string, meta model.CacheMetadata, logger *zap.Logger) (*Index, ScanStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ScanStats{}, fmt.Errorf("opening cached file: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, ScanStats{}, fmt.Errorf("opening gzip stream: %w", err)
	}
	defer gz.Close()

	b := newIndexBuilder(meta)
	stats, err := Scan(gz, logger, func(rec model.StockRecord) error {
		if b.add(rec) {
			logger.Debug("duplicate stock number, keeping last",
				zap.String("repository", string(rec.Repository)),
				zap.String("stock_number", rec.StockNumber),
			)
		}
		return nil
	})
	if err != nil {
		return nil, stats, err
	}

	ix := b.finish()
	stats.Conflicts = ix.TotalConflicts()

	logger.Info("built stock index",
		zap.String("source_version", meta.SourceVersion),
		zap.Int("rows", stats.Rows),
		zap.Int("indexed", ix.Total()),
		zap.Int("malformed", stats.Malformed),
		zap.Int("unrecognized", stats.Unrecognized),
		zap.Int("conflicts", stats.Conflicts),
	)
	return ix, stats, nil
}
