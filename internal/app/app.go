// Package app builds the object graph shared by the server and the CLI.
package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/fleveque/flystocks/internal/bulkdata"
	"github.com/fleveque/flystocks/internal/config"
	"github.com/fleveque/flystocks/internal/provider"
	"github.com/fleveque/flystocks/internal/service"
	"github.com/fleveque/flystocks/internal/storage"
)

// bulkCacheName is the file stem of the cached FlyBase download.
const bulkCacheName = "stocks"

// App holds the wired components. Close releases the database.
type App struct {
	Config        *config.Config
	DB            *sqlx.DB
	Store         *bulkdata.Store
	Registry      *provider.Registry
	StockRepo     storage.StockRepository
	ImportService *service.ImportService
}

// New opens storage and wires the FlyBase pipeline from cfg.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := storage.NewDatabase(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	cache, err := storage.NewCacheDir(cfg.FlyBase.CacheDir, bulkCacheName)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bulk cache: %w", err)
	}

	fetcher := bulkdata.NewFetcher(cfg.FlyBase.URL, cache, cfg.FlyBase.MaxAge, cfg.FlyBase.FetchTimeout, logger)
	store := bulkdata.NewStore(fetcher, logger)
	registry := provider.NewFlyBaseRegistry(store, logger)
	stockRepo := storage.NewStockRepository(db)

	return &App{
		Config:        cfg,
		DB:            db,
		Store:         store,
		Registry:      registry,
		StockRepo:     stockRepo,
		ImportService: service.NewImportService(registry, stockRepo, logger),
	}, nil
}

// Close releases the database connection.
func (a *App) Close() error {
	return a.DB.Close()
}
