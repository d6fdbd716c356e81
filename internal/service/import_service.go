// Package service contains the business logic that turns external stock
// records into local, tenant-scoped stocks.
package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fleveque/flystocks/internal/model"
	"github.com/fleveque/flystocks/internal/provider"
	"github.com/fleveque/flystocks/internal/storage"
)

// ErrTenantRequired is returned when Import is called without a tenant.
var ErrTenantRequired = errors.New("tenant is required for import")

type itemStatus int

const (
	statusImported itemStatus = iota
	statusSkipped
	statusFailed
)

// ImportService runs one-shot imports of external stocks.
//
// Every item is handled on its own: a failure is recorded in the outcome and
// the loop moves on. An item either lands as a stock with its external
// reference or leaves nothing behind, so a failed item can simply be retried.
type ImportService struct {
	registry *provider.Registry
	stocks   storage.StockRepository
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewImportService wires the provider registry to stock persistence.
func NewImportService(registry *provider.Registry, stocks storage.StockRepository, logger *zap.Logger) *ImportService {
	return &ImportService{
		registry: registry,
		stocks:   stocks,
		logger:   logger,
		tracer:   otel.Tracer("github.com/fleveque/flystocks/internal/service"),
	}
}

// Import creates a local stock for each selected external stock that the
// tenant doesn't already have. The tenant comes from the caller's auth
// context; this service never resolves it itself.
func (s *ImportService) Import(ctx context.Context, tenantID string, items []model.ImportItem) (*model.ImportOutcome, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}

	ctx, span := s.tracer.Start(ctx, "service.import", trace.WithAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.Int("items", len(items)),
	))
	defer span.End()

	outcome := model.NewImportOutcome()
	for i, item := range items {
		// Cancellation stops the loop; the rest are reported, not dropped.
		if err := ctx.Err(); err != nil {
			for _, rest := range items[i:] {
				outcome.ErrorMessages = append(outcome.ErrorMessages,
					fmt.Sprintf("%s: not processed: %v", rest.TargetStockID(), err))
			}
			break
		}

		stockID, status, err := s.importOne(ctx, tenantID, item)
		switch status {
		case statusImported:
			outcome.ImportedCount++
			outcome.ImportedIdentifiers = append(outcome.ImportedIdentifiers, stockID)
		case statusSkipped:
			outcome.SkippedCount++
		case statusFailed:
			outcome.ErrorMessages = append(outcome.ErrorMessages, fmt.Sprintf("%s: %v", stockID, err))
			s.logger.Warn("import item failed",
				zap.String("tenant_id", tenantID),
				zap.String("stock_id", stockID),
				zap.String("repository", string(item.Repository)),
				zap.String("external_id", item.ExternalID),
				zap.Error(err),
			)
		}
	}

	span.SetAttributes(
		attribute.Int("imported", outcome.ImportedCount),
		attribute.Int("skipped", outcome.SkippedCount),
		attribute.Int("errors", len(outcome.ErrorMessages)),
	)
	s.logger.Info("import complete",
		zap.String("tenant_id", tenantID),
		zap.Int("requested", len(items)),
		zap.Int("imported", outcome.ImportedCount),
		zap.Int("skipped", outcome.SkippedCount),
		zap.Int("failed", len(outcome.ErrorMessages)),
	)
	return outcome, nil
}

// importOne resolves, checks, and persists a single item.
func (s *ImportService) importOne(ctx context.Context, tenantID string, item model.ImportItem) (string, itemStatus, error) {
	stockID := item.TargetStockID()

	p, err := s.registry.Get(item.Repository)
	if err != nil {
		return stockID, statusFailed, err
	}

	details, err := p.GetDetails(ctx, item.ExternalID)
	if err != nil {
		return stockID, statusFailed, fmt.Errorf("resolving %s %s: %w", item.Repository, item.ExternalID, err)
	}

	exists, err := s.stocks.Exists(ctx, tenantID, stockID)
	if err != nil {
		return stockID, statusFailed, fmt.Errorf("checking existing stock: %w", err)
	}
	if exists {
		s.logger.Debug("stock already exists, skipping",
			zap.String("tenant_id", tenantID),
			zap.String("stock_id", stockID),
		)
		return stockID, statusSkipped, nil
	}

	ref := model.ExternalRefDraft{
		Repository: details.Repository,
		ExternalID: details.ExternalID,
		Metadata:   details.Metadata,
	}
	_, err = s.stocks.CreateWithReference(ctx, tenantID, newDraft(stockID, item, details), ref)
	if errors.Is(err, storage.ErrDuplicateStock) {
		// Lost a race with a concurrent import of the same id.
		return stockID, statusSkipped, nil
	}
	if err != nil {
		return stockID, statusFailed, fmt.Errorf("creating stock: %w", err)
	}

	return stockID, statusImported, nil
}

func newDraft(stockID string, item model.ImportItem, details *model.StockImportData) *model.StockDraft {
	return &model.StockDraft{
		StockID:           stockID,
		Genotype:          details.Genotype,
		OriginalGenotype:  details.Genotype,
		Species:           details.Species,
		Origin:            model.OriginRepository,
		Repository:        details.Repository,
		RepositoryStockID: details.ExternalID,
		Location:          item.Location,
		Notes:             item.Notes,
	}
}
