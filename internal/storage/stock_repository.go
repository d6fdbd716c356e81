package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/fleveque/flystocks/internal/model"
)

// ErrNotFound is returned when a stock doesn't exist in the database.
var ErrNotFound = errors.New("stock not found")

// ErrDuplicateStock is returned by Create when the tenant already has a stock
// with the same identifier. The UNIQUE(tenant_id, stock_id) constraint makes
// the check-and-insert atomic even when two imports race.
var ErrDuplicateStock = errors.New("stock identifier already exists")

// StockRepository is the persistence collaborator of the import flow.
// The service tests satisfy it with an in-memory fake.
type StockRepository interface {
	Exists(ctx context.Context, tenantID, stockID string) (bool, error)
	// CreateWithReference inserts a stock and its external reference in one
	// transaction: either both rows exist afterwards or neither does.
	CreateWithReference(ctx context.Context, tenantID string, draft *model.StockDraft, ref model.ExternalRefDraft) (string, error)
	GetByStockID(ctx context.Context, tenantID, stockID string) (*model.Stock, error)
	ListExternalReferences(ctx context.Context, stockRef string) ([]model.ExternalReference, error)
	CountByTenant(ctx context.Context, tenantID string) (int64, error)
}

type sqliteStockRepository struct {
	db *sqlx.DB
}

// NewStockRepository creates a new SQLite-backed StockRepository.
func NewStockRepository(db *sqlx.DB) StockRepository {
	return &sqliteStockRepository{db: db}
}

func (r *sqliteStockRepository) Exists(ctx context.Context, tenantID, stockID string) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM stocks WHERE tenant_id = ? AND stock_id = ?", tenantID, stockID)
	if err != nil {
		return false, fmt.Errorf("checking stock %s: %w", stockID, err)
	}
	return n > 0, nil
}

func (r *sqliteStockRepository) CreateWithReference(ctx context.Context, tenantID string, draft *model.StockDraft, ref model.ExternalRefDraft) (string, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	// Rollback after Commit is a no-op.
	defer func() { _ = tx.Rollback() }()

	id, err := insertStock(ctx, tx, tenantID, draft)
	if err != nil {
		return "", err
	}
	if err := insertExternalReference(ctx, tx, id, ref); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing stock %s: %w", draft.StockID, err)
	}
	return id, nil
}

func insertStock(ctx context.Context, tx *sqlx.Tx, tenantID string, draft *model.StockDraft) (string, error) {
	id := uuid.NewString()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO stocks (id, tenant_id, stock_id, genotype, original_genotype, species,
		                    origin, repository, repository_stock_id, location, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, tenantID, draft.StockID, draft.Genotype, draft.OriginalGenotype, draft.Species,
		draft.Origin, nullIfEmpty(string(draft.Repository)), nullIfEmpty(draft.RepositoryStockID),
		nullIfEmpty(draft.Location), nullIfEmpty(draft.Notes))
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return "", fmt.Errorf("%w: %s", ErrDuplicateStock, draft.StockID)
		}
		return "", fmt.Errorf("creating stock %s: %w", draft.StockID, err)
	}
	return id, nil
}

func insertExternalReference(ctx context.Context, tx *sqlx.Tx, stockRef string, ref model.ExternalRefDraft) error {
	raw, err := json.Marshal(ref.Metadata)
	if err != nil {
		return fmt.Errorf("encoding reference metadata: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO external_references (stock_ref, repository, external_id, metadata) VALUES (?, ?, ?, ?)",
		stockRef, ref.Repository, ref.ExternalID, string(raw))
	if err != nil {
		return fmt.Errorf("creating external reference for %s: %w", stockRef, err)
	}
	return nil
}

func (r *sqliteStockRepository) GetByStockID(ctx context.Context, tenantID, stockID string) (*model.Stock, error) {
	var stock model.Stock
	err := r.db.GetContext(ctx, &stock,
		"SELECT * FROM stocks WHERE tenant_id = ? AND stock_id = ?", tenantID, stockID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting stock %s: %w", stockID, err)
	}
	return &stock, nil
}

func (r *sqliteStockRepository) ListExternalReferences(ctx context.Context, stockRef string) ([]model.ExternalReference, error) {
	var refs []model.ExternalReference
	err := r.db.SelectContext(ctx, &refs,
		"SELECT id, stock_ref, repository, external_id, metadata, created_at FROM external_references WHERE stock_ref = ? ORDER BY id",
		stockRef)
	if err != nil {
		return nil, fmt.Errorf("listing external references for %s: %w", stockRef, err)
	}
	for i := range refs {
		if err := json.Unmarshal([]byte(refs[i].RawJSON), &refs[i].Metadata); err != nil {
			return nil, fmt.Errorf("decoding reference metadata %d: %w", refs[i].ID, err)
		}
	}
	return refs, nil
}

func (r *sqliteStockRepository) CountByTenant(ctx context.Context, tenantID string) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM stocks WHERE tenant_id = ?", tenantID)
	return count, err
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
