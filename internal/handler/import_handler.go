package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/flystocks/internal/middleware"
	"github.com/fleveque/flystocks/internal/model"
	"github.com/fleveque/flystocks/internal/service"
	"github.com/fleveque/flystocks/internal/storage"
)

// ImportHandler handles tenant-scoped imports and reads back what they made.
type ImportHandler struct {
	importService *service.ImportService
	stocks        storage.StockRepository
	logger        *zap.Logger
}

// NewImportHandler creates a new ImportHandler.
func NewImportHandler(importService *service.ImportService, stocks storage.StockRepository, logger *zap.Logger) *ImportHandler {
	return &ImportHandler{
		importService: importService,
		stocks:        stocks,
		logger:        logger,
	}
}

// ImportRequest is the body of POST /api/v1/imports.
type ImportRequest struct {
	Items []model.ImportItem `json:"items" binding:"required,dive"`
}

// Import creates local stocks for the selected external stocks. Per-item
// failures are reported in the outcome with a 200; only a malformed request
// or a missing tenant fails the whole call.
// Route: POST /api/v1/imports
func (h *ImportHandler) Import(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid import request: " + err.Error()})
		return
	}

	outcome, err := h.importService.Import(c.Request.Context(), middleware.TenantID(c), req.Items)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// InventorySummary reports how many stocks the calling tenant holds.
// Route: GET /api/v1/inventory
func (h *ImportHandler) InventorySummary(c *gin.Context) {
	tenantID := middleware.TenantID(c)
	if tenantID == "" {
		respondError(c, h.logger, service.ErrTenantRequired)
		return
	}

	count, err := h.stocks.CountByTenant(c.Request.Context(), tenantID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tenant_id":   tenantID,
		"stock_count": count,
	})
}

// GetInventoryStock returns one of the tenant's stocks and its external
// references.
// Route: GET /api/v1/inventory/:stock_id
func (h *ImportHandler) GetInventoryStock(c *gin.Context) {
	ctx := c.Request.Context()

	stock, err := h.stocks.GetByStockID(ctx, middleware.TenantID(c), c.Param("stock_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	refs, err := h.stocks.ListExternalReferences(ctx, stock.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if refs == nil {
		refs = []model.ExternalReference{}
	}

	c.JSON(http.StatusOK, gin.H{
		"stock":               stock,
		"external_references": refs,
	})
}
