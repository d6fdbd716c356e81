package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/flystocks/internal/model"
	"github.com/fleveque/flystocks/internal/provider"
)

// StockHandler serves read-only views of the external repositories.
type StockHandler struct {
	registry     *provider.Registry
	defaultLimit int
	logger       *zap.Logger
}

// NewStockHandler creates a StockHandler. defaultLimit applies when a search
// request carries no limit.
func NewStockHandler(registry *provider.Registry, defaultLimit int, logger *zap.Logger) *StockHandler {
	return &StockHandler{
		registry:     registry,
		defaultLimit: defaultLimit,
		logger:       logger,
	}
}

// ListRepositories lists the supported repositories in display order.
// Route: GET /api/v1/repositories
func (h *StockHandler) ListRepositories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"repositories": h.registry.List()})
}

// Stats reports the cached state of one repository without fetching.
// Route: GET /api/v1/repositories/:repository/stats
func (h *StockHandler) Stats(c *gin.Context) {
	p, err := h.registry.Get(model.Repository(c.Param("repository")))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	stats, err := p.Stats(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Search matches stocks in one repository, or all when repository is empty.
// Route: GET /api/v1/stocks/search?q=80563&repository=bdsc&limit=20
func (h *StockHandler) Search(c *gin.Context) {
	limit := h.defaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, h.logger, fmt.Errorf("%w: limit %q is not a number", provider.ErrMalformedQuery, raw))
			return
		}
		limit = n
	}

	repo := model.Repository(c.Query("repository"))
	results, err := h.registry.Search(c.Request.Context(), c.Query("q"), repo, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"query":   c.Query("q"),
		"count":   len(results),
		"results": results,
	})
}

// GetStock resolves one stock by its native id.
// Route: GET /api/v1/repositories/:repository/stocks/:external_id
func (h *StockHandler) GetStock(c *gin.Context) {
	p, err := h.registry.Get(model.Repository(c.Param("repository")))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	details, err := p.GetDetails(c.Request.Context(), c.Param("external_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, details)
}
