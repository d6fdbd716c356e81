package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/flystocks/internal/model"
	"github.com/fleveque/flystocks/internal/provider"
)

// AdminHandler handles administrative endpoints.
type AdminHandler struct {
	registry *provider.Registry
	logger   *zap.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(registry *provider.Registry, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		registry: registry,
		logger:   logger,
	}
}

// Refresh reloads the bulk data behind a repository. With force=true the
// file is downloaded even if the cache is still fresh. A failed download
// that falls back to the cache still answers 200, with a warning.
// Route: POST /api/v1/admin/repositories/:repository/refresh?force=true
func (h *AdminHandler) Refresh(c *gin.Context) {
	force := false
	if raw := c.Query("force"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "force must be a boolean"})
			return
		}
		force = parsed
	}

	p, err := h.registry.Get(model.Repository(c.Param("repository")))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("refresh requested",
		zap.String("repository", c.Param("repository")),
		zap.Bool("force", force),
	)

	res, err := p.Refresh(c.Request.Context(), force)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
