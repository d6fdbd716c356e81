// Package handler contains HTTP request handlers.
// A Gin handler is any function with signature func(*gin.Context); handlers
// here are grouped by resource, one struct per file.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fleveque/flystocks/internal/bulkdata"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	store *bulkdata.Store
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(store *bulkdata.Store) *HealthHandler {
	return &HealthHandler{store: store}
}

// Healthz responds with service status. The service is healthy before the
// first index load; index_loaded tells whether searches will hit the network.
func (h *HealthHandler) Healthz(c *gin.Context) {
	resp := gin.H{
		"status":       "ok",
		"service":      "flystocks",
		"index_loaded": false,
	}
	if ix := h.store.Current(); ix != nil {
		resp["index_loaded"] = true
		resp["total_stocks"] = ix.Total()
		resp["source_version"] = ix.Metadata().SourceVersion
	}
	c.JSON(http.StatusOK, resp)
}
