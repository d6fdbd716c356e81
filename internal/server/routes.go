package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/flystocks/internal/bulkdata"
	"github.com/fleveque/flystocks/internal/config"
	"github.com/fleveque/flystocks/internal/handler"
	"github.com/fleveque/flystocks/internal/middleware"
	"github.com/fleveque/flystocks/internal/provider"
	"github.com/fleveque/flystocks/internal/service"
	"github.com/fleveque/flystocks/internal/storage"
)

// Deps holds everything the handlers need. main builds it once and passes it
// in explicitly.
type Deps struct {
	Store         *bulkdata.Store
	Registry      *provider.Registry
	ImportService *service.ImportService
	StockRepo     storage.StockRepository
}

// RegisterRoutes sets up all HTTP routes on the Gin engine.
func RegisterRoutes(r *gin.Engine, cfg *config.Config, deps Deps, logger *zap.Logger) {
	healthHandler := handler.NewHealthHandler(deps.Store)
	stockHandler := handler.NewStockHandler(deps.Registry, cfg.FlyBase.SearchLimit, logger)
	importHandler := handler.NewImportHandler(deps.ImportService, deps.StockRepo, logger)
	adminHandler := handler.NewAdminHandler(deps.Registry, logger)

	// CORS sits on the engine so preflight requests, which match no route,
	// still get answered.
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	// Public endpoints (no auth)
	r.GET("/healthz", healthHandler.Healthz)

	api := r.Group("/api/v1")

	// Tenant endpoints: the API key decides which tenant an import lands in.
	authed := api.Group("")
	authed.Use(middleware.TenantKeyAuth(cfg.Auth.TenantsByKey()))
	authed.Use(middleware.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	{
		authed.GET("/repositories", stockHandler.ListRepositories)
		authed.GET("/repositories/:repository/stats", stockHandler.Stats)
		authed.GET("/repositories/:repository/stocks/:external_id", stockHandler.GetStock)
		authed.GET("/stocks/search", stockHandler.Search)
		authed.POST("/imports", importHandler.Import)
		authed.GET("/inventory", importHandler.InventorySummary)
		authed.GET("/inventory/:stock_id", importHandler.GetInventoryStock)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AdminKeyAuth(cfg.Auth.AdminKeys))
	{
		admin.POST("/repositories/:repository/refresh", adminHandler.Refresh)
	}
}
