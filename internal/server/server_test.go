package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fleveque/flystocks/internal/bulkdata"
	"github.com/fleveque/flystocks/internal/config"
	"github.com/fleveque/flystocks/internal/provider"
	"github.com/fleveque/flystocks/internal/service"
	"github.com/fleveque/flystocks/internal/storage"
)

const bulkFile = "#FBst\tcollection_short_name\tspecies\tFB_genotype\tstock_number\n" +
	"FBst0080563\tBloomington\tDmel\tw[*]; P{Gr21a...}\t80563\n"

func newTestServer(t *testing.T) *Server {
	t.Helper()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(bulkFile))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	body := buf.Bytes()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	t.Cleanup(upstream.Close)

	dir := t.TempDir()
	cfg := &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Auth: config.AuthConfig{
			TenantKeys: []config.TenantKey{{Key: "key-a", Tenant: "lab-a"}},
			AdminKeys:  []string{"admin-key"},
		},
		CORS: config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		FlyBase: config.FlyBaseConfig{
			URL:          upstream.URL + "/stocks_FB2025_01.tsv.gz",
			CacheDir:     filepath.Join(dir, "flybase"),
			MaxAge:       time.Hour,
			FetchTimeout: 5 * time.Second,
			SearchLimit:  20,
		},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 100, Burst: 100},
		Log:       config.LogConfig{Level: "info"},
	}

	cache, err := storage.NewCacheDir(cfg.FlyBase.CacheDir, "stocks")
	require.NoError(t, err)
	db, err := storage.NewDatabase(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := zap.NewNop()
	store := bulkdata.NewStore(
		bulkdata.NewFetcher(cfg.FlyBase.URL, cache, cfg.FlyBase.MaxAge, cfg.FlyBase.FetchTimeout, logger), logger)
	registry := provider.NewFlyBaseRegistry(store, logger)
	stocks := storage.NewStockRepository(db)

	srv := New(cfg, Deps{
		Store:         store,
		Registry:      registry,
		ImportService: service.NewImportService(registry, stocks, logger),
		StockRepo:     stocks,
	}, logger)
	gin.SetMode(gin.TestMode)
	return srv
}

func request(srv *Server, method, path, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestRoutes_HealthIsPublic(t *testing.T) {
	srv := newTestServer(t)

	w := request(srv, "GET", "/healthz", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoutes_TenantEndpointsRequireKey(t *testing.T) {
	srv := newTestServer(t)

	w := request(srv, "GET", "/api/v1/repositories", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = request(srv, "GET", "/api/v1/repositories", "key-a", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = request(srv, "GET", "/api/v1/repositories", "admin-key", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoutes_AdminEndpointsRequireAdminKey(t *testing.T) {
	srv := newTestServer(t)

	w := request(srv, "POST", "/api/v1/admin/repositories/bdsc/refresh", "key-a", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = request(srv, "POST", "/api/v1/admin/repositories/bdsc/refresh", "admin-key", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_stocks":1`)
}

func TestRoutes_ImportUsesKeyTenant(t *testing.T) {
	srv := newTestServer(t)

	w := request(srv, "POST", "/api/v1/imports", "key-a",
		`{"items":[{"external_id":"80563","repository":"bdsc"}]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"imported_identifiers":["BDSC-80563"]`)

	w = request(srv, "GET", "/api/v1/inventory/BDSC-80563", "key-a", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"tenant_id":"lab-a"`)
}

func TestRoutes_CORSAllowsImports(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest("OPTIONS", "/api/v1/imports", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
}
