package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testTenants = map[string]string{
	"key-a": "lab-a",
	"key-b": "lab-b",
}

// tenantEcho responds with the tenant the auth middleware resolved.
func tenantEcho(c *gin.Context) {
	c.String(http.StatusOK, TenantID(c))
}

func TestTenantKeyAuth_ValidHeader(t *testing.T) {
	router := gin.New()
	router.Use(TenantKeyAuth(testTenants))
	router.GET("/test", tenantEcho)

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-API-Key", "key-b")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != "lab-b" {
		t.Errorf("expected tenant lab-b, got %q", w.Body.String())
	}
}

func TestTenantKeyAuth_ValidQueryParam(t *testing.T) {
	router := gin.New()
	router.Use(TenantKeyAuth(testTenants))
	router.GET("/test", tenantEcho)

	req := httptest.NewRequest("GET", "/test?api_key=key-a", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != "lab-a" {
		t.Errorf("expected tenant lab-a, got %q", w.Body.String())
	}
}

func TestTenantKeyAuth_Missing(t *testing.T) {
	router := gin.New()
	router.Use(TenantKeyAuth(testTenants))
	router.GET("/test", tenantEcho)

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestTenantKeyAuth_Invalid(t *testing.T) {
	router := gin.New()
	router.Use(TenantKeyAuth(testTenants))
	router.GET("/test", tenantEcho)

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-API-Key", "wrong-key")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestTenantID_WithoutAuth(t *testing.T) {
	router := gin.New()
	router.GET("/test", tenantEcho)

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Body.String() != "" {
		t.Errorf("expected empty tenant, got %q", w.Body.String())
	}
}

func TestAdminKeyAuth_Valid(t *testing.T) {
	router := gin.New()
	router.Use(AdminKeyAuth([]string{"admin-key"}))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-API-Key", "admin-key")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestAdminKeyAuth_TenantKeyIsForbidden(t *testing.T) {
	router := gin.New()
	router.Use(AdminKeyAuth([]string{"admin-key"}))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-API-Key", "key-a")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}

func TestAdminKeyAuth_Missing(t *testing.T) {
	router := gin.New()
	router.Use(AdminKeyAuth([]string{"admin-key"}))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}
