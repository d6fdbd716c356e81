package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, DefaultFlyBaseURL, cfg.FlyBase.URL)
	assert.Equal(t, 30*24*time.Hour, cfg.FlyBase.MaxAge)
	assert.Equal(t, 60*time.Second, cfg.FlyBase.FetchTimeout)
	assert.Equal(t, 20, cfg.FlyBase.SearchLimit)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
flybase:
  cache_dir: /data/flybase
  max_age: 240h
auth:
  tenant_keys:
    - key: Key-A
      tenant: lab-a
  admin_keys: [admin]
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))
	t.Setenv("FLYSTOCKS_SERVER_PORT", "9090")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/flybase", cfg.FlyBase.CacheDir)
	assert.Equal(t, 240*time.Hour, cfg.FlyBase.MaxAge)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, map[string]string{"Key-A": "lab-a"}, cfg.Auth.TenantsByKey())
	assert.Equal(t, []string{"admin"}, cfg.Auth.AdminKeys)
}

func TestLoad_RejectsNonPositiveSearchLimit(t *testing.T) {
	t.Setenv("FLYSTOCKS_FLYBASE_SEARCH_LIMIT", "0")

	_, err := Load("")
	require.Error(t, err)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_RejectsIncompleteTenantKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
auth:
  tenant_keys:
    - key: orphan
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	_, err := Load(path)
	require.Error(t, err)
}
