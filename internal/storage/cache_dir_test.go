package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleveque/flystocks/internal/model"
)

func writeTemp(t *testing.T, c *CacheDir, content string) string {
	t.Helper()
	f, err := c.CreateTemp()
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}

func TestCacheDir_CommitAndReadMetadata(t *testing.T) {
	c, err := NewCacheDir(t.TempDir(), "stocks")
	require.NoError(t, err)

	downloaded := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tmp := writeTemp(t, c, "payload")
	require.NoError(t, c.Commit(tmp, &model.CacheMetadata{
		DownloadedAt:  downloaded,
		SourceVersion: "FB2025_01",
	}))

	_, err = os.Stat(tmp)
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")

	meta, err := c.ReadMetadata()
	require.NoError(t, err)
	assert.Equal(t, "FB2025_01", meta.SourceVersion)
	assert.True(t, meta.DownloadedAt.Equal(downloaded))
	assert.Equal(t, int64(len("payload")), meta.ByteSize)
	assert.Equal(t, c.DataPath(), meta.FilePath)
}

func TestCacheDir_ReadMetadata_NoCache(t *testing.T) {
	c, err := NewCacheDir(t.TempDir(), "stocks")
	require.NoError(t, err)

	_, err = c.ReadMetadata()
	require.ErrorIs(t, err, ErrNoCache)
}

func TestCacheDir_ReadMetadata_MissingSidecar(t *testing.T) {
	c, err := NewCacheDir(t.TempDir(), "stocks")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(c.DataPath(), []byte("data"), 0644))

	meta, err := c.ReadMetadata()
	require.NoError(t, err)
	assert.Equal(t, int64(4), meta.ByteSize)
	assert.False(t, meta.DownloadedAt.IsZero(), "falls back to file mtime")
}

func TestCacheDir_Paths(t *testing.T) {
	c := &CacheDir{baseDir: "/data/flybase", name: "stocks"}
	assert.Equal(t, filepath.Join("/data/flybase", "stocks.tsv.gz"), c.DataPath())
	assert.Equal(t, filepath.Join("/data/flybase", "stocks.meta.json"), c.MetaPath())
}

func TestCacheDir_ReadMetadata_IgnoresSidecarOfOtherFile(t *testing.T) {
	c, err := NewCacheDir(t.TempDir(), "stocks")
	require.NoError(t, err)

	require.NoError(t, c.Commit(writeTemp(t, c, "old payload"), &model.CacheMetadata{
		DownloadedAt:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		SourceVersion: "FB2025_01",
		ByteSize:      int64(len("old payload")),
	}))
	// A newer data file without its sidecar, as between the two renames.
	require.NoError(t, os.WriteFile(c.DataPath(), []byte("new"), 0644))

	meta, err := c.ReadMetadata()
	require.NoError(t, err)
	assert.Empty(t, meta.SourceVersion)
	assert.Equal(t, int64(3), meta.ByteSize)
}

func TestCacheDir_Commit_SidecarFailureKeepsData(t *testing.T) {
	c, err := NewCacheDir(t.TempDir(), "stocks")
	require.NoError(t, err)
	// A non-empty directory at the sidecar path makes its rename fail.
	require.NoError(t, os.MkdirAll(filepath.Join(c.MetaPath(), "blocker"), 0755))

	err = c.Commit(writeTemp(t, c, "payload"), &model.CacheMetadata{
		SourceVersion: "FB2025_02",
		ByteSize:      int64(len("payload")),
	})
	require.ErrorIs(t, err, ErrMetadataNotSaved)

	data, err := os.ReadFile(c.DataPath())
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	_, err = os.Stat(c.MetaPath() + ".tmp")
	assert.True(t, os.IsNotExist(err), "staged sidecar should be cleaned up")

	meta, err := c.ReadMetadata()
	require.NoError(t, err)
	assert.Empty(t, meta.SourceVersion)
	assert.Equal(t, int64(len("payload")), meta.ByteSize)
}
