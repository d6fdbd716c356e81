package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fleveque/flystocks/internal/model"
)

var (
	// ErrNoCache is returned when no cached bulk file exists yet.
	ErrNoCache = errors.New("no cached bulk file")
	// ErrMetadataNotSaved means the data file was replaced but its sidecar
	// was not. Readers fall back to the file's own attributes.
	ErrMetadataNotSaved = errors.New("cache metadata not saved")
)

// CacheDir handles the bulk data file cached on disk.
// Layout: {baseDir}/{name}.tsv.gz plus a {name}.meta.json sidecar.
//
// Writers never touch the live files in place: data goes to a temp file in
// the same directory and is renamed over the old one, so readers see either
// the previous file or the new one.
type CacheDir struct {
	baseDir string
	name    string
}

// NewCacheDir creates a CacheDir, ensuring the base directory exists.
func NewCacheDir(baseDir, name string) (*CacheDir, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &CacheDir{baseDir: baseDir, name: name}, nil
}

// DataPath returns the path of the cached compressed file.
func (c *CacheDir) DataPath() string {
	return filepath.Join(c.baseDir, c.name+".tsv.gz")
}

// MetaPath returns the path of the metadata sidecar.
func (c *CacheDir) MetaPath() string {
	return filepath.Join(c.baseDir, c.name+".meta.json")
}

// CreateTemp opens a new temp file next to the data file. Renaming within the
// same directory keeps the final swap on one filesystem.
func (c *CacheDir) CreateTemp() (*os.File, error) {
	f, err := os.CreateTemp(c.baseDir, c.name+"-*.partial")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	return f, nil
}

// Commit moves a fully written temp file into place and records its metadata.
// The temp file must already be closed.
//
// The sidecar is staged before the data file moves, so the two renames run
// back to back. If the sidecar rename still fails, the new data file is live
// and ErrMetadataNotSaved is returned.
func (c *CacheDir) Commit(tmpPath string, meta *model.CacheMetadata) error {
	meta.FilePath = c.DataPath()
	metaTmp, err := c.stageMetadata(meta)
	if err != nil {
		return err
	}
	if err := os.Rename(tmpPath, c.DataPath()); err != nil {
		c.Remove(metaTmp)
		return fmt.Errorf("replacing cached file: %w", err)
	}
	if err := os.Rename(metaTmp, c.MetaPath()); err != nil {
		c.Remove(metaTmp)
		return fmt.Errorf("%w: %v", ErrMetadataNotSaved, err)
	}
	return nil
}

func (c *CacheDir) stageMetadata(meta *model.CacheMetadata) (string, error) {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding cache metadata: %w", err)
	}
	tmp := c.MetaPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("writing cache metadata: %w", err)
	}
	return tmp, nil
}

// ReadMetadata returns the metadata of the cached file. When the data file
// exists but the sidecar is missing, unreadable, or describes a file of a
// different size, metadata is synthesized from the file itself.
func (c *CacheDir) ReadMetadata() (*model.CacheMetadata, error) {
	info, err := os.Stat(c.DataPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoCache
		}
		return nil, fmt.Errorf("checking cached file: %w", err)
	}

	var meta model.CacheMetadata
	data, err := os.ReadFile(c.MetaPath())
	if err == nil {
		err = json.Unmarshal(data, &meta)
	}
	if err != nil || (meta.ByteSize > 0 && meta.ByteSize != info.Size()) {
		meta = model.CacheMetadata{DownloadedAt: info.ModTime()}
	}
	meta.FilePath = c.DataPath()
	meta.ByteSize = info.Size()
	return &meta, nil
}

// Remove deletes a leftover temp file. Missing files are not an error.
func (c *CacheDir) Remove(path string) {
	_ = os.Remove(path)
}
