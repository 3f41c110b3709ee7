package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "hog", cfg.Detection.Model)
	assert.Equal(t, 1, cfg.Detection.JitterCount)
	assert.Equal(t, 1, cfg.Detection.Workers)
	assert.InDelta(t, 0.6, cfg.Clustering.Tolerance, 1e-9)
	assert.Equal(t, 1, cfg.Clustering.MinSamples)
	assert.Equal(t, 100, cfg.Gallery.ThumbnailSize)
	assert.Equal(t, []string{".jpg", ".jpeg", ".png", ".webp", ".bmp"}, cfg.Storage.ExtensionsAllowed)
	assert.Equal(t, BackendLocal, cfg.Storage.Backend)
	assert.Equal(t, time.Duration(0), cfg.Fetch.Timeout)
}

func TestLoad_YAMLOverlay(t *testing.T) {
	path := writeConfig(t, `
detection:
  model: CNN
  jitter_count: 3
clustering:
  tolerance: 0.45
storage:
  backend: s3
  extensions_allowed: [JPG, "png"]
  s3:
    bucket: wedding
    base_url: https://cdn.example.com
fetch:
  timeout: 15s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "cnn", cfg.Detection.Model)
	assert.Equal(t, 3, cfg.Detection.JitterCount)
	assert.InDelta(t, 0.45, cfg.Clustering.Tolerance, 1e-9)
	assert.Equal(t, BackendS3, cfg.Storage.Backend)
	assert.Equal(t, "wedding", cfg.Storage.S3.Bucket)
	assert.Equal(t, "https://cdn.example.com", cfg.Storage.S3.BaseURL)
	assert.Equal(t, []string{".jpg", ".png"}, cfg.Storage.ExtensionsAllowed)
	assert.Equal(t, 15*time.Second, cfg.Fetch.Timeout)
	// untouched sections keep their defaults
	assert.Equal(t, 100, cfg.Gallery.ThumbnailSize)
}

func TestLoad_UnknownYAMLField(t *testing.T) {
	path := writeConfig(t, "detection:\n  modle: hog\n")

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "clustering:\n  tolerance: 0.45\n")
	t.Setenv("FACES_CLUSTERING_TOLERANCE", "0.5")
	t.Setenv("FACES_DETECTION_WORKERS", "4")
	t.Setenv("FACES_CACHE_LOCATION", "/tmp/faces.msgpack")
	t.Setenv("FACES_STORAGE_EXTENSIONS_ALLOWED", ".jpg,.heic")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, cfg.Clustering.Tolerance, 1e-9)
	assert.Equal(t, 4, cfg.Detection.Workers)
	assert.Equal(t, "/tmp/faces.msgpack", cfg.Cache.Location)
	assert.Equal(t, []string{".jpg", ".heic"}, cfg.Storage.ExtensionsAllowed)
}

func TestLoad_InvalidEnvValue(t *testing.T) {
	t.Setenv("FACES_DETECTION_JITTER_COUNT", "many")

	_, err := Load("")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"unknown model", func(c *Config) { c.Detection.Model = "mtcnn" }, "detection model"},
		{"zero jitter", func(c *Config) { c.Detection.JitterCount = 0 }, "jitter count"},
		{"negative tolerance", func(c *Config) { c.Clustering.Tolerance = -0.1 }, "tolerance"},
		{"zero min samples", func(c *Config) { c.Clustering.MinSamples = 0 }, "min samples"},
		{"too many workers", func(c *Config) { c.Detection.Workers = 1000 }, "workers"},
		{"empty cache location", func(c *Config) { c.Cache.Location = "" }, "cache location"},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "ftp" }, "unsupported storage backend: ftp"},
		{"s3 without bucket", func(c *Config) { c.Storage.Backend = BackendS3 }, "bucket"},
		{"no extensions", func(c *Config) { c.Storage.ExtensionsAllowed = nil }, "extension"},
		{"zero retries", func(c *Config) { c.Fetch.RetryAttempts = 0 }, "retry attempts"},
		{"zero thumbnail", func(c *Config) { c.Gallery.ThumbnailSize = 0 }, "thumbnail size"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log format"},
		{"bad port", func(c *Config) { c.Web.Port = 70000 }, "port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidate_ZeroToleranceAllowed(t *testing.T) {
	cfg := Default()
	cfg.Clustering.Tolerance = 0
	require.NoError(t, cfg.Validate())
}

func TestNormalizeExtensions(t *testing.T) {
	got := NormalizeExtensions([]string{"JPG", ".jpg", " png ", "", ".WebP"})
	assert.Equal(t, []string{".jpg", ".png", ".webp"}, got)
}

func TestWebAddr(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "0.0.0.0:8080", cfg.Web.Addr())
}
