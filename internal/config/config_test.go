package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearEnv unsets every variable Load reads for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "PORT", "MAX_UPLOAD_MB", "MAX_CONCURRENT", "RATE_LIMIT",
		"RATE_LIMIT_BURST", "WORKER_COUNT", "BUSY_RETRIES", "DEBUG", "DEFAULT_SPEED", "DEFAULT_COLORS",
		"DEFAULT_QUALITY", "CACHE_DIR", "CACHE_MAX_MB", "CACHE_TTL",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pngquant.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestLoad_Defaults tests the values used when nothing is configured
func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Port != 8080 || c.MaxUploadMB != 20 || c.WorkerCount != 4 || c.BusyRetries != 3 {
		t.Errorf("Load() = %+v", c)
	}
	if c.Compression.Quality != "0-100" || !*c.Compression.Dither {
		t.Errorf("compression defaults = %+v", c.Compression)
	}
	if c.Cache.Dir != "" || c.Cache.TTL != 24*time.Hour {
		t.Errorf("cache defaults = %+v", c.Cache)
	}
	if c.MaxUploadBytes() != 20<<20 {
		t.Errorf("MaxUploadBytes() = %d", c.MaxUploadBytes())
	}
}

// TestLoadFile tests YAML parsing and environment overrides
func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
port: 9000
worker-count: 8
busy-retries: 5
debug: true
compression:
  speed: 3
  colors: 64
  quality: 60-90
  dither: false
cache:
  dir: /tmp/pngquant-cache
  max-mb: 10
  ttl: 1h
`)

	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if c.Port != 9000 || c.WorkerCount != 8 || c.BusyRetries != 5 || !c.Debug {
		t.Errorf("LoadFile() = %+v", c)
	}
	if c.Compression.Speed != 3 || c.Compression.Colors != 64 || c.Compression.Quality != "60-90" || *c.Compression.Dither {
		t.Errorf("compression = %+v", c.Compression)
	}
	if c.Cache.Dir != "/tmp/pngquant-cache" || c.CacheMaxBytes() != 10<<20 || c.Cache.TTL != time.Hour {
		t.Errorf("cache = %+v", c.Cache)
	}

	t.Setenv("PORT", "7000")
	t.Setenv("DEFAULT_SPEED", "9")
	t.Setenv("CACHE_DIR", "")
	t.Setenv("WORKER_COUNT", "lots")
	t.Setenv("BUSY_RETRIES", "1")
	c, err = LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if c.Port != 7000 || c.Compression.Speed != 9 {
		t.Errorf("environment not applied: port %d speed %d", c.Port, c.Compression.Speed)
	}
	if c.Cache.Dir != "" {
		t.Errorf("CACHE_DIR=\"\" should disable the cache, got %q", c.Cache.Dir)
	}
	if c.WorkerCount != 8 {
		t.Errorf("invalid WORKER_COUNT should be ignored, got %d", c.WorkerCount)
	}
	if c.BusyRetries != 1 {
		t.Errorf("BUSY_RETRIES not applied, got %d", c.BusyRetries)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name string
		path string
	}{
		{"Missing file", filepath.Join(t.TempDir(), "missing.yml")},
		{"Bad YAML", writeConfig(t, "port: [1, 2")},
		{"Bad port", writeConfig(t, "port: 70000")},
		{"Negative limit", writeConfig(t, "max-concurrent: -1")},
		{"Negative retries", writeConfig(t, "busy-retries: -2")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadFile(tt.path); err == nil {
				t.Error("LoadFile() error = nil, want error")
			}
		})
	}
}
