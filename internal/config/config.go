// Package config loads server settings from an optional YAML file and the
// environment. Environment variables win over the file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Port            int  `yaml:"port"`
	MaxUploadMB     int  `yaml:"max-upload-mb"`
	MaxConcurrent   int  `yaml:"max-concurrent"`
	RateLimitPerSec int  `yaml:"rate-limit"`
	RateLimitBurst  int  `yaml:"rate-limit-burst"`
	WorkerCount     int  `yaml:"worker-count"`
	BusyRetries     int  `yaml:"busy-retries"`
	Debug           bool `yaml:"debug"`

	// Defaults applied when a request does not say otherwise.
	Compression struct {
		Speed   int    `yaml:"speed"`
		Colors  int    `yaml:"colors"`
		Quality string `yaml:"quality"`
		Dither  *bool  `yaml:"dither"`
	} `yaml:"compression"`

	// Cache is disabled when Dir is empty.
	Cache struct {
		Dir   string        `yaml:"dir"`
		MaxMB int           `yaml:"max-mb"`
		TTL   time.Duration `yaml:"ttl"`
	} `yaml:"cache"`
}

// Load reads the file named by CONFIG_FILE, if set, then applies the
// environment on top.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile reads path, or starts from defaults if path is empty, then
// applies the environment on top.
func LoadFile(path string) (*Config, error) {
	c := &Config{}
	if path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, c); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	c.applyEnv()
	c.setDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv() {
	c.Port = getEnvInt("PORT", c.Port)
	c.MaxUploadMB = getEnvInt("MAX_UPLOAD_MB", c.MaxUploadMB)
	c.MaxConcurrent = getEnvInt("MAX_CONCURRENT", c.MaxConcurrent)
	c.RateLimitPerSec = getEnvInt("RATE_LIMIT", c.RateLimitPerSec)
	c.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", c.RateLimitBurst)
	c.WorkerCount = getEnvInt("WORKER_COUNT", c.WorkerCount)
	c.BusyRetries = getEnvInt("BUSY_RETRIES", c.BusyRetries)
	c.Debug = getEnvBool("DEBUG", c.Debug)
	c.Compression.Speed = getEnvInt("DEFAULT_SPEED", c.Compression.Speed)
	c.Compression.Colors = getEnvInt("DEFAULT_COLORS", c.Compression.Colors)
	if v := os.Getenv("DEFAULT_QUALITY"); v != "" {
		c.Compression.Quality = v
	}
	if v, ok := os.LookupEnv("CACHE_DIR"); ok {
		c.Cache.Dir = v
	}
	c.Cache.MaxMB = getEnvInt("CACHE_MAX_MB", c.Cache.MaxMB)
	if v := os.Getenv("CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Cache.TTL = d
		}
	}
}

func (c *Config) setDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.MaxUploadMB == 0 {
		c.MaxUploadMB = 20
	}
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = 50
	}
	if c.RateLimitPerSec == 0 {
		c.RateLimitPerSec = 10
	}
	if c.RateLimitBurst == 0 {
		c.RateLimitBurst = 20
	}
	if c.WorkerCount == 0 {
		c.WorkerCount = 4
	}
	if c.BusyRetries == 0 {
		c.BusyRetries = 3
	}
	if c.Compression.Quality == "" {
		c.Compression.Quality = "0-100"
	}
	if c.Compression.Dither == nil {
		dither := true
		c.Compression.Dither = &dither
	}
	if c.Cache.MaxMB == 0 {
		c.Cache.MaxMB = 256
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 24 * time.Hour
	}
}

func (c *Config) validate() error {
	switch {
	case c.Port < 0 || c.Port > 65535:
		return fmt.Errorf("invalid port %d", c.Port)
	case c.MaxUploadMB < 0, c.MaxConcurrent < 0, c.WorkerCount < 0, c.BusyRetries < 0, c.Cache.MaxMB < 0:
		return fmt.Errorf("limits must not be negative")
	case c.RateLimitPerSec < 0 || c.RateLimitBurst < 0:
		return fmt.Errorf("invalid rate limit %d/%d", c.RateLimitPerSec, c.RateLimitBurst)
	}
	return nil
}

// MaxUploadBytes is MaxUploadMB in bytes.
func (c *Config) MaxUploadBytes() int {
	return c.MaxUploadMB << 20
}

// CacheMaxBytes is Cache.MaxMB in bytes.
func (c *Config) CacheMaxBytes() int64 {
	return int64(c.Cache.MaxMB) << 20
}

// Log prints the effective settings at startup.
func (c *Config) Log() {
	slog.Info("configuration",
		"port", c.Port,
		"max_upload", humanize.IBytes(uint64(c.MaxUploadBytes())),
		"max_concurrent", c.MaxConcurrent,
		"rate_limit", c.RateLimitPerSec,
		"rate_limit_burst", c.RateLimitBurst,
		"workers", c.WorkerCount,
		"busy_retries", c.BusyRetries,
		"speed", c.Compression.Speed,
		"colors", c.Compression.Colors,
		"quality", c.Compression.Quality,
		"dither", *c.Compression.Dither,
	)
	if c.Cache.Dir == "" {
		slog.Warn("result cache disabled; repeated requests will be recompressed")
	} else {
		slog.Info("result cache",
			"dir", c.Cache.Dir,
			"max", humanize.IBytes(uint64(c.CacheMaxBytes())),
			"ttl", c.Cache.TTL)
	}
	if c.Debug {
		slog.Warn("debug mode is enabled")
	}
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
		slog.Warn("ignoring invalid integer", "key", key, "value", val)
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
		slog.Warn("ignoring invalid boolean", "key", key, "value", val)
	}
	return defaultValue
}
