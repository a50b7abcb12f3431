// Package cache stores compressed images on disk, keyed by a hash of the
// input bytes and the options used to compress them.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
)

// DiskCache is a file-per-entry cache sharded by the first byte of the
// SHA-256 of the key.
type DiskCache struct {
	Root    string
	TTL     time.Duration
	MaxSize int64
}

// Option configures the DiskCache.
type Option func(*DiskCache)

// WithTTL sets the time-to-live for cached items.
func WithTTL(ttl time.Duration) Option {
	return func(c *DiskCache) {
		c.TTL = ttl
	}
}

// WithMaxSize sets the maximum size of the cache in bytes.
func WithMaxSize(size int64) Option {
	return func(c *DiskCache) {
		c.MaxSize = size
	}
}

// New creates a DiskCache rooted at root.
func New(root string, opts ...Option) *DiskCache {
	c := &DiskCache{
		Root:    root,
		MaxSize: 256 * 1024 * 1024,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key derives a cache key from the input image and a description of the
// options applied to it.
func Key(data []byte, variant string) string {
	h := sha256.New()
	h.Write(data)
	h.Write([]byte{0})
	h.Write([]byte(variant))
	return hex.EncodeToString(h.Sum(nil))
}

// Find returns the cached bytes for key. A miss returns nil, nil.
func (c *DiskCache) Find(key string) ([]byte, error) {
	path := c.buildPath(key)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if c.TTL > 0 && time.Since(info.ModTime()) > c.TTL {
		_ = os.Remove(path)
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		// Pruned between Stat and ReadFile.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading cache: %w", err)
	}
	return data, nil
}

// Write stores data under key. The file appears atomically so concurrent
// readers never see a partial entry.
func (c *DiskCache) Write(key string, data []byte) error {
	path := c.buildPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Delete removes the entry for key.
func (c *DiskCache) Delete(key string) error {
	err := os.Remove(c.buildPath(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (c *DiskCache) buildPath(key string) string {
	sum := sha256.Sum256([]byte(key))
	name := hex.EncodeToString(sum[:])
	return filepath.Join(c.Root, name[:2], name)
}

type pruningFile struct {
	path    string
	size    int64
	modTime time.Time
}

// Prune removes expired entries, then the oldest entries until the cache
// fits in MaxSize. It returns the number of bytes left.
func (c *DiskCache) Prune() (int64, error) {
	var files []pruningFile
	var totalSize int64

	err := filepath.WalkDir(c.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped rather than failing the prune.
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if c.TTL > 0 && time.Since(info.ModTime()) > c.TTL {
			_ = os.Remove(path)
			return nil
		}
		totalSize += info.Size()
		files = append(files, pruningFile{path: path, size: info.Size(), modTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return totalSize, fmt.Errorf("error walking cache dir: %w", err)
	}

	if c.MaxSize <= 0 || totalSize <= c.MaxSize {
		slog.Debug("no need to prune",
			"root", filepath.Base(c.Root),
			"size", humanize.Bytes(uint64(totalSize)),
			"limit", humanize.Bytes(uint64(c.MaxSize)),
			"ttl", c.TTL,
		)
		return totalSize, nil
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})

	before := totalSize
	var removed int
	for _, f := range files {
		if totalSize <= c.MaxSize {
			break
		}
		if err := os.Remove(f.path); err == nil {
			totalSize -= f.size
			removed++
		}
	}
	slog.Info("pruned cache",
		"root", filepath.Base(c.Root),
		"files", removed,
		"freed", humanize.Bytes(uint64(before-totalSize)),
		"size", humanize.Bytes(uint64(totalSize)),
	)
	return totalSize, nil
}
