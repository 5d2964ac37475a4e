// Package cache stores provider responses on disk so repeated runs within the
// TTL skip the network, and expired entries can still drive conditional fetches.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Entry represents a cached HTTP response.
type Entry struct {
	Body       []byte    `json:"body"`
	ETag       string    `json:"etag,omitempty"`
	LastMod    string    `json:"last_modified,omitempty"`
	StatusCode int       `json:"status_code"`
	CachedAt   time.Time `json:"cached_at"`
}

// FileCache provides TTL-based file caching for HTTP responses.
type FileCache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// New creates a new file cache.
func New(dir string, ttl time.Duration) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	return &FileCache{dir: dir, ttl: ttl, now: time.Now}, nil
}

// Get retrieves a cached entry. The boolean reports freshness; an expired
// entry is still returned for conditional fetch (ETag/If-Modified-Since).
func (c *FileCache) Get(key string) (*Entry, bool) {
	path := c.path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		os.Remove(path)
		return nil, false
	}

	if c.now().Sub(entry.CachedAt) > c.ttl {
		return &entry, false
	}

	return &entry, true
}

// Set stores an entry in the cache. The write goes through a temp file so
// concurrent fetchers never observe a partial entry.
func (c *FileCache) Set(key string, entry *Entry) error {
	entry.CachedAt = c.now()
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling cache entry: %w", err)
	}
	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), ".entry-*")
	if err != nil {
		return fmt.Errorf("creating cache entry: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return os.Rename(f.Name(), path)
}

// Purge removes entries older than maxAge and returns how many were deleted.
func (c *FileCache) Purge(maxAge time.Duration) (int, error) {
	files, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, fmt.Errorf("reading cache dir: %w", err)
	}
	removed := 0
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if c.now().Sub(info.ModTime()) > maxAge {
			if err := os.Remove(filepath.Join(c.dir, f.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

func (c *FileCache) path(key string) string {
	h := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(h[:]))
}
