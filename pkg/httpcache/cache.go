// Package httpcache caches portal API responses in memory, optionally
// persisting them to disk between runs.
package httpcache

import (
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/maypok86/otter/v2"
)

const cacheFile = "ditti-cache.gob"

// Entry is a cached response body.
type Entry struct {
	ExpiresAt time.Time `json:"expires_at"`
	ETag      string    `json:"etag,omitempty"`
	Data      []byte    `json:"data"`
}

// OtterCache is a TTL cache keyed by request URL and caller scope.
type OtterCache struct {
	cache      *otter.Cache[string, Entry]
	logger     *slog.Logger
	saveCancel context.CancelFunc
	dir        string
	saveWg     sync.WaitGroup
	ttl        time.Duration
	mu         sync.Mutex
}

func newCache(ttl time.Duration, logger *slog.Logger) *OtterCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &OtterCache{
		cache: otter.Must(&otter.Options[string, Entry]{
			MaximumSize:      20_000,
			InitialCapacity:  1_000,
			ExpiryCalculator: otter.ExpiryWriting[string, Entry](ttl),
		}),
		ttl:    ttl,
		logger: logger,
	}
}

// NewMemoryCache creates a cache that never touches disk.
func NewMemoryCache(ttl time.Duration, logger *slog.Logger) *OtterCache {
	return newCache(ttl, logger)
}

// NewOtterCache creates a cache persisted under dir. Entries are loaded at
// startup, saved every 15 minutes, and saved again on Close.
func NewOtterCache(ctx context.Context, dir string, ttl time.Duration, logger *slog.Logger) (*OtterCache, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	c := newCache(ttl, logger)
	c.dir = dir

	if err := c.loadFromDisk(); err != nil {
		c.logger.Warn("failed to load cache from disk", "error", err)
	}
	c.logger.Info("cache initialized", "dir", dir, "entries_loaded", c.cache.EstimatedSize())

	c.startPeriodicSave(ctx)
	return c, nil
}

// Key derives the cache key for a URL seen by a given scope, such as a
// hash of the caller's credentials.
func Key(scope, url string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(scope))
	h.Write([]byte{0})
	h.Write([]byte(url))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a live entry for key.
func (c *OtterCache) Get(key string) (Entry, bool) {
	entry, found := c.cache.GetIfPresent(key)
	if !found {
		return Entry{}, false
	}
	if time.Now().After(entry.ExpiresAt) {
		c.cache.Invalidate(key)
		return Entry{}, false
	}
	return entry, true
}

// Set stores data under key for the cache TTL.
func (c *OtterCache) Set(key string, data []byte, etag string) {
	c.cache.Set(key, Entry{Data: data, ETag: etag, ExpiresAt: time.Now().Add(c.ttl)})
}

// Invalidate drops one key.
func (c *OtterCache) Invalidate(key string) {
	c.cache.Invalidate(key)
}

// Clear drops every entry. Writes to the portal call this so that list
// screens never show stale rows after a create, edit or archive.
func (c *OtterCache) Clear() {
	c.cache.InvalidateAll()
	c.logger.Debug("cache cleared")
}

// APICall looks up a cached response for an arbitrary request payload.
func (c *OtterCache) APICall(url string, requestBody []byte) ([]byte, bool) {
	entry, ok := c.Get(Key("api", url, requestBody))
	if !ok {
		c.logger.Debug("API cache miss", "url", url)
		return nil, false
	}
	return entry.Data, true
}

// SetAPICall stores a response for an arbitrary request payload.
func (c *OtterCache) SetAPICall(url string, requestBody, data []byte) error {
	c.Set(Key("api", url, requestBody), data, "")
	c.logger.Debug("API cache set", "url", url, "size", len(data))
	return nil
}

// Len returns the approximate number of entries.
func (c *OtterCache) Len() int {
	return c.cache.EstimatedSize()
}

func (c *OtterCache) path() string {
	return filepath.Join(c.dir, cacheFile)
}

func (c *OtterCache) loadFromDisk() error {
	file, err := os.Open(c.path())
	if err != nil {
		if os.IsNotExist(err) {
			c.logger.Info("no existing cache file found", "path", c.path())
			return nil
		}
		return fmt.Errorf("opening cache file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			c.logger.Debug("failed to close cache file", "error", closeErr)
		}
	}()

	var entries map[string]Entry
	if err := gob.NewDecoder(file).Decode(&entries); err != nil {
		return fmt.Errorf("decoding cache file: %w", err)
	}

	now := time.Now()
	valid := 0
	for key, entry := range entries {
		if now.Before(entry.ExpiresAt) {
			c.cache.Set(key, entry)
			valid++
		}
	}
	c.logger.Debug("loaded cache from disk", "path", c.path(), "total_entries", len(entries), "valid_entries", valid)
	return nil
}

func (c *OtterCache) saveToDisk() error {
	if c.dir == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	tempPath := c.path() + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	defer func() {
		if removeErr := os.Remove(tempPath); removeErr != nil && !os.IsNotExist(removeErr) {
			c.logger.Debug("failed to remove temp file", "error", removeErr)
		}
	}()

	entries := make(map[string]Entry)
	now := time.Now()
	for key, entry := range c.cache.All() {
		if now.Before(entry.ExpiresAt) {
			entries[key] = entry
		}
	}

	if err := gob.NewEncoder(file).Encode(entries); err != nil {
		_ = file.Close()
		return fmt.Errorf("encoding cache to file: %w", err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return fmt.Errorf("syncing cache file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing cache file: %w", err)
	}
	if err := os.Rename(tempPath, c.path()); err != nil {
		return fmt.Errorf("replacing cache file: %w", err)
	}

	c.logger.Debug("cache saved to disk", "entries", len(entries), "path", c.path())
	return nil
}

func (c *OtterCache) startPeriodicSave(ctx context.Context) {
	saveCtx, cancel := context.WithCancel(ctx)
	c.saveCancel = cancel

	c.saveWg.Add(1)
	go func() {
		defer c.saveWg.Done()

		ticker := time.NewTicker(15 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-saveCtx.Done():
				return
			case <-ticker.C:
				if err := c.saveToDisk(); err != nil {
					c.logger.Error("periodic cache save failed", "error", err)
				}
			}
		}
	}()
}

// Close stops periodic saving and writes the cache to disk one last time.
func (c *OtterCache) Close() error {
	if c.saveCancel != nil {
		c.saveCancel()
	}
	c.saveWg.Wait()

	if err := c.saveToDisk(); err != nil {
		c.logger.Error("final cache save failed", "error", err)
		return err
	}
	return nil
}
