package regioncache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"scout/internal/logging"
)

// Entry records the resolved continent for one host.
type Entry struct {
	Region  string    `json:"region"`
	IP      string    `json:"ip"`
	Created time.Time `json:"created"`
}

// File is the on-disk cache format. Version is compared against the running
// release on load; a mismatch discards the file.
type File struct {
	Version string           `json:"version"`
	Created time.Time        `json:"created"`
	Cache   map[string]Entry `json:"cache"`
}

// Cache provides thread-safe access to the host region cache. Mutations only
// touch memory; persistence happens when Save is called, normally by the
// flush scheduler.
type Cache struct {
	path    string
	version string
	logger  *slog.Logger
	mu      sync.RWMutex
	entries map[string]Entry
	created time.Time
}

// New creates a cache instance without touching disk.
func New(path, version string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "regioncache")

	return &Cache{
		path:    path,
		version: version,
		logger:  logger,
		entries: make(map[string]Entry),
		created: time.Now().UTC(),
	}
}

// Load reads the cache file from disk. It reports whether a usable cache was
// found; a missing, corrupt, or version-mismatched file leaves the cache
// empty so the caller can rebuild it.
func (c *Cache) Load() (bool, error) {
	if c.path == "" {
		return false, nil
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read cache file: %w", err)
	}
	if len(data) == 0 {
		return false, nil
	}

	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		c.logger.Warn("discarding unreadable region cache",
			logging.Error(err),
			logging.String("path", c.path))
		return false, nil
	}
	if file.Version != c.version {
		c.logger.Info("discarding region cache from another release",
			logging.String("cache_version", file.Version),
			logging.String("current_version", c.version))
		return false, nil
	}

	c.mu.Lock()
	c.entries = file.Cache
	if c.entries == nil {
		c.entries = make(map[string]Entry)
	}
	if !file.Created.IsZero() {
		c.created = file.Created
	}
	count := len(c.entries)
	c.mu.Unlock()

	c.logger.Debug("loaded region cache",
		logging.Int("entry_count", count),
		logging.String("path", c.path))

	return true, nil
}

// Region returns the cached continent code for a host identity.
func (c *Cache) Region(key string) (string, bool) {
	if key == "" {
		return "", false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, found := c.entries[key]
	return entry.Region, found
}

// Update merges entries into the cache and returns how many keys were added
// or changed. Last write wins on conflicting keys.
func (c *Cache) Update(entries map[string]Entry) int {
	if len(entries) == 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	changed := 0
	for key, entry := range entries {
		if key == "" {
			continue
		}
		existing, found := c.entries[key]
		if found && existing.Region == entry.Region && existing.IP == entry.IP {
			continue
		}
		c.entries[key] = entry
		changed++
	}
	return changed
}

// Replace swaps the full entry set, used after a rebuild.
func (c *Cache) Replace(entries map[string]Entry) {
	if entries == nil {
		entries = make(map[string]Entry)
	}

	c.mu.Lock()
	c.entries = entries
	c.created = time.Now().UTC()
	c.mu.Unlock()
}

// Snapshot copies the current state into a File ready for serialization.
func (c *Cache) Snapshot() File {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make(map[string]Entry, len(c.entries))
	for key, entry := range c.entries {
		entries[key] = entry
	}
	return File{Version: c.version, Created: c.created, Cache: entries}
}

// Len returns the number of cached hosts.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// CreatedAt returns when the current entry set was first built.
func (c *Cache) CreatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.created
}

// Save writes the cache to disk atomically. The snapshot is taken under the
// lock but the write happens outside it, so lookups are never blocked on IO.
func (c *Cache) Save() error {
	if c.path == "" {
		return nil
	}

	file := c.Snapshot()

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath) // cleanup on failure
		return fmt.Errorf("rename temp file: %w", err)
	}

	c.logger.Debug("persisted region cache",
		logging.Int("entry_count", len(file.Cache)),
		logging.String("path", c.path))

	return nil
}
