// Package videocache stores recently downloaded files on disk for instant reuse
package videocache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const metaFileName = "meta.json"

// Options configures a cache instance
type Options struct {
	Enabled  bool
	Dir      string
	TTL      time.Duration
	MaxItems int
}

// entryMeta is persisted next to each cached file
type entryMeta struct {
	URL        string `json:"url"`
	FileName   string `json:"file_name"`
	FileSize   int64  `json:"file_size"`
	StoredAt   int64  `json:"stored_at"`
	LastAccess int64  `json:"last_access"`
}

type entry struct {
	key        string
	fileName   string
	fileSize   int64
	storedAt   time.Time
	lastAccess time.Time
}

// Cache maps normalized URLs to previously downloaded files. Entries expire
// TTL after creation (not sliding) and the oldest-by-creation entry is
// evicted when the item count overflows MaxItems.
type Cache struct {
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
	hits    int64
	misses  int64

	now func() time.Time
}

// State is an admin-facing snapshot of cache health
type State struct {
	Enabled  bool   `json:"enabled"`
	Dir      string `json:"dir"`
	Items    int    `json:"items"`
	MaxItems int    `json:"max_items"`
	TTL      string `json:"ttl"`
	Hits     int64  `json:"hits"`
	Misses   int64  `json:"misses"`
}

// New creates a cache rooted at opts.Dir and loads any entries persisted by a
// previous run. A disabled cache is valid and answers every lookup with a miss.
func New(opts Options) (*Cache, error) {
	c := &Cache{
		opts:    opts,
		logger:  slog.Default(),
		entries: make(map[string]*entry),
		now:     time.Now,
	}
	if !opts.Enabled {
		return c, nil
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	c.loadExisting()
	return c, nil
}

// loadExisting rebuilds the in-memory index from entry dirs left on disk
func (c *Cache) loadExisting() {
	dirs, err := os.ReadDir(c.opts.Dir)
	if err != nil {
		c.logger.Warn("Failed to scan cache directory", "dir", c.opts.Dir, "error", err)
		return
	}

	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		meta, err := readMeta(filepath.Join(c.opts.Dir, d.Name()))
		if err != nil {
			// Unreadable entries are garbage from an interrupted store
			_ = os.RemoveAll(filepath.Join(c.opts.Dir, d.Name()))
			continue
		}
		c.entries[d.Name()] = &entry{
			key:        d.Name(),
			fileName:   meta.FileName,
			fileSize:   meta.FileSize,
			storedAt:   time.Unix(meta.StoredAt, 0),
			lastAccess: time.Unix(meta.LastAccess, 0),
		}
	}

	if len(c.entries) > 0 {
		c.logger.Info("Loaded video cache entries", "count", len(c.entries))
	}
}

// Lookup copies the cached artifact for url into outputDir and returns its
// path and size. The entry's last-access time is bumped but its TTL is not
// extended. Returns ok=false on any miss, including expired entries.
func (c *Cache) Lookup(url, outputDir string) (path string, size int64, ok bool) {
	if !c.opts.Enabled {
		return "", 0, false
	}
	key := Key(url)

	c.mu.Lock()
	e, found := c.entries[key]
	if !found {
		c.misses++
		c.mu.Unlock()
		return "", 0, false
	}
	if c.expired(e) {
		delete(c.entries, key)
		c.misses++
		c.mu.Unlock()
		_ = os.RemoveAll(c.entryDir(key))
		return "", 0, false
	}
	e.lastAccess = c.now()
	fileName := e.fileName
	fileSize := e.fileSize
	c.mu.Unlock()

	src := filepath.Join(c.entryDir(key), fileName)
	if _, err := os.Stat(src); err != nil {
		c.dropEntry(key)
		return "", 0, false
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		c.logger.Warn("Failed to create output directory for cache hit", "error", err)
		return "", 0, false
	}
	dest := filepath.Join(outputDir, fileName)
	if _, err := os.Stat(dest); err == nil {
		ext := filepath.Ext(fileName)
		stem := fileName[:len(fileName)-len(ext)]
		dest = filepath.Join(outputDir, fmt.Sprintf("%s-%d%s", stem, c.now().Unix(), ext))
	}
	if err := copyFile(src, dest); err != nil {
		c.logger.Warn("Failed to copy cached file", "key", key, "error", err)
		c.dropEntry(key)
		return "", 0, false
	}

	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
	c.logger.Info("Video cache hit", "url", url, "file", dest)
	return dest, fileSize, true
}

// Insert stores a copy of filePath under the url's key. Re-inserting an
// existing key replaces the entry; if two jobs for the same URL finish
// concurrently, exactly one copy survives.
func (c *Cache) Insert(url, filePath string) error {
	if !c.opts.Enabled {
		return nil
	}
	info, err := os.Stat(filePath)
	if err != nil {
		return fmt.Errorf("cannot cache missing file: %w", err)
	}

	key := Key(url)
	dir := c.entryDir(key)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to reset cache entry: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache entry: %w", err)
	}

	fileName := filepath.Base(filePath)
	if err := copyFile(filePath, filepath.Join(dir, fileName)); err != nil {
		_ = os.RemoveAll(dir)
		return fmt.Errorf("failed to copy into cache: %w", err)
	}

	now := c.now()
	meta := entryMeta{
		URL:        url,
		FileName:   fileName,
		FileSize:   info.Size(),
		StoredAt:   now.Unix(),
		LastAccess: now.Unix(),
	}
	if err := writeMeta(dir, meta); err != nil {
		_ = os.RemoveAll(dir)
		return fmt.Errorf("failed to write cache metadata: %w", err)
	}

	c.mu.Lock()
	c.entries[key] = &entry{
		key:        key,
		fileName:   fileName,
		fileSize:   info.Size(),
		storedAt:   now,
		lastAccess: now,
	}
	evicted := c.overflowLocked()
	c.mu.Unlock()

	for _, key := range evicted {
		_ = os.RemoveAll(c.entryDir(key))
	}
	return nil
}

// overflowLocked removes index entries beyond MaxItems, oldest created
// first, and returns their keys for disk removal. Caller holds the lock.
func (c *Cache) overflowLocked() []string {
	if c.opts.MaxItems <= 0 || len(c.entries) <= c.opts.MaxItems {
		return nil
	}
	all := make([]*entry, 0, len(c.entries))
	for _, e := range c.entries {
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].storedAt.Before(all[j].storedAt) })

	var evicted []string
	for _, e := range all[:len(all)-c.opts.MaxItems] {
		delete(c.entries, e.key)
		evicted = append(evicted, e.key)
	}
	return evicted
}

// Reap removes expired entries and returns the number deleted
func (c *Cache) Reap() int {
	if !c.opts.Enabled {
		return 0
	}

	c.mu.Lock()
	var stale []string
	for key, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, key)
			stale = append(stale, key)
		}
	}
	c.mu.Unlock()

	for _, key := range stale {
		_ = os.RemoveAll(c.entryDir(key))
	}
	if len(stale) > 0 {
		c.logger.Info("Reaped expired cache entries", "count", len(stale))
	}
	return len(stale)
}

// Run sweeps expired entries on the given interval until ctx is done
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Reap()
		}
	}
}

// State returns a snapshot for the admin surface
func (c *Cache) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Enabled:  c.opts.Enabled,
		Dir:      c.opts.Dir,
		Items:    len(c.entries),
		MaxItems: c.opts.MaxItems,
		TTL:      c.opts.TTL.String(),
		Hits:     c.hits,
		Misses:   c.misses,
	}
}

func (c *Cache) expired(e *entry) bool {
	return c.opts.TTL > 0 && c.now().Sub(e.storedAt) > c.opts.TTL
}

func (c *Cache) entryDir(key string) string {
	return filepath.Join(c.opts.Dir, key)
}

func (c *Cache) dropEntry(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	_ = os.RemoveAll(c.entryDir(key))
}

func readMeta(dir string) (*entryMeta, error) {
	data, err := os.ReadFile(filepath.Join(dir, metaFileName))
	if err != nil {
		return nil, err
	}
	var meta entryMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	if meta.FileName == "" {
		return nil, fmt.Errorf("cache metadata missing file name")
	}
	return &meta, nil
}

func writeMeta(dir string, meta entryMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, metaFileName), data, 0o644)
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
