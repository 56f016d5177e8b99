// Package cache memoizes VideoHash production in a content-addressed
// on-disk store: one .vhash file per key, per-key file locks across
// processes, and in-process build coalescing so a key is decoded at most
// once per run.
package cache

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"vidsift/internal/apperrors"
	"vidsift/pkg/vhash"
)

const indexName = "index.jsonl"

// IndexEntry is one line of the enumeration hint file. The hint is
// advisory: the .vhash files are the source of truth.
type IndexEntry struct {
	Key   string `json:"key"`
	Path  string `json:"path"`
	MTime int64  `json:"mtime"`
}

// BuildFunc produces the VideoHash for a cache miss.
type BuildFunc func(ctx context.Context) (*vhash.VideoHash, error)

type flight struct {
	done chan struct{}
	vh   *vhash.VideoHash
	err  error
}

// Cache is safe for concurrent use. Reads are lock-free on disk; writers
// serialize per key via .lock files plus in-process coalescing.
type Cache struct {
	dir    string
	logger *zap.Logger

	mu    sync.RWMutex // guards index
	index map[string]IndexEntry

	flightMu sync.Mutex
	inflight map[string]*flight
}

// New opens (creating if needed) the cache rooted at dir.
func New(dir string, logger *zap.Logger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	c := &Cache{
		dir:      dir,
		logger:   logger.With(zap.String("component", "cache")),
		index:    make(map[string]IndexEntry),
		inflight: make(map[string]*flight),
	}
	c.loadIndex()
	return c, nil
}

// Dir returns the cache root.
func (c *Cache) Dir() string { return c.dir }

// Len returns the number of indexed entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.index)
}

// Lookup reads the entry for key directly from disk. A corrupt entry is
// removed and reported as a miss.
func (c *Cache) Lookup(key Key) (*vhash.VideoHash, bool) {
	hexKey := key.Hex()
	f, err := os.Open(c.entryPath(hexKey))
	if err != nil {
		return nil, false
	}
	defer f.Close()

	wantKey := key.Sum()
	gotKey, vh, err := vhash.Decode(f)
	if err != nil || gotKey != wantKey {
		c.logger.Warn("Removing corrupt cache entry",
			zap.String("key", hexKey),
			zap.Error(apperrors.NewCacheCorrupt(hexKey, err)),
		)
		c.remove(hexKey)
		return nil, false
	}
	return vh, true
}

// GetOrBuild returns the cached VideoHash for key, building and storing it
// on a miss. Concurrent callers for the same key share one build: the
// first becomes the owner, later callers subscribe to its completion. The
// returned hit flag reports whether a build was avoided.
func (c *Cache) GetOrBuild(ctx context.Context, key Key, build BuildFunc) (*vhash.VideoHash, bool, error) {
	if vh, ok := c.Lookup(key); ok {
		return vh, true, nil
	}

	hexKey := key.Hex()

	c.flightMu.Lock()
	if fl, ok := c.inflight[hexKey]; ok {
		c.flightMu.Unlock()
		select {
		case <-fl.done:
			return fl.vh, true, fl.err
		case <-ctx.Done():
			return nil, false, apperrors.ErrCancelled
		}
	}
	fl := &flight{done: make(chan struct{})}
	c.inflight[hexKey] = fl
	c.flightMu.Unlock()

	vh, hit, err := c.buildLocked(ctx, key, hexKey, build)
	fl.vh, fl.err = vh, err
	close(fl.done)

	c.flightMu.Lock()
	delete(c.inflight, hexKey)
	c.flightMu.Unlock()

	return vh, hit, err
}

// buildLocked holds the cross-process file lock around the re-check, the
// build, and the store. The hit flag is true when the re-check found an
// entry and build was not called.
func (c *Cache) buildLocked(ctx context.Context, key Key, hexKey string, build BuildFunc) (*vhash.VideoHash, bool, error) {
	lock := flock.New(c.lockPath(hexKey))
	if err := lock.Lock(); err != nil {
		return nil, false, apperrors.NewResourceExhausted("", fmt.Sprintf("acquire cache lock %s", hexKey), err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			c.logger.Warn("Failed to release cache lock", zap.String("key", hexKey), zap.Error(err))
		}
	}()

	// Another process may have finished while we waited for the lock.
	if vh, ok := c.Lookup(key); ok {
		return vh, true, nil
	}

	vh, err := build(ctx)
	if err != nil {
		return nil, false, err
	}
	if err := c.store(key, hexKey, vh); err != nil {
		return nil, false, err
	}
	return vh, false, nil
}

// store writes the container to a temp file and renames it into place.
func (c *Cache) store(key Key, hexKey string, vh *vhash.VideoHash) error {
	tmp, err := os.CreateTemp(c.dir, "tmp-*.vhash")
	if err != nil {
		return apperrors.NewResourceExhausted(vh.Path, "create cache temp file", err)
	}
	tmpName := tmp.Name()

	if err := vhash.Encode(tmp, key.Sum(), vh); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return apperrors.NewResourceExhausted(vh.Path, "write cache entry", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return apperrors.NewResourceExhausted(vh.Path, "flush cache entry", err)
	}
	if err := os.Rename(tmpName, c.entryPath(hexKey)); err != nil {
		os.Remove(tmpName)
		return apperrors.NewResourceExhausted(vh.Path, "publish cache entry", err)
	}

	c.appendIndex(IndexEntry{
		Key:   hexKey,
		Path:  vh.Path,
		MTime: time.Now().Unix(),
	})
	return nil
}

// Purge removes every entry, lock, and the index. Eviction is explicit
// only; nothing else ever deletes valid entries.
func (c *Cache) Purge() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		name := e.Name()
		if strings.HasSuffix(name, ".vhash") || strings.HasSuffix(name, ".lock") || name == indexName {
			if err := os.Remove(filepath.Join(c.dir, name)); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
	}
	c.index = make(map[string]IndexEntry)
	c.logger.Info("Cache purged", zap.String("dir", c.dir))
	return nil
}

func (c *Cache) entryPath(hexKey string) string {
	return filepath.Join(c.dir, hexKey+".vhash")
}

func (c *Cache) lockPath(hexKey string) string {
	return filepath.Join(c.dir, hexKey+".lock")
}

func (c *Cache) remove(hexKey string) {
	if err := os.Remove(c.entryPath(hexKey)); err != nil && !os.IsNotExist(err) {
		c.logger.Warn("Failed to remove cache entry", zap.String("key", hexKey), zap.Error(err))
	}
	c.mu.Lock()
	delete(c.index, hexKey)
	c.mu.Unlock()
}

func (c *Cache) loadIndex() {
	f, err := os.Open(filepath.Join(c.dir, indexName))
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	loaded := 0
	for scanner.Scan() {
		var entry IndexEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		c.index[entry.Key] = entry
		loaded++
	}
	c.logger.Debug("Loaded cache index hint", zap.Int("entries", loaded))
}

func (c *Cache) appendIndex(entry IndexEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.index[entry.Key] = entry

	f, err := os.OpenFile(filepath.Join(c.dir, indexName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		c.logger.Warn("Failed to open cache index", zap.Error(err))
		return
	}
	defer f.Close()

	line, err := json.Marshal(entry)
	if err != nil {
		return
	}
	line = append(line, '\n')
	if _, err := f.Write(line); err != nil {
		c.logger.Warn("Failed to append cache index", zap.Error(err))
	}
}
