package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const entryExt = ".json"

// DiskCache persists entries as one JSON file each, grouped by key
// namespace: <dir>/<namespace>/<digest>.json
type DiskCache struct {
	dir string
	ttl time.Duration
}

// NewDiskCache creates a disk cache rooted at dir. A zero ttl on Set uses ttl.
func NewDiskCache(dir string, ttl time.Duration) *DiskCache {
	return &DiskCache{dir: dir, ttl: ttl}
}

type diskEntry struct {
	Key       string    `json:"key"`
	Data      []byte    `json:"data"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (e diskEntry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

func (c *DiskCache) Get(key string) ([]byte, bool) {
	e, ok := c.lookup(key)
	if !ok {
		return nil, false
	}
	return e.Data, true
}

// lookup returns the live entry for key, removing it when expired
func (c *DiskCache) lookup(key string) (diskEntry, bool) {
	path := c.path(key)
	e, err := readEntry(path)
	if err != nil || e.Key != key {
		return diskEntry{}, false
	}
	if e.expired(time.Now()) {
		_ = os.Remove(path)
		return diskEntry{}, false
	}
	return e, true
}

func readEntry(path string) (diskEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return diskEntry{}, err
	}
	var e diskEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return diskEntry{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return e, nil
}

func (c *DiskCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	e := diskEntry{Key: key, Data: value}
	if ttl > 0 {
		e.ExpiresAt = time.Now().Add(ttl)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	path := c.path(key)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	// Write then rename so concurrent readers never see a partial entry
	tmp, err := os.CreateTemp(dir, ".entry-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}

func (c *DiskCache) Delete(key string) error {
	if err := os.Remove(c.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Clear removes the cache directory
func (c *DiskCache) Clear() error {
	return os.RemoveAll(c.dir)
}

// Prune removes expired and unreadable entries and reports how many
func (c *DiskCache) Prune() (int, error) {
	now := time.Now()
	removed := 0
	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, entryExt) {
			return nil
		}
		e, err := readEntry(path)
		if err == nil && !e.expired(now) {
			return nil
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		removed++
		return nil
	})
	return removed, err
}

func (c *DiskCache) path(key string) string {
	namespace, digest := splitKey(key)
	if namespace == "" {
		namespace = "misc"
	}
	name := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(digest)
	return filepath.Join(c.dir, namespace, name+entryExt)
}
