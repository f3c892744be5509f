// Package cache implements the symcache store contract (spec §6.4): an
// opaque, byte-addressed key-value cache. DiskCache keeps symcache blobs
// durably on local disk and fronts them with an in-process LRU, the same
// two-tier shape as the teacher's basicSymbolicator (an
// `lru.Cache[string, *symbolic.Archive]` in front of a remote store) --
// here the "remote store" is just the filesystem, since the spec's cache
// tier and its remote-download tier are explicitly separate components.
package cache

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrCacheMiss is returned by Get when key has no entry.
var ErrCacheMiss = errors.New("cache: key not found")

// Entry is the cached unit: serialized symcache bytes plus the module
// filename chosen by the parser.
type Entry struct {
	Symcache []byte
	Filename string
}

// Cache is the contract the acquirer consumes. Safe for concurrent use by
// multiple requests/workers; a Set race on the same key is last-writer-wins.
type Cache interface {
	Get(key string) (Entry, error)
	Set(key string, entry Entry) error
}

// DiskCache is a local-disk Cache bounded by an in-memory LRU of decoded
// entries.
type DiskCache struct {
	baseDir string
	mem     *lru.Cache[string, Entry]
	mu      sync.Mutex // serializes the write-then-rename sequence of every Set
}

// NewDiskCache returns a DiskCache rooted at baseDir with an in-memory LRU
// of the given size.
func NewDiskCache(baseDir string, lruSize int) (*DiskCache, error) {
	mem, err := lru.New[string, Entry](lruSize)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create base dir: %w", err)
	}
	return &DiskCache{baseDir: baseDir, mem: mem}, nil
}

func (c *DiskCache) pathFor(key string) string {
	return filepath.Join(c.baseDir, key)
}

// Get returns the cached entry for key, or ErrCacheMiss.
func (c *DiskCache) Get(key string) (Entry, error) {
	if entry, ok := c.mem.Get(key); ok {
		return entry, nil
	}

	data, err := os.ReadFile(c.pathFor(key))
	if errors.Is(err, os.ErrNotExist) {
		return Entry{}, ErrCacheMiss
	}
	if err != nil {
		return Entry{}, fmt.Errorf("cache: read %s: %w", key, err)
	}

	var entry Entry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&entry); err != nil {
		return Entry{}, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	c.mem.Add(key, entry)
	return entry, nil
}

// Set stores entry for key, writing via a temp file + rename so a reader
// never observes a partially-written cache file.
func (c *DiskCache) Set(key string, entry Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cache: create dir for %s: %w", key, err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry); err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("cache: create temp file for %s: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("cache: write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cache: close temp file for %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("cache: rename into place %s: %w", key, err)
	}

	c.mem.Add(key, entry)
	return nil
}
