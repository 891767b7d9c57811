// Package cache keeps fetched DICOM instances on disk so repeated loads of the
// same study skip the network. Entries are keyed by source URL, expire after
// MaxAge and are evicted by the configured strategy once MaxSize is exceeded.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const indexVersion = "dicom-1"

// Cache is a size bounded on-disk store of DICOM payloads
type Cache struct {
	mu       sync.RWMutex
	dir      string
	index    *Index
	maxSize  int64
	maxAge   time.Duration
	strategy EvictionStrategy
	stats    *Stats
	stopCh   chan struct{}
	stopOnce sync.Once
}

// Index is persisted as index.json in the cache directory
type Index struct {
	Version string            `json:"version"`
	Entries map[string]*Entry `json:"entries"`
	Updated time.Time         `json:"updated"`
}

// Entry describes one cached instance
type Entry struct {
	Source      string    `json:"source"`
	Digest      string    `json:"digest"`
	File        string    `json:"file"`
	Size        int64     `json:"size"`
	Stored      time.Time `json:"stored"`
	LastAccess  time.Time `json:"last_access"`
	AccessCount int       `json:"access_count"`
}

// Stats tracks hit rates and occupancy
type Stats struct {
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Evictions  int64 `json:"evictions"`
	TotalSize  int64 `json:"total_size"`
	EntryCount int   `json:"entry_count"`
}

// EvictionStrategy picks the entry to drop when space runs out
type EvictionStrategy int

const (
	// LRU removes least recently used entries
	LRU EvictionStrategy = iota
	// LFU removes least frequently used entries
	LFU
	// FIFO removes oldest entries first
	FIFO
)

// ParseStrategy maps a config string to a strategy
func ParseStrategy(s string) (EvictionStrategy, error) {
	switch s {
	case "", "lru":
		return LRU, nil
	case "lfu":
		return LFU, nil
	case "fifo":
		return FIFO, nil
	}
	return LRU, fmt.Errorf("unknown eviction strategy %q", s)
}

// Config holds cache configuration
type Config struct {
	Dir      string           // default: $HOME/.cache/dicomview
	MaxSize  int64            // bytes, <= 0 disables the bound
	MaxAge   time.Duration    // <= 0 keeps entries forever
	Strategy EvictionStrategy // default: LRU
}

// DefaultConfig returns the default cache configuration
func DefaultConfig() Config {
	homeDir, _ := os.UserHomeDir()
	return Config{
		Dir:      filepath.Join(homeDir, ".cache", "dicomview"),
		MaxSize:  512 << 20,
		MaxAge:   24 * time.Hour,
		Strategy: LRU,
	}
}

// New opens the cache in config.Dir, reusing an existing index when it is readable
func New(config Config) (*Cache, error) {
	if config.Dir == "" {
		config = DefaultConfig()
	}
	if err := os.MkdirAll(filepath.Join(config.Dir, "instances"), 0755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	c := &Cache{
		dir:      config.Dir,
		maxSize:  config.MaxSize,
		maxAge:   config.MaxAge,
		strategy: config.Strategy,
		stats:    &Stats{},
		stopCh:   make(chan struct{}),
		index:    emptyIndex(),
	}

	if err := c.loadIndex(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[Cache] ⚠️  Discarding unreadable index: %v", err)
		c.index = emptyIndex()
	}

	go c.sweepLoop()
	return c, nil
}

func emptyIndex() *Index {
	return &Index{Version: indexVersion, Entries: make(map[string]*Entry), Updated: time.Now()}
}

// Get returns the cached payload for source
func (c *Cache) Get(source string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.index.Entries[source]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	if c.expired(entry) {
		c.dropLocked(source, entry)
		c.stats.Misses++
		return nil, false
	}

	data, err := os.ReadFile(filepath.Join(c.dir, "instances", entry.File))
	if err != nil || digest(data) != entry.Digest {
		c.dropLocked(source, entry)
		c.stats.Misses++
		return nil, false
	}

	entry.LastAccess = time.Now()
	entry.AccessCount++
	c.stats.Hits++
	return data, true
}

// Put stores data for source, evicting other entries if needed
func (c *Cache) Put(source string, data []byte) error {
	sum := digest(data)
	size := int64(len(data))

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.index.Entries[source]; ok {
		if existing.Digest == sum {
			return nil
		}
		c.dropLocked(source, existing)
	}

	if c.maxSize > 0 && size > c.maxSize {
		return fmt.Errorf("instance of %d bytes exceeds cache size %d", size, c.maxSize)
	}
	c.evictLocked(size)

	file := digest([]byte(source))[:24] + ".dcm"
	if err := os.WriteFile(filepath.Join(c.dir, "instances", file), data, 0644); err != nil {
		return fmt.Errorf("write cached instance: %w", err)
	}

	now := time.Now()
	c.index.Entries[source] = &Entry{
		Source:     source,
		Digest:     sum,
		File:       file,
		Size:       size,
		Stored:     now,
		LastAccess: now,
	}
	c.stats.TotalSize += size
	c.stats.EntryCount = len(c.index.Entries)
	c.index.Updated = now

	return c.saveIndexLocked()
}

// Fetch returns the cached payload for source or calls fill and stores its result
func (c *Cache) Fetch(source string, fill func() ([]byte, error)) ([]byte, error) {
	if data, ok := c.Get(source); ok {
		return data, nil
	}
	data, err := fill()
	if err != nil {
		return nil, err
	}
	if err := c.Put(source, data); err != nil {
		log.Printf("[Cache] ⚠️  Not caching %s: %v", source, err)
	}
	return data, nil
}

// Delete removes source from the cache
func (c *Cache) Delete(source string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.index.Entries[source]
	if !ok {
		return nil
	}
	c.dropLocked(source, entry)
	return c.saveIndexLocked()
}

// Clear removes every cached instance
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	instances := filepath.Join(c.dir, "instances")
	if err := os.RemoveAll(instances); err != nil {
		return fmt.Errorf("clear instances: %w", err)
	}
	if err := os.MkdirAll(instances, 0755); err != nil {
		return fmt.Errorf("recreate instances: %w", err)
	}
	c.index = emptyIndex()
	c.stats = &Stats{}
	return c.saveIndexLocked()
}

// GetStats returns a copy of the cache statistics
func (c *Cache) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return *c.stats
}

// Close stops the expiry sweep and persists the index
func (c *Cache) Close() error {
	c.stopOnce.Do(func() { close(c.stopCh) })

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveIndexLocked()
}

func (c *Cache) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(c.dir, "index.json"))
	if err != nil {
		return err
	}

	var index Index
	if err := json.Unmarshal(data, &index); err != nil {
		return err
	}
	if index.Version != indexVersion {
		return fmt.Errorf("index version %q", index.Version)
	}
	if index.Entries == nil {
		index.Entries = make(map[string]*Entry)
	}

	c.index = &index
	for _, entry := range index.Entries {
		c.stats.TotalSize += entry.Size
	}
	c.stats.EntryCount = len(index.Entries)
	return nil
}

func (c *Cache) saveIndexLocked() error {
	data, err := json.MarshalIndent(c.index, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.dir, "index.json"), data, 0644)
}

func (c *Cache) expired(entry *Entry) bool {
	return c.maxAge > 0 && time.Since(entry.Stored) > c.maxAge
}

// evictLocked frees room for needed bytes
func (c *Cache) evictLocked(needed int64) {
	if c.maxSize <= 0 {
		return
	}
	for c.stats.TotalSize+needed > c.maxSize && len(c.index.Entries) > 0 {
		source, victim := c.victimLocked()
		if victim == nil {
			return
		}
		c.dropLocked(source, victim)
		c.stats.Evictions++
	}
}

func (c *Cache) victimLocked() (string, *Entry) {
	var (
		source string
		victim *Entry
	)
	for key, entry := range c.index.Entries {
		if victim == nil {
			source, victim = key, entry
			continue
		}
		var older bool
		switch c.strategy {
		case LFU:
			older = entry.AccessCount < victim.AccessCount
		case FIFO:
			older = entry.Stored.Before(victim.Stored)
		default:
			older = entry.LastAccess.Before(victim.LastAccess)
		}
		if older {
			source, victim = key, entry
		}
	}
	return source, victim
}

func (c *Cache) dropLocked(source string, entry *Entry) {
	path := filepath.Join(c.dir, "instances", entry.File)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("[Cache] ⚠️  Failed to remove %s: %v", path, err)
	}
	delete(c.index.Entries, source)
	c.stats.TotalSize -= entry.Size
	c.stats.EntryCount = len(c.index.Entries)
	c.index.Updated = time.Now()
}

func (c *Cache) sweepLoop() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Sweep()
		case <-c.stopCh:
			return
		}
	}
}

// Sweep drops expired entries and reports how many were removed
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for source, entry := range c.index.Entries {
		if c.expired(entry) {
			c.dropLocked(source, entry)
			removed++
		}
	}
	if removed > 0 {
		if err := c.saveIndexLocked(); err != nil {
			log.Printf("[Cache] ⚠️  Failed to save index: %v", err)
		}
	}
	return removed
}

func digest(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
