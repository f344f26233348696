// Package cache provides the persistent chapter cache that fronts
// content provider fetches.
//
// Two independent policies bound the cache: LRU eviction is applied
// eagerly on Set when the store is full, and TTL expiry is checked
// lazily on Get. An entry survives any number of inserts on other keys
// as long as it is read periodically, and disappears purely from age
// even if it was the most recently inserted.
package cache

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/FocuswithJustin/CedarPulpit/core/bible"
	"github.com/FocuswithJustin/CedarPulpit/core/errors"
	"github.com/FocuswithJustin/CedarPulpit/internal/logging"
)

// SchemaVersion is the persisted blob schema version. Bumping it wipes
// every cached entry on next construction.
const SchemaVersion = 2

// BlobKey is the durable storage key for the serialized cache.
const BlobKey = "chapter-cache"

// BlobStore is the durable storage the cache persists through.
// WriteBlob must return *errors.QuotaError (or wrap ErrQuotaExceeded)
// when it fails for lack of space; the quota-degrade policy depends on
// distinguishing that case.
type BlobStore interface {
	ReadBlob(key string) (data string, ok bool, err error)
	WriteBlob(key, data string) error
}

// Config contains cache configuration options.
type Config struct {
	// MaxSize is the maximum number of entries (0 = default 50).
	MaxSize int

	// MaxAge is the time-to-live for entries (0 = default 30 days).
	MaxAge time.Duration
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		MaxSize: 50,
		MaxAge:  30 * 24 * time.Hour,
	}
}

// Stats contains cache statistics.
type Stats struct {
	Entries    int    `json:"entries"`
	Hits       int64  `json:"hits"`
	Misses     int64  `json:"misses"`
	HitRate    string `json:"hit_rate"`
	MaxSize    int    `json:"max_size"`
	MaxAgeDays int    `json:"max_age_days"`
}

// entry is one cached chapter. Timestamp is creation time; LastAccessed
// is updated on every hit and is always >= Timestamp.
type entry struct {
	Chapter      bible.Chapter `json:"chapter"`
	Timestamp    int64         `json:"timestamp"`     // epoch ms, creation
	LastAccessed int64         `json:"last_accessed"` // epoch ms, most recent read
	Seq          int64         `json:"seq"`           // insertion order, breaks eviction ties
}

// blob is the persisted store shape. Only the version marker is an
// external contract; everything else is opaque to collaborators.
type blob struct {
	Version int               `json:"version"`
	Entries map[string]*entry `json:"entries"`
}

// timeNow is overridable in tests.
var timeNow = time.Now

// ChapterCache is a bounded, TTL-based, LRU-evicted chapter cache that
// persists across sessions through a BlobStore.
type ChapterCache struct {
	mu      sync.Mutex
	cfg     Config
	store   BlobStore
	entries map[string]*entry
	seq     int64
	hits    int64
	misses  int64

	// degraded is set once a quota retry fails; the cache then serves
	// from memory only for the remainder of the session.
	degraded bool
}

// New constructs a chapter cache backed by the given store, loading any
// persisted entries. A stored blob with a different schema version is
// wiped before any other operation.
func New(store BlobStore, cfg Config) *ChapterCache {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultConfig().MaxSize
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultConfig().MaxAge
	}
	c := &ChapterCache{
		cfg:     cfg,
		store:   store,
		entries: make(map[string]*entry),
	}
	c.load()
	return c
}

// load restores the persisted store, wiping it on version mismatch or
// corruption. Version mismatch is an expected consequence of upgrades,
// not a fault; it is handled internally and never reported.
func (c *ChapterCache) load() {
	data, ok, err := c.store.ReadBlob(BlobKey)
	if err != nil || !ok {
		return
	}

	var b blob
	if err := json.Unmarshal([]byte(data), &b); err != nil || b.Version != SchemaVersion {
		logging.CacheEvent("store_wiped", "reason", "schema version mismatch or corrupt blob")
		c.entries = make(map[string]*entry)
		c.persistLocked()
		return
	}

	c.entries = b.Entries
	if c.entries == nil {
		c.entries = make(map[string]*entry)
	}
	for _, e := range c.entries {
		if e.Seq > c.seq {
			c.seq = e.Seq
		}
	}
}

// Get returns the cached chapter for (book, chapter, translation).
// A hit promotes the entry (updates LastAccessed) and counts toward the
// hit rate. A present-but-expired entry is deleted, the deletion is
// persisted immediately, and the lookup counts as a miss.
func (c *ChapterCache) Get(book string, chapter int, translation string) (*bible.Chapter, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := bible.Key(book, chapter, translation)
	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}

	now := timeNow().UnixMilli()
	if now-e.Timestamp > c.cfg.MaxAge.Milliseconds() {
		delete(c.entries, key)
		c.persistLocked()
		c.misses++
		return nil, false
	}

	e.LastAccessed = now
	c.hits++
	ch := e.Chapter
	return &ch, true
}

// Set stores a chapter, evicting the least recently used entry first if
// a new key would exceed MaxSize. The whole store is persisted before
// Set returns; the return value reports whether that persistence
// succeeded (a false return still leaves the entry served from memory).
func (c *ChapterCache) Set(book string, chapter int, translation string, value *bible.Chapter) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := bible.Key(book, chapter, translation)
	now := timeNow().UnixMilli()

	if e, ok := c.entries[key]; ok {
		// Refresh of an existing key: no eviction, creation time kept.
		e.Chapter = *value
		e.LastAccessed = now
	} else {
		if len(c.entries) >= c.cfg.MaxSize {
			c.evictOldestLocked()
		}
		c.seq++
		c.entries[key] = &entry{
			Chapter:      *value,
			Timestamp:    now,
			LastAccessed: now,
			Seq:          c.seq,
		}
	}

	return c.persistLocked() == nil
}

// evictOldestLocked removes exactly one entry: the one with the
// smallest LastAccessed, ties broken by insertion order.
func (c *ChapterCache) evictOldestLocked() {
	var victim string
	var victimEntry *entry
	for k, e := range c.entries {
		if victimEntry == nil ||
			e.LastAccessed < victimEntry.LastAccessed ||
			(e.LastAccessed == victimEntry.LastAccessed && e.Seq < victimEntry.Seq) {
			victim = k
			victimEntry = e
		}
	}
	if victimEntry != nil {
		delete(c.entries, victim)
		logging.CacheEvent("evicted", "key", victim)
	}
}

// persistLocked serializes the store to durable storage. On a quota
// error it frees capacity by dropping the oldest half of the entries by
// LastAccessed and retries exactly once; if the retry also fails the
// cache degrades to memory-only for the rest of the session.
func (c *ChapterCache) persistLocked() error {
	if c.degraded {
		return errors.ErrQuotaExceeded
	}

	err := c.writeLocked()
	if err == nil {
		return nil
	}

	var qerr *errors.QuotaError
	if !errors.As(err, &qerr) && !errors.Is(err, errors.ErrQuotaExceeded) {
		return err
	}

	c.dropOldestHalfLocked()
	if err := c.writeLocked(); err != nil {
		c.degraded = true
		logging.CacheEvent("degraded", "reason", "storage quota exhausted after retry")
		return err
	}
	logging.CacheEvent("quota_recovered", "entries", len(c.entries))
	return nil
}

func (c *ChapterCache) writeLocked() error {
	data, err := json.Marshal(blob{Version: SchemaVersion, Entries: c.entries})
	if err != nil {
		return err
	}
	return c.store.WriteBlob(BlobKey, string(data))
}

// dropOldestHalfLocked removes the oldest half of the entries by
// LastAccessed (rounded up).
func (c *ChapterCache) dropOldestHalfLocked() {
	n := (len(c.entries) + 1) / 2
	for i := 0; i < n && len(c.entries) > 0; i++ {
		c.evictOldestLocked()
	}
}

// Clear wipes every entry and persists the empty store.
func (c *ChapterCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.persistLocked()
}

// Len returns the number of entries currently in the store, including
// any that have aged out but not yet been touched by a Get.
func (c *ChapterCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns cache statistics. HitRate is a percentage with one
// decimal, or "0%" when no lookups have occurred yet.
func (c *ChapterCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	rate := "0%"
	if total := c.hits + c.misses; total > 0 {
		rate = fmt.Sprintf("%.1f%%", float64(c.hits)/float64(total)*100)
	}
	return Stats{
		Entries:    len(c.entries),
		Hits:       c.hits,
		Misses:     c.misses,
		HitRate:    rate,
		MaxSize:    c.cfg.MaxSize,
		MaxAgeDays: int(c.cfg.MaxAge.Hours() / 24),
	}
}
