// Package cache provides an in-memory TTL cache with ETag support for the
// public read endpoints. Entries are dropped by key prefix when the change
// feed reports a write to one of the tables they were built from.
package cache

import (
	"crypto/md5"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/albapepper/schoolcup/internal/config"
)

// TTLs per kind of public read. Writes invalidate earlier than this.
const (
	TTLReference = 10 * time.Minute // modalities, teams, rosters
	TTLSchedule  = 2 * time.Minute  // game lists, calendar, standings
	TTLLive      = 15 * time.Second // a single game with its sets
)

// Key prefixes used by the handlers. Keep in sync with tablePrefixes.
const (
	PrefixGames        = "games:"
	PrefixCalendar     = "calendar:"
	PrefixTeams        = "teams:"
	PrefixModalities   = "modalities:"
	PrefixStandings    = "standings:"
	PrefixTop          = "top:"
	PrefixRegistration = "registration:"
)

// tablePrefixes lists the key prefixes built from each table.
var tablePrefixes = map[string][]string{
	config.GamesTable:              {PrefixGames, PrefixCalendar, PrefixStandings},
	config.GameEventsTable:         {PrefixGames},
	config.GameSetsTable:           {PrefixGames, PrefixStandings},
	config.GameConfigsTable:        {PrefixGames},
	config.TeamsTable:              {PrefixTeams, PrefixGames, PrefixCalendar, PrefixStandings, PrefixTop},
	config.PlayersTable:            {PrefixTeams, PrefixTop},
	config.ModalitiesTable:         {PrefixModalities, PrefixStandings},
	config.RegistrationConfigTable: {PrefixRegistration},
}

type entry struct {
	data      []byte
	etag      string
	expiresAt time.Time
}

// Cache is a thread-safe in-memory TTL cache.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	gens    map[string]uint64 // bumped per key family on every Invalidate
	enabled bool

	hits, misses, invalidations atomic.Int64
}

// New creates a new cache. Pass enabled=false to create a no-op cache.
func New(enabled bool) *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		gens:    make(map[string]uint64),
		enabled: enabled,
	}
	if enabled {
		go c.evictLoop()
	}
	return c
}

// Get retrieves a cached value. Returns data, etag, and whether the entry was found.
func (c *Cache) Get(key string) (data []byte, etag string, ok bool) {
	if !c.enabled {
		return nil, "", false
	}
	c.mu.RLock()
	e, exists := c.entries[key]
	c.mu.RUnlock()
	if !exists || time.Now().After(e.expiresAt) {
		c.misses.Add(1)
		return nil, "", false
	}
	c.hits.Add(1)
	return e.data, e.etag, true
}

// Set stores a value with a TTL and returns its ETag.
func (c *Cache) Set(key string, data []byte, ttl time.Duration) string {
	etag := ComputeETag(data)
	if !c.enabled {
		return etag
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store(key, data, etag, ttl)
	return etag
}

// Generation returns the invalidation counter of key's family. Read it
// before loading and hand it to SetIfCurrent.
func (c *Cache) Generation(key string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gens[family(key)]
}

// SetIfCurrent stores data only if key's family has not been invalidated
// since gen was read, so a load that raced a write is served once but not
// kept. It reports whether the entry was stored.
func (c *Cache) SetIfCurrent(key string, data []byte, ttl time.Duration, gen uint64) (string, bool) {
	etag := ComputeETag(data)
	if !c.enabled {
		return etag, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[family(key)] != gen {
		return etag, false
	}
	c.store(key, data, etag, ttl)
	return etag, true
}

func (c *Cache) store(key string, data []byte, etag string, ttl time.Duration) {
	c.entries[key] = entry{
		data:      data,
		etag:      etag,
		expiresAt: time.Now().Add(ttl),
	}
}

// family maps a key or prefix to its leading "name:" segment.
func family(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[:i+1]
	}
	return key
}

// Invalidate drops every key starting with prefix and returns how many went.
func (c *Cache) Invalidate(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[family(prefix)]++
	n := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			n++
		}
	}
	if n > 0 {
		c.invalidations.Add(int64(n))
	}
	return n
}

// InvalidateTable drops the keys derived from table. Unknown tables clear
// nothing.
func (c *Cache) InvalidateTable(table string) int {
	n := 0
	for _, p := range tablePrefixes[table] {
		n += c.Invalidate(p)
	}
	return n
}

// Stats returns cache statistics.
func (c *Cache) Stats() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	active := 0
	now := time.Now()
	for _, e := range c.entries {
		if now.Before(e.expiresAt) {
			active++
		}
	}
	return map[string]any{
		"enabled":       c.enabled,
		"total_keys":    len(c.entries),
		"active_keys":   active,
		"expired_keys":  len(c.entries) - active,
		"hits":          c.hits.Load(),
		"misses":        c.misses.Load(),
		"invalidations": c.invalidations.Load(),
	}
}

// evictLoop periodically removes expired entries.
func (c *Cache) evictLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		c.evict()
	}
}

func (c *Cache) evict() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// ComputeETag generates a weak ETag from response data using MD5.
func ComputeETag(data []byte) string {
	hash := md5.Sum(data)
	return fmt.Sprintf(`W/"%x"`, hash[:8])
}

// CheckETagMatch checks if an If-None-Match header matches etag. Lists of
// tags are accepted.
func CheckETagMatch(ifNoneMatch, etag string) bool {
	if ifNoneMatch == "" {
		return false
	}
	if ifNoneMatch == "*" {
		return true
	}
	for _, tag := range strings.Split(ifNoneMatch, ",") {
		if strings.TrimSpace(tag) == etag {
			return true
		}
	}
	return false
}
