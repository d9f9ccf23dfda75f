package repository

import (
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// RefCache maps person and genre names to row IDs. Entries are evicted
// least-recently-used and removed whenever the repository renames or
// deletes the row. IDs resolved inside a transaction are staged in a
// refBatch and only reach the cache once that transaction commits.
type RefCache struct {
	entries *lru.Cache[string, int]
	gen     atomic.Uint64 // bumped on every Remove and Purge
}

// NewRefCache creates a cache holding at most size names. A non-positive
// size disables caching.
func NewRefCache(size int) *RefCache {
	if size <= 0 {
		return &RefCache{}
	}
	entries, err := lru.New[string, int](size)
	if err != nil {
		return &RefCache{}
	}
	return &RefCache{entries: entries}
}

func refKey(table, name string) string {
	return table + "\x00" + strings.ToLower(strings.TrimSpace(name))
}

// Get returns the cached ID for name in table.
func (c *RefCache) Get(table, name string) (int, bool) {
	if c == nil || c.entries == nil {
		return 0, false
	}
	return c.entries.Get(refKey(table, name))
}

// Add records the ID for name in table.
func (c *RefCache) Add(table, name string, id int) {
	if c == nil || c.entries == nil {
		return
	}
	c.entries.Add(refKey(table, name), id)
}

// Remove forgets name in table.
func (c *RefCache) Remove(table, name string) {
	if c == nil || c.entries == nil {
		return
	}
	c.gen.Add(1)
	c.entries.Remove(refKey(table, name))
}

// Purge drops every entry.
func (c *RefCache) Purge() {
	if c == nil || c.entries == nil {
		return
	}
	c.gen.Add(1)
	c.entries.Purge()
}

// Len reports the number of cached names.
func (c *RefCache) Len() int {
	if c == nil || c.entries == nil {
		return 0
	}
	return c.entries.Len()
}

type refEntry struct {
	table, name string
	id          int
}

// refBatch collects name lookups made inside one transaction.
type refBatch struct {
	cache   *RefCache
	gen     uint64
	entries []refEntry
}

func (c *RefCache) batch() *refBatch {
	b := &refBatch{cache: c}
	if c != nil {
		b.gen = c.gen.Load()
	}
	return b
}

func (b *refBatch) add(table, name string, id int) {
	if b == nil {
		return
	}
	b.entries = append(b.entries, refEntry{table: table, name: name, id: id})
}

// commit publishes the staged IDs. The batch is dropped when the cache was
// invalidated after the transaction started, since a staged name may point
// at a row that has since been renamed or deleted.
func (b *refBatch) commit() {
	if b == nil || b.cache == nil || b.cache.entries == nil {
		return
	}
	if b.cache.gen.Load() != b.gen {
		return
	}
	for _, e := range b.entries {
		b.cache.Add(e.table, e.name, e.id)
	}
}
