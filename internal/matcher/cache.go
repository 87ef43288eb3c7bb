package matcher

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ukcatalog/core/internal/store"
)

// Cache is the in-memory regulator_lookup cache. Its lifetime is tied to the
// orchestrator instance; it is rebuilt at startup and whenever the
// underlying table's version fingerprint changes, encapsulating what the
// teacher kept as module-level process-wide state behind an explicit handle.
type Cache struct {
	mu      sync.RWMutex
	byName  map[string][]store.LookupRow
	version string
}

func NewCache() *Cache {
	return &Cache{byName: make(map[string][]store.LookupRow)}
}

// RefreshIfVersionChanged reloads the cache only when st's lookup table
// fingerprint differs from the cached version.
func (c *Cache) RefreshIfVersionChanged(ctx context.Context, st *store.Store) error {
	version, err := st.LookupVersion(ctx)
	if err != nil {
		return fmt.Errorf("matcher: cache version check: %w", err)
	}

	c.mu.RLock()
	unchanged := version == c.version
	c.mu.RUnlock()
	if unchanged {
		return nil
	}

	rows, err := st.ListLookup(ctx)
	if err != nil {
		return fmt.Errorf("matcher: cache reload: %w", err)
	}

	byName := make(map[string][]store.LookupRow)
	for _, r := range rows {
		byName[r.SearchName] = append(byName[r.SearchName], r)
	}
	for name := range byName {
		rows := byName[name]
		sort.Slice(rows, func(i, j int) bool { return rows[i].MatchRank < rows[j].MatchRank })
		byName[name] = rows
	}

	c.mu.Lock()
	c.byName = byName
	c.version = version
	c.mu.Unlock()
	return nil
}

// rowsFor returns every regulator_lookup row for an exact search_name match,
// already sorted by match_rank ascending.
func (c *Cache) rowsFor(searchName string) []store.LookupRow {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byName[searchName]
}

// bestOfType returns the lowest-match_rank row of the given type for
// searchName, if any.
func (c *Cache) bestOfType(searchName string, t store.MatchType) (store.LookupRow, bool) {
	for _, r := range c.rowsFor(searchName) {
		if r.MatchType == t {
			return r, true
		}
	}
	return store.LookupRow{}, false
}

// all returns every active lookup row, for the fuzzy strategy's full scan,
// ordered by search_name and then match_rank so that scan is deterministic.
func (c *Cache) all() []store.LookupRow {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.byName))
	for name := range c.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	var out []store.LookupRow
	for _, name := range names {
		out = append(out, c.byName[name]...)
	}
	return out
}
