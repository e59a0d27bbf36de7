package vm

import (
	"slices"
	"sync"
)

// Table is an ordered collection of (key, value) entries, kept sorted
// by key so lookups binary-search (spec.md §3). Grounded on
// internal/mylua/table.go's sorted-slice strategy, which already
// distinguishes a deduplicating Set from an append-only Insert the way
// spec.md's Table invariants require.
type Table struct {
	id      uint64
	entries []tableEntry
}

type tableEntry struct {
	key, value Value
}

// NewTable returns an empty table with room for capacity entries.
func NewTable(capacity int) *Table {
	t := &Table{id: nextID()}
	if capacity > 0 {
		t.entries = make([]tableEntry, 0, capacity)
	}
	return t
}

func findEntry(entries []tableEntry, key Value) (int, bool) {
	return slices.BinarySearchFunc(entries, key, func(e tableEntry, key Value) int {
		return compare(e.key, key)
	})
}

// Get returns the value stored under key, or Nil if absent.
func (t *Table) Get(key Value) Value {
	i, found := findEntry(t.entries, key)
	if !found {
		return Nil
	}
	return t.entries[i].value
}

// Has reports whether key has an entry in t.
func (t *Table) Has(key Value) bool {
	_, found := findEntry(t.entries, key)
	return found
}

// Set stores value under key, replacing any existing entry for key
// (spec.md: "at most one entry per key after set").
func (t *Table) Set(key, value Value) {
	i, found := findEntry(t.entries, key)
	if found {
		t.entries[i].value = value
		return
	}
	t.entries = slices.Insert(t.entries, i, tableEntry{key: key, value: value})
}

// Insert appends an entry for key without checking for an existing
// one, permitting duplicate keys (spec.md: "insert without dedup is
// permitted as an append primitive, used by the constructor
// instruction"). Entries remain sorted by key, so a duplicate key's
// entries are adjacent; the new entry goes before any existing entries
// for key, and since binary search finds the first of them, Get
// returns the most recently inserted value. Set on a duplicated key
// replaces only that first entry.
func (t *Table) Insert(key, value Value) {
	i, _ := findEntry(t.entries, key)
	t.entries = slices.Insert(t.entries, i, tableEntry{key: key, value: value})
}

// Len returns the number of entries in t.
func (t *Table) Len() int {
	return len(t.entries)
}

var idGen struct {
	mu sync.Mutex
	n  uint64
}

func nextID() uint64 {
	idGen.mu.Lock()
	defer idGen.mu.Unlock()
	idGen.n++
	return idGen.n
}
