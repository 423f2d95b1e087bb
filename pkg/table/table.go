// Package table implements the open-addressed, string-keyed hash table
// used throughout lox for string interning, globals, class method
// tables, and instance fields: linear probing and tombstones. The VM's
// intern table is keyed by Go string, so its probes compare bytes; that
// is the one place byte equality on strings is performed. Every other
// table is keyed by *object.String and compares key pointers, which is
// sound once strings are interned.
package table

import "github.com/kristofer/lox/pkg/value"

// Key is anything hashable and comparable by identity once interned —
// in practice *object.String or a Go string, but table must not import
// pkg/object (object imports table for its method and field tables,
// which would be an import cycle), so the key type is kept abstract here.
type Key interface {
	comparable
}

// entry is a single probe-chain slot. A nil Key with a present Value
// (Tombstone=true) marks a tombstone: a deleted slot whose presence must
// not break the probe chain for later lookups.
type entry[K Key] struct {
	key       K
	present   bool
	tombstone bool
	value     value.Value
}

// Table is a generic open-addressed hash map keyed by K (a string or
// string-like interned handle) to a lox Value.
type Table[K Key] struct {
	count    int // occupied slots, including tombstones
	entries  []entry[K]
	hashOf   func(K) uint32
	zeroKey  K
}

const (
	initialCapacity = 8
	maxLoadFactor   = 0.75
)

// New creates an empty Table. hashOf must return a stable hash for any
// key the table will ever be asked to store.
func New[K Key](hashOf func(K) uint32) *Table[K] {
	return &Table[K]{hashOf: hashOf}
}

// Count returns the number of occupied slots, tombstones included;
// it equals the live-entry count only after a rehash or before any
// Delete.
func (t *Table[K]) Count() int {
	// count includes tombstones; callers that want the live count can't
	// get it for free without a second counter, so Count reports the raw
	// occupied-slot count and callers that truly need the live-only
	// count should iterate.
	return t.count
}

// Get looks up key, returning its value and whether it was found.
func (t *Table[K]) Get(key K) (value.Value, bool) {
	if len(t.entries) == 0 {
		return value.Nil, false
	}
	e := t.find(key)
	if !e.present {
		return value.Nil, false
	}
	return e.value, true
}

// Set stores key=val, growing the table first if the load factor would
// be exceeded. Returns true if key was not already present (including
// when its slot is a reused tombstone), false if an existing entry was
// overwritten.
func (t *Table[K]) Set(key K, val value.Value) bool {
	if len(t.entries) == 0 || float64(t.count+1) > float64(len(t.entries))*maxLoadFactor {
		t.grow()
	}

	idx := t.probe(key)
	e := &t.entries[idx]
	isNew := !e.present
	if isNew && !e.tombstone {
		t.count++
	}
	e.key = key
	e.present = true
	e.tombstone = false
	e.value = val
	return isNew
}

// Delete removes key, leaving a tombstone so later probes that skipped
// past it during insertion still find their targets. Returns whether key
// was present.
func (t *Table[K]) Delete(key K) bool {
	if len(t.entries) == 0 {
		return false
	}
	idx := t.probe(key)
	e := &t.entries[idx]
	if !e.present {
		return false
	}
	e.present = false
	e.tombstone = true
	e.key = t.zeroKey
	e.value = value.Bool(true) // sentinel, per the tombstone convention
	return true
}

// AddAllFrom copies every entry of src into t, overwriting existing keys.
// Used for class inheritance (Class.Inherit).
func (t *Table[K]) AddAllFrom(src *Table[K]) {
	for _, e := range src.entries {
		if e.present {
			t.Set(e.key, e.value)
		}
	}
}

// Keys returns every live key, in unspecified order. Used by the
// self-test suite.
func (t *Table[K]) Keys() []K {
	keys := make([]K, 0, t.count)
	for _, e := range t.entries {
		if e.present {
			keys = append(keys, e.key)
		}
	}
	return keys
}

// Each calls fn for every live entry. fn must not mutate t.
func (t *Table[K]) Each(fn func(key K, val value.Value)) {
	for _, e := range t.entries {
		if e.present {
			fn(e.key, e.value)
		}
	}
}

// DeleteUnmarked removes every entry whose key fails keep. Used before
// sweep to break the string table's weak reference to unreachable
// strings, so an unreferenced string doesn't stay falsely alive just
// because its content still appears as a table key.
func (t *Table[K]) DeleteUnmarked(keep func(K) bool) {
	for i := range t.entries {
		e := &t.entries[i]
		if e.present && !keep(e.key) {
			e.present = false
			e.tombstone = true
			e.key = t.zeroKey
			e.value = value.Bool(true)
		}
	}
}

func (t *Table[K]) probe(key K) int {
	mask := len(t.entries) - 1
	idx := int(t.hashOf(key)) & mask
	var firstTombstone = -1
	for {
		e := &t.entries[idx]
		if !e.present {
			if e.tombstone {
				if firstTombstone == -1 {
					firstTombstone = idx
				}
			} else {
				if firstTombstone != -1 {
					return firstTombstone
				}
				return idx
			}
		} else if e.key == key {
			return idx
		}
		idx = (idx + 1) & mask
	}
}

// find returns the entry at key's probe slot, which may be empty or a
// tombstone when key is absent; Get checks present to tell "found" from
// "empty or tombstone".
func (t *Table[K]) find(key K) *entry[K] {
	idx := t.probe(key)
	return &t.entries[idx]
}

func (t *Table[K]) grow() {
	newCap := initialCapacity
	if len(t.entries) > 0 {
		newCap = len(t.entries) * 2
	}
	old := t.entries
	t.entries = make([]entry[K], newCap)
	t.count = 0
	for _, e := range old {
		if e.present {
			idx := t.probe(e.key)
			t.entries[idx] = e
			t.count++
		}
	}
}
