package txn

import (
	"sort"

	"github.com/tesseradb/tessera/internal/errs"
)

// cursorEntry is one row of a Cursor's materialized view.
type cursorEntry struct {
	key   []byte
	value []byte
}

// Cursor is a forward-only iterator over the encoded keyspace as of the
// transaction's snapshot, overlaid with the transaction's own buffered
// writes so it satisfies read-your-writes (spec.md §4.2.1).
type Cursor struct {
	entries []cursorEntry
	pos     int
}

// CreateCursor snapshots the engine's live keyspace and overlays this
// transaction's buffered writes, sorted into a single ascending view.
func (t *Transaction) CreateCursor() (*Cursor, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.st != active {
		return nil, errs.BadState
	}

	liveEntries, err := t.engine.Scan(nil)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string][]byte, len(liveEntries)+len(t.writes))
	for _, e := range liveEntries {
		byKey[string(e.Key)] = e.Value
	}
	for k, w := range t.writes {
		if w.delete {
			delete(byKey, k)
			continue
		}
		byKey[k] = w.value
	}

	entries := make([]cursorEntry, 0, len(byKey))
	for k, v := range byKey {
		entries = append(entries, cursorEntry{key: []byte(k), value: v})
	}
	sort.Slice(entries, func(i, j int) bool { return string(entries[i].key) < string(entries[j].key) })

	return &Cursor{entries: entries}, nil
}

// Seek positions the cursor at the smallest key >= prefix. Without a prior
// Seek, iteration begins at the smallest key.
func (c *Cursor) Seek(prefix []byte) {
	pfx := string(prefix)
	c.pos = sort.Search(len(c.entries), func(i int) bool {
		return string(c.entries[i].key) >= pfx
	})
}

// Next returns the cursor's current entry and advances it, or
// errs.Exhausted once every entry has been yielded.
func (c *Cursor) Next() (key, value []byte, err error) {
	if c.pos >= len(c.entries) {
		return nil, nil, errs.Exhausted
	}
	e := c.entries[c.pos]
	c.pos++
	return e.key, e.value, nil
}
