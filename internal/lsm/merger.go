package lsm

import (
	"container/heap"
)

// mergeItem is one candidate entry in the k-way merge, tagged with the
// recency of its source (higher priority wins ties on equal keys).
type mergeItem struct {
	entry    Entry
	source   int // index into the sorted-run slice this item came from
	pos      int // position within that run
	priority int // higher = newer
}

type mergeHeap []*mergeItem

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	cmp := compareKeys(h[i].entry.Key, h[j].entry.Key)
	if cmp != 0 {
		return cmp < 0
	}
	return h[i].priority > h[j].priority
}
func (h mergeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x any)        { *h = append(*h, x.(*mergeItem)) }
func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// mergeRuns performs a k-way merge of already-sorted entry runs, newest run
// last (highest priority), dropping shadowed duplicates but keeping
// tombstones so callers can decide whether to propagate or drop them. This
// is the same heap-based technique the teacher engine's sstable Merger uses
// for tier compaction; here it also backs cursor construction, since a
// cursor's snapshot is exactly "merge memtable + every live segment".
func mergeRuns(runs [][]Entry) []Entry {
	h := &mergeHeap{}
	heap.Init(h)
	for i, run := range runs {
		if len(run) == 0 {
			continue
		}
		heap.Push(h, &mergeItem{entry: run[0], source: i, pos: 0, priority: i})
	}

	var out []Entry
	var lastKey []byte
	haveLast := false

	for h.Len() > 0 {
		item := heap.Pop(h).(*mergeItem)
		isDup := haveLast && compareKeys(item.entry.Key, lastKey) == 0
		if !isDup {
			out = append(out, item.entry)
			lastKey = item.entry.Key
			haveLast = true
		}
		nextPos := item.pos + 1
		if nextPos < len(runs[item.source]) {
			heap.Push(h, &mergeItem{
				entry:    runs[item.source][nextPos],
				source:   item.source,
				pos:      nextPos,
				priority: item.priority,
			})
		}
	}
	return out
}

// dropTombstones filters DeleteEntry records out of a merged run, for
// callers that only want live key/value pairs (Engine.Scan, and through it a
// cursor's user-visible view). Compaction does not use it: its merged output
// keeps tombstones.
func dropTombstones(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Type != DeleteEntry {
			out = append(out, e)
		}
	}
	return out
}
