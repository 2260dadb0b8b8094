package lsm

import (
	"fmt"
	"path/filepath"
)

// compact merges every current segment into a single new segment, dropping
// keys fully shadowed by newer writes but keeping tombstones: the merged
// output carries every surviving tombstone, and no compaction pass removes
// them. This is a deliberately simplified single-tier compaction: the
// teacher engine tiers segments and only compacts within a tier, but
// nothing in this store's contract depends on tiering, so one merged run is
// enough. See DESIGN.md for the tradeoff.
func (e *Engine) compact() error {
	e.stateMu.Lock()
	segments := make([]*segmentReader, len(e.segments))
	copy(segments, e.segments)
	e.stateMu.Unlock()

	if len(segments) < 2 {
		return nil
	}

	runs := make([][]Entry, len(segments))
	for i, seg := range segments {
		all, err := seg.allEntries()
		if err != nil {
			return err
		}
		runs[i] = all
	}
	merged := mergeRuns(runs)

	outPath := filepath.Join(e.dir, segmentsSubdir, fmt.Sprintf("%016d%s", e.segCounter.Add(1), segmentSuffix))
	w, err := newSegmentWriter(e.dm, outPath, e.cfg.IndexInterval)
	if err != nil {
		return err
	}
	for _, entry := range merged {
		if err := w.put(entry); err != nil {
			return err
		}
	}
	if err := w.finish(); err != nil {
		return err
	}
	reader, err := openSegmentReader(e.dm, outPath)
	if err != nil {
		return err
	}

	e.stateMu.Lock()
	// Only replace the segments we actually merged: newer segments created
	// by flushes that ran concurrently with this compaction stay in place.
	kept := e.segments[len(segments):]
	stale := e.segments[:len(segments)]
	e.segments = append([]*segmentReader{reader}, kept...)
	e.stateMu.Unlock()

	for _, seg := range stale {
		path := seg.path
		if err := seg.close(); err != nil {
			e.log.Warnw("close stale segment after compaction", "path", path, "error", err)
		}
		if err := e.dm.Delete(path); err != nil {
			e.log.Warnw("delete stale segment after compaction", "path", path, "error", err)
		}
	}

	e.log.Infow("compacted segments", "merged", len(segments), "output", outPath, "entries", len(merged))
	return nil
}
