package lsm

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tesseradb/tessera/internal/config"
	"github.com/tesseradb/tessera/internal/diskmanager"
	"github.com/tesseradb/tessera/internal/errs"
	"go.uber.org/zap"
)

const (
	walFileName    = "wal.log"
	segmentSuffix  = ".seg"
	segmentsSubdir = "segments"
)

// Engine is the embedded ordered transactional byte-store described in
// SPEC_FULL.md §1. It stands in for the production LSM engine the
// transactional core assumes: a WAL-backed skiplist memtable flushed to
// sparse-indexed sorted segment files, single-tier compaction, and a
// per-key monotonic version counter used by internal/txn for optimistic
// commit validation.
type Engine struct {
	dm  diskmanager.DiskManager
	dir string
	cfg *config.Config
	log *zap.SugaredLogger

	// stateMu guards the live-state snapshot (memtable + segment list) so
	// cursor construction and point reads never observe a torn flush or
	// compaction. Commits take stateMu for writing only while applying;
	// validation happens under commitMu first.
	stateMu sync.RWMutex

	wal        *wal
	memtable   *skipList
	memBytes   int
	segments   []*segmentReader // oldest first
	segCounter atomic.Uint64

	// commitMu serializes optimistic-commit validation and application, and
	// guards versions/commitIDCounter. It is a coarser lock than a real
	// engine would use (RocksDB validates per-key), but for this stand-in
	// it is sufficient: contention only matters under concurrent writers,
	// and both maps are cheap to touch.
	commitMu        sync.Mutex
	versions        map[string]uint64
	commitIDCounter uint64
}

// Open opens (or creates) the engine's on-disk directory, replaying its WAL
// into a fresh memtable and loading any existing segment files.
func Open(dm diskmanager.DiskManager, dir string, cfg *config.Config, log *zap.SugaredLogger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if err := dm.MkdirAll(dir); err != nil {
		return nil, errs.Wrap(err, "lsm: create data dir")
	}
	if err := dm.MkdirAll(filepath.Join(dir, segmentsSubdir)); err != nil {
		return nil, errs.Wrap(err, "lsm: create segments dir")
	}

	e := &Engine{
		dm:       dm,
		dir:      dir,
		cfg:      cfg,
		log:      log,
		memtable: newSkipList(time.Now().UnixNano()),
		versions: make(map[string]uint64),
	}

	w, err := openWAL(dm, filepath.Join(dir, walFileName))
	if err != nil {
		return nil, err
	}
	e.wal = w

	entries, err := w.replay()
	if err != nil {
		return nil, errs.Wrap(err, "lsm: replay wal")
	}
	for _, entry := range entries {
		e.applyToMemtable(entry)
	}

	if err := e.loadSegments(); err != nil {
		return nil, err
	}
	log.Infow("lsm engine opened", "dir", dir, "replayed", len(entries), "segments", len(e.segments))
	return e, nil
}

func (e *Engine) loadSegments() error {
	segDir := filepath.Join(e.dir, segmentsSubdir)
	files, err := e.dm.List(segDir, segmentSuffix)
	if err != nil {
		return errs.Wrap(err, "lsm: list segments")
	}
	sort.Strings(files)

	var maxNum uint64
	for _, name := range files {
		r, err := openSegmentReader(e.dm, filepath.Join(segDir, name))
		if err != nil {
			return err
		}
		e.segments = append(e.segments, r)
		if n, ok := segmentNumber(name); ok && n > maxNum {
			maxNum = n
		}
	}
	e.segCounter.Store(maxNum)
	return nil
}

func segmentNumber(name string) (uint64, bool) {
	base := strings.TrimSuffix(filepath.Base(name), segmentSuffix)
	n, err := strconv.ParseUint(base, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (e *Engine) applyToMemtable(entry Entry) {
	e.memtable.put(string(entry.Key), entry)
	e.memBytes += len(entry.Key) + len(entry.Value) + entryPrefixSize
}

// Get returns the most recent live entry for key across the memtable and
// every segment file, newest source first. Tombstones are reported as
// not-found.
func (e *Engine) Get(key []byte) (Entry, bool, error) {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.getLocked(key)
}

func (e *Engine) getLocked(key []byte) (Entry, bool, error) {
	if entry, ok := e.memtable.get(string(key)); ok {
		if entry.Type == DeleteEntry {
			return Entry{}, false, nil
		}
		return entry, true, nil
	}
	for i := len(e.segments) - 1; i >= 0; i-- {
		entry, ok, err := e.segments[i].lookup(key)
		if err != nil {
			return Entry{}, false, err
		}
		if ok {
			if entry.Type == DeleteEntry {
				return Entry{}, false, nil
			}
			return entry, true, nil
		}
	}
	return Entry{}, false, nil
}

// CurrentVersion returns the monotonic version stamped on key by the most
// recent write that touched it. Never-written keys are version 0.
func (e *Engine) CurrentVersion(key []byte) uint64 {
	e.commitMu.Lock()
	defer e.commitMu.Unlock()
	return e.versions[string(key)]
}

// Scan returns every live entry (memtable and segments merged, tombstones
// dropped) whose key is >= prefix, in ascending key order. The result is a
// point-in-time snapshot taken under a single read lock.
func (e *Engine) Scan(prefix []byte) ([]Entry, error) {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	runs := make([][]Entry, 0, len(e.segments)+1)
	for _, seg := range e.segments {
		all, err := seg.allEntries()
		if err != nil {
			return nil, err
		}
		runs = append(runs, filterFromPrefix(all, prefix))
	}
	runs = append(runs, filterFromPrefix(e.memtable.seekEntries(prefix), prefix))

	merged := mergeRuns(runs)
	return dropTombstones(merged), nil
}

func filterFromPrefix(entries []Entry, prefix []byte) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if compareKeys(e.Key, prefix) >= 0 {
			out = append(out, e)
		}
	}
	return out
}

// CommitWriteSet is the sole mutation entry point. readVersions holds the
// engine version observed for every key the transaction touched (via get or
// set/delete) at first touch; writes holds the transaction's buffered
// key/value or delete operations. Validation and application happen
// atomically under commitMu: if any key actually written has a current
// version different from what the transaction observed, nothing is applied
// and errs.CommitRetry is returned. See SPEC_FULL.md §4.2 for the rationale.
func (e *Engine) CommitWriteSet(readVersions map[string]uint64, writes []Entry) (uint64, error) {
	if len(writes) == 0 {
		e.commitMu.Lock()
		e.commitIDCounter++
		id := e.commitIDCounter
		e.commitMu.Unlock()
		return id, nil
	}

	e.commitMu.Lock()
	for _, w := range writes {
		k := string(w.Key)
		if seen, ok := readVersions[k]; ok && seen != e.versions[k] {
			e.commitMu.Unlock()
			return 0, errs.CommitRetry
		}
	}

	e.stateMu.Lock()
	for _, w := range writes {
		if err := e.wal.append(w); err != nil {
			e.stateMu.Unlock()
			e.commitMu.Unlock()
			return 0, errs.Wrap(err, "lsm: append wal")
		}
		e.applyToMemtable(w)
		e.versions[string(w.Key)]++
	}
	e.commitIDCounter++
	id := e.commitIDCounter
	e.stateMu.Unlock()
	e.commitMu.Unlock()

	if e.memBytes > e.cfg.MaxMemtableSize {
		if err := e.flush(); err != nil {
			e.log.Warnw("flush after commit failed", "error", err)
		}
	}
	return id, nil
}

// flush writes the current memtable to a new segment file and starts a
// fresh memtable, truncating the WAL since it now only needs to cover
// unflushed writes.
func (e *Engine) flush() error {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	entries := e.memtable.entries()
	if len(entries) == 0 {
		return nil
	}

	path := filepath.Join(e.dir, segmentsSubdir, fmt.Sprintf("%016d%s", e.segCounter.Add(1), segmentSuffix))
	w, err := newSegmentWriter(e.dm, path, e.cfg.IndexInterval)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := w.put(entry); err != nil {
			return err
		}
	}
	if err := w.finish(); err != nil {
		return err
	}
	reader, err := openSegmentReader(e.dm, path)
	if err != nil {
		return err
	}

	e.segments = append(e.segments, reader)
	e.memtable = newSkipList(time.Now().UnixNano())
	e.memBytes = 0
	if err := e.wal.truncate(); err != nil {
		return err
	}

	e.log.Infow("flushed memtable", "segment", path, "entries", len(entries))
	if len(e.segments) > e.cfg.MaxSegmentsPerRun {
		go func() {
			if err := e.compact(); err != nil {
				e.log.Warnw("background compaction failed", "error", err)
			}
		}()
	}
	return nil
}

// Close syncs and closes the WAL and every open segment file.
func (e *Engine) Close() error {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	var firstErr error
	if err := e.wal.close(); err != nil && firstErr == nil {
		firstErr = err
	}
	for _, seg := range e.segments {
		if err := seg.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// BackedUpFile names one file a Backup call copied, alongside its size in
// bytes as observed at copy time.
type BackedUpFile struct {
	Name string
	Size int64
}

// Backup copies the WAL and every current segment file into destDir,
// creating it if needed. The read lock is held from file enumeration to the
// end of the last copy, so the copied set is a consistent point-in-time
// snapshot: commits, flushes and compaction's segment swap wait until the
// backup finishes, while readers proceed.
func (e *Engine) Backup(destDir string) ([]BackedUpFile, error) {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	sources := make([]string, 0, len(e.segments)+1)
	sources = append(sources, filepath.Join(e.dir, walFileName))
	for _, seg := range e.segments {
		sources = append(sources, seg.path)
	}

	if err := e.dm.MkdirAll(destDir); err != nil {
		return nil, errs.Wrap(err, "lsm: create backup dir")
	}

	files := make([]BackedUpFile, 0, len(sources))
	for _, src := range sources {
		dst := filepath.Join(destDir, filepath.Base(src))
		size, err := diskmanager.CopyFile(e.dm, src, dst)
		if err != nil {
			return nil, errs.Wrapf(err, "lsm: backup copy %s", src)
		}
		files = append(files, BackedUpFile{Name: filepath.Base(dst), Size: size})
	}
	return files, nil
}
