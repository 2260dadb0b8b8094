package lsm

import (
	"encoding/binary"
	"os"
	"sort"

	"github.com/tesseradb/tessera/internal/diskmanager"
	"github.com/tesseradb/tessera/internal/errs"
)

// footerSize is [indexOffset uint64][indexSize uint64].
const footerSize = 16

// segmentIndexEntry is one sample in a segment's sparse index.
type segmentIndexEntry struct {
	Key    []byte
	Offset int64
}

// segmentWriter writes a sorted run of entries to a new segment file,
// adapted from the teacher engine's internal/sstable writer.
type segmentWriter struct {
	dm            diskmanager.DiskManager
	file          diskmanager.FileHandle
	index         []segmentIndexEntry
	offset        int64
	indexInterval int
	written       int
}

func newSegmentWriter(dm diskmanager.DiskManager, path string, indexInterval int) (*segmentWriter, error) {
	file, err := dm.Open(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, errs.Wrap(err, "lsm: open segment for write")
	}
	if indexInterval <= 0 {
		indexInterval = 1
	}
	return &segmentWriter{dm: dm, file: file, indexInterval: indexInterval}, nil
}

func (w *segmentWriter) put(e Entry) error {
	entryOffset := w.offset
	next, err := writeEntryWithPrefix(w.file, w.offset, e)
	if err != nil {
		return err
	}
	w.offset = next
	if w.written%w.indexInterval == 0 {
		w.index = append(w.index, segmentIndexEntry{Key: e.Key, Offset: entryOffset})
	}
	w.written++
	return nil
}

func (w *segmentWriter) finish() error {
	indexOffset := w.offset
	for _, ie := range w.index {
		next, err := writeEntryWithPrefix(w.file, w.offset, Entry{Key: ie.Key})
		if err != nil {
			return err
		}
		w.offset = next
		offBuf := make([]byte, 8)
		binary.BigEndian.PutUint64(offBuf, uint64(ie.Offset))
		n, err := w.file.WriteAt(offBuf, w.offset)
		if err != nil {
			return errs.Wrap(err, "lsm: write index offset")
		}
		w.offset += int64(n)
	}
	indexSize := w.offset - indexOffset

	footer := make([]byte, footerSize)
	binary.BigEndian.PutUint64(footer[:8], uint64(indexOffset))
	binary.BigEndian.PutUint64(footer[8:], uint64(indexSize))
	if _, err := w.file.WriteAt(footer, w.offset); err != nil {
		return errs.Wrap(err, "lsm: write footer")
	}
	if err := w.file.Sync(); err != nil {
		return err
	}
	return w.file.Close()
}

// segmentReader serves point lookups and full scans against a finished
// segment file via its sparse index.
type segmentReader struct {
	path    string
	file    diskmanager.FileHandle
	index   []segmentIndexEntry
	dataEnd int64
}

func openSegmentReader(dm diskmanager.DiskManager, path string) (*segmentReader, error) {
	file, err := dm.Open(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, errs.Wrap(err, "lsm: open segment for read")
	}
	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}
	if stat.Size() < footerSize {
		return nil, errs.Wrapf(errs.Internal, "segment %s smaller than footer", path)
	}

	footer := make([]byte, footerSize)
	if _, err := file.ReadAt(footer, stat.Size()-footerSize); err != nil {
		return nil, errs.Wrap(err, "lsm: read footer")
	}
	indexOffset := int64(binary.BigEndian.Uint64(footer[:8]))
	indexSize := int64(binary.BigEndian.Uint64(footer[8:]))

	var index []segmentIndexEntry
	offset := indexOffset
	end := indexOffset + indexSize
	for offset < end {
		e, next, err := readEntryWithPrefix(file, offset)
		if err != nil {
			return nil, errs.Wrap(err, "lsm: read index entry")
		}
		offBuf := make([]byte, 8)
		if _, err := file.ReadAt(offBuf, next); err != nil {
			return nil, errs.Wrap(err, "lsm: read index data offset")
		}
		index = append(index, segmentIndexEntry{Key: e.Key, Offset: int64(binary.BigEndian.Uint64(offBuf))})
		offset = next + 8
	}

	return &segmentReader{path: path, file: file, index: index, dataEnd: indexOffset}, nil
}

func (r *segmentReader) close() error { return r.file.Close() }

// lookup finds the most recent entry for key, if the segment holds one.
func (r *segmentReader) lookup(key []byte) (Entry, bool, error) {
	if len(r.index) == 0 {
		return Entry{}, false, nil
	}

	// key can only appear at or after the last sample <= key: sort.Search
	// finds the first sample > key, and the record we want sits behind it,
	// in the block that sample's predecessor opens.
	pos := sort.Search(len(r.index), func(i int) bool {
		return compareKeys(r.index[i].Key, key) > 0
	})
	if pos == 0 {
		return Entry{}, false, nil
	}

	offset := r.index[pos-1].Offset
	for offset < r.dataEnd {
		e, next, err := readEntryWithPrefix(r.file, offset)
		if err != nil {
			return Entry{}, false, nil
		}
		cmp := compareKeys(e.Key, key)
		if cmp == 0 {
			return e, true, nil
		}
		if cmp > 0 {
			return Entry{}, false, nil
		}
		offset = next
	}
	return Entry{}, false, nil
}

// allEntries performs a full ordered scan of the segment's data section by
// walking forward from the first index sample to the end of the data
// section (immediately before the index section).
func (r *segmentReader) allEntries() ([]Entry, error) {
	if len(r.index) == 0 {
		return nil, nil
	}
	var out []Entry
	offset := r.index[0].Offset
	for offset < r.dataEnd {
		e, next, err := readEntryWithPrefix(r.file, offset)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
		offset = next
	}
	return out, nil
}
