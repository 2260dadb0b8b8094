package lsm

import (
	"os"
	"sync"

	"github.com/tesseradb/tessera/internal/diskmanager"
	"github.com/tesseradb/tessera/internal/errs"
)

// wal is the write-ahead log guarding memtable durability, adapted from the
// teacher engine's internal/wal package.
type wal struct {
	mu sync.Mutex

	dm          diskmanager.DiskManager
	path        string
	file        diskmanager.FileHandle
	writeOffset int64
}

func openWAL(dm diskmanager.DiskManager, path string) (*wal, error) {
	file, err := dm.Open(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errs.Wrap(err, "lsm: open wal")
	}
	stat, err := file.Stat()
	if err != nil {
		return nil, errs.Wrap(err, "lsm: stat wal")
	}
	return &wal{dm: dm, path: path, file: file, writeOffset: stat.Size()}, nil
}

func (w *wal) append(e Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	next, err := writeEntryWithPrefix(w.file, w.writeOffset, e)
	if err != nil {
		return err
	}
	w.writeOffset = next
	return w.file.Sync()
}

// replay reads every logged entry from the start of the file.
func (w *wal) replay() ([]Entry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []Entry
	var offset int64
	for {
		e, next, err := readEntryWithPrefix(w.file, offset)
		if err != nil {
			break
		}
		out = append(out, e)
		offset = next
	}
	return out, nil
}

func (w *wal) truncate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.Close(); err != nil {
		return err
	}
	if err := w.dm.Delete(w.path); err != nil {
		return err
	}
	file, err := w.dm.Open(w.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	w.file = file
	w.writeOffset = 0
	return nil
}

func (w *wal) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.Sync(); err != nil {
		return err
	}
	return w.file.Close()
}
