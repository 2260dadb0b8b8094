// Package diskmanager provides interfaces and implementations for managing
// disk-based file operations for the LSM engine (WAL and segment files).
package diskmanager

import (
	"os"
	"strings"
	"sync"
)

// FileHandle abstracts file operations with random access and syncing.
type FileHandle interface {
	ReadAt(b []byte, off int64) (int, error)
	WriteAt(b []byte, off int64) (int, error)
	Close() error
	Sync() error
	Stat() (os.FileInfo, error)
}

type fileHandle struct {
	file *os.File
}

// NewFileHandle wraps an *os.File into a FileHandle implementation.
func NewFileHandle(file *os.File) FileHandle { return &fileHandle{file: file} }

func (fh *fileHandle) ReadAt(b []byte, off int64) (int, error)  { return fh.file.ReadAt(b, off) }
func (fh *fileHandle) WriteAt(b []byte, off int64) (int, error) { return fh.file.WriteAt(b, off) }
func (fh *fileHandle) Close() error                             { return fh.file.Close() }
func (fh *fileHandle) Sync() error                              { return fh.file.Sync() }
func (fh *fileHandle) Stat() (os.FileInfo, error)               { return fh.file.Stat() }

// DiskManager defines the file operations the LSM engine needs, kept
// swappable for tests that want an in-memory double.
type DiskManager interface {
	Open(path string, flags int, perm os.FileMode) (FileHandle, error)
	Delete(path string) error
	List(dir string, filter string) ([]string, error)
	Close(path string) error
	MkdirAll(path string) error
	RemoveAll(path string) error
}

// diskManager caches open file handles by path. The LSM engine opens this
// once and shares it between the foreground commit/flush path and the
// background compaction goroutine (engine.go's compact() runs in its own
// goroutine), so fileHandles is a map read and written from more than one
// goroutine and needs its own lock — unlike a single-threaded CLI tool that
// only ever touches it from one goroutine at a time.
type diskManager struct {
	mu          sync.Mutex
	fileHandles map[string]FileHandle
}

// New creates a new DiskManager backed by the real filesystem.
func New() DiskManager {
	return &diskManager{fileHandles: make(map[string]FileHandle)}
}

func (dm *diskManager) Open(path string, flags int, perm os.FileMode) (FileHandle, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	// Callers such as the WAL, segment files and CopyFile close their handle
	// directly, leaving it in the cache; such a stale handle is replaced by
	// a freshly opened one.
	if handle, exists := dm.fileHandles[path]; exists {
		if _, err := handle.Stat(); err == nil {
			return handle, nil
		}
		delete(dm.fileHandles, path)
	}
	file, err := os.OpenFile(path, flags, perm)
	if err != nil {
		return nil, err
	}
	handle := NewFileHandle(file)
	dm.fileHandles[path] = handle
	return handle, nil
}

func (dm *diskManager) Delete(path string) error {
	dm.mu.Lock()
	if handle, exists := dm.fileHandles[path]; exists {
		_ = handle.Close()
		delete(dm.fileHandles, path)
	}
	dm.mu.Unlock()

	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (dm *diskManager) List(dir string, filter string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if filter == "" || strings.Contains(entry.Name(), filter) {
			files = append(files, entry.Name())
		}
	}
	return files, nil
}

func (dm *diskManager) Close(path string) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	handle, exists := dm.fileHandles[path]
	if !exists {
		return nil
	}
	err := handle.Close()
	if err != nil {
		return err
	}
	delete(dm.fileHandles, path)
	return nil
}

func (dm *diskManager) MkdirAll(path string) error {
	return os.MkdirAll(path, 0755)
}

// CopyFile copies src to dst through the given DiskManager, in fixed-size
// chunks, and returns the number of bytes copied. Shared by the LSM
// engine's Backup and the KVStore's restore-from-backup path so both go
// through the same file-handle bookkeeping.
func CopyFile(dm DiskManager, src, dst string) (int64, error) {
	in, err := dm.Open(src, os.O_RDONLY, 0)
	if err != nil {
		return 0, err
	}
	stat, err := in.Stat()
	if err != nil {
		return 0, err
	}

	out, err := dm.Open(dst, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return 0, err
	}

	const chunkSize = 1 << 20
	buf := make([]byte, chunkSize)
	var off int64
	for off < stat.Size() {
		n, rerr := in.ReadAt(buf, off)
		if n > 0 {
			if _, werr := out.WriteAt(buf[:n], off); werr != nil {
				return 0, werr
			}
			off += int64(n)
		}
		if rerr != nil {
			break
		}
	}
	if err := out.Sync(); err != nil {
		return 0, err
	}
	if err := out.Close(); err != nil {
		return 0, err
	}
	return off, nil
}

func (dm *diskManager) RemoveAll(path string) error {
	dm.mu.Lock()
	for p, handle := range dm.fileHandles {
		if strings.HasPrefix(p, path) {
			_ = handle.Close()
			delete(dm.fileHandles, p)
		}
	}
	dm.mu.Unlock()

	return os.RemoveAll(path)
}
