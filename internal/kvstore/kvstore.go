// Package kvstore implements the KVStore lifecycle and factory operations
// described in spec.md §3.5/§4.3: a lockable state machine wrapping one
// internal/lsm.Engine, transaction id allocation, the shared
// uncommitted-transactions set, and backup/restart/clear.
package kvstore

import (
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tesseradb/tessera/internal/config"
	"github.com/tesseradb/tessera/internal/diskmanager"
	"github.com/tesseradb/tessera/internal/errs"
	"github.com/tesseradb/tessera/internal/lsm"
	"github.com/tesseradb/tessera/internal/record"
	"github.com/tesseradb/tessera/internal/txn"
)

// State is the KVStore lifecycle state, modeled as an explicit value
// checked at every entry point rather than scattered booleans (spec.md §9
// "Lifecycle guard").
type State int

const (
	// Running accepts transactions, reads and writes.
	Running State = iota
	// Paused accepts only clear() and restart().
	Paused
	// Cleared is a Paused store whose on-disk state has been deleted.
	Cleared
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Cleared:
		return "cleared"
	default:
		return "unknown"
	}
}

const backupDirSuffix = "-backup"

// BackupInfo reports the files a completed backup() call captured.
type BackupInfo struct {
	FileList []lsm.BackedUpFile
}

// KVStore owns one internal/lsm.Engine and its transactional bookkeeping.
// Every field mutation goes through mu; the engine itself does its own
// finer-grained locking for reads/writes/commits.
type KVStore struct {
	dm  diskmanager.DiskManager
	cfg *config.Config
	log *zap.SugaredLogger

	dbPath  string
	storeID string
	dir     string // dbPath/storeID

	mu               sync.Mutex
	state            State
	engine           *lsm.Engine
	uncommitted      map[uint64]struct{}
	nextTxnID        uint64
	backupInProgress bool
}

// Open creates or attaches to the on-disk store at dbPath/storeID and
// starts it Running.
func Open(dm diskmanager.DiskManager, cfg *config.Config, log *zap.SugaredLogger, storeID string) (*KVStore, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if storeID == "" {
		storeID = uuid.NewString()
	}
	dir := filepath.Join(cfg.DBPath, storeID)

	engine, err := lsm.Open(dm, dir, cfg, log)
	if err != nil {
		return nil, err
	}

	return &KVStore{
		dm:          dm,
		cfg:         cfg,
		log:         log,
		dbPath:      cfg.DBPath,
		storeID:     storeID,
		dir:         dir,
		state:       Running,
		engine:      engine,
		uncommitted: make(map[uint64]struct{}),
	}, nil
}

// StoreID returns the identifier this store's on-disk directory is named
// after.
func (s *KVStore) StoreID() string { return s.storeID }

// State reports the store's current lifecycle state.
func (s *KVStore) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CreateTransaction opens a new optimistic transaction against the live
// engine. Fails outside Running.
func (s *KVStore) CreateTransaction() (*Transaction, error) {
	s.mu.Lock()
	if s.state != Running {
		s.mu.Unlock()
		return nil, errs.BadState
	}
	engine := s.engine
	s.nextTxnID++
	id := s.nextTxnID
	s.mu.Unlock()

	register := func(id uint64) {
		s.mu.Lock()
		s.uncommitted[id] = struct{}{}
		s.mu.Unlock()
	}
	deregister := func(id uint64) {
		s.mu.Lock()
		delete(s.uncommitted, id)
		s.mu.Unlock()
	}

	return &Transaction{Transaction: txn.New(id, engine, register, deregister)}, nil
}

// UncommittedTxns returns every currently-registered transaction id.
func (s *KVStore) UncommittedTxns() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uint64, 0, len(s.uncommitted))
	for id := range s.uncommitted {
		out = append(out, id)
	}
	return out
}

// GetKV, SetKV and DelKV are thin delegates over Transaction that also
// perform record-key encoding, per spec.md §4.3.
func (s *KVStore) GetKV(key record.Key, tx *Transaction) (record.Value, error) {
	raw, err := tx.Get(record.EncodeKey(key))
	if err != nil {
		return record.Value{}, err
	}
	return record.DecodeValue(raw)
}

func (s *KVStore) SetKV(key record.Key, value record.Value, tx *Transaction) error {
	return tx.Set(record.EncodeKey(key), record.EncodeValue(value))
}

func (s *KVStore) DelKV(key record.Key, tx *Transaction) error {
	return tx.Delete(record.EncodeKey(key))
}

// Stop transitions Running -> Paused, closing the engine. Fails if any
// transaction is still registered (spec.md §3.5): callers must drop their
// handles first. Also fails while a Backup is outstanding, so the engine
// can't be closed out from under Backup's captured reference.
func (s *KVStore) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Running {
		return errs.BadState
	}
	if len(s.uncommitted) > 0 {
		return errs.BadState
	}
	if s.backupInProgress {
		return errs.BadState
	}
	if err := s.engine.Close(); err != nil {
		return err
	}
	s.engine = nil
	s.state = Paused
	return nil
}

// Clear requires Paused and deletes the store's on-disk state.
func (s *KVStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Paused {
		return errs.BadState
	}
	if err := s.dm.RemoveAll(s.dir); err != nil {
		return err
	}
	s.state = Cleared
	return nil
}

// Restart transitions Paused/Cleared -> Running, reopening the engine. When
// reuseData is true it first repopulates the live directory from the most
// recent backup() (spec.md §3.5 "expects prior backup files to be
// present").
func (s *KVStore) Restart(reuseData bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Paused && s.state != Cleared {
		return errs.BadState
	}

	if reuseData {
		if err := s.restoreFromBackupLocked(); err != nil {
			return err
		}
	}

	engine, err := lsm.Open(s.dm, s.dir, s.cfg, s.log)
	if err != nil {
		return err
	}
	s.engine = engine
	s.state = Running
	return nil
}

// backupDir lives as a sibling of the live store directory, not underneath
// it: clear() deletes s.dir wholesale, and Scenario S3 (backup, stop,
// clear, restart(reuseData=true)) requires the backup to survive that.
func (s *KVStore) backupDir() string {
	return filepath.Join(s.dbPath, s.storeID+backupDirSuffix)
}

func (s *KVStore) restoreFromBackupLocked() error {
	backupDir := s.backupDir()
	names, err := s.dm.List(backupDir, "")
	if err != nil {
		return errs.Wrap(err, "kvstore: list backup files")
	}

	if err := s.dm.MkdirAll(filepath.Join(s.dir, "segments")); err != nil {
		return err
	}
	for _, name := range names {
		src := filepath.Join(backupDir, name)
		var dst string
		if name == "wal.log" {
			dst = filepath.Join(s.dir, name)
		} else {
			dst = filepath.Join(s.dir, "segments", name)
		}
		if _, err := diskmanager.CopyFile(s.dm, src, dst); err != nil {
			return errs.Wrapf(err, "kvstore: restore %s", name)
		}
	}
	return nil
}

// Backup requires Running and enforces at-most-one concurrent backup: a
// second call while the first is outstanding returns errs.BackupInProgress.
func (s *KVStore) Backup() (*BackupInfo, error) {
	s.mu.Lock()
	if s.state != Running {
		s.mu.Unlock()
		return nil, errs.BadState
	}
	if s.backupInProgress {
		s.mu.Unlock()
		return nil, errs.BackupInProgress
	}
	s.backupInProgress = true
	engine := s.engine
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.backupInProgress = false
		s.mu.Unlock()
	}()

	files, err := engine.Backup(s.backupDir())
	if err != nil {
		return nil, err
	}
	return &BackupInfo{FileList: files}, nil
}
