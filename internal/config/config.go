// Package config holds the tunables recognized by the transactional core,
// following the same struct-with-defaults shape the teacher storage engine
// used for its own tuning knobs.
package config

import (
	"time"

	"github.com/BurntSushi/toml"
)

const (
	defaultStorageEngine     = "rocks"
	defaultDBPath            = "./db"
	defaultRocksBlockCache   = 512
	defaultMaxMemtableSize   = 32 * 1024 * 1024
	defaultMaxSegmentsPerRun = 4
	defaultIndexInterval     = 16
	defaultWALFlushInterval  = 10 * time.Millisecond
)

// Config holds every tunable the transactional core recognizes. Only
// StorageEngine, DBPath and RocksBlockCacheMB are named in the external
// configuration contract (spec §6); the rest tune the internal LSM stand-in
// and are not part of that contract.
type Config struct {
	// StorageEngine selects the backend. Only "rocks" is meaningful in this
	// core; the name is kept for wire/config compatibility even though the
	// concrete engine behind it is the in-repo LSM stand-in, not RocksDB.
	StorageEngine string `toml:"storageEngine"`
	// DBPath is the on-disk directory holding one subdirectory per KVStore.
	DBPath string `toml:"dbPath"`
	// RocksBlockCacheMB sizes the shared block cache. The in-repo engine
	// does not use it for caching (it has no block cache to size) but
	// carries the field so a future real-engine swap needs no config
	// migration.
	RocksBlockCacheMB int `toml:"rocksBlockCacheMB"`

	// MaxMemtableSize is the memtable size, in bytes, that triggers a flush
	// to a segment file.
	MaxMemtableSize int
	// MaxSegmentsPerRun is the number of live segment files that triggers
	// a compaction pass.
	MaxSegmentsPerRun int
	// IndexInterval controls how densely the segment file's sparse index
	// samples keys.
	IndexInterval int
	// WALFlushInterval is carried but not read by the engine: the WAL syncs
	// on every append, and there is no batched flushing for it to bound.
	WALFlushInterval time.Duration
}

// DefaultConfig returns a Config populated with default values.
func DefaultConfig() *Config {
	return &Config{
		StorageEngine:     defaultStorageEngine,
		DBPath:            defaultDBPath,
		RocksBlockCacheMB: defaultRocksBlockCache,
		MaxMemtableSize:   defaultMaxMemtableSize,
		MaxSegmentsPerRun: defaultMaxSegmentsPerRun,
		IndexInterval:     defaultIndexInterval,
		WALFlushInterval:  defaultWALFlushInterval,
	}
}

// FillDefaults sets any zero-value fields in c to their defaults.
func (c *Config) FillDefaults() {
	def := DefaultConfig()
	if c.StorageEngine == "" {
		c.StorageEngine = def.StorageEngine
	}
	if c.DBPath == "" {
		c.DBPath = def.DBPath
	}
	if c.RocksBlockCacheMB == 0 {
		c.RocksBlockCacheMB = def.RocksBlockCacheMB
	}
	if c.MaxMemtableSize == 0 {
		c.MaxMemtableSize = def.MaxMemtableSize
	}
	if c.MaxSegmentsPerRun == 0 {
		c.MaxSegmentsPerRun = def.MaxSegmentsPerRun
	}
	if c.IndexInterval == 0 {
		c.IndexInterval = def.IndexInterval
	}
	if c.WALFlushInterval == 0 {
		c.WALFlushInterval = def.WALFlushInterval
	}
}

// LoadTOML parses the three externally-recognized keys (and the internal
// tuning knobs, if present) out of a TOML file. Search paths, flag
// precedence and hot reload are command-layer policy and stay out of scope.
func LoadTOML(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.FillDefaults()
	return cfg, nil
}
