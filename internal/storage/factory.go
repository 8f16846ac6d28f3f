package storage

import (
	"fmt"
	"path/filepath"
)

// Backend names a Storage implementation.
type Backend string

const (
	// BackendSQLite stores records in a single SQLite file (default).
	BackendSQLite Backend = "sqlite"
	// BackendBadger stores records in an embedded Badger directory.
	BackendBadger Backend = "badger"
	// BackendMemory keeps records in memory with an optional snapshot file.
	BackendMemory Backend = "memory"
)

// Options selects and locates a backend.
type Options struct {
	Backend      string
	DatabasePath string
	BadgerPath   string
	SnapshotPath string
}

// New creates the configured backend.
// Supported backends: "sqlite" (default), "badger", "memory".
func New(opts Options) (Storage, error) {
	switch Backend(opts.Backend) {
	case BackendSQLite, "":
		return NewSQLiteStorage(opts.DatabasePath)
	case BackendBadger:
		return NewBadgerStorage(BadgerOptions{Dir: opts.badgerDir()})
	case BackendMemory:
		return NewMemoryStorage(opts.SnapshotPath)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: sqlite, badger, memory)", opts.Backend)
	}
}

// Paths returns the on-disk locations the backend uses, for disk usage reporting.
func (o Options) Paths() []string {
	switch Backend(o.Backend) {
	case BackendBadger:
		return []string{o.badgerDir()}
	case BackendMemory:
		return []string{o.SnapshotPath}
	default:
		return []string{o.DatabasePath, o.DatabasePath + "-wal", o.DatabasePath + "-shm"}
	}
}

func (o Options) badgerDir() string {
	if o.BadgerPath != "" {
		return o.BadgerPath
	}
	return filepath.Join(filepath.Dir(o.DatabasePath), "badger")
}
