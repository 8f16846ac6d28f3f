package storage

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hyperjump/niteru/internal/models"
)

// MemoryStorage keeps records in memory, optionally persisting them to a
// snapshot file on Close and loading it on open.
type MemoryStorage struct {
	path    string
	records []*models.ImageRecord
	index   map[string]int
	nextSeq int64
	mu      sync.RWMutex
}

// NewMemoryStorage returns an in-memory store. When snapshotPath is set, an
// existing snapshot is loaded and Close writes the records back.
func NewMemoryStorage(snapshotPath string) (*MemoryStorage, error) {
	m := &MemoryStorage{path: snapshotPath, index: make(map[string]int)}
	if err := m.Load(snapshotPath); err != nil {
		return nil, err
	}
	return m, nil
}

// Put upserts a record by key.
func (m *MemoryStorage) Put(ctx context.Context, rec *models.ImageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.InsertedAt = time.Now().UTC()
	if i, ok := m.index[rec.Key]; ok {
		rec.Seq = m.records[i].Seq
		m.records[i] = cloneRecord(rec)
		return nil
	}
	m.nextSeq++
	rec.Seq = m.nextSeq
	m.index[rec.Key] = len(m.records)
	m.records = append(m.records, cloneRecord(rec))
	return nil
}

// Get returns a copy of the record with key.
func (m *MemoryStorage) Get(ctx context.Context, key string) (*models.ImageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.index[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return cloneRecord(m.records[i]), nil
}

// GetAll returns copies of every record in insertion order.
func (m *MemoryStorage) GetAll(ctx context.Context) ([]*models.ImageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.ImageRecord, len(m.records))
	for i, r := range m.records {
		out[i] = cloneRecord(r)
	}
	return out, nil
}

// Delete removes the record with key by rebuilding the slice.
func (m *MemoryStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.index[key]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	kept := make([]*models.ImageRecord, 0, len(m.records)-1)
	for _, r := range m.records {
		if r.Key != key {
			kept = append(kept, r)
		}
	}
	m.setRecords(kept)
	return nil
}

// Clear removes every record.
func (m *MemoryStorage) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setRecords(nil)
	return nil
}

// Count returns the number of records.
func (m *MemoryStorage) Count(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.records)), nil
}

func (m *MemoryStorage) setRecords(records []*models.ImageRecord) {
	m.records = records
	m.index = make(map[string]int, len(records))
	for i, r := range records {
		m.index[r.Key] = i
		m.nextSeq = max(m.nextSeq, r.Seq)
	}
}

// Save writes a snapshot to path. Directory is created if needed. Format:
// count (4), then per record: length (4) and the encoded record. The file is
// written next to path and renamed into place once it is closed.
func (m *MemoryStorage) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}
	if err := m.writeSnapshot(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close snapshot file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

func (m *MemoryStorage) writeSnapshot(f *os.File) error {
	w := bufio.NewWriter(f)
	if err := binary.Write(w, binary.LittleEndian, uint32(len(m.records))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for _, r := range m.records {
		data, err := encodeRecord(r)
		if err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(data))); err != nil {
			return fmt.Errorf("write record len: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush snapshot: %w", err)
	}
	return nil
}

// Load replaces the contents with the snapshot at path.
// If the file does not exist, no error is returned and the store is unchanged.
func (m *MemoryStorage) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open snapshot file: %w", err)
	}
	defer f.Close()
	var n uint32
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	records := make([]*models.ImageRecord, 0, n)
	for i := uint32(0); i < n; i++ {
		var size uint32
		if err := binary.Read(f, binary.LittleEndian, &size); err != nil {
			return fmt.Errorf("read record len: %w", err)
		}
		data := make([]byte, size)
		if _, err := io.ReadFull(f, data); err != nil {
			return fmt.Errorf("read record: %w", err)
		}
		rec, err := decodeRecord(data)
		if err != nil {
			return fmt.Errorf("decode record %d: %w", i, err)
		}
		records = append(records, rec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setRecords(records)
	return nil
}

// Close writes the snapshot when a path was configured.
func (m *MemoryStorage) Close() error {
	return m.Save(m.path)
}
