package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/hyperjump/niteru/internal/models"
)

var (
	badgerRecordPrefix = []byte("img:")
	badgerSeqKey       = []byte("meta:seq")
)

// BadgerStorage implements Storage on an embedded Badger key-value store.
// Insertion order comes from a Badger sequence.
type BadgerStorage struct {
	db  *badger.DB
	seq *badger.Sequence
}

// BadgerOptions configures NewBadgerStorage.
type BadgerOptions struct {
	Dir        string
	InMemory   bool
	SyncWrites bool
}

// NewBadgerStorage opens or creates a Badger database.
func NewBadgerStorage(opts BadgerOptions) (*BadgerStorage, error) {
	badgerOpts := badger.DefaultOptions(opts.Dir).WithLogger(nil)
	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	} else if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create badger directory: %w", err)
	}
	if opts.SyncWrites {
		badgerOpts = badgerOpts.WithSyncWrites(true)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	seq, err := db.GetSequence(badgerSeqKey, 100)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open sequence: %w", err)
	}
	return &BadgerStorage{db: db, seq: seq}, nil
}

func recordKey(key string) []byte {
	return append(append([]byte{}, badgerRecordPrefix...), key...)
}

// Put upserts a record by key, keeping the existing Seq on overwrite. A
// corrupt value under the key is replaced.
func (b *BadgerStorage) Put(ctx context.Context, rec *models.ImageRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(rec.Key))
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		var seq int64
		if err == nil {
			// An undecodable value is overwritten under a fresh seq.
			_ = item.Value(func(val []byte) error {
				if existing, decErr := decodeRecord(val); decErr == nil {
					seq = existing.Seq
				}
				return nil
			})
		}
		if seq == 0 {
			next, err := b.seq.Next()
			if err != nil {
				return fmt.Errorf("failed to allocate seq: %w", err)
			}
			seq = int64(next) + 1
		}
		rec.Seq = seq
		rec.InsertedAt = time.Now().UTC()
		data, err := encodeRecord(rec)
		if err != nil {
			return err
		}
		return txn.Set(recordKey(rec.Key), data)
	})
}

// Get returns the record with key.
func (b *BadgerStorage) Get(ctx context.Context, key string) (*models.ImageRecord, error) {
	var rec *models.ImageRecord
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			rec, err = decodeRecord(val)
			return err
		})
	})
	return rec, err
}

// GetAll returns every record ordered by Seq. Undecodable values are returned
// as records with only the key set, so validation counts them as invalid.
func (b *BadgerStorage) GetAll(ctx context.Context) ([]*models.ImageRecord, error) {
	var out []*models.ImageRecord
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = badgerRecordPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(badgerRecordPrefix); it.ValidForPrefix(badgerRecordPrefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			key := string(item.Key()[len(badgerRecordPrefix):])
			err := item.Value(func(val []byte) error {
				rec, err := decodeRecord(val)
				if err != nil {
					rec = &models.ImageRecord{Key: key}
				}
				out = append(out, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// Delete removes the record with key.
func (b *BadgerStorage) Delete(ctx context.Context, key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(recordKey(key)); errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		} else if err != nil {
			return err
		}
		return txn.Delete(recordKey(key))
	})
}

// Clear removes every record. The sequence keeps counting.
func (b *BadgerStorage) Clear(ctx context.Context) error {
	return b.db.DropPrefix(badgerRecordPrefix)
}

// Count returns the number of records.
func (b *BadgerStorage) Count(ctx context.Context) (int64, error) {
	var n int64
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = badgerRecordPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(badgerRecordPrefix); it.ValidForPrefix(badgerRecordPrefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Close releases the sequence and closes the database.
func (b *BadgerStorage) Close() error {
	var err error
	if b.seq != nil {
		err = b.seq.Release()
		b.seq = nil
	}
	if b.db != nil {
		if cerr := b.db.Close(); cerr != nil && err == nil {
			err = cerr
		}
		b.db = nil
	}
	return err
}
