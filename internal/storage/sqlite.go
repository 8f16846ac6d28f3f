package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/niteru/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS images (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		key TEXT NOT NULL UNIQUE,
		schema_id TEXT NOT NULL,
		vector BLOB,
		source_ref TEXT,
		metadata TEXT,
		inserted_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_images_schema ON images(schema_id);
	CREATE INDEX IF NOT EXISTS idx_images_source_ref ON images(source_ref);
	`
	_, err := db.Exec(schema)
	return err
}

// Put upserts a record by key.
func (s *SQLiteStorage) Put(ctx context.Context, rec *models.ImageRecord) error {
	var metadataJSON sql.NullString
	if len(rec.Metadata) > 0 {
		b, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		metadataJSON = sql.NullString{String: string(b), Valid: true}
	}
	rec.InsertedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO images (key, schema_id, vector, source_ref, metadata, inserted_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   schema_id = excluded.schema_id,
		   vector = excluded.vector,
		   source_ref = excluded.source_ref,
		   metadata = excluded.metadata,
		   inserted_at = excluded.inserted_at`,
		rec.Key, rec.SchemaID, float32SliceToBytes(rec.Vector), rec.SourceRef, metadataJSON, rec.InsertedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to put record %s: %w", rec.Key, err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT seq FROM images WHERE key = ?`, rec.Key).Scan(&rec.Seq); err != nil {
		return fmt.Errorf("failed to read seq for %s: %w", rec.Key, err)
	}
	return nil
}

const selectColumns = `SELECT seq, key, schema_id, vector, source_ref, metadata, inserted_at FROM images`

// errCorruptRecord marks a row whose columns scanned but could not be decoded.
var errCorruptRecord = errors.New("corrupt record")

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.ImageRecord, error) {
	var (
		rec       models.ImageRecord
		vector    []byte
		sourceRef sql.NullString
		metadata  sql.NullString
	)
	if err := row.Scan(&rec.Seq, &rec.Key, &rec.SchemaID, &vector, &sourceRef, &metadata, &rec.InsertedAt); err != nil {
		return nil, err
	}
	rec.Vector = bytesToFloat32Slice(vector)
	rec.SourceRef = sourceRef.String
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &rec.Metadata); err != nil {
			// Key and Seq only, so validation counts the row as invalid.
			return &models.ImageRecord{Seq: rec.Seq, Key: rec.Key},
				fmt.Errorf("%w: metadata for %s: %v", errCorruptRecord, rec.Key, err)
		}
	}
	return &rec, nil
}

// Get returns the record with key.
func (s *SQLiteStorage) Get(ctx context.Context, key string) (*models.ImageRecord, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx, selectColumns+` WHERE key = ?`, key))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetAll returns every record in insertion order. Rows that cannot be decoded
// are returned with only the key set, so validation counts them as invalid.
func (s *SQLiteStorage) GetAll(ctx context.Context) ([]*models.ImageRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var out []*models.ImageRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil && !errors.Is(err, errCorruptRecord) {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Delete removes the record with key.
func (s *SQLiteStorage) Delete(ctx context.Context, key string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM images WHERE key = ?`, key)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return nil
}

// Clear removes every record.
func (s *SQLiteStorage) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM images`)
	return err
}

// Count returns the number of records.
func (s *SQLiteStorage) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM images`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
