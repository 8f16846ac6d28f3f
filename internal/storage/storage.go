// Package storage defines the persistence interface for image descriptor records.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/niteru/internal/models"
)

// ErrNotFound is returned when no record has the requested key.
var ErrNotFound = errors.New("record not found")

// Storage persists descriptor records keyed by image key. Implementations do
// not validate vectors; corrupt records are stored and returned as-is so a
// validation pass can report them.
type Storage interface {
	// Put inserts or overwrites the record with rec.Key. An overwrite keeps the
	// original Seq. Put sets rec.Seq and rec.InsertedAt.
	Put(ctx context.Context, rec *models.ImageRecord) error
	Get(ctx context.Context, key string) (*models.ImageRecord, error)
	// GetAll returns every record ordered by Seq.
	GetAll(ctx context.Context) ([]*models.ImageRecord, error)
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int64, error)
	Close() error
}
