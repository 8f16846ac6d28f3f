// Package models defines core data structures for indexed images, queries, and search results.
package models

import "time"

// ImageRecord is one persisted descriptor.
type ImageRecord struct {
	// Seq is the insertion position assigned by the store; it survives overwrites.
	Seq        int64                  `json:"seq"`
	Key        string                 `json:"key"`
	SchemaID   string                 `json:"schema"`
	Vector     []float32              `json:"vector"`
	SourceRef  string                 `json:"source_ref,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	InsertedAt time.Time              `json:"inserted_at"`
}

// ImageInput is one image handed to the indexer, either as a file path or raw bytes.
type ImageInput struct {
	Key       string                 `json:"key,omitempty"`
	Path      string                 `json:"path,omitempty"`
	Data      []byte                 `json:"-"`
	SourceRef string                 `json:"source_ref,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	// Force re-extracts a file even when its mtime and size are unchanged.
	Force bool `json:"force,omitempty"`
}

// Metadata keys written by the indexer.
const (
	MetaWidth       = "width"
	MetaHeight      = "height"
	MetaFormat      = "format"
	MetaSourceMtime = "source_mtime"
	MetaSourceSize  = "source_size"
	MetaFallback    = "embedding_fallback"
)
