// Package archive exports and imports the image store as zstd-compressed JSON lines.
package archive

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/hyperjump/niteru/internal/models"
	"github.com/hyperjump/niteru/internal/search"
	"github.com/hyperjump/niteru/internal/storage"
)

const (
	formatName    = "niteru-archive"
	formatVersion = 1
	// maxLineSize bounds one JSON record; a V3 vector is well under 64KB as text.
	maxLineSize = 4 << 20
)

// ErrFormat is returned when the input is not an archive this package wrote.
var ErrFormat = errors.New("not a niteru archive")

// Header is the first line of an archive.
type Header struct {
	Format     string    `json:"format"`
	Version    int       `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Count      int       `json:"count"`
}

// ExportResult summarizes an export.
type ExportResult struct {
	Exported int `json:"exported"`
	// Skipped counts records that could not be encoded (e.g. non-finite values).
	Skipped int `json:"skipped"`
}

// ImportResult summarizes an import.
type ImportResult struct {
	Imported    int      `json:"imported"`
	Invalid     int      `json:"invalid"`
	InvalidKeys []string `json:"invalid_keys,omitempty"`
}

// Export writes every stored record to w in insertion order.
func Export(ctx context.Context, store storage.Storage, w io.Writer) (*ExportResult, error) {
	records, err := store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read store: %w", err)
	}
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create compressor: %w", err)
	}
	bw := bufio.NewWriter(enc)

	lines := make([][]byte, 0, len(records))
	result := &ExportResult{}
	for _, rec := range records {
		line, err := json.Marshal(rec)
		if err != nil {
			result.Skipped++
			continue
		}
		lines = append(lines, line)
	}
	header, _ := json.Marshal(Header{
		Format:     formatName,
		Version:    formatVersion,
		ExportedAt: time.Now().UTC(),
		Count:      len(lines),
	})
	for _, line := range append([][]byte{header}, lines...) {
		if _, err := bw.Write(append(line, '\n')); err != nil {
			_ = enc.Close()
			return nil, fmt.Errorf("failed to write archive: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("failed to flush archive: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish archive: %w", err)
	}
	result.Exported = len(lines)
	return result, nil
}

// ExportFile writes an archive to path, creating parent directories.
func ExportFile(ctx context.Context, store storage.Storage, path string) (*ExportResult, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}
	result, err := Export(ctx, store, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = cerr
	}
	return result, err
}

// Import reads an archive from r and indexes each record through engine,
// which validates vectors. Records rejected as invalid are counted and skipped.
func Import(ctx context.Context, engine *search.Engine, r io.Reader) (*ImportResult, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create decompressor: %w", err)
	}
	defer dec.Close()

	scanner := bufio.NewScanner(dec)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		return nil, fmt.Errorf("%w: empty input", ErrFormat)
	}
	var header Header
	if err := json.Unmarshal(scanner.Bytes(), &header); err != nil || header.Format != formatName {
		return nil, ErrFormat
	}
	if header.Version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrFormat, header.Version)
	}

	result := &ImportResult{}
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		var rec models.ImageRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return result, fmt.Errorf("decode record %d: %w", result.Imported+result.Invalid+1, err)
		}
		if err := engine.Index(ctx, &rec); err != nil {
			if errors.Is(err, search.ErrInvalidVector) || errors.Is(err, search.ErrUnknownSchema) {
				result.Invalid++
				result.InvalidKeys = append(result.InvalidKeys, rec.Key)
				continue
			}
			return result, err
		}
		result.Imported++
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("read archive: %w", err)
	}
	return result, nil
}

// ImportFile imports the archive at path.
func ImportFile(ctx context.Context, engine *search.Engine, path string) (*ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()
	return Import(ctx, engine, f)
}
