// Package fileid derives stable image keys from file paths.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
)

const prefix = "file:"

// Mode selects how a key is derived from a path.
type Mode string

const (
	// ModeFilename uses the base name, so a file moved between folders keeps its key.
	ModeFilename Mode = "filename"
	// ModePath uses the cleaned absolute path with forward slashes.
	ModePath Mode = "path"
	// ModeHash uses a sha256 of the cleaned path.
	ModeHash Mode = "hash"
)

// ParseMode parses a key mode; empty means ModeFilename.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeFilename:
		return ModeFilename, nil
	case ModePath, ModeHash:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown key mode %q (supported: filename, path, hash)", s)
	}
}

// Key returns the key for absolutePath under mode.
func Key(mode Mode, absolutePath string) string {
	switch mode {
	case ModePath:
		return filepath.ToSlash(filepath.Clean(absolutePath))
	case ModeHash:
		return FileDocID(absolutePath)
	default:
		return filepath.Base(filepath.Clean(absolutePath))
	}
}

// FileDocID returns a stable ID for the given absolute path.
// Same path always yields the same ID.
func FileDocID(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	hash := sha256.Sum256([]byte(normalized))
	return prefix + hex.EncodeToString(hash[:])
}
