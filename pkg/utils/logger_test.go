package utils

import (
	"path/filepath"
	"testing"
)

func TestNewLogger(t *testing.T) {
	t.Run("debug mode returns development logger", func(t *testing.T) {
		logger, err := NewLogger(true)
		if err != nil {
			t.Fatalf("NewLogger(true) error: %v", err)
		}
		if logger == nil {
			t.Fatal("NewLogger(true) returned nil logger")
		}
		_ = logger.Sync()
	})

	t.Run("production mode writes to file sink", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "niteru.log")
		logger, err := NewLogger(false, path)
		if err != nil {
			t.Fatalf("NewLogger(false, %q) error: %v", path, err)
		}
		logger.Info("hello")
		_ = logger.Sync()
	})
}

func TestNamed_nilLogger(t *testing.T) {
	l := Named(nil, "indexer")
	if l == nil {
		t.Fatal("Named(nil) returned nil")
	}
	l.Info("discarded")
}
