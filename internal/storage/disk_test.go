package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/niteru/internal/models"
)

func writeFile(t *testing.T, path string, n int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, make([]byte, n), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()
	snapshot := filepath.Join(dir, "images.snapshot")
	writeFile(t, snapshot, 7)
	badgerDir := filepath.Join(dir, "badger")
	writeFile(t, filepath.Join(badgerDir, "000001.vlog"), 10)
	writeFile(t, filepath.Join(badgerDir, "sub", "MANIFEST"), 4)

	tests := []struct {
		name  string
		paths []string
		want  int64
	}{
		{"file", []string{snapshot}, 7},
		{"nested directory", []string{badgerDir}, 14},
		{"file and directory", []string{snapshot, badgerDir}, 21},
		{"missing path", []string{filepath.Join(dir, "gone.db"), snapshot}, 7},
		{"empty path", []string{"", badgerDir}, 14},
		{"none", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DiskUsageBytes(tt.paths...)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("DiskUsageBytes(%v) = %d, want %d", tt.paths, got, tt.want)
			}
		})
	}
}

func TestOptionsPaths(t *testing.T) {
	dbPath := filepath.Join("data", "images.db")
	sqlite := Options{DatabasePath: dbPath}.Paths()
	if len(sqlite) != 3 || sqlite[0] != dbPath || sqlite[1] != dbPath+"-wal" {
		t.Errorf("sqlite paths = %v", sqlite)
	}
	badger := Options{Backend: "badger", DatabasePath: dbPath}.Paths()
	if len(badger) != 1 || badger[0] != filepath.Join("data", "badger") {
		t.Errorf("badger paths = %v, want default next to the database", badger)
	}
	mem := Options{Backend: "memory", SnapshotPath: "snap"}.Paths()
	if len(mem) != 1 || mem[0] != "snap" {
		t.Errorf("memory paths = %v", mem)
	}
}

func TestDiskUsageBytes_sqliteStore(t *testing.T) {
	opts := Options{Backend: "sqlite", DatabasePath: filepath.Join(t.TempDir(), "db", "images.db")}
	store, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Put(context.Background(), &models.ImageRecord{Key: "a.png", SchemaID: "v1", Vector: make([]float32, 544)}); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}
	got, err := DiskUsageBytes(opts.Paths()...)
	if err != nil {
		t.Fatal(err)
	}
	if got <= 0 {
		t.Errorf("expected a non-empty database, got %d bytes", got)
	}
}
