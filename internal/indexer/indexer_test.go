package indexer

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hyperjump/niteru/internal/descriptor"
	"github.com/hyperjump/niteru/internal/fileid"
	"github.com/hyperjump/niteru/internal/models"
	"github.com/hyperjump/niteru/internal/search"
	"github.com/hyperjump/niteru/internal/storage"
)

func TestExtensionAllowed(t *testing.T) {
	tests := []struct {
		ext     string
		allowed []string
		want    bool
	}{
		{".png", []string{".png", ".jpg"}, true},
		{".PNG", []string{".png"}, true},
		{".jpg", []string{"png", "jpg"}, true},
		{".gif", []string{".png"}, false},
		{"", []string{".png"}, false},
	}
	for _, tt := range tests {
		got := extensionAllowed(tt.ext, tt.allowed)
		if got != tt.want {
			t.Errorf("extensionAllowed(%q, %v) = %v, want %v", tt.ext, tt.allowed, got, tt.want)
		}
	}
}

func testIndexer(t *testing.T, dir string, opts ...IndexerOption) (*Indexer, storage.Storage) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	engine := search.NewEngine(store, descriptor.NewAssembler(descriptor.V1), nil)
	return NewIndexer(engine, opts...), store
}

func pngBytes(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			if (x+y)%8 < 4 {
				img.Set(x, y, c)
			} else {
				img.Set(x, y, color.White)
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func writePNG(t *testing.T, path string, c color.Color) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, pngBytes(t, c), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestIndexFile_createSkipAndUpdate(t *testing.T) {
	dir := t.TempDir()
	idx, store := testIndexer(t, dir)
	ctx := context.Background()

	fPath := filepath.Join(dir, "images", "tote.png")
	writePNG(t, fPath, color.Black)
	if err := idx.IndexFile(ctx, fPath, false); err != nil {
		t.Fatal(err)
	}
	rec, err := store.Get(ctx, "tote.png")
	if err != nil {
		t.Fatal(err)
	}
	if rec.SchemaID != "v1" || len(rec.Vector) != descriptor.V1.TotalLength {
		t.Errorf("unexpected record: schema=%q len=%d", rec.SchemaID, len(rec.Vector))
	}
	if rec.SourceRef != fPath {
		t.Errorf("source ref = %q, want %q", rec.SourceRef, fPath)
	}
	if rec.Metadata[models.MetaFormat] != "png" {
		t.Errorf("format = %v", rec.Metadata[models.MetaFormat])
	}
	if rec.Metadata[models.MetaWidth] != float64(40) {
		t.Errorf("width = %v", rec.Metadata[models.MetaWidth])
	}

	stats := idx.IndexImages(ctx, []models.ImageInput{{Path: fPath}})
	if stats.Skipped != 1 || stats.Success != 0 {
		t.Errorf("unchanged file: %+v", stats)
	}

	writePNG(t, fPath, color.RGBA{R: 200, A: 255})
	later := time.Now().Add(time.Minute)
	if err := os.Chtimes(fPath, later, later); err != nil {
		t.Fatal(err)
	}
	stats = idx.IndexImages(ctx, []models.ImageInput{{Path: fPath}})
	if stats.Success != 1 {
		t.Errorf("changed file: %+v", stats)
	}
	updated, err := store.Get(ctx, "tote.png")
	if err != nil {
		t.Fatal(err)
	}
	if updated.Seq != rec.Seq {
		t.Errorf("re-index moved record: seq %d -> %d", rec.Seq, updated.Seq)
	}

	stats = idx.IndexImages(ctx, []models.ImageInput{{Path: fPath, Force: true}})
	if stats.Success != 1 || stats.Skipped != 0 {
		t.Errorf("forced: %+v", stats)
	}
}

func TestIndexPaths_failureDoesNotAbortBatch(t *testing.T) {
	dir := t.TempDir()
	core, logs := observer.New(zap.WarnLevel)
	idx, store := testIndexer(t, dir, WithLogger(zap.New(core)))
	ctx := context.Background()

	imgDir := filepath.Join(dir, "images")
	writePNG(t, filepath.Join(imgDir, "a.png"), color.Black)
	writePNG(t, filepath.Join(imgDir, "nested", "c.png"), color.Gray{Y: 90})
	if err := os.WriteFile(filepath.Join(imgDir, "b.png"), []byte("not a png"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(imgDir, "notes.txt"), []byte("ignored"), 0600); err != nil {
		t.Fatal(err)
	}

	stats, err := idx.IndexPaths(ctx, []string{imgDir}, false)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Success != 2 || stats.Failed != 1 {
		t.Errorf("stats = %+v, want 2 success, 1 failed", stats)
	}
	if stats.RunID == "" {
		t.Error("RunID should be set")
	}
	if len(stats.Failures) != 1 || !strings.HasSuffix(stats.Failures[0].Source, "b.png") {
		t.Errorf("failures = %+v", stats.Failures)
	}
	if logs.FilterMessage("skipping image").Len() != 1 {
		t.Errorf("expected one warning, got %d", logs.FilterMessage("skipping image").Len())
	}
	n, err := store.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("Count = %d, want 2", n)
	}
}

func TestIndexImages_cancelledBetweenItems(t *testing.T) {
	dir := t.TempDir()
	idx, _ := testIndexer(t, dir)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats := idx.IndexImages(ctx, []models.ImageInput{
		{Key: "a.png", Data: pngBytes(t, color.Black)},
		{Key: "b.png", Data: pngBytes(t, color.Black)},
	})
	if !stats.Cancelled {
		t.Error("expected Cancelled")
	}
	if stats.Success != 0 {
		t.Errorf("Success = %d, want 0", stats.Success)
	}
}

func TestIndexImages_inMemoryData(t *testing.T) {
	dir := t.TempDir()
	idx, store := testIndexer(t, dir, WithRateLimit(1000))
	ctx := context.Background()

	stats := idx.IndexImages(ctx, []models.ImageInput{
		{Key: "upload.png", Data: pngBytes(t, color.Black), SourceRef: "upload"},
		{Data: pngBytes(t, color.Black)},
		{Key: "junk.png", Data: []byte("junk")},
	})
	if stats.Success != 1 || stats.Failed != 2 {
		t.Errorf("stats = %+v", stats)
	}
	rec, err := store.Get(ctx, "upload.png")
	if err != nil {
		t.Fatal(err)
	}
	if rec.SourceRef != "upload" {
		t.Errorf("source ref = %q", rec.SourceRef)
	}
}

func TestReindex_countsMissingSources(t *testing.T) {
	dir := t.TempDir()
	idx, store := testIndexer(t, dir)
	ctx := context.Background()

	kept := filepath.Join(dir, "kept.png")
	gone := filepath.Join(dir, "gone.png")
	writePNG(t, kept, color.Black)
	writePNG(t, gone, color.Black)
	if _, err := idx.IndexPaths(ctx, []string{kept, gone}, false); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(gone); err != nil {
		t.Fatal(err)
	}

	stats, err := idx.Reindex(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Success != 1 || stats.Failed != 1 {
		t.Errorf("stats = %+v, want 1 success, 1 failed", stats)
	}
	if _, err := store.Get(ctx, "gone.png"); err != nil {
		t.Errorf("record with missing source should stay: %v", err)
	}
}

func TestDeleteFile(t *testing.T) {
	dir := t.TempDir()
	idx, store := testIndexer(t, dir, WithKeyMode(fileid.ModePath))
	ctx := context.Background()

	fPath := filepath.Join(dir, "logo.png")
	writePNG(t, fPath, color.Black)
	if err := idx.IndexFile(ctx, fPath, false); err != nil {
		t.Fatal(err)
	}
	key, err := idx.KeyFor(fPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ctx, key); err != nil {
		t.Fatalf("record under path key: %v", err)
	}
	if err := idx.DeleteFile(ctx, fPath); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ctx, key); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("after delete: err = %v", err)
	}
	if err := idx.DeleteFile(ctx, fPath); err != nil {
		t.Errorf("deleting unknown file should be a no-op: %v", err)
	}
}

func TestAllowed(t *testing.T) {
	idx := NewIndexer(nil)
	if !idx.Allowed("a.webp") || idx.Allowed("a.txt") {
		t.Error("default extensions should follow the supported decoders")
	}
	idx = NewIndexer(nil, WithExtensions([]string{".png"}))
	if idx.Allowed("a.jpg") || !idx.Allowed("a.PNG") {
		t.Error("configured extensions should restrict the walk")
	}
}
