package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu      sync.Mutex
	indexed []string
	removed []string
	failOn  string
}

func (h *recordingHandler) IndexFile(_ context.Context, path string, _ bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failOn != "" && strings.HasSuffix(path, h.failOn) {
		return errors.New("decode failed")
	}
	h.indexed = append(h.indexed, path)
	return nil
}

func (h *recordingHandler) DeleteFile(_ context.Context, path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removed = append(h.removed, path)
	return nil
}

func (h *recordingHandler) hasIndexed(suffix string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, p := range h.indexed {
		if strings.HasSuffix(p, suffix) {
			return true
		}
	}
	return false
}

func (h *recordingHandler) hasRemoved(suffix string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, p := range h.removed {
		if strings.HasSuffix(p, suffix) {
			return true
		}
	}
	return false
}

func startWatcher(t *testing.T, opts Options, h Handler) *Watcher {
	t.Helper()
	if opts.Debounce == 0 {
		opts.Debounce = 50 * time.Millisecond
	}
	w := NewWatcher(opts, h)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	t.Cleanup(func() {
		w.Stop()
		cancel()
	})
	return w
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func TestWatcher_AddRemoveDirectories(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, Options{Recursive: true}, &recordingHandler{})

	require.NoError(t, w.AddDirectory(dir, false))
	dirs := w.Directories()
	if len(dirs) != 1 || dirs[0] != filepath.Clean(dir) {
		t.Errorf("Directories() = %v", dirs)
	}
	// Adding twice is a no-op.
	require.NoError(t, w.AddDirectory(dir, false))
	assert.Len(t, w.Directories(), 1)

	require.NoError(t, w.RemoveDirectory(dir))
	assert.Empty(t, w.Directories())
}

func TestWatcher_AddDirectory_missingRoot(t *testing.T) {
	w := startWatcher(t, Options{}, &recordingHandler{})
	err := w.AddDirectory(filepath.Join(t.TempDir(), "missing"), false)
	assert.Error(t, err)
}

func TestWatcher_IndexesNewImagesOnly(t *testing.T) {
	dir := t.TempDir()
	h := &recordingHandler{}
	startWatcher(t, Options{Roots: []string{dir}, Recursive: true}, h)

	writeFile(t, filepath.Join(dir, "sub", "bag.png"), "png bytes")
	writeFile(t, filepath.Join(dir, "notes.txt"), "hello")

	assert.Eventually(t, func() bool { return h.hasIndexed("bag.png") }, 3*time.Second, 20*time.Millisecond)
	assert.False(t, h.hasIndexed("notes.txt"))
}

func TestWatcher_RemovesDeletedImages(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "old.jpg")
	writeFile(t, img, "jpeg bytes")
	h := &recordingHandler{}
	w := startWatcher(t, Options{Roots: []string{dir}}, h)

	require.NoError(t, os.Remove(img))
	assert.Eventually(t, func() bool { return h.hasRemoved("old.jpg") }, 3*time.Second, 20*time.Millisecond)
	assert.Eventually(t, func() bool { return w.Stats().Removed == 1 }, time.Second, 10*time.Millisecond)
}

func TestWatcher_SyncExistingFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.png"), "x")
	writeFile(t, filepath.Join(dir, "broken.png"), "x")
	writeFile(t, filepath.Join(dir, "ignore.xyz"), "x")
	writeFile(t, filepath.Join(dir, "nested", "deep.webp"), "x")

	h := &recordingHandler{failOn: "broken.png"}
	w := startWatcher(t, Options{Roots: []string{dir}, Extensions: []string{".png"}}, h)
	w.SyncExistingFiles()

	assert.True(t, h.hasIndexed("a.png"))
	assert.False(t, h.hasIndexed("ignore.xyz"))
	// Non-recursive: nested directories are not synced.
	assert.False(t, h.hasIndexed("deep.webp"))
	stats := w.Stats()
	assert.Equal(t, int64(1), stats.Indexed)
	assert.Equal(t, int64(1), stats.Failed)
}

func TestWatcher_HandleNewDirectory_recursiveSubfolders(t *testing.T) {
	dir := t.TempDir()
	h := &recordingHandler{}
	startWatcher(t, Options{Roots: []string{dir}, Recursive: true}, h)

	nested := filepath.Join(dir, "level1", "level2")
	require.NoError(t, os.MkdirAll(nested, 0755))
	writeFile(t, filepath.Join(nested, "deep.gif"), "gif")

	assert.Eventually(t, func() bool { return h.hasIndexed("deep.gif") }, 3*time.Second, 20*time.Millisecond)
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.png", []string{".png"}, true},
		{"/a/b.PNG", []string{"png"}, true},
		{"/a/b.jpg", []string{".png"}, false},
		{"/a/b.webp", nil, true},
		{"/a/b.txt", nil, false},
		{"/a/b", nil, false},
	}
	for _, tt := range tests {
		got := matchExtension(tt.path, tt.extensions)
		if got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
		}
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.png", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
	}
	for _, tt := range tests {
		got := inDir(tt.dir, tt.path)
		if got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}
