package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/niteru/internal/config"
	"github.com/hyperjump/niteru/internal/descriptor"
	"github.com/hyperjump/niteru/internal/indexer"
	"github.com/hyperjump/niteru/internal/keyword"
	"github.com/hyperjump/niteru/internal/models"
	"github.com/hyperjump/niteru/internal/search"
	"github.com/hyperjump/niteru/internal/storage"
)

type mockWatchService struct {
	dirs []string
}

func (m *mockWatchService) Directories() []string {
	return append([]string(nil), m.dirs...)
}

func (m *mockWatchService) AddDirectory(path string, _ bool) error {
	for _, d := range m.dirs {
		if d == path {
			return nil
		}
	}
	m.dirs = append(m.dirs, path)
	return nil
}

func (m *mockWatchService) RemoveDirectory(path string) error {
	for i, d := range m.dirs {
		if d == path {
			m.dirs = append(m.dirs[:i], m.dirs[i+1:]...)
			return nil
		}
	}
	return nil
}

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "db.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	kw, err := keyword.NewBleveIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = kw.Close() })

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.DatabasePath = filepath.Join(dir, "db.sqlite")
	cfg.Storage.BleveIndexPath = ""

	engine := search.NewEngine(store, descriptor.NewAssembler(descriptor.V1), nil, search.WithKeywordIndex(kw))
	idx := indexer.NewIndexer(engine)
	return NewServer(engine, idx, cfg, opts...)
}

func encodePNG(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartRequest(t *testing.T, url, filename string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if data != nil {
		fw, err := mw.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	r := httptest.NewRequest(http.MethodPost, url, &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func do(srv *Server, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)
	return w
}

func uploadImage(t *testing.T, srv *Server, key string, c color.Color) {
	t.Helper()
	w := do(srv, multipartRequest(t, "/api/v1/images", key, encodePNG(t, c), nil))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t)
	w := do(srv, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHandleIndexAndGetImage(t *testing.T) {
	srv := newTestServer(t)
	w := do(srv, multipartRequest(t, "/api/v1/images", "upload.png", encodePNG(t, color.Black),
		map[string]string{"key": "black.png"}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(srv, httptest.NewRequest(http.MethodGet, "/api/v1/images/black.png", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var rec models.ImageRecord
	require.NoError(t, json.NewDecoder(w.Body).Decode(&rec))
	assert.Equal(t, "black.png", rec.Key)
	assert.Equal(t, "v1", rec.SchemaID)
	assert.Len(t, rec.Vector, descriptor.V1.TotalLength)

	w = do(srv, httptest.NewRequest(http.MethodGet, "/api/v1/images/missing.png", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleIndexImage_Invalid(t *testing.T) {
	srv := newTestServer(t)
	w := do(srv, multipartRequest(t, "/api/v1/images", "", nil, map[string]string{"key": "x.png"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(srv, multipartRequest(t, "/api/v1/images", "junk.png", []byte("not an image"), nil))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHandleSearch(t *testing.T) {
	srv := newTestServer(t)
	uploadImage(t, srv, "black.png", color.Black)
	uploadImage(t, srv, "white.png", color.White)

	w := do(srv, multipartRequest(t, "/api/v1/search", "query.png", encodePNG(t, color.Black), nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp models.SearchResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "black.png", resp.Results[0].Key)
	assert.Equal(t, 1, resp.Results[0].Rank)
	assert.Equal(t, "v1", resp.Schema)

	w = do(srv, multipartRequest(t, "/api/v1/search?exclude=black.png&top_k=5", "query.png", encodePNG(t, color.Black), nil))
	require.Equal(t, http.StatusOK, w.Code)
	resp = models.SearchResponse{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "white.png", resp.Results[0].Key)

	w = do(srv, multipartRequest(t, "/api/v1/search?filter=white", "query.png", encodePNG(t, color.Black), nil))
	require.Equal(t, http.StatusOK, w.Code)
	resp = models.SearchResponse{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "white.png", resp.Results[0].Key)
}

func TestHandleSearch_BadRequests(t *testing.T) {
	srv := newTestServer(t)
	tests := []struct {
		name string
		url  string
		data []byte
		want int
	}{
		{"missing image", "/api/v1/search", nil, http.StatusBadRequest},
		{"bad top_k", "/api/v1/search?top_k=abc", encodePNG(t, color.Black), http.StatusBadRequest},
		{"min_similarity out of range", "/api/v1/search?min_similarity=2", encodePNG(t, color.Black), http.StatusBadRequest},
		{"undecodable image", "/api/v1/search", []byte("garbage"), http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(srv, multipartRequest(t, tt.url, "q.png", tt.data, nil))
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestHandleDeleteAndClear(t *testing.T) {
	srv := newTestServer(t)
	uploadImage(t, srv, "a.png", color.Black)
	uploadImage(t, srv, "b.png", color.White)

	w := do(srv, httptest.NewRequest(http.MethodDelete, "/api/v1/images/a.png", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(srv, httptest.NewRequest(http.MethodDelete, "/api/v1/images/a.png", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(srv, httptest.NewRequest(http.MethodDelete, "/api/v1/images", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(srv, httptest.NewRequest(http.MethodGet, "/api/v1/images/b.png", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleIndexPaths(t *testing.T) {
	srv := newTestServer(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "red.png"), encodePNG(t, color.RGBA{R: 255, A: 255}), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0644))

	body, _ := json.Marshal(map[string]interface{}{"paths": []string{dir}})
	w := do(srv, httptest.NewRequest(http.MethodPost, "/api/v1/index", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var stats models.IndexStats
	require.NoError(t, json.NewDecoder(w.Body).Decode(&stats))
	assert.Equal(t, 1, stats.Success)
	assert.Zero(t, stats.Failed)
	assert.NotEmpty(t, stats.RunID)

	body, _ = json.Marshal(map[string]interface{}{"paths": []string{}})
	w = do(srv, httptest.NewRequest(http.MethodPost, "/api/v1/index", bytes.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body, _ = json.Marshal(map[string]interface{}{"paths": []string{filepath.Join(dir, "missing")}})
	w = do(srv, httptest.NewRequest(http.MethodPost, "/api/v1/index", bytes.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleValidate(t *testing.T) {
	srv := newTestServer(t)
	uploadImage(t, srv, "a.png", color.Black)
	require.NoError(t, srv.engine.Storage().Put(context.Background(), &models.ImageRecord{
		Key: "broken", SchemaID: "v1", Vector: []float32{1, 2, 3},
	}))

	w := do(srv, httptest.NewRequest(http.MethodGet, "/api/v1/validate", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var report models.ValidationReport
	require.NoError(t, json.NewDecoder(w.Body).Decode(&report))
	assert.Equal(t, 1, report.ValidCount)
	assert.Equal(t, 1, report.InvalidCount)
	assert.Equal(t, []string{"broken"}, report.InvalidKeys)
	assert.Equal(t, 1, report.PerSchema["v1"])
}

func TestHandleStatus(t *testing.T) {
	srv := newTestServer(t, WithWatch(&mockWatchService{dirs: []string{"/tmp/images"}}, ""))
	uploadImage(t, srv, "a.png", color.Black)

	w := do(srv, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var st models.Status
	require.NoError(t, json.NewDecoder(w.Body).Decode(&st))
	assert.EqualValues(t, 1, st.Images)
	assert.EqualValues(t, 1, st.KeywordDocs)
	assert.Equal(t, "v1", st.Schema)
	assert.Equal(t, "sqlite", st.Backend)
	assert.Positive(t, st.DiskUsageBytes)
	assert.Equal(t, []string{"/tmp/images"}, st.WatchDirectories)
}

func TestHandleSchemas(t *testing.T) {
	srv := newTestServer(t)
	w := do(srv, httptest.NewRequest(http.MethodGet, "/api/v1/schemas", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		Schemas []struct {
			ID          string `json:"id"`
			TotalLength int    `json:"total_length"`
			Active      bool   `json:"active"`
		} `json:"schemas"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	require.Len(t, out.Schemas, 3)
	for _, s := range out.Schemas {
		assert.Equal(t, s.ID == "v1", s.Active, s.ID)
		if s.ID == "v1" {
			assert.Equal(t, 544, s.TotalLength)
		}
	}
}

func TestHandleWatchDirectoriesList(t *testing.T) {
	srv := newTestServer(t, WithWatch(&mockWatchService{dirs: []string{"/tmp/images"}}, ""))
	w := do(srv, httptest.NewRequest(http.MethodGet, "/api/v1/watch/directories", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
	var out struct {
		Directories []string `json:"directories"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Directories) != 1 || out.Directories[0] != "/tmp/images" {
		t.Errorf("directories: got %v", out.Directories)
	}
}

func TestHandleWatchDirectoriesList_NotEnabled(t *testing.T) {
	srv := newTestServer(t)
	w := do(srv, httptest.NewRequest(http.MethodGet, "/api/v1/watch/directories", nil))
	if w.Code != http.StatusNotImplemented {
		t.Errorf("status: got %d, want 501", w.Code)
	}
}

func TestHandleWatchDirectoriesAdd(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	mock := &mockWatchService{}
	srv := newTestServer(t, WithWatch(mock, cfgPath))

	body, _ := json.Marshal(map[string]string{"path": dir})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/watch/directories", bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := do(srv, r)
	if w.Code != http.StatusCreated {
		t.Errorf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	if len(mock.Directories()) != 1 {
		t.Errorf("expected 1 directory, got %v", mock.Directories())
	}

	saved, err := config.Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, []string{dir}, saved.Watch.Directories)
}

func TestHandleWatchDirectoriesAdd_InvalidPath(t *testing.T) {
	dir := t.TempDir()
	srv := newTestServer(t, WithWatch(&mockWatchService{}, ""))

	body, _ := json.Marshal(map[string]string{"path": dir + "/nonexistent"})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/watch/directories", bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := do(srv, r)
	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestHandleWatchDirectoriesRemove(t *testing.T) {
	dir := t.TempDir()
	mock := &mockWatchService{dirs: []string{dir}}
	srv := newTestServer(t, WithWatch(mock, ""))

	w := do(srv, httptest.NewRequest(http.MethodDelete, "/api/v1/watch/directories?path="+dir, nil))
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
	if len(mock.Directories()) != 0 {
		t.Errorf("expected 0 directories, got %v", mock.Directories())
	}
}
