package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/niteru/internal/config"
	"github.com/hyperjump/niteru/internal/descriptor"
	"github.com/hyperjump/niteru/internal/models"
	"github.com/hyperjump/niteru/internal/search"
	"github.com/hyperjump/niteru/internal/storage"
	"go.uber.org/zap"
)

// readUpload returns the bytes and file name of the multipart "image" field.
func readUpload(r *http.Request) ([]byte, string, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, "", err
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		return nil, "", err
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return nil, "", err
	}
	return data, header.Filename, nil
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := search.ImageQuery{Filter: r.URL.Query().Get("filter")}
	if v := r.URL.Query().Get("top_k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid top_k")
			return
		}
		q.TopK = n
	} else {
		q.TopK = s.cfg.Search.DefaultTopK
	}
	if v := r.URL.Query().Get("min_similarity"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			s.respondError(w, http.StatusBadRequest, "min_similarity must be a number within [0,1]")
			return
		}
		q.MinSimilarity = f
	} else {
		q.MinSimilarity = s.cfg.Search.MinSimilarity
	}
	data, name, err := readUpload(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "multipart field \"image\" is required")
		return
	}
	exclude := r.URL.Query().Get("exclude")
	s.logger.Debug("search request",
		zap.String("upload", name),
		zap.String("exclude", exclude),
		zap.Int("top_k", q.TopK))

	response, err := s.engine.SearchImage(r.Context(), exclude, bytes.NewReader(data), q)
	if err != nil {
		if errors.Is(err, search.ErrNoResult) {
			s.respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleIndexImage(w http.ResponseWriter, r *http.Request) {
	data, name, err := readUpload(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "multipart field \"image\" is required")
		return
	}
	key := r.FormValue("key")
	if key == "" {
		key = filepath.Base(name)
	}
	if key == "" || key == "." || key == string(filepath.Separator) {
		s.respondError(w, http.StatusBadRequest, "key is required")
		return
	}
	s.logger.Debug("index image request", zap.String("key", key), zap.Int("bytes", len(data)))
	stats := s.indexer.IndexImages(r.Context(), []models.ImageInput{{
		Key:       key,
		Data:      data,
		SourceRef: r.FormValue("source_ref"),
	}})
	if stats.Failed > 0 {
		msg := "indexing failed"
		if len(stats.Failures) > 0 {
			msg = stats.Failures[0].Error
		}
		s.respondError(w, http.StatusUnprocessableEntity, msg)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"key": key, "status": "indexed"})
}

func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	rec, err := s.engine.Storage().Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "image not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	s.logger.Debug("delete image request", zap.String("key", key))
	if err := s.indexer.Delete(r.Context(), key); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "image not found")
			return
		}
		s.logger.Error("deletion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"key": key, "status": "deleted"})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.indexer.Clear(r.Context()); err != nil {
		s.logger.Error("clear failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

type indexRequest struct {
	Paths []string `json:"paths"`
	Force bool     `json:"force,omitempty"`
}

func (s *Server) handleIndexPaths(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Paths) == 0 {
		s.respondError(w, http.StatusBadRequest, "paths is required")
		return
	}
	stats, err := s.indexer.IndexPaths(r.Context(), req.Paths, req.Force)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.Validate(r.Context())
	if err != nil {
		s.logger.Error("validate failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var dirs []string
	if s.watch != nil {
		dirs = s.watch.Directories()
	}
	st, err := CollectStatus(r.Context(), s.engine, s.cfg, dirs)
	if err != nil {
		s.logger.Error("status failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, st)
}

type schemaInfo struct {
	*descriptor.Schema
	Active bool `json:"active"`
}

func (s *Server) handleSchemas(w http.ResponseWriter, r *http.Request) {
	active := s.engine.Schema().ID
	var out []schemaInfo
	for _, sc := range descriptor.Registered() {
		out = append(out, schemaInfo{Schema: sc, Active: sc.ID == active})
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"schemas": out})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	dirs := s.watch.Directories()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": dirs})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	s.logger.Debug("watch add directory request", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatch()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Path != "" {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	s.logger.Debug("watch remove directory request", zap.String("path", abs))
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatch()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

// persistWatch writes the current watch directories back to the config file.
func (s *Server) persistWatch() {
	if s.configPath == "" || s.cfg == nil {
		return
	}
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	s.cfg.Watch.Directories = s.watch.Directories()
	if err := config.Save(s.configPath, s.cfg); err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
