package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/niteru/internal/models"
	"github.com/hyperjump/niteru/internal/search"
)

// apiClient talks to a running niteru server; used when --server is set so
// the CLI does not contend with the server for store locks.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(serverURL string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(serverURL, "/"),
		http:    &http.Client{Timeout: 2 * time.Minute},
	}
}

// do sends req and decodes a JSON body into out when the status matches want.
func (c *apiClient) do(req *http.Request, want int, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *apiClient) get(path string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, http.StatusOK, out)
}

// searchImage uploads the image at path and returns the ranking.
func (c *apiClient) searchImage(path, exclude string, q search.ImageQuery) (*models.SearchResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	params := url.Values{}
	if q.TopK > 0 {
		params.Set("top_k", strconv.Itoa(q.TopK))
	}
	params.Set("min_similarity", strconv.FormatFloat(q.MinSimilarity, 'f', -1, 64))
	if q.Filter != "" {
		params.Set("filter", q.Filter)
	}
	if exclude != "" {
		params.Set("exclude", exclude)
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/v1/search?"+params.Encode(), &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var resp models.SearchResponse
	if err := c.do(req, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) status() (*models.Status, error) {
	var st models.Status
	if err := c.get("/api/v1/status", &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *apiClient) watchList() ([]string, error) {
	var out struct {
		Directories []string `json:"directories"`
	}
	if err := c.get("/api/v1/watch/directories", &out); err != nil {
		return nil, err
	}
	return out.Directories, nil
}

func (c *apiClient) watchAdd(path string, syncExisting bool) error {
	body, _ := json.Marshal(map[string]interface{}{"path": path, "sync": syncExisting})
	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/v1/watch/directories", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, http.StatusCreated, nil)
}

func (c *apiClient) watchRemove(path string) error {
	req, err := http.NewRequest(http.MethodDelete,
		c.baseURL+"/api/v1/watch/directories?path="+url.QueryEscape(path), nil)
	if err != nil {
		return err
	}
	return c.do(req, http.StatusOK, nil)
}
