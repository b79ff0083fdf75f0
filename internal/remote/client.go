// Package remote is the HTTP client the editor uses to reach the
// classification backend. Client implements both the tree source and the
// annotation store.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/matcluster/internal/annotation"
	"github.com/starford/matcluster/internal/apperr"
	"github.com/starford/matcluster/internal/editor"
	"github.com/starford/matcluster/internal/models"
	"github.com/starford/matcluster/internal/tree"
)

var (
	_ editor.TreeSource = (*Client)(nil)
	_ annotation.Store  = (*Client)(nil)
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method  string
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote: %s %s: %d %s", e.Method, e.Path, e.Code, e.Message)
}

// Unwrap maps well-known status codes onto the shared sentinels.
func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusNotFound:
		return apperr.ErrNotFound
	case http.StatusBadRequest:
		return apperr.ErrInvalid
	}
	return nil
}

// Client talks to the backend REST API.
type Client struct {
	base   string
	token  string
	http   *http.Client
	logger *slog.Logger
}

// New creates a client for the API mounted under baseURL + "/api". An empty
// token sends no Authorization header.
func New(baseURL, token string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		base:   strings.TrimSuffix(baseURL, "/") + "/api",
		token:  token,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// do sends one request. in, when non-nil, is sent as JSON; out, when
// non-nil, receives the decoded JSON response.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("remote: encode %s: %w", path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("remote: create request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-Id", reqID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("remote: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("remote call",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.String("request_id", reqID),
		slog.Duration("elapsed", time.Since(start)))

	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("remote: decode %s: %w", path, err)
	}
	return nil
}

// LoadTree fetches the tree of a category.
func (c *Client) LoadTree(ctx context.Context, category string) (*tree.Node, error) {
	var root tree.Node
	if err := c.do(ctx, http.MethodGet, "/clusters", url.Values{"category": {category}}, nil, &root); err != nil {
		return nil, err
	}
	return &root, nil
}

// SaveLayout sends a full snapshot of the tree.
func (c *Client) SaveLayout(ctx context.Context, category string, root *tree.Node) (models.LayoutMetadata, error) {
	var meta models.LayoutMetadata
	err := c.do(ctx, http.MethodPost, "/clusters/layout", url.Values{"category": {category}}, root, &meta)
	return meta, err
}

// Categories lists the category filters.
func (c *Client) Categories(ctx context.Context) ([]string, error) {
	var resp struct {
		Categories []string `json:"categories"`
	}
	if err := c.do(ctx, http.MethodGet, "/categories", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Categories, nil
}

// List returns the annotations of a node.
func (c *Client) List(ctx context.Context, key models.NodeKey) ([]models.Annotation, error) {
	var resp struct {
		Annotations []models.Annotation `json:"annotations"`
	}
	q := url.Values{"node_type": {string(key.Type)}, "node_identifier": {key.Identifier}}
	if err := c.do(ctx, http.MethodGet, "/annotations", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Annotations, nil
}

type createRequest struct {
	models.NodeKey
	models.Annotation
}

// Create stores a new annotation and returns it with its id.
func (c *Client) Create(ctx context.Context, key models.NodeKey, a models.Annotation) (models.Annotation, error) {
	var created models.Annotation
	a.ID = 0
	err := c.do(ctx, http.MethodPost, "/annotations", nil, createRequest{NodeKey: key, Annotation: a}, &created)
	return created, err
}

// UpdateAnswer sets the answer of a question.
func (c *Client) UpdateAnswer(ctx context.Context, id int64, answer string) (models.Annotation, error) {
	var updated models.Annotation
	body := map[string]string{"answer": answer}
	err := c.do(ctx, http.MethodPut, "/annotations/"+strconv.FormatInt(id, 10), nil, body, &updated)
	return updated, err
}

// Delete removes an annotation.
func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/annotations/"+strconv.FormatInt(id, 10), nil, nil, nil)
}
