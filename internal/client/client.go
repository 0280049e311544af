// Package client provides an HTTP client for a remote Helix server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/raphaelgruber/helix-go/internal/metrics"
	"github.com/raphaelgruber/helix-go/internal/models"
)

// Client talks to a Helix server over its REST and websocket endpoints.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// New creates a client for the server at endpoint.
// If endpoint is empty, uses the HELIX_ENDPOINT env var or defaults to
// localhost:8000. The request timeout can be configured via
// HELIX_CLIENT_TIMEOUT (default 10m, analyses can be slow).
func New(endpoint string) *Client {
	if endpoint == "" {
		endpoint = os.Getenv("HELIX_ENDPOINT")
	}
	if endpoint == "" {
		endpoint = "http://localhost:8000"
	}
	endpoint = strings.TrimRight(endpoint, "/")

	timeout := 10 * time.Minute
	if t := os.Getenv("HELIX_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Endpoint returns the base URL the client talks to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// do sends one JSON request and decodes the response into result.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server error: %s - %s", resp.Status, errorDetail(raw))
	}

	if result != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// errorDetail extracts the detail field error responses carry.
func errorDetail(raw []byte) string {
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Detail != "" {
		return body.Detail
	}
	return strings.TrimSpace(string(raw))
}

// Status is the server's root endpoint payload.
type Status struct {
	Status   string   `json:"status"`
	Service  string   `json:"service"`
	Version  string   `json:"version"`
	Model    string   `json:"model"`
	Features []string `json:"features"`
}

// Status fetches the server's identity and feature list.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var status Status
	if err := c.do(ctx, http.MethodGet, "/health", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Analyze runs one analysis turn and returns the full response, charts
// rendered.
func (c *Client) Analyze(ctx context.Context, req models.AnalyzeRequest) (*models.AnalyzeResponse, error) {
	var resp models.AnalyzeResponse
	if err := c.do(ctx, http.MethodPost, "/analyze", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AnalyzeStream runs one analysis over the websocket endpoint, invoking
// onEvent for every stream event in order. It returns after the complete
// event, when onEvent returns an error, or when ctx is cancelled.
func (c *Client) AnalyzeStream(ctx context.Context, req models.AnalyzeRequest, onEvent func(models.StreamEvent) error) error {
	wsEndpoint := strings.Replace(c.endpoint, "http://", "ws://", 1)
	wsEndpoint = strings.Replace(wsEndpoint, "https://", "wss://", 1)

	u, err := url.Parse(wsEndpoint + "/analyze/ws")
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("websocket connect: %w", err)
	}

	var mu sync.Mutex
	closed := false
	closeConn := func() {
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			conn.Close()
		}
	}
	defer closeConn()

	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	// Unblock the read loop when the caller gives up.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read event: %w", err)
		}

		// Protocol-level failures arrive as a bare error message before
		// any events.
		var failure struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &failure) == nil && failure.Error != "" {
			return fmt.Errorf("stream error: %s", failure.Error)
		}

		var ev models.StreamEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}

		if err := onEvent(ev); err != nil {
			return err
		}
		if ev.Type == models.EventComplete {
			return nil
		}
	}
}

// History returns a session's stored exchanges, oldest first. A limit of
// zero returns everything.
func (c *Client) History(ctx context.Context, sessionID string, limit int) ([]models.HistoryEntry, error) {
	path := "/memory/" + url.PathEscape(sessionID)
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}

	var resp struct {
		Memories []models.HistoryEntry `json:"memories"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Memories, nil
}

// ClearMemory deletes a session's stored exchanges.
func (c *Client) ClearMemory(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/memory/"+url.PathEscape(sessionID), nil, nil)
}

// Patterns returns the learning pattern summary for a session.
func (c *Client) Patterns(ctx context.Context, sessionID string) (*models.LearningPatterns, error) {
	var resp struct {
		Patterns models.LearningPatterns `json:"patterns"`
	}
	if err := c.do(ctx, http.MethodGet, "/memory/"+url.PathEscape(sessionID)+"/patterns", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Patterns, nil
}

// Sessions lists all stored sessions.
func (c *Client) Sessions(ctx context.Context) ([]models.SessionInfo, error) {
	var resp struct {
		Sessions []models.SessionInfo `json:"sessions"`
	}
	if err := c.do(ctx, http.MethodGet, "/sessions", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

// VectorizeResult summarizes one document indexing call.
type VectorizeResult struct {
	Status      string   `json:"status"`
	DocumentIDs []string `json:"document_ids"`
	Filename    string   `json:"filename"`
	Chunks      int      `json:"chunks"`
	TotalChars  int      `json:"total_chars"`
}

// Vectorize chunks and indexes a document's text into the server's corpus.
// An empty sessionID indexes it corpus-wide.
func (c *Client) Vectorize(ctx context.Context, filename, content, sessionID string) (*VectorizeResult, error) {
	body := map[string]string{
		"content":    content,
		"filename":   filename,
		"session_id": sessionID,
	}

	var result VectorizeResult
	if err := c.do(ctx, http.MethodPost, "/vectorize", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Search runs a similarity search over the server's corpus. An empty
// sessionID searches corpus-wide.
func (c *Client) Search(ctx context.Context, query string, limit int, sessionID string) ([]models.SearchHit, error) {
	values := url.Values{"q": {query}}
	if limit > 0 {
		values.Set("limit", fmt.Sprint(limit))
	}
	if sessionID != "" {
		values.Set("session_id", sessionID)
	}

	var resp struct {
		Results []models.SearchHit `json:"results"`
	}
	if err := c.do(ctx, http.MethodGet, "/vector-search?"+values.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// GenerateChart renders one chart spec on the server.
func (c *Client) GenerateChart(ctx context.Context, spec models.ChartSpec) (*models.RenderedChart, error) {
	var chart models.RenderedChart
	if err := c.do(ctx, http.MethodPost, "/generate-chart", spec, &chart); err != nil {
		return nil, err
	}
	return &chart, nil
}

// GenerateDiagram asks the server for a Mermaid diagram of description.
func (c *Client) GenerateDiagram(ctx context.Context, description, diagramType string) (*models.Diagram, error) {
	body := map[string]string{
		"description":  description,
		"diagram_type": diagramType,
	}

	var diagram models.Diagram
	if err := c.do(ctx, http.MethodPost, "/generate-diagram", body, &diagram); err != nil {
		return nil, err
	}
	return &diagram, nil
}

// Stats is the server's runtime statistics payload.
type Stats struct {
	Service  string            `json:"service"`
	Version  string            `json:"version"`
	Model    string            `json:"model"`
	Index    models.IndexStats `json:"index"`
	Sessions int               `json:"sessions"`
	Runtime  metrics.Snapshot  `json:"runtime"`
}

// Stats fetches index, session and runtime statistics.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	if err := c.do(ctx, http.MethodGet, "/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
