package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/raphaelgruber/helix-go/internal/extract"
	"github.com/raphaelgruber/helix-go/internal/memory"
	"github.com/raphaelgruber/helix-go/internal/models"
)

// maxUploadBytes bounds the in-memory part of multipart uploads.
const maxUploadBytes = 50 << 20

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "online",
		"service": "Helix",
		"version": s.version,
		"model":   s.svc.Model(),
		"features": []string{
			"multimodal_analysis",
			"vectorized_memory",
			"dynamic_charts",
			"thinking_traces",
		},
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeAnalyzeRequest(r)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	result, err := s.svc.Analyze(r.Context(), req)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, models.AnalyzeResponse{
		SessionID:     result.SessionID,
		Result:        result.Result,
		ThinkingTrace: result.ThinkingTrace,
		Charts:        s.renderer.ChartAll(result.Charts),
		MemoryContext: result.MemoryContext,
		Timestamp:     result.Timestamp,
	})
}

// handleAnalyzeStream streams the analysis as server-sent events, one
// `data: <json>` line per stream event.
func (s *Server) handleAnalyzeStream(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeAnalyzeRequest(r)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	events, err := s.svc.AnalyzeStream(r.Context(), req)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			s.log.Warn("stream event not encodable", "type", ev.Type, "error", err)
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			// Client went away; the producer stops via the request context.
			return
		}
		flusher.Flush()
	}
}

// handleAnalyzeWS is the websocket variant of the stream: the client sends
// one JSON request, the server writes each event as a JSON message and
// closes after the complete event.
func (s *Server) handleAnalyzeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	var req models.AnalyzeRequest
	if err := conn.ReadJSON(&req); err != nil {
		_ = conn.WriteJSON(map[string]string{"error": "invalid request: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		_ = conn.WriteJSON(map[string]string{"error": "query is required"})
		return
	}

	events, err := s.svc.AnalyzeStream(r.Context(), req)
	if err != nil {
		_ = conn.WriteJSON(map[string]string{"error": err.Error()})
		return
	}

	for ev := range events {
		if err := conn.WriteJSON(ev); err != nil {
			s.log.Debug("websocket client gone", "error", err)
			return
		}
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (s *Server) handleMemoryHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	limit := queryInt(r, "limit", 0)

	entries, err := s.svc.History(sessionID, limit)
	if err != nil {
		s.writeMemoryError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"memories":   entries,
		"count":      len(entries),
	})
}

func (s *Server) handleMemoryClear(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")

	if err := s.svc.ClearSession(sessionID); err != nil {
		s.writeMemoryError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":     "cleared",
		"session_id": sessionID,
	})
}

func (s *Server) handleMemoryPatterns(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")

	patterns, err := s.svc.Patterns(sessionID)
	if err != nil {
		s.writeMemoryError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"patterns":   patterns,
	})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.svc.Sessions()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

func (s *Server) handleVectorize(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content   string `json:"content"`
		Filename  string `json:"filename"`
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, fmt.Errorf("decode request: %w", err))
		return
	}
	if strings.TrimSpace(body.Content) == "" {
		s.writeError(w, http.StatusUnprocessableEntity, errors.New("content is required"))
		return
	}
	if body.Filename == "" {
		body.Filename = "uploaded_file"
	}

	ids, err := s.svc.VectorizeText(r.Context(), body.Filename, body.Content, body.SessionID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":       "indexed",
		"document_ids": ids,
		"filename":     body.Filename,
		"chunks":       len(ids),
		"total_chars":  len(body.Content),
	})
}

func (s *Server) handleVectorSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		query = r.URL.Query().Get("query")
	}
	if strings.TrimSpace(query) == "" {
		s.writeError(w, http.StatusUnprocessableEntity, errors.New("query is required"))
		return
	}

	limit := queryInt(r, "limit", 5)
	scope := r.URL.Query().Get("session_id")

	hits, err := s.svc.SearchCorpus(r.Context(), query, limit, scope)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if hits == nil {
		hits = []models.SearchHit{}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"results": hits,
	})
}

func (s *Server) handleGenerateChart(w http.ResponseWriter, r *http.Request) {
	var spec models.ChartSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, fmt.Errorf("decode chart spec: %w", err))
		return
	}

	s.writeJSON(w, http.StatusOK, s.renderer.Chart(spec))
}

func (s *Server) handleGenerateDiagram(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Description string `json:"description"`
		DiagramType string `json:"diagram_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, fmt.Errorf("decode request: %w", err))
		return
	}
	if strings.TrimSpace(body.Description) == "" {
		s.writeError(w, http.StatusUnprocessableEntity, errors.New("description is required"))
		return
	}

	s.writeJSON(w, http.StatusOK, s.diagrams.Generate(r.Context(), body.Description, body.DiagramType))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.svc.Sessions()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"service":  "Helix",
		"version":  s.version,
		"model":    s.svc.Model(),
		"index":    s.svc.IndexStats(),
		"sessions": len(sessions),
		"runtime":  s.svc.MetricsSnapshot(),
	})
}

// decodeAnalyzeRequest reads an analysis request from either a JSON body or
// a multipart form with file uploads. The browser UI posts the query under
// the form field "text"; both spellings are accepted.
func (s *Server) decodeAnalyzeRequest(r *http.Request) (models.AnalyzeRequest, error) {
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "application/json") {
		var body struct {
			models.AnalyzeRequest
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return models.AnalyzeRequest{}, fmt.Errorf("decode request: %w", err)
		}
		req := body.AnalyzeRequest
		if req.Query == "" {
			req.Query = body.Text
		}
		if strings.TrimSpace(req.Query) == "" {
			return models.AnalyzeRequest{}, errors.New("query is required")
		}
		return req, nil
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return models.AnalyzeRequest{}, fmt.Errorf("parse form: %w", err)
	}

	req := models.AnalyzeRequest{
		Query:         r.FormValue("text"),
		SessionID:     r.FormValue("session_id"),
		ThinkingLevel: r.FormValue("thinking_level"),
	}
	if req.Query == "" {
		req.Query = r.FormValue("query")
	}
	if strings.TrimSpace(req.Query) == "" {
		return models.AnalyzeRequest{}, errors.New("query is required")
	}

	if r.MultipartForm != nil {
		for _, header := range r.MultipartForm.File["files"] {
			file, err := header.Open()
			if err != nil {
				return models.AnalyzeRequest{}, fmt.Errorf("open upload %s: %w", header.Filename, err)
			}
			data, err := io.ReadAll(file)
			file.Close()
			if err != nil {
				return models.AnalyzeRequest{}, fmt.Errorf("read upload %s: %w", header.Filename, err)
			}
			req.Attachments = append(req.Attachments,
				extract.FromUpload(header.Filename, header.Header.Get("Content-Type"), data))
		}
	}
	return req, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("response encoding failed", "error", err)
	}
}

// writeError reports errors as a JSON object with a detail field, the
// shape the browser UI and API clients parse.
func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"detail": err.Error()})
}

// writeMemoryError maps session id validation failures to 422 and
// everything else to 500.
func (s *Server) writeMemoryError(w http.ResponseWriter, err error) {
	if errors.Is(err, memory.ErrInvalidSession) {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	s.writeError(w, http.StatusInternalServerError, err)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
