// Package memory implements the durable per-session memory store. Each
// session is one JSON file holding its exchanges in insertion order, capped
// at a configurable item count and expired as a whole once idle for too
// long. Relevance retrieval scores items with the same cosine similarity
// the document index uses.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raphaelgruber/helix-go/internal/embedding"
	"github.com/raphaelgruber/helix-go/internal/index"
	"github.com/raphaelgruber/helix-go/internal/models"
)

const (
	// DefaultMaxItems caps a session log when no explicit cap is configured.
	DefaultMaxItems = 100

	// DefaultHistoryLimit is how many entries History returns when the
	// caller does not say.
	DefaultHistoryLimit = 20
)

// ErrInvalidSession rejects session ids that cannot name a session file.
var ErrInvalidSession = errors.New("invalid session id")

// Store keeps one session log per session id. Writes are serialized;
// reads work on immutable snapshots and may run concurrently with writes.
type Store struct {
	dir      string
	embedder embedding.Embedder
	log      *slog.Logger
	maxItems int

	mu    sync.RWMutex
	cache map[string][]models.MemoryItem
}

// NewStore opens a memory store rooted at dir, creating it if needed.
func NewStore(dir string, embedder embedding.Embedder, maxItems int, log *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}

	return &Store{
		dir:      dir,
		embedder: embedder,
		log:      log,
		maxItems: maxItems,
		cache:    make(map[string][]models.MemoryItem),
	}, nil
}

// Store appends a record to the session log, evicting the oldest items once
// the cap is exceeded, and persists the log before returning the new id.
func (s *Store) Store(ctx context.Context, sessionID string, record models.MemoryRecord) (string, error) {
	if err := validateSession(sessionID); err != nil {
		return "", err
	}

	now := time.Now().UTC()
	if record.Timestamp == "" {
		record.Timestamp = now.Format(time.RFC3339)
	}

	vector, err := s.embedder.Embed(ctx, record.EmbeddingText())
	if err != nil {
		return "", fmt.Errorf("embed memory: %w", err)
	}

	item := models.MemoryItem{
		ID:        uuid.NewString(),
		Content:   record,
		Embedding: vector,
		CreatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.sessionLocked(sessionID)
	items = append(items, item)
	if len(items) > s.maxItems {
		items = items[len(items)-s.maxItems:]
	}

	if err := s.persistSession(sessionID, items); err != nil {
		return "", err
	}
	s.cache[sessionID] = items

	return item.ID, nil
}

// Retrieve returns the session's most relevant items for the query, best
// first, ties kept in insertion order. Items whose stored vector has the
// wrong dimension score 0 rather than failing the call.
func (s *Store) Retrieve(ctx context.Context, sessionID, query string, limit int) ([]models.MemoryHit, error) {
	if err := validateSession(sessionID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	items := s.session(sessionID)
	if len(items) == 0 {
		return nil, nil
	}

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits := make([]models.MemoryHit, len(items))
	for i, item := range items {
		hits[i] = models.MemoryHit{
			ID:             item.ID,
			Content:        item.Content,
			Timestamp:      item.CreatedAt,
			RelevanceScore: index.Cosine(queryVec, item.Embedding),
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].RelevanceScore > hits[j].RelevanceScore
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// History returns the most recent limit entries in chronological order.
// A limit of zero or less uses DefaultHistoryLimit.
func (s *Store) History(sessionID string, limit int) ([]models.HistoryEntry, error) {
	if err := validateSession(sessionID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	items := s.session(sessionID)
	if len(items) > limit {
		items = items[len(items)-limit:]
	}

	entries := make([]models.HistoryEntry, len(items))
	for i, item := range items {
		entries[i] = models.HistoryEntry{
			ID:        item.ID,
			Content:   item.Content,
			Timestamp: item.CreatedAt,
		}
	}
	return entries, nil
}

// Clear removes the session's durable record entirely. Clearing a session
// that never existed succeeds.
func (s *Store) Clear(sessionID string) error {
	if err := validateSession(sessionID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.cache, sessionID)
	if err := os.Remove(s.sessionFile(sessionID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// Sessions lists every stored session with its item count and the timestamp
// of its newest item. Unreadable session files are skipped.
func (s *Store) Sessions() ([]models.SessionInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	sessions := make([]models.SessionInfo, 0, len(entries))
	for _, entry := range entries {
		sessionID, ok := strings.CutSuffix(entry.Name(), ".json")
		if !ok || entry.IsDir() {
			continue
		}

		items, err := s.readSessionFile(sessionID)
		if err != nil {
			s.log.Warn("skipping unreadable session", "session_id", sessionID, "error", err)
			continue
		}

		info := models.SessionInfo{SessionID: sessionID, MemoryCount: len(items)}
		if len(items) > 0 {
			last := items[len(items)-1].CreatedAt
			info.LastUpdated = &last
		}
		sessions = append(sessions, info)
	}
	return sessions, nil
}

// SweepExpired deletes every session whose newest item is older than
// now minus expiry and returns how many sessions were removed. Sessions
// with no items are left alone.
func (s *Store) SweepExpired(now time.Time, expiry time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}
	threshold := now.Add(-expiry)

	removed := 0
	for _, entry := range entries {
		sessionID, ok := strings.CutSuffix(entry.Name(), ".json")
		if !ok || entry.IsDir() {
			continue
		}

		items, err := s.readSessionFile(sessionID)
		if err != nil || len(items) == 0 {
			continue
		}
		if !items[len(items)-1].CreatedAt.Before(threshold) {
			continue
		}

		s.mu.Lock()
		delete(s.cache, sessionID)
		err = os.Remove(s.sessionFile(sessionID))
		s.mu.Unlock()

		if err != nil {
			s.log.Warn("failed to remove expired session", "session_id", sessionID, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		s.log.Info("expired sessions removed", "count", removed)
	}
	return removed, nil
}

// session returns the cached log for the session, loading it from disk on
// first access.
func (s *Store) session(sessionID string) []models.MemoryItem {
	s.mu.RLock()
	items, ok := s.cache[sessionID]
	s.mu.RUnlock()
	if ok {
		return items
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionLocked(sessionID)
}

// sessionLocked is session for callers already holding the write lock.
func (s *Store) sessionLocked(sessionID string) []models.MemoryItem {
	if items, ok := s.cache[sessionID]; ok {
		return items
	}

	items, err := s.readSessionFile(sessionID)
	if err != nil {
		s.log.Warn("session file unreadable, starting empty", "session_id", sessionID, "error", err)
		items = nil
	}
	s.cache[sessionID] = items
	return items
}

func (s *Store) readSessionFile(sessionID string) ([]models.MemoryItem, error) {
	data, err := os.ReadFile(s.sessionFile(sessionID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var items []models.MemoryItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) persistSession(sessionID string, items []models.MemoryItem) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	path := s.sessionFile(sessionID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace session: %w", err)
	}
	return nil
}

func (s *Store) sessionFile(sessionID string) string {
	return filepath.Join(s.dir, sessionID+".json")
}

// validateSession rejects ids that would escape the memory directory.
func validateSession(sessionID string) error {
	if sessionID == "" || strings.ContainsAny(sessionID, `/\`) || strings.Contains(sessionID, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidSession, sessionID)
	}
	return nil
}
