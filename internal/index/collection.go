package index

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
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/raphaelgruber/helix-go/internal/embedding"
	"github.com/raphaelgruber/helix-go/internal/models"
)

// MaxContentChars bounds the stored content of a single item. The embedding
// is computed over the full text before truncation, so re-querying with the
// original text still scores 1.0.
const MaxContentChars = 10000

// Collection is a similarity index persisted to one JSON file. Writes are
// serialized and flushed to disk before returning; reads may run
// concurrently with writes and observe either the pre- or post-write state.
type Collection struct {
	path     string
	embedder embedding.Embedder
	log      *slog.Logger

	mu      sync.RWMutex
	items   map[string]models.IndexedItem
	nextSeq uint64
}

// New opens the collection stored at path, creating parent directories as
// needed. A missing or unreadable file yields an empty collection rather
// than an error so a damaged data directory never blocks startup.
func New(path string, embedder embedding.Embedder, log *slog.Logger) (*Collection, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create collection dir: %w", err)
	}

	c := &Collection{
		path:     path,
		embedder: embedder,
		log:      log,
		items:    make(map[string]models.IndexedItem),
	}
	c.load()

	return c, nil
}

func (c *Collection) load() {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.log.Warn("collection file unreadable, starting empty", "path", c.path, "error", err)
		}
		return
	}

	var items map[string]models.IndexedItem
	if err := json.Unmarshal(data, &items); err != nil {
		c.log.Warn("collection file corrupt, starting empty", "path", c.path, "error", err)
		return
	}

	for id, item := range items {
		item.ID = id
		c.items[id] = item
	}
	c.normalizeSeq()
	c.log.Info("collection loaded", "path", c.path, "items", len(c.items))
}

// normalizeSeq reassigns contiguous sequence numbers. Hand-edited files may
// carry duplicate or missing seq values; insertion-order tie-breaks need
// them to be unique.
func (c *Collection) normalizeSeq() {
	ordered := make([]models.IndexedItem, 0, len(c.items))
	for _, item := range c.items {
		ordered = append(ordered, item)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Seq != ordered[j].Seq {
			return ordered[i].Seq < ordered[j].Seq
		}
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})

	for i, item := range ordered {
		item.Seq = uint64(i)
		c.items[item.ID] = item
	}
	c.nextSeq = uint64(len(ordered))
}

// Add embeds content, stores it under a fresh id, and persists the
// collection before returning. Content longer than MaxContentChars is
// stored truncated.
func (c *Collection) Add(ctx context.Context, content, sessionScope string, metadata map[string]any) (string, error) {
	vector, err := c.embedder.Embed(ctx, content)
	if err != nil {
		return "", fmt.Errorf("embed content: %w", err)
	}

	item := models.IndexedItem{
		ID:        uuid.NewString(),
		Content:   truncate(content, MaxContentChars),
		SessionID: sessionScope,
		Metadata:  metadata,
		Embedding: vector,
		CreatedAt: time.Now().UTC(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	item.Seq = c.nextSeq
	c.nextSeq++
	c.items[item.ID] = item

	if err := c.persistLocked(); err != nil {
		delete(c.items, item.ID)
		c.nextSeq--
		return "", err
	}
	return item.ID, nil
}

// Search scores every stored item against the query and returns the top
// limit hits ordered by descending score, ties broken by insertion order.
// An empty collection returns no hits and no error.
func (c *Collection) Search(ctx context.Context, query string, limit int, sessionScope string) ([]models.SearchHit, error) {
	if limit <= 0 {
		return nil, nil
	}

	queryVec, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	c.mu.RLock()
	type scored struct {
		item  models.IndexedItem
		score float64
	}
	results := make([]scored, 0, len(c.items))
	for _, item := range c.items {
		if sessionScope != "" && item.SessionID != sessionScope {
			continue
		}
		results = append(results, scored{item: item, score: Cosine(queryVec, item.Embedding)})
	}
	c.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].item.Seq < results[j].item.Seq
	})

	if len(results) > limit {
		results = results[:limit]
	}

	hits := make([]models.SearchHit, len(results))
	for i, r := range results {
		hits[i] = models.SearchHit{
			ID:        r.item.ID,
			Content:   r.item.Content,
			SessionID: r.item.SessionID,
			Timestamp: r.item.CreatedAt,
			Score:     r.score,
		}
	}
	return hits, nil
}

// Get returns the stored item with the given id.
func (c *Collection) Get(id string) (models.IndexedItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[id]
	return item, ok
}

// Delete removes the item if present and reports whether it existed.
// Deleting an unknown id is not an error.
func (c *Collection) Delete(id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[id]
	if !ok {
		return false, nil
	}

	delete(c.items, id)
	if err := c.persistLocked(); err != nil {
		c.items[id] = item
		return false, err
	}
	return true, nil
}

// ClearScope removes every item stored under the given session scope and
// returns how many were removed.
func (c *Collection) ClearScope(sessionScope string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := make(map[string]models.IndexedItem)
	for id, item := range c.items {
		if item.SessionID == sessionScope {
			removed[id] = item
			delete(c.items, id)
		}
	}
	if len(removed) == 0 {
		return 0, nil
	}

	if err := c.persistLocked(); err != nil {
		for id, item := range removed {
			c.items[id] = item
		}
		return 0, err
	}
	return len(removed), nil
}

// Len returns the number of stored items.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// Stats summarizes the collection for status endpoints.
func (c *Collection) Stats() models.IndexStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sessions := make(map[string]int)
	for _, item := range c.items {
		sessions[item.SessionID]++
	}

	return models.IndexStats{
		TotalDocuments: len(c.items),
		EmbeddingModel: c.embedder.Model(),
		EmbeddingDim:   c.embedder.Dimension(),
		Sessions:       sessions,
	}
}

// persistLocked writes the full collection to disk via a temp file rename.
// Callers must hold the write lock.
func (c *Collection) persistLocked() error {
	data, err := json.MarshalIndent(c.items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode collection: %w", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write collection: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("replace collection: %w", err)
	}
	return nil
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
