package index_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/helix-go/internal/embedding"
	"github.com/raphaelgruber/helix-go/internal/index"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func newTestCollection(t *testing.T) *index.Collection {
	t.Helper()

	path := filepath.Join(t.TempDir(), "documents.json")
	c, err := index.New(path, embedding.NewFingerprint(0), testLogger())
	require.NoError(t, err, "should open collection")
	return c
}

func TestAddAndGet(t *testing.T) {
	ctx := context.Background()
	c := newTestCollection(t)

	id, err := c.Add(ctx, "CRISPR off-target analysis", "session-1", map[string]any{"type": "note"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	item, ok := c.Get(id)
	require.True(t, ok, "added item should be retrievable")
	assert.Equal(t, "CRISPR off-target analysis", item.Content)
	assert.Equal(t, "session-1", item.SessionID)
	assert.Equal(t, "note", item.Metadata["type"])
	assert.Len(t, item.Embedding, embedding.FingerprintDimension)
	assert.False(t, item.CreatedAt.IsZero())

	_, ok = c.Get("no-such-id")
	assert.False(t, ok)
}

func TestSearchEmptyCollection(t *testing.T) {
	c := newTestCollection(t)

	hits, err := c.Search(context.Background(), "anything", 10, "")
	require.NoError(t, err, "empty collection search must not fail")
	assert.Empty(t, hits)
}

func TestSearchSelfSimilarity(t *testing.T) {
	ctx := context.Background()
	c := newTestCollection(t)

	_, err := c.Add(ctx, "unrelated background text", "", nil)
	require.NoError(t, err)

	id, err := c.Add(ctx, "p53 tumor suppressor pathway", "", nil)
	require.NoError(t, err)

	hits, err := c.Search(ctx, "p53 tumor suppressor pathway", 1, "")
	require.NoError(t, err)
	require.Len(t, hits, 1)

	assert.Equal(t, id, hits[0].ID, "exact text reuse should rank its own item first")
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
}

func TestSearchSessionScope(t *testing.T) {
	ctx := context.Background()
	c := newTestCollection(t)

	_, err := c.Add(ctx, "alpha document", "session-a", nil)
	require.NoError(t, err)
	_, err = c.Add(ctx, "beta document", "session-b", nil)
	require.NoError(t, err)
	_, err = c.Add(ctx, "shared corpus document", "", nil)
	require.NoError(t, err)

	hits, err := c.Search(ctx, "document", 10, "session-a")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "session-a", hits[0].SessionID)

	hits, err = c.Search(ctx, "document", 10, "")
	require.NoError(t, err)
	assert.Len(t, hits, 3, "unscoped search sees every item")
}

func TestSearchTieBreakInsertionOrder(t *testing.T) {
	ctx := context.Background()
	c := newTestCollection(t)

	first, err := c.Add(ctx, "identical content", "", nil)
	require.NoError(t, err)
	second, err := c.Add(ctx, "identical content", "", nil)
	require.NoError(t, err)

	hits, err := c.Search(ctx, "identical content", 2, "")
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, first, hits[0].ID, "equal scores break ties by insertion order")
	assert.Equal(t, second, hits[1].ID)
}

func TestSearchLimit(t *testing.T) {
	ctx := context.Background()
	c := newTestCollection(t)

	for _, text := range []string{"one", "two", "three", "four", "five"} {
		_, err := c.Add(ctx, text, "", nil)
		require.NoError(t, err)
	}

	hits, err := c.Search(ctx, "three", 3, "")
	require.NoError(t, err)
	assert.Len(t, hits, 3)

	hits, err = c.Search(ctx, "three", 0, "")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestDeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	c := newTestCollection(t)

	id, err := c.Add(ctx, "to be removed", "", nil)
	require.NoError(t, err)

	existed, err := c.Delete(id)
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = c.Delete(id)
	require.NoError(t, err)
	assert.False(t, existed, "second delete reports the item was already gone")

	_, ok := c.Get(id)
	assert.False(t, ok)
}

func TestClearScope(t *testing.T) {
	ctx := context.Background()
	c := newTestCollection(t)

	for i := 0; i < 3; i++ {
		_, err := c.Add(ctx, "scoped", "session-a", nil)
		require.NoError(t, err)
	}
	_, err := c.Add(ctx, "other", "session-b", nil)
	require.NoError(t, err)

	removed, err := c.ClearScope("session-a")
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	assert.Equal(t, 1, c.Len())

	removed, err = c.ClearScope("session-a")
	require.NoError(t, err)
	assert.Equal(t, 0, removed, "clearing an empty scope succeeds with zero removals")
}

func TestPersistenceAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "documents.json")

	c, err := index.New(path, embedding.NewFingerprint(0), testLogger())
	require.NoError(t, err)

	first, err := c.Add(ctx, "same text", "session-1", map[string]any{"filename": "a.txt"})
	require.NoError(t, err)
	second, err := c.Add(ctx, "same text", "session-1", nil)
	require.NoError(t, err)

	reopened, err := index.New(path, embedding.NewFingerprint(0), testLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Len())

	item, ok := reopened.Get(first)
	require.True(t, ok)
	assert.Equal(t, "same text", item.Content)
	assert.Equal(t, "a.txt", item.Metadata["filename"])

	hits, err := reopened.Search(ctx, "same text", 2, "")
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, first, hits[0].ID, "insertion order survives a reload")
	assert.Equal(t, second, hits[1].ID)
}

func TestCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "documents.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	c, err := index.New(path, embedding.NewFingerprint(0), testLogger())
	require.NoError(t, err, "corrupt file must not block startup")
	assert.Equal(t, 0, c.Len())

	_, err = c.Add(context.Background(), "recovers after corruption", "", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
}

func TestContentTruncation(t *testing.T) {
	ctx := context.Background()
	c := newTestCollection(t)

	long := strings.Repeat("x", index.MaxContentChars+500)
	id, err := c.Add(ctx, long, "", nil)
	require.NoError(t, err)

	item, ok := c.Get(id)
	require.True(t, ok)
	assert.Len(t, item.Content, index.MaxContentChars)

	// The vector is computed before truncation, so the original full text
	// still retrieves the item with a perfect score.
	hits, err := c.Search(ctx, long, 1, "")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, id, hits[0].ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	c := newTestCollection(t)

	_, err := c.Add(ctx, "one", "session-a", nil)
	require.NoError(t, err)
	_, err = c.Add(ctx, "two", "session-a", nil)
	require.NoError(t, err)
	_, err = c.Add(ctx, "three", "", nil)
	require.NoError(t, err)

	stats := c.Stats()
	assert.Equal(t, 3, stats.TotalDocuments)
	assert.Equal(t, embedding.FingerprintModel, stats.EmbeddingModel)
	assert.Equal(t, embedding.FingerprintDimension, stats.EmbeddingDim)
	assert.Equal(t, 2, stats.Sessions["session-a"])
	assert.Equal(t, 1, stats.Sessions[""])
}
