package memory_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/helix-go/internal/embedding"
	"github.com/raphaelgruber/helix-go/internal/memory"
	"github.com/raphaelgruber/helix-go/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func newTestStore(t *testing.T, maxItems int) *memory.Store {
	t.Helper()

	store, err := memory.NewStore(t.TempDir(), embedding.NewFingerprint(0), maxItems, testLogger())
	require.NoError(t, err, "should open store")
	return store
}

func record(query, result string) models.MemoryRecord {
	return models.MemoryRecord{Query: query, Result: result}
}

func TestStoreAndHistory(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 0)

	first, err := store.Store(ctx, "session-1", record("what is p53", "a tumor suppressor"))
	require.NoError(t, err)
	second, err := store.Store(ctx, "session-1", record("how does it fold", "via chaperones"))
	require.NoError(t, err)

	entries, err := store.History("session-1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, first, entries[0].ID, "history is chronological, oldest first")
	assert.Equal(t, second, entries[1].ID)
	assert.Equal(t, "what is p53", entries[0].Content.Query)
	assert.Equal(t, "a tumor suppressor", entries[0].Content.Result)
	assert.NotEmpty(t, entries[0].Content.Timestamp)
}

func TestStoreFIFOEviction(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 5)

	for i := 0; i < 8; i++ {
		_, err := store.Store(ctx, "session-1", record(fmt.Sprintf("query %d", i), "answer"))
		require.NoError(t, err)
	}

	entries, err := store.History("session-1", 100)
	require.NoError(t, err)
	require.Len(t, entries, 5, "log never exceeds the cap")

	assert.Equal(t, "query 3", entries[0].Content.Query, "oldest items are evicted first")
	assert.Equal(t, "query 7", entries[4].Content.Query)
}

func TestRetrieveRanksByRelevance(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 0)

	_, err := store.Store(ctx, "session-1", record("protein folding kinetics", "fast"))
	require.NoError(t, err)
	target, err := store.Store(ctx, "session-1", record("CRISPR editing", "precise"))
	require.NoError(t, err)

	// The fingerprint embedder only guarantees retrieval for exact text
	// reuse, so query with the stored projection itself.
	hits, err := store.Retrieve(ctx, "session-1", "CRISPR editing precise", 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, target, hits[0].ID)
	assert.InDelta(t, 1.0, hits[0].RelevanceScore, 1e-9)
	assert.GreaterOrEqual(t, hits[0].RelevanceScore, hits[1].RelevanceScore)
}

func TestRetrieveEmptySession(t *testing.T) {
	store := newTestStore(t, 0)

	hits, err := store.Retrieve(context.Background(), "never-stored", "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestRetrieveLimit(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 0)

	for i := 0; i < 6; i++ {
		_, err := store.Store(ctx, "session-1", record(fmt.Sprintf("query %d", i), "answer"))
		require.NoError(t, err)
	}

	hits, err := store.Retrieve(ctx, "session-1", "query", 3)
	require.NoError(t, err)
	assert.Len(t, hits, 3)
}

func TestHistoryDefaultLimit(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 0)

	for i := 0; i < memory.DefaultHistoryLimit+5; i++ {
		_, err := store.Store(ctx, "session-1", record(fmt.Sprintf("query %d", i), "answer"))
		require.NoError(t, err)
	}

	entries, err := store.History("session-1", 0)
	require.NoError(t, err)
	assert.Len(t, entries, memory.DefaultHistoryLimit)
}

func TestClearIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 0)

	_, err := store.Store(ctx, "session-1", record("query", "answer"))
	require.NoError(t, err)

	require.NoError(t, store.Clear("session-1"))

	entries, err := store.History("session-1", 10)
	require.NoError(t, err)
	assert.Empty(t, entries, "cleared session has no history")

	require.NoError(t, store.Clear("session-1"), "clearing twice is not an error")
	require.NoError(t, store.Clear("never-existed"))
}

func TestPersistenceAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := memory.NewStore(dir, embedding.NewFingerprint(0), 0, testLogger())
	require.NoError(t, err)

	id, err := store.Store(ctx, "session-1", record("persisted query", "persisted answer"))
	require.NoError(t, err)

	reopened, err := memory.NewStore(dir, embedding.NewFingerprint(0), 0, testLogger())
	require.NoError(t, err)

	entries, err := reopened.History("session-1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID)

	hits, err := reopened.Retrieve(ctx, "session-1", "persisted query persisted answer", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].RelevanceScore, 1e-9)
}

func TestCorruptSessionFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "session-1.json"), []byte("[broken"), 0o644))

	store, err := memory.NewStore(dir, embedding.NewFingerprint(0), 0, testLogger())
	require.NoError(t, err)

	entries, err := store.History("session-1", 10)
	require.NoError(t, err, "corrupt file reads as an empty session")
	assert.Empty(t, entries)
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 0)

	_, err := store.Store(ctx, "session-a", record("q1", "r1"))
	require.NoError(t, err)
	_, err = store.Store(ctx, "session-a", record("q2", "r2"))
	require.NoError(t, err)
	_, err = store.Store(ctx, "session-b", record("q3", "r3"))
	require.NoError(t, err)

	sessions, err := store.Sessions()
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	byID := make(map[string]models.SessionInfo)
	for _, info := range sessions {
		byID[info.SessionID] = info
	}
	assert.Equal(t, 2, byID["session-a"].MemoryCount)
	assert.Equal(t, 1, byID["session-b"].MemoryCount)
	require.NotNil(t, byID["session-a"].LastUpdated)
}

func TestSweepExpired(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 0)

	_, err := store.Store(ctx, "stale", record("old query", "old answer"))
	require.NoError(t, err)
	_, err = store.Store(ctx, "fresh", record("new query", "new answer"))
	require.NoError(t, err)

	// Judged from a point far enough in the future that both sessions
	// expire, then from now, where neither should.
	removed, err := store.SweepExpired(time.Now().UTC(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, removed, "recent sessions survive the sweep")

	removed, err = store.SweepExpired(time.Now().UTC().Add(48*time.Hour), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	sessions, err := store.Sessions()
	require.NoError(t, err)
	assert.Empty(t, sessions)

	entries, err := store.History("stale", 10)
	require.NoError(t, err)
	assert.Empty(t, entries, "swept session is gone from the cache too")
}

func TestInvalidSessionIDs(t *testing.T) {
	store := newTestStore(t, 0)
	ctx := context.Background()

	for _, sessionID := range []string{"", "../escape", "a/b", `a\b`} {
		_, err := store.Store(ctx, sessionID, record("q", "r"))
		assert.ErrorIs(t, err, memory.ErrInvalidSession, "id %q", sessionID)

		_, err = store.Retrieve(ctx, sessionID, "q", 5)
		assert.ErrorIs(t, err, memory.ErrInvalidSession, "id %q", sessionID)

		assert.ErrorIs(t, store.Clear(sessionID), memory.ErrInvalidSession, "id %q", sessionID)
	}
}
