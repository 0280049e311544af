package ingest_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/helix-go/internal/embedding"
	"github.com/raphaelgruber/helix-go/internal/index"
	"github.com/raphaelgruber/helix-go/internal/ingest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func newTestPipeline(t *testing.T, opts ...ingest.Option) (*ingest.Pipeline, *index.Collection) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "documents.json")
	corpus, err := index.New(path, embedding.NewFingerprint(0), testLogger())
	require.NoError(t, err, "should open corpus")

	p, err := ingest.New(corpus, testLogger(), opts...)
	require.NoError(t, err, "should build pipeline")
	t.Cleanup(p.Release)
	return p, corpus
}

func TestIngestDocument(t *testing.T) {
	ctx := context.Background()
	p, corpus := newTestPipeline(t, ingest.WithChunkSize(4))

	ids, err := p.IngestDocument(ctx, ingest.Document{
		Filename:  "genes.txt",
		Content:   "abcdefghij",
		SessionID: "session-1",
	})
	require.NoError(t, err)
	require.Len(t, ids, 3, "ten chars at size four should yield three chunks")
	assert.Equal(t, 3, corpus.Len())

	wantBodies := []string{"abcd", "efgh", "ij"}
	for i, id := range ids {
		item, ok := corpus.Get(id)
		require.True(t, ok, "chunk %d should be indexed", i)

		header := fmt.Sprintf("[Document: genes.txt] (Part %d/3)\n", i+1)
		assert.Equal(t, header+wantBodies[i], item.Content, "chunk %d content", i)
		assert.Equal(t, "session-1", item.SessionID)
		assert.Equal(t, "uploaded_document", item.Metadata["type"])
		assert.Equal(t, "genes.txt", item.Metadata["filename"])
		assert.EqualValues(t, i, item.Metadata["chunk_index"])
		assert.EqualValues(t, 3, item.Metadata["total_chunks"])
	}
}

func TestIngestDocumentEmpty(t *testing.T) {
	p, corpus := newTestPipeline(t)

	ids, err := p.IngestDocument(context.Background(), ingest.Document{Filename: "empty.txt"})
	require.NoError(t, err)
	assert.Empty(t, ids, "empty document should produce no chunks")
	assert.Equal(t, 0, corpus.Len())
}

func TestIngestAll(t *testing.T) {
	ctx := context.Background()
	p, corpus := newTestPipeline(t, ingest.WithChunkSize(10), ingest.WithPoolSize(2))

	docs := []ingest.Document{
		{Filename: "a.txt", Content: strings.Repeat("a", 25), SessionID: "s1"},
		{Filename: "b.txt", Content: strings.Repeat("b", 10), SessionID: "s1"},
		{Filename: "c.txt", Content: "", SessionID: "s1"},
	}

	ids, err := p.IngestAll(ctx, docs)
	require.NoError(t, err)
	assert.Len(t, ids, 4, "3 chunks from a.txt plus 1 from b.txt")
	assert.Equal(t, 4, corpus.Len())

	// Document order is preserved in the flattened id list.
	first, ok := corpus.Get(ids[0])
	require.True(t, ok)
	assert.Contains(t, first.Content, "[Document: a.txt] (Part 1/3)")
	last, ok := corpus.Get(ids[3])
	require.True(t, ok)
	assert.Contains(t, last.Content, "[Document: b.txt] (Part 1/1)")
}

func TestIngestAllCancelled(t *testing.T) {
	p, corpus := newTestPipeline(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.IngestAll(ctx, []ingest.Document{
		{Filename: "a.txt", Content: "hello"},
		{Filename: "b.txt", Content: "world"},
	})
	require.Error(t, err, "cancelled context should surface")
	assert.Equal(t, 0, corpus.Len(), "no chunks should be indexed after cancellation")
}
