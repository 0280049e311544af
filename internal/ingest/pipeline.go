// Package ingest feeds uploaded documents into the corpus index. Each
// document is split into fixed-size chunks, every chunk is wrapped with a
// provenance header naming its source file and position, and the chunks
// are indexed in order.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/raphaelgruber/helix-go/internal/index"
	"github.com/raphaelgruber/helix-go/internal/parser"
)

// Document is one ingestible text document. SessionID scopes the indexed
// chunks to a session; empty means globally visible.
type Document struct {
	Filename  string
	Content   string
	SessionID string
}

// Pipeline chunks documents and indexes them, fanning batches out over a
// shared worker pool.
type Pipeline struct {
	corpus    *index.Collection
	chunkSize int
	pool      *ants.Pool
	log       *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithChunkSize sets the chunk length. Non-positive sizes keep the
// parser default.
func WithChunkSize(size int) Option {
	return func(p *Pipeline) error {
		if size > 0 {
			p.chunkSize = size
		}
		return nil
	}
}

// WithPoolSize sets the worker pool size for batch ingestion.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// New creates a pipeline writing into the given corpus collection.
func New(corpus *index.Collection, log *slog.Logger, opts ...Option) (*Pipeline, error) {
	if corpus == nil {
		return nil, errors.New("ingest: corpus collection required")
	}
	if log == nil {
		log = slog.Default()
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		corpus:    corpus,
		chunkSize: parser.DefaultChunkSize,
		pool:      pool,
		log:       log,
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			p.Release()
			return nil, err
		}
	}
	return p, nil
}

// IngestDocument splits one document and indexes every chunk. Returned ids
// are in chunk order. Indexing stops at the first chunk that fails; the ids
// indexed so far are returned alongside the error. An empty document is a
// no-op.
func (p *Pipeline) IngestDocument(ctx context.Context, doc Document) ([]string, error) {
	chunks := parser.ChunkDocument(doc.Content, p.chunkSize)
	if len(chunks) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		content := fmt.Sprintf("[Document: %s] (Part %d/%d)\n%s", doc.Filename, i+1, len(chunks), chunk)
		metadata := map[string]any{
			"type":         "uploaded_document",
			"filename":     doc.Filename,
			"chunk_index":  i,
			"total_chunks": len(chunks),
		}

		id, err := p.corpus.Add(ctx, content, doc.SessionID, metadata)
		if err != nil {
			return ids, fmt.Errorf("index chunk %d of %s: %w", i, doc.Filename, err)
		}
		ids = append(ids, id)
	}

	p.log.Info("document ingested", "filename", doc.Filename, "chunks", len(chunks), "session", doc.SessionID)
	return ids, nil
}

// IngestAll processes documents concurrently on the worker pool and waits
// for all of them. A failing document does not stop its siblings; the ids
// of every successfully indexed chunk are returned in document order along
// with the joined per-document errors.
func (p *Pipeline) IngestAll(ctx context.Context, docs []Document) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	var wg sync.WaitGroup
	idsPerDoc := make([][]string, len(docs))
	errs := make([]error, len(docs))

	for i, doc := range docs {
		wg.Add(1)
		if submitErr := p.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				errs[i] = ctx.Err()
				return
			}
			idsPerDoc[i], errs[i] = p.IngestDocument(ctx, doc)
		}); submitErr != nil {
			wg.Done()
			errs[i] = fmt.Errorf("submit %s: %w", doc.Filename, submitErr)
		}
	}
	wg.Wait()

	var all []string
	for _, ids := range idsPerDoc {
		all = append(all, ids...)
	}
	return all, errors.Join(errs...)
}

// Release frees the worker pool. The pipeline must not be used afterwards.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
