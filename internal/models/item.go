// Package models defines data structures for the Helix analysis pipeline.
package models

import "time"

// IndexedItem is a single entry in a similarity collection. Items are
// immutable once stored except for deletion; the vector is produced by the
// configured embedder and always has the collection's dimension.
type IndexedItem struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	SessionID string         `json:"session_id,omitempty"` // empty means corpus-wide
	Metadata  map[string]any `json:"metadata,omitempty"`
	Embedding []float32      `json:"embedding"`
	CreatedAt time.Time      `json:"timestamp"`

	// Seq restores insertion order after reload; the persisted file is
	// keyed by id and carries no ordering of its own.
	Seq uint64 `json:"seq"`
}

// SearchHit is one scored result from a similarity search. The stored
// vector is deliberately not included.
type SearchHit struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	SessionID string    `json:"session_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Score     float64   `json:"score"`
}

// IndexStats summarizes a collection's contents.
type IndexStats struct {
	TotalDocuments int            `json:"total_documents"`
	EmbeddingModel string         `json:"embedding_model"`
	EmbeddingDim   int            `json:"embedding_dim"`
	Sessions       map[string]int `json:"sessions,omitempty"` // item count per scope, "" is corpus-wide
}
