package models

import "time"

// MemoryRecord is one stored exchange: the query that was asked, the answer
// that was produced, and the files that accompanied it.
type MemoryRecord struct {
	Query     string   `json:"query"`
	Result    string   `json:"result"`
	Files     []string `json:"files,omitempty"`
	Timestamp string   `json:"timestamp"`
}

// EmbeddingText returns the text projection the record is embedded over.
func (r MemoryRecord) EmbeddingText() string {
	return r.Query + " " + r.Result
}

// MemoryItem is a MemoryRecord as stored in a session log.
type MemoryItem struct {
	ID        string       `json:"id"`
	Content   MemoryRecord `json:"content"`
	Embedding []float32    `json:"embedding"`
	CreatedAt time.Time    `json:"timestamp"`
}

// MemoryHit is a relevance-scored memory item as returned to the
// orchestration layer. No embedding is leaked to callers.
type MemoryHit struct {
	ID             string       `json:"id"`
	Content        MemoryRecord `json:"content"`
	Timestamp      time.Time    `json:"timestamp"`
	RelevanceScore float64      `json:"relevance_score"`
}

// HistoryEntry is a memory item in chronological listing form, without a
// relevance score.
type HistoryEntry struct {
	ID        string       `json:"id"`
	Content   MemoryRecord `json:"content"`
	Timestamp time.Time    `json:"timestamp"`
}

// SessionInfo summarizes one stored session.
type SessionInfo struct {
	SessionID   string     `json:"session_id"`
	MemoryCount int        `json:"memory_count"`
	LastUpdated *time.Time `json:"last_updated"`
}

// LearningPatterns is a lightweight summary of a session's history.
type LearningPatterns struct {
	TotalQueries    int      `json:"total_queries"`
	SessionDuration string   `json:"session_duration"`
	Patterns        []string `json:"patterns"`
	Insights        string   `json:"insights"`
}
