package models

import "time"

// AttachmentKind classifies an uploaded file after extraction.
type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentPDF   AttachmentKind = "pdf"
	AttachmentText  AttachmentKind = "text"
)

// Attachment is an uploaded file prepared for analysis. For PDFs and text
// files Text holds the (truncated) extracted content; for images Data
// holds the raw bytes, passed through opaquely.
type Attachment struct {
	Kind      AttachmentKind `json:"kind"`
	Filename  string         `json:"filename"`
	MediaType string         `json:"media_type,omitempty"`
	Text      string         `json:"text,omitempty"`
	Data      []byte         `json:"data,omitempty"`
}

// AnalyzeRequest is one analysis invocation. A missing SessionID is
// replaced with a fresh one by the orchestrator.
type AnalyzeRequest struct {
	Query         string       `json:"query"`
	SessionID     string       `json:"session_id,omitempty"`
	Attachments   []Attachment `json:"attachments,omitempty"`
	ThinkingLevel string       `json:"thinking_level,omitempty"`
}

// AnalyzeResult is the orchestrator's output: the answer, the reasoning
// fragments the backend exposed, the chart specs mined from the answer,
// and the memory context the answer was grounded on.
type AnalyzeResult struct {
	SessionID     string      `json:"session_id"`
	Result        string      `json:"result"`
	ThinkingTrace []string    `json:"thinking_trace"`
	Charts        []ChartSpec `json:"charts"`
	MemoryContext []MemoryHit `json:"memory_context"`
	Model         string      `json:"model,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
}

// AnalyzeResponse is the HTTP wire shape of an analysis: identical to
// AnalyzeResult except charts arrive rendered.
type AnalyzeResponse struct {
	SessionID     string          `json:"session_id"`
	Result        string          `json:"result"`
	ThinkingTrace []string        `json:"thinking_trace"`
	Charts        []RenderedChart `json:"charts"`
	MemoryContext []MemoryHit     `json:"memory_context"`
	Timestamp     time.Time       `json:"timestamp"`
}
