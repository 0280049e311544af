// Package backend runs analysis queries against language models. The
// entry point is the Chain, which degrades gracefully: primary model,
// one fallback model, then a locally synthesized placeholder that never
// fails. Callers therefore always receive a coherent analysis; only
// cancellation and caller-side stream errors propagate.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/raphaelgruber/helix-go/internal/config"
	"github.com/raphaelgruber/helix-go/internal/models"
)

// DeltaKind discriminates streamed analysis fragments.
type DeltaKind string

const (
	// DeltaThinking carries a fragment of the model's reasoning trace.
	DeltaThinking DeltaKind = "thinking"
	// DeltaText carries a fragment of the answer itself.
	DeltaText DeltaKind = "text"
)

// Delta is one streamed fragment of an analysis.
type Delta struct {
	Kind DeltaKind
	Text string
}

// Request is an analysis query plus the context assembled for it. Memory
// and corpus snippets arrive as plain strings in relevance order;
// attachment text is already extracted and truncated upstream.
type Request struct {
	Query          string
	MemorySnippets []string
	CorpusSnippets []string
	Attachments    []models.Attachment
	ThinkingLevel  string
	// ModelID optionally overrides the analyzer's configured model for
	// this request. Implementations that cannot switch models ignore it.
	ModelID string
}

// Response is a completed analysis. AnswerText may embed fenced chart
// blocks; mining them is the caller's concern.
type Response struct {
	AnswerText       string
	ThinkingSegments []string
	Model            string

	// Token usage as reported by the provider, zero when unknown.
	InputTokens  int64
	OutputTokens int64
}

// Analyzer produces an analysis for a request, whole or streamed.
type Analyzer interface {
	// Analyze runs the request to completion.
	Analyze(ctx context.Context, req Request) (*Response, error)
	// AnalyzeStream delivers the analysis incrementally through emit, in
	// order. A non-nil error from emit aborts the stream and is returned
	// unchanged.
	AnalyzeStream(ctx context.Context, req Request, emit func(Delta) error) error
	// Model names the model this analyzer calls by default.
	Model() string
}

// New builds the analysis chain selected by cfg.Backend. When the
// configured provider cannot be constructed (missing credentials, bad
// host) the chain degrades to placeholder-only instead of failing, so a
// half-configured install still answers queries. Unknown backend names
// are configuration mistakes and do error.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*Chain, error) {
	var primary, fallback Analyzer

	switch cfg.Backend {
	case "bedrock":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			log.Warn("analysis backend unavailable, using placeholder responses", "backend", cfg.Backend, "error", err)
			break
		}
		client := bedrockruntime.NewFromConfig(awsCfg)
		primary = NewBedrock(client, cfg.Model, log)
		if cfg.FallbackModel != "" {
			fallback = NewBedrock(client, cfg.FallbackModel, log)
		}

	case "ollama", "openai", "anthropic":
		p, err := NewLangChain(cfg, cfg.Model)
		if err != nil {
			log.Warn("analysis backend unavailable, using placeholder responses", "backend", cfg.Backend, "error", err)
			break
		}
		primary = p
		if cfg.FallbackModel != "" {
			f, err := NewLangChain(cfg, cfg.FallbackModel)
			if err != nil {
				log.Warn("fallback model unavailable", "model", cfg.FallbackModel, "error", err)
			} else {
				fallback = f
			}
		}

	case "placeholder":
		// Placeholder-only chain below.

	default:
		return nil, fmt.Errorf("unsupported analysis backend: %s", cfg.Backend)
	}

	return NewChain(primary, fallback, NewPlaceholder(), log), nil
}
