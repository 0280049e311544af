package backend

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/raphaelgruber/helix-go/internal/config"
	"github.com/raphaelgruber/helix-go/internal/models"
)

// LangChain analyzes via a langchaingo chat model (ollama, openai or
// anthropic). These providers expose no reasoning trace here, so
// responses carry no thinking segments. The model is bound at
// construction; Request.ModelID is ignored.
type LangChain struct {
	llm     llms.Model
	modelID string
}

// NewLangChain creates an analyzer for the provider selected by
// cfg.Backend, bound to the given model.
func NewLangChain(cfg config.Config, modelID string) (*LangChain, error) {
	var (
		model llms.Model
		err   error
	)

	switch cfg.Backend {
	case "ollama":
		model, err = ollama.New(
			ollama.WithModel(modelID),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIKey),
			openai.WithModel(modelID),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case "anthropic":
		if cfg.AnthropicKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicKey),
			anthropic.WithModel(modelID),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Backend)
	}

	return &LangChain{llm: model, modelID: modelID}, nil
}

// Model implements Analyzer.
func (l *LangChain) Model() string {
	return l.modelID
}

// Analyze implements Analyzer.
func (l *LangChain) Analyze(ctx context.Context, req Request) (*Response, error) {
	resp, err := l.llm.GenerateContent(ctx, l.messages(req),
		llms.WithMaxTokens(maxResponseTokens),
		llms.WithTemperature(0.7),
		llms.WithTopP(0.95),
	)
	if err != nil {
		return nil, fmt.Errorf("generate analysis: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response choices")
	}
	choice := resp.Choices[0]

	out := &Response{AnswerText: choice.Content, Model: l.modelID}
	// Providers disagree on the usage keys they report.
	out.InputTokens = usageTokens(choice.GenerationInfo, "PromptTokens", "InputTokens")
	out.OutputTokens = usageTokens(choice.GenerationInfo, "CompletionTokens", "OutputTokens")
	return out, nil
}

func usageTokens(info map[string]any, keys ...string) int64 {
	for _, key := range keys {
		switch v := info[key].(type) {
		case int:
			return int64(v)
		case int64:
			return v
		case float64:
			return int64(v)
		}
	}
	return 0
}

// AnalyzeStream implements Analyzer via langchaingo's streaming callback.
func (l *LangChain) AnalyzeStream(ctx context.Context, req Request, emit func(Delta) error) error {
	_, err := l.llm.GenerateContent(ctx, l.messages(req),
		llms.WithMaxTokens(maxResponseTokens),
		llms.WithTemperature(0.7),
		llms.WithTopP(0.95),
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			return emit(Delta{Kind: DeltaText, Text: string(chunk)})
		}),
	)
	if err != nil {
		return fmt.Errorf("stream analysis: %w", err)
	}
	return nil
}

func (l *LangChain) messages(req Request) []llms.MessageContent {
	parts := []llms.ContentPart{llms.TextPart(buildUserPrompt(req))}
	for _, att := range req.Attachments {
		if att.Kind == models.AttachmentImage {
			parts = append(parts, llms.BinaryPart(att.MediaType, att.Data))
			continue
		}
		if section := attachmentSection(att); section != "" {
			parts = append(parts, llms.TextPart(section))
		}
	}

	return []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		{Role: llms.ChatMessageTypeHuman, Parts: parts},
	}
}
