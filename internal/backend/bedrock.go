package backend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/raphaelgruber/helix-go/internal/models"
)

const (
	thinkingBudgetLow  = 1024
	thinkingBudgetHigh = 4096
	maxResponseTokens  = 8192
)

// Bedrock analyzes via the AWS Bedrock Converse API. Reasoning-capable
// models surface their thinking as reasoning content, which maps onto
// thinking segments and deltas.
type Bedrock struct {
	client  *bedrockruntime.Client
	modelID string
	log     *slog.Logger
}

// NewBedrock wraps an existing Bedrock runtime client. The chain shares
// one client between its primary and fallback models.
func NewBedrock(client *bedrockruntime.Client, modelID string, log *slog.Logger) *Bedrock {
	return &Bedrock{client: client, modelID: modelID, log: log}
}

// Model implements Analyzer.
func (b *Bedrock) Model() string {
	return b.modelID
}

func (b *Bedrock) model(req Request) string {
	if req.ModelID != "" {
		return req.ModelID
	}
	return b.modelID
}

// Analyze implements Analyzer with a single Converse call.
func (b *Bedrock) Analyze(ctx context.Context, req Request) (*Response, error) {
	out, err := b.client.Converse(ctx, b.converseInput(req))
	if err != nil {
		return nil, fmt.Errorf("bedrock converse: %w", err)
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, fmt.Errorf("bedrock converse: unexpected output type %T", out.Output)
	}

	resp := &Response{Model: b.model(req)}
	if out.Usage != nil {
		resp.InputTokens = int64(aws.ToInt32(out.Usage.InputTokens))
		resp.OutputTokens = int64(aws.ToInt32(out.Usage.OutputTokens))
	}
	var answer strings.Builder
	for _, block := range msg.Value.Content {
		switch v := block.(type) {
		case *types.ContentBlockMemberText:
			answer.WriteString(v.Value)
		case *types.ContentBlockMemberReasoningContent:
			if r, ok := v.Value.(*types.ReasoningContentBlockMemberReasoningText); ok {
				resp.ThinkingSegments = append(resp.ThinkingSegments, aws.ToString(r.Value.Text))
			}
		}
	}
	resp.AnswerText = answer.String()
	return resp, nil
}

// AnalyzeStream implements Analyzer over ConverseStream: reasoning deltas
// become thinking deltas, text deltas become text.
func (b *Bedrock) AnalyzeStream(ctx context.Context, req Request, emit func(Delta) error) error {
	input := b.converseInput(req)
	out, err := b.client.ConverseStream(ctx, &bedrockruntime.ConverseStreamInput{
		ModelId:                      input.ModelId,
		Messages:                     input.Messages,
		System:                       input.System,
		InferenceConfig:              input.InferenceConfig,
		AdditionalModelRequestFields: input.AdditionalModelRequestFields,
	})
	if err != nil {
		return fmt.Errorf("bedrock converse stream: %w", err)
	}

	stream := out.GetStream()
	defer stream.Close()

	for event := range stream.Events() {
		blockDelta, ok := event.(*types.ConverseStreamOutputMemberContentBlockDelta)
		if !ok {
			continue
		}
		switch v := blockDelta.Value.Delta.(type) {
		case *types.ContentBlockDeltaMemberText:
			if err := emit(Delta{Kind: DeltaText, Text: v.Value}); err != nil {
				return err
			}
		case *types.ContentBlockDeltaMemberReasoningContent:
			if r, ok := v.Value.(*types.ReasoningContentBlockDeltaMemberText); ok {
				if err := emit(Delta{Kind: DeltaThinking, Text: r.Value}); err != nil {
					return err
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("bedrock stream: %w", err)
	}
	return nil
}

func (b *Bedrock) converseInput(req Request) *bedrockruntime.ConverseInput {
	content := []types.ContentBlock{
		&types.ContentBlockMemberText{Value: buildUserPrompt(req)},
	}
	for _, att := range req.Attachments {
		if att.Kind == models.AttachmentImage {
			format, ok := imageFormat(att.MediaType)
			if !ok {
				b.log.Warn("skipping unsupported image attachment", "filename", att.Filename, "media_type", att.MediaType)
				continue
			}
			content = append(content, &types.ContentBlockMemberImage{
				Value: types.ImageBlock{
					Format: format,
					Source: &types.ImageSourceMemberBytes{Value: att.Data},
				},
			})
			continue
		}
		if section := attachmentSection(att); section != "" {
			content = append(content, &types.ContentBlockMemberText{Value: section})
		}
	}

	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(b.model(req)),
		Messages: []types.Message{{
			Role:    types.ConversationRoleUser,
			Content: content,
		}},
		System: []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: systemPrompt},
		},
	}

	if budget := thinkingBudget(req.ThinkingLevel); budget > 0 {
		// Extended thinking goes through additional model request fields;
		// temperature and top_p must stay unset while it is enabled.
		input.AdditionalModelRequestFields = document.NewLazyDocument(map[string]any{
			"thinking": map[string]any{
				"type":          "enabled",
				"budget_tokens": budget,
			},
		})
		input.InferenceConfig = &types.InferenceConfiguration{
			MaxTokens: aws.Int32(maxResponseTokens),
		}
	} else {
		input.InferenceConfig = &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(maxResponseTokens),
			Temperature: aws.Float32(0.7),
			TopP:        aws.Float32(0.95),
		}
	}

	return input
}

func thinkingBudget(level string) int {
	switch strings.ToLower(level) {
	case "low":
		return thinkingBudgetLow
	case "high":
		return thinkingBudgetHigh
	default:
		return 0
	}
}

func imageFormat(mediaType string) (types.ImageFormat, bool) {
	switch mediaType {
	case "image/png":
		return types.ImageFormatPng, true
	case "image/jpeg", "image/jpg":
		return types.ImageFormatJpeg, true
	case "image/gif":
		return types.ImageFormatGif, true
	case "image/webp":
		return types.ImageFormatWebp, true
	default:
		return "", false
	}
}
