package query

import (
	"context"
	"fmt"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/briefd/internal/genai"
)

const maxReceipts = 10

// spokenSystemPrompt scopes the query path's generation call at a spoken
// summary rather than structured JSON.
const spokenSystemPrompt = `You are a voice-first situational awareness agent for engineering teams.
You speak like a calm senior engineer giving a standup update. Factual, brief, no filler.

Rules:
- Only use the provided data, never invent or speculate
- Prefer short, spoken sentences
- No markdown, emojis, or complex formatting
- Answer naturally as if speaking aloud
- When listing items, use "First..., Second..., Third..."
- Prioritize: CI failures > mentions > recent activity > emails`

// Receipt points at one underlying event backing the summary.
type Receipt struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// TokenStats reports token accounting for one query.
// CompressionRatio is original/input, or null when input is zero.
type TokenStats struct {
	InputTokens      int      `json:"input_tokens"`
	OutputTokens     int      `json:"output_tokens"`
	CompressionRatio *float64 `json:"compression_ratio"`
}

// Response is the result of one conversational query.
type Response struct {
	Summary    string     `json:"summary"`
	Receipts   []Receipt  `json:"receipts"`
	TokenStats TokenStats `json:"token_stats"`
}

// Engine processes conversational queries end to end.
type Engine struct {
	aggregator *Aggregator
	llm        genai.Client
	tokenizer  *tiktoken.Tiktoken
	logger     *zap.Logger
}

// NewEngine creates a query engine.
func NewEngine(aggregator *Aggregator, llm genai.Client, logger *zap.Logger) (*Engine, error) {
	if aggregator == nil {
		return nil, fmt.Errorf("aggregator is required")
	}
	if llm == nil {
		return nil, fmt.Errorf("model client is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("get tokenizer: %w", err)
	}

	return &Engine{
		aggregator: aggregator,
		llm:        llm,
		tokenizer:  enc,
		logger:     logger,
	}, nil
}

// ProcessQuery detects the query's intent, aggregates context across all
// configured sources, and generates a spoken summary.
func (e *Engine) ProcessQuery(ctx context.Context, queryText, workspaceID string) (*Response, error) {
	intent := DetectIntent(queryText)
	e.logger.Debug("detected intent",
		zap.String("type", string(intent.Type)),
		zap.String("workspace_id", workspaceID))

	agg := e.aggregator.Aggregate(ctx, intent, workspaceID)

	originalTokens := len(e.tokenizer.Encode(agg.TextContext, nil, nil))

	prompt := fmt.Sprintf("Intent: %s\n\nContext:\n%s\n\nProvide a concise spoken summary.",
		intent.Prompt(), agg.TextContext)

	result, err := e.llm.Generate(ctx, spokenSystemPrompt, prompt, false)
	if err != nil {
		return nil, fmt.Errorf("summary generation failed: %w", err)
	}

	var ratio *float64
	if result.InputTokens > 0 {
		r := float64(originalTokens) / float64(result.InputTokens)
		ratio = &r
	}

	return &Response{
		Summary:  result.Text,
		Receipts: extractReceipts(agg.Events),
		TokenStats: TokenStats{
			InputTokens:      result.InputTokens,
			OutputTokens:     result.OutputTokens,
			CompressionRatio: ratio,
		},
	}, nil
}

// extractReceipts maps url-bearing events to capped receipts.
func extractReceipts(events []Event) []Receipt {
	receipts := make([]Receipt, 0, maxReceipts)
	for _, e := range events {
		if e.URL == "" {
			continue
		}
		title := e.Title
		if title == "" {
			title = e.EventType
		}
		receipts = append(receipts, Receipt{
			Type:  receiptType(e.Integration, e.EventType),
			Title: title,
			URL:   e.URL,
		})
		if len(receipts) == maxReceipts {
			break
		}
	}
	return receipts
}

func receiptType(integration, eventType string) string {
	switch integration {
	case "github":
		if eventType == "pull_request" {
			return "pr"
		}
		return "commit"
	case "slack", "teams":
		return "slack"
	case "gmail":
		return "email"
	case "calendar":
		return "event"
	case "linear":
		return "issue"
	default:
		return "commit"
	}
}
