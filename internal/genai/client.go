// Package genai provides the generative-model client used by the briefing
// and query paths.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/briefd/internal/config"
)

const (
	defaultModel     = "gemini-2.5-flash"
	defaultBaseURL   = "https://generativelanguage.googleapis.com"
	defaultTimeout   = 60 * time.Second
	defaultRateLimit = 2
	defaultBurst     = 4
	maxOutputTokens  = 8192
)

// Result is one model completion with token accounting.
type Result struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Client defines the interface for generative-model interactions.
// This enables testing with fakes.
type Client interface {
	// Generate produces a completion for the prompt. When jsonMode is set
	// the model is asked for JSON-typed output. The system instruction may
	// be empty.
	Generate(ctx context.Context, system, prompt string, jsonMode bool) (*Result, error)
}

// Config holds model client settings.
type Config struct {
	BaseURL   string
	APIKey    config.Secret
	Model     string
	RateLimit float64
	Timeout   time.Duration
}

// HTTPClient implements Client against the Gemini generateContent API.
type HTTPClient struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewHTTPClient creates a model client.
func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	if !cfg.APIKey.IsSet() {
		return nil, fmt.Errorf("model API key required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}

	return &HTTPClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), defaultBurst),
	}, nil
}

type generateRequest struct {
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	Contents          []content         `json:"contents"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMIMEType string `json:"responseMimeType,omitempty"`
	MaxOutputTokens  int    `json:"maxOutputTokens,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate sends one completion request, rate limited.
func (c *HTTPClient) Generate(ctx context.Context, system, prompt string, jsonMode bool) (*Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	req := generateRequest{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: prompt}}},
		},
		GenerationConfig: &generationConfig{
			MaxOutputTokens: maxOutputTokens,
		},
	}
	if system != "" {
		req.SystemInstruction = &content{Parts: []part{{Text: system}}}
	}
	if jsonMode {
		req.GenerationConfig.ResponseMIMEType = "application/json"
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.config.BaseURL, c.config.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Goog-Api-Key", c.config.APIKey.Value())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("model request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var gr generateResponse
	if err := json.Unmarshal(respBody, &gr); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if gr.Error != nil {
			return nil, fmt.Errorf("model error (%d): %s", resp.StatusCode, gr.Error.Message)
		}
		return nil, fmt.Errorf("model error (%d): %s", resp.StatusCode, string(respBody))
	}

	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty response from model")
	}

	// Long completions arrive split across multiple parts of one candidate;
	// the text is their concatenation.
	var text strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}

	return &Result{
		Text:         text.String(),
		InputTokens:  gr.UsageMetadata.PromptTokenCount,
		OutputTokens: gr.UsageMetadata.CandidatesTokenCount,
	}, nil
}
