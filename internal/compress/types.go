package compress

import (
	"time"

	"github.com/fyrsmithlabs/briefd/internal/config"
)

// Result is the outcome of one compression call.
//
// When Fallback is true no compression occurred: Output is the original
// input text verbatim and the token counts are a chars/4 estimate. Callers
// must treat fallback as "no compression", not as an error.
type Result struct {
	Output              string  `json:"output"`
	OutputTokens        int     `json:"output_tokens"`
	OriginalInputTokens int     `json:"original_input_tokens"`
	CompressionTime     float64 `json:"compression_time"`
	Cached              bool    `json:"cached"`
	Fallback            bool    `json:"fallback"`
}

// Config holds settings for the vendor client.
type Config struct {
	BaseURL        string
	APIKey         config.Secret
	Model          string
	Timeout        time.Duration
	MaxConcurrency int
	CacheTTL       time.Duration
}

// vendorRequest is the wire format the compression vendor accepts.
type vendorRequest struct {
	Model               string              `json:"model"`
	CompressionSettings compressionSettings `json:"compression_settings"`
	Input               string              `json:"input"`
}

type compressionSettings struct {
	Aggressiveness  float64 `json:"aggressiveness"`
	MaxOutputTokens *int    `json:"max_output_tokens"`
	MinOutputTokens *int    `json:"min_output_tokens"`
}

// vendorResponse is the wire format the compression vendor returns.
type vendorResponse struct {
	Output              string  `json:"output"`
	OutputTokens        int     `json:"output_tokens"`
	OriginalInputTokens int     `json:"original_input_tokens"`
	CompressionTime     float64 `json:"compression_time"`
}
