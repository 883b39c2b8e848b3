// Package compress wraps the token-compression vendor API.
//
// Compression is a cost optimization, not a correctness dependency: every
// failure mode (timeout, non-2xx, transport error) degrades to a fallback
// result carrying the original text, so the pipeline always has usable
// evidence whether or not the vendor is reachable.
package compress

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/fyrsmithlabs/briefd/internal/cache"
	"github.com/fyrsmithlabs/briefd/internal/logging"
)

const tracerName = "github.com/fyrsmithlabs/briefd/internal/compress"
const meterName = "compress"

// Client compresses text through the vendor API with caching, bounded
// concurrency, and fallback-to-original semantics.
type Client struct {
	config     Config
	httpClient *http.Client
	cache      *cache.Store[Result]
	sem        *semaphore.Weighted
	logger     *zap.Logger

	tracer trace.Tracer
	meter  metric.Meter

	callCounter  metric.Int64Counter
	callDuration metric.Float64Histogram
}

// NewClient creates a compression client. The logger is required.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.Model == "" {
		cfg.Model = "bear-1"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 4 * time.Second
	}
	if cfg.MaxConcurrency == 0 {
		cfg.MaxConcurrency = 3
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 12 * time.Hour
	}

	c := &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		cache:  cache.New[Result](cfg.CacheTTL),
		sem:    semaphore.NewWeighted(int64(cfg.MaxConcurrency)),
		logger: logger,
		tracer: otel.Tracer(tracerName),
		meter:  otel.Meter(meterName),
	}

	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return c, nil
}

// Compress compresses text at the given aggressiveness. It never returns an
// error: any failure yields a fallback result containing the original text.
func (c *Client) Compress(ctx context.Context, text string, aggressiveness float64) Result {
	ctx, span := c.tracer.Start(ctx, "compress.compress",
		trace.WithAttributes(
			attribute.Int("input_length", len(text)),
			attribute.Float64("aggressiveness", aggressiveness),
		),
	)
	defer span.End()

	log := c.logger.With(logging.ContextFields(ctx)...)
	key := cacheKey(text, aggressiveness)
	if cached, ok := c.cache.Get(key); ok {
		cached.Cached = true
		span.SetAttributes(attribute.String("outcome", "cached"))
		c.recordCall(ctx, "cached", 0)
		return cached
	}

	// FIFO queue behind the concurrency limit. A cancelled context while
	// queued is treated like any other failure.
	if err := c.sem.Acquire(ctx, 1); err != nil {
		log.Warn("compression slot acquire failed, falling back",
			zap.Error(err))
		c.recordCall(ctx, "fallback", 0)
		return fallbackResult(text)
	}
	defer c.sem.Release(1)

	start := time.Now()
	result, err := c.callVendor(ctx, text, aggressiveness)
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("outcome", "fallback"))
		log.Warn("compression failed, falling back to original text",
			zap.Error(err),
			zap.Int("input_length", len(text)),
			zap.Duration("elapsed", elapsed))
		c.recordCall(ctx, "fallback", elapsed)
		return fallbackResult(text)
	}

	c.cache.Put(key, result)

	span.SetAttributes(
		attribute.String("outcome", "success"),
		attribute.Int("output_tokens", result.OutputTokens),
		attribute.Int("original_input_tokens", result.OriginalInputTokens),
	)
	log.Debug("compressed evidence",
		zap.Int("original_input_tokens", result.OriginalInputTokens),
		zap.Int("output_tokens", result.OutputTokens),
		zap.Duration("elapsed", elapsed))
	c.recordCall(ctx, "success", elapsed)

	return result
}

// callVendor issues one compression request with a hard timeout.
func (c *Client) callVendor(ctx context.Context, text string, aggressiveness float64) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	body, err := json.Marshal(vendorRequest{
		Model: c.config.Model,
		CompressionSettings: compressionSettings{
			Aggressiveness: aggressiveness,
		},
		Input: text,
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/v1/compress", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.APIKey.IsSet() {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey.Value())
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("vendor request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("vendor error (%d): %s", resp.StatusCode, string(respBody))
	}

	var vr vendorResponse
	if err := json.Unmarshal(respBody, &vr); err != nil {
		return Result{}, fmt.Errorf("failed to parse response: %w", err)
	}

	return Result{
		Output:              vr.Output,
		OutputTokens:        vr.OutputTokens,
		OriginalInputTokens: vr.OriginalInputTokens,
		CompressionTime:     vr.CompressionTime,
	}, nil
}

// fallbackResult returns the original text verbatim with a chars/4 token
// estimate.
func fallbackResult(text string) Result {
	estimated := (len(text) + 3) / 4
	return Result{
		Output:              text,
		OutputTokens:        estimated,
		OriginalInputTokens: estimated,
		Fallback:            true,
	}
}

// cacheKey is a content hash over the input and aggressiveness, so the same
// evidence at a different setting gets its own entry.
func cacheKey(text string, aggressiveness float64) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s:%g", text, aggressiveness)))
	return hex.EncodeToString(h[:])
}

func (c *Client) recordCall(ctx context.Context, outcome string, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	c.callCounter.Add(ctx, 1, attrs)
	if elapsed > 0 {
		c.callDuration.Record(ctx, elapsed.Seconds(), attrs)
	}
}

func (c *Client) initMetrics() error {
	var err error

	c.callCounter, err = c.meter.Int64Counter(
		"compress.calls_total",
		metric.WithDescription("Total number of compression calls by outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create call counter: %w", err)
	}

	c.callDuration, err = c.meter.Float64Histogram(
		"compress.duration_seconds",
		metric.WithDescription("Time spent on compression vendor calls"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.5, 1.0, 2.0, 4.0, 8.0),
	)
	if err != nil {
		return fmt.Errorf("failed to create duration histogram: %w", err)
	}

	return nil
}
