// Package briefing builds, validates, and caches the structured narrative
// briefing produced from a compressed evidence pack.
//
// Generation is a linear state machine: PromptBuild, ModelCall, Parse,
// Repair, Validate, with a terminal Fallback state reachable from every
// stage. The caller always receives a schema-valid Briefing; no stage
// failure escapes this package.
package briefing

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/briefd/internal/compress"
	"github.com/fyrsmithlabs/briefd/internal/evidence"
	"github.com/fyrsmithlabs/briefd/internal/genai"
	"github.com/fyrsmithlabs/briefd/internal/logging"
)

const tracerName = "github.com/fyrsmithlabs/briefd/internal/briefing"

// codeFencePattern strips optional markdown fencing around model output.
var codeFencePattern = regexp.MustCompile("```json\n?|\n?```")

// Generator turns compressed evidence into a validated Briefing.
type Generator struct {
	llm    genai.Client
	logger *zap.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewGenerator creates a generator. Both arguments are required.
func NewGenerator(llm genai.Client, logger *zap.Logger) (*Generator, error) {
	if llm == nil {
		return nil, fmt.Errorf("model client is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Generator{
		llm:    llm,
		logger: logger,
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}, nil
}

// Generate runs the generation state machine. The returned briefing is
// always schema-valid; ok reports whether it came from a real model
// response (false means the static fallback).
func (g *Generator) Generate(ctx context.Context, pack *evidence.Pack, comp compress.Result, authDegraded bool) (b *Briefing, ok bool) {
	ctx, span := g.tracer.Start(ctx, "briefing.generate",
		trace.WithAttributes(
			attribute.Int("index_items", len(pack.Index)),
			attribute.Bool("auth_degraded", authDegraded),
		),
	)
	defer span.End()

	log := g.logger.With(logging.ContextFields(ctx)...)
	prompt := buildPrompt(pack.IndexJSON(), comp.Output, g.now())

	result, err := g.llm.Generate(ctx, "", prompt, true)
	if err != nil {
		span.RecordError(err)
		log.Warn("model call failed, serving fallback briefing", zap.Error(err))
		return Fallback(g.now()), false
	}

	parsed, err := parseBriefing(result.Text)
	if err != nil {
		span.RecordError(err)
		log.Warn("model output failed to parse, serving fallback briefing",
			zap.Error(err),
			zap.Int("output_length", len(result.Text)))
		return Fallback(g.now()), false
	}

	repaired := repair(parsed, authDegraded, comp, pack)

	if err := repaired.Validate(); err != nil {
		span.RecordError(err)
		log.Warn("briefing failed validation, serving fallback briefing", zap.Error(err))
		return Fallback(g.now()), false
	}

	span.SetAttributes(attribute.Int("highlights", len(repaired.Highlights)))
	return repaired, true
}

// parseBriefing strips optional code-fence wrapping and decodes the model's
// JSON output.
func parseBriefing(raw string) (*Briefing, error) {
	cleaned := strings.TrimSpace(codeFencePattern.ReplaceAllString(raw, ""))
	var b Briefing
	if err := json.Unmarshal([]byte(cleaned), &b); err != nil {
		return nil, fmt.Errorf("failed to parse model output: %w", err)
	}
	return &b, nil
}

// repair applies deterministic post-processing to the parsed briefing. It is
// applied unconditionally, never left to the model:
//
//   - auth-degraded runs get a high-urgency "Connect Your Accounts" highlight
//     prepended, taking priority over anything the model produced
//   - otherwise an empty highlight list gets a single low-urgency placeholder
//   - absent recommendations default to an empty list
//   - citations pointing at ids absent from the item index are dropped
//   - a debug block attaches the compression stage's metrics
func repair(b *Briefing, authDegraded bool, comp compress.Result, pack *evidence.Pack) *Briefing {
	out := *b

	if authDegraded {
		out.Highlights = append([]Highlight{{
			Type:         "email",
			Title:        "Connect Your Accounts",
			Detail:       "We couldn't access your Email or Calendar. Please connect your Google account in settings.",
			WhyItMatters: "Briefings are best with full context.",
			Urgency:      UrgencyHigh,
			Sources:      []SourceRef{},
		}}, out.Highlights...)
	} else if len(out.Highlights) == 0 {
		out.Highlights = []Highlight{{
			Type:         "messages",
			Title:        "No Major Updates",
			Detail:       "No significant activity detected in your connected sources.",
			WhyItMatters: "Your dashboard is ready when you are.",
			Urgency:      UrgencyLow,
			Sources:      []SourceRef{},
		}}
	}

	if out.Recommendations == nil {
		out.Recommendations = []Recommendation{}
	}

	for i := range out.Highlights {
		out.Highlights[i].Sources = dropUnknownSources(out.Highlights[i].Sources, pack)
	}
	for i := range out.Recommendations {
		out.Recommendations[i].Sources = dropUnknownSources(out.Recommendations[i].Sources, pack)
	}

	out.Debug = &Debug{
		Compression: CompressionDebug{
			OriginalInputTokens: comp.OriginalInputTokens,
			OutputTokens:        comp.OutputTokens,
			CompressionTime:     comp.CompressionTime,
			Fallback:            comp.Fallback,
		},
	}

	return &out
}

// dropUnknownSources removes citations whose id is not in the item index, so
// a hallucinated id never reaches the caller.
func dropUnknownSources(refs []SourceRef, pack *evidence.Pack) []SourceRef {
	if refs == nil {
		return []SourceRef{}
	}
	kept := refs[:0]
	for _, ref := range refs {
		if pack.HasItem(ref.ID) {
			kept = append(kept, ref)
		}
	}
	return kept
}
