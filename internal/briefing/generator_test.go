package briefing

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/briefd/internal/compress"
	"github.com/fyrsmithlabs/briefd/internal/evidence"
	"github.com/fyrsmithlabs/briefd/internal/genai"
)

// fakeLLM returns canned responses for generator tests.
type fakeLLM struct {
	response string
	err      error
	calls    int
}

func (f *fakeLLM) Generate(ctx context.Context, system, prompt string, jsonMode bool) (*genai.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &genai.Result{Text: f.response, InputTokens: 100, OutputTokens: 50}, nil
}

func validModelOutput(t *testing.T, mutate func(map[string]any)) string {
	t.Helper()
	out := map[string]any{
		"generated_at": "2026-08-30T08:00:00Z",
		"greeting":     "Good morning",
		"narrative":    "Quiet day ahead.",
		"time_context": map[string]any{"local_time": "8:00 AM", "timezone": "UTC"},
		"highlights": []any{
			map[string]any{
				"type":           "calendar",
				"title":          "Design review at 10",
				"detail":         "One hour with the platform team.",
				"why_it_matters": "Blocks the release branch.",
				"urgency":        "medium",
				"sources":        []any{map[string]any{"kind": "calendar", "id": "CAL[evt_x1]", "label": "Design review"}},
			},
		},
		"recommendations": []any{},
		"rollup": map[string]any{
			"email":    map[string]any{"unread_count": 3},
			"calendar": map[string]any{"today_count": 1},
			"github":   map[string]any{"active_repos": []any{"org/app"}},
		},
	}
	if mutate != nil {
		mutate(out)
	}
	data, err := json.Marshal(out)
	require.NoError(t, err)
	return string(data)
}

func testPack() *evidence.Pack {
	return evidence.BuildPack(evidence.Sources{
		Calendar: evidence.CalendarResult{Connected: true, Events: []evidence.CalendarEvent{
			{ID: "evt_x1", Title: "Design review"},
		}},
	})
}

func newTestGenerator(t *testing.T, llm genai.Client) *Generator {
	t.Helper()
	g, err := NewGenerator(llm, zap.NewNop())
	require.NoError(t, err)
	g.now = func() time.Time { return time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC) }
	return g
}

func TestGenerator_Generate_Success(t *testing.T) {
	llm := &fakeLLM{response: validModelOutput(t, nil)}
	g := newTestGenerator(t, llm)

	comp := compress.Result{Output: "compressed", OutputTokens: 10, OriginalInputTokens: 40, CompressionTime: 0.2}
	b, ok := g.Generate(context.Background(), testPack(), comp, false)

	require.True(t, ok)
	assert.Equal(t, "Good morning", b.Greeting)
	require.Len(t, b.Highlights, 1)
	assert.Equal(t, "Design review at 10", b.Highlights[0].Title)

	require.NotNil(t, b.Debug)
	assert.Equal(t, 40, b.Debug.Compression.OriginalInputTokens)
	assert.Equal(t, 10, b.Debug.Compression.OutputTokens)
	assert.Equal(t, 0.2, b.Debug.Compression.CompressionTime)
}

func TestGenerator_Generate_StripsCodeFence(t *testing.T) {
	llm := &fakeLLM{response: "```json\n" + validModelOutput(t, nil) + "\n```"}
	g := newTestGenerator(t, llm)

	b, ok := g.Generate(context.Background(), testPack(), compress.Result{}, false)
	require.True(t, ok)
	assert.Equal(t, "Good morning", b.Greeting)
}

func TestGenerator_Generate_ModelErrorFallsBack(t *testing.T) {
	llm := &fakeLLM{err: errors.New("transport closed")}
	g := newTestGenerator(t, llm)

	b, ok := g.Generate(context.Background(), testPack(), compress.Result{}, false)
	assert.False(t, ok)
	assert.Equal(t, Fallback(g.now()), b)
	require.Len(t, b.Highlights, 1)
	assert.Equal(t, "System Update", b.Highlights[0].Title)
	assert.NoError(t, b.Validate())
}

func TestGenerator_Generate_NonJSONFallsBack(t *testing.T) {
	llm := &fakeLLM{response: "I'm sorry, I can't produce JSON today."}
	g := newTestGenerator(t, llm)

	b, ok := g.Generate(context.Background(), testPack(), compress.Result{}, false)
	assert.False(t, ok)
	require.Len(t, b.Highlights, 1)
	assert.Equal(t, Fallback(g.now()), b)
}

func TestGenerator_Generate_InvalidSchemaFallsBack(t *testing.T) {
	llm := &fakeLLM{response: validModelOutput(t, func(out map[string]any) {
		out["highlights"].([]any)[0].(map[string]any)["urgency"] = "critical"
	})}
	g := newTestGenerator(t, llm)

	b, ok := g.Generate(context.Background(), testPack(), compress.Result{}, false)
	assert.False(t, ok)
	assert.Equal(t, Fallback(g.now()), b)
}

func TestGenerator_Generate_AuthDegradedHighlightFirst(t *testing.T) {
	llm := &fakeLLM{response: validModelOutput(t, nil)}
	g := newTestGenerator(t, llm)

	b, ok := g.Generate(context.Background(), testPack(), compress.Result{}, true)
	require.True(t, ok)
	require.GreaterOrEqual(t, len(b.Highlights), 2)
	assert.Equal(t, "email", b.Highlights[0].Type)
	assert.Equal(t, "Connect Your Accounts", b.Highlights[0].Title)
	assert.Equal(t, UrgencyHigh, b.Highlights[0].Urgency)
	assert.Equal(t, "Design review at 10", b.Highlights[1].Title)
}

func TestGenerator_Generate_EmptyHighlightsInjectsPlaceholder(t *testing.T) {
	llm := &fakeLLM{response: validModelOutput(t, func(out map[string]any) {
		out["highlights"] = []any{}
	})}
	g := newTestGenerator(t, llm)

	b, ok := g.Generate(context.Background(), testPack(), compress.Result{}, false)
	require.True(t, ok)
	require.Len(t, b.Highlights, 1)
	assert.Equal(t, "No Major Updates", b.Highlights[0].Title)
	assert.Equal(t, UrgencyLow, b.Highlights[0].Urgency)
}

func TestGenerator_Generate_MissingRecommendationsDefaulted(t *testing.T) {
	llm := &fakeLLM{response: validModelOutput(t, func(out map[string]any) {
		delete(out, "recommendations")
	})}
	g := newTestGenerator(t, llm)

	b, ok := g.Generate(context.Background(), testPack(), compress.Result{}, false)
	require.True(t, ok)
	assert.NotNil(t, b.Recommendations)
	assert.Empty(t, b.Recommendations)
}

func TestGenerator_Generate_DropsHallucinatedCitations(t *testing.T) {
	llm := &fakeLLM{response: validModelOutput(t, func(out map[string]any) {
		out["highlights"].([]any)[0].(map[string]any)["sources"] = []any{
			map[string]any{"kind": "calendar", "id": "CAL[evt_x1]", "label": "real"},
			map[string]any{"kind": "email", "id": "EMAIL[made_up]", "label": "hallucinated"},
		}
	})}
	g := newTestGenerator(t, llm)

	b, ok := g.Generate(context.Background(), testPack(), compress.Result{}, false)
	require.True(t, ok)
	require.Len(t, b.Highlights[0].Sources, 1)
	assert.Equal(t, "CAL[evt_x1]", b.Highlights[0].Sources[0].ID)
}

func TestBriefing_Validate(t *testing.T) {
	valid := func() *Briefing {
		return &Briefing{
			GeneratedAt: "2026-08-30T08:00:00Z",
			Greeting:    "Good morning",
			Highlights: []Highlight{
				{Title: "t", Urgency: UrgencyLow},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Briefing)
		wantErr string
	}{
		{"valid", func(b *Briefing) {}, ""},
		{"missing generated_at", func(b *Briefing) { b.GeneratedAt = "" }, "generated_at"},
		{"missing greeting", func(b *Briefing) { b.Greeting = "" }, "greeting"},
		{"empty highlights", func(b *Briefing) { b.Highlights = nil }, "highlights"},
		{"missing highlight title", func(b *Briefing) { b.Highlights[0].Title = "" }, "title"},
		{"title too long", func(b *Briefing) { b.Highlights[0].Title = strings.Repeat("x", 201) }, "title exceeds"},
		{"detail too long", func(b *Briefing) { b.Highlights[0].Detail = strings.Repeat("x", 501) }, "detail exceeds"},
		{"why too long", func(b *Briefing) { b.Highlights[0].WhyItMatters = strings.Repeat("x", 501) }, "why_it_matters"},
		{"bad urgency", func(b *Briefing) { b.Highlights[0].Urgency = "urgent" }, "urgency"},
		{"recommendation missing action", func(b *Briefing) {
			b.Recommendations = []Recommendation{{}}
		}, "action"},
		{"recommendation action too long", func(b *Briefing) {
			b.Recommendations = []Recommendation{{Action: strings.Repeat("x", 201)}}
		}, "action exceeds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := valid()
			tt.mutate(b)
			err := b.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestFallback_IsValid(t *testing.T) {
	b := Fallback(time.Now())
	assert.NoError(t, b.Validate())
	require.Len(t, b.Highlights, 1)
	assert.Equal(t, UrgencyLow, b.Highlights[0].Urgency)
	assert.Empty(t, b.Recommendations)
	assert.Empty(t, b.Rollup.GitHub.ActiveRepos)
	assert.Zero(t, b.Rollup.Email.UnreadCount)
}
