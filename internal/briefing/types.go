package briefing

import (
	"fmt"
	"time"
)

// Urgency levels allowed on a highlight.
const (
	UrgencyHigh   = "high"
	UrgencyMedium = "medium"
	UrgencyLow    = "low"
)

// Field length caps enforced by Validate.
const (
	maxTitleLen  = 200
	maxDetailLen = 500
	maxActionLen = 200
)

// SourceRef cites an evidence item by its index id.
type SourceRef struct {
	Kind  string `json:"kind"`
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Highlight is one attention-worthy item in the briefing.
type Highlight struct {
	Type         string      `json:"type"`
	Title        string      `json:"title"`
	Detail       string      `json:"detail"`
	WhyItMatters string      `json:"why_it_matters"`
	Urgency      string      `json:"urgency"`
	Sources      []SourceRef `json:"sources"`
}

// Recommendation is one suggested action with steps.
type Recommendation struct {
	Action  string      `json:"action"`
	Steps   []string    `json:"steps"`
	Sources []SourceRef `json:"sources"`
}

// TimeContext carries the local time the briefing was generated for.
type TimeContext struct {
	LocalTime string `json:"local_time"`
	Timezone  string `json:"timezone"`
}

// EmailRollup aggregates email counts.
type EmailRollup struct {
	UnreadCount int `json:"unread_count"`
}

// CalendarRollup aggregates calendar counts.
type CalendarRollup struct {
	TodayCount  int    `json:"today_count"`
	NextEventID string `json:"next_event_id,omitempty"`
}

// GitHubRollup aggregates source-control activity.
type GitHubRollup struct {
	ActiveRepos []string `json:"active_repos"`
	OpenPRs     int      `json:"open_prs,omitempty"`
}

// Rollup holds per-source aggregate counts.
type Rollup struct {
	Email    EmailRollup    `json:"email"`
	Calendar CalendarRollup `json:"calendar"`
	GitHub   GitHubRollup   `json:"github"`
}

// CompressionDebug reports the compression stage's metrics for operators.
type CompressionDebug struct {
	OriginalInputTokens int     `json:"original_input_tokens"`
	OutputTokens        int     `json:"output_tokens"`
	CompressionTime     float64 `json:"compression_time"`
	Fallback            bool    `json:"fallback,omitempty"`
}

// Debug carries observability data not meant for end users.
type Debug struct {
	Compression CompressionDebug `json:"compression"`
}

// Briefing is the validated output contract. Highlights is never empty;
// post-processing guarantees at least one entry.
type Briefing struct {
	GeneratedAt     string           `json:"generated_at"`
	Greeting        string           `json:"greeting"`
	Narrative       string           `json:"narrative,omitempty"`
	TimeContext     TimeContext      `json:"time_context"`
	Highlights      []Highlight      `json:"highlights"`
	Recommendations []Recommendation `json:"recommendations"`
	Rollup          Rollup           `json:"rollup"`
	Debug           *Debug           `json:"debug,omitempty"`
}

// Validate enforces the output schema: field presence, urgency enum
// membership, string length caps, and non-empty highlights.
func (b *Briefing) Validate() error {
	if b.GeneratedAt == "" {
		return fmt.Errorf("generated_at is required")
	}
	if b.Greeting == "" {
		return fmt.Errorf("greeting is required")
	}
	if len(b.Highlights) == 0 {
		return fmt.Errorf("highlights must not be empty")
	}
	for i, h := range b.Highlights {
		if h.Title == "" {
			return fmt.Errorf("highlight %d: title is required", i)
		}
		if len(h.Title) > maxTitleLen {
			return fmt.Errorf("highlight %d: title exceeds %d chars", i, maxTitleLen)
		}
		if len(h.Detail) > maxDetailLen {
			return fmt.Errorf("highlight %d: detail exceeds %d chars", i, maxDetailLen)
		}
		if len(h.WhyItMatters) > maxDetailLen {
			return fmt.Errorf("highlight %d: why_it_matters exceeds %d chars", i, maxDetailLen)
		}
		switch h.Urgency {
		case UrgencyHigh, UrgencyMedium, UrgencyLow:
		default:
			return fmt.Errorf("highlight %d: invalid urgency %q", i, h.Urgency)
		}
	}
	for i, r := range b.Recommendations {
		if r.Action == "" {
			return fmt.Errorf("recommendation %d: action is required", i)
		}
		if len(r.Action) > maxActionLen {
			return fmt.Errorf("recommendation %d: action exceeds %d chars", i, maxActionLen)
		}
	}
	return nil
}

// Fallback returns the static, deterministic briefing delivered whenever a
// pipeline stage fails. It is a normal success response to the caller; only
// its content signals degradation.
func Fallback(now time.Time) *Briefing {
	return &Briefing{
		GeneratedAt: now.UTC().Format(time.RFC3339),
		Greeting:    "Here is your summary.",
		TimeContext: TimeContext{
			LocalTime: now.Format("1/2/2006, 3:04:05 PM"),
			Timezone:  now.Location().String(),
		},
		Highlights: []Highlight{
			{
				Type:         "messages",
				Title:        "System Update",
				Detail:       "We couldn't generate the full briefing right now, but your systems are connected.",
				WhyItMatters: "Generation fallback mode active.",
				Urgency:      UrgencyLow,
				Sources:      []SourceRef{},
			},
		},
		Recommendations: []Recommendation{},
		Rollup: Rollup{
			GitHub: GitHubRollup{ActiveRepos: []string{}},
		},
	}
}
