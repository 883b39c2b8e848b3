// Package query implements the conversational-query path: intent detection,
// parallel context aggregation across integrations, and spoken-summary
// generation.
package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// IntentType classifies a free-text query.
type IntentType string

const (
	IntentPersonBranch  IntentType = "person_branch"
	IntentStandup       IntentType = "standup"
	IntentChangesSince  IntentType = "changes_since"
	IntentDailyBriefing IntentType = "daily_briefing"
	IntentUnknown       IntentType = "unknown"
)

// Intent is the detected meaning of a query. Only the fields relevant to
// Type are populated.
type Intent struct {
	Type      IntentType
	Person    string
	Branch    string
	Hours     int
	Timeframe string
	Raw       string
}

var (
	personBranchPattern = regexp.MustCompile(`(?i)summarize\s+(\w+)(?:'s)?\s+work\s+on\s+(.+)`)
	standupPattern      = regexp.MustCompile(`(?i)standup\s+(?:for\s+)?(?:last\s+)?(\d+)\s*hours?`)
	changesSincePattern = regexp.MustCompile(`(?i)what\s+changed\s+since\s+(.+)`)

	dailyBriefingPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)what\s+do\s+i\s+need\s+to\s+care\s+about`),
		regexp.MustCompile(`(?i)what's\s+happening`),
		regexp.MustCompile(`(?i)daily\s+briefing`),
		regexp.MustCompile(`(?i)what\s+do\s+i\s+need\s+to\s+know`),
	}
)

// DetectIntent classifies a query. Patterns are tried in a fixed priority
// order and the first match wins; there is no scoring.
func DetectIntent(query string) Intent {
	if m := personBranchPattern.FindStringSubmatch(query); m != nil {
		return Intent{
			Type:   IntentPersonBranch,
			Person: m[1],
			Branch: strings.TrimSpace(m[2]),
		}
	}

	if m := standupPattern.FindStringSubmatch(query); m != nil {
		hours, _ := strconv.Atoi(m[1])
		return Intent{Type: IntentStandup, Hours: hours}
	}

	if m := changesSincePattern.FindStringSubmatch(query); m != nil {
		return Intent{Type: IntentChangesSince, Timeframe: strings.TrimSpace(m[1])}
	}

	for _, pattern := range dailyBriefingPatterns {
		if pattern.MatchString(query) {
			return Intent{Type: IntentDailyBriefing}
		}
	}

	return Intent{Type: IntentUnknown, Raw: query}
}

// Prompt renders the generation instruction for this intent.
func (i Intent) Prompt() string {
	switch i.Type {
	case IntentPersonBranch:
		return fmt.Sprintf("Summarize %s's work on the %s branch", i.Person, i.Branch)
	case IntentStandup:
		return fmt.Sprintf("Provide a standup summary for the last %d hours", i.Hours)
	case IntentChangesSince:
		return fmt.Sprintf("Summarize what changed since %s", i.Timeframe)
	case IntentDailyBriefing:
		return "Provide a daily briefing of what needs attention"
	default:
		return i.Raw
	}
}
