package evidence

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPack_CapsPerSource(t *testing.T) {
	sources := Sources{}
	for i := 0; i < 25; i++ {
		sources.Email.Messages = append(sources.Email.Messages, EmailMessage{
			ID: fmt.Sprintf("m%d", i), Subject: "s", Body: "b",
		})
	}
	for i := 0; i < 12; i++ {
		sources.Calendar.Events = append(sources.Calendar.Events, CalendarEvent{
			ID: fmt.Sprintf("e%d", i), Title: "t",
		})
	}
	for i := 0; i < 9; i++ {
		sources.Code.Repos = append(sources.Code.Repos, Repository{ID: int64(i), FullName: "o/r"})
		sources.Code.Commits = append(sources.Code.Commits, Commit{SHA: fmt.Sprintf("abcdef%02d", i), Message: "m"})
		sources.Code.PullRequests = append(sources.Code.PullRequests, PullRequest{Number: i, Title: "p"})
	}

	pack := BuildPack(sources)

	counts := map[Kind]int{}
	for _, item := range pack.Index {
		counts[item.Kind]++
	}
	assert.Equal(t, 10, counts[KindEmail])
	assert.Equal(t, 5, counts[KindCalendar])
	assert.Equal(t, 5, counts[KindGitHubRepo])
	assert.Equal(t, 5, counts[KindGitHubCommit])
	assert.Equal(t, 3, counts[KindGitHubPR])
}

func TestBuildPack_StripsQuotedReplies(t *testing.T) {
	body := "Thanks, looks good to me.\n\nOn Tue, Jan 2 at 9:14 AM Alice wrote:\n> earlier thread content"
	pack := BuildPack(Sources{Email: EmailResult{Messages: []EmailMessage{
		{ID: "m1", From: "alice@example.com", Subject: "review", Body: body},
	}}})

	assert.Contains(t, pack.Text, "Thanks, looks good to me.")
	assert.NotContains(t, pack.Text, "earlier thread content")
	assert.NotContains(t, pack.Text, "wrote:")
}

func TestBuildPack_TruncatesEmailBody(t *testing.T) {
	pack := BuildPack(Sources{Email: EmailResult{Messages: []EmailMessage{
		{ID: "m1", Subject: "long", Body: strings.Repeat("x", 1000)},
	}}})

	assert.Contains(t, pack.Text, strings.Repeat("x", 300))
	assert.NotContains(t, pack.Text, strings.Repeat("x", 301))
}

func TestBuildPack_TruncationKeepsValidUTF8(t *testing.T) {
	// 299 ASCII bytes followed by a two-byte rune straddling the 300-byte
	// cap: a byte-only cut would leave half the rune behind.
	body := strings.Repeat("x", 299) + "é and more"
	pack := BuildPack(Sources{Email: EmailResult{Messages: []EmailMessage{
		{ID: "m1", Subject: "boundary", Body: body},
	}}})

	assert.True(t, utf8.ValidString(pack.Text))
	assert.Contains(t, pack.Text, strings.Repeat("x", 299))
	assert.NotContains(t, pack.Text, "é")
}

func TestBuildPack_NormalizesCRLF(t *testing.T) {
	pack := BuildPack(Sources{Email: EmailResult{Messages: []EmailMessage{
		{ID: "m1", Subject: "s", Body: "line one\r\nline two"},
	}}})
	assert.Contains(t, pack.Text, "line one\nline two")
	assert.NotContains(t, pack.Text, "\r\n")
}

func TestBuildPack_EmailFallsBackToSnippet(t *testing.T) {
	pack := BuildPack(Sources{Email: EmailResult{Messages: []EmailMessage{
		{ID: "m1", Subject: "s", Snippet: "snippet only"},
	}}})
	assert.Contains(t, pack.Text, "body: snippet only")
}

func TestBuildPack_CitationIDs(t *testing.T) {
	pack := BuildPack(Sources{
		Email:    EmailResult{Messages: []EmailMessage{{ID: "abc123", Subject: "hi"}}},
		Calendar: CalendarResult{Events: []CalendarEvent{{ID: "evt_x1", Title: "standup"}}},
		Code: CodeResult{
			Repos:        []Repository{{ID: 42, FullName: "org/app"}},
			Commits:      []Commit{{SHA: "ab12cd3ef456", Message: "fix race"}},
			PullRequests: []PullRequest{{Number: 7, Title: "add cache"}},
		},
	})

	ids := make([]string, len(pack.Index))
	for i, item := range pack.Index {
		ids[i] = item.ID
	}
	assert.Equal(t, []string{
		"EMAIL[abc123]",
		"CAL[evt_x1]",
		"GH[repo_42]",
		"GH[commit_ab12cd3]",
		"GH[pr_7]",
	}, ids)

	for _, id := range ids {
		assert.True(t, pack.HasItem(id))
		assert.Contains(t, pack.Text, id)
	}
	assert.False(t, pack.HasItem("EMAIL[invented]"))
}

func TestBuildPack_SynthesizesCalendarID(t *testing.T) {
	pack := BuildPack(Sources{Calendar: CalendarResult{Events: []CalendarEvent{
		{Title: "no id event"},
	}}})

	require.Len(t, pack.Index, 1)
	assert.Regexp(t, `^CAL\[evt_[0-9a-f]{5}\]$`, pack.Index[0].ID)
}

func TestBuildPack_CalendarNotesTruncated(t *testing.T) {
	pack := BuildPack(Sources{Calendar: CalendarResult{Events: []CalendarEvent{
		{ID: "e1", Title: "t", Description: strings.Repeat("n", 500)},
	}}})
	assert.Contains(t, pack.Text, "notes: "+strings.Repeat("n", 200)+"\n")
	assert.NotContains(t, pack.Text, strings.Repeat("n", 201))
}

func TestBuildPack_DiffSnippetCapped(t *testing.T) {
	pack := BuildPack(Sources{Code: CodeResult{Commits: []Commit{{
		SHA:     "deadbeef123",
		Message: "big change",
		Files: []CommitFile{
			{Filename: "a.go", Patch: strings.Repeat("+", 600)},
			{Filename: "b.go", Patch: strings.Repeat("-", 600)},
		},
	}}}})

	assert.Contains(t, pack.Text, "files: a.go, b.go")
	start := strings.Index(pack.Text, "diff_snippet: ")
	require.GreaterOrEqual(t, start, 0)
	snippet := pack.Text[start+len("diff_snippet: "):]
	snippet = snippet[:strings.Index(snippet, "\n")]
	assert.Len(t, snippet, 800)
}

func TestBuildPack_Empty(t *testing.T) {
	pack := BuildPack(Sources{})
	assert.True(t, pack.Empty())
	assert.Empty(t, pack.Index)
	assert.Equal(t, "[]", strings.TrimSpace(pack.IndexJSON()))
}

func TestBuildPack_DeterministicOrder(t *testing.T) {
	sources := Sources{
		Email:    EmailResult{Messages: []EmailMessage{{ID: "m1", Subject: "s", Body: "b"}}},
		Calendar: CalendarResult{Events: []CalendarEvent{{ID: "e1", Title: "t"}}},
		Code:     CodeResult{Repos: []Repository{{ID: 1, FullName: "o/r"}}},
	}

	first := BuildPack(sources)
	second := BuildPack(sources)
	assert.Equal(t, first.Text, second.Text)
	assert.Equal(t, first.Index, second.Index)

	emailPos := strings.Index(first.Text, "EMAIL[")
	calPos := strings.Index(first.Text, "CAL[")
	ghPos := strings.Index(first.Text, "GH[")
	assert.Less(t, emailPos, calPos)
	assert.Less(t, calPos, ghPos)
}

func TestSourcesAuthDegraded(t *testing.T) {
	assert.False(t, Sources{}.AuthDegraded())
	assert.True(t, Sources{Email: EmailResult{AuthError: true}}.AuthDegraded())
	assert.True(t, Sources{Calendar: CalendarResult{AuthError: true}}.AuthDegraded())
}
