// Package evidence normalizes heterogeneous provider payloads into a
// bounded, citation-tagged text block plus a structured item index.
package evidence

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Per-source caps bound both compression-vendor cost and model context size.
const (
	maxEmails         = 10
	maxCalendarEvents = 5
	maxRepos          = 5
	maxCommits        = 5
	maxPullRequests   = 3

	maxEmailBodyLen    = 300
	maxCalendarNoteLen = 200
	maxDiffSnippetLen  = 800
)

// quotedReplyPattern marks the start of quoted-reply content in an email
// body; everything from the first match onward is discarded.
var quotedReplyPattern = regexp.MustCompile(`On .* wrote:`)

// Pack is one request's evidence: the rendered text block and the parallel
// citation index. Built fresh per request, never persisted.
type Pack struct {
	Text  string
	Index []Item
}

// Empty reports whether the pack has no usable evidence, in which case
// compression and model invocation are both skipped.
func (p *Pack) Empty() bool {
	return strings.TrimSpace(p.Text) == ""
}

// IndexJSON renders the item index for uncompressed inclusion in the prompt.
func (p *Pack) IndexJSON() string {
	data, err := json.MarshalIndent(p.Index, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(data)
}

// BuildPack renders provider results into an evidence pack. Sections appear
// in a fixed order (email, calendar, source control) so citation ids and
// prompt content are deterministic for identical inputs.
func BuildPack(sources Sources) *Pack {
	var b strings.Builder
	pack := &Pack{}

	for _, m := range capSlice(sources.Email.Messages, maxEmails) {
		id := fmt.Sprintf("EMAIL[%s]", m.ID)
		pack.Index = append(pack.Index, Item{ID: id, Title: m.Subject, Kind: KindEmail})

		body := m.Body
		if body == "" {
			body = m.Snippet
		}
		body = strings.ReplaceAll(body, "\r\n", "\n")
		body = quotedReplyPattern.Split(body, 2)[0]
		body = truncate(body, maxEmailBodyLen)

		fmt.Fprintf(&b, "%s from=%q subject=%q time=%q\n", id, m.From, m.Subject, m.TimeAgo)
		fmt.Fprintf(&b, "body: %s\n\n", body)
	}

	for _, e := range capSlice(sources.Calendar.Events, maxCalendarEvents) {
		localID := e.ID
		if localID == "" {
			// Lifetime is a single request, so collision risk on the short
			// synthesized id is accepted.
			localID = "evt_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:5]
		}
		id := fmt.Sprintf("CAL[%s]", localID)
		pack.Index = append(pack.Index, Item{ID: id, Title: e.Title, Kind: KindCalendar})

		location := e.Location
		if location == "" {
			location = "none"
		}
		fmt.Fprintf(&b, "%s title=%q time=%q location=%q\n", id, e.Title, e.Start, location)
		if e.Description != "" {
			fmt.Fprintf(&b, "notes: %s\n", truncate(e.Description, maxCalendarNoteLen))
		}
		b.WriteString("\n")
	}

	for _, r := range capSlice(sources.Code.Repos, maxRepos) {
		id := fmt.Sprintf("GH[repo_%d]", r.ID)
		pack.Index = append(pack.Index, Item{ID: id, Title: r.FullName, Kind: KindGitHubRepo})
		fmt.Fprintf(&b, "%s repo=%q updated=%q desc=%q\n", id, r.FullName, r.UpdatedAt, r.Description)
	}

	for _, c := range capSlice(sources.Code.Commits, maxCommits) {
		sha := c.SHA
		if len(sha) > 7 {
			sha = sha[:7]
		}
		id := fmt.Sprintf("GH[commit_%s]", sha)
		pack.Index = append(pack.Index, Item{ID: id, Title: c.Message, Kind: KindGitHubCommit})

		fmt.Fprintf(&b, "%s author=%q repo=%q date=%q\n", id, c.Author, c.Repo, c.TimeAgo)
		fmt.Fprintf(&b, "msg: %s\n", c.Message)

		if len(c.Files) > 0 {
			names := make([]string, len(c.Files))
			patches := make([]string, len(c.Files))
			for i, f := range c.Files {
				names[i] = f.Filename
				patches[i] = f.Patch
			}
			fmt.Fprintf(&b, "files: %s\n", strings.Join(names, ", "))
			fmt.Fprintf(&b, "diff_snippet: %s\n", truncate(strings.Join(patches, "\n"), maxDiffSnippetLen))
		}
		b.WriteString("\n")
	}

	for _, p := range capSlice(sources.Code.PullRequests, maxPullRequests) {
		id := fmt.Sprintf("GH[pr_%d]", p.Number)
		pack.Index = append(pack.Index, Item{ID: id, Title: p.Title, Kind: KindGitHubPR})
		fmt.Fprintf(&b, "%s author=%q state=%q title=%q\n\n", id, p.Author, p.State, p.Title)
	}

	pack.Text = b.String()
	return pack
}

// HasItem reports whether id is present in the index.
func (p *Pack) HasItem(id string) bool {
	for _, item := range p.Index {
		if item.ID == id {
			return true
		}
	}
	return false
}

func capSlice[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// truncate caps s at n bytes, backing off to a rune boundary so the cut
// never leaves a split multibyte character behind.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	for !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
