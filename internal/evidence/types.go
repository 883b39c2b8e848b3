package evidence

// Kind classifies a normalized evidence item.
type Kind string

const (
	KindEmail        Kind = "email"
	KindCalendar     Kind = "calendar"
	KindGitHubRepo   Kind = "github_repo"
	KindGitHubCommit Kind = "github_commit"
	KindGitHubPR     Kind = "github_pr"
)

// Item is one entry in the citation index handed to the generator. ID is the
// only token the model may cite back; it is copied from the index, never
// invented.
type Item struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Kind  Kind   `json:"type"`
}

// EmailMessage is the normalizer-boundary DTO for one email.
type EmailMessage struct {
	ID      string
	From    string
	Subject string
	Body    string
	Snippet string
	TimeAgo string
}

// CalendarEvent is the normalizer-boundary DTO for one calendar event.
type CalendarEvent struct {
	ID          string
	Title       string
	Start       string
	Location    string
	Description string
}

// Repository is the normalizer-boundary DTO for one source repository.
type Repository struct {
	ID          int64
	FullName    string
	Description string
	UpdatedAt   string
}

// CommitFile is one changed file within a commit.
type CommitFile struct {
	Filename string
	Patch    string
}

// Commit is the normalizer-boundary DTO for one commit with detail.
type Commit struct {
	SHA     string
	Author  string
	Repo    string
	TimeAgo string
	Message string
	Files   []CommitFile
}

// PullRequest is the normalizer-boundary DTO for one pull request.
type PullRequest struct {
	Number int
	Author string
	State  string
	Title  string
}

// EmailResult is the outcome of an email fetch. AuthError marks a
// 401-equivalent failure that escalates to the auth-degraded signal.
type EmailResult struct {
	Connected bool
	AuthError bool
	Messages  []EmailMessage
}

// CalendarResult is the outcome of a calendar fetch.
type CalendarResult struct {
	Connected bool
	AuthError bool
	Events    []CalendarEvent
}

// CodeResult is the outcome of a source-control fetch.
type CodeResult struct {
	Connected    bool
	Repos        []Repository
	Commits      []Commit
	PullRequests []PullRequest
}

// Sources bundles the raw provider results for one briefing run.
type Sources struct {
	Email    EmailResult
	Calendar CalendarResult
	Code     CodeResult
}

// AuthDegraded reports whether email or calendar failed with an auth error.
func (s Sources) AuthDegraded() bool {
	return s.Email.AuthError || s.Calendar.AuthError
}
