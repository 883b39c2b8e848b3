// Package providers contains the thin per-provider fetch wrappers consumed
// by the briefing pipeline. Each fetcher absorbs its own failures into a
// degraded result; none of them return errors to the pipeline.
package providers

import (
	"context"
	"fmt"

	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/fyrsmithlabs/briefd/internal/config"
	"github.com/fyrsmithlabs/briefd/internal/evidence"
)

const (
	repoListLimit   = 5
	commitListLimit = 5
	prListLimit     = 3
)

// GitHubFetcher fetches repository activity for the briefing pipeline.
type GitHubFetcher struct {
	client *github.Client
	logger *zap.Logger
}

// NewGitHubFetcher creates a fetcher with token authentication.
func NewGitHubFetcher(ctx context.Context, token config.Secret, logger *zap.Logger) (*GitHubFetcher, error) {
	if !token.IsSet() {
		return nil, fmt.Errorf("GitHub token not set")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token.Value()})
	tc := oauth2.NewClient(ctx, ts)
	return &GitHubFetcher{
		client: github.NewClient(tc),
		logger: logger,
	}, nil
}

// FetchCode lists the user's most recently pushed repositories, then pulls
// commit and pull-request detail for the top one.
func (f *GitHubFetcher) FetchCode(ctx context.Context, userID string) evidence.CodeResult {
	repos, _, err := f.client.Repositories.List(ctx, "", &github.RepositoryListOptions{
		Sort:        "pushed",
		ListOptions: github.ListOptions{PerPage: repoListLimit},
	})
	if err != nil {
		f.logger.Warn("github repo list failed", zap.Error(err))
		return evidence.CodeResult{}
	}

	result := evidence.CodeResult{Connected: true}
	for _, r := range repos {
		result.Repos = append(result.Repos, evidence.Repository{
			ID:          r.GetID(),
			FullName:    r.GetFullName(),
			Description: r.GetDescription(),
			UpdatedAt:   r.GetUpdatedAt().Format("2006-01-02T15:04:05Z"),
		})
	}

	if len(repos) > 0 {
		owner := repos[0].GetOwner().GetLogin()
		name := repos[0].GetName()
		activity := f.FetchRepoActivity(ctx, owner, name)
		result.Commits = activity.Commits
		result.PullRequests = activity.PullRequests
	}
	return result
}

// FetchRepoActivity fetches commit detail (including changed files and
// patches) and pull requests for one repository.
func (f *GitHubFetcher) FetchRepoActivity(ctx context.Context, owner, repo string) evidence.CodeResult {
	result := evidence.CodeResult{Connected: true}

	commits, _, err := f.client.Repositories.ListCommits(ctx, owner, repo, &github.CommitsListOptions{
		ListOptions: github.ListOptions{PerPage: commitListLimit},
	})
	if err != nil {
		f.logger.Warn("github commit list failed",
			zap.String("repo", owner+"/"+repo), zap.Error(err))
	}
	for _, c := range commits {
		// One extra call per commit to resolve changed files and patches.
		detail, _, err := f.client.Repositories.GetCommit(ctx, owner, repo, c.GetSHA(), nil)
		if err != nil {
			continue
		}
		commit := evidence.Commit{
			SHA:     c.GetSHA(),
			Author:  c.GetCommit().GetAuthor().GetName(),
			Repo:    owner + "/" + repo,
			TimeAgo: c.GetCommit().GetAuthor().GetDate().Format("2006-01-02"),
			Message: c.GetCommit().GetMessage(),
		}
		for _, file := range detail.Files {
			commit.Files = append(commit.Files, evidence.CommitFile{
				Filename: file.GetFilename(),
				Patch:    file.GetPatch(),
			})
		}
		result.Commits = append(result.Commits, commit)
	}

	prs, _, err := f.client.PullRequests.List(ctx, owner, repo, &github.PullRequestListOptions{
		State:       "open",
		ListOptions: github.ListOptions{PerPage: prListLimit},
	})
	if err != nil {
		f.logger.Warn("github pr list failed",
			zap.String("repo", owner+"/"+repo), zap.Error(err))
	}
	for _, p := range prs {
		result.PullRequests = append(result.PullRequests, evidence.PullRequest{
			Number: p.GetNumber(),
			Author: p.GetUser().GetLogin(),
			State:  p.GetState(),
			Title:  p.GetTitle(),
		})
	}

	return result
}
