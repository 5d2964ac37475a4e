package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/go-github/v60/github"
	"golang.org/x/oauth2"

	"github.com/everstacklabs/modelsync/internal/aggregate"
	"github.com/everstacklabs/modelsync/internal/diff"
)

const (
	draftRemovals = 25
	prTitle       = "chore(models): update provider model lists"
)

// createPR commits the documents on a new branch, pushes it and opens a
// pull request against the configured base branch.
func (p *Pipeline) createPR(ctx context.Context, files []string, changes []*diff.ChangeSet, stats *aggregate.Stats) (int, error) {
	gh := p.cfg.GitHub
	branchName := fmt.Sprintf("modelsync/update-%s", p.now().Format("20060102-150405"))

	gitOps, err := OpenRepo(gh.RepoPath, gh.Token)
	if err != nil {
		return 0, err
	}

	if err := gitOps.CreateBranch(branchName); err != nil {
		return 0, fmt.Errorf("creating branch: %w", err)
	}

	if err := gitOps.Add(files...); err != nil {
		return 0, fmt.Errorf("staging changes: %w", err)
	}

	if _, err := gitOps.Commit(prTitle); err != nil {
		return 0, fmt.Errorf("committing: %w", err)
	}

	if err := gitOps.Push(gh.Remote); err != nil {
		return 0, fmt.Errorf("pushing: %w", err)
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: gh.Token})
	client := github.NewClient(oauth2.NewClient(ctx, ts))

	title := prTitle
	body := prBody(changes, stats)
	draft, reason := assessRisk(changes)
	if draft {
		slog.Info("opening draft PR", "reason", reason)
	}

	pr, _, err := client.PullRequests.Create(ctx, gh.Owner, gh.Repo, &github.NewPullRequest{
		Title: &title,
		Body:  &body,
		Head:  &branchName,
		Base:  &gh.BaseBranch,
		Draft: &draft,
	})
	if err != nil {
		return 0, fmt.Errorf("creating PR: %w", err)
	}

	slog.Info("PR created",
		"number", pr.GetNumber(),
		"draft", draft,
		"url", pr.GetHTMLURL())

	return pr.GetNumber(), nil
}

func prBody(changes []*diff.ChangeSet, stats *aggregate.Stats) string {
	var b strings.Builder
	b.WriteString("## Model list changes\n\n")
	b.WriteString(diff.RenderSummary(changes))
	b.WriteString("\n<details><summary>Run summary</summary>\n\n```\n")
	b.WriteString(stats.Render())
	b.WriteString("```\n</details>\n")
	return b.String()
}

// assessRisk reports whether the pull request should be a draft: some
// provider drops more than draftRemovals models or more than half its list.
func assessRisk(changes []*diff.ChangeSet) (bool, string) {
	for _, cs := range changes {
		removed := len(cs.Removed)
		if removed > draftRemovals {
			return true, fmt.Sprintf("%s removes %d models", cs.Provider, removed)
		}
		before := removed + cs.Unchanged
		if before > 0 && removed*2 > before {
			return true, fmt.Sprintf("%s removes %d of %d models", cs.Provider, removed, before)
		}
	}
	return false, ""
}
