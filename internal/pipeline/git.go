package pipeline

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// GitOps handles git operations for the repository holding the documents.
type GitOps struct {
	repo     *git.Repository
	worktree *git.Worktree
	root     string
	token    string
	branch   string
}

// OpenRepo opens the git repository containing path.
func OpenRepo(path, token string) (*GitOps, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("opening repo: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("getting worktree: %w", err)
	}

	return &GitOps{repo: repo, worktree: wt, root: wt.Filesystem.Root(), token: token}, nil
}

// CreateBranch creates and checks out a new branch at HEAD, keeping the
// working tree changes.
func (g *GitOps) CreateBranch(name string) error {
	headRef, err := g.repo.Head()
	if err != nil {
		return fmt.Errorf("getting HEAD: %w", err)
	}

	branchRef := plumbing.NewBranchReferenceName(name)
	ref := plumbing.NewHashReference(branchRef, headRef.Hash())

	if err := g.repo.Storer.SetReference(ref); err != nil {
		return fmt.Errorf("creating branch ref: %w", err)
	}

	if err := g.worktree.Checkout(&git.CheckoutOptions{Branch: branchRef, Keep: true}); err != nil {
		return fmt.Errorf("checking out %s: %w", name, err)
	}
	g.branch = name
	return nil
}

// Add stages the given files. Paths may be absolute or relative to the
// current directory.
func (g *GitOps) Add(paths ...string) error {
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(g.root, abs)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", p, err)
		}
		if _, err := g.worktree.Add(filepath.ToSlash(rel)); err != nil {
			return fmt.Errorf("staging %s: %w", rel, err)
		}
	}
	return nil
}

// Commit creates a commit with the given message.
func (g *GitOps) Commit(message string) (plumbing.Hash, error) {
	return g.worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "modelsync",
			Email: "modelsync@everstack.dev",
			When:  time.Now(),
		},
	})
}

// Push pushes the branch created by CreateBranch to remote.
func (g *GitOps) Push(remote string) error {
	if g.branch == "" {
		return fmt.Errorf("no branch to push")
	}
	spec := fmt.Sprintf("+refs/heads/%[1]s:refs/heads/%[1]s", g.branch)
	return g.repo.Push(&git.PushOptions{
		RemoteName: remote,
		RefSpecs:   []gitconfig.RefSpec{gitconfig.RefSpec(spec)},
		Auth: &githttp.BasicAuth{
			Username: "x-access-token",
			Password: g.token,
		},
	})
}
