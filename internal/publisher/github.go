package publisher

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/fintorai/agentforge/internal/domain"
	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// ErrNoChanges is returned when a push would produce an empty commit. Its
// message matches the default classifier patterns.
var ErrNoChanges = errors.New("no changes detected")

// GitHost is the git-hosting surface the publish policy depends on.
type GitHost interface {
	// PushArtifacts commits artifacts onto branch, creating the branch from
	// the base branch if it does not exist. Returns an error whose message
	// contains "no changes detected" when the commit would be empty.
	PushArtifacts(ctx context.Context, branch, message string, artifacts []domain.WrittenArtifact) error
	// CreatePullRequest opens a PR from branch into the base branch.
	CreatePullRequest(ctx context.Context, branch, title, body string) (number int, url string, err error)
}

// GitHubHost publishes through the GitHub REST and Git Data APIs.
type GitHubHost struct {
	client *github.Client
	owner  string
	repo   string
	base   string
	log    *zap.Logger
}

func NewGitHubHost(token, owner, repo, base string, log *zap.Logger) *GitHubHost {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(context.Background(), ts)
	return &GitHubHost{
		client: github.NewClient(tc),
		owner:  owner,
		repo:   repo,
		base:   base,
		log:    log,
	}
}

// PushArtifacts writes artifacts as a single commit via the Git Data API:
// blobs, then a tree on top of the branch head, then a commit, then a ref
// update. If the new tree equals the parent commit's tree the commit would be
// empty and a no-changes error is returned instead.
func (h *GitHubHost) PushArtifacts(ctx context.Context, branch, message string, artifacts []domain.WrittenArtifact) error {
	parent, err := h.ensureBranch(ctx, branch)
	if err != nil {
		return err
	}

	entries := make([]*github.TreeEntry, 0, len(artifacts))
	for _, a := range artifacts {
		blob, _, err := h.client.Git.CreateBlob(ctx, h.owner, h.repo, &github.Blob{
			Content:  github.String(a.Content),
			Encoding: github.String("utf-8"),
		})
		if err != nil {
			return fmt.Errorf("creating blob for %s: %w", a.Path, err)
		}
		entries = append(entries, &github.TreeEntry{
			Path: github.String(a.Path),
			Mode: github.String("100644"),
			Type: github.String("blob"),
			SHA:  blob.SHA,
		})
	}

	tree, _, err := h.client.Git.CreateTree(ctx, h.owner, h.repo, parent.GetSHA(), entries)
	if err != nil {
		return fmt.Errorf("creating tree: %w", err)
	}

	parentCommit, _, err := h.client.Git.GetCommit(ctx, h.owner, h.repo, parent.GetSHA())
	if err != nil {
		return fmt.Errorf("reading parent commit: %w", err)
	}
	if tree.GetSHA() == parentCommit.GetTree().GetSHA() {
		return fmt.Errorf("%w: branch %s already matches artifacts", ErrNoChanges, branch)
	}

	commit, _, err := h.client.Git.CreateCommit(ctx, h.owner, h.repo, &github.Commit{
		Message: github.String(message),
		Tree:    tree,
		Parents: []*github.Commit{{SHA: parent.SHA}},
	}, nil)
	if err != nil {
		return fmt.Errorf("creating commit: %w", err)
	}

	ref := "refs/heads/" + branch
	_, _, err = h.client.Git.UpdateRef(ctx, h.owner, h.repo, &github.Reference{
		Ref:    github.String(ref),
		Object: &github.GitObject{SHA: commit.SHA},
	}, false)
	if err != nil {
		return fmt.Errorf("updating %s: %w", ref, err)
	}

	h.log.Info("pushed artifacts",
		zap.String("branch", branch),
		zap.Int("files", len(artifacts)),
		zap.String("commit", commit.GetSHA()))
	return nil
}

func (h *GitHubHost) CreatePullRequest(ctx context.Context, branch, title, body string) (int, string, error) {
	pr, _, err := h.client.PullRequests.Create(ctx, h.owner, h.repo, &github.NewPullRequest{
		Title: github.String(title),
		Head:  github.String(branch),
		Base:  github.String(h.base),
		Body:  github.String(body),
	})
	if err != nil {
		return 0, "", fmt.Errorf("creating pull request: %w", err)
	}
	h.log.Info("pull request created",
		zap.Int("number", pr.GetNumber()),
		zap.String("url", pr.GetHTMLURL()))
	return pr.GetNumber(), pr.GetHTMLURL(), nil
}

// ensureBranch returns the head object of branch, creating the branch from
// the base branch head when it does not exist yet.
func (h *GitHubHost) ensureBranch(ctx context.Context, branch string) (*github.GitObject, error) {
	ref, resp, err := h.client.Git.GetRef(ctx, h.owner, h.repo, "heads/"+branch)
	if err == nil {
		return ref.Object, nil
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		return nil, fmt.Errorf("reading branch %s: %w", branch, err)
	}

	baseRef, _, err := h.client.Git.GetRef(ctx, h.owner, h.repo, "heads/"+h.base)
	if err != nil {
		return nil, fmt.Errorf("reading base branch %s: %w", h.base, err)
	}
	created, _, err := h.client.Git.CreateRef(ctx, h.owner, h.repo, &github.Reference{
		Ref:    github.String("refs/heads/" + branch),
		Object: baseRef.Object,
	})
	if err != nil {
		return nil, fmt.Errorf("creating branch %s: %w", branch, err)
	}
	h.log.Info("branch created", zap.String("branch", branch), zap.String("from", h.base))
	return created.Object, nil
}
