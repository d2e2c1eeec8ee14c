package workspace

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Workspace is a disposable checkout of the target repository. The generator
// runs inside it; Reset wipes and re-clones so a failed attempt's half-written
// state never leaks into the next one.
type Workspace struct {
	owner   string
	repo    string
	token   string
	baseDir string // where scratch directories are created; empty means system temp
	base    string // this run's scratch directory, removed on Teardown
	dir     string // the checkout itself
	log     *zap.Logger
}

// New prepares a workspace handle for owner/repo. Nothing is cloned until
// Provision is called.
func New(owner, repo, token, baseDir string, log *zap.Logger) *Workspace {
	return &Workspace{
		owner:   owner,
		repo:    repo,
		token:   token,
		baseDir: baseDir,
		log:     log,
	}
}

// Provision creates the scratch directory and clones the repository into it.
func (w *Workspace) Provision(ctx context.Context) error {
	if w.baseDir != "" {
		if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
			return fmt.Errorf("creating workspace dir: %w", err)
		}
	}
	base, err := os.MkdirTemp(w.baseDir, "agentforge-*")
	if err != nil {
		return fmt.Errorf("creating scratch dir: %w", err)
	}
	w.base = base
	w.dir = filepath.Join(base, w.repo)
	return w.clone(ctx)
}

// Dir returns the checkout path. Empty until Provision succeeds.
func (w *Workspace) Dir() string { return w.dir }

// Reset discards the checkout and clones fresh.
func (w *Workspace) Reset(ctx context.Context) error {
	if w.base == "" {
		return fmt.Errorf("workspace not provisioned")
	}
	if err := os.RemoveAll(w.dir); err != nil {
		return fmt.Errorf("removing checkout: %w", err)
	}
	return w.clone(ctx)
}

// Teardown removes the scratch directory entirely. Safe to call more than
// once and before Provision.
func (w *Workspace) Teardown() error {
	if w.base == "" {
		return nil
	}
	err := os.RemoveAll(w.base)
	w.base = ""
	w.dir = ""
	return err
}

func (w *Workspace) clone(ctx context.Context) error {
	url := CloneURL(w.owner, w.repo, w.token)
	w.log.Info("cloning repository",
		zap.String("repo", w.owner+"/"+w.repo),
		zap.String("dir", w.dir))

	cmd := exec.CommandContext(ctx, "git", "clone", "--depth", "1", url, w.dir)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git clone %s/%s: %s", w.owner, w.repo, Redact(strings.TrimSpace(string(out)), w.token))
	}
	return nil
}

// CloneURL builds the token-authenticated HTTPS clone URL.
func CloneURL(owner, repo, token string) string {
	if token == "" {
		return fmt.Sprintf("https://github.com/%s/%s.git", owner, repo)
	}
	return fmt.Sprintf("https://x-access-token:%s@github.com/%s/%s.git", token, owner, repo)
}

// Redact masks the token wherever it appears in s, for log and error safety.
func Redact(s, token string) string {
	if token == "" {
		return s
	}
	return strings.ReplaceAll(s, token, "***")
}
