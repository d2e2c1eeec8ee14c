package publisher

import (
	"context"
	"errors"
	"fmt"

	"github.com/fintorai/agentforge/internal/domain"
	"go.uber.org/zap"
)

// ErrRegenerate signals that the publish failed with a retryable condition
// and the caller should run another generation cycle.
var ErrRegenerate = errors.New("regenerate and retry publish")

// Policy decides between opening a pull request, pushing to the run's branch,
// or skipping, and classifies publish failures into retryable and fatal.
type Policy struct {
	host         GitHost
	classify     *Classifier
	messenger    CommitMessenger
	maxNoChanges int
	log          *zap.Logger
}

func NewPolicy(host GitHost, classify *Classifier, messenger CommitMessenger, maxNoChanges int, log *zap.Logger) *Policy {
	if messenger == nil {
		messenger = StaticMessenger{}
	}
	return &Policy{
		host:         host,
		classify:     classify,
		messenger:    messenger,
		maxNoChanges: maxNoChanges,
		log:          log,
	}
}

// Publish pushes artifacts and, on the run's first successful publish with
// PRs allowed, opens a pull request. Returns ErrRegenerate (wrapped) when the
// failure is retryable within the run's no-changes budget; any other returned
// error is fatal. Once a PR exists or the run has been downgraded, only the
// branch is updated and a second PR is never attempted.
func (p *Policy) Publish(ctx context.Context, state *domain.RunState, artifacts []domain.WrittenArtifact, noPR bool) (domain.PublishOutcome, error) {
	if noPR {
		return domain.PublishOutcome{Kind: domain.PublishSkipped, Reason: "no-pr flag set"}, nil
	}
	if len(artifacts) == 0 {
		return domain.PublishOutcome{Kind: domain.PublishSkipped, Reason: "no artifacts to publish"}, nil
	}

	artifacts = dedupe(artifacts)

	message, err := p.messenger.CommitMessage(ctx, artifacts)
	if err != nil || message == "" {
		p.log.Warn("commit message generation failed, using fallback", zap.Error(err))
		message = FallbackCommitMessage
	}

	if err := p.host.PushArtifacts(ctx, state.Branch, message, artifacts); err != nil {
		return domain.PublishOutcome{}, p.handleFailure(state, "push", err)
	}

	if state.PRCreated || state.PushOnly {
		p.log.Info("branch updated", zap.String("branch", state.Branch))
		return domain.PublishOutcome{Kind: domain.PublishBranchUpdated, Branch: state.Branch}, nil
	}

	title := "Auto-generated agent workflow"
	body := fmt.Sprintf("Generated code for %d file(s) on branch `%s`.", len(artifacts), state.Branch)
	number, url, err := p.host.CreatePullRequest(ctx, state.Branch, title, body)
	if err != nil {
		return domain.PublishOutcome{}, p.handleFailure(state, "pull request creation", err)
	}

	state.PRCreated = true
	state.PRNumber = number
	state.PRURL = url
	return domain.PublishOutcome{
		Kind:     domain.PublishPullRequest,
		PRNumber: number,
		PRURL:    url,
		Branch:   state.Branch,
	}, nil
}

// handleFailure applies the retry policy: both failure kinds downgrade the
// run to push-only, and both consume the no-changes budget when retrying. An
// exhausted budget makes the failure fatal.
func (p *Policy) handleFailure(state *domain.RunState, stage string, err error) error {
	state.PushOnly = true
	kind := p.classify.Classify(err)

	if state.NoChanges >= p.maxNoChanges {
		return fmt.Errorf("%s failed with retry budget exhausted: %w", stage, err)
	}
	state.NoChanges++

	if kind == FailureNoChanges {
		p.log.Warn("no changes detected, regenerating",
			zap.String("stage", stage),
			zap.Int("retry", state.NoChanges),
			zap.Error(err))
	} else {
		p.log.Warn("publish failed, downgrading to push-only and regenerating",
			zap.String("stage", stage),
			zap.Int("retry", state.NoChanges),
			zap.Error(err))
	}
	return fmt.Errorf("%w: %v", ErrRegenerate, err)
}

// dedupe keeps one artifact per path, last write wins, preserving the order
// of last appearance.
func dedupe(artifacts []domain.WrittenArtifact) []domain.WrittenArtifact {
	last := make(map[string]int, len(artifacts))
	for i, a := range artifacts {
		last[a.Path] = i
	}
	out := make([]domain.WrittenArtifact, 0, len(last))
	for i, a := range artifacts {
		if last[a.Path] == i {
			out = append(out, a)
		}
	}
	return out
}
