package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fintorai/agentforge/internal/domain"
	"github.com/fintorai/agentforge/internal/extractor"
	"github.com/fintorai/agentforge/internal/generator"
	"github.com/fintorai/agentforge/internal/publisher"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State names the phase a run is in. Completed and Failed are terminal;
// Regenerating loops back to Attempting.
type State string

const (
	StateAttempting   State = "attempting"
	StateExtracting   State = "extracting"
	StatePublishing   State = "publishing"
	StateRegenerating State = "regenerating"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
)

// AttemptRunner runs bounded generation attempts for one prompt.
type AttemptRunner interface {
	Run(ctx context.Context, prompt string) (*generator.AttemptResult, error)
}

// ArtifactExtractor turns attempt output into artifacts.
type ArtifactExtractor interface {
	Extract(writes []domain.WrittenArtifact, texts []string, stdout string) ([]domain.WrittenArtifact, extractor.Source)
}

// PublishPolicy publishes artifacts, mutating the run state it is handed.
type PublishPolicy interface {
	Publish(ctx context.Context, state *domain.RunState, artifacts []domain.WrittenArtifact, noPR bool) (domain.PublishOutcome, error)
}

// Teardowner releases the execution environment at the end of a run.
type Teardowner interface {
	Teardown() error
}

// Orchestrator composes the attempt runner, extractor and publish policy into
// one end-to-end run and always yields exactly one RunReport.
type Orchestrator struct {
	runner    AttemptRunner
	extract   ArtifactExtractor
	policy    PublishPolicy
	env       Teardowner
	request   domain.GenerationRequest
	language  string
	outputDir string
	log       *zap.Logger

	now func() time.Time
}

func New(runner AttemptRunner, extract ArtifactExtractor, policy PublishPolicy, env Teardowner,
	request domain.GenerationRequest, language, outputDir string, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		runner:    runner,
		extract:   extract,
		policy:    policy,
		env:       env,
		request:   request,
		language:  language,
		outputDir: outputDir,
		log:       log,
		now:       time.Now,
	}
}

// Run drives one run to a terminal state and returns its report. The report
// is never nil and its ExitCode is 0 only on Completed. Environment teardown
// is unconditional and best-effort.
func (o *Orchestrator) Run(ctx context.Context) (*domain.RunReport, *domain.RunState) {
	state := &domain.RunState{
		RunID:     uuid.NewString(),
		Branch:    o.branchName(),
		StartedAt: o.now(),
	}
	defer func() {
		state.FinishedAt = o.now()
		if o.env == nil {
			return
		}
		if err := o.env.Teardown(); err != nil {
			o.log.Warn("environment teardown failed", zap.Error(err))
		}
	}()

	o.log.Info("run starting",
		zap.String("run_id", state.RunID),
		zap.String("branch", state.Branch))

	report := o.drive(ctx, state)
	if report.BranchName == "" {
		report.BranchName = state.Branch
	}
	return report, state
}

// drive is the state machine loop. Regeneration cycles are bounded both by
// the publish policy's budget and structurally here.
func (o *Orchestrator) drive(ctx context.Context, state *domain.RunState) *domain.RunReport {
	prompt := generator.BuildPrompt(o.request.SpecText, state.Branch, o.language)

	for cycle := 0; cycle <= o.request.NoChangesMaxRetries; cycle++ {
		o.transition(state, StateAttempting)
		result, err := o.runner.Run(ctx, prompt)
		if err != nil {
			o.transition(state, StateFailed)
			return o.failure(err)
		}

		state.Generation += result.Attempts

		o.transition(state, StateExtracting)
		artifacts, source := o.extract.Extract(result.Writes, result.Texts, result.Outcome.Stdout)
		o.saveLocal(state.RunID, artifacts)

		if source == extractor.SourceFallback {
			// Fenced-block recovery means nothing was written to the checkout,
			// so there is no repository change to publish. Keep the artifacts
			// local only.
			o.transition(state, StateCompleted)
			return &domain.RunReport{
				Message:    "artifacts recovered from output, saved locally (reason: local fallback)",
				NoPR:       true,
				CodeWrites: artifacts,
			}
		}

		o.transition(state, StatePublishing)
		outcome, err := o.policy.Publish(ctx, state, artifacts, o.request.NoPR)
		if err != nil {
			if errors.Is(err, publisher.ErrRegenerate) {
				o.transition(state, StateRegenerating)
				continue
			}
			o.transition(state, StateFailed)
			return o.failure(err)
		}

		o.transition(state, StateCompleted)
		return o.success(state, outcome, artifacts)
	}

	o.transition(state, StateFailed)
	return o.failure(fmt.Errorf("no-changes retries exhausted after %d regeneration cycle(s)",
		o.request.NoChangesMaxRetries))
}

func (o *Orchestrator) success(state *domain.RunState, outcome domain.PublishOutcome, artifacts []domain.WrittenArtifact) *domain.RunReport {
	rep := &domain.RunReport{
		NoPR:       o.request.NoPR,
		CodeWrites: artifacts,
		BranchName: state.Branch,
	}
	switch outcome.Kind {
	case domain.PublishPullRequest:
		rep.Message = fmt.Sprintf("pull request #%d created: %s", outcome.PRNumber, outcome.PRURL)
		rep.PullRequest = &domain.PullRequestRef{
			Number:     outcome.PRNumber,
			URL:        outcome.PRURL,
			BranchName: state.Branch,
		}
	case domain.PublishBranchUpdated:
		rep.Message = fmt.Sprintf("branch %s updated", outcome.Branch)
		if state.PRCreated {
			rep.PullRequest = &domain.PullRequestRef{
				Number:     state.PRNumber,
				URL:        state.PRURL,
				BranchName: state.Branch,
			}
		}
	case domain.PublishSkipped:
		rep.Message = "publish skipped: " + outcome.Reason
		rep.NoPR = true
	}
	return rep
}

func (o *Orchestrator) failure(err error) *domain.RunReport {
	return &domain.RunReport{
		Message:    "run failed: " + err.Error(),
		ExitCode:   1,
		Error:      err.Error(),
		NoPR:       true,
		CodeWrites: []domain.WrittenArtifact{},
	}
}

func (o *Orchestrator) transition(state *domain.RunState, next State) {
	o.log.Debug("state transition",
		zap.String("run_id", state.RunID),
		zap.String("state", string(next)))
}

// branchName returns the override when given, otherwise a timestamped name so
// repeated runs never collide.
func (o *Orchestrator) branchName() string {
	if o.request.BranchName != "" {
		return o.request.BranchName
	}
	return "agentforge-" + o.now().Format("20060102-150405")
}

// saveLocal writes artifacts under the output directory. Best-effort: a local
// copy is a convenience, never the run's outcome.
func (o *Orchestrator) saveLocal(runID string, artifacts []domain.WrittenArtifact) {
	if o.outputDir == "" || len(artifacts) == 0 {
		return
	}
	for _, a := range artifacts {
		dest := filepath.Join(o.outputDir, runID, filepath.FromSlash(a.Path))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			o.log.Warn("saving artifact locally", zap.String("path", dest), zap.Error(err))
			continue
		}
		if err := os.WriteFile(dest, []byte(a.Content), 0o644); err != nil {
			o.log.Warn("saving artifact locally", zap.String("path", dest), zap.Error(err))
		}
	}
	o.log.Debug("artifacts saved locally",
		zap.String("dir", filepath.Join(o.outputDir, runID)),
		zap.Int("count", len(artifacts)))
}
