package domain

import "time"

// RunStatus represents the execution state of a run
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// GeneratorKind selects which generation collaborator to use
type GeneratorKind string

const (
	GeneratorClaudeCode GeneratorKind = "claude-code"
	GeneratorAPI        GeneratorKind = "api"
)

// GenerationRequest describes one end-to-end run. It is fixed before the
// first attempt and never mutated afterwards.
type GenerationRequest struct {
	SpecText            string
	TargetRepo          string // owner/name
	BranchName          string
	NoPR                bool
	MaxAttempts         int
	Backoff             time.Duration
	NoChangesMaxRetries int
}

// AttemptOutcome is the terminal result of a single generation attempt.
// Only the most recent outcome is retained; retries track counters, not history.
type AttemptOutcome struct {
	ExitCode  int
	Stdout    string
	Stderr    string
	Succeeded bool
}

// WrittenArtifact is a file the generation step claims to have produced.
type WrittenArtifact struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// PublishKind tags the outcome of a publish decision
type PublishKind string

const (
	PublishPullRequest   PublishKind = "pull_request_created"
	PublishBranchUpdated PublishKind = "branch_updated"
	PublishSkipped       PublishKind = "skipped"
)

// PublishOutcome is the result of feeding artifacts through the publish policy.
// Exactly one is recorded per run.
type PublishOutcome struct {
	Kind     PublishKind
	PRNumber int
	PRURL    string
	Branch   string
	Reason   string // populated for PublishSkipped
}
