package domain

import "time"

// RunState is the mutable per-run state shared across attempts. The branch
// name is fixed before the first attempt; PRCreated latches true once a pull
// request exists and is never cleared within a run. It is owned by the
// orchestrator and passed by reference into the publish policy, never held as
// ambient package state.
type RunState struct {
	RunID      string
	Branch     string
	PRCreated  bool
	PRNumber   int
	PRURL      string
	PushOnly   bool // once set, PR creation is never attempted again this run
	Generation int  // generation attempts consumed so far
	NoChanges  int  // no-changes regeneration cycles consumed so far
	StartedAt  time.Time
	FinishedAt time.Time
}

// PullRequestRef identifies a created pull request in the run report.
type PullRequestRef struct {
	Number     int    `json:"number"`
	URL        string `json:"url"`
	BranchName string `json:"branchName"`
}

// RunReport is the single externally observable result of a run. It is
// serialized between sentinel markers by the reporter; the same shape is used
// for success and fatal failure.
type RunReport struct {
	Message     string            `json:"response"`
	ExitCode    int               `json:"exitCode"`
	Error       string            `json:"error"`
	NoPR        bool              `json:"noPr"`
	CodeWrites  []WrittenArtifact `json:"codeWrites"`
	PullRequest *PullRequestRef   `json:"pullRequest"`
	BranchName  string            `json:"branchName"`
}
