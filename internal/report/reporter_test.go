package report

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/fintorai/agentforge/internal/domain"
)

func extractPayload(t *testing.T, out string) string {
	t.Helper()
	start := strings.Index(out, SentinelStart)
	end := strings.Index(out, SentinelEnd)
	if start < 0 || end < 0 || end < start {
		t.Fatalf("sentinels missing or out of order in %q", out)
	}
	return strings.TrimSpace(out[start+len(SentinelStart) : end])
}

func TestEmitSuccessReport(t *testing.T) {
	var buf strings.Builder
	rep := &domain.RunReport{
		Message:  "pull request created",
		ExitCode: 0,
		CodeWrites: []domain.WrittenArtifact{
			{Path: "src/agent/graph.py", Content: "code"},
		},
		PullRequest: &domain.PullRequestRef{Number: 42, URL: "https://github.com/o/r/pull/42", BranchName: "agent-x"},
		BranchName:  "agent-x",
	}
	if err := New(&buf).Emit(rep); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(extractPayload(t, buf.String())), &decoded); err != nil {
		t.Fatalf("payload not valid JSON: %v", err)
	}
	if decoded["response"] != "pull request created" {
		t.Errorf("response = %v", decoded["response"])
	}
	if decoded["exitCode"] != float64(0) {
		t.Errorf("exitCode = %v", decoded["exitCode"])
	}
	pr, ok := decoded["pullRequest"].(map[string]any)
	if !ok || pr["number"] != float64(42) {
		t.Errorf("pullRequest = %v", decoded["pullRequest"])
	}
	writes, ok := decoded["codeWrites"].([]any)
	if !ok || len(writes) != 1 {
		t.Errorf("codeWrites = %v", decoded["codeWrites"])
	}
}

func TestEmitNilCodeWritesBecomesEmptyArray(t *testing.T) {
	var buf strings.Builder
	if err := New(&buf).Emit(&domain.RunReport{Message: "skipped"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	payload := extractPayload(t, buf.String())
	if !strings.Contains(payload, `"codeWrites":[]`) {
		t.Errorf("codeWrites should be an empty array: %s", payload)
	}
	if !strings.Contains(payload, `"pullRequest":null`) {
		t.Errorf("pullRequest should be null: %s", payload)
	}
}

func TestFailureReport(t *testing.T) {
	rep := Failure(errors.New("generation attempts exhausted after 3 attempts"), "agent-x")
	if rep.ExitCode != 1 {
		t.Errorf("exitCode = %d", rep.ExitCode)
	}
	if !strings.Contains(rep.Error, "3 attempts") {
		t.Errorf("error = %q", rep.Error)
	}
	if !rep.NoPR || rep.PullRequest != nil || len(rep.CodeWrites) != 0 {
		t.Errorf("failure report should carry empty publish fields: %+v", rep)
	}
	if rep.BranchName != "agent-x" {
		t.Errorf("branchName = %q", rep.BranchName)
	}
}

func TestEmitSingleRecord(t *testing.T) {
	var buf strings.Builder
	if err := New(&buf).Emit(&domain.RunReport{}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	out := buf.String()
	if strings.Count(out, SentinelStart) != 1 || strings.Count(out, SentinelEnd) != 1 {
		t.Errorf("exactly one sentinel pair expected: %q", out)
	}
}
