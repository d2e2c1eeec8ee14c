package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fintorai/agentforge/internal/domain"
)

// Sentinel lines delimiting the structured record in the output stream, so a
// calling process can locate the JSON payload amid log lines.
const (
	SentinelStart = "AGENT_RESPONSE_START"
	SentinelEnd   = "AGENT_RESPONSE_END"
)

// Reporter serializes exactly one RunReport per run between the sentinels.
type Reporter struct {
	out io.Writer
}

func New(out io.Writer) *Reporter {
	return &Reporter{out: out}
}

// Emit writes the report as one JSON object between the sentinel lines. The
// codeWrites field is always an array, never null, so callers can index it
// without a presence check.
func (r *Reporter) Emit(rep *domain.RunReport) error {
	if rep.CodeWrites == nil {
		rep.CodeWrites = []domain.WrittenArtifact{}
	}
	payload, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("marshaling run report: %w", err)
	}
	if _, err := fmt.Fprintf(r.out, "%s\n%s\n%s\n", SentinelStart, payload, SentinelEnd); err != nil {
		return fmt.Errorf("writing run report: %w", err)
	}
	return nil
}

// Failure builds the report shape for a fatal error: the error's message, a
// non-zero exit code, and empty artifact and publish fields.
func Failure(err error, branch string) *domain.RunReport {
	return &domain.RunReport{
		Message:    "run failed: " + err.Error(),
		ExitCode:   1,
		Error:      err.Error(),
		NoPR:       true,
		CodeWrites: []domain.WrittenArtifact{},
		BranchName: branch,
	}
}
