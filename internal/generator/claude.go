package generator

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/fintorai/agentforge/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ClaudeCode invokes the claude CLI in non-interactive stream-json mode and
// translates its streamed messages into Events. It holds the session handle
// for the current attempt; Reset discards it so a retry starts clean.
type ClaudeCode struct {
	sessionID string
	log       *zap.Logger
}

// NewClaudeCode creates a ClaudeCode generator with a fresh session.
func NewClaudeCode(log *zap.Logger) *ClaudeCode {
	return &ClaudeCode{
		sessionID: uuid.NewString(),
		log:       log,
	}
}

// Generate runs one generation pass in dir. Streamed write and text events
// are pushed onto events while the process runs; the method returns only
// after both output pipes are fully drained and the process has exited, so
// the caller can treat the channel as complete once Generate returns.
func (g *ClaudeCode) Generate(ctx context.Context, dir, prompt string, events chan<- Event) (domain.AttemptOutcome, error) {
	cmd := exec.CommandContext(ctx, "claude",
		"--print",                        // non-interactive mode
		"--verbose",                      // required for stream-json output
		"--dangerously-skip-permissions", // no permission prompts in the scratch clone
		"--output-format", "stream-json",
		"--session-id", g.sessionID,
		"-p", prompt,
	)
	cmd.Dir = dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return domain.AttemptOutcome{ExitCode: 1}, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return domain.AttemptOutcome{ExitCode: 1}, err
	}

	if err := cmd.Start(); err != nil {
		return domain.AttemptOutcome{ExitCode: 1}, fmt.Errorf("starting claude: %w", err)
	}

	var stdoutBuf, stderrBuf strings.Builder
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 2*1024*1024) // long JSON lines carry whole file contents
		for scanner.Scan() {
			line := scanner.Text()
			stdoutBuf.WriteString(line)
			stdoutBuf.WriteByte('\n')
			for _, ev := range parseStreamLine(line) {
				events <- ev
			}
		}
	}()
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 1024*1024)
		for scanner.Scan() {
			stderrBuf.WriteString(scanner.Text())
			stderrBuf.WriteByte('\n')
		}
	}()
	wg.Wait()

	waitErr := cmd.Wait()
	outcome := domain.AttemptOutcome{
		Stdout:    stdoutBuf.String(),
		Stderr:    stderrBuf.String(),
		Succeeded: waitErr == nil,
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			outcome.ExitCode = exitErr.ExitCode()
		} else {
			outcome.ExitCode = 1
		}
		g.log.Debug("claude exited with error",
			zap.Int("exit_code", outcome.ExitCode),
			zap.String("stderr", truncate(outcome.Stderr, 500)))
	}
	return outcome, nil
}

// Reset discards the current session handle so the next attempt does not
// resume a conversation that produced a failure.
func (g *ClaudeCode) Reset() {
	g.sessionID = uuid.NewString()
}

// streamMessage covers the subset of claude stream-json lines we care about:
// assistant messages (text and tool_use content blocks) and the final result.
type streamMessage struct {
	Type    string `json:"type"`
	Message struct {
		Role    string `json:"role"`
		Content []struct {
			Type  string          `json:"type"`
			Text  string          `json:"text"`
			Name  string          `json:"name"`
			Input json.RawMessage `json:"input"`
		} `json:"content"`
	} `json:"message"`
}

// writeToolInput is the input shape of the Write tool.
type writeToolInput struct {
	FilePath string `json:"file_path"`
	Content  string `json:"content"`
}

// parseStreamLine extracts events from a single stream-json line. Unparseable
// lines and message types we do not handle yield no events.
func parseStreamLine(line string) []Event {
	if !strings.HasPrefix(line, "{") {
		return nil
	}
	var msg streamMessage
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		return nil
	}
	if msg.Type != "assistant" || msg.Message.Role != "assistant" {
		return nil
	}

	var events []Event
	for _, block := range msg.Message.Content {
		switch block.Type {
		case "text":
			if block.Text != "" {
				events = append(events, Event{Kind: EventText, Text: block.Text})
			}
		case "tool_use":
			if !isWriteTool(block.Name) {
				continue
			}
			var input writeToolInput
			if err := json.Unmarshal(block.Input, &input); err != nil {
				continue
			}
			if input.FilePath == "" {
				continue
			}
			events = append(events, Event{
				Kind:    EventWrite,
				Path:    input.FilePath,
				Content: input.Content,
			})
		}
	}
	return events
}

func isWriteTool(name string) bool {
	switch name {
	case "Write", "write_file", "create_file":
		return true
	}
	return false
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
