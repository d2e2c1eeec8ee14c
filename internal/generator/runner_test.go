package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/fintorai/agentforge/internal/domain"
	"go.uber.org/zap"
)

// fakeGenerator fails a fixed number of times before succeeding, and records
// events it emitted so tests can verify buffer isolation between attempts.
type fakeGenerator struct {
	failures   int
	calls      int
	resets     int
	emitOnFail []Event // events emitted during failing attempts
	emitOnOK   []Event
}

func (g *fakeGenerator) Generate(ctx context.Context, dir, prompt string, events chan<- Event) (domain.AttemptOutcome, error) {
	g.calls++
	if g.calls <= g.failures {
		for _, ev := range g.emitOnFail {
			events <- ev
		}
		return domain.AttemptOutcome{ExitCode: 1, Stderr: "boom"}, nil
	}
	for _, ev := range g.emitOnOK {
		events <- ev
	}
	return domain.AttemptOutcome{Succeeded: true, Stdout: "ok"}, nil
}

func (g *fakeGenerator) Reset() { g.resets++ }

type fakeEnv struct {
	dir    string
	resets int
	failOn error
}

func (e *fakeEnv) Dir() string { return e.dir }
func (e *fakeEnv) Reset(ctx context.Context) error {
	e.resets++
	return e.failOn
}

func newTestRunner(gen Generator, env Environment, maxAttempts int) *Runner {
	return NewRunner(gen, env, maxAttempts, time.Millisecond, zap.NewNop())
}

func TestRunSucceedsFirstAttempt(t *testing.T) {
	gen := &fakeGenerator{
		emitOnOK: []Event{
			{Kind: EventText, Text: "writing the file now"},
			{Kind: EventWrite, Path: "src/agent/graph.py", Content: "print(1)"},
		},
	}
	env := &fakeEnv{dir: "/tmp/ws"}

	res, err := newTestRunner(gen, env, 3).Run(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if gen.calls != 1 {
		t.Errorf("calls = %d, want 1", gen.calls)
	}
	if env.resets != 0 {
		t.Errorf("env resets = %d, want 0", env.resets)
	}
	if len(res.Writes) != 1 || res.Writes[0].Path != "src/agent/graph.py" {
		t.Errorf("Writes = %+v", res.Writes)
	}
	if len(res.Texts) != 1 {
		t.Errorf("Texts = %+v", res.Texts)
	}
}

func TestRunRetriesWithResetBetweenFailures(t *testing.T) {
	gen := &fakeGenerator{
		failures:   2,
		emitOnFail: []Event{{Kind: EventWrite, Path: "stale.py", Content: "bad"}},
		emitOnOK:   []Event{{Kind: EventWrite, Path: "good.py", Content: "good"}},
	}
	env := &fakeEnv{dir: "/tmp/ws"}

	res, err := newTestRunner(gen, env, 3).Run(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if gen.calls != 3 {
		t.Errorf("calls = %d, want 3", gen.calls)
	}
	// Both generator session and environment reset once per failure.
	if gen.resets != 2 {
		t.Errorf("generator resets = %d, want 2", gen.resets)
	}
	if env.resets != 2 {
		t.Errorf("env resets = %d, want 2", env.resets)
	}
	// Capture buffers are attempt-scoped: nothing from the failed attempts
	// survives into the returned result.
	if len(res.Writes) != 1 || res.Writes[0].Path != "good.py" {
		t.Errorf("Writes = %+v, want only good.py", res.Writes)
	}
}

func TestRunExhaustsBudget(t *testing.T) {
	gen := &fakeGenerator{failures: 10}
	env := &fakeEnv{dir: "/tmp/ws"}

	_, err := newTestRunner(gen, env, 3).Run(context.Background(), "prompt")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrAttemptsExhausted) {
		t.Errorf("error should wrap ErrAttemptsExhausted, got %v", err)
	}
	if gen.calls != 3 {
		t.Errorf("calls = %d, want 3", gen.calls)
	}
	if !strings.Contains(err.Error(), "3 attempts") {
		t.Errorf("error should mention attempt count: %v", err)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("error should carry last failure message: %v", err)
	}
}

func TestRunEnvironmentResetFailureDoesNotAbortRetry(t *testing.T) {
	gen := &fakeGenerator{failures: 1}
	env := &fakeEnv{dir: "/tmp/ws", failOn: fmt.Errorf("reset broke")}

	_, err := newTestRunner(gen, env, 3).Run(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Run should still succeed on retry: %v", err)
	}
	if gen.calls != 2 {
		t.Errorf("calls = %d, want 2", gen.calls)
	}
}

func TestRunGeneratorErrorIsRetryable(t *testing.T) {
	// A thrown error (not just a non-zero exit) must count against the same
	// attempt budget.
	calls := 0
	gen := &errGenerator{err: fmt.Errorf("transport failed"), calls: &calls}
	env := &fakeEnv{dir: "/tmp/ws"}

	_, err := newTestRunner(gen, env, 2).Run(context.Background(), "prompt")
	if !errors.Is(err, ErrAttemptsExhausted) {
		t.Fatalf("want ErrAttemptsExhausted, got %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

type errGenerator struct {
	err   error
	calls *int
}

func (g *errGenerator) Generate(ctx context.Context, dir, prompt string, events chan<- Event) (domain.AttemptOutcome, error) {
	*g.calls++
	return domain.AttemptOutcome{ExitCode: 1}, g.err
}

func (g *errGenerator) Reset() {}
