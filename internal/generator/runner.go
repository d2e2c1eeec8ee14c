package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fintorai/agentforge/internal/domain"
	"go.uber.org/zap"
)

// ErrAttemptsExhausted is returned when every generation attempt in the
// budget has failed. It carries the last failure's message.
var ErrAttemptsExhausted = errors.New("generation attempts exhausted")

// Generator is the code-generation collaborator invoked once per attempt.
type Generator interface {
	// Generate runs one generation pass in dir, pushing streamed events onto
	// the channel. It must not return until all events have been sent.
	Generate(ctx context.Context, dir, prompt string, events chan<- Event) (domain.AttemptOutcome, error)
	// Reset discards any session state before a retry.
	Reset()
}

// Environment is the execution environment the generator runs in.
type Environment interface {
	Dir() string
	Reset(ctx context.Context) error
}

// AttemptResult is the captured output of one successful attempt. Buffers are
// attempt-scoped: a fresh result is allocated per attempt, so partial data
// from a failed attempt never leaks into the next.
type AttemptResult struct {
	Outcome  domain.AttemptOutcome
	Texts    []string                 // assistant narrative fragments, in arrival order
	Writes   []domain.WrittenArtifact // captured write events, in arrival order
	Attempts int                      // attempts consumed, including the successful one
}

// Runner drives bounded generation attempts with backoff and environment
// reset between failures.
type Runner struct {
	gen         Generator
	env         Environment
	maxAttempts int
	backoff     time.Duration
	log         *zap.Logger
}

// NewRunner creates a Runner. maxAttempts below 1 is clamped to 1.
func NewRunner(gen Generator, env Environment, maxAttempts int, backoffDur time.Duration, log *zap.Logger) *Runner {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Runner{
		gen:         gen,
		env:         env,
		maxAttempts: maxAttempts,
		backoff:     backoffDur,
		log:         log,
	}
}

// Run performs up to maxAttempts generation attempts. Between failures the
// generator session and the execution environment are both reset, then the
// runner waits the configured backoff. Budget exhaustion returns
// ErrAttemptsExhausted wrapping the last failure.
func (r *Runner) Run(ctx context.Context, prompt string) (*AttemptResult, error) {
	var result *AttemptResult
	attempt := 0

	op := func() error {
		attempt++
		r.log.Info("generation attempt",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.maxAttempts))
		res, err := r.runOnce(ctx, prompt)
		if err != nil {
			return err
		}
		result = res
		return nil
	}

	notify := func(err error, wait time.Duration) {
		r.log.Warn("generation attempt failed",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err))
		// Reset before waiting so a corrupted environment never carries into
		// the next attempt.
		r.gen.Reset()
		if rerr := r.env.Reset(ctx); rerr != nil {
			r.log.Warn("environment reset failed", zap.Error(rerr))
		}
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.backoff), uint64(r.maxAttempts-1)),
		ctx,
	)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, fmt.Errorf("%w after %d attempts: %v", ErrAttemptsExhausted, attempt, err)
	}
	result.Attempts = attempt
	return result, nil
}

// runOnce executes a single attempt with fresh capture buffers. The event
// channel is drained into the buffers concurrently but they are read only
// after the attempt's terminal outcome is known.
func (r *Runner) runOnce(ctx context.Context, prompt string) (*AttemptResult, error) {
	events := make(chan Event, 64)
	res := &AttemptResult{}
	done := make(chan struct{})

	go func() {
		defer close(done)
		for ev := range events {
			switch ev.Kind {
			case EventText:
				res.Texts = append(res.Texts, ev.Text)
			case EventWrite:
				res.Writes = append(res.Writes, domain.WrittenArtifact{
					Path:    ev.Path,
					Content: ev.Content,
				})
			}
		}
	}()

	outcome, err := r.gen.Generate(ctx, r.env.Dir(), prompt, events)
	close(events)
	<-done

	if err != nil {
		return nil, err
	}
	if !outcome.Succeeded || outcome.ExitCode != 0 {
		return nil, fmt.Errorf("generation exited with code %d: %s",
			outcome.ExitCode, firstLine(outcome.Stderr))
	}
	res.Outcome = outcome
	return res, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
