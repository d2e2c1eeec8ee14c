package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Schedule runs fn on a cron expression until ctx is done. Runs execute
// sequentially: a tick that would fire while fn is still running waits for
// the next slot instead of overlapping.
type Schedule struct {
	sched cron.Schedule
	log   *zap.Logger
}

// ParseCron parses a standard five-field cron expression.
func ParseCron(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parsing cron expression %q: %w", expr, err)
	}
	return sched, nil
}

func NewSchedule(expr string, log *zap.Logger) (*Schedule, error) {
	sched, err := ParseCron(expr)
	if err != nil {
		return nil, err
	}
	return &Schedule{sched: sched, log: log}, nil
}

// Next returns the next firing time after now.
func (s *Schedule) Next(now time.Time) time.Time {
	return s.sched.Next(now)
}

// Run blocks, invoking fn at each scheduled time, until ctx is done.
func (s *Schedule) Run(ctx context.Context, fn func(context.Context)) {
	for {
		next := s.sched.Next(time.Now())
		s.log.Info("next scheduled run", zap.Time("at", next))

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}

		fn(ctx)
	}
}
