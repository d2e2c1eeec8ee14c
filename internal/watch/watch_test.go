package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestSpecWatcherFiresOnWrite(t *testing.T) {
	dir := t.TempDir()
	specPath := filepath.Join(dir, "spec.md")
	if err := os.WriteFile(specPath, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	fired := make(chan string, 1)
	w, err := NewSpecWatcher(specPath, func(p string) { fired <- p }, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSpecWatcher: %v", err)
	}
	defer w.Stop()
	w.SetDebounce(50 * time.Millisecond)
	w.Start(context.Background())

	if err := os.WriteFile(specPath, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case p := <-fired:
		if filepath.Clean(p) != filepath.Clean(specPath) {
			t.Errorf("fired with %q", p)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("callback never fired")
	}
}

func TestSpecWatcherIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	specPath := filepath.Join(dir, "spec.md")
	if err := os.WriteFile(specPath, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	fired := make(chan string, 1)
	w, err := NewSpecWatcher(specPath, func(p string) { fired <- p }, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSpecWatcher: %v", err)
	}
	defer w.Stop()
	w.SetDebounce(50 * time.Millisecond)
	w.Start(context.Background())

	if err := os.WriteFile(filepath.Join(dir, "other.md"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case p := <-fired:
		t.Errorf("callback fired for sibling file: %q", p)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestParseCron(t *testing.T) {
	sched, err := ParseCron("30 2 * * *")
	if err != nil {
		t.Fatalf("ParseCron: %v", err)
	}
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	next := sched.Next(from)
	if next.Hour() != 2 || next.Minute() != 30 {
		t.Errorf("next = %v", next)
	}
}

func TestParseCronInvalid(t *testing.T) {
	if _, err := ParseCron("not a cron"); err == nil {
		t.Error("expected error")
	}
}

func TestScheduleRunStopsOnCancel(t *testing.T) {
	s, err := NewSchedule("* * * * *", zap.NewNop())
	if err != nil {
		t.Fatalf("NewSchedule: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		s.Run(ctx, func(context.Context) { t.Error("fn should not run") })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return on cancel")
	}
}
