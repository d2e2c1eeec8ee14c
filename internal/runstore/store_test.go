package runstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/fintorai/agentforge/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndListRuns(t *testing.T) {
	store := newTestStore(t)

	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	state := &domain.RunState{
		RunID:      "run-1",
		Branch:     "agentforge-20250601-120000",
		NoChanges:  1,
		StartedAt:  start,
		FinishedAt: start.Add(2 * time.Minute),
	}
	rep := &domain.RunReport{
		CodeWrites:  []domain.WrittenArtifact{{Path: "a.py"}, {Path: "b.py"}},
		PullRequest: &domain.PullRequestRef{Number: 42, URL: "https://github.com/o/r/pull/42"},
	}
	if err := store.SaveRun(state, rep); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	records, err := store.ListRecent(10)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	rec := records[0]
	if rec.Status != "completed" || rec.PRNumber != 42 || rec.ArtifactCount != 2 || rec.NoChanges != 1 {
		t.Errorf("record = %+v", rec)
	}
}

func TestSaveFailedRun(t *testing.T) {
	store := newTestStore(t)

	state := &domain.RunState{RunID: "run-2", Branch: "b", StartedAt: time.Now()}
	rep := &domain.RunReport{ExitCode: 1, Error: "generation attempts exhausted"}
	if err := store.SaveRun(state, rep); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	records, err := store.ListRecent(10)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if records[0].Status != "failed" || records[0].Error == "" {
		t.Errorf("record = %+v", records[0])
	}
	if records[0].PRNumber != 0 {
		t.Errorf("PRNumber = %d, want 0", records[0].PRNumber)
	}
}

func TestListRecentOrdering(t *testing.T) {
	store := newTestStore(t)

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		state := &domain.RunState{RunID: id, Branch: "b", StartedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := store.SaveRun(state, &domain.RunReport{}); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
	}

	records, err := store.ListRecent(2)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(records) != 2 || records[0].ID != "new" || records[1].ID != "mid" {
		t.Errorf("records = %+v", records)
	}
}
