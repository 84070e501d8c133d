package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"scenegen/internal/pipeline"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRunLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := store.StartRun(ctx, pipeline.RunStart{
		RunID: "run-a", Prompt: "draw a circle", Scene: "GenScene", MaxFixAttempts: 2, StartedAt: started,
	}); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	attempts := []pipeline.AttemptRecord{
		{RunID: "run-a", Number: 1, Outcome: pipeline.OutcomeRenderFailed, ScriptPath: "/o/script.py", ExitCode: 1, Stderr: "NameError", StartedAt: started, FinishedAt: started.Add(time.Second)},
		{RunID: "run-a", Number: 2, Outcome: pipeline.OutcomeRendered, ScriptPath: "/o/script.py", StartedAt: started.Add(2 * time.Second), FinishedAt: started.Add(3 * time.Second)},
	}
	for _, a := range attempts {
		if err := store.RecordAttempt(ctx, a); err != nil {
			t.Fatalf("RecordAttempt: %v", err)
		}
	}
	if err := store.FinishRun(ctx, pipeline.RunFinish{
		RunID: "run-a", State: pipeline.StateSucceeded, Attempts: 2, Fixes: 1,
		ArtifactPath: "/m/GenScene.mp4", PublishedPath: "/o/GenScene.mp4", FinishedAt: started.Add(4 * time.Second),
	}); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	run, got, err := store.Get(ctx, "run-a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if run.State != "succeeded" || run.Attempts != 2 || run.Fixes != 1 || run.PublishedPath != "/o/GenScene.mp4" {
		t.Fatalf("unexpected run %+v", run)
	}
	if !run.StartedAt.Equal(started) || run.FinishedAt == nil {
		t.Fatalf("unexpected timestamps %v %v", run.StartedAt, run.FinishedAt)
	}
	if len(got) != 2 || got[0].Stderr != "NameError" || got[1].Outcome != pipeline.OutcomeRendered {
		t.Fatalf("unexpected attempts %+v", got)
	}
}

func TestRecordAttemptUpdatesCounters(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.StartRun(ctx, pipeline.RunStart{RunID: "r", Prompt: "p", StartedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	for n := 1; n <= 3; n++ {
		if err := store.RecordAttempt(ctx, pipeline.AttemptRecord{RunID: "r", Number: n, Outcome: pipeline.OutcomeRenderFailed}); err != nil {
			t.Fatal(err)
		}
	}
	run, _, err := store.Get(ctx, "r")
	if err != nil {
		t.Fatal(err)
	}
	if run.Attempts != 3 || run.Fixes != 2 || run.FinishedAt != nil {
		t.Fatalf("unexpected run %+v", run)
	}
}

func TestListNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"first", "second", "third"} {
		if err := store.StartRun(ctx, pipeline.RunStart{RunID: id, Prompt: id, StartedAt: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatal(err)
		}
	}
	runs, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "third" || runs[1].ID != "second" {
		t.Fatalf("unexpected order %+v", runs)
	}
	all, err := store.List(ctx, 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("List all: %d %v", len(all), err)
	}
}

func TestGetByPrefix(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"abc123", "abd456"} {
		if err := store.StartRun(ctx, pipeline.RunStart{RunID: id, Prompt: "p", StartedAt: time.Now()}); err != nil {
			t.Fatal(err)
		}
	}
	run, _, err := store.Get(ctx, "abc")
	if err != nil || run.ID != "abc123" {
		t.Fatalf("Get prefix: %+v %v", run, err)
	}
	if _, _, err := store.Get(ctx, "ab"); err == nil {
		t.Fatal("expected ambiguity error")
	}
	if _, _, err := store.Get(ctx, "zzz"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	if _, _, err := store.Get(ctx, "a_"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("underscore must match literally, got %v", err)
	}
}

func TestFinishUnknownRun(t *testing.T) {
	store := openTestStore(t)
	err := store.FinishRun(context.Background(), pipeline.RunFinish{RunID: "missing", State: pipeline.StateFailed})
	if !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()
	first, err := Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.StartRun(ctx, pipeline.RunStart{RunID: "keep", Prompt: "p", StartedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	_ = first.Close()

	second, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	if _, _, err := second.Get(ctx, "keep"); err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
}
