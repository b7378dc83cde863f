package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "ledger", "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	for i := 0; i < 2; i++ {
		store, err := Open(path)
		if err != nil {
			t.Fatalf("Open #%d: %v", i+1, err)
		}
		if store.Path() != path {
			t.Fatalf("unexpected path %s", store.Path())
		}
		if err := store.Close(); err != nil {
			t.Fatal(err)
		}
	}
}

func TestOpenRecordsSchemaVersion(t *testing.T) {
	store := openTestStore(t)
	migrations, err := loadMigrations()
	if err != nil {
		t.Fatal(err)
	}
	var version int
	if err := store.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatal(err)
	}
	if want := migrations[len(migrations)-1].version; version != want {
		t.Fatalf("user_version = %d, want %d", version, want)
	}
}

func TestRetryOnBusyStopsOnOtherErrors(t *testing.T) {
	calls := 0
	err := retryOnBusy(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("expected success after 3 calls, got %v after %d", err, calls)
	}

	calls = 0
	boom := errors.New("constraint failed")
	if err := retryOnBusy(context.Background(), func() error { calls++; return boom }); !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("expected single attempt, got %v after %d", err, calls)
	}
}

func TestRunLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := store.BeginRun(ctx, "run-1", "acquire", start); err != nil {
		t.Fatal(err)
	}
	run, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != StatusRunning || !run.StartedAt.Equal(start) || run.Duration() != 0 {
		t.Fatalf("unexpected running row %+v", run)
	}

	outcomes := []BandOutcome{
		{RunID: "run-1", Plot: "1-1", Band: "B2", SceneID: "S2A_1", Outcome: OutcomeDownloaded, Bytes: 1024},
		{RunID: "run-1", Plot: "1-1", Band: "B3", SceneID: "S2A_1", Outcome: OutcomeFailed, Detail: "http 503"},
		{RunID: "run-1", Plot: "1-2", Outcome: OutcomeNoImagery},
	}
	for _, o := range outcomes {
		if err := store.RecordBand(ctx, o); err != nil {
			t.Fatal(err)
		}
	}

	counts := Counts{PlotsProcessed: 2, PlotsNoImagery: 1, PlotsFailed: 1, BandsDownloaded: 1, BandsFailed: 1}
	if err := store.FinishRun(ctx, "run-1", start.Add(90*time.Second), counts, ""); err != nil {
		t.Fatal(err)
	}
	run, err = store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != StatusSucceeded || run.Counts != counts || run.Duration() != 90*time.Second {
		t.Fatalf("unexpected finished row %+v", run)
	}

	stored, err := store.BandOutcomes(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 3 || stored[0].Bytes != 1024 || stored[1].Detail != "http 503" || stored[2].SceneID != "" {
		t.Fatalf("unexpected outcomes %+v", stored)
	}
	tally, err := store.OutcomeCounts(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if tally[OutcomeDownloaded] != 1 || tally[OutcomeFailed] != 1 || tally[OutcomeNoImagery] != 1 {
		t.Fatalf("unexpected tally %v", tally)
	}
}

func TestFinishRunWithErrorMarksFailed(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now()
	if err := store.BeginRun(ctx, "run-x", "acquire", now); err != nil {
		t.Fatal(err)
	}
	if err := store.FinishRun(ctx, "run-x", now.Add(time.Second), Counts{}, "disk full"); err != nil {
		t.Fatal(err)
	}
	run, err := store.GetRun(ctx, "run-x")
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != StatusFailed || run.Error != "disk full" {
		t.Fatalf("unexpected run %+v", run)
	}
}

func TestRecentRunsNewestFirstAndPrune(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := store.BeginRun(ctx, id, "acquire", base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.RecordBand(ctx, BandOutcome{RunID: "a", Plot: "1-1", Band: "B2", Outcome: OutcomeSkipped}); err != nil {
		t.Fatal(err)
	}

	runs, err := store.RecentRuns(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != "c" || runs[1].ID != "b" {
		t.Fatalf("unexpected order %+v", runs)
	}

	removed, err := store.Prune(ctx, base.Add(30*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 run pruned, got %d", removed)
	}
	if _, err := store.GetRun(ctx, "a"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	if outcomes, _ := store.BandOutcomes(ctx, "a"); len(outcomes) != 0 {
		t.Fatalf("band outcomes should cascade, got %+v", outcomes)
	}
}
