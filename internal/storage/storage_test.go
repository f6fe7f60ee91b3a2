package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("opening ledger: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestOpenCreatesParents verifies that Open creates missing parent
// directories and that reopening an existing ledger applies no migration
// twice.
func TestOpenCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dirs", "ledger.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	db.Close()
}

// TestRunLifecycle verifies the start/finish cycle and that listing returns
// runs newest first with all counters intact.
func TestRunLifecycle(t *testing.T) {
	db := openTemp(t)
	ctx := context.Background()

	first := Run{
		ID:         uuid.New(),
		Source:     "takeout",
		InputPath:  "/exports/takeout",
		OutputPath: "/exports/oscar",
		StartedAt:  time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC),
	}
	if err := db.StartRun(ctx, first); err != nil {
		t.Fatalf("starting run: %v", err)
	}

	first.FinishedAt = first.StartedAt.Add(3 * time.Second)
	first.Status = StatusSuccess
	first.Sleep = 31
	first.SpO2 = 14400
	first.HeartRate = 14400
	first.Skipped = 2
	if err := db.FinishRun(ctx, first); err != nil {
		t.Fatalf("finishing run: %v", err)
	}

	second := Run{
		ID:         uuid.New(),
		Source:     "health_sync",
		InputPath:  "/exports/healthsync",
		OutputPath: "/exports/oscar",
		StartedAt:  first.StartedAt.Add(time.Hour),
	}
	if err := db.StartRun(ctx, second); err != nil {
		t.Fatalf("starting second run: %v", err)
	}

	runs, err := db.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("listing runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].ID != second.ID {
		t.Errorf("newest run = %s, want %s", runs[0].ID, second.ID)
	}
	if runs[0].Status != StatusRunning || !runs[0].FinishedAt.IsZero() {
		t.Errorf("unfinished run = %q/%v", runs[0].Status, runs[0].FinishedAt)
	}

	got := runs[1]
	if got.Status != StatusSuccess || got.Sleep != 31 || got.SpO2 != 14400 ||
		got.HeartRate != 14400 || got.Skipped != 2 {
		t.Errorf("finished run = %+v", got)
	}
	if !got.StartedAt.Equal(first.StartedAt) || !got.FinishedAt.Equal(first.FinishedAt) {
		t.Errorf("times = %v/%v, want %v/%v",
			got.StartedAt, got.FinishedAt, first.StartedAt, first.FinishedAt)
	}
}

// TestListRunsLimit verifies the default and explicit limits.
func TestListRunsLimit(t *testing.T) {
	db := openTemp(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		run := Run{
			ID:        uuid.New(),
			Source:    "takeout",
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := db.StartRun(ctx, run); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := db.ListRuns(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 20 {
		t.Errorf("default limit returned %d runs, want 20", len(runs))
	}

	runs, err = db.ListRuns(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 5 {
		t.Errorf("limit 5 returned %d runs", len(runs))
	}
}

// TestProcessedFiles verifies fingerprint dedup: same fingerprint is
// processed, any changed part of it is not, and re-marking replaces.
func TestProcessedFiles(t *testing.T) {
	db := openTemp(t)
	ctx := context.Background()

	runID := uuid.New()
	if err := db.StartRun(ctx, Run{ID: runID, Source: "takeout", StartedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}

	const path = "/exports/sleep-2024-01-15.json"
	if err := db.MarkProcessed(ctx, runID, path, 2048, "aabb"); err != nil {
		t.Fatalf("marking: %v", err)
	}

	tests := []struct {
		name string
		path string
		size int64
		hash string
		want bool
	}{
		{"same fingerprint", path, 2048, "aabb", true},
		{"different size", path, 4096, "aabb", false},
		{"different hash", path, 2048, "ccdd", false},
		{"different path", "/exports/other.json", 2048, "aabb", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.IsProcessed(ctx, tt.path, tt.size, tt.hash)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("IsProcessed = %v, want %v", got, tt.want)
			}
		})
	}

	// A grown file re-marks under its new fingerprint.
	if err := db.MarkProcessed(ctx, runID, path, 4096, "ccdd"); err != nil {
		t.Fatal(err)
	}
	old, err := db.IsProcessed(ctx, path, 2048, "aabb")
	if err != nil {
		t.Fatal(err)
	}
	if old {
		t.Error("old fingerprint still processed after re-mark")
	}
}

// TestHashFile verifies the fingerprint hash against a known SHA-256.
func TestHashFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := HashFile(path)
	if err != nil {
		t.Fatal(err)
	}
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Errorf("HashFile = %s, want %s", got, want)
	}
}
