package history

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSaveAndRecentRuns(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	runs := []*Run{
		{StartedAt: base, DurationMs: 900, Source: "hotkey", Model: "gemini-2.5-flash", InputChars: 10, OutputChars: 11, Success: true},
		{StartedAt: base.Add(time.Minute), DurationMs: 300, Source: "run-once", Model: "gemini-2.5-flash", Turbo: true, ErrorKind: "vendor", ErrorMessage: "API key not valid"},
		{StartedAt: base.Add(2 * time.Minute), DurationMs: 1200, Source: "hotkey", Model: "gemini-2.5-pro", InputChars: 5, OutputChars: 5, Success: true},
	}
	for _, r := range runs {
		if err := db.SaveRun(r); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
		if r.ID == 0 {
			t.Error("SaveRun did not set ID")
		}
	}

	got, err := db.RecentRuns(2)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Model != "gemini-2.5-pro" || got[1].ErrorKind != "vendor" {
		t.Errorf("unexpected order: %+v", got)
	}
	if !got[1].StartedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("StartedAt = %v", got[1].StartedAt)
	}
	if got[1].Success || !got[1].Turbo || got[1].ErrorMessage != "API key not valid" {
		t.Errorf("failed run not preserved: %+v", got[1])
	}
	if got[0].ErrorKind != "" || got[0].ErrorMessage != "" {
		t.Errorf("successful run has error fields: %+v", got[0])
	}
}

func TestRecentRunsEmpty(t *testing.T) {
	db := openTestDB(t)
	got, err := db.RecentRuns(0)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %v, want empty non-nil slice", got)
	}
}

func TestStats(t *testing.T) {
	db := openTestDB(t)
	s, err := db.Stats()
	if err != nil {
		t.Fatalf("Stats on empty db: %v", err)
	}
	if s.TotalRuns != 0 {
		t.Errorf("TotalRuns = %d", s.TotalRuns)
	}

	now := time.Now()
	for _, r := range []*Run{
		{StartedAt: now, DurationMs: 100, Model: "m", Source: "hotkey", InputChars: 4, Success: true},
		{StartedAt: now, DurationMs: 300, Model: "m", Source: "hotkey", InputChars: 6},
	} {
		if err := db.SaveRun(r); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
	}
	s, err = db.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := Stats{TotalRuns: 2, SuccessCount: 1, FailureCount: 1, AvgDurationMs: 200, TotalChars: 10}
	if s != want {
		t.Errorf("Stats = %+v, want %+v", s, want)
	}
}

func TestReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.SaveRun(&Run{StartedAt: time.Now(), Model: "m", Source: "hotkey", Success: true}); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	runs, err := db.RecentRuns(10)
	if err != nil || len(runs) != 1 {
		t.Errorf("RecentRuns after reopen = %d runs, %v", len(runs), err)
	}
}
