package journal

import (
	"path/filepath"
	"testing"
	"time"

	"smlb/internal/config"
	"smlb/internal/testutil"
)

func newTestJournal(t *testing.T) (*SQLiteJournal, *testutil.StubClock) {
	t.Helper()
	clock := testutil.FixedClock()
	j, err := NewSQLiteJournal(filepath.Join(t.TempDir(), "journal.db"), clock)
	if err != nil {
		t.Fatalf("NewSQLiteJournal() error = %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j, clock
}

func TestSQLiteJournal_BeginFinishRecent(t *testing.T) {
	j, clock := newTestJournal(t)

	id1, err := j.Begin("docs", "backup")
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	clock.Advance(time.Minute)
	id2, err := j.Begin("docs", "restore")
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if id2 == id1 {
		t.Fatalf("Begin() reused id %d", id1)
	}

	clock.Advance(time.Minute)
	if err := j.Finish(id1, "success"); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	recs, err := j.Recent(10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("len(recs) = %d, want 2", len(recs))
	}

	t.Run("newest first", func(t *testing.T) {
		if recs[0].ID != id2 || recs[1].ID != id1 {
			t.Errorf("order = [%d %d], want [%d %d]", recs[0].ID, recs[1].ID, id2, id1)
		}
	})

	t.Run("finished record carries status and time", func(t *testing.T) {
		done := recs[1]
		if done.Status != "success" {
			t.Errorf("Status = %q, want success", done.Status)
		}
		if done.FinishedAt.IsZero() {
			t.Error("FinishedAt not set after Finish")
		}
	})

	t.Run("running record has no finish time", func(t *testing.T) {
		running := recs[0]
		if running.Status != "running" {
			t.Errorf("Status = %q, want running", running.Status)
		}
		if !running.FinishedAt.IsZero() {
			t.Errorf("FinishedAt = %v, want zero", running.FinishedAt)
		}
	})
}

func TestSQLiteJournal_RecentLimit(t *testing.T) {
	j, clock := newTestJournal(t)

	for i := 0; i < 5; i++ {
		if _, err := j.Begin("docs", "backup"); err != nil {
			t.Fatal(err)
		}
		clock.Advance(time.Second)
	}

	recs, err := j.Recent(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Errorf("len(recs) = %d, want 3", len(recs))
	}

	t.Run("non-positive limit returns nothing", func(t *testing.T) {
		for _, limit := range []int{0, -1} {
			recs, err := j.Recent(limit)
			if err != nil {
				t.Fatalf("Recent(%d) error = %v", limit, err)
			}
			if len(recs) != 0 {
				t.Errorf("Recent(%d) = %d records, want 0", limit, len(recs))
			}
		}
	})
}

func TestSQLiteJournal_ReopensExistingDatabase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journal.db")
	clock := testutil.FixedClock()

	j, err := NewSQLiteJournal(path, clock)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := j.Begin("docs", "backup"); err != nil {
		t.Fatal(err)
	}
	if err := j.Close(); err != nil {
		t.Fatal(err)
	}

	// Reopening runs the migrations again; an up-to-date schema is not
	// an error and existing rows survive.
	j2, err := NewSQLiteJournal(path, clock)
	if err != nil {
		t.Fatalf("reopening journal error = %v", err)
	}
	defer j2.Close()

	recs, err := j2.Recent(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Errorf("len(recs) = %d after reopen, want 1", len(recs))
	}
}

func TestMemoryJournal(t *testing.T) {
	clock := testutil.FixedClock()
	j := NewMemoryJournal(clock)

	id, err := j.Begin("docs", "export")
	if err != nil {
		t.Fatal(err)
	}
	if err := j.Finish(id, "error"); err != nil {
		t.Fatal(err)
	}

	t.Run("non-positive limit returns nothing", func(t *testing.T) {
		recs, err := j.Recent(0)
		if err != nil {
			t.Fatal(err)
		}
		if len(recs) != 0 {
			t.Errorf("Recent(0) = %d records, want 0", len(recs))
		}
	})

	t.Run("finish of unknown id fails", func(t *testing.T) {
		if err := j.Finish(999, "success"); err == nil {
			t.Error("Finish(999) succeeded")
		}
	})

	t.Run("recent copies records", func(t *testing.T) {
		recs, err := j.Recent(10)
		if err != nil {
			t.Fatal(err)
		}
		if len(recs) != 1 || recs[0].Status != "error" {
			t.Fatalf("recs = %+v", recs)
		}

		recs[0].Status = "mutated"
		again, err := j.Recent(10)
		if err != nil {
			t.Fatal(err)
		}
		if again[0].Status != "error" {
			t.Error("Recent() exposed internal records")
		}
	})
}

func TestNewJournalFromConfig(t *testing.T) {
	clock := testutil.FixedClock()

	t.Run("memory", func(t *testing.T) {
		j, err := NewJournalFromConfig(config.JournalConfig{Type: "memory"}, clock)
		if err != nil {
			t.Fatalf("error = %v", err)
		}
		defer j.Close()
		if _, ok := j.(*MemoryJournal); !ok {
			t.Errorf("journal type = %T, want *MemoryJournal", j)
		}
	})

	t.Run("sqlite default", func(t *testing.T) {
		cfg := config.JournalConfig{Path: filepath.Join(t.TempDir(), "j.db")}
		j, err := NewJournalFromConfig(cfg, clock)
		if err != nil {
			t.Fatalf("error = %v", err)
		}
		defer j.Close()
		if _, ok := j.(*SQLiteJournal); !ok {
			t.Errorf("journal type = %T, want *SQLiteJournal", j)
		}
	})

	t.Run("sqlite without path fails", func(t *testing.T) {
		if _, err := NewJournalFromConfig(config.JournalConfig{Type: "sqlite"}, clock); err == nil {
			t.Error("sqlite journal without a path accepted")
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		if _, err := NewJournalFromConfig(config.JournalConfig{Type: "etcd"}, clock); err == nil {
			t.Error("unknown journal type accepted")
		}
	})
}
