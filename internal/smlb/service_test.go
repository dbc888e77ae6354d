package smlb_test

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"smlb/internal/archive"
	"smlb/internal/envelope"
	"smlb/internal/journal"
	"smlb/internal/model"
	"smlb/internal/plan"
	"smlb/internal/smlb"
	"smlb/internal/testutil"
)

var serviceNow = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

type serviceFixture struct {
	service     *smlb.Service
	archiveRoot string
	journal     *journal.MemoryJournal
	clock       *testutil.StubClock
}

// newServiceFixture wires a Service from real components over a temp
// archive root, with a stub clock and an in-memory journal.
func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	root := t.TempDir()
	clock := testutil.NewStubClock(serviceNow)
	logger := smlb.NewNopLogger()
	jnl := journal.NewMemoryJournal(clock)

	svc := smlb.NewService(
		root,
		plan.NewFileStore(),
		archive.NewWriter(clock, logger),
		archive.NewRestorer(logger),
		archive.NewBundler(testutil.NewStubIDGenerator(), logger),
		envelope.NewAgeEnvelope(),
		jnl,
		logger,
		clock,
		testutil.NewStubIDGenerator(),
	)
	return &serviceFixture{service: svc, archiveRoot: root, journal: jnl, clock: clock}
}

func newSourceTree(t *testing.T, files map[string]string) string {
	t.Helper()
	src := t.TempDir()
	testutil.WriteTree(t, src, files)
	for rel := range files {
		testutil.Touch(t, filepath.Join(src, rel), serviceNow.Add(-time.Hour))
	}
	return src
}

func sourcePlan(name, src string) *model.BackupPlan {
	return &model.BackupPlan{
		Name:     name,
		Schedule: model.EveryDay,
		Sources: []model.BackupSource{
			{Name: name, Path: src, Kind: model.SourceDirectory},
		},
	}
}

func TestService_CreateBackup(t *testing.T) {
	f := newServiceFixture(t)
	src := newSourceTree(t, map[string]string{"a.txt": "alpha"})
	p := sourcePlan("docs", src)
	p.BackupRequired = true

	id, err := f.service.CreateBackup(p, model.BackupFull)
	if err != nil {
		t.Fatalf("CreateBackup() error = %v", err)
	}

	t.Run("archive lands in the plan folder", func(t *testing.T) {
		archives, err := f.service.ListArchives("docs")
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(archives, []string{id + archive.Ext}) {
			t.Errorf("ListArchives() = %v", archives)
		}
	})

	t.Run("plan bookkeeping is persisted", func(t *testing.T) {
		loaded, err := f.service.LoadPlan("docs")
		if err != nil {
			t.Fatalf("LoadPlan() error = %v", err)
		}
		if loaded.LastBackupID != id {
			t.Errorf("LastBackupID = %q, want %q", loaded.LastBackupID, id)
		}
		if !loaded.LastBackupTime.Equal(serviceNow) {
			t.Errorf("LastBackupTime = %v, want %v", loaded.LastBackupTime, serviceNow)
		}
	})

	t.Run("due flag is cleared", func(t *testing.T) {
		if p.BackupRequired {
			t.Error("BackupRequired still set after a successful backup")
		}
	})

	t.Run("journal records success", func(t *testing.T) {
		recs, err := f.service.History(10)
		if err != nil {
			t.Fatal(err)
		}
		if len(recs) != 1 {
			t.Fatalf("len(recs) = %d, want 1", len(recs))
		}
		if recs[0].PlanName != "docs" || recs[0].Operation != "backup" || recs[0].Status != "success" {
			t.Errorf("record = %+v", recs[0])
		}
	})
}

func TestService_IncrementalWithoutHistoryFallsBackToFull(t *testing.T) {
	f := newServiceFixture(t)
	src := newSourceTree(t, map[string]string{"a.txt": "alpha"})
	p := sourcePlan("docs", src)

	id, err := f.service.CreateBackup(p, model.BackupIncremental)
	if err != nil {
		t.Fatalf("CreateBackup() error = %v", err)
	}

	info, err := archive.ReadBackupInfo(filepath.Join(f.service.PlanFolder("docs"), id+archive.Ext))
	if err != nil {
		t.Fatal(err)
	}
	if info.BackupType != model.BackupFull {
		t.Errorf("BackupType = %q, want full", info.BackupType)
	}
}

func TestService_RestoreRoundTrip(t *testing.T) {
	f := newServiceFixture(t)
	src := newSourceTree(t, map[string]string{
		"a.txt":     "alpha",
		"sub/b.txt": "beta",
	})
	p := sourcePlan("docs", src)

	id, err := f.service.CreateBackup(p, model.BackupFull)
	if err != nil {
		t.Fatal(err)
	}

	archivePath := filepath.Join(f.service.PlanFolder("docs"), id+archive.Ext)
	if !f.service.CanRestore(archivePath) {
		t.Fatal("CanRestore() = false for a fresh full backup")
	}

	dest := t.TempDir()
	if err := f.service.Restore(archivePath, dest); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	got := testutil.ReadTree(t, dest)
	want := map[string]string{
		"docs/":          "",
		"docs/a.txt":     "alpha",
		"docs/sub/":      "",
		"docs/sub/b.txt": "beta",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("restored tree = %v, want %v", got, want)
	}

	recs, err := f.service.History(10)
	if err != nil {
		t.Fatal(err)
	}
	if recs[0].Operation != "restore" || recs[0].PlanName != "docs" || recs[0].Status != "success" {
		t.Errorf("newest record = %+v", recs[0])
	}
}

func TestService_FailedBackupIsJournaled(t *testing.T) {
	f := newServiceFixture(t)
	src := newSourceTree(t, map[string]string{"a.txt": "alpha"})
	p := sourcePlan("docs", src)

	if _, err := f.service.CreateBackup(p, model.BackupFull); err != nil {
		t.Fatal(err)
	}
	// Same second, same plan name: the archive name collides.
	if _, err := f.service.CreateBackup(sourcePlan("docs", src), model.BackupFull); err == nil {
		t.Fatal("second CreateBackup() in the same second succeeded")
	}

	recs, err := f.service.History(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("len(recs) = %d, want 2", len(recs))
	}
	if recs[0].Status != "error" {
		t.Errorf("newest record status = %q, want error", recs[0].Status)
	}
	if recs[1].Status != "success" {
		t.Errorf("older record status = %q, want success", recs[1].Status)
	}
}

func TestService_ExportImport(t *testing.T) {
	f := newServiceFixture(t)
	src := newSourceTree(t, map[string]string{"a.txt": "alpha"})
	p := sourcePlan("docs", src)

	if _, err := f.service.CreateBackup(p, model.BackupFull); err != nil {
		t.Fatal(err)
	}

	t.Run("plaintext round trip", func(t *testing.T) {
		bundle := filepath.Join(t.TempDir(), "docs.bundle")
		outPath, err := f.service.Export("docs", bundle, "")
		if err != nil {
			t.Fatalf("Export() error = %v", err)
		}
		if outPath != bundle {
			t.Errorf("Export() path = %q, want %q", outPath, bundle)
		}

		other := newServiceFixture(t)
		name, err := other.service.Import(outPath, "")
		if err != nil {
			t.Fatalf("Import() error = %v", err)
		}
		if name != "docs" {
			t.Errorf("Import() = %q, want docs", name)
		}
		if _, err := other.service.LoadPlan("docs"); err != nil {
			t.Errorf("LoadPlan() after import error = %v", err)
		}
	})

	t.Run("encrypted round trip", func(t *testing.T) {
		bundle := filepath.Join(t.TempDir(), "docs.bundle")
		outPath, err := f.service.Export("docs", bundle, "sesame")
		if err != nil {
			t.Fatalf("Export() error = %v", err)
		}
		if outPath != bundle+envelope.EncryptedExt {
			t.Errorf("Export() path = %q, want %q", outPath, bundle+envelope.EncryptedExt)
		}
		if _, err := os.Stat(bundle); !os.IsNotExist(err) {
			t.Error("plaintext bundle left behind after encryption")
		}

		// A user file at the ciphertext's trimmed name must survive the
		// import untouched: decrypted scratch lives elsewhere.
		if err := os.WriteFile(bundle, []byte("user data"), 0644); err != nil {
			t.Fatal(err)
		}

		other := newServiceFixture(t)
		name, err := other.service.Import(outPath, "sesame")
		if err != nil {
			t.Fatalf("Import() error = %v", err)
		}
		if name != "docs" {
			t.Errorf("Import() = %q, want docs", name)
		}

		got, err := os.ReadFile(bundle)
		if err != nil {
			t.Fatalf("neighbor file gone after import: %v", err)
		}
		if string(got) != "user data" {
			t.Errorf("neighbor file content = %q after import", got)
		}
	})

	t.Run("wrong passphrase leaves the archive root untouched", func(t *testing.T) {
		bundle := filepath.Join(t.TempDir(), "docs.bundle")
		outPath, err := f.service.Export("docs", bundle, "sesame")
		if err != nil {
			t.Fatal(err)
		}

		other := newServiceFixture(t)
		if _, err := other.service.Import(outPath, "wrong"); err == nil {
			t.Fatal("Import() with the wrong passphrase succeeded")
		}
		entries, err := os.ReadDir(other.archiveRoot)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 0 {
			t.Errorf("failed import left %d entries in the archive root", len(entries))
		}
	})
}

func TestService_EvaluateSchedules(t *testing.T) {
	f := newServiceFixture(t)

	due := &model.BackupPlan{
		Name:           "due",
		Schedule:       model.EveryDay,
		LastBackupTime: serviceNow.AddDate(0, 0, -2),
	}
	fresh := &model.BackupPlan{
		Name:           "fresh",
		Schedule:       model.EverySevenDays,
		LastBackupTime: serviceNow.AddDate(0, 0, -1),
	}

	var mu sync.Mutex
	var notified []string
	err := f.service.EvaluateSchedules(context.Background(), []*model.BackupPlan{due, fresh}, func(p *model.BackupPlan) {
		mu.Lock()
		defer mu.Unlock()
		notified = append(notified, p.Name)
	})
	if err != nil {
		t.Fatalf("EvaluateSchedules() error = %v", err)
	}

	if !due.BackupRequired {
		t.Error("overdue plan not flagged")
	}
	if fresh.BackupRequired {
		t.Error("fresh plan flagged")
	}
	if !reflect.DeepEqual(notified, []string{"due"}) {
		t.Errorf("notified = %v, want [due]", notified)
	}
}

func TestService_Async(t *testing.T) {
	f := newServiceFixture(t)
	src := newSourceTree(t, map[string]string{"a.txt": "alpha"})

	t.Run("backup reports through the callback", func(t *testing.T) {
		done := make(chan smlb.BackupResult, 1)
		f.service.CreateBackupAsync(sourcePlan("docs", src), model.BackupFull, func(r smlb.BackupResult) {
			done <- r
		})

		res := <-done
		if res.Err != nil {
			t.Fatalf("async backup error = %v", res.Err)
		}
		if res.ArchiveID == "" {
			t.Error("async backup returned no archive id")
		}
	})

	t.Run("restore reports through the callback", func(t *testing.T) {
		archives, err := f.service.ListArchives("docs")
		if err != nil || len(archives) == 0 {
			t.Fatalf("ListArchives() = %v, %v", archives, err)
		}

		done := make(chan smlb.RestoreResult, 1)
		dest := t.TempDir()
		f.service.RestoreAsync(filepath.Join(f.service.PlanFolder("docs"), archives[0]), dest, func(r smlb.RestoreResult) {
			done <- r
		})

		if res := <-done; res.Err != nil {
			t.Fatalf("async restore error = %v", res.Err)
		}
	})

	t.Run("nil callback is allowed", func(t *testing.T) {
		f.clock.Advance(time.Hour)
		f.service.CreateBackupAsync(sourcePlan("other", src), model.BackupFull, nil)

		deadline := time.Now().Add(5 * time.Second)
		for {
			archives, err := f.service.ListArchives("other")
			if err == nil && len(archives) == 1 {
				break
			}
			if time.Now().After(deadline) {
				t.Fatal("async backup with nil callback never completed")
			}
			time.Sleep(10 * time.Millisecond)
		}
	})
}
