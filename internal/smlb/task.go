package smlb

import "smlb/internal/model"

// The async forms below dispatch one top-level operation to its own
// worker goroutine and report the outcome through a single-shot
// completion callback. Callers treat them as fire-and-forget: the
// calling context is never held open for the duration of the file I/O,
// and there is no cancellation: a started operation runs to completion
// or hard failure. Not starting a second operation against the same
// plan while one is in flight remains the caller's responsibility.

// BackupResult is the outcome of an asynchronous backup.
type BackupResult struct {
	ArchiveID string
	Err       error
}

// RestoreResult is the outcome of an asynchronous restore.
type RestoreResult struct {
	Err error
}

// TransferResult is the outcome of an asynchronous export or import.
// Path is the bundle path for exports and the plan name for imports.
type TransferResult struct {
	Path string
	Err  error
}

// CreateBackupAsync runs CreateBackup on a worker goroutine. done, if
// non-nil, is invoked exactly once from that goroutine.
func (s *Service) CreateBackupAsync(plan *model.BackupPlan, backupType model.BackupType, done func(BackupResult)) {
	go func() {
		archiveID, err := s.CreateBackup(plan, backupType)
		if done != nil {
			done(BackupResult{ArchiveID: archiveID, Err: err})
		}
	}()
}

// RestoreAsync runs Restore on a worker goroutine.
func (s *Service) RestoreAsync(archivePath string, destRoot string, done func(RestoreResult)) {
	go func() {
		err := s.Restore(archivePath, destRoot)
		if done != nil {
			done(RestoreResult{Err: err})
		}
	}()
}

// ExportAsync runs Export on a worker goroutine.
func (s *Service) ExportAsync(planName string, destPath string, passphrase string, done func(TransferResult)) {
	go func() {
		outPath, err := s.Export(planName, destPath, passphrase)
		if done != nil {
			done(TransferResult{Path: outPath, Err: err})
		}
	}()
}

// ImportAsync runs Import on a worker goroutine.
func (s *Service) ImportAsync(bundlePath string, passphrase string, done func(TransferResult)) {
	go func() {
		planName, err := s.Import(bundlePath, passphrase)
		if done != nil {
			done(TransferResult{Path: planName, Err: err})
		}
	}()
}
