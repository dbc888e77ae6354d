package smlb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"smlb/internal/model"
	"smlb/internal/schedule"
)

// Service is the orchestration layer that coordinates the archive
// writer, restorer, transfer, envelope, plan store and journal to
// perform the engine's top-level operations.
//
// The service does not serialize operations against the same plan's
// archive folder; running two writes, or a write and a restore,
// concurrently against one plan is the caller's mistake to avoid.
type Service struct {
	archiveRoot string
	store       PlanStore
	writer      ArchiveWriter
	restorer    ArchiveRestorer
	transfer    Transfer
	envelope    Envelope
	journal     Journal
	logger      Logger
	clock       Clock
	idgen       IDGenerator
}

// NewService creates a Service with the provided dependencies.
func NewService(archiveRoot string, store PlanStore, writer ArchiveWriter, restorer ArchiveRestorer, transfer Transfer, envelope Envelope, journal Journal, logger Logger, clock Clock, idgen IDGenerator) *Service {
	return &Service{
		archiveRoot: archiveRoot,
		store:       store,
		writer:      writer,
		restorer:    restorer,
		transfer:    transfer,
		envelope:    envelope,
		journal:     journal,
		logger:      logger,
		clock:       clock,
		idgen:       idgen,
	}
}

// PlanFolder returns the archive folder for a plan name.
func (s *Service) PlanFolder(planName string) string {
	return filepath.Join(s.archiveRoot, planName)
}

// LoadPlan loads a plan definition from its archive folder.
func (s *Service) LoadPlan(planName string) (*model.BackupPlan, error) {
	return s.store.Load(s.PlanFolder(planName))
}

// SavePlan persists a plan definition into its archive folder.
func (s *Service) SavePlan(plan *model.BackupPlan) error {
	return s.store.Save(s.PlanFolder(plan.Name), plan)
}

// ListArchives returns a plan's archive filenames, ordered by name.
func (s *Service) ListArchives(planName string) ([]string, error) {
	return s.store.ListArchives(s.PlanFolder(planName))
}

// CreateBackup writes one archive for the plan and persists the plan's
// updated bookkeeping. An incremental request on a plan that has never
// been backed up is written as a full backup: the fail-safe direction is
// a restorable archive, not a dangling chain.
func (s *Service) CreateBackup(plan *model.BackupPlan, backupType model.BackupType) (string, error) {
	opID, err := s.journal.Begin(plan.Name, "backup")
	if err != nil {
		return "", fmt.Errorf("recording backup start: %w", err)
	}

	archiveID, err := s.createBackup(plan, backupType)
	s.finishOperation(opID, err)
	return archiveID, err
}

func (s *Service) createBackup(plan *model.BackupPlan, backupType model.BackupType) (string, error) {
	folder := s.PlanFolder(plan.Name)
	if err := os.MkdirAll(folder, 0755); err != nil {
		return "", fmt.Errorf("creating plan folder: %w", err)
	}

	if backupType == model.BackupIncremental && plan.LastBackupID == "" {
		s.logger.Info("plan has no previous backup, writing full", "plan", plan.Name)
		backupType = model.BackupFull
	}

	archiveID, err := s.writer.Write(plan, folder, backupType)
	if err != nil {
		return "", fmt.Errorf("writing archive: %w", err)
	}

	if err := s.store.Save(folder, plan); err != nil {
		return archiveID, fmt.Errorf("persisting plan after backup: %w", err)
	}

	plan.BackupRequired = false
	s.logger.Info("backup complete", "plan", plan.Name, "backup_id", archiveID)
	return archiveID, nil
}

// CanRestore reports whether the archive's full dependency chain is
// present and resolvable.
func (s *Service) CanRestore(archivePath string) bool {
	return s.restorer.CanRestore(archivePath)
}

// Restore reconstructs the archive's point-in-time state under destRoot.
func (s *Service) Restore(archivePath string, destRoot string) error {
	// The plan folder name is the directory holding the archive.
	planName := filepath.Base(filepath.Dir(archivePath))
	opID, err := s.journal.Begin(planName, "restore")
	if err != nil {
		return fmt.Errorf("recording restore start: %w", err)
	}

	err = s.restorer.Restore(archivePath, destRoot)
	s.finishOperation(opID, err)
	return err
}

// Export bundles a plan's entire archive history into one container at
// destPath. With a non-empty passphrase the bundle is encrypted as a
// post-pass and the returned path is the ciphertext path.
func (s *Service) Export(planName string, destPath string, passphrase string) (string, error) {
	opID, err := s.journal.Begin(planName, "export")
	if err != nil {
		return "", fmt.Errorf("recording export start: %w", err)
	}

	outPath, err := s.export(planName, destPath, passphrase)
	s.finishOperation(opID, err)
	return outPath, err
}

func (s *Service) export(planName string, destPath string, passphrase string) (string, error) {
	if err := s.transfer.Export(s.PlanFolder(planName), destPath); err != nil {
		return "", err
	}
	if passphrase == "" {
		return destPath, nil
	}

	outPath, err := s.envelope.Encrypt(destPath, passphrase)
	if err != nil {
		return "", fmt.Errorf("encrypting bundle: %w", err)
	}
	return outPath, nil
}

// Import brings an exported bundle into the engine's archive root and
// returns the imported plan's name. With a non-empty passphrase the
// bundle is decrypted as a pre-pass; an undecryptable bundle fails the
// import without touching the archive root.
func (s *Service) Import(bundlePath string, passphrase string) (string, error) {
	opID, err := s.journal.Begin(filepath.Base(bundlePath), "import")
	if err != nil {
		return "", fmt.Errorf("recording import start: %w", err)
	}

	planName, err := s.importBundle(bundlePath, passphrase)
	s.finishOperation(opID, err)
	return planName, err
}

func (s *Service) importBundle(bundlePath string, passphrase string) (string, error) {
	path := bundlePath
	if passphrase != "" {
		// The decrypted copy is operation-scoped scratch with a fresh
		// name, so it never collides with a user file next to the
		// bundle.
		scratch := filepath.Join(os.TempDir(), ".smlb-import-"+s.idgen.New())
		if err := s.envelope.Decrypt(bundlePath, scratch, passphrase); err != nil {
			return "", fmt.Errorf("decrypting bundle: %w", err)
		}
		defer os.Remove(scratch)
		path = scratch
	}

	return s.transfer.Import(path, s.archiveRoot)
}

// EvaluateSchedules runs the due-check over the plans, updating each
// plan's BackupRequired flag. notify is called for every due plan and
// must be safe for concurrent invocation.
func (s *Service) EvaluateSchedules(ctx context.Context, plans []*model.BackupPlan, notify func(*model.BackupPlan)) error {
	return schedule.EvaluateAll(ctx, plans, s.clock.Now(), notify)
}

// History returns the most recent journal records, newest first.
func (s *Service) History(limit int) ([]*model.OperationRecord, error) {
	return s.journal.Recent(limit)
}

// finishOperation closes a journal record. Journal bookkeeping failures
// are logged, never escalated: they must not fail an otherwise
// successful operation.
func (s *Service) finishOperation(opID int64, opErr error) {
	status := "success"
	if opErr != nil {
		status = "error"
	}
	if err := s.journal.Finish(opID, status); err != nil {
		s.logger.Warn("recording operation finish failed", "op_id", opID, "error", err)
	}
}
