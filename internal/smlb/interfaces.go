package smlb

import "smlb/internal/model"

// ArchiveWriter produces one archive container from a plan's sources.
type ArchiveWriter interface {
	// Write walks the plan's sources and writes a single archive into
	// destDir, returning the new archive's identifier.
	//
	// On success the plan's LastBackupTime and LastBackupID are updated
	// in place; the update happens only after the container has been
	// durably finalized. On any failure no partial container remains
	// and the plan is untouched.
	Write(plan *model.BackupPlan, destDir string, backupType model.BackupType) (string, error)
}

// ArchiveRestorer reconstructs an archived state on disk.
type ArchiveRestorer interface {
	// CanRestore reports whether the archive's full dependency chain
	// resolves. A full backup is always restorable on its own.
	CanRestore(archivePath string) bool

	// Restore resolves the archive's chain, extracts it oldest to
	// newest into destRoot, and prunes everything absent from the
	// newest manifest's path mirror. If the chain has a missing link,
	// nothing is extracted.
	Restore(archivePath string, destRoot string) error
}

// Transfer moves a plan's entire archive history in and out of the
// engine's archive root as a single bundle.
type Transfer interface {
	// Export bundles the plan folder (plan file plus all archives)
	// into one container at destPath.
	Export(planFolder string, destPath string) error

	// Import extracts a bundle into archiveRoot under the bundled
	// plan's name and returns that name. It refuses to import when a
	// folder for the plan already exists.
	Import(bundlePath string, archiveRoot string) (string, error)
}

// Envelope applies password-based encryption to finished containers.
// It is a post-pass after export and a pre-pass before import.
type Envelope interface {
	// Encrypt encrypts the file at path and returns the ciphertext path.
	Encrypt(path string, passphrase string) (string, error)

	// Decrypt decrypts the file at path into outPath. The caller picks
	// outPath, so scratch plaintext never lands next to user files. A
	// wrong passphrase or corrupt input is reported as an error and no
	// output file is left behind.
	Decrypt(path string, outPath string, passphrase string) error
}

// PlanStore persists plan definitions in their archive folders.
type PlanStore interface {
	Load(planFolder string) (*model.BackupPlan, error)
	Save(planFolder string, plan *model.BackupPlan) error

	// ListArchives returns the names of the plan folder's archive
	// files, filtered to the archive extension and ordered by name.
	ListArchives(planFolder string) ([]string, error)
}

// Journal records the engine's operation history.
type Journal interface {
	// Begin records the start of an operation and returns its row ID.
	Begin(planName string, operation string) (int64, error)

	// Finish closes an operation record with the given status.
	Finish(id int64, status string) error

	// Recent returns at most limit operation records, newest first.
	// A non-positive limit returns no records.
	Recent(limit int) ([]*model.OperationRecord, error)

	Close() error
}
