package archive

import (
	"fmt"
	"os"
	"path/filepath"

	"smlb/internal/mirror"
	"smlb/internal/smlb"
)

// Restorer reconstructs an archived state on disk from a restore chain.
type Restorer struct {
	logger smlb.Logger
}

var _ smlb.ArchiveRestorer = (*Restorer)(nil)

// NewRestorer creates a Restorer.
func NewRestorer(logger smlb.Logger) *Restorer {
	return &Restorer{logger: logger}
}

// CanRestore reports whether the archive's full transitive chain
// resolves. A full backup is always restorable on its own.
func (r *Restorer) CanRestore(archivePath string) bool {
	_, err := ResolveChain(archivePath)
	return err == nil
}

// Restore reconstructs the target archive's point-in-time state under
// destRoot: resolve the chain (failing closed on any missing link),
// extract oldest to newest so later content overwrites earlier content,
// then prune everything not present in the newest manifest's mirror.
// The prune is what reproduces deletions that happened between backups.
func (r *Restorer) Restore(archivePath string, destRoot string) error {
	chain, err := ResolveChain(archivePath)
	if err != nil {
		return fmt.Errorf("resolving restore chain: %w", err)
	}

	newest, err := ReadBackupInfo(chain[0])
	if err != nil {
		return fmt.Errorf("reading target manifest: %w", err)
	}

	if err := os.MkdirAll(destRoot, 0755); err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}

	for i := len(chain) - 1; i >= 0; i-- {
		if err := Extract(chain[i], destRoot); err != nil {
			return fmt.Errorf("extracting %s: %w", filepath.Base(chain[i]), err)
		}
	}
	r.logger.Info("chain extracted", "target", newest.BackupID, "archives", len(chain))

	if err := mirror.Reconcile(destRoot, mirror.New(newest.PathMirror...)); err != nil {
		return fmt.Errorf("reconciling destination: %w", err)
	}

	r.logger.Info("restore complete", "target", newest.BackupID, "dest", destRoot)
	return nil
}
