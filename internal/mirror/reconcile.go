package mirror

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
)

// Reconcile prunes destRoot down to the mirror's membership. It walks
// the tree and deletes every file whose logical path is not in the
// mirror; a directory absent from the mirror is removed with its entire
// remaining contents, without reconciling its children individually.
// Directories present in the mirror are recursed into.
//
// Run after extracting a resolved restore chain oldest to newest, this
// recovers deletions that additive extraction cannot express.
// Reconciling an already-reconciled tree is a no-op.
func Reconcile(destRoot string, m *Mirror) error {
	return reconcileDir(destRoot, "", m)
}

func reconcileDir(destRoot string, logicalDir string, m *Mirror) error {
	entries, err := os.ReadDir(filepath.Join(destRoot, filepath.FromSlash(logicalDir)))
	if err != nil {
		return fmt.Errorf("reading directory %q: %w", logicalDir, err)
	}

	for _, entry := range entries {
		logical := path.Join(logicalDir, entry.Name())
		onDisk := filepath.Join(destRoot, filepath.FromSlash(logical))

		if entry.IsDir() {
			if !m.Contains(logical) {
				// A missing directory implies everything beneath it is
				// also not in the mirror.
				if err := os.RemoveAll(onDisk); err != nil {
					return fmt.Errorf("pruning directory %q: %w", logical, err)
				}
				continue
			}
			if err := reconcileDir(destRoot, logical, m); err != nil {
				return err
			}
			continue
		}

		if !m.Contains(logical) {
			if err := os.Remove(onDisk); err != nil {
				return fmt.Errorf("pruning file %q: %w", logical, err)
			}
		}
	}

	return nil
}
