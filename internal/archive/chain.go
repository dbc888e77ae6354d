package archive

import (
	"fmt"
	"os"
	"path/filepath"

	"smlb/internal/model"
)

// ResolveChain follows an archive's previous-backup links backward and
// returns the full dependency chain, newest first, ending at a full
// backup. The resolver trusts only the manifest-declared links, never
// filename order or timestamps.
//
// A missing link anywhere in the chain fails the whole resolution with
// ErrChainBroken before any extraction can begin: a chain with a hole is
// unrestorable, not partially restorable.
func ResolveChain(archivePath string) ([]string, error) {
	var chain []string
	seen := make(map[string]bool)
	current := archivePath

	for {
		info, err := ReadBackupInfo(current)
		if err != nil {
			return nil, fmt.Errorf("reading manifest of %s: %w", filepath.Base(current), err)
		}
		chain = append(chain, current)

		if info.BackupType == model.BackupFull {
			return chain, nil
		}
		if info.PreviousBackupID == "" {
			return nil, fmt.Errorf("%w: incremental %s declares no previous backup", ErrChainBroken, info.BackupID)
		}
		if seen[info.PreviousBackupID] {
			return nil, fmt.Errorf("%w: previous-backup links cycle at %s", ErrChainBroken, info.PreviousBackupID)
		}
		seen[info.BackupID] = true

		prev := filepath.Join(filepath.Dir(current), info.PreviousBackupID+Ext)
		if _, err := os.Stat(prev); err != nil {
			return nil, fmt.Errorf("%w: archive %s not found", ErrChainBroken, info.PreviousBackupID)
		}
		current = prev
	}
}
