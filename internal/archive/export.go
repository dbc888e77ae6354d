package archive

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"

	"smlb/internal/model"
	"smlb/internal/smlb"
)

// Bundler exports and imports whole plan histories as single containers.
type Bundler struct {
	idgen  smlb.IDGenerator
	logger smlb.Logger
}

var _ smlb.Transfer = (*Bundler)(nil)

// NewBundler creates a Bundler. The ID generator names per-import
// scratch directories, so concurrent imports never share a temp path.
func NewBundler(idgen smlb.IDGenerator, logger smlb.Logger) *Bundler {
	return &Bundler{idgen: idgen, logger: logger}
}

// Export bundles a plan folder (the plan file and every historical
// archive) into one container at destPath. The bundle is written to a
// temp file next to destPath and renamed into place.
func (b *Bundler) Export(planFolder string, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("creating export destination: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".export-*")
	if err != nil {
		return fmt.Errorf("creating temp bundle: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	zw := zip.NewWriter(tmp)
	err = filepath.WalkDir(planFolder, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(planFolder, p)
		if err != nil {
			return fmt.Errorf("relativizing %s: %w", p, err)
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}
		return addFileEntry(zw, filepath.ToSlash(rel), p, info)
	})
	if err != nil {
		return fmt.Errorf("bundling plan folder: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalizing bundle: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing bundle: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing bundle: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("placing bundle: %w", err)
	}
	success = true

	b.logger.Info("plan exported", "folder", planFolder, "bundle", destPath)
	return nil
}

// Import extracts a bundle produced by Export into archiveRoot under the
// bundled plan's name and returns that name. If a folder for the plan
// already exists, the import is refused and the existing history is left
// untouched. Unrelated histories are never merged silently.
//
// The bundle is unpacked into a scratch directory with a fresh random
// name and moved into place in one rename. Scratch cleanup is
// best-effort: a leftover scratch directory never fails the operation.
func (b *Bundler) Import(bundlePath string, archiveRoot string) (string, error) {
	if err := os.MkdirAll(archiveRoot, 0755); err != nil {
		return "", fmt.Errorf("creating archive root: %w", err)
	}

	scratch := filepath.Join(archiveRoot, ".import-"+b.idgen.New())
	defer os.RemoveAll(scratch)

	if err := unzip(bundlePath, scratch, false); err != nil {
		return "", fmt.Errorf("unpacking bundle: %w", err)
	}

	data, err := os.ReadFile(filepath.Join(scratch, planEntryName))
	if err != nil {
		return "", fmt.Errorf("bundle has no plan file: %w", err)
	}
	var plan model.BackupPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return "", fmt.Errorf("decoding bundled plan: %w", err)
	}
	if plan.Name == "" {
		return "", fmt.Errorf("bundled plan has no name")
	}

	target := filepath.Join(archiveRoot, plan.Name)
	if _, err := os.Stat(target); err == nil {
		return "", fmt.Errorf("%w: %s", ErrPlanExists, plan.Name)
	}

	if err := os.Rename(scratch, target); err != nil {
		return "", fmt.Errorf("placing plan folder: %w", err)
	}

	b.logger.Info("plan imported", "plan", plan.Name, "bundle", bundlePath)
	return plan.Name, nil
}
