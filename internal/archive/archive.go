// Package archive implements the .smlb container format: a zip-compatible
// file holding a plan snapshot, a backup manifest, and the content entries
// of one backup run. It also implements restore-chain resolution and the
// restore pipeline built on it.
package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zip"

	"smlb/internal/model"
)

// Ext is the archive file extension.
const Ext = ".smlb"

// Internal entry names. Every archive carries exactly one of each, in
// addition to zero or more content entries.
const (
	planEntryName = "plan.json"
	infoEntryName = "archive.backup"
)

var (
	// ErrNameConflict is returned when a freshly derived archive ID
	// already names a file in the plan folder. Two backups of the same
	// plan within one second collide; the conflict is fatal, never an
	// overwrite.
	ErrNameConflict = errors.New("archive name conflict")

	// ErrNoPreviousBackup is returned when an incremental backup is
	// requested for a plan that has never completed a backup.
	ErrNoPreviousBackup = errors.New("plan has no previous backup")

	// ErrChainBroken is returned when an archive's dependency chain
	// cannot be followed back to a full backup. The archive is
	// unrestorable, not merely degraded.
	ErrChainBroken = errors.New("restore chain broken")

	// ErrPlanExists is returned by import when the engine root already
	// holds a folder for the bundled plan's name.
	ErrPlanExists = errors.New("plan already exists")
)

// Archive is an opened container.
type Archive struct {
	path string
	zr   *zip.ReadCloser
}

// Open opens the archive at path for reading.
func Open(path string) (*Archive, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	return &Archive{path: path, zr: zr}, nil
}

// Close closes the underlying container file.
func (a *Archive) Close() error { return a.zr.Close() }

// Info reads and decodes the archive's backup manifest.
func (a *Archive) Info() (*model.BackupInformation, error) {
	var info model.BackupInformation
	if err := a.decodeEntry(infoEntryName, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Plan reads and decodes the plan snapshot embedded at backup time.
func (a *Archive) Plan() (*model.BackupPlan, error) {
	var plan model.BackupPlan
	if err := a.decodeEntry(planEntryName, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

func (a *Archive) decodeEntry(name string, v any) error {
	for _, f := range a.zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("opening entry %s: %w", name, err)
		}
		defer rc.Close()

		data, err := io.ReadAll(rc)
		if err != nil {
			return fmt.Errorf("reading entry %s: %w", name, err)
		}
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("decoding entry %s: %w", name, err)
		}
		return nil
	}
	return fmt.Errorf("archive has no %s entry", name)
}

// ReadBackupInfo opens the archive at path just long enough to read its
// manifest.
func ReadBackupInfo(path string) (*model.BackupInformation, error) {
	a, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer a.Close()
	return a.Info()
}
