package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zip"

	"smlb/internal/mirror"
	"smlb/internal/model"
	"smlb/internal/smlb"
)

// Writer produces archive containers from a plan's sources.
type Writer struct {
	clock  smlb.Clock
	logger smlb.Logger
}

var _ smlb.ArchiveWriter = (*Writer)(nil)

// NewWriter creates a Writer.
func NewWriter(clock smlb.Clock, logger smlb.Logger) *Writer {
	return &Writer{clock: clock, logger: logger}
}

// Write walks the plan's sources and writes one archive into destDir,
// returning the new archive's identifier.
//
// Every live path is recorded in the manifest's path mirror. Content is
// stored for every file on a full backup; on an incremental backup only
// for files modified strictly after the plan's previous backup time.
//
// The container is written to a temp file and renamed into place, so on
// any failure no partial archive remains. Only after the rename does the
// plan's LastBackupTime/LastBackupID bookkeeping advance.
func (w *Writer) Write(plan *model.BackupPlan, destDir string, backupType model.BackupType) (string, error) {
	if backupType == model.BackupIncremental && plan.LastBackupID == "" {
		return "", fmt.Errorf("incremental backup of plan %q: %w", plan.Name, ErrNoPreviousBackup)
	}

	now := w.clock.Now().Truncate(time.Second)
	id := NewID(plan.Name, now)
	destPath := filepath.Join(destDir, id+Ext)
	if _, err := os.Stat(destPath); err == nil {
		return "", fmt.Errorf("%w: %s already exists in %s", ErrNameConflict, id+Ext, destDir)
	}

	info := &model.BackupInformation{
		BackupID:           id,
		FormatVersion:      model.FormatVersion,
		BackupType:         backupType,
		PreviousBackupTime: plan.LastBackupTime,
		BackupTime:         now,
	}
	if backupType == model.BackupIncremental {
		info.PreviousBackupID = plan.LastBackupID
	}

	tmp, err := os.CreateTemp(destDir, ".smlb-*")
	if err != nil {
		return "", fmt.Errorf("creating temp container: %w", err)
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
	m := mirror.New()

	for _, src := range plan.Sources {
		if err := w.addSource(zw, m, src, backupType, info.PreviousBackupTime); err != nil {
			return "", fmt.Errorf("archiving source %q: %w", src.Name, err)
		}
	}
	info.PathMirror = m.Paths()

	if err := writeJSONEntry(zw, planEntryName, plan); err != nil {
		return "", err
	}
	if err := writeJSONEntry(zw, infoEntryName, info); err != nil {
		return "", err
	}

	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("finalizing container: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("syncing container: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing container: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return "", fmt.Errorf("placing container: %w", err)
	}
	success = true

	plan.LastBackupTime = now
	plan.LastBackupID = id

	w.logger.Info("archive written", "plan", plan.Name, "backup_id", id, "type", backupType, "mirrored", m.Len())
	return id, nil
}

// addSource appends one source's subtree to the container and the mirror.
// A source missing on disk is skipped, not an error.
func (w *Writer) addSource(zw *zip.Writer, m *mirror.Mirror, src model.BackupSource, backupType model.BackupType, prevTime time.Time) error {
	fi, err := os.Stat(src.Path)
	if err != nil {
		if os.IsNotExist(err) {
			w.logger.Warn("source missing, skipped", "source", src.Name, "path", src.Path)
			return nil
		}
		return fmt.Errorf("stat %s: %w", src.Path, err)
	}

	if !fi.IsDir() {
		m.Add(src.Name)
		if includeContent(backupType, fi.ModTime(), prevTime) {
			return addFileEntry(zw, src.Name, src.Path, fi)
		}
		return nil
	}

	m.Add(src.Name)
	if err := addDirEntry(zw, src.Name, fi.ModTime()); err != nil {
		return err
	}

	return filepath.WalkDir(src.Path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == src.Path {
			return nil
		}

		rel, err := filepath.Rel(src.Path, p)
		if err != nil {
			return fmt.Errorf("relativizing %s: %w", p, err)
		}
		logical := path.Join(src.Name, filepath.ToSlash(rel))
		m.Add(logical)

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}

		if d.IsDir() {
			return addDirEntry(zw, logical, info.ModTime())
		}
		if includeContent(backupType, info.ModTime(), prevTime) {
			return addFileEntry(zw, logical, p, info)
		}
		return nil
	})
}

// includeContent decides whether a file's bytes go into this archive.
// Unmodified files on an incremental backup are mirrored only; the
// restorer obtains their bytes from an older archive in the chain.
func includeContent(backupType model.BackupType, modTime, prevTime time.Time) bool {
	return backupType == model.BackupFull || modTime.After(prevTime)
}

func addFileEntry(zw *zip.Writer, logical string, onDisk string, fi fs.FileInfo) error {
	hdr, err := zip.FileInfoHeader(fi)
	if err != nil {
		return fmt.Errorf("building header for %s: %w", logical, err)
	}
	hdr.Name = logical
	hdr.Method = zip.Deflate

	entry, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("creating entry %s: %w", logical, err)
	}

	f, err := os.Open(onDisk)
	if err != nil {
		return fmt.Errorf("opening %s: %w", onDisk, err)
	}
	defer f.Close()

	if _, err := io.Copy(entry, f); err != nil {
		return fmt.Errorf("copying %s: %w", logical, err)
	}
	return nil
}

func writeJSONEntry(zw *zip.Writer, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	entry, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("creating entry %s: %w", name, err)
	}
	if _, err := entry.Write(data); err != nil {
		return fmt.Errorf("writing entry %s: %w", name, err)
	}
	return nil
}

// addDirEntry records a directory in the container so empty directories
// survive extraction. Directories are always mirrored, never
// content-bearing.
func addDirEntry(zw *zip.Writer, logical string, modTime time.Time) error {
	hdr := &zip.FileHeader{Name: logical + "/", Modified: modTime}
	if _, err := zw.CreateHeader(hdr); err != nil {
		return fmt.Errorf("creating directory entry %s: %w", logical, err)
	}
	return nil
}
