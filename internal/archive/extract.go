package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// Extract unpacks an archive's content entries into destRoot, creating
// mirrored directories and overwriting files that already exist. The
// metadata entries are not written to disk. Extraction is additive; the
// caller prunes against the newest manifest afterwards.
func Extract(archivePath string, destRoot string) error {
	return unzip(archivePath, destRoot, true)
}

// unzip unpacks a zip container into destDir. When skipMeta is true the
// plan and manifest entries are left out (backup archives); export
// bundles are unpacked whole.
func unzip(srcPath string, destDir string, skipMeta bool) error {
	zr, err := zip.OpenReader(srcPath)
	if err != nil {
		return fmt.Errorf("opening container: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if skipMeta && (f.Name == planEntryName || f.Name == infoEntryName) {
			continue
		}

		rel, err := sanitizeEntryName(f.Name)
		if err != nil {
			return err
		}
		target := filepath.Join(destDir, filepath.FromSlash(rel))

		if strings.HasSuffix(f.Name, "/") {
			// A path may change type between archives in a chain; the
			// newer entry wins.
			if fi, statErr := os.Lstat(target); statErr == nil && !fi.IsDir() {
				if err := os.Remove(target); err != nil {
					return fmt.Errorf("replacing file %s with directory: %w", rel, err)
				}
			}
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("creating directory %s: %w", rel, err)
			}
			continue
		}

		if err := extractFile(f, rel, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, rel string, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("creating parent of %s: %w", rel, err)
	}

	// A directory left by an older archive gives way to the newer file.
	if fi, statErr := os.Lstat(target); statErr == nil && fi.IsDir() {
		if err := os.RemoveAll(target); err != nil {
			return fmt.Errorf("replacing directory %s with file: %w", rel, err)
		}
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening entry %s: %w", rel, err)
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("creating %s: %w", rel, err)
	}

	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("writing %s: %w", rel, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", rel, err)
	}

	// Preserve the archived mtime: incremental writers compare against
	// it after a restore.
	if err := os.Chtimes(target, f.Modified, f.Modified); err != nil {
		return fmt.Errorf("setting times on %s: %w", rel, err)
	}
	return nil
}

// sanitizeEntryName validates a zip entry name against path traversal.
func sanitizeEntryName(name string) (string, error) {
	rel := strings.TrimSuffix(name, "/")
	if rel == "" || strings.HasPrefix(rel, "/") || strings.Contains(rel, "\\") {
		return "", fmt.Errorf("invalid entry name %q", name)
	}
	for _, part := range strings.Split(rel, "/") {
		if part == ".." {
			return "", fmt.Errorf("entry name escapes destination: %q", name)
		}
	}
	return rel, nil
}
