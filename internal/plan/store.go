// Package plan persists plan definitions and answers queries about a
// plan's archive folder.
package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"smlb/internal/archive"
	"smlb/internal/model"
	"smlb/internal/smlb"
)

// FileName is the plan file inside each plan's archive folder. It is
// the same name the archive writer embeds in every container.
const FileName = "plan.json"

// Folder returns the archive folder for a plan name under the engine's
// archive root. The plan name doubles as the folder name.
func Folder(archiveRoot string, planName string) string {
	return filepath.Join(archiveRoot, planName)
}

// FileStore stores each plan as a JSON file in its archive folder.
type FileStore struct{}

var _ smlb.PlanStore = (*FileStore)(nil)

// NewFileStore creates a FileStore.
func NewFileStore() *FileStore { return &FileStore{} }

// Load reads the plan definition from planFolder.
func (s *FileStore) Load(planFolder string) (*model.BackupPlan, error) {
	data, err := os.ReadFile(filepath.Join(planFolder, FileName))
	if err != nil {
		return nil, fmt.Errorf("reading plan file: %w", err)
	}
	var p model.BackupPlan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding plan file: %w", err)
	}
	return &p, nil
}

// Save writes the plan definition into planFolder, creating the folder
// if needed. The write is atomic (temp file + rename) so a crash never
// leaves a truncated plan file.
func (s *FileStore) Save(planFolder string, p *model.BackupPlan) error {
	if err := os.MkdirAll(planFolder, 0755); err != nil {
		return fmt.Errorf("creating plan folder: %w", err)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding plan: %w", err)
	}

	tmp, err := os.CreateTemp(planFolder, ".plan-*")
	if err != nil {
		return fmt.Errorf("creating temp plan file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing plan file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing plan file: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(planFolder, FileName)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("placing plan file: %w", err)
	}
	return nil
}

// ListArchives returns the plan folder's archive filenames, filtered to
// the archive extension and sorted by name. An absent folder lists as
// empty rather than erroring: a plan with no backups yet has no folder.
func (s *FileStore) ListArchives(planFolder string) ([]string, error) {
	entries, err := os.ReadDir(planFolder)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading plan folder: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), archive.Ext) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
