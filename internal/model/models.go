package model

import (
	"strings"
	"time"
)

// FormatVersion is written into every archive manifest.
const FormatVersion = "1.0.1"

// BackupType distinguishes self-sufficient archives from archives that
// depend on a predecessor for unmodified file content.
type BackupType string

const (
	BackupFull        BackupType = "full"
	BackupIncremental BackupType = "incremental"
)

// SourceKind identifies what a backup source points at.
type SourceKind string

const (
	SourceFile      SourceKind = "file"
	SourceDirectory SourceKind = "directory"
)

// Schedule is the backup interval of a plan, in whole days (1-7).
type Schedule int

const (
	EveryDay       Schedule = 1
	EveryTwoDays   Schedule = 2
	EveryThreeDays Schedule = 3
	EveryFourDays  Schedule = 4
	EveryFiveDays  Schedule = 5
	EverySixDays   Schedule = 6
	EverySevenDays Schedule = 7
)

// IntervalDays returns the schedule's interval in days.
// Unrecognized values fall back to one day, so a corrupt schedule makes
// backups more frequent, never silently skipped.
func (s Schedule) IntervalDays() int {
	if s < EveryDay || s > EverySevenDays {
		return 1
	}
	return int(s)
}

// BackupSource is one file or directory root tracked by a plan.
type BackupSource struct {
	Name string     `json:"name"` // Logical root name inside archives
	Path string     `json:"path"` // Absolute location on disk
	Kind SourceKind `json:"kind"`
}

// BackupPlan is a named, scheduled collection of backup sources.
// Name doubles as the plan's archive folder name and must be
// filesystem-safe.
type BackupPlan struct {
	Name           string         `json:"name"`
	Schedule       Schedule       `json:"schedule"`
	LastBackupTime time.Time      `json:"lastBackupTime"`
	LastBackupID   string         `json:"lastBackupId"` // Empty until the first backup completes
	Sources        []BackupSource `json:"sources"`

	// BackupRequired is recomputed by schedule evaluation and never
	// persisted authoritatively.
	BackupRequired bool `json:"-"`
}

// HasSource reports whether a source with the given logical name already
// exists in the plan. Source names are compared case-insensitively.
func (p *BackupPlan) HasSource(name string) bool {
	for _, s := range p.Sources {
		if strings.EqualFold(s.Name, name) {
			return true
		}
	}
	return false
}

// BackupInformation is the per-archive manifest embedded in every
// container. It is fully determined at write time and never mutated.
type BackupInformation struct {
	BackupID           string     `json:"backupId"`
	FormatVersion      string     `json:"formatVersion"`
	BackupType         BackupType `json:"backupType"`
	PreviousBackupID   string     `json:"previousBackupId"` // Empty for full backups
	PreviousBackupTime time.Time  `json:"previousBackupTime"`
	BackupTime         time.Time  `json:"backupTime"`

	// PathMirror lists every logical path (file or directory) that was
	// live under the plan's sources at BackupTime, whether or not the
	// corresponding bytes are stored in this archive. Restore prunes
	// against it to reproduce deletions.
	PathMirror []string `json:"pathMirror"`
}

// OperationRecord is one row of the engine's run journal.
type OperationRecord struct {
	ID         int64
	PlanName   string
	Operation  string
	Status     string // "success" or "error"
	StartedAt  time.Time
	FinishedAt time.Time
}
