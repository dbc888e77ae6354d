package journal

import (
	"fmt"

	"smlb/internal/config"
	"smlb/internal/smlb"
)

// NewJournalFromConfig creates a Journal based on the configuration type.
func NewJournalFromConfig(cfg config.JournalConfig, clock smlb.Clock) (smlb.Journal, error) {
	switch cfg.Type {
	case "sqlite", "":
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite journal requires path to be set")
		}
		return NewSQLiteJournal(cfg.Path, clock)
	case "memory":
		return NewMemoryJournal(clock), nil
	default:
		return nil, fmt.Errorf("unknown journal type: %q", cfg.Type)
	}
}
