// Package app is the application layer between the CLI and the engine
// service: it constructs all dependencies from config and manages their
// lifecycle.
package app

import (
	"fmt"
	"os"

	"smlb/internal/archive"
	"smlb/internal/config"
	"smlb/internal/envelope"
	"smlb/internal/journal"
	"smlb/internal/plan"
	"smlb/internal/smlb"
)

// App wires the engine together for one CLI invocation.
type App struct {
	cfg     *config.Config
	journal smlb.Journal
	service *smlb.Service
	logFile *os.File
}

// NewApp creates a fully wired App from the given config.
// opID identifies the CLI invocation in log lines (e.g. a timestamp).
// The caller must call Close when done.
func NewApp(cfg *config.Config, opID string) (*App, error) {
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	log := &slogAdapter{l: logger}

	clock := smlb.RealClock{}
	jrnl, err := journal.NewJournalFromConfig(cfg.Journal, clock)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating journal: %w", err)
	}

	svc := smlb.NewService(
		cfg.ArchiveRoot,
		plan.NewFileStore(),
		archive.NewWriter(clock, log),
		archive.NewRestorer(log),
		archive.NewBundler(smlb.UUIDGenerator{}, log),
		envelope.NewAgeEnvelope(),
		jrnl,
		log,
		clock,
		smlb.UUIDGenerator{},
	)

	return &App{
		cfg:     cfg,
		journal: jrnl,
		service: svc,
		logFile: logFile,
	}, nil
}

// Service returns the wired engine service.
func (a *App) Service() *smlb.Service { return a.service }

// ArchiveRoot returns the configured archive root directory.
func (a *App) ArchiveRoot() string { return a.cfg.ArchiveRoot }

// Close releases the journal and log file.
func (a *App) Close() error {
	var firstErr error
	if err := a.journal.Close(); err != nil {
		firstErr = fmt.Errorf("closing journal: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
