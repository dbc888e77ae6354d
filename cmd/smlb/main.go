package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"smlb/internal/app"
	"smlb/internal/config"
	"smlb/internal/model"
	"smlb/internal/smlb"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer app.Close().
func newApp() (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	a, err := app.NewApp(cfg, opID)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// readPassphrase prompts on stderr and reads a passphrase without echo.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	data, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(data), nil
}

var rootCmd = &cobra.Command{
	Use:   "smlb",
	Short: "Plan-based incremental backup tool",
}

// config command

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("initializing config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Archive root: %s\n", cfg.ArchiveRoot)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:     %s\n", cfg.BaseDir)
		fmt.Printf("Archive Root: %s\n", cfg.ArchiveRoot)
		fmt.Printf("Log Dir:      %s\n", cfg.LogDir)
		fmt.Printf("Journal:      %s (%s)\n", cfg.Journal.Type, cfg.Journal.Path)
		return nil
	},
}

// plan command

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Manage backup plans",
}

var planSchedule int

var planInitCmd = &cobra.Command{
	Use:   "init <name>",
	Short: "Create a new backup plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		name := args[0]
		if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
			return fmt.Errorf("plan name must be filesystem-safe: %q", name)
		}

		p := &model.BackupPlan{Name: name, Schedule: model.Schedule(planSchedule)}
		if err := a.Service().SavePlan(p); err != nil {
			return fmt.Errorf("saving plan: %w", err)
		}

		fmt.Printf("Plan %q created (every %d day(s))\n", name, p.Schedule.IntervalDays())
		return nil
	},
}

var sourceKind string

var planAddSourceCmd = &cobra.Command{
	Use:   "add-source <plan> <source-name> <path>",
	Short: "Add a file or directory source to a plan",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.Service().LoadPlan(args[0])
		if err != nil {
			return fmt.Errorf("loading plan: %w", err)
		}

		name, rawPath := args[1], args[2]
		if p.HasSource(name) {
			return fmt.Errorf("plan %q already has a source named %q", p.Name, name)
		}

		absPath, err := filepath.Abs(rawPath)
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}

		kind := model.SourceKind(sourceKind)
		if kind != model.SourceFile && kind != model.SourceDirectory {
			fi, err := os.Stat(absPath)
			if err != nil {
				return fmt.Errorf("stat %s: %w", absPath, err)
			}
			kind = model.SourceFile
			if fi.IsDir() {
				kind = model.SourceDirectory
			}
		}

		p.Sources = append(p.Sources, model.BackupSource{Name: name, Path: absPath, Kind: kind})
		if err := a.Service().SavePlan(p); err != nil {
			return fmt.Errorf("saving plan: %w", err)
		}

		fmt.Printf("Source %q (%s) added to plan %q\n", name, kind, p.Name)
		return nil
	},
}

var planDueCmd = &cobra.Command{
	Use:   "due",
	Short: "Evaluate which plans are due for backup",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		plans, err := loadAllPlans(a)
		if err != nil {
			return err
		}

		if err := a.Service().EvaluateSchedules(context.Background(), plans, nil); err != nil {
			return fmt.Errorf("evaluating schedules: %w", err)
		}

		for _, p := range plans {
			state := "up to date"
			if p.BackupRequired {
				state = "backup due"
			}
			fmt.Printf("%-20s %s\n", p.Name, state)
		}
		return nil
	},
}

// loadAllPlans loads every plan folder under the archive root.
func loadAllPlans(a *app.App) ([]*model.BackupPlan, error) {
	entries, err := os.ReadDir(a.ArchiveRoot())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading archive root: %w", err)
	}

	var plans []*model.BackupPlan
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		p, err := a.Service().LoadPlan(e.Name())
		if err != nil {
			continue // folder without a plan file
		}
		plans = append(plans, p)
	}
	return plans, nil
}

// backup command

var backupFull bool

var backupCmd = &cobra.Command{
	Use:   "backup <plan>",
	Short: "Create a backup for a plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.Service().LoadPlan(args[0])
		if err != nil {
			return fmt.Errorf("loading plan: %w", err)
		}

		backupType := model.BackupIncremental
		if backupFull {
			backupType = model.BackupFull
		}

		done := make(chan smlb.BackupResult, 1)
		a.Service().CreateBackupAsync(p, backupType, func(res smlb.BackupResult) {
			done <- res
		})
		res := <-done
		if res.Err != nil {
			return fmt.Errorf("backup failed: %w", res.Err)
		}

		fmt.Printf("Backup complete: %s\n", res.ArchiveID)
		return nil
	},
}

// list command

var listCmd = &cobra.Command{
	Use:   "list <plan>",
	Short: "List a plan's archives",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		names, err := a.Service().ListArchives(args[0])
		if err != nil {
			return fmt.Errorf("listing archives: %w", err)
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	},
}

// restore command

var restoreCmd = &cobra.Command{
	Use:   "restore <archive-path> <dest>",
	Short: "Restore an archive (and its chain) into a destination",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		archivePath, destRoot := args[0], args[1]
		if !a.Service().CanRestore(archivePath) {
			return fmt.Errorf("archive chain is not restorable: %s", archivePath)
		}

		done := make(chan smlb.RestoreResult, 1)
		a.Service().RestoreAsync(archivePath, destRoot, func(res smlb.RestoreResult) {
			done <- res
		})
		res := <-done
		if res.Err != nil {
			return fmt.Errorf("restore failed: %w", res.Err)
		}

		fmt.Printf("Restored into %s\n", destRoot)
		return nil
	},
}

// export / import commands

var exportEncrypt bool

var exportCmd = &cobra.Command{
	Use:   "export <plan> <dest>",
	Short: "Export a plan's entire archive history as one bundle",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase := ""
		if exportEncrypt {
			passphrase, err = readPassphrase("Passphrase: ")
			if err != nil {
				return err
			}
		}

		done := make(chan smlb.TransferResult, 1)
		a.Service().ExportAsync(args[0], args[1], passphrase, func(res smlb.TransferResult) {
			done <- res
		})
		res := <-done
		if res.Err != nil {
			return fmt.Errorf("export failed: %w", res.Err)
		}

		fmt.Printf("Exported to %s\n", res.Path)
		return nil
	},
}

var importEncrypted bool

var importCmd = &cobra.Command{
	Use:   "import <bundle>",
	Short: "Import an exported bundle into the archive root",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase := ""
		if importEncrypted {
			passphrase, err = readPassphrase("Passphrase: ")
			if err != nil {
				return err
			}
		}

		done := make(chan smlb.TransferResult, 1)
		a.Service().ImportAsync(args[0], passphrase, func(res smlb.TransferResult) {
			done <- res
		})
		res := <-done
		if res.Err != nil {
			return fmt.Errorf("import failed: %w", res.Err)
		}

		fmt.Printf("Imported plan %q\n", res.Path)
		return nil
	},
}

// history command

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent engine operations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.Service().History(historyLimit)
		if err != nil {
			return fmt.Errorf("reading history: %w", err)
		}

		for _, r := range records {
			fmt.Printf("%-6d %-12s %-20s %-8s %s\n",
				r.ID, r.Operation, r.PlanName, r.Status,
				r.StartedAt.Format(time.RFC3339))
		}
		return nil
	},
}

func init() {
	planInitCmd.Flags().IntVar(&planSchedule, "schedule", 1, "backup interval in days (1-7)")
	planAddSourceCmd.Flags().StringVar(&sourceKind, "kind", "", "source kind: file or directory (default: auto-detect)")
	backupCmd.Flags().BoolVar(&backupFull, "full", false, "write a full backup instead of an incremental one")
	exportCmd.Flags().BoolVar(&exportEncrypt, "encrypt", false, "encrypt the bundle with a passphrase")
	importCmd.Flags().BoolVar(&importEncrypted, "encrypted", false, "bundle is passphrase-encrypted")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum records to show")

	configCmd.AddCommand(configInitCmd, configListCmd)
	planCmd.AddCommand(planInitCmd, planAddSourceCmd, planDueCmd)
	rootCmd.AddCommand(configCmd, planCmd, backupCmd, listCmd, restoreCmd, exportCmd, importCmd, historyCmd)
}
