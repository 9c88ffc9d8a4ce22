// ============================================================================
// labctl - Command Line Interface
// ============================================================================
//
// Package: internal/cli
//
// Command Structure:
//   labctl                          # Root command
//   ├── machine add|list|remove|enable|disable|jobs
//   ├── person  add|list|remove
//   ├── admin   add|list|remove|login
//   ├── job     add|list|start|finish|cancel|edit|remove|request-delete|restore|purge
//   ├── status                      # Dashboard: counts and per-machine load
//   ├── export FILE                 # Write the book as YAML or JSON
//   ├── import FILE                 # Replace the book from YAML or JSON
//   ├── journal list|stats|repair   # Inspect the change journal
//   ├── shell                       # Interactive session with undo/redo
//   └── --config, -c                # Config file (default configs/default.yaml)
//
// Every one-shot command loads the book, runs, saves when it changed
// something and exits; Execute closes the book even when the command fails. The shell keeps one book open and saves after each
// successful command, so undo and redo work within a session.
//
// Errors are returned to cobra, which prints them; main exits non-zero.
//
// ============================================================================

package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ChuLiYu/labqueue/internal/config"
	"github.com/ChuLiYu/labqueue/internal/controller"
	"github.com/ChuLiYu/labqueue/internal/jobmanager"
	"github.com/spf13/cobra"
)

// annotation set on commands that work on files directly and must not
// load the book.
const skipBook = "labctl/skip-book"

// app is the state shared by every command of one process.
type app struct {
	configFile string
	cfg        *config.Config
	ctrl       *controller.Controller
	// inShell is set while the shell runs its lines.
	inShell bool
	// logOutput is where the slog handler writes.
	logOutput io.Writer
}

// BuildCLI returns the root command. Callers that execute it should use
// Execute instead, which also closes the book.
func BuildCLI() *cobra.Command {
	return newApp().rootCommand()
}

// Execute runs the command line in args and releases the book afterwards,
// whether or not the command failed.
func Execute(ctx context.Context, args []string) error {
	a := newApp()
	root := a.rootCommand()
	root.SetArgs(args)
	// main prints the error
	root.SilenceErrors = true
	err := root.ExecuteContext(ctx)
	if cerr := a.close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func newApp() *app {
	return &app{logOutput: os.Stderr}
}

func (a *app) rootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "labctl",
		Short: "labctl: lab machines, people and fabrication jobs",
		Long: `labctl keeps the book of a shared lab:
- machines that can be enabled or disabled
- people who own jobs, and admins who run the lab
- jobs queued on machines, from QUEUED through ONGOING to FINISHED or CANCELLED`,
		Version:           "1.0.0",
		SilenceUsage:      true,
		PersistentPreRunE: a.before,
	}

	defaultConfig := "configs/default.yaml"
	if a.configFile != "" {
		// shell lines keep the file the session was started with
		defaultConfig = a.configFile
	}
	rootCmd.PersistentFlags().StringVarP(&a.configFile, "config", "c", defaultConfig, "config file path")

	rootCmd.AddCommand(a.buildMachineCommand())
	rootCmd.AddCommand(a.buildPersonCommand())
	rootCmd.AddCommand(a.buildAdminCommand())
	rootCmd.AddCommand(a.buildJobCommand())
	rootCmd.AddCommand(a.buildStatusCommand())
	rootCmd.AddCommand(a.buildExportCommand())
	rootCmd.AddCommand(a.buildImportCommand())
	rootCmd.AddCommand(a.buildJournalCommand())
	if !a.inShell {
		rootCmd.AddCommand(a.buildShellCommand())
	}
	return rootCmd
}

// before loads the config, installs the logger and, unless the command
// opts out, loads the book.
func (a *app) before(cmd *cobra.Command, args []string) error {
	if a.cfg == nil {
		cfg, err := config.Load(a.configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		a.cfg = cfg
		if err := setupLogger(cfg, a.logOutput); err != nil {
			return err
		}
	}
	if cmd.Annotations[skipBook] != "" || a.ctrl != nil {
		return nil
	}

	ctrl, err := controller.New(a.cfg)
	if err != nil {
		return fmt.Errorf("failed to create controller: %w", err)
	}
	if err := ctrl.Start(cmd.Context()); err != nil {
		ctrl.Stop()
		return err
	}
	a.ctrl = ctrl
	return nil
}

// close stops the controller opened by before, if any.
func (a *app) close() error {
	if a.ctrl == nil {
		return nil
	}
	err := a.ctrl.Stop()
	a.ctrl = nil
	return err
}

func setupLogger(cfg *config.Config, w io.Writer) error {
	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

func (a *app) manager() *jobmanager.Manager {
	return a.ctrl.Manager()
}

// commit records the new state in the undo history and saves it.
func (a *app) commit(ctx context.Context) error {
	a.manager().CommitAddressBook()
	return a.ctrl.Save(ctx)
}

// printList prints items numbered from 1 followed by the summary line.
func printList[T fmt.Stringer](w io.Writer, items []T, noun string) {
	for i, item := range items {
		fmt.Fprintf(w, "%d. %s\n", i+1, item)
	}
	fmt.Fprintf(w, "%d %s listed!\n", len(items), noun)
}
