// Package cmd provides the CLI commands for mathdex.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/paperlens/mathdex/internal/config"
	"github.com/paperlens/mathdex/internal/logging"
	"github.com/paperlens/mathdex/internal/profiling"
	"github.com/paperlens/mathdex/pkg/version"
)

// Persistent flag state, shared across one command invocation.
var (
	cpuProfile   string
	memProfile   string
	traceProfile string
	debugEnabled bool

	activeProfiles *profiling.Session
	debugLog       *logging.Logger
)

// NewRootCmd creates the root command for the mathdex CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mathdex",
		Short: "Index and search mathematical content in documents",
		Long: `mathdex extracts equations from LaTeX and Markdown documents,
classifies them, recognizes the concepts they belong to, and builds
a searchable index: similarity search over equation structure plus
keyword lookup over equation contexts and concept names.

Everything runs locally. Run 'mathdex analyze' in a project directory
to get started, then 'mathdex search' or 'mathdex lookup' to query.`,

		// main prints the error once, so cobra should not echo it.
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       version.Version,

		RunE: func(c *cobra.Command, _ []string) error { return c.Help() },
	}

	root.SetVersionTemplate("mathdex version {{.Version}}\n")

	flags := root.PersistentFlags()
	flags.StringVar(&cpuProfile, "profile-cpu", "", "Write CPU profile to file")
	flags.StringVar(&memProfile, "profile-mem", "", "Write memory profile to file")
	flags.StringVar(&traceProfile, "profile-trace", "", "Write execution trace to file")
	flags.BoolVar(&debugEnabled, "debug", false, "Enable debug logging to ~/.mathdex/logs/")

	root.PersistentPreRunE = startDiagnostics
	root.PersistentPostRunE = stopDiagnostics

	root.AddCommand(
		newAnalyzeCmd(),
		newSearchCmd(),
		newLookupCmd(),
		newExportCmd(),
		newImportCmd(),
		newStatusCmd(),
		newStatsCmd(),
		newWatchCmd(),
		newInitCmd(),
		newConfigCmd(),
		newLogsCmd(),
		newVersionCmd(),
	)

	return root
}

// startDiagnostics wires the --debug and --profile-* flags in before any
// subcommand runs.
func startDiagnostics(_ *cobra.Command, _ []string) error {
	if debugEnabled {
		dbgCfg := logging.Defaults()
		dbgCfg.Level = "debug"
		lg, err := logging.Open(dbgCfg)
		if err != nil {
			return fmt.Errorf("failed to enable debug logging: %w", err)
		}
		debugLog = lg
		slog.SetDefault(lg.Logger)
		slog.Info("Debug log opened",
			slog.String("path", logging.DefaultPath()),
			slog.String("version", version.Version))
	}

	prof, err := profiling.Start(profiling.Options{
		CPUPath:   cpuProfile,
		HeapPath:  memProfile,
		TracePath: traceProfile,
	})
	if err != nil {
		return err
	}
	activeProfiles = prof
	return nil
}

// stopDiagnostics flushes profiles and closes the debug log after the
// subcommand finishes.
func stopDiagnostics(_ *cobra.Command, _ []string) error {
	err := activeProfiles.Stop()
	activeProfiles = nil

	if debugLog != nil {
		slog.Info("Debug log closed")
		_ = debugLog.Close()
		debugLog = nil
	}
	return err
}

// Execute runs the CLI.
func Execute() error {
	root := NewRootCmd()
	return root.Execute()
}

// resolveProjectRoot finds the project root for the working directory,
// falling back to the working directory itself when no marker is found.
func resolveProjectRoot() string {
	if root, err := config.FindProjectRoot("."); err == nil {
		return root
	}
	wd, _ := os.Getwd()
	return wd
}

// loadProjectConfig loads configuration for root, falling back to defaults
// when no config file exists.
func loadProjectConfig(root string) *config.Config {
	loaded, err := config.Load(root)
	if err != nil {
		return config.Defaults()
	}
	return loaded
}

// setupFileLogging routes slog to the log file at the configured level so
// user-facing output stays clean, and returns the writer cleanup. Under
// --debug the root hook already installed the file logger, so this is a
// no-op; so is an unwritable log location.
func setupFileLogging(level string) func() {
	if debugEnabled {
		return func() {}
	}

	fileCfg := logging.Defaults()
	if level != "" {
		fileCfg.Level = level
	}
	fileCfg.MirrorStderr = false

	lg, err := logging.Open(fileCfg)
	if err != nil {
		return func() {}
	}
	slog.SetDefault(lg.Logger)
	return func() { _ = lg.Close() }
}

// fileExists reports whether path exists.
func fileExists(path string) bool { _, err := os.Stat(path); return err == nil }
