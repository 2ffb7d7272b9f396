package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/paperlens/mathdex/internal/logging"
)

type logsFlags struct {
	file     string
	lines    int
	minLevel string
	regex    string
	follow   bool
	noColor  bool
}

func newLogsCmd() *cobra.Command {
	var opts logsFlags

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View mathdex debug logs",
		Long: `View and tail the mathdex log file.

Commands run with --debug write structured logs to ~/.mathdex/logs/.
By default the last 50 entries are shown; use -f to follow new entries
in real time.

Examples:
  mathdex logs                   # Show last 50 entries
  mathdex logs -n 200            # Show last 200 entries
  mathdex logs -f                # Follow in real time
  mathdex logs --level error     # Only errors
  mathdex logs --filter catalog  # Entries matching a pattern`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd, opts)
		},
	}

	fl := cmd.Flags()
	fl.BoolVarP(&opts.follow, "follow", "f", false, "Stream new entries as they land (like tail -f)")
	fl.IntVarP(&opts.lines, "lines", "n", 50, "Number of entries to show")
	fl.StringVar(&opts.minLevel, "level", "", "Minimum level to show (debug|info|warn|error)")
	fl.StringVar(&opts.regex, "filter", "", "Only show entries matching this regex")
	fl.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	fl.StringVar(&opts.file, "file", "", "Path to log file (overrides the default location)")

	return cmd
}

func runLogs(cmd *cobra.Command, opts logsFlags) error {
	var re *regexp.Regexp
	if opts.regex != "" {
		compiled, err := regexp.Compile(opts.regex)
		if err != nil {
			return fmt.Errorf("invalid --filter pattern: %w", err)
		}
		re = compiled
	}

	path, err := logging.FindLog(opts.file)
	if err != nil {
		return err
	}

	tailer := logging.NewTailer(logging.ViewOptions{
		Level:   opts.minLevel,
		Pattern: re,
		NoColor: opts.noColor,
	}, cmd.OutOrStdout())

	banner := cmd.ErrOrStderr()
	fmt.Fprintf(banner, "Log file: %s\n", path)
	if !opts.follow {
		fmt.Fprintln(banner, "---")
		lines, err := tailer.Tail(path, opts.lines)
		if err != nil {
			return err
		}
		tailer.Print(lines)
		return nil
	}

	fmt.Fprintln(banner, "Following... (Ctrl+C to stop)")
	fmt.Fprintln(banner, "---")
	return followLogs(cmd, tailer, path)
}

func followLogs(cmd *cobra.Command, tailer *logging.Tailer, path string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	stream := make(chan logging.Line, 100)
	errc := make(chan error, 1)
	go func() {
		errc <- tailer.Follow(ctx, path, stream)
	}()

	dst := cmd.OutOrStdout()
	for {
		select {
		case ln := <-stream:
			fmt.Fprintln(dst, tailer.Format(ln))
		case err := <-errc:
			return err
		case <-ctx.Done():
			fmt.Fprintln(cmd.ErrOrStderr(), "\nStopped.")
			return nil
		}
	}
}
