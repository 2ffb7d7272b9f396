package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/paperlens/mathdex/internal/config"
	mderrors "github.com/paperlens/mathdex/internal/errors"
	"github.com/paperlens/mathdex/internal/output"
	"github.com/paperlens/mathdex/templates"
)

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the user-level configuration",
		Long: `Manage the per-user configuration file.

Settings in the user config apply to every project on this machine that
does not override them: the catalog backend (sqlite or bleve), SQLite
cache sizing, the similarity worker count, and the default log level.

Later sources win: hardcoded defaults, then the user config
(~/.config/mathdex/config.yaml), then the project config
(.mathdex.yaml), then MATHDEX_* environment variables.`,
		Example: `  # Write the starter user config
  mathdex config init

  # Show the configuration commands actually run with
  mathdex config show

  # Where the user config lives
  mathdex config path

  # List backups and restore one
  mathdex config restore`,
	}

	configCmd.AddCommand(newConfigInitCmd(), newConfigShowCmd(), newConfigPathCmd(), newConfigRestoreCmd())
	return configCmd
}

func newConfigInitCmd() *cobra.Command {
	var upgrade bool

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create or upgrade the user config file",
		Long: `Write the user configuration file from its template.

The file lands at ~/.config/mathdex/config.yaml, or under
$XDG_CONFIG_HOME when that is set.

When the file already exists, --force upgrades it in place: the current
file is backed up, newly introduced settings gain their defaults, and
everything you customized is preserved.`,
		Example: `  # First-time setup
  mathdex config init

  # Upgrade an existing config with new defaults
  mathdex config init --force`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return runConfigInit(c, upgrade)
		},
	}

	initCmd.Flags().BoolVar(&upgrade, "force", false, "Upgrade an existing configuration in place")
	return initCmd
}

func newConfigShowCmd() *cobra.Command {
	var (
		asJSON bool
		layer  string
	)

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the configuration in effect",
		Long: `Show the configuration commands would actually run with.

The default view merges every source in precedence order. Use --source
to inspect a single layer instead: defaults, user, or project.`,
		Example: `  mathdex config show
  mathdex config show --json
  mathdex config show --source user`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return runConfigShow(c, asJSON, layer)
		},
	}

	showCmd.Flags().BoolVar(&asJSON, "json", false, "Print the configuration as JSON")
	showCmd.Flags().StringVar(&layer, "source", "merged", "Layer to show: merged, user, project, or defaults")
	return showCmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the user config location",
		Long:  `Print the path where the user configuration file is expected.`,
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			fmt.Fprintln(c.OutOrStdout(), config.UserConfigPath())
			return nil
		},
	}
}

func newConfigRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore [backup-file]",
		Short: "Restore user configuration from a backup",
		Long: `Restore the user configuration from a timestamped backup.

Without arguments, lists the available backups (newest first). Pass a
backup path to restore it. The current configuration is backed up before
being replaced, so a restore can itself be undone.`,
		Example: `  # List available backups
  mathdex config restore

  # Restore a specific backup
  mathdex config restore ~/.config/mathdex/config.yaml.bak.20260312-094501`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return runConfigRestore(c, args)
		},
	}
}

func runConfigInit(cmd *cobra.Command, upgrade bool) error {
	out := output.New(cmd.OutOrStdout())
	cfgPath := config.UserConfigPath()

	if !fileExists(cfgPath) {
		return writeUserTemplate(out, cfgPath)
	}
	if upgrade {
		return runConfigUpgrade(out, cfgPath)
	}

	out.Statusf("ℹ️ ", "Existing user config preserved: %s", cfgPath)
	out.Status("💡", "Use --force to upgrade it with new defaults (your settings are preserved)")
	return nil
}

// writeUserTemplate lays down the starter config at cfgPath.
func writeUserTemplate(out *output.Console, cfgPath string) error {
	if err := os.MkdirAll(config.UserConfigDir(), 0o755); err != nil {
		return fmt.Errorf("failed to prepare config directory: %w", err)
	}
	if err := os.WriteFile(cfgPath, []byte(templates.User), 0o644); err != nil {
		return fmt.Errorf("failed to write user config: %w", err)
	}

	out.Statusf("📝", "Created %s", cfgPath)
	out.Newline()
	out.Success("User configuration ready!")
	out.Status("💡", "Settings here apply everywhere a project's .mathdex.yaml doesn't override them")
	out.Status("", "   Run 'mathdex config show' to see the effective configuration")
	return nil
}

// runConfigUpgrade backs up the existing user config, folds in newly
// introduced defaults, and writes it back.
func runConfigUpgrade(out *output.Console, cfgPath string) error {
	savedTo, err := config.Backup()
	if err != nil {
		return fmt.Errorf("failed to back up config: %w", err)
	}

	cur, err := config.UserConfig()
	if err != nil {
		return fmt.Errorf("failed to load current config: %w", err)
	}
	if cur == nil {
		return fmt.Errorf("user config vanished mid-upgrade")
	}

	newKeys := cur.MergeNewDefaults()
	if err := cur.WriteYAML(cfgPath); err != nil {
		return fmt.Errorf("failed to save upgraded config: %w", err)
	}

	out.Success("User configuration upgraded")
	out.Statusf("📁", "Upgraded in place: %s", cfgPath)
	out.Statusf("💾", "Backup: %s", savedTo)
	out.Newline()
	if len(newKeys) == 0 {
		out.Status("✓", "Everything already up to date")
	} else {
		out.Status("✨", "Settings added with their defaults:")
		for _, key := range newKeys {
			out.Statusf("", "   - %s", key)
		}
	}
	out.Newline()
	out.Status("💡", "Everything you customized was kept")
	return nil
}

func runConfigShow(cmd *cobra.Command, asJSON bool, layer string) error {
	dst := cmd.OutOrStdout()
	out := output.New(dst)

	var (
		cfg   *config.Config
		shown string
	)
	switch layer {
	case "merged":
		loaded, err := config.Load(resolveProjectRoot())
		if err != nil {
			return mderrors.New(mderrors.CodeConfigInvalid,
				fmt.Sprintf("failed to load config: %v", err), err).
				WithHint("fix the reported field or restore a backup with 'mathdex config restore'")
		}
		cfg = loaded
		shown = "merged (defaults + user + project + env)"

	case "user":
		path := config.UserConfigPath()
		if !fileExists(path) {
			out.Warning("No user config file found")
			out.Statusf("📁", "Looked in: %s", path)
			out.Status("💡", "Create one with 'mathdex config init'")
			return nil
		}
		loaded, err := loadConfigLayer("user", path)
		if err != nil {
			return err
		}
		cfg = loaded
		shown = "user (" + path + ")"

	case "project":
		root := resolveProjectRoot()
		path, found := projectConfigFile(root)
		if !found {
			out.Warning("No project config file found")
			out.Statusf("📁", "Looked in: %s", filepath.Join(root, ".mathdex.yaml"))
			out.Status("💡", "Run 'mathdex init' to create one")
			return nil
		}
		loaded, err := loadConfigLayer("project", path)
		if err != nil {
			return err
		}
		cfg = loaded
		shown = "project (" + path + ")"

	case "defaults":
		cfg, shown = config.Defaults(), "defaults (hardcoded)"

	default:
		return fmt.Errorf("invalid source %q (expected merged, user, project, or defaults)", layer)
	}

	if asJSON {
		blob, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode config as JSON: %w", err)
		}
		fmt.Fprintln(dst, string(blob))
		return nil
	}

	out.Statusf("📋", "Source: %s", shown)
	out.Newline()
	text, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	fmt.Fprintln(dst, string(text))
	return nil
}

// loadConfigLayer parses one config file without merging, so show can
// report exactly what a single layer contains.
func loadConfigLayer(layer, path string) (*config.Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s config: %w", layer, err)
	}
	parsed := config.Defaults()
	if err := yaml.Unmarshal(raw, parsed); err != nil {
		return nil, fmt.Errorf("failed to parse %s config: %w", layer, err)
	}
	return parsed, nil
}

// projectConfigFile locates the project config under root, trying the
// .yaml spelling first.
func projectConfigFile(root string) (string, bool) {
	for _, name := range []string{".mathdex.yaml", ".mathdex.yml"} {
		path := filepath.Join(root, name)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

func runConfigRestore(cmd *cobra.Command, args []string) error {
	out := output.New(cmd.OutOrStdout())

	if len(args) == 0 {
		return listConfigBackups(out)
	}

	if err := config.Restore(args[0]); err != nil {
		return fmt.Errorf("failed to restore config: %w", err)
	}

	out.Success("Configuration restored")
	out.Statusf("📁", "Restored to: %s", config.UserConfigPath())
	return nil
}

// listConfigBackups prints the available backups, newest first.
func listConfigBackups(out *output.Console) error {
	backups, err := config.Backups()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	if len(backups) == 0 {
		out.Status("ℹ️ ", "No config backups found")
		return nil
	}

	out.Status("📋", "Available backups (newest first):")
	for _, backup := range backups {
		out.Statusf("", "  %s", backup)
	}
	out.Newline()
	out.Status("💡", "Run 'mathdex config restore <backup-file>' to restore one")
	return nil
}
