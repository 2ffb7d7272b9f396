package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/paperlens/mathdex/internal/config"
	"github.com/paperlens/mathdex/internal/output"
	"github.com/paperlens/mathdex/pkg/version"
	"github.com/paperlens/mathdex/templates"
)

func newInitCmd() *cobra.Command {
	var (
		global    bool
		overwrite bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize mathdex for a project",
		Long: `Set up mathdex in the current project: drop a .mathdex.yaml
configuration template at the project root and add the .mathdex/ data
directory to .gitignore.

With --global it instead creates the user-level configuration file
(~/.config/mathdex/config.yaml) shared by all projects on this machine.

Both files are optional. mathdex works with sensible defaults.`,
		Example: `  # Set up the current project
  mathdex init

  # Create the user-level config (applies to all projects)
  mathdex init --global

  # Overwrite an existing config with a fresh template
  mathdex init --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd, global, overwrite)
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "Create the user config instead of a project config")
	cmd.Flags().BoolVar(&overwrite, "force", false, "Overwrite the project config (with --global: upgrade in place)")

	return cmd
}

func runInit(cmd *cobra.Command, global, overwrite bool) error {
	out := output.New(cmd.OutOrStdout())

	out.Statusf("🚀", "mathdex %s - Initializing...", version.Version)
	out.Newline()

	if global {
		return runConfigInit(cmd, overwrite)
	}

	root := resolveProjectRoot()
	out.Statusf("📁", "Project: %s", root)
	out.Newline()

	if err := writeProjectTemplate(out, root, overwrite); err != nil {
		return err
	}

	// A .gitignore problem should not abort the whole setup.
	switch added, err := ensureGitignore(root); {
	case err != nil:
		out.Warningf("Unable to update .gitignore: %v", err)
	case added:
		out.Status("📝", "Added .mathdex to .gitignore")
	}

	if dirs := config.DiscoverDocumentDirs(root); len(dirs) > 0 {
		out.Newline()
		out.Statusf("📚", "Documents found: %s", strings.Join(dirs, ", "))
	}

	out.Newline()
	out.Success("Project initialized!")
	out.Newline()
	out.Status("📋", "What's next:")
	out.Status("", "  1. Review .mathdex.yaml include/exclude paths")
	out.Status("", "  2. Run 'mathdex analyze' to index your documents")
	out.Status("", "  3. Run 'mathdex lookup <terms>' or 'mathdex search <markup>'")

	if !config.HasUserConfig() {
		out.Newline()
		out.Status("💡", "For machine-specific settings (catalog backend, cache sizes):")
		out.Status("", "   Run 'mathdex init --global' to create the user config")
	}

	return nil
}

// writeProjectTemplate drops the embedded .mathdex.yaml template into the
// project root. An existing config wins unless overwrite is set; both the
// .yaml and .yml spellings count. The template ships fully commented out,
// so a fresh file changes nothing until the user uncomments a setting.
func writeProjectTemplate(out *output.Console, root string, overwrite bool) error {
	target := filepath.Join(root, ".mathdex.yaml")

	if !overwrite {
		if existing, ok := projectConfigFile(root); ok {
			if filepath.Ext(existing) == ".yml" {
				out.Status("ℹ️ ", "Existing .mathdex.yml found, skipping template")
			} else {
				out.Status("ℹ️ ", "Existing .mathdex.yaml preserved")
			}
			return nil
		}
	}

	if err := os.WriteFile(target, []byte(templates.Project), 0644); err != nil {
		return fmt.Errorf("failed to write .mathdex.yaml: %w", err)
	}

	out.Statusf("📝", "Created .mathdex.yaml (optional project configuration)")
	return nil
}

// hasMathdexIgnore reports whether the .gitignore content already covers the
// .mathdex data directory. Git treats ".mathdex", ".mathdex/", "/.mathdex"
// and "/.mathdex/" alike here, so every spelling counts.
func hasMathdexIgnore(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		entry := strings.TrimSpace(line)
		if entry == "" || strings.HasPrefix(entry, "#") {
			continue
		}
		if strings.Trim(entry, "/") == ".mathdex" {
			return true
		}
	}
	return false
}

// ensureGitignore appends a .mathdex/ entry to the project's .gitignore,
// creating the file when there is none. Reports whether an entry was added;
// a file that already ignores the data directory is left byte for byte as
// it was.
func ensureGitignore(root string) (bool, error) {
	path := filepath.Join(root, ".gitignore")

	raw, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("failed to read .gitignore: %w", err)
	}
	text := string(raw)
	if hasMathdexIgnore(text) {
		return false, nil
	}

	// Stick with whatever line endings the file already uses.
	eol := "\n"
	if strings.Contains(text, "\r\n") {
		eol = "\r\n"
	}

	var sb strings.Builder
	sb.WriteString(text)
	if text != "" {
		if !strings.HasSuffix(text, "\n") {
			sb.WriteString(eol)
		}
		// Blank line between the existing rules and ours.
		sb.WriteString(eol)
	}
	sb.WriteString("# mathdex index data (auto-generated)" + eol)
	sb.WriteString(".mathdex/" + eol)

	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return false, fmt.Errorf("failed to write .gitignore: %w", err)
	}

	return true, nil
}
