package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runInitIn executes the init command from inside dir and returns its output.
func runInitIn(t *testing.T, dir string, args ...string) string {
	t.Helper()

	out, err := runMathdex(t, dir, append([]string{"init"}, args...)...)
	require.NoError(t, err, "init should succeed")
	return out
}

// readFileT reads path or fails the test.
func readFileT(t *testing.T, path string) string {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(raw)
}

func TestInitCmd_CreatesProjectConfig(t *testing.T) {
	// Given: a fresh project directory
	dir := newProjectDir(t)

	// When: running init
	output := runInitIn(t, dir)

	// Then: the config template and gitignore entry exist
	assert.Contains(t, output, "Initializing...")
	assert.Contains(t, output, "Created .mathdex.yaml")

	tmpl := readFileT(t, filepath.Join(dir, ".mathdex.yaml"))
	assert.Contains(t, tmpl, "version:", "template should carry the version field")
	assert.Contains(t, tmpl, "#", "template should be mostly commented examples")

	assert.Contains(t, readFileT(t, filepath.Join(dir, ".gitignore")), ".mathdex/")
}

func TestInitCmd_PreservesExistingYAML(t *testing.T) {
	// Given: a project with a customized .mathdex.yaml
	dir := newProjectDir(t)
	custom := "version: 1\n# my customizations\npaths:\n  exclude:\n    - drafts/**\n"
	yamlPath := filepath.Join(dir, ".mathdex.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(custom), 0o644))

	// When: running init without --force
	output := runInitIn(t, dir)

	// Then: the existing file is untouched
	assert.Contains(t, output, "preserved")
	assert.Equal(t, custom, readFileT(t, yamlPath), "existing .mathdex.yaml should not be overwritten")
}

func TestInitCmd_PreservesExistingYML(t *testing.T) {
	// Given: a project using the .yml extension
	dir := newProjectDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".mathdex.yml"), []byte("version: 1\n"), 0o644))

	// When: running init
	output := runInitIn(t, dir)

	// Then: no .mathdex.yaml is generated next to it
	assert.Contains(t, output, "skipping template")
	assert.NoFileExists(t, filepath.Join(dir, ".mathdex.yaml"))
}

func TestInitCmd_ForceOverwritesYAML(t *testing.T) {
	// Given: a project with a customized .mathdex.yaml
	dir := newProjectDir(t)
	yamlPath := filepath.Join(dir, ".mathdex.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("# custom marker\n"), 0o644))

	// When: running init --force
	output := runInitIn(t, dir, "--force")

	// Then: the file is replaced with the fresh template
	assert.Contains(t, output, "Created .mathdex.yaml")

	tmpl := readFileT(t, yamlPath)
	assert.Contains(t, tmpl, "mathdex project configuration")
	assert.NotContains(t, tmpl, "custom marker")
}

func TestInitCmd_GlobalWritesUserConfig(t *testing.T) {
	// Given: an isolated XDG config home
	configDir := isolatedConfigHome(t)

	// When: running init --global
	output := runInitIn(t, t.TempDir(), "--global")

	// Then: the user template lands in the XDG directory
	assert.Contains(t, output, "User configuration ready")
	assert.Contains(t, readFileT(t, filepath.Join(configDir, "config.yaml")), "mathdex user configuration")
}

func TestInitCmd_GlobalPreservesExisting(t *testing.T) {
	// Given: an existing user config
	configDir := isolatedConfigHome(t)
	require.NoError(t, os.MkdirAll(configDir, 0o755))
	cfgPath := filepath.Join(configDir, "config.yaml")
	custom := "version: 1\n# tuned for this machine\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(custom), 0o644))

	// When: running init --global without --force
	output := runInitIn(t, t.TempDir(), "--global")

	// Then: the existing config survives
	assert.Contains(t, output, "preserved")
	assert.Equal(t, custom, readFileT(t, cfgPath))
}

func TestInitCmd_GlobalForceUpgradesInPlace(t *testing.T) {
	// Given: an existing user config with a customized backend
	configDir := isolatedConfigHome(t)
	require.NoError(t, os.MkdirAll(configDir, 0o755))
	cfgPath := filepath.Join(configDir, "config.yaml")
	custom := "version: 1\n# tuned for this machine\ncatalog:\n  backend: bleve\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(custom), 0o644))

	// When: running init --global --force
	output := runInitIn(t, t.TempDir(), "--global", "--force")

	// Then: the config upgrades in place and a backup holds the original
	assert.Contains(t, output, "User configuration upgraded")
	assert.Contains(t, output, "Backup:")
	assert.Contains(t, readFileT(t, cfgPath), "backend: bleve", "customized setting should survive the upgrade")
	assert.Contains(t, readFileT(t, findConfigBackup(t, configDir)), "# tuned for this machine")
}

// ============================================================================
// .gitignore handling
// ============================================================================

func TestHasMathdexIgnore(t *testing.T) {
	cases := map[string]struct {
		body string
		want bool
	}{
		"empty":                 {"", false},
		"unrelated entries":     {"*.aux\nbuild/\n", false},
		"bare name":             {".mathdex\n", true},
		"trailing slash":        {".mathdex/\n", true},
		"rooted":                {"/.mathdex\n", true},
		"rooted with slash":     {"/.mathdex/\n", true},
		"commented out":         {"# .mathdex/\n", false},
		"padded with spaces":    {"  .mathdex/  \n", true},
		"between other entries": {"*.aux\n.mathdex/\nbuild/\n", true},
		"config file name":      {".mathdex.yaml\n", false},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, hasMathdexIgnore(tc.body), "content %q", tc.body)
		})
	}
}

func TestEnsureGitignore(t *testing.T) {
	cases := []struct {
		name      string
		existing  string
		noFile    bool
		wantAdded bool
		contains  []string
		untouched bool
	}{
		{
			name: "creates file", noFile: true, wantAdded: true,
			contains: []string{".mathdex/", "# mathdex"},
		},
		{
			name: "appends to existing", existing: "*.aux\nbuild/\n", wantAdded: true,
			contains: []string{"*.aux", ".mathdex/"},
		},
		{
			name: "entry already present", existing: "*.aux\n.mathdex/\n", wantAdded: false,
			untouched: true,
		},
		{
			name: "crlf file gets crlf entry", existing: "*.aux\r\nbuild/\r\n", wantAdded: true,
			contains: []string{".mathdex/\r\n"},
		},
		{
			name: "missing trailing newline", existing: "*.aux", wantAdded: true,
			contains: []string{"*.aux\n", ".mathdex/"},
		},
		{
			name: "commented entry does not count", existing: "*.aux\n# .mathdex/\n", wantAdded: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, ".gitignore")
			if !tc.noFile {
				require.NoError(t, os.WriteFile(path, []byte(tc.existing), 0o644))
			}

			added, err := ensureGitignore(dir)
			require.NoError(t, err)
			assert.Equal(t, tc.wantAdded, added)

			got := readFileT(t, path)
			for _, want := range tc.contains {
				assert.Contains(t, got, want)
			}
			if tc.untouched {
				assert.Equal(t, tc.existing, got, "present entry must leave the file alone")
			}
		})
	}
}

func TestEnsureGitignore_RecognizesVariants(t *testing.T) {
	for _, variant := range []string{".mathdex", ".mathdex/", "/.mathdex", "/.mathdex/"} {
		t.Run(variant, func(t *testing.T) {
			dir := t.TempDir()
			existing := "*.aux\n" + variant + "\n"
			require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(existing), 0o644))

			added, err := ensureGitignore(dir)
			require.NoError(t, err)
			assert.False(t, added, "%q already covers the data dir", variant)
		})
	}
}

func TestInitCmd_GitignoreSingleEntry(t *testing.T) {
	// Given: a project directory
	dir := newProjectDir(t)

	// When: running init twice
	_ = runInitIn(t, dir, "--force")
	_ = runInitIn(t, dir, "--force")

	// Then: .gitignore carries exactly one data dir entry
	content := readFileT(t, filepath.Join(dir, ".gitignore"))
	assert.Equal(t, 1, strings.Count(content, ".mathdex/"), "repeat runs must not duplicate the entry")
}
