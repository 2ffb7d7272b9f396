package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Edge cases around project-root discovery, config merging, and the
// loader's failure modes.

// writeProjectConfig drops a .mathdex.yaml with the given body into dir.
func writeProjectConfig(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".mathdex.yaml"), []byte(body), 0o644))
}

func TestFindProjectRoot_EdgeCases(t *testing.T) {
	// resolved normalizes a path the way the walk reports it, so asserts
	// hold on systems where TempDir sits behind a symlink.
	resolved := func(path string) string {
		if r, err := filepath.EvalSymlinks(path); err == nil {
			return r
		}
		return path
	}

	t.Run("walks out of deep nesting to the git root", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
		nested := filepath.Join(root, "a", "b", "c", "d", "e", "f", "g", "h")
		require.NoError(t, os.MkdirAll(nested, 0o755))

		got, err := FindProjectRoot(nested)
		require.NoError(t, err)
		assert.Equal(t, root, got)
	})

	t.Run("relative path resolves to absolute", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
		t.Chdir(root)

		got, err := FindProjectRoot(".")
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(got))
		assert.Equal(t, resolved(root), resolved(got))
	})

	t.Run("empty path means the working directory", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
		t.Chdir(root)

		got, err := FindProjectRoot("")
		require.NoError(t, err)
		assert.Equal(t, resolved(root), resolved(got))
	})

	t.Run("missing directory yields its absolute path", func(t *testing.T) {
		// filepath.Abs does not require the path to exist; the walk finds
		// no markers and falls back to the starting point.
		got, err := FindProjectRoot("/no/such/path/anywhere")
		require.NoError(t, err)
		assert.Equal(t, "/no/such/path/anywhere", got)
	})
}

func TestLoad_ExcludePathsExtendDefaults(t *testing.T) {
	dir := t.TempDir()
	writeProjectConfig(t, dir, `
version: 1
paths:
  exclude:
    - "**/drafts/**"
`)

	cfg, err := Load(dir)
	require.NoError(t, err)

	// Custom excludes extend the default list instead of replacing it.
	for _, pat := range []string{"**/.git/**", "**/*.aux", "**/drafts/**"} {
		assert.Contains(t, cfg.Paths.Exclude, pat)
	}
}

func TestLoad_ZeroValueCannotOverride(t *testing.T) {
	// An explicit zero in YAML is indistinguishable from an absent field,
	// so it cannot override a default. Documents the "can't set to zero"
	// limitation.
	dir := t.TempDir()
	writeProjectConfig(t, dir, `
version: 1
extraction:
  context_window: 0
catalog:
  rrf_smoothing: 0
`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 240, cfg.Extraction.ContextWindow)
	assert.Equal(t, 60, cfg.Catalog.RRFSmoothing)
}

func TestLoad_NegativeMaxResultsRejected(t *testing.T) {
	dir := t.TempDir()
	writeProjectConfig(t, dir, `
version: 1
catalog:
  max_results: -3
`)

	got, err := Load(dir)
	require.Error(t, err)
	require.Nil(t, got)
	assert.Contains(t, err.Error(), "catalog.max_results")
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{
			name: "weights off balance",
			mutate: func(c *Config) {
				c.Similarity.StructuralWeight = 0.9
				c.Similarity.SemanticWeight = 0.9
			},
			wantMsg: "must sum to 1.0",
		},
		{
			name:    "unknown catalog backend",
			mutate:  func(c *Config) { c.Catalog.Backend = "elasticsearch" },
			wantMsg: "catalog.backend",
		},
		{
			name:    "negative worker count",
			mutate:  func(c *Config) { c.Similarity.Workers = -1 },
			wantMsg: "workers",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantMsg: "logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestValidate_DefaultsPass(t *testing.T) {
	// The default weights only sum to 1.0 up to float64 rounding;
	// validation must tolerate that.
	require.NoError(t, Defaults().Validate())
}

func TestLoad_UnreadableProjectFile(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("root ignores file permissions")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, ".mathdex.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 1"), 0o000))
	defer func() { _ = os.Chmod(path, 0o644) }()

	got, err := Load(dir)
	require.Error(t, err)
	assert.Nil(t, got)
	assert.Contains(t, err.Error(), "read")
}

func TestDiscoverDocumentDirs_EdgeCases(t *testing.T) {
	t.Run("empty project", func(t *testing.T) {
		assert.Empty(t, DiscoverDocumentDirs(t.TempDir()))
	})

	t.Run("missing project", func(t *testing.T) {
		assert.Empty(t, DiscoverDocumentDirs("/no/such/path/anywhere"))
	})

	t.Run("a file named like a document dir", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "docs"), []byte("not a dir"), 0o644))

		assert.NotContains(t, DiscoverDocumentDirs(dir), "docs")
	})
}

func TestConfig_JSONRoundTrip(t *testing.T) {
	cfg := Defaults()
	cfg.Similarity.StructuralWeight = 0.5
	cfg.Similarity.SemanticWeight = 0.2
	cfg.Catalog.Backend = "bleve"
	cfg.Catalog.RRFSmoothing = 100
	cfg.Extraction.ContextWindow = 500

	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	var back Config
	require.NoError(t, json.Unmarshal(data, &back))

	assert.Equal(t, 0.5, back.Similarity.StructuralWeight)
	assert.Equal(t, 0.2, back.Similarity.SemanticWeight)
	assert.Equal(t, "bleve", back.Catalog.Backend)
	assert.Equal(t, 100, back.Catalog.RRFSmoothing)
	assert.Equal(t, 500, back.Extraction.ContextWindow)
}

func TestConfig_RejectsMalformedJSON(t *testing.T) {
	require.Error(t, json.Unmarshal([]byte("{invalid json"), new(Config)))
}

func TestDataDir_DefaultsToProjectDotDir(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, filepath.Join("/work/thesis", ".mathdex"), cfg.DataDir("/work/thesis"))
}

func TestDataDir_ExplicitDirWins(t *testing.T) {
	cfg := Defaults()
	cfg.Storage.Dir = "/var/lib/mathdex"

	assert.Equal(t, "/var/lib/mathdex", cfg.DataDir("/work/thesis"))
}

func TestMergeNewDefaults_AddsMissingFields(t *testing.T) {
	// A config written before rrf_smoothing and cache_size existed reads
	// as zero for both; the upgrade fills them without touching the rest.
	cfg := Defaults()
	cfg.Catalog.RRFSmoothing = 0
	cfg.Classification.CacheSize = 0
	cfg.Catalog.Backend = "bleve"

	newKeys := cfg.MergeNewDefaults()

	assert.Contains(t, newKeys, "catalog.rrf_smoothing")
	assert.Contains(t, newKeys, "classification.cache_size")
	assert.Equal(t, 60, cfg.Catalog.RRFSmoothing)
	assert.Equal(t, 1024, cfg.Classification.CacheSize)
	assert.Equal(t, "bleve", cfg.Catalog.Backend)
}
