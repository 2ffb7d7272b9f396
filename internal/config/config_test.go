package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, 1, cfg.Version, "schema version")

	t.Run("similarity", func(t *testing.T) {
		assert.Equal(t, 0.4, cfg.Similarity.StructuralWeight)
		assert.Equal(t, 0.3, cfg.Similarity.SemanticWeight)
		assert.Equal(t, 0.2, cfg.Similarity.VariableWeight)
		assert.Equal(t, 0.1, cfg.Similarity.FunctionWeight)
		assert.Equal(t, runtime.NumCPU(), cfg.Similarity.Workers)

		sum := cfg.Similarity.StructuralWeight + cfg.Similarity.SemanticWeight +
			cfg.Similarity.VariableWeight + cfg.Similarity.FunctionWeight
		assert.InDelta(t, 1.0, sum, 1e-9, "component weights form a weighted average")
	})

	t.Run("extraction", func(t *testing.T) {
		assert.Equal(t, 240, cfg.Extraction.ContextWindow)
		assert.Equal(t, 2000, cfg.Extraction.MaxEquationLength)
		assert.Contains(t, cfg.Extraction.Extensions, ".tex")
		assert.Contains(t, cfg.Extraction.Extensions, ".md")
	})

	t.Run("analysis", func(t *testing.T) {
		assert.Equal(t, 1024, cfg.Classification.CacheSize)
		assert.Equal(t, 6, cfg.Concepts.MaxNameWords)
	})

	t.Run("catalog", func(t *testing.T) {
		assert.Equal(t, "sqlite", cfg.Catalog.Backend)
		assert.Equal(t, 20, cfg.Catalog.MaxResults)
		assert.Equal(t, 60, cfg.Catalog.RRFSmoothing)
	})

	t.Run("performance", func(t *testing.T) {
		assert.Equal(t, 16, cfg.Performance.MaxFileSizeMB)
		assert.Equal(t, 64, cfg.Performance.SQLiteCacheMB)

		debounce, err := time.ParseDuration(cfg.Performance.CoalesceWindow)
		require.NoError(t, err)
		assert.Equal(t, 500*time.Millisecond, debounce)
	})

	t.Run("excluded paths", func(t *testing.T) {
		// LaTeX build artifacts are excluded out of the box.
		for _, pattern := range []string{"**/.git/**", "**/.mathdex/**", "**/*.aux", "**/*.synctex.gz"} {
			assert.Contains(t, cfg.Paths.Exclude, pattern)
		}
		assert.True(t, cfg.Paths.HonorGitignore())
	})

	t.Run("storage and logging", func(t *testing.T) {
		assert.Empty(t, cfg.Storage.Dir)
		assert.Equal(t, "info", cfg.Logging.Level)
	})
}

func TestLoad_NoProjectConfig(t *testing.T) {
	userConfigEnv(t)

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0.4, cfg.Similarity.StructuralWeight, "defaults apply when nothing is on disk")
}

func TestLoad_ProjectFile(t *testing.T) {
	t.Run("yaml values override defaults", func(t *testing.T) {
		userConfigEnv(t)
		dir := t.TempDir()
		writeProjectConfig(t, dir, `
version: 1
similarity:
  structural_weight: 0.5
  semantic_weight: 0.2
  variable_weight: 0.2
  function_weight: 0.1
  workers: 2
catalog:
  backend: bleve
  max_results: 35
`)

		cfg, err := Load(dir)
		require.NoError(t, err)
		assert.Equal(t, 0.5, cfg.Similarity.StructuralWeight)
		assert.Equal(t, 0.2, cfg.Similarity.SemanticWeight)
		assert.Equal(t, 0.2, cfg.Similarity.VariableWeight)
		assert.Equal(t, 0.1, cfg.Similarity.FunctionWeight)
		assert.Equal(t, 2, cfg.Similarity.Workers)
		assert.Equal(t, "bleve", cfg.Catalog.Backend)
		assert.Equal(t, 35, cfg.Catalog.MaxResults)
	})

	t.Run("gitignore handling can be switched off", func(t *testing.T) {
		userConfigEnv(t)
		dir := t.TempDir()
		writeProjectConfig(t, dir, "version: 1\npaths:\n  use_gitignore: false\n")

		cfg, err := Load(dir)
		require.NoError(t, err)
		assert.False(t, cfg.Paths.HonorGitignore())
	})

	t.Run("yml spelling is recognized", func(t *testing.T) {
		userConfigEnv(t)
		dir := t.TempDir()
		body := "version: 1\ncatalog:\n  backend: bleve\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".mathdex.yml"), []byte(body), 0o644))

		cfg, err := Load(dir)
		require.NoError(t, err)
		assert.Equal(t, "bleve", cfg.Catalog.Backend)
	})

	t.Run("yaml wins when both spellings exist", func(t *testing.T) {
		userConfigEnv(t)
		dir := t.TempDir()
		writeProjectConfig(t, dir, "version: 1\ncatalog:\n  backend: sqlite\n")
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".mathdex.yml"),
			[]byte("version: 1\ncatalog:\n  backend: bleve\n"), 0o644))

		cfg, err := Load(dir)
		require.NoError(t, err)
		assert.Equal(t, "sqlite", cfg.Catalog.Backend)
	})
}

func TestLoad_RejectsBadYAML(t *testing.T) {
	t.Run("broken syntax", func(t *testing.T) {
		userConfigEnv(t)
		dir := t.TempDir()
		writeProjectConfig(t, dir, "version: 1\nsimilarity:\n  structural_weight: [oops\n")

		cfg, err := Load(dir)
		require.Error(t, err)
		assert.Nil(t, cfg)
		assert.ErrorContains(t, err, "parse")
	})

	t.Run("mistyped field", func(t *testing.T) {
		userConfigEnv(t)
		dir := t.TempDir()
		writeProjectConfig(t, dir, "version: 1\nextraction:\n  context_window: \"everything\"\n")

		cfg, err := Load(dir)
		require.Error(t, err)
		assert.Nil(t, cfg)
	})
}

func TestFindProjectRoot(t *testing.T) {
	t.Run("git repository marks the root", func(t *testing.T) {
		root := t.TempDir()
		nested := filepath.Join(root, "papers", "chapter1")
		require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
		require.NoError(t, os.MkdirAll(nested, 0o755))

		got, err := FindProjectRoot(nested)
		require.NoError(t, err)
		assert.Equal(t, root, got)
	})

	t.Run("project config marks the root", func(t *testing.T) {
		root := t.TempDir()
		nested := filepath.Join(root, "papers", "chapter1")
		require.NoError(t, os.MkdirAll(nested, 0o755))
		writeProjectConfig(t, root, "version: 1")

		got, err := FindProjectRoot(nested)
		require.NoError(t, err)
		assert.Equal(t, root, got)
	})

	t.Run("no markers falls back to the start dir", func(t *testing.T) {
		dir := t.TempDir()

		got, err := FindProjectRoot(dir)
		require.NoError(t, err)
		assert.Equal(t, dir, got)
	})
}

func TestDiscoverDocumentDirs(t *testing.T) {
	dir := t.TempDir()
	for _, sub := range []string{"docs", "papers", "notes"} {
		require.NoError(t, os.Mkdir(filepath.Join(dir, sub), 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# Title"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.tex"), []byte(`\documentclass{article}`), 0o644))

	found := DiscoverDocumentDirs(dir)
	for _, want := range []string{"docs", "papers", "notes", "README.md", "main.tex"} {
		assert.Contains(t, found, want)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		env   map[string]string
		check func(t *testing.T, cfg *Config, dir string)
	}{
		{
			name:  "catalog backend beats the project file",
			yaml:  "version: 1\ncatalog:\n  backend: sqlite\n",
			env:   map[string]string{"MATHDEX_CATALOG_BACKEND": "bleve"},
			check: func(t *testing.T, cfg *Config, _ string) {
				assert.Equal(t, "bleve", cfg.Catalog.Backend)
			},
		},
		{
			name:  "log level",
			env:   map[string]string{"MATHDEX_LOG_LEVEL": "debug"},
			check: func(t *testing.T, cfg *Config, _ string) {
				assert.Equal(t, "debug", cfg.Logging.Level)
			},
		},
		{
			name:  "data dir",
			env:   map[string]string{"MATHDEX_DATA_DIR": "/tmp/mathdex-data"},
			check: func(t *testing.T, cfg *Config, dir string) {
				assert.Equal(t, "/tmp/mathdex-data", cfg.Storage.Dir)
				assert.Equal(t, "/tmp/mathdex-data", cfg.DataDir(dir))
			},
		},
		{
			name:  "rrf constant beats the project file",
			yaml:  "version: 1\ncatalog:\n  rrf_smoothing: 90\n",
			env:   map[string]string{"MATHDEX_RRF_SMOOTHING": "80"},
			check: func(t *testing.T, cfg *Config, _ string) {
				assert.Equal(t, 80, cfg.Catalog.RRFSmoothing)
			},
		},
		{
			name: "similarity weights",
			yaml: "version: 1\nsimilarity:\n  structural_weight: 0.5\n  semantic_weight: 0.2\n",
			env: map[string]string{
				"MATHDEX_STRUCTURAL_WEIGHT": "0.4",
				"MATHDEX_SEMANTIC_WEIGHT":   "0.3",
			},
			check: func(t *testing.T, cfg *Config, _ string) {
				assert.Equal(t, 0.4, cfg.Similarity.StructuralWeight)
				assert.Equal(t, 0.3, cfg.Similarity.SemanticWeight)
			},
		},
		{
			name:  "worker count",
			env:   map[string]string{"MATHDEX_WORKERS": "3"},
			check: func(t *testing.T, cfg *Config, _ string) {
				assert.Equal(t, 3, cfg.Similarity.Workers)
			},
		},
		{
			name:  "empty value keeps the default",
			env:   map[string]string{"MATHDEX_CATALOG_BACKEND": ""},
			check: func(t *testing.T, cfg *Config, _ string) {
				assert.Equal(t, "sqlite", cfg.Catalog.Backend)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			userConfigEnv(t)
			dir := t.TempDir()
			if tc.yaml != "" {
				writeProjectConfig(t, dir, tc.yaml)
			}
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			cfg, err := Load(dir)
			require.NoError(t, err)
			tc.check(t, cfg, dir)
		})
	}
}

func TestUserConfigPath(t *testing.T) {
	t.Run("falls back to ~/.config", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")

		home, err := os.UserHomeDir()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, ".config", "mathdex", "config.yaml"), UserConfigPath())
	})

	t.Run("honors XDG_CONFIG_HOME", func(t *testing.T) {
		custom := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", custom)

		assert.Equal(t, filepath.Join(custom, "mathdex", "config.yaml"), UserConfigPath())
	})

	t.Run("config dir is the file's parent", func(t *testing.T) {
		assert.Equal(t, filepath.Dir(UserConfigPath()), UserConfigDir())
	})
}

func TestHasUserConfig(t *testing.T) {
	userConfigEnv(t)
	assert.False(t, HasUserConfig(), "nothing on disk yet")

	writeUserConfig(t, "version: 1")
	assert.True(t, HasUserConfig())
}

func TestLoad_ConfigLayers(t *testing.T) {
	t.Run("user config beats defaults", func(t *testing.T) {
		userConfigEnv(t)
		writeUserConfig(t, "version: 1\ncatalog:\n  backend: bleve\n")

		cfg, err := Load(t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, "bleve", cfg.Catalog.Backend)
	})

	t.Run("project file beats user config", func(t *testing.T) {
		userConfigEnv(t)
		writeUserConfig(t, "version: 1\ncatalog:\n  backend: bleve\n  max_results: 10\n")

		project := t.TempDir()
		writeProjectConfig(t, project, "version: 1\ncatalog:\n  max_results: 40\n")

		cfg, err := Load(project)
		require.NoError(t, err)
		assert.Equal(t, 40, cfg.Catalog.MaxResults)
		// Keys the project file leaves alone keep the user's values.
		assert.Equal(t, "bleve", cfg.Catalog.Backend)
	})

	t.Run("environment beats both files", func(t *testing.T) {
		userConfigEnv(t)
		writeUserConfig(t, "version: 1\ncatalog:\n  backend: bleve\n")

		project := t.TempDir()
		writeProjectConfig(t, project, "version: 1\ncatalog:\n  backend: bleve\n")
		t.Setenv("MATHDEX_CATALOG_BACKEND", "sqlite")

		cfg, err := Load(project)
		require.NoError(t, err)
		assert.Equal(t, "sqlite", cfg.Catalog.Backend)
	})

	t.Run("broken user config stops the load", func(t *testing.T) {
		userConfigEnv(t)
		writeUserConfig(t, "version: 1\ncatalog:\n  backend: [oops\n")

		cfg, err := Load(t.TempDir())
		require.Error(t, err)
		assert.Nil(t, cfg)
		assert.ErrorContains(t, err, "user config")
	})
}
