package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete mathdex configuration.
type Config struct {
	Version        int                  `yaml:"version" json:"version"`
	Paths          PathsConfig          `yaml:"paths" json:"paths"`
	Extraction     ExtractionConfig     `yaml:"extraction" json:"extraction"`
	Classification ClassificationConfig `yaml:"classification" json:"classification"`
	Concepts       ConceptsConfig       `yaml:"concepts" json:"concepts"`
	Similarity     SimilarityConfig     `yaml:"similarity" json:"similarity"`
	Catalog        CatalogConfig        `yaml:"catalog" json:"catalog"`
	Performance    PerformanceConfig    `yaml:"performance" json:"performance"`
	Storage        StorageConfig        `yaml:"storage" json:"storage"`
	Logging        LoggingConfig        `yaml:"logging" json:"logging"`
}

// PathsConfig controls which paths the document scan covers. Include
// restricts scanning to matching paths (empty scans everything);
// Exclude appends to the built-in baseline; UseGitignore (default
// true) folds .gitignore files into the exclusion rules.
type PathsConfig struct {
	Include      []string `yaml:"include" json:"include"`
	Exclude      []string `yaml:"exclude" json:"exclude"`
	UseGitignore *bool    `yaml:"use_gitignore" json:"use_gitignore"`
}

// ExtractionConfig configures equation extraction.
type ExtractionConfig struct {
	// ContextWindow is how many characters of surrounding text are captured
	// on each side of an equation as its context.
	ContextWindow int `yaml:"context_window" json:"context_window"`

	// MaxEquationLength skips pathological matches longer than this many
	// characters (unterminated delimiters swallowing whole documents).
	MaxEquationLength int `yaml:"max_equation_length" json:"max_equation_length"`

	// Extensions lists the document extensions analyze and watch consider.
	Extensions []string `yaml:"extensions" json:"extensions"`
}

// ClassificationConfig configures equation type classification.
type ClassificationConfig struct {
	// CacheSize bounds the classification LRU cache. Zero disables caching.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// ConceptsConfig configures concept extraction.
type ConceptsConfig struct {
	// MaxNameWords caps how many words a captured concept name may have.
	// Longer captures are almost always a regex overrun into prose.
	MaxNameWords int `yaml:"max_name_words" json:"max_name_words"`
}

// SimilarityConfig configures pairwise equation similarity.
// The four weights must sum to 1.0.
type SimilarityConfig struct {
	// StructuralWeight weighs position-wise markup overlap (0.0-1.0).
	StructuralWeight float64 `yaml:"structural_weight" json:"structural_weight"`

	// SemanticWeight weighs type/operator/complexity agreement (0.0-1.0).
	SemanticWeight float64 `yaml:"semantic_weight" json:"semantic_weight"`

	// VariableWeight weighs variable set overlap (0.0-1.0).
	VariableWeight float64 `yaml:"variable_weight" json:"variable_weight"`

	// FunctionWeight weighs function set overlap (0.0-1.0).
	FunctionWeight float64 `yaml:"function_weight" json:"function_weight"`

	// Workers is the similarity matrix worker pool size.
	// Defaults to the number of CPUs.
	Workers int `yaml:"workers" json:"workers"`
}

// CatalogConfig configures the lexical equation catalog.
type CatalogConfig struct {
	// Backend selects the catalog backend.
	// Options: "sqlite" (default, FTS5, concurrent access) or "bleve"
	// (in-process BM25 with the custom LaTeX tokenizer).
	Backend string `yaml:"backend" json:"backend"`

	// MaxResults caps lookup result counts.
	MaxResults int `yaml:"max_results" json:"max_results"`

	// RRFSmoothing is the constant k in reciprocal-rank fusion, applied
	// when hybrid lookup fuses lexical and similarity rankings. Larger
	// values flatten the advantage of top-ranked hits.
	RRFSmoothing int `yaml:"rrf_smoothing" json:"rrf_smoothing"`
}

// PerformanceConfig holds tuning knobs that trade memory for speed.
type PerformanceConfig struct {
	MaxFileSizeMB  int    `yaml:"max_file_size_mb" json:"max_file_size_mb"`
	CoalesceWindow string `yaml:"coalesce_window" json:"coalesce_window"`
	SQLiteCacheMB  int    `yaml:"sqlite_cache_mb" json:"sqlite_cache_mb"`
}

// StorageConfig configures index persistence.
type StorageConfig struct {
	// Dir is the data directory. Empty means <project root>/.mathdex.
	Dir string `yaml:"dir" json:"dir"`
}

// LoggingConfig configures file logging.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

// baselineExcludes is always present in paths.exclude; user and project
// excludes append to it rather than replacing it. LaTeX build artifacts
// make up most of the list, the rest is generic tooling noise.
var baselineExcludes = []string{
	"**/.git/**",
	"**/.mathdex/**",
	"**/node_modules/**",
	"**/build/**",
	"**/_build/**",
	"**/*.aux",
	"**/*.bbl",
	"**/*.blg",
	"**/*.fdb_latexmk",
	"**/*.fls",
	"**/*.out",
	"**/*.synctex.gz",
	"**/*.toc",
	"**/_minted*/**",
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Version: 1,
		Paths:   PathsConfig{Include: []string{}, Exclude: baselineExcludes},
		Extraction: ExtractionConfig{
			ContextWindow:     240,
			MaxEquationLength: 2000,
			Extensions:        []string{".tex", ".md", ".markdown", ".txt"},
		},
		Classification: ClassificationConfig{CacheSize: 1024},
		Concepts:       ConceptsConfig{MaxNameWords: 6},
		Similarity: SimilarityConfig{
			StructuralWeight: 0.4, SemanticWeight: 0.3,
			VariableWeight: 0.2, FunctionWeight: 0.1,
			Workers: runtime.NumCPU(),
		},
		// SQLite FTS5 with WAL mode lets a watch daemon and ad-hoc lookups
		// share the catalog across processes. k=60 is the usual smoothing
		// constant for reciprocal-rank fusion.
		Catalog:     CatalogConfig{Backend: "sqlite", MaxResults: 20, RRFSmoothing: 60},
		Performance: PerformanceConfig{MaxFileSizeMB: 16, CoalesceWindow: "500ms", SQLiteCacheMB: 64},
		Storage:     StorageConfig{},
		Logging:     LoggingConfig{Level: "info"},
	}
}

// UserConfigPath returns the user-level config file location:
// $XDG_CONFIG_HOME/mathdex/config.yaml, or ~/.config/mathdex/config.yaml
// when XDG_CONFIG_HOME is unset.
func UserConfigPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		if home, err := os.UserHomeDir(); err == nil {
			base = filepath.Join(home, ".config")
		} else {
			// No resolvable home; fall back under the temp dir.
			base = filepath.Join(os.TempDir(), ".config")
		}
	}
	return filepath.Join(base, "mathdex", "config.yaml")
}

// UserConfigDir returns the directory holding the user config file.
func UserConfigDir() string {
	return filepath.Dir(UserConfigPath())
}

// HasUserConfig reports whether a user config file is on disk.
func HasUserConfig() bool {
	return isFile(UserConfigPath())
}

// UserConfig returns the user config merged over defaults, or
// (nil, nil) when no user config file exists.
func UserConfig() (*Config, error) {
	path := UserConfigPath()
	if !isFile(path) {
		return nil, nil
	}

	base := Defaults()
	if err := base.applyFile(path); err != nil {
		return nil, fmt.Errorf("user config %s: %w", path, err)
	}
	return base, nil
}

// Load assembles the effective configuration for a project directory.
// Precedence, lowest to highest: built-in defaults, the user config,
// the project file in projectDir, then MATHDEX_* environment variables.
// The merged result is validated before it is returned.
func Load(projectDir string) (*Config, error) {
	conf := Defaults()

	user, err := UserConfig()
	if err != nil {
		return nil, err
	}
	if user != nil {
		conf.merge(user)
	}

	if err := conf.loadProjectFile(projectDir); err != nil {
		return nil, err
	}
	conf.applyEnv()

	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return conf, nil
}

// loadProjectFile merges the project config from dir, if present.
// The .yaml spelling wins over .yml when both exist.
func (cfg *Config) loadProjectFile(dir string) error {
	for _, name := range []string{".mathdex.yaml", ".mathdex.yml"} {
		if path := filepath.Join(dir, name); isFile(path) {
			return cfg.applyFile(path)
		}
	}
	return nil
}

// applyFile reads path and merges its values over cfg. Parsing into a
// scratch Config first keeps a type error from half-applying the file.
func (cfg *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var incoming Config
	if err := yaml.Unmarshal(raw, &incoming); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.merge(&incoming)
	return nil
}

// overlay replaces *dst with v unless v is the zero value. A YAML zero
// is indistinguishable from an absent field, so zero never overrides;
// env variables are the only way to set a field to zero explicitly.
func overlay[T comparable](dst *T, v T) {
	var zero T
	if v != zero {
		*dst = v
	}
}

// merge folds the non-zero fields of other over cfg. Exclude patterns
// append so the baseline list survives; include paths and extensions
// replace wholesale.
func (cfg *Config) merge(other *Config) {
	overlay(&cfg.Version, other.Version)

	if v := other.Paths.Include; len(v) > 0 {
		cfg.Paths.Include = v
	}
	if extra := other.Paths.Exclude; len(extra) > 0 {
		cfg.Paths.Exclude = append(cfg.Paths.Exclude, extra...)
	}
	if v := other.Paths.UseGitignore; v != nil {
		cfg.Paths.UseGitignore = v
	}

	overlay(&cfg.Extraction.ContextWindow, other.Extraction.ContextWindow)
	overlay(&cfg.Extraction.MaxEquationLength, other.Extraction.MaxEquationLength)
	if v := other.Extraction.Extensions; len(v) > 0 {
		cfg.Extraction.Extensions = v
	}

	overlay(&cfg.Classification.CacheSize, other.Classification.CacheSize)
	overlay(&cfg.Concepts.MaxNameWords, other.Concepts.MaxNameWords)

	overlay(&cfg.Similarity.StructuralWeight, other.Similarity.StructuralWeight)
	overlay(&cfg.Similarity.SemanticWeight, other.Similarity.SemanticWeight)
	overlay(&cfg.Similarity.VariableWeight, other.Similarity.VariableWeight)
	overlay(&cfg.Similarity.FunctionWeight, other.Similarity.FunctionWeight)
	overlay(&cfg.Similarity.Workers, other.Similarity.Workers)

	overlay(&cfg.Catalog.Backend, other.Catalog.Backend)
	overlay(&cfg.Catalog.MaxResults, other.Catalog.MaxResults)
	overlay(&cfg.Catalog.RRFSmoothing, other.Catalog.RRFSmoothing)

	overlay(&cfg.Performance.MaxFileSizeMB, other.Performance.MaxFileSizeMB)
	overlay(&cfg.Performance.CoalesceWindow, other.Performance.CoalesceWindow)
	overlay(&cfg.Performance.SQLiteCacheMB, other.Performance.SQLiteCacheMB)

	overlay(&cfg.Storage.Dir, other.Storage.Dir)
	overlay(&cfg.Logging.Level, other.Logging.Level)
}

// applyEnv applies MATHDEX_* variables over the file layers.
// Malformed or out-of-range values are ignored, never fatal.
func (cfg *Config) applyEnv() {
	overrides := []struct {
		env   string
		apply func(string)
	}{
		{"MATHDEX_STRUCTURAL_WEIGHT", func(v string) { setWeight(&cfg.Similarity.StructuralWeight, v) }},
		{"MATHDEX_SEMANTIC_WEIGHT", func(v string) { setWeight(&cfg.Similarity.SemanticWeight, v) }},
		{"MATHDEX_VARIABLE_WEIGHT", func(v string) { setWeight(&cfg.Similarity.VariableWeight, v) }},
		{"MATHDEX_FUNCTION_WEIGHT", func(v string) { setWeight(&cfg.Similarity.FunctionWeight, v) }},
		{"MATHDEX_WORKERS", func(v string) { setPositiveInt(&cfg.Similarity.Workers, v) }},
		{"MATHDEX_CATALOG_BACKEND", func(v string) { cfg.Catalog.Backend = v }},
		{"MATHDEX_RRF_SMOOTHING", func(v string) { setPositiveInt(&cfg.Catalog.RRFSmoothing, v) }},
		{"MATHDEX_DATA_DIR", func(v string) { cfg.Storage.Dir = v }},
		{"MATHDEX_LOG_LEVEL", func(v string) { cfg.Logging.Level = v }},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			o.apply(v)
		}
	}
}

// setWeight parses v as a weight in [0, 1]. Unlike the file layers an
// explicit zero is accepted here. Anything unparseable leaves dst alone.
func setWeight(dst *float64, v string) {
	w, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err == nil && w >= 0 && w <= 1 {
		*dst = w
	}
}

// setPositiveInt parses v as a positive integer; anything else leaves
// dst alone.
func setPositiveInt(dst *int, v string) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err == nil && n > 0 {
		*dst = n
	}
}

// FindProjectRoot walks from startDir toward the filesystem root and
// returns the first directory holding a .git directory or a project
// config file. With no marker anywhere it returns the absolute
// startDir, treating it as a single-directory project.
func FindProjectRoot(from string) (string, error) {
	start, err := filepath.Abs(from)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", from, err)
	}

	dir := start
	for {
		if isDir(filepath.Join(dir, ".git")) ||
			isFile(filepath.Join(dir, ".mathdex.yaml")) ||
			isFile(filepath.Join(dir, ".mathdex.yml")) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return start, nil
		}
		dir = parent
	}
}

// DataDir resolves the data directory for a project root.
// An explicit storage.dir wins; otherwise <root>/.mathdex.
func (cfg *Config) DataDir(root string) string {
	if cfg.Storage.Dir != "" {
		return cfg.Storage.Dir
	}
	return filepath.Join(root, ".mathdex")
}

// DiscoverDocumentDirs lists conventional document locations that exist
// under dir, directories before files. init uses it to seed
// paths.include with something better than an empty list.
func DiscoverDocumentDirs(dir string) []string {
	var out []string
	for _, name := range []string{"docs", "doc", "papers", "notes", "manuscript"} {
		if isDir(filepath.Join(dir, name)) {
			out = append(out, name)
		}
	}
	for _, name := range []string{"README.md", "readme.md", "main.tex", "paper.tex"} {
		if isFile(filepath.Join(dir, name)) {
			out = append(out, name)
		}
	}
	return out
}

// isFile reports whether path is an existing regular file.
func isFile(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

// isDir reports whether path is an existing directory.
func isDir(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.IsDir()
}

// Validate rejects configurations the analysis pipeline or catalog
// cannot run with.
func (cfg *Config) Validate() error {
	weights := map[string]float64{
		"structural_weight": cfg.Similarity.StructuralWeight,
		"semantic_weight":   cfg.Similarity.SemanticWeight,
		"variable_weight":   cfg.Similarity.VariableWeight,
		"function_weight":   cfg.Similarity.FunctionWeight,
	}
	sum := 0.0
	for name, w := range weights {
		if w < 0 || w > 1 {
			return fmt.Errorf("similarity.%s must be between 0 and 1, got %v", name, w)
		}
		sum += w
	}
	// Only float rounding noise is tolerated in the sum.
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("similarity weights must sum to 1.0, got %v", sum)
	}

	if cfg.Similarity.Workers < 0 {
		return fmt.Errorf("similarity.workers must be non-negative, got %d", cfg.Similarity.Workers)
	}

	switch strings.ToLower(cfg.Catalog.Backend) {
	case "sqlite", "bleve":
	default:
		return fmt.Errorf("catalog.backend must be 'sqlite' or 'bleve', got %s", cfg.Catalog.Backend)
	}
	if cfg.Catalog.MaxResults < 0 {
		return fmt.Errorf("catalog.max_results must be non-negative, got %d", cfg.Catalog.MaxResults)
	}
	if cfg.Catalog.RRFSmoothing <= 0 {
		return fmt.Errorf("catalog.rrf_smoothing must be positive, got %d", cfg.Catalog.RRFSmoothing)
	}

	if cfg.Extraction.ContextWindow < 0 {
		return fmt.Errorf("extraction.context_window must be non-negative, got %d", cfg.Extraction.ContextWindow)
	}
	if cfg.Extraction.MaxEquationLength < 0 {
		return fmt.Errorf("extraction.max_equation_length must be non-negative, got %d", cfg.Extraction.MaxEquationLength)
	}
	if cfg.Classification.CacheSize < 0 {
		return fmt.Errorf("classification.cache_size must be non-negative, got %d", cfg.Classification.CacheSize)
	}

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", cfg.Logging.Level)
	}

	return nil
}

// WriteYAML renders cfg and writes it to path.
func (cfg *Config) WriteYAML(path string) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// MergeNewDefaults fills fields that postdate the config file on disk,
// leaving everything the user set untouched. It returns the dotted keys
// that were filled, for the upgrade summary.
func (cfg *Config) MergeNewDefaults() []string {
	fresh := Defaults()

	var filled []string
	fill := func(key string, dst *int, def int) {
		if *dst == 0 {
			*dst = def
			filled = append(filled, key)
		}
	}

	fill("extraction.context_window", &cfg.Extraction.ContextWindow, fresh.Extraction.ContextWindow)
	fill("classification.cache_size", &cfg.Classification.CacheSize, fresh.Classification.CacheSize)
	fill("similarity.workers", &cfg.Similarity.Workers, fresh.Similarity.Workers)
	fill("catalog.rrf_smoothing", &cfg.Catalog.RRFSmoothing, fresh.Catalog.RRFSmoothing)
	fill("performance.sqlite_cache_mb", &cfg.Performance.SQLiteCacheMB, fresh.Performance.SQLiteCacheMB)

	return filled
}
