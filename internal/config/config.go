// Package config loads the notesearch configuration: built-in defaults,
// then an optional .notesearch.yaml in the vault, then environment
// overrides, highest precedence last.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config file names tried in order inside the vault root.
var configFileNames = []string{".notesearch.yaml", ".notesearch.yml"}

// Config is the complete notesearch configuration.
type Config struct {
	Vault      VaultConfig      `yaml:"vault"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Proximity  ProximityConfig  `yaml:"proximity"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// VaultConfig locates the note collection and the index state.
type VaultConfig struct {
	// Root is the vault directory. Defaults to the working directory.
	Root string `yaml:"root"`

	// StateDir holds index state. Defaults to <root>/.notesearch.
	StateDir string `yaml:"state_dir"`

	// ExcludeFolders are vault-relative folder prefixes to skip.
	ExcludeFolders []string `yaml:"exclude_folders"`
}

// ChunkingConfig tunes document splitting.
type ChunkingConfig struct {
	// Strategy is one of "section", "paragraph", or "fixed".
	Strategy string `yaml:"strategy"`

	// MaxTokens is the per-chunk token budget.
	MaxTokens int `yaml:"max_tokens"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`

	// BaseURL points at an OpenAI-compatible endpoint when set.
	BaseURL string `yaml:"base_url"`

	// APIKey is normally supplied via NOTESEARCH_API_KEY instead.
	APIKey string `yaml:"api_key"`

	Dimensions int `yaml:"dimensions"`

	// IdleDelay is the quiet period before background embedding runs.
	IdleDelay time.Duration `yaml:"idle_delay"`
}

// ProximityConfig tunes anchor-relative result boosting.
type ProximityConfig struct {
	Enabled     bool    `yaml:"enabled"`
	BoostFactor float64 `yaml:"boost_factor"`
}

// LoggingConfig configures slog output.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `yaml:"level"`

	// File receives logs instead of stderr when set.
	File string `yaml:"file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Chunking: ChunkingConfig{
			Strategy:  "section",
			MaxTokens: 512,
		},
		Embeddings: EmbeddingsConfig{
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
			IdleDelay:  30 * time.Second,
		},
		Proximity: ProximityConfig{
			Enabled:     true,
			BoostFactor: 0.5,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration for a vault directory.
func Load(dir string) (*Config, error) {
	cfg := Default()
	cfg.Vault.Root = dir

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()
	cfg.applyDerivedDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFromFile(dir string) error {
	for _, name := range configFileNames {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
		return nil
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("NOTESEARCH_API_KEY"); v != "" {
		c.Embeddings.APIKey = v
	}
	if v := os.Getenv("NOTESEARCH_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("NOTESEARCH_EMBEDDINGS_BASE_URL"); v != "" {
		c.Embeddings.BaseURL = v
	}
	if v := os.Getenv("NOTESEARCH_EMBEDDINGS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Embeddings.Enabled = b
		}
	}
	if v := os.Getenv("NOTESEARCH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("NOTESEARCH_STATE_DIR"); v != "" {
		c.Vault.StateDir = v
	}
}

func (c *Config) applyDerivedDefaults() {
	if c.Vault.Root == "" {
		c.Vault.Root = "."
	}
	if c.Vault.StateDir == "" {
		c.Vault.StateDir = filepath.Join(c.Vault.Root, ".notesearch")
	}
}

// Validate rejects values the rest of the system cannot work with.
func (c *Config) Validate() error {
	switch c.Chunking.Strategy {
	case "section", "paragraph", "fixed":
	default:
		return fmt.Errorf("unknown chunking strategy %q", c.Chunking.Strategy)
	}
	if c.Chunking.MaxTokens <= 0 {
		return fmt.Errorf("chunking max_tokens must be positive, got %d", c.Chunking.MaxTokens)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	if c.Proximity.BoostFactor < 0 {
		return fmt.Errorf("proximity boost_factor must not be negative, got %g", c.Proximity.BoostFactor)
	}
	if c.Embeddings.Enabled && c.Embeddings.APIKey == "" {
		return fmt.Errorf("embeddings enabled but no API key configured (set NOTESEARCH_API_KEY)")
	}
	return nil
}
