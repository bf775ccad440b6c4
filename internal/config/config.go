// Package config holds all clai configuration: model provider, embedding
// backend, file index policy, context budgets, and process registry limits.
// Configuration is loaded from a YAML file with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for clai.
type Config struct {
	// Model provider for chat turns.
	Model ModelConfig `yaml:"model"`

	// Embedding backend for the file index.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// File index policy.
	Index IndexConfig `yaml:"index"`

	// Context composition budgets.
	Context ContextConfig `yaml:"context"`

	// Process registry limits.
	Process ProcessConfig `yaml:"process"`

	// Logging.
	Logging LoggingConfig `yaml:"logging"`
}

// ModelConfig configures the chat model provider.
type ModelConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`
}

// EmbeddingConfig configures the embedding backend.
type EmbeddingConfig struct {
	// Provider: "ollama" or "genai"
	Provider string `yaml:"provider"`

	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`

	GenAIAPIKey string `yaml:"genai_api_key"`
	GenAIModel  string `yaml:"genai_model"`
}

// IndexConfig configures the file index and scanner exclusion policy.
type IndexConfig struct {
	// DatabasePath is the SQLite file backing the index. Empty means
	// in-memory only.
	DatabasePath string `yaml:"database_path"`

	// MaxFileBytes is the scanner size ceiling; larger files are skipped.
	MaxFileBytes int64 `yaml:"max_file_bytes"`

	// SkipBinary skips files that look binary (NUL byte in the first KiB).
	SkipBinary bool `yaml:"skip_binary"`

	// SkipDirs are directory names pruned during Scan.
	SkipDirs []string `yaml:"skip_dirs"`

	// MaxTracked caps index size; least-recently-queried non-sticky entries
	// are evicted beyond this.
	MaxTracked int `yaml:"max_tracked"`

	// ScanWorkers bounds embedding parallelism during Scan.
	ScanWorkers int `yaml:"scan_workers"`

	// StickyPath, when set, persists pinned files as JSON across sessions.
	StickyPath string `yaml:"sticky_path"`

	// WatchDebounce is how long to coalesce rapid file events, e.g. "500ms".
	WatchDebounce string `yaml:"watch_debounce"`
}

// ContextConfig configures prompt assembly budgets.
type ContextConfig struct {
	// TotalBudgetBytes is the hard cap on assembled context size.
	TotalBudgetBytes int `yaml:"total_budget_bytes"`

	// PerFileBytes truncates each retrieved (non-sticky) file block.
	PerFileBytes int `yaml:"per_file_bytes"`

	// TopK is how many retrieved files to request from the index.
	TopK int `yaml:"top_k"`

	// HistoryTurns is the recency window of conversation turns.
	HistoryTurns int `yaml:"history_turns"`
}

// ProcessConfig configures the process registry.
type ProcessConfig struct {
	// Retention keeps terminal process handles readable, e.g. "2m".
	Retention string `yaml:"retention"`

	// MaxOutputLines caps each process's captured output ring buffer.
	MaxOutputLines int `yaml:"max_output_lines"`

	// KillGrace is the SIGTERM-to-SIGKILL grace period, e.g. "3s".
	KillGrace string `yaml:"kill_grace"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Verbose bool   `yaml:"verbose"`
	File    string `yaml:"file"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Model:   "gemini-2.0-flash",
			Timeout: "120s",
		},
		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			GenAIModel:     "gemini-embedding-001",
		},
		Index: IndexConfig{
			MaxFileBytes: 256 * 1024,
			SkipBinary:   true,
			SkipDirs: []string{
				".git", "node_modules", "vendor", "venv", ".venv",
				"__pycache__", "build", "dist", "target",
			},
			MaxTracked:    2000,
			ScanWorkers:   4,
			WatchDebounce: "500ms",
		},
		Context: ContextConfig{
			TotalBudgetBytes: 96 * 1024,
			PerFileBytes:     8 * 1024,
			TopK:             5,
			HistoryTurns:     20,
		},
		Process: ProcessConfig{
			Retention:      "2m",
			MaxOutputLines: 200,
			KillGrace:      "3s",
		},
		Logging: LoggingConfig{},
	}
}

// DefaultPath returns the default config file location (~/.clai.yaml).
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".clai.yaml"
	}
	return filepath.Join(home, ".clai.yaml")
}

// Load reads configuration from a YAML file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Model.APIKey = key
		if c.Embedding.GenAIAPIKey == "" {
			c.Embedding.GenAIAPIKey = key
		}
	}
	if key := os.Getenv("CLAI_API_KEY"); key != "" {
		c.Model.APIKey = key
		c.Embedding.GenAIAPIKey = key
	}
	if v := os.Getenv("CLAI_MODEL"); v != "" {
		c.Model.Model = v
	}
	if v := os.Getenv("CLAI_EMBEDDING_PROVIDER"); v != "" {
		c.Embedding.Provider = v
	}
	if v := os.Getenv("CLAI_OLLAMA_ENDPOINT"); v != "" {
		c.Embedding.OllamaEndpoint = v
	}
	if v := os.Getenv("CLAI_DB"); v != "" {
		c.Index.DatabasePath = v
	}
}

// ModelTimeout returns the chat call timeout as a duration.
func (c *Config) ModelTimeout() time.Duration {
	d, err := time.ParseDuration(c.Model.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// ProcessRetention returns how long terminal process handles are kept.
func (c *Config) ProcessRetention() time.Duration {
	d, err := time.ParseDuration(c.Process.Retention)
	if err != nil {
		return 2 * time.Minute
	}
	return d
}

// KillGrace returns the SIGTERM-to-SIGKILL grace period.
func (c *Config) KillGrace() time.Duration {
	d, err := time.ParseDuration(c.Process.KillGrace)
	if err != nil {
		return 3 * time.Second
	}
	return d
}

// WatchDebounce returns the file watcher debounce window.
func (c *Config) WatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Index.WatchDebounce)
	if err != nil {
		return 500 * time.Millisecond
	}
	return d
}
