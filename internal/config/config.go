package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all relogic configuration.
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Decompose DecomposeConfig `yaml:"decompose"`
	Prompts   PromptsConfig   `yaml:"prompts"`
	Store     StoreConfig     `yaml:"store"`
	Contract  ContractConfig  `yaml:"contract"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LLMConfig selects and tunes the oracle transport.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // openai, vllm, ollama, gemini
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Timeout     string  `yaml:"timeout"`
	Temperature float64 `yaml:"temperature"`
	MaxRetries  int     `yaml:"max_retries"`
}

// DecomposeConfig tunes the decomposition engine.
type DecomposeConfig struct {
	MaxDepth int  `yaml:"max_depth"`
	Rephrase bool `yaml:"rephrase"` // run the rewrite oracle before decomposing
}

// PromptsConfig points at a directory of <template>.txt overrides.
type PromptsConfig struct {
	Dir string `yaml:"dir"`
}

// StoreConfig configures the SQLite trace and document store.
type StoreConfig struct {
	Enabled      bool   `yaml:"enabled"`
	DatabasePath string `yaml:"database_path"`
}

// ContractConfig configures contract extraction and batch compilation.
type ContractConfig struct {
	OutputDir       string `yaml:"output_dir"`
	Concurrency     int    `yaml:"concurrency"`
	ExtractionModel string `yaml:"extraction_model"` // model used for prose-to-contract extraction; empty = llm.model
}

// DefaultMaxDepth bounds recursive decomposition.
const DefaultMaxDepth = 32

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Timeout:     "60s",
			Temperature: 0,
			MaxRetries:  3,
		},
		Decompose: DecomposeConfig{
			MaxDepth: DefaultMaxDepth,
			Rephrase: true,
		},
		Store: StoreConfig{
			Enabled:      true,
			DatabasePath: filepath.Join(".relogic", "relogic.db"),
		},
		Contract: ContractConfig{
			OutputDir:   "Extracted",
			Concurrency: 4,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultConfigPath returns <workspace>/.relogic/config.yaml.
func DefaultConfigPath(workspace string) string {
	return filepath.Join(workspace, ".relogic", "config.yaml")
}

// Load loads configuration from a YAML file. A missing file yields the defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides. Keys and endpoints
// only apply to the provider they belong to.
func (c *Config) applyEnvOverrides() {
	switch c.LLM.Provider {
	case "openai":
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			c.LLM.APIKey = key
		}
	case "gemini":
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			c.LLM.APIKey = key
		}
	case "ollama":
		if host := os.Getenv("OLLAMA_HOST"); host != "" {
			c.LLM.BaseURL = host
		}
	case "vllm":
		if url := os.Getenv("VLLM_BASE_URL"); url != "" {
			c.LLM.BaseURL = url
		}
	}

	if model := os.Getenv("RELOGIC_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if path := os.Getenv("RELOGIC_DB"); path != "" {
		c.Store.DatabasePath = path
	}
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// GetMaxDepth returns the decomposition depth ceiling.
func (c *Config) GetMaxDepth() int {
	if c.Decompose.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return c.Decompose.MaxDepth
}

// GetConcurrency returns the contract batch worker count.
func (c *Config) GetConcurrency() int {
	if c.Contract.Concurrency <= 0 {
		return 1
	}
	return c.Contract.Concurrency
}

// ResolvePath makes p absolute relative to workspace. Absolute paths are kept.
func ResolvePath(workspace, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(workspace, p)
}

// ValidProviders lists all supported LLM providers.
var ValidProviders = []string{"openai", "vllm", "ollama", "gemini"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validProvider := false
	for _, p := range ValidProviders {
		if c.LLM.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.LLM.Provider, ValidProviders)
	}

	if c.LLM.APIKey == "" && (c.LLM.Provider == "openai" || c.LLM.Provider == "gemini") {
		return fmt.Errorf("LLM API key not configured for %s (set llm.api_key, OPENAI_API_KEY or GEMINI_API_KEY)", c.LLM.Provider)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be within [0, 2], got %v", c.LLM.Temperature)
	}
	if c.LLM.Timeout != "" {
		if _, err := time.ParseDuration(c.LLM.Timeout); err != nil {
			return fmt.Errorf("invalid llm.timeout %q: %w", c.LLM.Timeout, err)
		}
	}
	if c.Decompose.MaxDepth < 0 {
		return fmt.Errorf("decompose.max_depth must not be negative")
	}
	if c.Contract.Concurrency < 0 {
		return fmt.Errorf("contract.concurrency must not be negative")
	}
	return nil
}

// FindWorkspaceRoot walks up from the working directory looking for a .relogic
// directory, then a go.mod. Falls back to the working directory.
func FindWorkspaceRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	originalDir := dir
	for {
		if _, err := os.Stat(filepath.Join(dir, ".relogic")); err == nil {
			return dir, nil
		}
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return originalDir, nil
}
