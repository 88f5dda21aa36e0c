// Package config loads runtime configuration for an agent process from YAML,
// with secrets supplied through the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the full runtime configuration.
type Config struct {
	SystemPrompt  string              `yaml:"system_prompt"`
	Backends      []BackendConfig     `yaml:"backends"`
	Retry         RetryConfig         `yaml:"retry"`
	Memory        MemoryConfig        `yaml:"memory"`
	Checkpoint    CheckpointConfig    `yaml:"checkpoint"`
	Runner        RunnerConfig        `yaml:"runner"`
	KnowledgeBase KnowledgeBaseConfig `yaml:"knowledge_base"`
	LogLevel      string              `yaml:"log_level"`
}

// BackendConfig describes one model backend in fallback order.
type BackendConfig struct {
	Name            string  `yaml:"name"`
	Provider        string  `yaml:"provider"`
	Model           string  `yaml:"model"`
	MaxTokens       int64   `yaml:"max_tokens"`
	Temperature     float64 `yaml:"temperature"`
	ReasoningEffort string  `yaml:"reasoning_effort"`
	Default         bool    `yaml:"default"`
}

// RetryConfig tunes the dispatcher's retry behavior.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// MemoryConfig tunes both memory tiers.
type MemoryConfig struct {
	TokenBudget    int    `yaml:"token_budget"`
	Encoding       string `yaml:"encoding"`
	TopK           int    `yaml:"top_k"`
	StorePath      string `yaml:"store_path"`
	EmbeddingModel string `yaml:"embedding_model"`
	UpdateWorkers  int    `yaml:"update_workers"`
	UpdateQueue    int    `yaml:"update_queue"`
}

// CheckpointConfig locates the checkpoint store.
type CheckpointConfig struct {
	Path string `yaml:"path"`
}

// RunnerConfig tunes turn execution.
type RunnerConfig struct {
	MaxConcurrentTurns int           `yaml:"max_concurrent_turns"`
	AcquireTimeout     time.Duration `yaml:"acquire_timeout"`
}

// KnowledgeBaseConfig points at an external retrieval service. API keys come
// from the environment, not the file.
type KnowledgeBaseConfig struct {
	BaseURL string `yaml:"base_url"`
	ChatID  string `yaml:"chat_id"`
}

// Default returns a configuration usable without a config file.
func Default() Config {
	return Config{
		SystemPrompt: "You are a helpful assistant.",
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
			MaxDelay:    8 * time.Second,
		},
		Memory: MemoryConfig{
			TokenBudget:    8000,
			Encoding:       "cl100k_base",
			TopK:           5,
			EmbeddingModel: "text-embedding-3-small",
			UpdateWorkers:  2,
			UpdateQueue:    64,
		},
		Checkpoint: CheckpointConfig{Path: "checkpoints.db"},
		Runner: RunnerConfig{
			MaxConcurrentTurns: 32,
			AcquireTimeout:     10 * time.Second,
		},
		LogLevel: "info",
	}
}

// Load reads the YAML file at path over the defaults and validates the
// result. A .env file next to the process, when present, is loaded into the
// environment first.
func Load(path string) (Config, error) {
	godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks invariants the rest of the system assumes.
func (c Config) Validate() error {
	if len(c.Backends) == 0 {
		return fmt.Errorf("config: at least one backend is required")
	}
	seen := make(map[string]struct{}, len(c.Backends))
	defaults := 0
	for _, b := range c.Backends {
		if b.Name == "" {
			return fmt.Errorf("config: backend name must not be empty")
		}
		if _, dup := seen[b.Name]; dup {
			return fmt.Errorf("config: duplicate backend name %q", b.Name)
		}
		seen[b.Name] = struct{}{}
		switch b.Provider {
		case "openai", "anthropic", "mock":
		default:
			return fmt.Errorf("config: backend %q has unknown provider %q", b.Name, b.Provider)
		}
		if b.Default {
			defaults++
		}
	}
	if defaults > 1 {
		return fmt.Errorf("config: at most one backend may be marked default")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("config: retry.max_attempts must be at least 1")
	}
	if c.Memory.TokenBudget < 1 {
		return fmt.Errorf("config: memory.token_budget must be positive")
	}
	if c.Memory.TopK < 1 {
		return fmt.Errorf("config: memory.top_k must be positive")
	}
	return nil
}

// DefaultBackend returns the name of the backend marked default, or the
// first backend when none is marked.
func (c Config) DefaultBackend() string {
	for _, b := range c.Backends {
		if b.Default {
			return b.Name
		}
	}
	if len(c.Backends) > 0 {
		return c.Backends[0].Name
	}
	return ""
}
