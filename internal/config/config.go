package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// configDir is the configuration directory path
	// Can be set via SetConfigDir before loading config
	configDir     string
	configDirInit bool
)

// SetConfigDir sets a custom configuration directory
// Must be called before any config loading functions
func SetConfigDir(dir string) {
	configDir = dir
	configDirInit = true
}

// GetConfigDir returns the configuration directory
// Priority: 1. Manually set via SetConfigDir, 2. ./config in current directory
func GetConfigDir() string {
	if !configDirInit {
		cwd, err := os.Getwd()
		if err == nil {
			configDir = filepath.Join(cwd, "config")
		}
		configDirInit = true
	}
	return configDir
}

// Config application configuration structure
type Config struct {
	LLM                 LLMConfig         `yaml:"llm"`
	Embedding           EmbeddingConfig   `yaml:"embedding"`
	Store               StoreConfig       `yaml:"store"`
	MarkdownDirectories []string          `yaml:"markdown_directories"`
	Processing          ProcessingOptions `yaml:"processing_options"`
	Chat                ChatOptions       `yaml:"chat_options"`
	Logging             LoggingConfig     `yaml:"logging"`
}

// LLMConfig completion model configuration
type LLMConfig struct {
	Provider       string  `yaml:"provider"` // ollama | openai
	BaseURL        string  `yaml:"base_url"`
	Model          string  `yaml:"model"`
	APIKey         string  `yaml:"api_key"`
	Temperature    float64 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// EmbeddingConfig embedding model configuration used by the fact store
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // ollama | openai | hash
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	APIKey         string `yaml:"api_key"`
	Dimension      int    `yaml:"dimension"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
}

// StoreConfig fact store configuration
type StoreConfig struct {
	DBPath            string  `yaml:"db_path"`
	DedupSimilarity   float64 `yaml:"dedup_similarity"`
	MinSimilarity     float64 `yaml:"min_similarity"`
	MaxRetries        int     `yaml:"max_retries"`
	RetryDelaySeconds float64 `yaml:"retry_delay_seconds"`
}

// ProcessingOptions markdown ingestion options
type ProcessingOptions struct {
	Recursive           bool     `yaml:"recursive"`
	FileExtensions      []string `yaml:"file_extensions"`
	ExcludePatterns     []string `yaml:"exclude_patterns"`
	BatchSize           int      `yaml:"batch_size"`
	DelayBetweenBatches float64  `yaml:"delay_between_batches"`
	EntryDelay          float64  `yaml:"entry_delay"`
	MinEntryLength      int      `yaml:"min_entry_length"`
	UserID              string   `yaml:"user_id"`
}

// ChatOptions retrieval chat options
type ChatOptions struct {
	MaxContextMemories int `yaml:"max_context_memories"`
}

// LoggingConfig logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level"`
	Dir     string `yaml:"dir"`
	MaxDays int    `yaml:"max_days"`
	Console bool   `yaml:"console"`
	Format  string `yaml:"format"` // text | json
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		LLM: LLMConfig{
			Provider:       "ollama",
			BaseURL:        "http://localhost:11434",
			Model:          "llama3.1:latest",
			Temperature:    0.7,
			MaxTokens:      2000,
			TimeoutSeconds: 60,
		},
		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			BaseURL:        "http://localhost:11434",
			Model:          "nomic-embed-text:latest",
			Dimension:      768,
			TimeoutSeconds: 30,
			MaxRetries:     2,
		},
		Store: StoreConfig{
			DBPath:            filepath.Join(homeDir, ".lifelog", "facts.db"),
			DedupSimilarity:   0.95,
			MinSimilarity:     0,
			MaxRetries:        3,
			RetryDelaySeconds: 2,
		},
		MarkdownDirectories: []string{"./markdown"},
		Processing: ProcessingOptions{
			Recursive:           true,
			FileExtensions:      []string{".md", ".markdown"},
			BatchSize:           10,
			DelayBetweenBatches: 1.0,
			EntryDelay:          0.5,
			MinEntryLength:      10,
			UserID:              "default",
		},
		Chat: ChatOptions{
			MaxContextMemories: 5,
		},
		Logging: LoggingConfig{
			Level:   "info",
			MaxDays: 7,
			Format:  "text",
		},
	}
}

// ConfigDir returns the configuration directory path
func ConfigDir() (string, error) {
	dir := GetConfigDir()
	if dir == "" {
		return "", fmt.Errorf("failed to determine config directory")
	}
	return dir, nil
}

// LogDir returns the log directory path
func (c *Config) LogDir() string {
	if c.Logging.Dir != "" {
		return c.Logging.Dir
	}
	dir := GetConfigDir()
	if dir == "" {
		return "logs"
	}
	return filepath.Join(dir, "logs")
}

// ConfigPath returns the configuration file path
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load loads configuration from file and merges with secrets.
// A missing file is created with defaults.
func Load() (*Config, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.mergeSecrets()

		if err := Save(cfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.mergeSecrets()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Parse decodes YAML over the defaults without validating
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// mergeSecrets fills empty API keys from the .secrets file
func (c *Config) mergeSecrets() {
	secrets, _ := LoadSecrets()
	if secrets == nil {
		return
	}
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = secrets.GetLLMAPIKey()
	}
	if c.Embedding.APIKey == "" {
		c.Embedding.APIKey = secrets.GetEmbeddingAPIKey()
	}
}

// Save saves configuration to file
func Save(cfg *Config) error {
	configPath, err := ConfigPath()
	if err != nil {
		return err
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	content := "# Lifelog Configuration File\n# API keys can also be placed in .secrets next to this file\n\n" + string(data)

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch strings.ToLower(c.LLM.Provider) {
	case "ollama", "openai":
	default:
		return fmt.Errorf("config error: llm.provider must be ollama or openai, got %q", c.LLM.Provider)
	}
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("config error: llm.base_url cannot be empty")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("config error: llm.model cannot be empty")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("config error: llm.temperature must be between 0 and 2")
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("config error: llm.max_tokens must be greater than 0")
	}
	if c.LLM.TimeoutSeconds <= 0 {
		return fmt.Errorf("config error: llm.timeout_seconds must be greater than 0")
	}

	switch strings.ToLower(c.Embedding.Provider) {
	case "ollama", "openai":
		if c.Embedding.BaseURL == "" {
			return fmt.Errorf("config error: embedding.base_url cannot be empty")
		}
		if c.Embedding.Model == "" {
			return fmt.Errorf("config error: embedding.model cannot be empty")
		}
	case "hash":
	default:
		return fmt.Errorf("config error: embedding.provider must be ollama, openai or hash, got %q", c.Embedding.Provider)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("config error: embedding.dimension must be greater than 0")
	}

	if c.Store.DBPath == "" {
		return fmt.Errorf("config error: store.db_path cannot be empty")
	}
	if c.Store.DedupSimilarity < 0 || c.Store.DedupSimilarity > 1 {
		return fmt.Errorf("config error: store.dedup_similarity must be between 0 and 1")
	}
	if c.Store.MaxRetries <= 0 {
		return fmt.Errorf("config error: store.max_retries must be greater than 0")
	}
	if c.Store.RetryDelaySeconds < 0 {
		return fmt.Errorf("config error: store.retry_delay_seconds cannot be negative")
	}

	if len(c.Processing.FileExtensions) == 0 {
		return fmt.Errorf("config error: processing_options.file_extensions cannot be empty")
	}
	if c.Processing.BatchSize <= 0 {
		return fmt.Errorf("config error: processing_options.batch_size must be greater than 0")
	}
	if c.Processing.DelayBetweenBatches < 0 || c.Processing.EntryDelay < 0 {
		return fmt.Errorf("config error: processing_options delays cannot be negative")
	}
	if strings.TrimSpace(c.Processing.UserID) == "" {
		return fmt.Errorf("config error: processing_options.user_id cannot be empty")
	}

	if c.Chat.MaxContextMemories <= 0 {
		return fmt.Errorf("config error: chat_options.max_context_memories must be greater than 0")
	}

	return nil
}

// IsAPIKeyConfigured reports whether the completion provider has what it
// needs to authenticate. Ollama runs without a key.
func (c *Config) IsAPIKeyConfigured() bool {
	if strings.EqualFold(c.LLM.Provider, "ollama") {
		return true
	}
	return c.LLM.APIKey != ""
}

// RetryDelay returns the store retry delay as a duration
func (c *Config) RetryDelay() time.Duration {
	return seconds(c.Store.RetryDelaySeconds)
}

// BatchDelay returns the directory batch delay as a duration
func (c *Config) BatchDelay() time.Duration {
	return seconds(c.Processing.DelayBetweenBatches)
}

// EntryDelay returns the per-entry delay as a duration
func (c *Config) EntryDelay() time.Duration {
	return seconds(c.Processing.EntryDelay)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// String returns string representation of config (hides sensitive info)
func (c *Config) String() string {
	return fmt.Sprintf(`Lifelog Configuration:
  LLM:
    Provider: %s
    Base URL: %s
    Model: %s
    API Key: %s
    Temperature: %.1f
    Max Tokens: %d
    Timeout Seconds: %d
  Embedding:
    Provider: %s
    Base URL: %s
    Model: %s
    API Key: %s
    Dimension: %d
  Store:
    DB Path: %s
    Dedup Similarity: %.2f
    Max Retries: %d
    Retry Delay: %.1fs
  Markdown Directories: %s
  Processing:
    Recursive: %v
    File Extensions: %s
    Exclude Patterns: %s
    Batch Size: %d
    Delay Between Batches: %.1fs
    Entry Delay: %.1fs
    User ID: %s
  Chat:
    Max Context Memories: %d
  Logging:
    Level: %s
    Dir: %s`,
		c.LLM.Provider,
		c.LLM.BaseURL,
		c.LLM.Model,
		redactAPIKey(c.LLM.APIKey),
		c.LLM.Temperature,
		c.LLM.MaxTokens,
		c.LLM.TimeoutSeconds,
		c.Embedding.Provider,
		c.Embedding.BaseURL,
		c.Embedding.Model,
		redactAPIKey(c.Embedding.APIKey),
		c.Embedding.Dimension,
		c.Store.DBPath,
		c.Store.DedupSimilarity,
		c.Store.MaxRetries,
		c.Store.RetryDelaySeconds,
		strings.Join(c.MarkdownDirectories, ", "),
		c.Processing.Recursive,
		strings.Join(c.Processing.FileExtensions, ", "),
		strings.Join(c.Processing.ExcludePatterns, ", "),
		c.Processing.BatchSize,
		c.Processing.DelayBetweenBatches,
		c.Processing.EntryDelay,
		c.Processing.UserID,
		c.Chat.MaxContextMemories,
		c.Logging.Level,
		c.LogDir(),
	)
}

func redactAPIKey(value string) string {
	if value == "" {
		return "(not configured)"
	}
	if len(value) > 8 {
		return value[:8] + "..."
	}
	return "***"
}
