// Package llm provides single-turn text completion backends.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hession/lifelog/internal/config"
)

// Service completes a prompt. Implementations keep no conversation state.
type Service interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// NewService builds the completion backend named by cfg.Provider
func NewService(cfg config.LLMConfig) (Service, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second

	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return New(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Temperature, cfg.MaxTokens, timeout), nil
	case "ollama", "":
		return NewOllama(cfg.BaseURL, cfg.Model, cfg.Temperature, cfg.MaxTokens, timeout)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
