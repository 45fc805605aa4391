package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// Ollama completes prompts against a local Ollama server
type Ollama struct {
	client  *api.Client
	model   string
	options map[string]any
}

// NewOllama creates an Ollama-backed completion service.
// An empty baseURL means http://localhost:11434.
func NewOllama(baseURL, model string, temperature float64, maxTokens int, timeout time.Duration) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	parsed, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	options := map[string]any{"temperature": temperature}
	if maxTokens > 0 {
		options["num_predict"] = maxTokens
	}

	return &Ollama{
		client:  api.NewClient(parsed, &http.Client{Timeout: timeout}),
		model:   model,
		options: options,
	}, nil
}

// Complete runs a single non-streaming generate call
func (o *Ollama) Complete(ctx context.Context, prompt string) (string, error) {
	stream := false
	var out strings.Builder

	err := o.client.Generate(ctx, &api.GenerateRequest{
		Model:   o.model,
		Prompt:  prompt,
		Stream:  &stream,
		Options: o.options,
	}, func(resp api.GenerateResponse) error {
		out.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate with ollama: %w", err)
	}
	return out.String(), nil
}
