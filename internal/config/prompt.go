package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// PromptConfig holds the text/template sources for the two LLM prompts.
// Empty fields fall back to the built-in defaults.
type PromptConfig struct {
	Extraction string `yaml:"extraction"`
	Chat       string `yaml:"chat"`
}

// DefaultExtractionPrompt is rendered with .Context, .TimeContext and .Content
const DefaultExtractionPrompt = `Extract discrete, factual statements from the following conversation text.
Context: {{.Context}}
{{- if .TimeContext}}
{{.TimeContext}}
{{- end}}

Conversation text:
"{{.Content}}"

Instructions:
1. Extract 1-5 clear, factual statements from the text
2. Format each as a complete sentence with a subject
3. Include the date/time context in the fact when relevant
4. For multilingual content, preserve the original language
5. Focus on personal details, preferences, events, and relationships
6. Ignore small talk, greetings, or irrelevant details

Output only the extracted facts, one per line, with no numbering, bullets, preamble or explanations:`

// DefaultChatPrompt is rendered with .UserID, .Context and .Query
const DefaultChatPrompt = `You are a helpful personal assistant for {{.UserID}}. You have access to the following facts about {{.UserID}}:

{{.Context}}

IMPORTANT INSTRUCTIONS:
- When the user says "I", "me", "my", or "mine", they are referring to {{.UserID}}
- Use the facts above to answer questions confidently when the information is available
- Connect related concepts (e.g., "favorite food" relates to "what I like to eat")
- Give natural, conversational responses as if you know {{.UserID}} personally
- Only say you don't know if the facts truly don't contain relevant information

Examples of how to handle pronouns:
- "What do I like?" → "What does {{.UserID}} like?"
- "What's my favorite?" → "What's {{.UserID}}'s favorite?"
- "Tell me about myself" → "Tell me about {{.UserID}}"

User question: {{.Query}}

Provide a helpful, natural response based on the available facts:`

// DefaultPromptConfig returns default prompt configuration
func DefaultPromptConfig() *PromptConfig {
	return &PromptConfig{
		Extraction: DefaultExtractionPrompt,
		Chat:       DefaultChatPrompt,
	}
}

// PromptConfigPath returns the prompt config file path
func PromptConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "prompt.yaml"), nil
}

// LoadPromptConfig loads prompt overrides from prompt.yaml if present
func LoadPromptConfig() (*PromptConfig, error) {
	configPath, err := PromptConfigPath()
	if err != nil {
		return DefaultPromptConfig(), nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultPromptConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt config: %w", err)
	}

	cfg := DefaultPromptConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse prompt config: %w", err)
	}
	if cfg.Extraction == "" {
		cfg.Extraction = DefaultExtractionPrompt
	}
	if cfg.Chat == "" {
		cfg.Chat = DefaultChatPrompt
	}

	return cfg, nil
}
