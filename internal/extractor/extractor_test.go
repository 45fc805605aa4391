package extractor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeLLM struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func TestBuildPrompt_WithTimestamp(t *testing.T) {
	e := New(&fakeLLM{}, "")
	ts := time.Date(2025, 3, 29, 9, 10, 0, 0, time.UTC)

	prompt := e.BuildPrompt("Notes", "I love pizza at Mario's", &ts)

	for _, want := range []string{
		"Context: Notes",
		"This information was recorded on March 29, 2025 at 09:10 AM.",
		`"I love pizza at Mario's"`,
		"Extract 1-5 clear, factual statements",
		"preserve the original language",
		"one per line",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestBuildPrompt_WithoutTimestamp(t *testing.T) {
	e := New(&fakeLLM{}, "")
	prompt := e.BuildPrompt("Notes", "Bob is my brother", nil)

	if strings.Contains(prompt, "recorded") {
		t.Errorf("prompt must not mention recording time:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Context: Notes\n\nConversation text:") {
		t.Errorf("unexpected layout around context:\n%s", prompt)
	}
}

func TestNew_InvalidTemplateFallsBack(t *testing.T) {
	e := New(&fakeLLM{}, "{{.Broken")
	prompt := e.BuildPrompt("Ctx", "content", nil)
	if !strings.Contains(prompt, "Context: Ctx") {
		t.Errorf("Expected default template, got:\n%s", prompt)
	}
}

func TestBuildPrompt_RenderFailureFallback(t *testing.T) {
	e := New(&fakeLLM{}, "{{.Missing.Field}}")
	prompt := e.BuildPrompt("Ctx", "went hiking", nil)
	if prompt != "Extract key facts from: went hiking" {
		t.Errorf("Expected fallback prompt, got %q", prompt)
	}
}

func TestExtractFacts(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
		want  []string
	}{
		{"one per line", "User loves pizza\n  User eats at Mario's  \n\n", nil, []string{"User loves pizza", "User eats at Mario's"}},
		{"empty reply", "", nil, nil},
		{"whitespace reply", "  \n\t\n ", nil, nil},
		{"llm failure", "ignored", errors.New("connection refused"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeLLM{reply: tt.reply, err: tt.err}
			got := New(fake, "").ExtractFacts(context.Background(), "Notes", "text", nil)

			if len(got) != len(tt.want) {
				t.Fatalf("ExtractFacts() = %q, want %q", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("fact %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
			if len(fake.prompts) != 1 {
				t.Errorf("Expected exactly one LLM call, got %d", len(fake.prompts))
			}
		})
	}
}

func TestSplitFacts_KeepsOrder(t *testing.T) {
	got := SplitFacts("c\nb\r\na")
	if strings.Join(got, ",") != "c,b,a" {
		t.Errorf("SplitFacts() = %q", got)
	}
}
