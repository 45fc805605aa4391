// Package extractor turns journal entries into short factual statements
// with an LLM.
package extractor

import (
	"context"
	"strings"
	"text/template"
	"time"

	"github.com/samber/lo"

	"github.com/hession/lifelog/internal/config"
	"github.com/hession/lifelog/internal/llm"
	"github.com/hession/lifelog/internal/logger"
)

// timeContextLayout renders e.g. "March 29, 2025 at 09:10 AM"
const timeContextLayout = "January 02, 2006 at 03:04 PM"

// promptData is the data the extraction template is rendered with
type promptData struct {
	Context     string
	TimeContext string
	Content     string
}

// Extractor builds the extraction prompt for an entry and splits the
// completion into facts.
type Extractor struct {
	llm  llm.Service
	tmpl *template.Template
}

// New creates an Extractor. An empty or unparseable template falls back
// to the built-in extraction prompt.
func New(svc llm.Service, promptTemplate string) *Extractor {
	if strings.TrimSpace(promptTemplate) == "" {
		promptTemplate = config.DefaultExtractionPrompt
	}
	tmpl, err := template.New("extraction").Parse(promptTemplate)
	if err != nil {
		logger.Warn("Invalid extraction prompt template, using default: %v", err)
		tmpl = template.Must(template.New("extraction").Parse(config.DefaultExtractionPrompt))
	}
	return &Extractor{llm: svc, tmpl: tmpl}
}

// TimeContext is the recording-time sentence added to the prompt
func TimeContext(ts time.Time) string {
	return "This information was recorded on " + ts.Format(timeContextLayout) + "."
}

// BuildPrompt renders the extraction prompt. The time sentence is left
// out entirely when ts is nil.
func (e *Extractor) BuildPrompt(sectionContext, content string, ts *time.Time) string {
	data := promptData{Context: sectionContext, Content: content}
	if ts != nil {
		data.TimeContext = TimeContext(*ts)
	}

	var sb strings.Builder
	if err := e.tmpl.Execute(&sb, data); err != nil {
		logger.Warn("Failed to render extraction prompt: %v", err)
		return "Extract key facts from: " + content
	}
	return sb.String()
}

// ExtractFacts asks the LLM for the facts in one entry. Completion
// failures are logged and yield no facts; they are not retried.
func (e *Extractor) ExtractFacts(ctx context.Context, sectionContext, content string, ts *time.Time) []string {
	prompt := e.BuildPrompt(sectionContext, content, ts)

	start := time.Now()
	raw, err := e.llm.Complete(ctx, prompt)
	if err != nil {
		logger.Error("Fact extraction failed for %q: %v", truncate(content, 60), err)
		return nil
	}

	facts := SplitFacts(raw)
	logger.Debug("Extracted %d facts in %v", len(facts), time.Since(start).Round(time.Millisecond))
	return facts
}

// SplitFacts returns the trimmed non-blank lines of a completion
func SplitFacts(raw string) []string {
	return lo.FilterMap(strings.Split(raw, "\n"), func(line string, _ int) (string, bool) {
		line = strings.TrimSpace(line)
		return line, line != ""
	})
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
