// Package chat answers questions about a user from their stored facts.
package chat

import (
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/samber/lo"

	"github.com/hession/lifelog/internal/config"
	"github.com/hession/lifelog/internal/llm"
	"github.com/hession/lifelog/internal/logger"
	"github.com/hession/lifelog/internal/memory"
)

// DefaultMaxContext is the number of facts retrieved when the caller
// passes a non-positive limit
const DefaultMaxContext = 5

// FactSearcher retrieves the facts most related to a query
type FactSearcher interface {
	Search(ctx context.Context, query, userID string, limit int) []memory.Record
}

type promptData struct {
	UserID  string
	Context string
	Query   string
}

// Responder runs retrieve-then-generate for one question at a time
type Responder struct {
	facts FactSearcher
	llm   llm.Service
	tmpl  *template.Template
}

// New creates a Responder. An empty or unparseable template falls back to
// the built-in chat prompt.
func New(facts FactSearcher, svc llm.Service, promptTemplate string) *Responder {
	if strings.TrimSpace(promptTemplate) == "" {
		promptTemplate = config.DefaultChatPrompt
	}
	tmpl, err := template.New("chat").Parse(promptTemplate)
	if err != nil {
		logger.Warn("Invalid chat prompt template, using default: %v", err)
		tmpl = template.Must(template.New("chat").Parse(config.DefaultChatPrompt))
	}
	return &Responder{facts: facts, llm: svc, tmpl: tmpl}
}

// BuildContext renders the fact block placed in the prompt
func BuildContext(userID string, records []memory.Record) string {
	if len(records) == 0 {
		return fmt.Sprintf("No specific information available about %s.", userID)
	}
	lines := lo.Map(records, func(r memory.Record, _ int) string {
		return "• " + r.Text
	})
	return fmt.Sprintf("Facts about %s:\n%s", userID, strings.Join(lines, "\n"))
}

// BuildPrompt renders the grounding prompt for query
func (r *Responder) BuildPrompt(query, userID string, records []memory.Record) (string, error) {
	var sb strings.Builder
	err := r.tmpl.Execute(&sb, promptData{
		UserID:  userID,
		Context: BuildContext(userID, records),
		Query:   query,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render chat prompt: %w", err)
	}
	return sb.String(), nil
}

// Chat answers query for userID using up to maxContext retrieved facts.
// It never fails: errors are returned to the user as an apology.
func (r *Responder) Chat(ctx context.Context, query, userID string, maxContext int) (reply string) {
	if maxContext <= 0 {
		maxContext = DefaultMaxContext
	}
	start := time.Now()
	log := logger.WithFields(map[string]interface{}{"user_id": userID})

	defer func() {
		if p := recover(); p != nil {
			log.Errorf("Chat panicked: %v", p)
			reply = apology(fmt.Errorf("%v", p))
		}
	}()

	records := r.facts.Search(ctx, query, userID, maxContext)
	log.Debugf("Retrieved %d facts for %q", len(records), query)

	prompt, err := r.BuildPrompt(query, userID, records)
	if err != nil {
		log.Error(err)
		return apology(err)
	}

	answer, err := r.llm.Complete(ctx, prompt)
	if err != nil {
		log.Errorf("Chat completion failed: %v", err)
		return apology(err)
	}

	log.WithFields(map[string]interface{}{
		"facts":    len(records),
		"duration": time.Since(start).Round(time.Millisecond).String(),
	}).Info("Chat answered")
	return strings.TrimSpace(answer)
}

func apology(err error) string {
	return fmt.Sprintf("Sorry, I encountered an error: %v", err)
}
