// Package cli provides the interactive chat session and its commands
package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hession/lifelog/internal/memory"
)

// Chatter answers a question about a user
type Chatter interface {
	Chat(ctx context.Context, query, userID string, maxContext int) string
}

// MemoryStore lists and resets a user's facts
type MemoryStore interface {
	ListAll(ctx context.Context, userID string) []memory.Record
	DeleteAll(ctx context.Context, userID string) int
}

// HandleCommand handles built-in commands.
// Returns: (handled, exit, output)
func (s *Session) HandleCommand(ctx context.Context, cmd string) (bool, bool, string) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false, false, ""
	}

	switch strings.ToLower(parts[0]) {
	case "exit", "quit", "q":
		return true, true, fmt.Sprintf("%sGoodbye! 👋%s", colorCyan, colorReset)
	case "memories":
		return true, false, FormatMemories(s.UserID, s.store.ListAll(ctx, s.UserID))
	case "reset":
		return true, false, s.reset(ctx)
	case "help":
		return true, false, helpText()
	default:
		return false, false, ""
	}
}

func (s *Session) reset(ctx context.Context) string {
	question := fmt.Sprintf("Delete ALL memories for %s? (y/N): ", s.UserID)
	if !s.Confirm(question) {
		return fmt.Sprintf("%sReset cancelled%s", colorGray, colorReset)
	}
	deleted := s.store.DeleteAll(ctx, s.UserID)
	return fmt.Sprintf("%s✅ Deleted %d memories%s", colorGreen, deleted, colorReset)
}

// FormatMemories renders a user's facts with their creation time
func FormatMemories(userID string, records []memory.Record) string {
	if len(records) == 0 {
		return fmt.Sprintf("📋 No memories stored for %s", userID)
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("📋 %d memories for %s\n\n", len(records), userID))
	for i, r := range records {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, truncateForDisplay(r.Text, 120)))
		builder.WriteString(fmt.Sprintf("   %sID: %s, created: %s%s\n",
			colorGray, shortID(r.ID), formatCreated(r.CreatedAt), colorReset))
	}
	return strings.TrimRight(builder.String(), "\n")
}

func formatCreated(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// truncateForDisplay flattens text to one line and cuts it at maxLen runes
func truncateForDisplay(text string, maxLen int) string {
	text = strings.ReplaceAll(text, "\r\n", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen]) + "..."
}

func helpText() string {
	return fmt.Sprintf(`%s📚 Lifelog Chat Help%s

%sCommands:%s
  memories  - List everything remembered about you
  reset     - Delete all of your memories (asks first)
  help      - Show this help message
  exit      - Leave the chat (also quit, q)

Anything else is answered from your memories.`,
		colorCyan, colorReset, colorYellow, colorReset)
}
