package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	prompt "github.com/c-bata/go-prompt"

	"github.com/hession/lifelog/internal/logger"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

var suggestions = []prompt.Suggest{
	{Text: "memories", Description: "List your stored memories"},
	{Text: "reset", Description: "Delete all of your memories"},
	{Text: "help", Description: "Show help"},
	{Text: "exit", Description: "Leave the chat"},
}

// Session is one user's interactive chat
type Session struct {
	UserID     string
	MaxContext int

	// Confirm asks a yes/no question; defaults to an interactive prompt
	Confirm func(question string) bool

	chatter Chatter
	store   MemoryStore
	out     io.Writer
	done    bool
}

// NewSession creates a chat session for userID writing to stdout
func NewSession(chatter Chatter, store MemoryStore, userID string, maxContext int) *Session {
	return &Session{
		UserID:     userID,
		MaxContext: maxContext,
		Confirm:    AskYesNo,
		chatter:    chatter,
		store:      store,
		out:        os.Stdout,
	}
}

// HandleInput processes one line of input. It returns true once the user
// asked to leave.
func (s *Session) HandleInput(ctx context.Context, line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return s.done
	}

	if handled, exit, output := s.HandleCommand(ctx, input); handled {
		fmt.Fprintln(s.out, output)
		s.done = exit
		return s.done
	}

	logger.Debug("Chat query from %s: %s", s.UserID, input)
	answer := s.chatter.Chat(ctx, input, s.UserID, s.MaxContext)
	fmt.Fprintf(s.out, "\n%sAssistant:%s %s\n\n", colorBlue, colorReset, answer)
	return false
}

// RunChat starts the interactive REPL and blocks until the user exits
func RunChat(ctx context.Context, s *Session) {
	printWelcome(s.out, s.UserID)

	p := prompt.New(
		func(line string) { s.HandleInput(ctx, line) },
		completer,
		prompt.OptionTitle("lifelog chat"),
		prompt.OptionPrefix(s.UserID+"> "),
		prompt.OptionPrefixTextColor(prompt.Green),
		prompt.OptionSetExitCheckerOnInput(func(string, bool) bool { return s.done }),
	)
	p.Run()
}

func completer(d prompt.Document) []prompt.Suggest {
	// only complete the first word; questions are free text
	if strings.Contains(d.TextBeforeCursor(), " ") {
		return nil
	}
	return prompt.FilterHasPrefix(suggestions, d.GetWordBeforeCursor(), true)
}

func printWelcome(out io.Writer, userID string) {
	fmt.Fprintf(out, "\n%s🧠 Lifelog chat%s - ask anything about %s\n", colorCyan, colorReset, userID)
	fmt.Fprintf(out, "%sType 'memories' to list facts, 'reset' to clear them, 'exit' to quit%s\n\n", colorGray, colorReset)
}

// AskYesNo asks question interactively and accepts y or yes
func AskYesNo(question string) bool {
	fmt.Printf("%s⚠️  %s", colorYellow, colorReset)
	answer := prompt.Input(question, func(prompt.Document) []prompt.Suggest { return nil })
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
