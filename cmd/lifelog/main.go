package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hession/lifelog/internal/chat"
	"github.com/hession/lifelog/internal/cli"
	"github.com/hession/lifelog/internal/config"
	"github.com/hession/lifelog/internal/extractor"
	"github.com/hession/lifelog/internal/llm"
	"github.com/hession/lifelog/internal/logger"
	"github.com/hession/lifelog/internal/memory"
	"github.com/hession/lifelog/internal/processor"
)

var (
	version = "0.1.0"
)

// app holds the handles shared by every command
type app struct {
	cfg       *config.Config
	store     *memory.FactStore
	processor *processor.Processor
	responder *chat.Responder
}

func newApp(cfg *config.Config, prompts *config.PromptConfig) (*app, error) {
	svc, err := llm.NewService(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM service: %w", err)
	}

	embedder, err := memory.NewEmbedder(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	backend, err := memory.NewSQLiteBackend(cfg.Store.DBPath, embedder, memory.SQLiteOptions{
		DedupSimilarity: cfg.Store.DedupSimilarity,
		MinSimilarity:   cfg.Store.MinSimilarity,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open fact store: %w", err)
	}
	store := memory.NewFactStore(backend, memory.RetryPolicy{
		MaxRetries: cfg.Store.MaxRetries,
		Delay:      cfg.RetryDelay(),
	})

	proc, err := processor.New(extractor.New(svc, prompts.Extraction), store, processor.OptionsFromConfig(cfg))
	if err != nil {
		store.Close()
		return nil, err
	}

	return &app{
		cfg:       cfg,
		store:     store,
		processor: proc,
		responder: chat.New(store, svc, prompts.Chat),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// userID picks the --user flag over the configured default
func (a *app) userID(flag string) string {
	if u := strings.TrimSpace(flag); u != "" {
		return u
	}
	return a.cfg.Processing.UserID
}

// setup loads configuration, starts logging and wires the pipeline
func setup() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(logger.Config{
		LogDir:     cfg.LogDir(),
		Level:      logger.ParseLevel(cfg.Logging.Level),
		MaxDays:    cfg.Logging.MaxDays,
		ConsoleOut: cfg.Logging.Console,
		JSON:       cfg.Logging.Format == "json",
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logger: %v\n", err)
	}
	if l := logger.GetDefault(); l != nil {
		// libraries logging through the standard logger end up in our files
		log.SetFlags(0)
		log.SetOutput(l.GetWriter(logger.WARN))
	}
	logger.Info("lifelog v%s starting, llm=%s/%s embedding=%s/%s",
		version, cfg.LLM.Provider, cfg.LLM.Model, cfg.Embedding.Provider, cfg.Embedding.Model)

	if !cfg.IsAPIKeyConfigured() {
		logger.Warn("No API key configured for provider %s", cfg.LLM.Provider)
	}

	prompts, err := config.LoadPromptConfig()
	if err != nil {
		logger.Warn("Using default prompts: %v", err)
		prompts = config.DefaultPromptConfig()
	}

	return newApp(cfg, prompts)
}

func formatSummary(c processor.Counters) string {
	return fmt.Sprintf(`Processing complete
  Files processed: %d
  Facts extracted: %d
  Facts added:     %d
  Success rate:    %.1f%%`, c.FilesProcessed, c.TotalFacts, c.AddedFacts, c.SuccessRate())
}

func main() {
	var configDir string

	rootCmd := &cobra.Command{
		Use:   "lifelog",
		Short: "lifelog - turn your journal into a memory you can talk to",
		Long: `lifelog reads markdown journals, distills each entry into short facts with an LLM,
and stores them per user in a local vector store.

It can:
  • Process a journal file or every configured directory
  • Answer questions about you from the stored facts
  • List or reset what it remembers`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if configDir != "" {
				config.SetConfigDir(configDir)
			}
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ./config)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.AddCommand(
		newProcessCmd(ctx),
		newChatCmd(ctx),
		newAskCmd(ctx),
		newMemoriesCmd(ctx),
		newResetCmd(ctx),
		newConfigCmd(),
		newVersionCmd(),
	)

	err := rootCmd.Execute()
	logger.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newProcessCmd(ctx context.Context) *cobra.Command {
	var file, user string
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Extract facts from markdown files into memory",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()
			userID := a.userID(user)

			if file != "" {
				total, added := a.processor.ProcessFile(ctx, file, userID)
				fmt.Println(formatSummary(processor.Counters{FilesProcessed: 1, TotalFacts: total, AddedFacts: added}))
				return nil
			}

			fmt.Printf("Processing %s for user %s...\n", strings.Join(a.cfg.MarkdownDirectories, ", "), userID)
			fmt.Println(formatSummary(a.processor.ProcessDirectories(ctx, userID)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "process a single file instead of the configured directories")
	cmd.Flags().StringVarP(&user, "user", "u", "", "user the facts belong to")
	return cmd
}

func newChatCmd(ctx context.Context) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat interactively with your memories",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()

			session := cli.NewSession(a.responder, a.store, a.userID(user), a.cfg.Chat.MaxContextMemories)
			cli.RunChat(ctx, session)
			return nil
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "user to chat as")
	return cmd
}

func newAskCmd(ctx context.Context) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "ask QUERY",
		Short: "Ask a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()

			query := strings.Join(args, " ")
			fmt.Println(a.responder.Chat(ctx, query, a.userID(user), a.cfg.Chat.MaxContextMemories))
			return nil
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "user to ask about")
	return cmd
}

func newMemoriesCmd(ctx context.Context) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "memories",
		Short: "List stored memories",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()

			userID := a.userID(user)
			fmt.Println(cli.FormatMemories(userID, a.store.ListAll(ctx, userID)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "user whose memories to list")
	return cmd
}

func newResetCmd(ctx context.Context) *cobra.Command {
	var user string
	var force bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all memories of a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()

			userID := a.userID(user)
			if !force && !cli.AskYesNo(fmt.Sprintf("Delete ALL memories for %s? (y/N): ", userID)) {
				fmt.Println("Reset cancelled")
				return nil
			}
			fmt.Printf("Deleted %d memories for %s\n", a.store.DeleteAll(ctx, userID), userID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "user whose memories to delete")
	cmd.Flags().BoolVar(&force, "force", false, "skip the confirmation prompt")
	return cmd
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			fmt.Println(cfg.String())

			path, _ := config.ConfigPath()
			fmt.Printf("\nConfig file path: %s\n", path)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("lifelog v%s\n", version)
		},
	}
}
