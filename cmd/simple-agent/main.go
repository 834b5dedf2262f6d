package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/tuxsy/my-ai-agents/config"
)

type app struct {
	configPath string
	provider   string
	model      string
	debug      bool
	maxRounds  int
	memory     int

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCommand() *cobra.Command {
	return (&app{}).command()
}

func (a *app) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "simple-agent",
		Short:         "Chat with a calendar assistant",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd, (*config.Config).Validate)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd.Context(), a.cfg, a.logger)
		},
	}

	f := cmd.PersistentFlags()
	f.StringVarP(&a.configPath, "config", "c", "agent.yaml", "Path to the YAML config file")
	f.StringVarP(&a.provider, "provider", "p", "", "Completion provider (openai, groq, anthropic, ollama)")
	f.StringVarP(&a.model, "model", "m", "", "Model name")
	f.BoolVar(&a.debug, "debug", false, "Log at debug level")
	f.IntVar(&a.maxRounds, "max-rounds", 0, "Maximum tool call rounds per turn (0 = unlimited)")
	f.IntVar(&a.memory, "memory", 0, "Number of conversation messages to retain")

	cmd.AddCommand(newAuthCommand(a))

	return cmd
}

// load reads the config, applies any flags set on the command line and
// checks the result with validate.
func (a *app) load(cmd *cobra.Command, validate func(*config.Config) error) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	f := cmd.Flags()
	if f.Changed("provider") {
		cfg.Provider = a.provider
	}
	if f.Changed("model") {
		cfg.Model = a.model
	}
	if f.Changed("max-rounds") {
		cfg.MaxRounds = a.maxRounds
	}
	if f.Changed("memory") {
		cfg.MemoryCapacity = a.memory
	}
	if a.debug {
		cfg.LogLevel = "debug"
	}

	if err := validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	level, _ := cfg.SlogLevel()
	a.cfg = cfg
	a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
