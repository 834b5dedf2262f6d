package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/tiktoken-go/tokenizer"
	agent "github.com/tuxsy/my-ai-agents"
	"github.com/tuxsy/my-ai-agents/calendar"
	"github.com/tuxsy/my-ai-agents/config"
	"github.com/tuxsy/my-ai-agents/provider/anthropicchat"
	"github.com/tuxsy/my-ai-agents/provider/ollamachat"
	"github.com/tuxsy/my-ai-agents/provider/openaichat"
	"github.com/tuxsy/my-ai-agents/shell"
	"github.com/tuxsy/my-ai-agents/tools"
)

// buildCompletion returns the completion func for the configured provider.
// Usage is nil for providers that do not report token counts.
func buildCompletion(cfg *config.Config, logger *slog.Logger) (agent.CompletionFunc, fmt.Stringer, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI, config.ProviderGroq:
		usage := &openaichat.Usage{}

		// The last middleware added is the outermost, so every retry attempt
		// is logged and counted.
		opts := []openaichat.Option{
			openaichat.WithMiddleware(usage.Middleware),
			openaichat.WithMiddleware(openaichat.Logger(logger)),
			openaichat.WithTemperature(cfg.Temperature),
			openaichat.WithMaxTokens(cfg.MaxTokens),
		}
		if cfg.Retries > 0 {
			opts = append(opts, openaichat.WithRetry(cfg.Retries))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openaichat.WithBaseURL(cfg.BaseURL))
		}

		if cfg.Provider == config.ProviderGroq {
			return openaichat.NewGroq(cfg.ResolvedAPIKey(), cfg.ResolvedModel(), opts...), usage, nil
		}
		return openaichat.New(cfg.ResolvedAPIKey(), cfg.ResolvedModel(), opts...), usage, nil

	case config.ProviderAnthropic:
		usage := &anthropicchat.Usage{}

		// The client retries on its own, so retries are counted as one call.
		opts := []anthropicchat.Option{
			anthropicchat.WithMiddleware(usage.Middleware),
			anthropicchat.WithMiddleware(anthropicchat.Logger(logger)),
			anthropicchat.WithTemperature(cfg.Temperature),
			anthropicchat.WithRequestOptions(anthropicoption.WithMaxRetries(max(cfg.Retries-1, 0))),
		}
		if cfg.MaxTokens > 0 {
			opts = append(opts, anthropicchat.WithMaxTokens(cfg.MaxTokens))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropicchat.WithBaseURL(cfg.BaseURL))
		}

		return anthropicchat.New(cfg.ResolvedAPIKey(), cfg.ResolvedModel(), opts...), usage, nil

	case config.ProviderOllama:
		cf, err := ollamachat.NewFromEnvironment(cfg.ResolvedModel(),
			ollamachat.WithMiddleware(ollamachat.Logger(logger)),
			ollamachat.WithTemperature(cfg.Temperature))
		if err != nil {
			return nil, nil, err
		}
		return cf, nil, nil
	}

	return nil, nil, fmt.Errorf("unknown provider %q", cfg.Provider)
}

func newCredentials(cfg *config.Config, logger *slog.Logger) (*calendar.FileCredentials, error) {
	return calendar.NewFileCredentials(cfg.CredentialsPath, cfg.TempDir,
		calendar.WithConsenter(&calendar.LocalServerConsent{Out: os.Stdout}),
		calendar.WithCredentialsLogger(logger))
}

func buildAgent(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*agent.Agent, fmt.Stringer, error) {
	cf, usage, err := buildCompletion(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	creds, err := newCredentials(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	// Consent only happens once a calendar tool first needs a token.
	backend := calendar.NewGoogleBackend(calendar.TokenSource(ctx, creds))
	cal := calendar.New(backend,
		calendar.WithTimezone(cfg.Timezone),
		calendar.WithCalendarID(cfg.CalendarID))

	ts := tools.New(tools.WithLogger(logger))
	ts.AddTools(cal.Tools())

	opts := []agent.Option{
		agent.WithMemory(agent.NewMemory(cfg.MemoryCapacity)),
		agent.WithMaxRounds(cfg.MaxRounds),
		agent.WithLogger(logger),
		tools.WithTools(ts),
	}

	if cfg.RequestsPerMinute > 0 {
		opts = append(opts, agent.WithMiddleware(agent.RateLimit(agent.PerMinute(cfg.RequestsPerMinute))))
	}

	if cfg.TokenBudget > 0 {
		codec, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load tokenizer: %w", err)
		}
		opts = append(opts, agent.WithFilter(agent.TokenBudgetFilter(codec, cfg.TokenBudget)))
	}

	opts = append(opts, agent.WithCheck(agent.NonEmptyAnswer))

	a := agent.New(cf, opts...)
	if cfg.SystemPrompt != "" {
		a.Memory().AddSystemMessage(cfg.SystemPrompt)
	}

	return a, usage, nil
}

func runChat(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	a, usage, err := buildAgent(ctx, cfg, logger)
	if err != nil {
		return err
	}

	rl, err := shell.NewReadline(cfg.HistoryFile)
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	opts := []shell.Option{shell.WithLogger(logger)}
	if usage != nil {
		opts = append(opts, shell.WithUsage(usage))
	}

	return shell.New(rl, os.Stdout, a, opts...).Run(ctx)
}
