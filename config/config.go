// Package config loads agent settings from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/tuxsy/my-ai-agents/calendar"
	"gopkg.in/yaml.v2"
)

const (
	ProviderOpenAI = "openai"
	ProviderGroq   = "groq"
	ProviderOllama = "ollama"

	ProviderAnthropic = "anthropic"
)

// Models used when none is configured.
const (
	DefaultGroqModel      = "qwen/qwen3-32b"
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-sonnet-4-5"
	DefaultOllamaModel    = "mistral"
)

const DefaultSystemPrompt = `Eres un asistente que gestiona el calendario del usuario.
Usa las herramientas para saber la fecha actual, comprobar la disponibilidad y crear eventos.
Expresa las horas como hora local sin desfase horario, por ejemplo 2026-02-16T17:00:00.
Crea cada evento una sola vez.`

type Config struct {
	Provider     string  `yaml:"provider" env:"AGENT_PROVIDER"`
	Model        string  `yaml:"model" env:"AGENT_MODEL"`
	APIKey       string  `yaml:"api_key" env:"AGENT_API_KEY"`
	BaseURL      string  `yaml:"base_url" env:"AGENT_BASE_URL"`
	Temperature  float64 `yaml:"temperature" env:"AGENT_TEMPERATURE"`
	MaxTokens    int     `yaml:"max_tokens" env:"AGENT_MAX_TOKENS"`
	Retries      int     `yaml:"retries" env:"AGENT_RETRIES"` // total attempts per completion
	SystemPrompt string  `yaml:"system_prompt" env:"AGENT_SYSTEM_PROMPT"`

	// RequestsPerMinute caps completion calls. Zero means no limit.
	RequestsPerMinute int `yaml:"requests_per_minute" env:"AGENT_REQUESTS_PER_MINUTE"`

	MemoryCapacity int `yaml:"memory_capacity" env:"AGENT_MEMORY_CAPACITY"`
	MaxRounds      int `yaml:"max_rounds" env:"AGENT_MAX_ROUNDS"`
	TokenBudget    int `yaml:"token_budget" env:"AGENT_TOKEN_BUDGET"`

	CredentialsPath string `yaml:"credentials_path" env:"GOOGLE_CREDENTIALS_PATH"`
	TempDir         string `yaml:"temp_dir" env:"AGENT_TEMP_DIR"`
	Timezone        string `yaml:"timezone" env:"AGENT_TIMEZONE"`
	CalendarID      string `yaml:"calendar_id" env:"AGENT_CALENDAR_ID"`

	HistoryFile string `yaml:"history_file" env:"AGENT_HISTORY_FILE"`
	LogLevel    string `yaml:"log_level" env:"AGENT_LOG_LEVEL"`

	// Provider specific keys, consulted when APIKey is empty.
	GroqAPIKey   string `yaml:"-" env:"GROQ_API_KEY"`
	OpenAIAPIKey string `yaml:"-" env:"OPENAI_API_KEY"`

	AnthropicAPIKey string `yaml:"-" env:"ANTHROPIC_API_KEY"`
}

func Default() *Config {
	return &Config{
		Provider:        ProviderGroq,
		Retries:         3,
		SystemPrompt:    DefaultSystemPrompt,
		MemoryCapacity:  10,
		MaxRounds:       10,
		CredentialsPath: "credentials.json",
		TempDir:         ".temp",
		Timezone:        "Europe/Madrid",
		CalendarID:      "primary",
		LogLevel:        "info",
	}
}

// Load reads path over the defaults, then applies the environment. A
// missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	return cfg, nil
}

// ResolvedAPIKey returns the key to use for the configured provider.
func (c *Config) ResolvedAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}

	switch c.Provider {
	case ProviderGroq:
		return c.GroqAPIKey
	case ProviderOpenAI:
		return c.OpenAIAPIKey
	case ProviderAnthropic:
		return c.AnthropicAPIKey
	}
	return ""
}

// ResolvedModel returns the configured model or the provider's default.
func (c *Config) ResolvedModel() string {
	if c.Model != "" {
		return c.Model
	}

	switch c.Provider {
	case ProviderGroq:
		return DefaultGroqModel
	case ProviderOpenAI:
		return DefaultOpenAIModel
	case ProviderAnthropic:
		return DefaultAnthropicModel
	case ProviderOllama:
		return DefaultOllamaModel
	}
	return ""
}

func (c *Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return l, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Provider {
	case ProviderOpenAI, ProviderGroq, ProviderAnthropic:
		if c.ResolvedAPIKey() == "" {
			errs = append(errs, fmt.Errorf("no API key for provider %s", c.Provider))
		}
	case ProviderOllama:
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q", c.Provider))
	}

	if c.MemoryCapacity < 1 {
		errs = append(errs, fmt.Errorf("memory_capacity must be at least 1, got %d", c.MemoryCapacity))
	}
	if c.MaxRounds < 0 {
		errs = append(errs, fmt.Errorf("max_rounds must not be negative, got %d", c.MaxRounds))
	}
	if c.TokenBudget < 0 {
		errs = append(errs, fmt.Errorf("token_budget must not be negative, got %d", c.TokenBudget))
	}
	if c.Retries < 0 {
		errs = append(errs, fmt.Errorf("retries must not be negative, got %d", c.Retries))
	}
	if c.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("requests_per_minute must not be negative, got %d", c.RequestsPerMinute))
	}

	if strings.TrimSpace(c.Timezone) == "" {
		errs = append(errs, errors.New("timezone is required"))
	} else if _, err := calendar.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("unknown timezone %q", c.Timezone))
	}

	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ValidateAuth checks only what the calendar authorization flow needs. The
// completion provider is not consulted.
func (c *Config) ValidateAuth() error {
	var errs []error

	if strings.TrimSpace(c.CredentialsPath) == "" {
		errs = append(errs, errors.New("credentials_path is required"))
	}
	if strings.TrimSpace(c.TempDir) == "" {
		errs = append(errs, errors.New("temp_dir is required"))
	}

	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
