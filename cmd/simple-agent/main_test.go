package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tuxsy/my-ai-agents/config"
	"golang.org/x/oauth2"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestNewRootCommand(t *testing.T) {
	cmd := newRootCommand()

	assert.Equal(t, "simple-agent", cmd.Use)
	assert.NotNil(t, cmd.RunE)
	assert.NotNil(t, cmd.PersistentPreRunE)

	for _, name := range []string{"config", "provider", "model", "debug", "max-rounds", "memory"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}

	sub, _, err := cmd.Find([]string{"auth"})
	require.NoError(t, err)
	assert.Equal(t, "auth", sub.Name())
}

func TestLoad_FlagsOverrideConfig(t *testing.T) {
	path := writeConfig(t, "provider: groq\napi_key: gsk\nmemory_capacity: 6\nmax_rounds: 3\n")

	a := &app{}
	cmd := a.command()
	require.NoError(t, cmd.ParseFlags([]string{"--config", path, "--memory", "4", "--debug"}))
	require.NoError(t, a.load(cmd, (*config.Config).Validate))

	assert.Equal(t, config.ProviderGroq, a.cfg.Provider)
	assert.Equal(t, 4, a.cfg.MemoryCapacity)
	assert.Equal(t, 3, a.cfg.MaxRounds)
	assert.Equal(t, "debug", a.cfg.LogLevel)
	assert.True(t, a.logger.Enabled(context.Background(), slog.LevelDebug))
}

func TestLoad_Invalid(t *testing.T) {
	path := writeConfig(t, "provider: ollama\nmodel: mistral\n")

	a := &app{}
	cmd := a.command()
	require.NoError(t, cmd.ParseFlags([]string{"--config", path, "--provider", "bard"}))

	err := a.load(cmd, (*config.Config).Validate)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown provider "bard"`)
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.APIKey = "gsk-test"
	cfg.TempDir = filepath.Join(t.TempDir(), ".temp")
	cfg.MemoryCapacity = 4
	return cfg
}

func TestBuildAgent(t *testing.T) {
	cfg := testConfig(t)
	cfg.TokenBudget = 2000
	cfg.RequestsPerMinute = 30

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, usage, err := buildAgent(context.Background(), cfg, logger)
	require.NoError(t, err)

	assert.NotNil(t, usage)
	assert.Equal(t, 4, a.Memory().Capacity())

	system, ok := a.Memory().System()
	assert.True(t, ok)
	assert.Equal(t, config.DefaultSystemPrompt, system)

	_, err = os.Stat(cfg.TempDir)
	assert.NoError(t, err)
}

func TestBuildCompletion(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := testConfig(t)
	cfg.Provider = config.ProviderOllama
	cfg.Model = "mistral"

	cf, usage, err := buildCompletion(cfg, logger)
	require.NoError(t, err)
	assert.NotNil(t, cf)
	assert.Nil(t, usage)

	cfg.Provider = config.ProviderAnthropic
	cfg.Model = ""
	cf, usage, err = buildCompletion(cfg, logger)
	require.NoError(t, err)
	assert.NotNil(t, cf)
	assert.Equal(t, "completions=0 input_tokens=0 output_tokens=0 total_tokens=0 errors=0", usage.String())

	cfg.Provider = "bard"
	_, _, err = buildCompletion(cfg, logger)
	assert.EqualError(t, err, `unknown provider "bard"`)
}

func TestAuthCommand_ValidToken(t *testing.T) {
	dir := t.TempDir()
	tempDir := filepath.Join(dir, ".temp")
	require.NoError(t, os.MkdirAll(tempDir, 0700))

	data, err := json.Marshal(&oauth2.Token{AccessToken: "cached", Expiry: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "token.json"), data, 0600))

	// The default provider has no key here; authorization must not need one.
	for _, k := range []string{"AGENT_PROVIDER", "AGENT_API_KEY", "GROQ_API_KEY"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	path := writeConfig(t, "temp_dir: "+tempDir+"\n")

	out := &bytes.Buffer{}
	cmd := newRootCommand()
	cmd.SetOut(out)
	cmd.SetArgs([]string{"auth", "--config", path})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "cached token: valid")
	assert.Contains(t, out.String(), "token ready at "+filepath.Join(tempDir, "token.json"))
}

func TestRootCommand_RequiresKey(t *testing.T) {
	for _, k := range []string{"AGENT_PROVIDER", "AGENT_API_KEY", "GROQ_API_KEY"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	path := writeConfig(t, "temp_dir: "+t.TempDir()+"\n")

	cmd := newRootCommand()
	cmd.SetArgs([]string{"--config", path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no API key for provider groq")
}
