// Package config loads the orchestrator's env-driven configuration
// snapshot at startup: a getEnv/.env pattern rather than a YAML-file
// loader — the recognised variable set is small and closed, so a
// struct literal populated from os.Getenv is all that's needed.
package config

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/ralph-build/orchestrator/pkg/llmclient"
)

// Config is the process-wide, startup-snapshotted environment
// configuration: the domain's recognised variable set, plus the
// process knobs any HTTP service in this idiom needs — PORT, DATA_DIR,
// LOG_LEVEL.
type Config struct {
	CodexCommand    string
	CodexProvider   llmclient.Provider
	CodexModel      string
	OpenAIAPIKey    string
	LMStudioAPIBase string
	OllamaAPIBase   string

	Port    int
	DataDir string
	LogLevel slog.Level
}

var validProviders = map[llmclient.Provider]bool{
	llmclient.ProviderOpenAI:   true,
	llmclient.ProviderLMStudio: true,
	llmclient.ProviderOllama:   true,
}

// Load loads an optional .env file (missing is not an error — a
// deployment may rely on real process environment variables instead)
// then snapshots the recognised variable set.
func Load(envPath string) (Config, error) {
	if err := godotenv.Load(envPath); err != nil {
		slog.Default().Warn("no .env file loaded; using process environment", "path", envPath, "error", err)
	}

	provider := llmclient.Provider(getEnv("CODEX_PROVIDER", string(llmclient.ProviderOpenAI)))
	if !validProviders[provider] {
		return Config{}, &ValidationError{Field: "CODEX_PROVIDER", Err: ErrInvalidValue}
	}

	cfg := Config{
		CodexCommand:    getEnv("CODEX_COMMAND", "codex"),
		CodexProvider:   provider,
		CodexModel:      getEnv("CODEX_MODEL", "gpt-4o"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		LMStudioAPIBase: os.Getenv("LMSTUDIO_API_BASE"),
		OllamaAPIBase:   os.Getenv("OLLAMA_API_BASE"),
		DataDir:         getEnv("DATA_DIR", "./data"),
	}

	port, err := strconv.Atoi(getEnv("PORT", "3000"))
	if err != nil {
		return Config{}, &ValidationError{Field: "PORT", Err: err}
	}
	cfg.Port = port

	level, err := parseLogLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, &ValidationError{Field: "LOG_LEVEL", Err: err}
	}
	cfg.LogLevel = level

	return cfg, nil
}

// LLMClientConfig derives the llmclient.Config this process should use,
// picking the API key/endpoint override appropriate to the provider.
func (c Config) LLMClientConfig() llmclient.Config {
	lc := llmclient.Config{Provider: c.CodexProvider, Model: c.CodexModel, APIKey: c.OpenAIAPIKey}
	switch c.CodexProvider {
	case llmclient.ProviderLMStudio:
		lc.Endpoint = c.LMStudioAPIBase
	case llmclient.ProviderOllama:
		lc.Endpoint = c.OllamaAPIBase
	}
	return lc
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(s))
	return level, err
}
