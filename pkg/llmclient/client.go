// Package llmclient implements the role-aware LLM chat-completions
// caller: HTTP transport shared by all providers, role-specific
// instruction enrichment, file-block extraction, and the three-stage
// JSON recovery used for PRD/subtask responses.
//
// The request is always issued with the caller's context, even though
// the transport is a single-shot HTTP POST, so a caller can cancel an
// in-flight call through that context.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Provider identifies which OpenAI-compatible backend to call.
type Provider string

const (
	ProviderOpenAI   Provider = "openai"
	ProviderLMStudio Provider = "lmstudio"
	ProviderOllama   Provider = "ollama"
)

// Role is the agent role a given call is made on behalf of; each role
// gets a distinct instruction suffix and output contract.
type Role string

const (
	RoleDeveloper Role = "DEVELOPER"
	RoleReviewer  Role = "REVIEWER"
	RolePRD       Role = "PRD"
	RoleJSON      Role = "JSON"
)

// Config is the env-driven LLM client configuration.
type Config struct {
	Provider Provider
	Model    string
	APIKey   string
	// Endpoint overrides the provider's default base URL, e.g. from
	// LMSTUDIO_API_BASE / OLLAMA_API_BASE.
	Endpoint string
}

func (c Config) endpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	switch c.Provider {
	case ProviderLMStudio:
		return "http://localhost:1234/v1/chat/completions"
	case ProviderOllama:
		return "http://localhost:11434/v1/chat/completions"
	default:
		return "https://api.openai.com/v1/chat/completions"
	}
}

// Client is a stateless, reentrant OpenAI-style chat-completions caller.
// The Pipeline serialises its own calls; one outstanding call per
// Pipeline is the concurrency contract, not something this client
// enforces itself.
type Client struct {
	cfg  Config
	http *http.Client
}

// New returns a Client for cfg, using http.Client timeout as the
// transport-level deadline; the core enforces no timeout of its own.
func New(cfg Config) *Client {
	return &Client{cfg: cfg, http: &http.Client{Timeout: 5 * time.Minute}}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

// Call invokes the chat-completions endpoint with prompt enriched by
// role's instruction block, returning the raw response text.
func (c *Client) Call(ctx context.Context, role Role, prompt string) (string, error) {
	body := chatRequest{
		Model:       c.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: EnrichPrompt(role, prompt)}},
		Temperature: 0.1,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshalling chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm-transport: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("llm-transport: reading response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("llm-transport: status %d: %s", resp.StatusCode, string(data))
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("llm-transport: decoding response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("llm-transport: empty choices in response")
	}
	return parsed.Choices[0].Message.Content, nil
}
