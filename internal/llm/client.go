// Package llm provides the Anthropic client the backplane's LLM-assisted
// modules call into: session summarization (C8), pattern extraction (C9),
// and plan promotion (C16). Unlike a conversational agent, every caller here
// wants one thing back — a single completion for a fixed system/user prompt
// pair — so the client exposes only that, not tool calling or streaming.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kadirpekel/backplane/internal/httpclient"
)

// Client completes a single prompt against an LLM provider.
type Client interface {
	// Complete sends systemPrompt and userPrompt and returns the model's text
	// response.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	Close() error
}

// Config configures the Anthropic client.
type Config struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Host        string  `yaml:"host,omitempty"`
	MaxTokens   int     `yaml:"max_tokens,omitempty"`
	Temperature float64 `yaml:"temperature,omitempty"`
	Timeout     int     `yaml:"timeout,omitempty"`
	MaxRetries  int     `yaml:"max_retries,omitempty"`
}

// SetDefaults fills unset fields with Anthropic-appropriate defaults.
func (c *Config) SetDefaults() {
	if c.Model == "" {
		c.Model = "claude-3-5-sonnet-20241022"
	}
	if c.Host == "" {
		c.Host = "https://api.anthropic.com"
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.Temperature == 0 {
		c.Temperature = 1.0
	}
	if c.Timeout == 0 {
		c.Timeout = 120
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
}

// Validate checks the configuration after defaults have been applied.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("anthropic client requires an api_key")
	}
	return nil
}

// AnthropicClient implements Client against the Anthropic Messages API.
type AnthropicClient struct {
	cfg        *Config
	httpClient *httpclient.Client
}

var _ Client = (*AnthropicClient)(nil)

// NewAnthropicClient builds a Client from cfg.
func NewAnthropicClient(cfg *Config) (*AnthropicClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("llm config is required")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &AnthropicClient{
		cfg: cfg,
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second}),
			httpclient.WithMaxRetries(cfg.MaxRetries),
			httpclient.WithHeaderParser(httpclient.ParseAnthropicRateLimitHeaders),
		),
	}, nil
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends a single-turn request and concatenates every text block in
// the response.
func (c *AnthropicClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	reqBody := anthropicRequest{
		Model:       c.cfg.Model,
		System:      systemPrompt,
		Messages:    []anthropicMessage{{Role: "user", Content: userPrompt}},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Host+"/v1/messages", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(jsonData)), nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("anthropic request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("anthropic request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode anthropic response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("anthropic API error: %s", parsed.Error.Message)
	}

	var text string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}

// Close releases the client's resources. The Anthropic client holds none.
func (c *AnthropicClient) Close() error { return nil }
