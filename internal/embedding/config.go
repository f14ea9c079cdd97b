package embedding

import "fmt"

// ProviderType identifies an embedder implementation.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
	ProviderCohere ProviderType = "cohere"
)

// Config configures an embedder provider.
type Config struct {
	Type ProviderType `yaml:"type"`

	// APIKey authenticates against the provider (required for OpenAI).
	APIKey string `yaml:"api_key,omitempty"`

	// Host overrides the provider's base URL, e.g. a local Ollama daemon.
	Host string `yaml:"host,omitempty"`

	// Model is the embedding model name.
	Model string `yaml:"model,omitempty"`

	// Dimension is the embedding vector width. If zero, the provider's
	// default for Model is used.
	Dimension int `yaml:"dimension,omitempty"`

	// Timeout is the per-request timeout in seconds.
	Timeout int `yaml:"timeout,omitempty"`

	// MaxRetries bounds per-request retry attempts.
	MaxRetries int `yaml:"max_retries,omitempty"`

	// BatchSize caps how many texts are sent per EmbedBatch request.
	BatchSize int `yaml:"batch_size,omitempty"`
}

// SetDefaults fills unset fields with provider-appropriate defaults.
func (c *Config) SetDefaults() {
	if c.Type == "" {
		c.Type = ProviderOpenAI
	}
	if c.Timeout == 0 {
		c.Timeout = 30
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.BatchSize == 0 {
		c.BatchSize = 100
	}
	switch c.Type {
	case ProviderOpenAI:
		if c.Model == "" {
			c.Model = "text-embedding-3-small"
		}
		if c.Host == "" {
			c.Host = "https://api.openai.com/v1"
		}
	case ProviderOllama:
		if c.Model == "" {
			c.Model = "nomic-embed-text"
		}
		if c.Host == "" {
			c.Host = "http://localhost:11434"
		}
		if c.Dimension == 0 {
			c.Dimension = 768
		}
	case ProviderCohere:
		if c.Model == "" {
			c.Model = "embed-english-v3.0"
		}
		if c.Host == "" {
			c.Host = "https://api.cohere.ai/v1"
		}
	}
}

// Validate checks the configuration after defaults have been applied.
func (c *Config) Validate() error {
	switch c.Type {
	case ProviderOpenAI:
		if c.APIKey == "" {
			return fmt.Errorf("openai embedder requires an api_key")
		}
		return nil
	case ProviderOllama:
		if c.Host == "" {
			return fmt.Errorf("ollama embedder requires a host")
		}
		return nil
	case ProviderCohere:
		if c.APIKey == "" {
			return fmt.Errorf("cohere embedder requires an api_key")
		}
		return nil
	default:
		return fmt.Errorf("unknown embedder type: %q", c.Type)
	}
}

// NewEmbedder builds an Embedder from Config.
func NewEmbedder(cfg *Config) (Embedder, error) {
	if cfg == nil {
		return nil, fmt.Errorf("embedder config is required")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case ProviderOpenAI:
		return NewOpenAIEmbedder(cfg)
	case ProviderOllama:
		return NewOllamaEmbedder(cfg)
	case ProviderCohere:
		return NewCohereEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unknown embedder type: %q", cfg.Type)
	}
}
