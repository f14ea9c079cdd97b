package embedding

import (
	"fmt"

	"github.com/kadirpekel/backplane/internal/registry"
)

// Registry manages named Embedder instances, so multiple providers can be
// configured (e.g. one for session memory, one for pattern extraction) and
// looked up by name.
type Registry struct {
	*registry.BaseRegistry[Embedder]
}

// NewRegistry creates an empty embedder registry.
func NewRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewBaseRegistry[Embedder]()}
}

// CreateFromConfig builds an Embedder from cfg, registers it under name, and
// returns it.
func (r *Registry) CreateFromConfig(name string, cfg *Config) (Embedder, error) {
	if name == "" {
		return nil, fmt.Errorf("embedder name cannot be empty")
	}
	embedder, err := NewEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	if err := r.Register(name, embedder); err != nil {
		return nil, fmt.Errorf("failed to register embedder: %w", err)
	}
	return embedder, nil
}
