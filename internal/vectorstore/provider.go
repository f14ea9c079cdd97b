// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vectorstore

import "context"

// Provider is the common interface every vector backend implements:
// chromem-go (embedded), Qdrant, Pinecone, Weaviate, Chroma, Milvus.
//
// Callers always supply pre-computed embeddings; no Provider implementation
// calls out to an embedding model itself.
type Provider interface {
	// Name returns the provider's identifying name, e.g. "chromem", "qdrant".
	Name() string

	// Upsert adds or replaces a single vector in a collection.
	Upsert(ctx context.Context, collection string, id string, vector []float32, metadata map[string]any) error

	// Search finds the topK nearest vectors to vector in a collection.
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error)

	// SearchWithFilter is Search narrowed by an equality metadata filter.
	SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Result, error)

	// Delete removes a single vector by ID.
	Delete(ctx context.Context, collection string, id string) error

	// DeleteByFilter removes every vector matching an equality metadata filter.
	DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error

	// CreateCollection ensures a collection exists, sized for vectorDimension.
	// Implementations that create collections implicitly treat this as a no-op.
	CreateCollection(ctx context.Context, collection string, vectorDimension int) error

	// DeleteCollection removes a collection and every vector it holds.
	DeleteCollection(ctx context.Context, collection string) error

	// Close releases any resources (persistence, connections) held by the provider.
	Close() error
}

// Result is a single vector search hit.
type Result struct {
	ID       string
	Score    float32
	Content  string
	Vector   []float32
	Metadata map[string]any
}

// NilProvider is a Provider that stores nothing and finds nothing. It is
// returned when vector search is configured off, so callers never need to
// nil-check the provider itself.
type NilProvider struct{}

func (NilProvider) Name() string { return "nil" }

func (NilProvider) Upsert(ctx context.Context, collection string, id string, vector []float32, metadata map[string]any) error {
	return nil
}

func (NilProvider) Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error) {
	return nil, nil
}

func (NilProvider) SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Result, error) {
	return nil, nil
}

func (NilProvider) Delete(ctx context.Context, collection string, id string) error { return nil }

func (NilProvider) DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error {
	return nil
}

func (NilProvider) CreateCollection(ctx context.Context, collection string, vectorDimension int) error {
	return nil
}

func (NilProvider) DeleteCollection(ctx context.Context, collection string) error { return nil }

func (NilProvider) Close() error { return nil }

var _ Provider = NilProvider{}
