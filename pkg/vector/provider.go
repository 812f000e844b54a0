// Package vector defines the embedded similarity-index boundary the Code
// Retrieval Index is built on: a pluggable Provider interface with one
// concrete, local/embedded implementation (chromem-go).
package vector

import "context"

// Result is one similarity-search hit.
type Result struct {
	ID       string
	Score    float64 // similarity, higher is better
	Content  string
	Metadata map[string]any
}

// Provider is the boundary interface over a similarity index: upsert a
// pre-computed embedding with metadata, query by embedding, and delete.
// Concrete implementations own their own persistence.
type Provider interface {
	Upsert(ctx context.Context, collection string, id string, vector []float32, metadata map[string]any) error
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error)
	SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Result, error)
	Delete(ctx context.Context, collection string, id string) error
	DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error
	CreateCollection(ctx context.Context, collection string, vectorDimension int) error
	DeleteCollection(ctx context.Context, collection string) error
	Name() string
	Close() error
}

// NilProvider is a no-op Provider used when vector storage is disabled.
type NilProvider struct{}

func (NilProvider) Upsert(context.Context, string, string, []float32, map[string]any) error {
	return nil
}
func (NilProvider) Search(context.Context, string, []float32, int) ([]Result, error) { return nil, nil }
func (NilProvider) SearchWithFilter(context.Context, string, []float32, int, map[string]any) ([]Result, error) {
	return nil, nil
}
func (NilProvider) Delete(context.Context, string, string) error                 { return nil }
func (NilProvider) DeleteByFilter(context.Context, string, map[string]any) error  { return nil }
func (NilProvider) CreateCollection(context.Context, string, int) error          { return nil }
func (NilProvider) DeleteCollection(context.Context, string) error               { return nil }
func (NilProvider) Name() string                                                 { return "nil" }
func (NilProvider) Close() error                                                 { return nil }

var _ Provider = NilProvider{}
