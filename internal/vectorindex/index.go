// Package vectorindex talks to the embedding and similarity search service.
package vectorindex

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the index service cannot be reached.
var ErrUnavailable = errors.New("vector index unavailable")

// Chunk is a piece of text to embed and store.
type Chunk struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// Match is a stored chunk scored against a query. Higher scores are closer.
type Match struct {
	ID    string
	Text  string
	Score float64
}

// Index stores chunks in namespaces and answers similarity queries.
type Index interface {
	Upsert(ctx context.Context, namespace string, chunks []Chunk) error
	Query(ctx context.Context, namespace, text string, topK int) ([]Match, error)
	DeleteNamespace(ctx context.Context, namespace string) error
}
