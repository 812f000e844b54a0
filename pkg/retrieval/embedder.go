// Package retrieval implements the Code Retrieval Index: an embedding
// index of example functions that supplies few-shot examples to the Coder
// and Researcher stage agents.
package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"
	"unicode"
)

// Embedder turns text into a fixed-dimension vector. The spec treats the
// embedding model as an external interface (spec.md §1 Out of scope); this
// is the boundary that interface is implemented against.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Model() string
	Close() error
}

// HashEmbedder is a deterministic, dependency-free Embedder: a hashed
// bag-of-tokens projection into a fixed dimension, normalized to unit
// length so cosine similarity behaves sanely. It exists so the Retrieval
// Index is exercisable without wiring a real embedding-model service,
// which the spec explicitly treats as an external collaborator.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder creates a HashEmbedder projecting into dim dimensions
// (default 256).
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = 256
	}
	return &HashEmbedder{dim: dim}
}

func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dim)
	for _, tok := range tokenize(text) {
		sum := sha256.Sum256([]byte(tok))
		idx := binary.BigEndian.Uint32(sum[:4]) % uint32(h.dim)
		sign := float32(1)
		if sum[4]%2 == 0 {
			sign = -1
		}
		vec[idx] += sign
	}
	normalize(vec)
	return vec, nil
}

func (h *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := h.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (h *HashEmbedder) Dimension() int { return h.dim }
func (h *HashEmbedder) Model() string  { return "hash-embedder-v1" }
func (h *HashEmbedder) Close() error   { return nil }

func normalize(v []float32) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range v {
		v[i] /= norm
	}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
