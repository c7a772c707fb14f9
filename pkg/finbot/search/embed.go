package search

import (
	"context"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	"gonum.org/v1/gonum/floats"
)

// DefaultDimension is the vector length of a HashEmbedder built with
// dimension 0.
const DefaultDimension = 256

// HashEmbedder is a feature-hashing embedder. Words and character bigrams
// are hashed into a fixed number of buckets and the vector is scaled to
// unit length, so texts that share vocabulary have a high cosine score.
// It needs no model and is stable across processes.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder returns an embedder producing vectors of length dim.
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &HashEmbedder{dim: dim}
}

// Dimension returns the vector length.
func (e *HashEmbedder) Dimension() int { return e.dim }

// Embed implements Embedder. Empty text yields the zero vector.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float64, e.dim)
	for _, feature := range e.features(text) {
		vec[xxhash.Sum64String(feature)%uint64(e.dim)]++
	}
	if n := floats.Norm(vec, 2); n > 0 {
		floats.Scale(1/n, vec)
	}
	return vec, nil
}

func (e *HashEmbedder) features(text string) []string {
	text = cases.Fold().String(norm.NFC.String(text))
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	var out []string
	for _, w := range words {
		out = append(out, "w:"+w)
		runes := []rune(w)
		for i := 0; i+1 < len(runes); i++ {
			out = append(out, "b:"+string(runes[i:i+2]))
		}
	}
	return out
}
