// Package search retrieves catalog products for a query.
//
// Embedder and Searcher are the boundaries to the vector service. The
// package also ships a deterministic hashing embedder and an in-memory
// cosine index, which the CLI loads from a product catalog file and tests
// use as a fake.
package search

import (
	"context"
	"errors"
)

// CollectionPrefix prefixes every product collection name.
const CollectionPrefix = "finance_products_"

// AllProducts is the collection category holding every product.
const AllProducts = "all"

// Collection returns the collection name for a recommendation category such
// as "jeonse_loan" or "all".
func Collection(category string) string {
	return CollectionPrefix + category
}

// Hit is one search result.
type Hit struct {
	Score       float64 `json:"score"`
	Category    string  `json:"category"`
	ProductCode string  `json:"product_code"`
	Payload     Payload `json:"payload"`
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Searcher returns the k documents of collection closest to vector, best
// first.
type Searcher interface {
	Search(ctx context.Context, vector []float64, collection string, k int) ([]Hit, error)
}

var (
	// ErrUnknownCollection indicates a search against a collection that
	// was never loaded.
	ErrUnknownCollection = errors.New("unknown collection")

	// ErrDimensionMismatch indicates a vector of the wrong length.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)
