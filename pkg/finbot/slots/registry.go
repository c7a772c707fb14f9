package slots

import (
	"errors"
	"fmt"
	"sort"

	"github.com/randalmurphal/finflow/pkg/finbot/config"
)

// Registry holds the schema of every calculator category and the mapping
// from catalog product categories to calculator categories.
type Registry struct {
	schemas    map[Category]Schema
	categories map[string]Category
}

// NewRegistry builds a registry from configuration tables.
func NewRegistry(tables config.Tables) (*Registry, error) {
	r := &Registry{
		schemas:    make(map[Category]Schema, len(tables.Slots)),
		categories: make(map[string]Category, len(tables.Categories)),
	}

	var errs []error
	for name, table := range tables.Slots {
		fields := make([]Field, len(table.Fields))
		for i, f := range table.Fields {
			fields[i] = Field{Name: f.Name, Kind: Kind(f.Kind), Optional: f.Optional, Description: f.Description}
		}
		rank := make([]RankRule, 0, len(table.Rank))
		for _, rr := range table.Rank {
			switch rr.Order {
			case "asc", "":
				rank = append(rank, RankRule{Field: rr.Field})
			case "desc":
				rank = append(rank, RankRule{Field: rr.Field, Descending: true})
			default:
				errs = append(errs, fmt.Errorf("%w: %s rank order %q", ErrInvalidSchema, name, rr.Order))
			}
		}
		schema, err := NewSchema(Category(name), fields, rank)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		r.schemas[schema.Category()] = schema
	}

	for product, category := range tables.Categories {
		c := Category(category)
		if _, ok := tables.Slots[category]; !ok {
			errs = append(errs, fmt.Errorf("%w: product category %s maps to %s, which has no schema", ErrInvalidSchema, product, category))
			continue
		}
		r.categories[product] = c
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return r, nil
}

// DefaultRegistry returns the registry built from config.DefaultTables.
// It panics if the compiled-in tables are invalid.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(config.DefaultTables())
	if err != nil {
		panic(fmt.Sprintf("slots: default tables: %v", err))
	}
	return r
}

// Schema returns the schema of category.
func (r *Registry) Schema(category Category) (Schema, bool) {
	s, ok := r.schemas[category]
	return s, ok
}

// Categories returns the categories with a schema, sorted.
func (r *Registry) Categories() []Category {
	out := make([]Category, 0, len(r.schemas))
	for c := range r.schemas {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CategoryFromProduct maps a catalog product category such as "정기예금"
// to its calculator category. Unmapped names return Unknown.
func (r *Registry) CategoryFromProduct(productCategory string) Category {
	if c, ok := r.categories[productCategory]; ok {
		return c
	}
	return Unknown
}
