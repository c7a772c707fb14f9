package search

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// Document is a product to index.
type Document struct {
	Category string
	Text     string
	Payload  Payload
}

type entry struct {
	vector []float64
	doc    Document
}

// Index is an in-memory cosine-similarity index. It is safe for concurrent
// use.
type Index struct {
	embedder Embedder

	mu          sync.RWMutex
	collections map[string][]entry
}

// NewIndex returns an empty index that embeds documents with embedder.
func NewIndex(embedder Embedder) *Index {
	return &Index{
		embedder:    embedder,
		collections: make(map[string][]entry),
	}
}

// Add embeds docs and appends them to collection.
func (ix *Index) Add(ctx context.Context, collection string, docs ...Document) error {
	entries := make([]entry, 0, len(docs))
	for _, d := range docs {
		vec, err := ix.embedder.Embed(ctx, d.Text)
		if err != nil {
			return fmt.Errorf("embed %s: %w", d.Payload.String(KeyCode, "document"), err)
		}
		entries = append(entries, entry{vector: vec, doc: d})
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.collections[collection] = append(ix.collections[collection], entries...)
	return nil
}

// Search implements Searcher. Ties keep insertion order.
func (ix *Index) Search(ctx context.Context, vector []float64, collection string, k int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ix.mu.RLock()
	entries, ok := ix.collections[collection]
	ix.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}

	hits := make([]Hit, 0, len(entries))
	for _, e := range entries {
		if len(e.vector) != len(vector) {
			return nil, fmt.Errorf("%w: collection %s holds %d, query has %d",
				ErrDimensionMismatch, collection, len(e.vector), len(vector))
		}
		hits = append(hits, Hit{
			Score:       cosine(vector, e.vector),
			Category:    e.doc.Category,
			ProductCode: e.doc.Payload.String(KeyCode, ""),
			Payload:     e.doc.Payload,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k > 0 && k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Collections returns the loaded collection names, sorted.
func (ix *Index) Collections() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]string, 0, len(ix.collections))
	for name := range ix.collections {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of documents in collection.
func (ix *Index) Len(collection string) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.collections[collection])
}

func cosine(a, b []float64) float64 {
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}

// Catalog is a product file: products keyed by recommendation category
// (fixed_deposit, installment_deposit, jeonse_loan).
type Catalog map[string][]Payload

// ReadCatalog decodes a catalog file.
func ReadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return c, nil
}

// Load indexes every product of the catalog into its category collection
// and into the "all" collection. Categories are loaded in sorted order so
// the "all" collection is deterministic. Returns the number of products.
func (ix *Index) Load(ctx context.Context, c Catalog) (int, error) {
	categories := make([]string, 0, len(c))
	for cat := range c {
		categories = append(categories, cat)
	}
	sort.Strings(categories)

	total := 0
	for _, cat := range categories {
		docs := make([]Document, 0, len(c[cat]))
		for _, p := range c[cat] {
			docs = append(docs, Document{Category: cat, Text: ProductText(p), Payload: p})
		}
		if err := ix.Add(ctx, Collection(cat), docs...); err != nil {
			return total, err
		}
		if err := ix.Add(ctx, Collection(AllProducts), docs...); err != nil {
			return total, err
		}
		total += len(docs)
	}
	return total, nil
}

// ProductText renders a product as the sentence that gets embedded. A
// payload carrying its own text uses it unchanged.
func ProductText(p Payload) string {
	if t := p.String(KeyText, ""); t != "" {
		return t
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s의 %s", p.String(KeyCompany, ""), p.String(KeyName, ""))
	if c := p.String(KeyCategory, ""); c != "" {
		fmt.Fprintf(&b, " %s 상품입니다.", c)
	}
	if v := p.String("우대조건", ""); v != "" {
		fmt.Fprintf(&b, " 우대조건은 %s입니다.", v)
	}
	for _, opt := range p.Records(KeyOptions) {
		o := Payload(opt)
		if o.Has("저축개월") {
			fmt.Fprintf(&b, " %d개월 저축할 때 저축금리는 %s %.2f%%, 최고 우대 금리는 %.2f%%입니다.",
				o.Int("저축개월", 0), o.String("저축금리유형명", ""), o.Float("저축금리", 0), o.Float("최고우대금리", 0))
		}
		if o.Has("대출금리최저") {
			fmt.Fprintf(&b, " %s 대출금리는 최저 %.2f%%, 최고 %.2f%%입니다.",
				o.String("대출금리유형", ""), o.Float("대출금리최저", 0), o.Float("대출금리최고", 0))
		}
	}
	return b.String()
}
