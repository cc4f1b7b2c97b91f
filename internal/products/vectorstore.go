package products

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/embedding"
	chromem "github.com/philippgille/chromem-go"
)

const collectionName = "kopi_products"

// Match is a single vector search hit.
type Match struct {
	Product    Product
	Similarity float32
}

// VectorStore wraps chromem-go for persistent product embeddings.
type VectorStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	byID       map[string]Product
}

// NewVectorStore opens a persistent store in dir and indexes any catalog
// entries not already present. The embedder is bridged from Eino's
// [][]float64 to chromem-go's []float32.
func NewVectorStore(ctx context.Context, dir string, embedder embedding.Embedder, catalog []Product) (*VectorStore, error) {
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}

	col, err := db.GetOrCreateCollection(collectionName, nil, bridgeEmbedder(ctx, embedder))
	if err != nil {
		return nil, fmt.Errorf("get or create collection: %w", err)
	}

	vs := &VectorStore{db: db, collection: col, byID: make(map[string]Product, len(catalog))}
	for _, p := range catalog {
		vs.byID[p.ID] = p
	}

	if col.Count() < len(catalog) {
		if err := vs.index(ctx, catalog); err != nil {
			return nil, err
		}
	}
	return vs, nil
}

func (vs *VectorStore) index(ctx context.Context, catalog []Product) error {
	for _, p := range catalog {
		meta := map[string]string{"name": p.Name, "category": p.Category}
		if err := vs.collection.Add(ctx, []string{p.ID}, nil, []map[string]string{meta}, []string{p.SearchText()}); err != nil {
			return fmt.Errorf("index product %q: %w", p.ID, err)
		}
	}
	return nil
}

// Search returns the top-k catalog entries most similar to the query.
func (vs *VectorStore) Search(ctx context.Context, query string, k int) ([]Match, error) {
	if vs.collection.Count() == 0 {
		return nil, nil
	}
	if k > vs.collection.Count() {
		k = vs.collection.Count()
	}

	results, err := vs.collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}

	out := make([]Match, 0, len(results))
	for _, r := range results {
		p, ok := vs.byID[r.ID]
		if !ok {
			continue
		}
		out = append(out, Match{Product: p, Similarity: r.Similarity})
	}
	return out, nil
}

// Count returns the number of indexed products.
func (vs *VectorStore) Count() int {
	return vs.collection.Count()
}

// bridgeEmbedder converts an Eino Embedder ([][]float64) to a chromem-go EmbeddingFunc ([]float32).
func bridgeEmbedder(ctx context.Context, embedder embedding.Embedder) chromem.EmbeddingFunc {
	return func(embedCtx context.Context, text string) ([]float32, error) {
		if embedCtx == context.Background() {
			embedCtx = ctx
		}
		vectors, err := embedder.EmbedStrings(embedCtx, []string{text})
		if err != nil {
			return nil, fmt.Errorf("embed text: %w", err)
		}
		if len(vectors) == 0 || len(vectors[0]) == 0 {
			return nil, fmt.Errorf("embed text: empty result")
		}

		f64 := vectors[0]
		f32 := make([]float32, len(f64))
		for i, v := range f64 {
			f32[i] = float32(v)
		}
		return f32, nil
	}
}
