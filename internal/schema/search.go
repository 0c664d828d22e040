package schema

import (
	"context"
	"fmt"

	chromem "github.com/philippgille/chromem-go"

	"github.com/ziadkadry99/cube-pilot/internal/embeddings"
)

const collectionName = "catalog"

// SearchResult is a catalog field matched by semantic search.
type SearchResult struct {
	Field      Field   `json:"field"`
	Kind       string  `json:"kind"` // "measure" or "dimension"
	Similarity float32 `json:"similarity"`
}

// Searcher indexes catalog fields into an in-memory chromem collection so
// clarification suggestions can match the user's wording against field
// titles and descriptions, not just names.
type Searcher struct {
	db         *chromem.DB
	collection *chromem.Collection
	catalog    *Catalog
}

// NewSearcher creates an empty searcher over the given catalog.
func NewSearcher(catalog *Catalog, embedder embeddings.Embedder) (*Searcher, error) {
	db := chromem.NewDB()
	col, err := db.GetOrCreateCollection(collectionName, nil, embeddings.ToChromemFunc(embedder))
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &Searcher{db: db, collection: col, catalog: catalog}, nil
}

// Index embeds every measure and dimension. onProgress, if non-nil, is
// called once per indexed field.
func (s *Searcher) Index(ctx context.Context, onProgress func()) error {
	var docs []chromem.Document
	add := func(f Field, kind string) {
		content := f.Name
		if f.Title != "" {
			content += " — " + f.Title
		}
		if f.Description != "" {
			content += " — " + f.Description
		}
		docs = append(docs, chromem.Document{
			ID:      kind + ":" + f.Name,
			Content: content,
			Metadata: map[string]string{
				"kind": kind,
				"name": f.Name,
			},
		})
	}
	for _, m := range s.catalog.Measures {
		add(m, "measure")
	}
	for _, d := range s.catalog.Dimensions {
		add(d, "dimension")
	}

	for _, doc := range docs {
		if err := s.collection.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
			return fmt.Errorf("indexing %s: %w", doc.ID, err)
		}
		if onProgress != nil {
			onProgress()
		}
	}
	return nil
}

// Count returns the number of indexed fields.
func (s *Searcher) Count() int {
	return s.collection.Count()
}

// Search returns the catalog fields closest to the query text.
func (s *Searcher) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}

	// chromem-go requires nResults <= collection size.
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	results, err := s.collection.Query(ctx, query, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		kind := r.Metadata["kind"]
		name := r.Metadata["name"]
		field, ok := s.lookup(kind, name)
		if !ok {
			continue
		}
		out = append(out, SearchResult{Field: field, Kind: kind, Similarity: r.Similarity})
	}
	return out, nil
}

func (s *Searcher) lookup(kind, name string) (Field, bool) {
	switch kind {
	case "measure":
		for _, m := range s.catalog.Measures {
			if m.Name == name {
				return m, true
			}
		}
	case "dimension":
		for _, d := range s.catalog.Dimensions {
			if d.Name == name {
				return d, true
			}
		}
	}
	return Field{}, false
}
