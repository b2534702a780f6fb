package rag

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// NoResultsSentinel is the content returned by Search when no stored document
// clears the similarity threshold. It is a normal result, not an error.
const NoResultsSentinel = "No relevant documents found in the local knowledge base."

// embedConcurrency bounds the parallel embed calls during bulk ingestion.
const embedConcurrency = 4

// SourceDoc is one surviving search hit: the document text, its metadata, and
// its similarity score.
type SourceDoc struct {
	// Content is the stored document text.
	Content string `json:"content"`
	// Metadata is the document's stored metadata.
	Metadata map[string]string `json:"metadata,omitempty"`
	// Score is the cosine similarity to the query (0.0–1.0).
	Score float32 `json:"score"`
}

// SearchResult is the outcome of a knowledge-base search: a renderable
// context block plus the sources it was built from.
type SearchResult struct {
	// Content is the numbered concatenation of surviving document texts, or
	// NoResultsSentinel when nothing cleared the threshold.
	Content string `json:"content"`
	// Sources lists the surviving hits in index order.
	Sources []SourceDoc `json:"sources"`
}

// KnowledgeStore combines an Embedder and a VectorStore into the document
// ingestion and similarity-search operations used by the answering agent.
// It is safe for concurrent use.
type KnowledgeStore struct {
	// store is the backing vector index.
	store VectorStore
	// embedder converts text to vectors. Wrap with a CachedEmbedder so
	// repeated queries skip the embedding round-trip.
	embedder Embedder
	// topK is the number of neighbors requested per search.
	topK int
	// minScore is the similarity threshold below which defined scores are
	// discarded. Zero or undefined scores are kept.
	minScore float32
}

// KnowledgeConfig holds the settings for constructing a KnowledgeStore.
type KnowledgeConfig struct {
	// Store is the backing vector index.
	Store VectorStore
	// Embedder converts text to vectors.
	Embedder Embedder
	// TopK is the number of neighbors per search. Defaults to 5 if zero.
	TopK int
	// MinScore is the similarity threshold. Defaults to 0.3 if zero.
	MinScore float32
}

// NewKnowledgeStore constructs a KnowledgeStore from the given config.
func NewKnowledgeStore(cfg *KnowledgeConfig) (*KnowledgeStore, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = 5
	}
	minScore := cfg.MinScore
	if minScore <= 0 {
		minScore = 0.3
	}
	return &KnowledgeStore{
		store:    cfg.Store,
		embedder: cfg.Embedder,
		topK:     topK,
		minScore: minScore,
	}, nil
}

// AddDocuments embeds and stores a batch of texts. metadatas may be nil;
// when provided it must be parallel to documents (validated at the request
// boundary, re-checked here). Embeddings are computed eagerly for the whole
// batch with bounded concurrency before any insertion — a single embed
// failure aborts the batch with nothing written. Identical texts are never
// deduplicated; every call assigns fresh ids.
//
// Returns the assigned document ids in input order.
func (k *KnowledgeStore) AddDocuments(ctx context.Context, documents []string, metadatas []map[string]string) ([]string, error) {
	if len(documents) == 0 {
		return nil, fmt.Errorf("rag: no documents to add")
	}
	if metadatas != nil && len(metadatas) != len(documents) {
		return nil, fmt.Errorf("rag: %d documents but %d metadatas", len(documents), len(metadatas))
	}

	embeddings := make([][]float32, len(documents))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for i, text := range documents {
		g.Go(func() error {
			vecs, err := k.embedder.Embed(gctx, []string{text})
			if err != nil {
				return fmt.Errorf("rag: embedding document %d failed: %w", i, err)
			}
			if len(vecs) != 1 {
				return fmt.Errorf("rag: expected 1 embedding for document %d, got %d", i, len(vecs))
			}
			embeddings[i] = vecs[0]
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	base := time.Now().UnixMilli()
	now := time.Now().UTC().Format(time.RFC3339)
	docs := make([]Document, len(documents))
	ids := make([]string, len(documents))
	for i, text := range documents {
		meta := map[string]string{}
		if metadatas != nil {
			for mk, mv := range metadatas[i] {
				meta[mk] = mv
			}
		}
		if meta["source"] == "" {
			meta["source"] = "manual"
		}
		if meta["type"] == "" {
			meta["type"] = "text"
		}
		meta["index"] = strconv.Itoa(i)
		if meta["timestamp"] == "" {
			meta["timestamp"] = now
		}

		ids[i] = fmt.Sprintf("doc-%d-%d", base, i)
		docs[i] = Document{
			ID:       ids[i],
			Content:  text,
			Metadata: meta,
		}
	}

	if err := k.store.Upsert(ctx, docs, embeddings); err != nil {
		return nil, err
	}
	return ids, nil
}

// Search embeds the query, fetches the configured top-K neighbors, and
// filters out hits whose similarity score is defined and below the threshold.
// Hits with a zero score are kept — the index did not report a distance, and
// dropping them silently would hide valid documents.
//
// When no hits survive, the result carries NoResultsSentinel and no sources.
func (k *KnowledgeStore) Search(ctx context.Context, query string) (*SearchResult, error) {
	vecs, err := k.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("rag: embedder returned empty result for query")
	}

	hits, err := k.store.Search(ctx, vecs[0], k.topK)
	if err != nil {
		return nil, err
	}

	var survivors []Document
	for _, hit := range hits {
		if hit.Score != 0 && hit.Score < k.minScore {
			continue
		}
		survivors = append(survivors, hit)
	}

	if len(survivors) == 0 {
		return &SearchResult{Content: NoResultsSentinel, Sources: []SourceDoc{}}, nil
	}

	var content strings.Builder
	sources := make([]SourceDoc, 0, len(survivors))
	for i, doc := range survivors {
		fmt.Fprintf(&content, "%d. %s\n\n", i+1, doc.Content)
		sources = append(sources, SourceDoc{
			Content:  doc.Content,
			Metadata: doc.Metadata,
			Score:    doc.Score,
		})
	}

	return &SearchResult{
		Content: strings.TrimRight(content.String(), "\n"),
		Sources: sources,
	}, nil
}

// Count returns the number of stored documents. Before the store has been
// initialized it reports 0 rather than an error so callers can use it to
// decide whether to bootstrap the collection.
func (k *KnowledgeStore) Count(ctx context.Context) (uint64, error) {
	n, err := k.store.Count(ctx)
	if errors.Is(err, ErrNotInitialized) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}
