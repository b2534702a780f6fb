// Package rag implements the local knowledge side of the answering pipeline:
// vector storage behind a narrow interface, and the KnowledgeStore that turns
// raw text into embedded documents and similarity searches into ranked,
// attributable context.
package rag

import (
	"context"
	"errors"
)

// ErrNotInitialized is returned when a search or upsert reaches the vector
// store before its collection has been initialized. This is a programming
// error at the call site, not a transient condition.
var ErrNotInitialized = errors.New("rag: vector store not initialized")

// Document represents a unit of stored or retrieved knowledge.
type Document struct {
	// ID is the unique identifier assigned at insertion time.
	ID string

	// Content is the raw text of the document.
	Content string

	// Metadata holds free-form key-value pairs (source, type, index, timestamp).
	Metadata map[string]string

	// Score is the cosine similarity assigned during retrieval (0.0–1.0).
	// Zero value means the score was not computed.
	Score float32
}

// VectorStore is the interface for persisting and searching document
// embeddings. Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Init idempotently ensures the backing collection exists, creating it if
	// absent. It must be called before any other operation.
	Init(ctx context.Context) error

	// Upsert stores a batch of documents with their pre-computed embeddings.
	// embeddings[i] is the vector for docs[i]; the slices must be parallel.
	Upsert(ctx context.Context, docs []Document, embeddings [][]float32) error

	// Search returns the top-k most similar documents for the query embedding,
	// each carrying its similarity score.
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Document, error)

	// Count returns the number of stored documents.
	Count(ctx context.Context) (uint64, error)

	// Delete removes documents by their IDs.
	Delete(ctx context.Context, ids []string) error

	// Close releases any resources held by the store.
	Close() error
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
