package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

const (
	// chunkSize is the target chunk length in characters.
	chunkSize = 1000
	// chunkOverlap is the number of characters shared between adjacent chunks
	// so sentences split at a boundary stay retrievable.
	chunkOverlap = 100
)

var ingestBootstrap bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Chunk and ingest text files into the knowledge base",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if len(args) == 0 && !ingestBootstrap {
			return fmt.Errorf("nothing to ingest: pass files or use --bootstrap")
		}

		p, err := buildPipeline(ctx, rootLog, nil)
		if err != nil {
			return err
		}
		defer p.FlushTracing()
		defer p.Qdrant.Close()

		if ingestBootstrap {
			count, err := p.Knowledge.Count(ctx)
			if err != nil {
				return err
			}
			if count > 0 {
				rootLog.Info("bootstrap skipped: knowledge base not empty", slog.Uint64("documents", count))
			} else {
				ids, err := p.Knowledge.AddDocuments(ctx, bootstrapDocuments, bootstrapMetadatas)
				if err != nil {
					return fmt.Errorf("bootstrap failed: %w", err)
				}
				fmt.Printf("Seeded %d bootstrap documents.\n", len(ids))
			}
		}

		var total int
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			chunks := chunkText(string(data))
			if len(chunks) == 0 {
				rootLog.Warn("skipping empty file", slog.String("path", path))
				continue
			}
			metadatas := make([]map[string]string, len(chunks))
			for i := range chunks {
				metadatas[i] = map[string]string{
					"source": filepath.Base(path),
					"type":   "file",
				}
			}
			ids, err := p.Knowledge.AddDocuments(ctx, chunks, metadatas)
			if err != nil {
				return fmt.Errorf("ingest %s: %w", path, err)
			}
			total += len(ids)
			fmt.Printf("%s: %d chunks\n", path, len(ids))
		}

		count, err := p.Knowledge.Count(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Ingested %d chunks. Knowledge base now holds %d documents.\n", total, count)
		return nil
	},
}

// chunkText splits text into overlapping chunks, preferring to break at a
// paragraph or sentence boundary near the target size.
func chunkText(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + chunkSize
		if end >= len(text) {
			chunks = append(chunks, strings.TrimSpace(text[start:]))
			break
		}
		cut := breakPoint(text[start:end])
		chunk := strings.TrimSpace(text[start : start+cut])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		next := start + cut - chunkOverlap
		if next <= start {
			next = start + cut
		}
		start = next
	}
	return chunks
}

// breakPoint finds a natural split position in window, scanning backwards for
// a paragraph break, then a sentence end, then a space. Falls back to the full
// window when the text has no break at all.
func breakPoint(window string) int {
	if i := strings.LastIndex(window, "\n\n"); i > chunkSize/2 {
		return i
	}
	for i := len(window) - 1; i > chunkSize/2; i-- {
		if window[i] == '.' || window[i] == '!' || window[i] == '?' {
			return i + 1
		}
	}
	if i := strings.LastIndexByte(window, ' '); i > chunkSize/2 {
		return i
	}
	return len(window)
}

// bootstrapDocuments seed an empty knowledge base so the Local path has
// something to retrieve before any real ingestion happens.
var bootstrapDocuments = []string{
	"localmind is a retrieval-augmented answering service. Each query is classified " +
		"as Local, Web, or Both: Local queries are answered from the vector knowledge " +
		"base, Web queries from live search results, and Both queries merge the two.",
	"Documents are ingested with the `localmind ingest` command or POST /api/documents. " +
		"Text is split into overlapping chunks, embedded, and stored in Qdrant. " +
		"Retrieval returns the top matches above the similarity threshold.",
	"The HTTP API exposes POST /api/answer for questions (set \"stream\": true for " +
		"server-sent events), POST /api/documents for ingestion, and GET /api/status " +
		"for operational state. Authentication uses a Bearer token when " +
		"LOCALMIND_API_KEY is set.",
}

var bootstrapMetadatas = []map[string]string{
	{"source": "bootstrap", "type": "text", "topic": "overview"},
	{"source": "bootstrap", "type": "text", "topic": "ingestion"},
	{"source": "bootstrap", "type": "text", "topic": "api"},
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestBootstrap, "bootstrap", false, "seed default documents when the knowledge base is empty")
}
