package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/localmind/localmind/internal/agent"
	"github.com/localmind/localmind/internal/embedder"
	"github.com/localmind/localmind/internal/llm"
	"github.com/localmind/localmind/internal/provider"
	"github.com/localmind/localmind/internal/rag"
	"github.com/localmind/localmind/internal/server"
	"github.com/localmind/localmind/internal/tracing"
	"github.com/localmind/localmind/internal/websearch"
)

// defaultCollection is the Qdrant collection used when QDRANT_COLLECTION is unset.
const defaultCollection = "localmind_docs"

// pipeline bundles the fully wired answering stack shared by serve, ask,
// ingest, and status.
type pipeline struct {
	Agent     *agent.Agent
	Knowledge *rag.KnowledgeStore
	Qdrant    *rag.QdrantStore
	Web       *websearch.Client
	Provider  *provider.Config

	// FlushTracing sends any buffered traces. Always non-nil.
	FlushTracing func()
}

// buildPipeline wires provider, embedder, vector store, web search, and agent
// from the environment. reg may be nil when no metrics endpoint exists (ask,
// ingest); the embedding cache then runs uncounted.
func buildPipeline(ctx context.Context, log *slog.Logger, reg *prometheus.Registry) (*pipeline, error) {
	flush := func() {}
	if handler, f, ok := tracing.Setup(); ok {
		callbacks.AppendGlobalHandlers(handler)
		flush = f
		log.Info("langfuse tracing enabled")
	}

	provCfg := provider.ConfigFromEnv()
	chatModel, err := provider.New(ctx, provCfg)
	if err != nil {
		return nil, err
	}
	genClient, err := llm.New(&llm.Config{ChatModel: chatModel, ModelName: provCfg.ModelName()})
	if err != nil {
		return nil, err
	}

	clfClient := genClient
	if os.Getenv("CLASSIFIER_MODEL") != "" {
		clfCfg := provider.ClassifierConfigFromEnv()
		clfModel, err := provider.New(ctx, clfCfg)
		if err != nil {
			return nil, fmt.Errorf("classifier model: %w", err)
		}
		clfClient, err = llm.New(&llm.Config{ChatModel: clfModel, ModelName: clfCfg.ModelName()})
		if err != nil {
			return nil, err
		}
		log.Info("using dedicated classifier model", slog.String("model", clfCfg.ModelName()))
	}

	if err := embedder.Validate(log); err != nil {
		return nil, err
	}
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, err
	}
	cacheCfg := &embedder.CacheConfig{Capacity: envInt("EMBEDDING_CACHE_SIZE", 0)}
	if reg != nil {
		cacheCfg.Hits, cacheCfg.Misses = server.NewCacheCounters(reg, "embedding")
	}
	cached, err := embedder.NewCachedEmbedder(emb, cacheCfg)
	if err != nil {
		return nil, err
	}

	embBackend := os.Getenv("EMBEDDING_PROVIDER")
	if embBackend == "" {
		embBackend = envOr("MODEL_PROVIDER", "ollama")
	}

	qdrantStore, err := rag.NewQdrantStore(&rag.QdrantConfig{
		Host:       envOr("QDRANT_HOST", "localhost"),
		Port:       envInt("QDRANT_PORT", 6334),
		Collection: envOr("QDRANT_COLLECTION", defaultCollection),
		VectorSize: uint64(embedder.DefaultDimensions(embBackend)),
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		return nil, err
	}
	if err := qdrantStore.Init(ctx); err != nil {
		return nil, err
	}

	knowledge, err := rag.NewKnowledgeStore(&rag.KnowledgeConfig{
		Store:    qdrantStore,
		Embedder: cached,
		TopK:     envInt("RAG_TOP_K", 0),
		MinScore: envFloat32("RAG_MIN_SCORE", 0),
	})
	if err != nil {
		return nil, err
	}

	web := websearch.New(&websearch.Config{
		APIKey:     os.Getenv("TAVILY_API_KEY"),
		MaxResults: envInt("WEB_SEARCH_MAX_RESULTS", 0),
		Timeout:    envDuration("WEB_SEARCH_TIMEOUT", 0),
		CacheTTL:   envDuration("WEB_SEARCH_CACHE_TTL", 0),
	})
	if !web.Configured() {
		log.Warn("TAVILY_API_KEY not set — web search disabled, all queries answered locally")
	}

	ag, err := agent.New(&agent.Config{
		Generator:  genClient,
		Classifier: clfClient,
		Knowledge:  knowledge,
		Web:        web,
	})
	if err != nil {
		return nil, err
	}

	return &pipeline{
		Agent:        ag,
		Knowledge:    knowledge,
		Qdrant:       qdrantStore,
		Web:          web,
		Provider:     provCfg,
		FlushTracing: flush,
	}, nil
}

// envOr returns the named env var or fallback when unset.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envInt parses the named env var as an int, returning fallback on absence or
// parse failure.
func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// envFloat32 parses the named env var as a float32.
func envFloat32(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}

// envDuration parses the named env var as a time.Duration (e.g. "10s").
func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
