package server

import (
	"context"

	"github.com/localmind/localmind/internal/provider"
	"github.com/localmind/localmind/internal/rag"
	"github.com/localmind/localmind/internal/store"
)

// QdrantPinger probes the vector store for readiness checks.
type QdrantPinger struct {
	Store *rag.QdrantStore
}

func (p *QdrantPinger) Name() string { return "qdrant" }

func (p *QdrantPinger) Ping(ctx context.Context) error {
	return p.Store.Ping(ctx)
}

// ModelPinger probes the LLM backend for readiness checks.
type ModelPinger struct {
	// BackendName identifies the provider in the readiness report.
	BackendName string
	Checker     provider.HealthChecker
}

func (p *ModelPinger) Name() string { return p.BackendName }

func (p *ModelPinger) Ping(ctx context.Context) error {
	return p.Checker.HealthCheck(ctx)
}

// HistoryPinger probes the answer log for readiness checks.
type HistoryPinger struct {
	Log store.AnswerLog
}

func (p *HistoryPinger) Name() string { return "history" }

func (p *HistoryPinger) Ping(ctx context.Context) error {
	return p.Log.Ping(ctx)
}
