package server

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/qdrant/go-client/qdrant"

	"github.com/AniketAslaliya/crewmate-go/internal/store"
)

// LLMPinger probes an LLM backend by sending a minimal single-token generate
// request. It satisfies the Pinger interface and is used by GET /api/ready.
type LLMPinger struct {
	// model is the chat model to probe.
	model model.ToolCallingChatModel
	// name identifies the backend in readiness responses (e.g. "ollama").
	name string
}

// NewLLMPinger constructs an LLMPinger for the given model and backend name.
func NewLLMPinger(m model.ToolCallingChatModel, name string) *LLMPinger {
	return &LLMPinger{model: m, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *LLMPinger) Name() string { return p.name }

// Ping sends a single short Generate call to the backend. Note this consumes
// a handful of tokens per probe, so readiness checks should not be polled
// aggressively.
func (p *LLMPinger) Ping(ctx context.Context) error {
	msgs := []*schema.Message{
		schema.UserMessage("ping"),
	}
	resp, err := p.model.Generate(ctx, msgs)
	if err != nil {
		return fmt.Errorf("generate failed: %w", err)
	}
	if resp == nil {
		return fmt.Errorf("generate returned nil response")
	}
	return nil
}

// QdrantPinger probes a Qdrant instance using its native HealthCheck RPC.
// It satisfies the Pinger interface and is used by GET /api/ready.
type QdrantPinger struct {
	// client is the Qdrant gRPC client to probe.
	client *qdrant.Client
}

// NewQdrantPinger constructs a QdrantPinger for the given Qdrant client.
func NewQdrantPinger(client *qdrant.Client) *QdrantPinger {
	return &QdrantPinger{client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC.
// Returns nil if Qdrant is reachable, or a descriptive error otherwise.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	_, err := p.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// RegistryPinger probes the thread registry with a cheap lookup.
// It satisfies the Pinger interface and is used by GET /api/ready.
type RegistryPinger struct {
	// registry is the thread registry to probe.
	registry store.ThreadRegistry
}

// NewRegistryPinger constructs a RegistryPinger for the given registry.
func NewRegistryPinger(registry store.ThreadRegistry) *RegistryPinger {
	return &RegistryPinger{registry: registry}
}

// Name returns the dependency label used in readiness responses.
func (p *RegistryPinger) Name() string { return "threads" }

// Ping performs a lookup against the registry to confirm the database is
// reachable and the schema is intact.
func (p *RegistryPinger) Ping(ctx context.Context) error {
	if _, err := p.registry.Lookup(ctx, "readyz"); err != nil {
		return fmt.Errorf("lookup failed: %w", err)
	}
	return nil
}
