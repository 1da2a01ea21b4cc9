package rag

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// Payload keys reserved for the typed metadata fields. Free-form extras must
// not use these names; colliding extras are dropped on read.
const (
	payloadNamespace        = "namespace"
	payloadSourceDocument   = "source_document"
	payloadPreviewText      = "preview_text"
	payloadOriginalLanguage = "original_language"
)

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use. Required.
	Collection string

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements VectorStore backed by a single Qdrant collection.
// Namespaces are realised as a keyword payload field applied as a Must filter
// on every query, delete, and count, so records can never cross tenants.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// NewQdrantStore creates a QdrantStore from the given config. The collection
// is not touched until EnsureReady is called with the embedding dimension.
func NewQdrantStore(cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant: collection name is required: %w", ErrConfiguration)
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	return &QdrantStore{client: client, cfg: cfg}, nil
}

// Client exposes the underlying Qdrant gRPC client for health probes.
func (s *QdrantStore) Client() *qdrant.Client {
	return s.client
}

// EnsureReady creates the collection for the given embedding dimension if it
// does not already exist. Idempotent; safe to call on every startup.
func (s *QdrantStore) EnsureReady(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("qdrant: invalid embedding dimension %d", dimension)
	}

	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}

	return nil
}

// Upsert stores or overwrites a batch of records under the given namespace.
// Qdrant applies the batch atomically per call, which is what gives the
// all-or-nothing guarantee on the ingestion path.
func (s *QdrantStore) Upsert(ctx context.Context, namespace string, records []Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, rec := range records {
		if err := rec.Metadata.validate(); err != nil {
			return 0, err
		}

		payload := map[string]interface{}{
			payloadNamespace:      namespace,
			payloadSourceDocument: rec.Metadata.SourceDocument,
			payloadPreviewText:    rec.Metadata.PreviewText,
		}
		if rec.Metadata.OriginalLanguage != "" {
			payload[payloadOriginalLanguage] = rec.Metadata.OriginalLanguage
		}
		for k, v := range rec.Metadata.Extra {
			if isReservedPayloadKey(k) {
				continue
			}
			payload[k] = v
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(rec.ID),
			Vectors: qdrant.NewVectors(rec.Vector...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         points,
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant: upsert failed: %w", err)
	}

	return len(points), nil
}

// QueryTopK performs a cosine similarity search scoped to the namespace and
// returns the top-k results in descending score order.
func (s *QdrantStore) QueryTopK(ctx context.Context, namespace string, vector []float32, k int) ([]Result, error) {
	limit := uint64(k)
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		Filter:         namespaceFilter(namespace),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: query failed: %w", err)
	}

	results := make([]Result, 0, len(points))
	for _, p := range points {
		res := Result{
			ID:    p.Id.GetUuid(),
			Score: p.Score,
		}
		res.Metadata = metadataFromPayload(p.Payload)
		results = append(results, res)
	}

	return results, nil
}

// DeleteNamespace removes every record in the namespace. Deleting a namespace
// that is already empty is not an error.
func (s *QdrantStore) DeleteNamespace(ctx context.Context, namespace string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: namespaceFilter(namespace),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete namespace %q failed: %w", namespace, err)
	}
	return nil
}

// Count returns the exact number of records in the namespace.
func (s *QdrantStore) Count(ctx context.Context, namespace string) (uint64, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.cfg.Collection,
		Filter:         namespaceFilter(namespace),
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant: count failed: %w", err)
	}
	return n, nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// namespaceFilter builds the Must filter that scopes an operation to one
// namespace. Every read and delete goes through this; it is the tenant
// isolation boundary.
func namespaceFilter(namespace string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			{
				ConditionOneOf: &qdrant.Condition_Field{
					Field: &qdrant.FieldCondition{
						Key: payloadNamespace,
						Match: &qdrant.Match{
							MatchValue: &qdrant.Match_Keyword{Keyword: namespace},
						},
					},
				},
			},
		},
	}
}

// metadataFromPayload maps a Qdrant payload back into the typed Metadata
// union. Unknown string keys land in Extra.
func metadataFromPayload(payload map[string]*qdrant.Value) Metadata {
	var md Metadata
	for k, v := range payload {
		sv, ok := v.Kind.(*qdrant.Value_StringValue)
		if !ok {
			continue
		}
		switch k {
		case payloadNamespace:
			// internal partition key, not part of the caller-visible metadata
		case payloadSourceDocument:
			md.SourceDocument = sv.StringValue
		case payloadPreviewText:
			md.PreviewText = sv.StringValue
		case payloadOriginalLanguage:
			md.OriginalLanguage = sv.StringValue
		default:
			if md.Extra == nil {
				md.Extra = make(map[string]string)
			}
			md.Extra[k] = sv.StringValue
		}
	}
	return md
}

// isReservedPayloadKey reports whether k is one of the typed payload fields.
func isReservedPayloadKey(k string) bool {
	switch k {
	case payloadNamespace, payloadSourceDocument, payloadPreviewText, payloadOriginalLanguage:
		return true
	}
	return false
}
