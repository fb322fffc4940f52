// Package vector implements the dense vector index interface on top of
// Weaviate. Chunks are stored in a single class partitioned by the
// business_area property; filters are applied server-side.
package vector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/ekap-project/knowledge-core/internal/config"
	"github.com/ekap-project/knowledge-core/internal/domain"
	"github.com/ekap-project/knowledge-core/internal/search"
)

// chunkFields are the stored properties returned with every hit.
var chunkFields = []graphql.Field{
	{Name: domain.ChunkFieldTitle},
	{Name: domain.ChunkFieldContent},
	{Name: domain.ChunkFieldSource},
	{Name: domain.ChunkFieldDocumentType},
	{Name: domain.ChunkFieldURL},
	{Name: "document_id"},
	{Name: "business_area"},
	{Name: "_additional", Fields: []graphql.Field{
		{Name: "id"},
		{Name: "certainty"},
	}},
}

// Index is a Weaviate-backed implementation of search.VectorIndex.
type Index struct {
	client    *weaviate.Client
	className string
}

// NewIndex creates a Weaviate vector index client.
func NewIndex(cfg config.VectorSettings) (*Index, error) {
	wcfg := weaviate.Config{
		Host:   cfg.Host,
		Scheme: cfg.Scheme,
	}
	if cfg.APIKey != "" {
		wcfg.AuthConfig = auth.ApiKey{Value: cfg.APIKey}
	}

	client, err := weaviate.NewClient(wcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}

	return &Index{
		client:    client,
		className: cfg.ClassName,
	}, nil
}

// Search issues a nearVector similarity query scoped to the business area.
// String-valued filters become server-side equality conditions on matching
// chunk properties.
func (i *Index) Search(ctx context.Context, area string, vector []float32, limit int, filterMap map[string]any) ([]search.Candidate, error) {
	where := i.buildWhere(area, filterMap)

	nearVector := i.client.GraphQL().NearVectorArgBuilder().
		WithVector(vector)

	result, err := i.client.GraphQL().Get().
		WithClassName(i.className).
		WithFields(chunkFields...).
		WithWhere(where).
		WithNearVector(nearVector).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate search failed: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("weaviate search error: %s", result.Errors[0].Message)
	}

	candidates := i.parseCandidates(result)
	slog.Debug("Vector search completed", "business_area", area, "results_count", len(candidates))
	return candidates, nil
}

func (i *Index) buildWhere(area string, filterMap map[string]any) *filters.WhereBuilder {
	operands := []*filters.WhereBuilder{
		filters.Where().
			WithPath([]string{"business_area"}).
			WithOperator(filters.Equal).
			WithValueString(area),
	}

	for key, value := range filterMap {
		str, ok := value.(string)
		if !ok || str == "" {
			continue
		}
		operands = append(operands, filters.Where().
			WithPath([]string{key}).
			WithOperator(filters.Equal).
			WithValueString(str))
	}

	if len(operands) == 1 {
		return operands[0]
	}
	return filters.Where().
		WithOperator(filters.And).
		WithOperands(operands)
}

func (i *Index) parseCandidates(result *models.GraphQLResponse) []search.Candidate {
	data, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	objects, ok := data[i.className].([]interface{})
	if !ok {
		return nil
	}

	candidates := make([]search.Candidate, 0, len(objects))
	for _, obj := range objects {
		m, ok := obj.(map[string]interface{})
		if !ok {
			continue
		}

		var id string
		var certainty float64
		if additional, ok := m["_additional"].(map[string]interface{}); ok {
			id = getString(additional, "id")
			if c, ok := additional["certainty"].(float64); ok {
				certainty = c
			}
		}
		if docID := getString(m, "document_id"); docID != "" {
			id = docID
		}
		if id == "" {
			continue
		}

		payload := map[string]any{
			domain.ChunkFieldID:           id,
			domain.ChunkFieldTitle:        getString(m, domain.ChunkFieldTitle),
			domain.ChunkFieldContent:      getString(m, domain.ChunkFieldContent),
			domain.ChunkFieldSource:       getString(m, domain.ChunkFieldSource),
			domain.ChunkFieldDocumentType: getString(m, domain.ChunkFieldDocumentType),
			domain.ChunkFieldURL:          getString(m, domain.ChunkFieldURL),
		}

		candidates = append(candidates, search.Candidate{
			ID:      id,
			Score:   certainty,
			Payload: payload,
		})
	}
	return candidates
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
