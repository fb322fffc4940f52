package retrieval

import (
	"context"
	"log/slog"

	"github.com/ekap-project/knowledge-core/internal/domain"
	"github.com/ekap-project/knowledge-core/internal/search"
)

// DocumentationRetriever serves documentation-style sources (wikis,
// configuration stores) through the hybrid search engine.
type DocumentationRetriever struct {
	engine *search.HybridEngine
}

func NewDocumentationRetriever(engine *search.HybridEngine) *DocumentationRetriever {
	return &DocumentationRetriever{engine: engine}
}

func (r *DocumentationRetriever) Name() string { return "docs" }

func (r *DocumentationRetriever) Retrieve(ctx context.Context, query, area string, limit int, filters map[string]any) domain.RetrievalResult {
	return hybridRetrieve(ctx, r.engine, r.Name(), query, area, limit, filters)
}

// hybridRetrieve runs a hybrid search and folds the outcome into a result
// object. Errors are captured, never propagated.
func hybridRetrieve(ctx context.Context, engine *search.HybridEngine, name, query, area string, limit int, filters map[string]any) domain.RetrievalResult {
	ranked, err := engine.HybridSearch(ctx, area, query, limit, filters)
	if err != nil {
		slog.Error("Hybrid search failed", "retriever", name, "business_area", area, "error", err)
		return domain.RetrievalResult{
			RetrieverName: name,
			Message:       domain.MessageError,
			Error:         err.Error(),
		}
	}

	if len(ranked) == 0 {
		return domain.RetrievalResult{
			Documents:     []domain.RetrievedDocument{},
			RetrieverName: name,
			Message:       domain.MessageNoResults,
		}
	}

	docs := make([]domain.RetrievedDocument, 0, len(ranked))
	for _, item := range ranked {
		docs = append(docs, rankedToDocument(item))
	}

	return domain.RetrievalResult{
		Documents:     docs,
		RetrieverName: name,
		Message:       domain.MessageSuccess,
	}
}

func rankedToDocument(item domain.RankedResult) domain.RetrievedDocument {
	return domain.RetrievedDocument{
		Title:        payloadString(item.Payload, domain.ChunkFieldTitle),
		Content:      payloadString(item.Payload, domain.ChunkFieldContent),
		Source:       payloadString(item.Payload, domain.ChunkFieldSource),
		DocumentType: payloadString(item.Payload, domain.ChunkFieldDocumentType),
		Score:        item.RRFScore,
		URL:          payloadString(item.Payload, domain.ChunkFieldURL),
		Metadata:     map[string]any{"id": item.ID},
	}
}

func payloadString(payload map[string]any, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}
