package retrieval

import (
	"context"

	"github.com/ekap-project/knowledge-core/internal/domain"
	"github.com/ekap-project/knowledge-core/internal/search"
)

// LineageRetriever serves data-lineage catalog sources. Lineage documents
// are indexed like any other chunk; the retriever narrows search to the
// lineage document type.
type LineageRetriever struct {
	engine *search.HybridEngine
}

func NewLineageRetriever(engine *search.HybridEngine) *LineageRetriever {
	return &LineageRetriever{engine: engine}
}

func (r *LineageRetriever) Name() string { return "lineage" }

func (r *LineageRetriever) Retrieve(ctx context.Context, query, area string, limit int, filters map[string]any) domain.RetrievalResult {
	scoped := make(map[string]any, len(filters)+1)
	for k, v := range filters {
		scoped[k] = v
	}
	if _, ok := scoped["document_type"]; !ok {
		scoped["document_type"] = "lineage"
	}
	return hybridRetrieve(ctx, r.engine, r.Name(), query, area, limit, scoped)
}
