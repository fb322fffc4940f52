package retrieval

import (
	"context"

	"github.com/ekap-project/knowledge-core/internal/domain"
	"github.com/ekap-project/knowledge-core/internal/search"
)

// CodeRetriever serves code-repository sources. It narrows hybrid search to
// code-typed chunks unless the caller filtered on document type already.
type CodeRetriever struct {
	engine *search.HybridEngine
}

func NewCodeRetriever(engine *search.HybridEngine) *CodeRetriever {
	return &CodeRetriever{engine: engine}
}

func (r *CodeRetriever) Name() string { return "code" }

func (r *CodeRetriever) Retrieve(ctx context.Context, query, area string, limit int, filters map[string]any) domain.RetrievalResult {
	scoped := make(map[string]any, len(filters)+1)
	for k, v := range filters {
		scoped[k] = v
	}
	if _, ok := scoped["document_type"]; !ok {
		scoped["document_type"] = "code"
	}
	return hybridRetrieve(ctx, r.engine, r.Name(), query, area, limit, scoped)
}
