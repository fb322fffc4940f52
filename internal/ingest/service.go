package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ekap-project/knowledge-core/internal/domain"
	"github.com/ekap-project/knowledge-core/internal/search"
)

// SourceSync is the per-source outcome of one ingestion cycle.
type SourceSync struct {
	Source    string    `json:"source"`
	Documents int       `json:"documents"`
	Changes   ChangeSet `json:"changes"`
	Error     string    `json:"error,omitempty"`
}

// CycleResult summarizes one ingestion cycle for a business area.
type CycleResult struct {
	BusinessArea string       `json:"business_area"`
	Indexed      int          `json:"indexed"`
	Sources      []SourceSync `json:"sources"`
}

// Ingestor runs ingestion cycles. Each cycle fetches every source for an
// area, records change sets against the previous sync, and rebuilds the
// area's lexical index wholesale.
type Ingestor struct {
	lexical  *search.LexicalIndex
	meta     *MetadataStore
	fetchers map[string][]Fetcher
}

func NewIngestor(lexical *search.LexicalIndex, meta *MetadataStore) *Ingestor {
	return &Ingestor{
		lexical:  lexical,
		meta:     meta,
		fetchers: make(map[string][]Fetcher),
	}
}

// AddFetcher binds a fetcher to a business area.
func (i *Ingestor) AddFetcher(area string, fetcher Fetcher) {
	i.fetchers[area] = append(i.fetchers[area], fetcher)
}

// RunCycle ingests one business area. A failing source is recorded and
// skipped; the index is rebuilt from whatever the healthy sources produced.
func (i *Ingestor) RunCycle(ctx context.Context, area string) (CycleResult, error) {
	fetchers := i.fetchers[area]
	if len(fetchers) == 0 {
		return CycleResult{}, fmt.Errorf("no fetchers registered for business area %q", area)
	}

	result := CycleResult{BusinessArea: area}
	var documents []domain.Document

	for _, fetcher := range fetchers {
		sync := SourceSync{Source: fetcher.Source()}

		docs, err := fetcher.FetchAll(ctx)
		if err != nil {
			slog.Error("Fetch failed", "business_area", area, "source", sync.Source, "error", err)
			sync.Error = err.Error()
			result.Sources = append(result.Sources, sync)
			continue
		}
		sync.Documents = len(docs)
		documents = append(documents, docs...)

		currentIDs := make([]string, 0, len(docs))
		for _, doc := range docs {
			currentIDs = append(currentIDs, doc.ID)
		}

		stored, _ := i.meta.Get(area, sync.Source)
		sync.Changes = DetectChanges(stored.DocumentIDs, currentIDs)

		if err := i.meta.Update(area, sync.Source, currentIDs); err != nil {
			slog.Error("Failed to persist sync metadata", "business_area", area, "source", sync.Source, "error", err)
			sync.Error = err.Error()
		}

		result.Sources = append(result.Sources, sync)
	}

	if err := i.lexical.Rebuild(area, documents); err != nil {
		return result, fmt.Errorf("failed to rebuild lexical index for %q: %w", area, err)
	}
	result.Indexed = len(documents)

	slog.Info("Ingestion cycle completed",
		"business_area", area, "sources", len(result.Sources), "indexed", result.Indexed)
	return result, nil
}
