package search

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	index "github.com/blevesearch/bleve_index_api"

	"github.com/ekap-project/knowledge-core/internal/domain"
)

// MaxIndexBatchSize is the maximum number of chunks per index batch.
const MaxIndexBatchSize = 100

// LexicalIndex maintains one in-memory BM25-ranked index per business area.
// An ingestion cycle rebuilds an area's index wholesale and swaps it in under
// a write lock, so concurrent readers always see a consistent index.
type LexicalIndex struct {
	mu      sync.RWMutex
	indexes map[string]bleve.Index
	// docs mirrors the indexed chunks so search hits can carry the full
	// payload, including metadata bleve does not store.
	docs map[string]map[string]domain.Document
}

// NewLexicalIndex creates an empty lexical index.
func NewLexicalIndex() *LexicalIndex {
	return &LexicalIndex{
		indexes: make(map[string]bleve.Index),
		docs:    make(map[string]map[string]domain.Document),
	}
}

// createChunkMapping creates the bleve index mapping for knowledge chunks.
func createChunkMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	// Content field - analyzed for full-text scoring
	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = standard.Name
	contentField.Store = false
	docMapping.AddFieldMappingsAt(domain.ChunkFieldContent, contentField)

	// Title - analyzed, contributes to matching
	titleField := bleve.NewTextFieldMapping()
	titleField.Analyzer = standard.Name
	titleField.Store = false
	docMapping.AddFieldMappingsAt(domain.ChunkFieldTitle, titleField)

	// Source - keyword (not analyzed)
	sourceField := bleve.NewTextFieldMapping()
	sourceField.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt(domain.ChunkFieldSource, sourceField)

	// Document type - keyword
	typeField := bleve.NewTextFieldMapping()
	typeField.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt(domain.ChunkFieldDocumentType, typeField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name
	// bleve defaults to TF-IDF; ranking here is BM25.
	indexMapping.ScoringModel = index.BM25Scoring

	return indexMapping
}

// chunkEntry is the shape handed to bleve for indexing.
type chunkEntry struct {
	Title        string `json:"title"`
	Content      string `json:"content"`
	Source       string `json:"source"`
	DocumentType string `json:"document_type"`
}

// Rebuild replaces the area's index with one built from the given chunks.
// The previous index, if any, is closed after the swap.
func (l *LexicalIndex) Rebuild(area string, chunks []domain.Document) error {
	index, err := bleve.NewMemOnly(createChunkMapping())
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	byID := make(map[string]domain.Document, len(chunks))
	batch := index.NewBatch()
	batchSize := 0

	for _, chunk := range chunks {
		if chunk.ID == "" {
			continue
		}
		byID[chunk.ID] = chunk

		entry := chunkEntry{
			Title:        chunk.Title,
			Content:      chunk.Content,
			Source:       chunk.Source,
			DocumentType: chunk.DocumentType,
		}
		if err := batch.Index(chunk.ID, entry); err != nil {
			return fmt.Errorf("failed to index chunk %s: %w", chunk.ID, err)
		}
		batchSize++

		if batchSize >= MaxIndexBatchSize {
			if err := index.Batch(batch); err != nil {
				return fmt.Errorf("batch index failed: %w", err)
			}
			batch = index.NewBatch()
			batchSize = 0
		}
	}

	if batchSize > 0 {
		if err := index.Batch(batch); err != nil {
			return fmt.Errorf("batch index failed: %w", err)
		}
	}

	l.mu.Lock()
	old := l.indexes[area]
	l.indexes[area] = index
	l.docs[area] = byID
	l.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			slog.Error("Failed to close replaced index", "business_area", area, "error", err)
		}
	}

	slog.Info("Rebuilt lexical index", "business_area", area, "chunk_count", len(byID))
	return nil
}

// Search scores indexed chunks for the area against the query and returns the
// top candidates by descending score. If no index exists for the area the
// result is empty, never an error: hybrid search then degrades to dense-only.
func (l *LexicalIndex) Search(area, query string, topK int) []Candidate {
	l.mu.RLock()
	defer l.mu.RUnlock()

	index, ok := l.indexes[area]
	if !ok {
		slog.Warn("Lexical index not found", "business_area", area)
		return nil
	}

	matchQuery := bleve.NewMatchQuery(query)
	matchQuery.SetField(domain.ChunkFieldContent)

	searchReq := bleve.NewSearchRequest(matchQuery)
	searchReq.Size = topK

	results, err := index.Search(searchReq)
	if err != nil {
		slog.Error("Lexical search failed", "business_area", area, "error", err)
		return nil
	}

	byID := l.docs[area]
	candidates := make([]Candidate, 0, len(results.Hits))
	for _, hit := range results.Hits {
		doc, ok := byID[hit.ID]
		if !ok {
			continue
		}
		candidates = append(candidates, Candidate{
			ID:      hit.ID,
			Score:   hit.Score,
			Payload: chunkPayload(doc),
		})
	}

	return candidates
}

// HasIndex reports whether an index exists for the area.
func (l *LexicalIndex) HasIndex(area string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.indexes[area]
	return ok
}

// DocumentCount returns the number of chunks indexed for the area.
func (l *LexicalIndex) DocumentCount(area string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.docs[area])
}

// Close releases all per-area indexes.
func (l *LexicalIndex) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for area, index := range l.indexes {
		if err := index.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close index for %s: %w", area, err)
		}
		delete(l.indexes, area)
		delete(l.docs, area)
	}
	return firstErr
}

// chunkPayload flattens a document into the payload shape shared with the
// dense index, so fusion sees one schema regardless of which signal hit.
func chunkPayload(doc domain.Document) map[string]any {
	payload := map[string]any{
		domain.ChunkFieldID:           doc.ID,
		domain.ChunkFieldTitle:        doc.Title,
		domain.ChunkFieldContent:      doc.Content,
		domain.ChunkFieldSource:       doc.Source,
		domain.ChunkFieldDocumentType: doc.DocumentType,
	}
	if doc.URL != "" {
		payload[domain.ChunkFieldURL] = doc.URL
	}
	for k, v := range doc.Metadata {
		if _, reserved := payload[k]; !reserved {
			payload[k] = v
		}
	}
	return payload
}
