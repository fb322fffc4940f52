package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ekap-project/knowledge-core/internal/config"
	"github.com/ekap-project/knowledge-core/internal/domain"
)

// VectorIndex is the external dense index consumed by the hybrid engine.
// Filters are applied server-side.
type VectorIndex interface {
	Search(ctx context.Context, area string, vector []float32, limit int, filters map[string]any) ([]Candidate, error)
}

// Embedder converts text into dense vectors.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// HybridEngine fuses dense (vector similarity) and sparse (BM25 lexical)
// rankings with Reciprocal Rank Fusion.
//
// The dense path is the primary recall source: a dense failure fails the
// whole hybrid call. The sparse path degrades silently - a missing lexical
// index for an area yields dense-only ranking.
type HybridEngine struct {
	lexical  *LexicalIndex
	vectors  VectorIndex
	embedder Embedder
	cfg      config.SearchSettings
}

// NewHybridEngine creates a hybrid engine.
func NewHybridEngine(lexical *LexicalIndex, vectors VectorIndex, embedder Embedder, cfg config.SearchSettings) *HybridEngine {
	return &HybridEngine{
		lexical:  lexical,
		vectors:  vectors,
		embedder: embedder,
		cfg:      cfg,
	}
}

// Lexical exposes the per-area lexical index for ingestion rebuilds.
func (e *HybridEngine) Lexical() *LexicalIndex {
	return e.lexical
}

// DenseSearch embeds the query and searches the external vector index.
func (e *HybridEngine) DenseSearch(ctx context.Context, area, query string, topK int, filters map[string]any) ([]Candidate, error) {
	vector, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	candidates, err := e.vectors.Search(ctx, area, vector, topK, filters)
	if err != nil {
		return nil, fmt.Errorf("dense search failed: %w", err)
	}

	slog.Debug("Dense search completed", "business_area", area, "results_count", len(candidates))
	return candidates, nil
}

// SparseSearch scores the area's lexical index. Empty when no index exists.
func (e *HybridEngine) SparseSearch(area, query string, topK int) []Candidate {
	candidates := e.lexical.Search(area, query, topK)
	slog.Debug("Sparse search completed", "business_area", area, "results_count", len(candidates))
	return candidates
}

// HybridSearch runs both signals at candidate depth, fuses them with RRF and
// returns the top topK fused results.
func (e *HybridEngine) HybridSearch(ctx context.Context, area, query string, topK int, filters map[string]any) ([]domain.RankedResult, error) {
	if topK <= 0 {
		topK = e.cfg.TopK
	}
	depth := topK * e.cfg.CandidateDepth

	dense, err := e.DenseSearch(ctx, area, query, depth, filters)
	if err != nil {
		// No silent degrade on the dense path: it is the primary recall
		// source and its absence would go unnoticed otherwise.
		return nil, err
	}

	sparse := e.SparseSearch(area, query, depth)

	fused := ReciprocalRankFusion(dense, sparse, e.cfg.RRFConstant)
	if len(fused) > topK {
		fused = fused[:topK]
	}

	slog.Info("Hybrid search completed",
		"business_area", area,
		"dense_count", len(dense),
		"sparse_count", len(sparse),
		"results_count", len(fused))

	return fused, nil
}
