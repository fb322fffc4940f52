package search

import (
	"sort"

	"github.com/ekap-project/knowledge-core/internal/domain"
)

// DefaultRRFConstant is the standard k used by Reciprocal Rank Fusion.
const DefaultRRFConstant = 60

// Candidate is one scored hit from a single retrieval signal (dense or
// sparse). Score scales differ between signals; fusion uses ranks only.
type Candidate struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// ReciprocalRankFusion combines dense and sparse candidate lists by summing
// 1/(k+rank) contributions per document id, with 1-based ranks. A document
// present in only one list still receives its single contribution. RRF needs
// no score normalization between the heterogeneous scales (cosine similarity
// vs BM25), which is why it is used here instead of weighted score blending.
//
// The fused payload is taken from whichever list saw the id first, with the
// dense list processed first. Results are ordered by fused score descending;
// ties break on id for determinism.
func ReciprocalRankFusion(dense, sparse []Candidate, k int) []domain.RankedResult {
	if k <= 0 {
		k = DefaultRRFConstant
	}

	scores := make(map[string]float64)
	payloads := make(map[string]map[string]any)

	accumulate := func(list []Candidate) {
		for i, c := range list {
			if c.ID == "" {
				continue
			}
			rank := i + 1
			scores[c.ID] += 1.0 / float64(k+rank)
			if _, seen := payloads[c.ID]; !seen {
				payloads[c.ID] = c.Payload
			}
		}
	}
	accumulate(dense)
	accumulate(sparse)

	fused := make([]domain.RankedResult, 0, len(scores))
	for id, score := range scores {
		fused = append(fused, domain.RankedResult{
			ID:       id,
			RRFScore: score,
			Payload:  payloads[id],
		})
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].RRFScore != fused[j].RRFScore {
			return fused[i].RRFScore > fused[j].RRFScore
		}
		return fused[i].ID < fused[j].ID
	})

	return fused
}
