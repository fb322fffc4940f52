package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ekap-project/knowledge-core/internal/domain"
	"github.com/ekap-project/knowledge-core/internal/graph"
)

// GraphRetriever answers structural questions against the derived code
// graph. It matches nodes by name and reports their immediate relationships.
// An unreachable graph store degrades this retriever only; other sources
// are unaffected.
type GraphRetriever struct {
	store graph.Store
}

func NewGraphRetriever(store graph.Store) *GraphRetriever {
	return &GraphRetriever{store: store}
}

func (r *GraphRetriever) Name() string { return "graph" }

func (r *GraphRetriever) Retrieve(ctx context.Context, query, area string, limit int, filters map[string]any) domain.RetrievalResult {
	if r.store == nil || !r.store.Available(ctx) {
		slog.Warn("Graph store unavailable", "business_area", area)
		return domain.RetrievalResult{
			RetrieverName: r.Name(),
			Message:       domain.MessageError,
			Error:         "graph store unavailable",
		}
	}

	nodes, err := r.store.MatchNodes(ctx, area, query, limit)
	if err != nil {
		slog.Error("Graph node match failed", "business_area", area, "error", err)
		return domain.RetrievalResult{
			RetrieverName: r.Name(),
			Message:       domain.MessageError,
			Error:         err.Error(),
		}
	}

	if len(nodes) == 0 {
		return domain.RetrievalResult{
			Documents:     []domain.RetrievedDocument{},
			RetrieverName: r.Name(),
			Message:       domain.MessageNoResults,
		}
	}

	docs := make([]domain.RetrievedDocument, 0, len(nodes))
	for _, node := range nodes {
		docs = append(docs, r.describeNode(ctx, node))
	}

	return domain.RetrievalResult{
		Documents:     docs,
		RetrieverName: r.Name(),
		Message:       domain.MessageSuccess,
	}
}

// describeNode renders one matched node with its one-hop relationships as a
// text document the downstream consumer can read directly.
func (r *GraphRetriever) describeNode(ctx context.Context, node domain.GraphNode) domain.RetrievedDocument {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (repo %s)", node.Kind, node.Name, node.Repo)
	if node.FilePath != "" {
		fmt.Fprintf(&b, "\nDefined in %s", node.FilePath)
		if node.LineStart > 0 {
			fmt.Fprintf(&b, ":%d", node.LineStart)
		}
	}

	neighbors, edges, err := r.store.Neighbors(ctx, node.ID, 1)
	if err != nil {
		slog.Warn("Graph neighbor lookup failed", "node_id", node.ID, "error", err)
	} else if len(edges) > 0 {
		names := make(map[string]string, len(neighbors))
		for _, n := range neighbors {
			names[n.ID] = n.Name
		}
		b.WriteString("\nRelationships:")
		for _, edge := range edges {
			from, to := edge.FromID, edge.ToID
			if name, ok := names[from]; ok {
				from = name
			}
			if name, ok := names[to]; ok {
				to = name
			}
			if from == node.ID {
				from = node.Name
			}
			if to == node.ID {
				to = node.Name
			}
			fmt.Fprintf(&b, "\n  %s %s %s", from, edge.Kind, to)
		}
	}

	return domain.RetrievedDocument{
		Title:        node.Name,
		Content:      b.String(),
		Source:       "codeql",
		DocumentType: "code_graph",
		Score:        1.0,
		Metadata: map[string]any{
			"node_id":   node.ID,
			"node_kind": string(node.Kind),
			"repo":      node.Repo,
			"file_path": node.FilePath,
		},
	}
}
