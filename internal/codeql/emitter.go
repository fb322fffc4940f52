package codeql

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ekap-project/knowledge-core/internal/domain"
	"github.com/ekap-project/knowledge-core/internal/graph"
)

// GraphEmitter materializes analysis results into the graph store.
// Emission is a full rebuild per (area, repo): all prior elements tagged
// with the pair are deleted before the new graph is written.
type GraphEmitter struct {
	store graph.Store
}

// EmitStats reports how many elements one emission produced.
type EmitStats struct {
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}

func NewGraphEmitter(store graph.Store) *GraphEmitter {
	return &GraphEmitter{store: store}
}

// Emit replaces the (area, repo) graph with the given battery results.
func (e *GraphEmitter) Emit(ctx context.Context, area, repo string, battery map[string][][]string) (EmitStats, error) {
	if err := e.store.DeleteRepoGraph(ctx, area, repo); err != nil {
		return EmitStats{}, fmt.Errorf("failed to clear prior graph: %w", err)
	}

	nodes := make(map[string]domain.GraphNode)
	var edges []domain.GraphEdge

	addNode := func(kind domain.GraphNodeKind, name string) string {
		id := domain.GraphNodeID(area, repo, kind, name)
		if _, ok := nodes[id]; !ok {
			nodes[id] = domain.GraphNode{
				ID:           id,
				Kind:         kind,
				Name:         name,
				BusinessArea: area,
				Repo:         repo,
			}
		}
		return id
	}

	addEdge := func(fromID, toID string, kind domain.GraphEdgeKind) {
		edges = append(edges, domain.GraphEdge{
			FromID:       fromID,
			ToID:         toID,
			Kind:         kind,
			BusinessArea: area,
			Repo:         repo,
		})
	}

	for analysis, rows := range battery {
		for _, row := range rows {
			if len(row) < 2 || row[0] == "" || row[1] == "" {
				continue
			}
			switch analysis {
			case AnalysisCallGraph:
				from := addNode(domain.NodeFunction, row[0])
				to := addNode(domain.NodeFunction, row[1])
				addEdge(from, to, domain.EdgeCalls)
			case AnalysisSubprocessCalls:
				from := addNode(domain.NodeFunction, row[0])
				to := addNode(domain.NodeScript, row[1])
				addEdge(from, to, domain.EdgeRunsSubprocess)
			case AnalysisImports:
				from := addNode(domain.NodeFile, row[0])
				to := addNode(domain.NodeModule, row[1])
				addEdge(from, to, domain.EdgeImports)
			default:
				slog.Warn("Unknown analysis in emission, skipping", "analysis", analysis)
			}
		}
	}

	nodeList := make([]domain.GraphNode, 0, len(nodes))
	for _, node := range nodes {
		nodeList = append(nodeList, node)
	}

	if err := e.store.UpsertNodes(ctx, nodeList); err != nil {
		return EmitStats{}, fmt.Errorf("failed to upsert nodes: %w", err)
	}
	if err := e.store.UpsertEdges(ctx, edges); err != nil {
		return EmitStats{}, fmt.Errorf("failed to upsert edges: %w", err)
	}

	stats := EmitStats{Nodes: len(nodeList), Edges: len(edges)}
	slog.Info("Graph emitted", "business_area", area, "repo", repo,
		"nodes", stats.Nodes, "edges", stats.Edges)
	return stats, nil
}
