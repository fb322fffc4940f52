package domain

import "fmt"

// GraphNodeKind enumerates the node types emitted into the code graph.
type GraphNodeKind string

const (
	NodeFunction GraphNodeKind = "Function"
	NodeClass    GraphNodeKind = "Class"
	NodeFile     GraphNodeKind = "File"
	NodeScript   GraphNodeKind = "Script"
	NodeModule   GraphNodeKind = "Module"
)

// GraphEdgeKind enumerates the typed relationships between graph nodes.
type GraphEdgeKind string

const (
	EdgeCalls          GraphEdgeKind = "CALLS"
	EdgeRunsSubprocess GraphEdgeKind = "RUNS_SUBPROCESS"
	EdgeImports        GraphEdgeKind = "IMPORTS"
)

// GraphNode is a derived code-graph entity. Nodes are upserted by id, so
// re-emitting the same node updates rather than duplicates it.
type GraphNode struct {
	ID           string         `json:"id"`
	Kind         GraphNodeKind  `json:"kind"`
	Name         string         `json:"name"`
	BusinessArea string         `json:"business_area"`
	Repo         string         `json:"repo"`
	FilePath     string         `json:"file_path,omitempty"`
	LineStart    int            `json:"line_start,omitempty"`
	LineEnd      int            `json:"line_end,omitempty"`
	Properties   map[string]any `json:"properties,omitempty"`
}

// GraphEdge is a typed relationship tagged with its owning (area, repo) pair
// so a rebuild can delete the whole scope in one pass.
type GraphEdge struct {
	FromID       string        `json:"from_id"`
	ToID         string        `json:"to_id"`
	Kind         GraphEdgeKind `json:"kind"`
	BusinessArea string        `json:"business_area"`
	Repo         string        `json:"repo"`
}

// GraphNodeID builds the composite node id used across the graph store.
// Format: "{area}:{repo}:{kind}:{name}".
func GraphNodeID(area, repo string, kind GraphNodeKind, name string) string {
	return fmt.Sprintf("%s:%s:%s:%s", area, repo, lowerKind(kind), name)
}

func lowerKind(kind GraphNodeKind) string {
	switch kind {
	case NodeFunction:
		return "function"
	case NodeClass:
		return "class"
	case NodeFile:
		return "file"
	case NodeScript:
		return "script"
	case NodeModule:
		return "module"
	}
	return string(kind)
}
