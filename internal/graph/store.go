// Package graph persists the derived code graph and answers structural
// queries over it.
package graph

import (
	"context"

	"github.com/ekap-project/knowledge-core/internal/domain"
)

// Store is the persistence interface for the code graph. Writes are
// idempotent: nodes and edges merge by id, and a rebuild for one
// (business area, repo) pair never touches graphs owned by other pairs.
type Store interface {
	// EnsureSchema creates the database, collections, and named graph if
	// they do not exist yet.
	EnsureSchema(ctx context.Context) error

	// UpsertNodes merges nodes by id.
	UpsertNodes(ctx context.Context, nodes []domain.GraphNode) error

	// UpsertEdges merges typed edges between existing nodes.
	UpsertEdges(ctx context.Context, edges []domain.GraphEdge) error

	// DeleteRepoGraph removes every node and edge tagged with the
	// (area, repo) pair.
	DeleteRepoGraph(ctx context.Context, area, repo string) error

	// MatchNodes finds nodes in the area whose name contains the given
	// substring, case-insensitively.
	MatchNodes(ctx context.Context, area, nameSubstring string, limit int) ([]domain.GraphNode, error)

	// Neighbors returns nodes within depth hops of the start node in either
	// direction, along with the connecting edges.
	Neighbors(ctx context.Context, nodeID string, depth int) ([]domain.GraphNode, []domain.GraphEdge, error)

	// Callers returns nodes with a CALLS edge into the given node,
	// transitively up to depth.
	Callers(ctx context.Context, nodeID string, depth int) ([]domain.GraphNode, error)

	// Callees returns nodes the given node CALLS, transitively up to depth.
	Callees(ctx context.Context, nodeID string, depth int) ([]domain.GraphNode, error)

	// Available reports whether the store can currently serve queries.
	Available(ctx context.Context) bool

	Close() error
}
