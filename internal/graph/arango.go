package graph

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/arangodb/go-driver/v2/connection"

	"github.com/ekap-project/knowledge-core/internal/config"
	"github.com/ekap-project/knowledge-core/internal/domain"
)

const (
	graphName      = "codegraph"
	nodeCollection = "code_nodes"
)

var edgeCollections = map[domain.GraphEdgeKind]string{
	domain.EdgeCalls:          "calls",
	domain.EdgeRunsSubprocess: "runs_subprocess",
	domain.EdgeImports:        "imports",
}

// ArangoStore is the ArangoDB-backed implementation of Store.
type ArangoStore struct {
	conn   connection.Connection
	client arangodb.Client
	db     arangodb.Database
	cfg    config.GraphSettings
}

// NewArangoStore connects to ArangoDB and binds the configured database.
// The database and collections are created lazily by EnsureSchema.
func NewArangoStore(ctx context.Context, cfg config.GraphSettings) (*ArangoStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("graph store URL is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("graph store database name is required")
	}

	endpoint := connection.NewRoundRobinEndpoints([]string{cfg.URL})
	conn := connection.NewHttp2Connection(connection.DefaultHTTP2ConfigurationWrapper(endpoint, true))

	if cfg.Username != "" {
		auth := connection.NewBasicAuth(cfg.Username, cfg.Password)
		if err := conn.SetAuthentication(auth); err != nil {
			return nil, fmt.Errorf("graph store auth: %w", err)
		}
	}

	return &ArangoStore{
		conn:   conn,
		client: arangodb.NewClient(conn),
		cfg:    cfg,
	}, nil
}

func (s *ArangoStore) Close() error {
	return nil
}

// EnsureSchema creates the database, the node collection, the typed edge
// collections, and the named graph if any of them are missing.
func (s *ArangoStore) EnsureSchema(ctx context.Context) error {
	exists, err := s.client.DatabaseExists(ctx, s.cfg.Database)
	if err != nil {
		return fmt.Errorf("check database exists: %w", err)
	}
	if !exists {
		if _, err := s.client.CreateDatabase(ctx, s.cfg.Database, nil); err != nil {
			return fmt.Errorf("create database: %w", err)
		}
		slog.Info("Graph database created", "database", s.cfg.Database)
	}

	db, err := s.client.GetDatabase(ctx, s.cfg.Database, nil)
	if err != nil {
		return fmt.Errorf("get database: %w", err)
	}
	s.db = db

	if err := s.ensureCollection(ctx, nodeCollection, false); err != nil {
		return err
	}
	for _, name := range edgeCollections {
		if err := s.ensureCollection(ctx, name, true); err != nil {
			return err
		}
	}

	return s.ensureGraph(ctx)
}

func (s *ArangoStore) ensureCollection(ctx context.Context, name string, isEdge bool) error {
	exists, err := s.db.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check collection %s exists: %w", name, err)
	}
	if exists {
		return nil
	}

	colType := arangodb.CollectionTypeDocument
	if isEdge {
		colType = arangodb.CollectionTypeEdge
	}
	props := &arangodb.CreateCollectionPropertiesV2{Type: &colType}

	if _, err := s.db.CreateCollectionV2(ctx, name, props); err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	slog.Info("Graph collection created", "collection", name, "is_edge", isEdge)
	return nil
}

func (s *ArangoStore) ensureGraph(ctx context.Context) error {
	exists, err := s.db.GraphExists(ctx, graphName)
	if err != nil {
		return fmt.Errorf("check graph exists: %w", err)
	}
	if exists {
		return nil
	}

	var defs []arangodb.EdgeDefinition
	for _, name := range edgeCollections {
		defs = append(defs, arangodb.EdgeDefinition{
			Collection: name,
			From:       []string{nodeCollection},
			To:         []string{nodeCollection},
		})
	}

	if _, err := s.db.CreateGraph(ctx, graphName, &arangodb.GraphDefinition{
		Name:            graphName,
		EdgeDefinitions: defs,
	}, nil); err != nil {
		return fmt.Errorf("create graph: %w", err)
	}

	slog.Info("Graph created", "graph", graphName)
	return nil
}

// UpsertNodes merges nodes by id. Re-emitting a node updates its properties
// in place instead of creating a duplicate.
func (s *ArangoStore) UpsertNodes(ctx context.Context, nodes []domain.GraphNode) error {
	if s.db == nil {
		return fmt.Errorf("graph database not initialized")
	}
	if len(nodes) == 0 {
		return nil
	}

	start := time.Now()

	docs := make([]map[string]any, len(nodes))
	for i, node := range nodes {
		docs[i] = map[string]any{
			"_key":          makeKey(node.ID),
			"id":            node.ID,
			"kind":          string(node.Kind),
			"name":          node.Name,
			"business_area": node.BusinessArea,
			"repo":          node.Repo,
			"file_path":     node.FilePath,
			"line_start":    node.LineStart,
			"line_end":      node.LineEnd,
		}
		for k, v := range node.Properties {
			docs[i][k] = v
		}
	}

	query := fmt.Sprintf(`
		FOR doc IN @docs
			UPSERT { _key: doc._key }
			INSERT doc
			UPDATE doc
			IN %s
	`, nodeCollection)

	cursor, err := s.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]any{"docs": docs},
	})
	if err != nil {
		return fmt.Errorf("upsert nodes: %w", err)
	}
	defer cursor.Close()

	slog.Debug("Graph nodes upserted", "count", len(nodes), "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// UpsertEdges merges edges into the collection matching their kind. An edge
// between the same pair with the same kind is updated, not duplicated.
func (s *ArangoStore) UpsertEdges(ctx context.Context, edges []domain.GraphEdge) error {
	if s.db == nil {
		return fmt.Errorf("graph database not initialized")
	}
	if len(edges) == 0 {
		return nil
	}

	start := time.Now()

	byKind := make(map[domain.GraphEdgeKind][]map[string]any)
	for _, edge := range edges {
		if _, ok := edgeCollections[edge.Kind]; !ok {
			return fmt.Errorf("unknown edge kind %q", edge.Kind)
		}
		byKind[edge.Kind] = append(byKind[edge.Kind], map[string]any{
			"_key":          makeKey(edge.FromID + "->" + edge.ToID),
			"_from":         nodeCollection + "/" + makeKey(edge.FromID),
			"_to":           nodeCollection + "/" + makeKey(edge.ToID),
			"from_id":       edge.FromID,
			"to_id":         edge.ToID,
			"kind":          string(edge.Kind),
			"business_area": edge.BusinessArea,
			"repo":          edge.Repo,
		})
	}

	for kind, docs := range byKind {
		query := fmt.Sprintf(`
			FOR doc IN @docs
				UPSERT { _key: doc._key }
				INSERT doc
				UPDATE doc
				IN %s
		`, edgeCollections[kind])

		cursor, err := s.db.Query(ctx, query, &arangodb.QueryOptions{
			BindVars: map[string]any{"docs": docs},
		})
		if err != nil {
			return fmt.Errorf("upsert %s edges: %w", kind, err)
		}
		cursor.Close()
	}

	slog.Debug("Graph edges upserted", "count", len(edges), "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// DeleteRepoGraph removes every node and edge tagged with the (area, repo)
// pair. Graphs owned by other pairs are untouched.
func (s *ArangoStore) DeleteRepoGraph(ctx context.Context, area, repo string) error {
	if s.db == nil {
		return fmt.Errorf("graph database not initialized")
	}

	start := time.Now()

	collections := []string{nodeCollection}
	for _, name := range edgeCollections {
		collections = append(collections, name)
	}

	for _, name := range collections {
		query := fmt.Sprintf(`
			FOR doc IN %s
				FILTER doc.business_area == @area AND doc.repo == @repo
				REMOVE doc IN %s
		`, name, name)

		cursor, err := s.db.Query(ctx, query, &arangodb.QueryOptions{
			BindVars: map[string]any{"area": area, "repo": repo},
		})
		if err != nil {
			return fmt.Errorf("delete %s for %s/%s: %w", name, area, repo, err)
		}
		cursor.Close()
	}

	slog.Info("Repo graph deleted", "business_area", area, "repo", repo,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// MatchNodes finds nodes in the area whose name contains the substring,
// case-insensitively.
func (s *ArangoStore) MatchNodes(ctx context.Context, area, nameSubstring string, limit int) ([]domain.GraphNode, error) {
	if s.db == nil {
		return nil, fmt.Errorf("graph database not initialized")
	}
	if limit <= 0 {
		limit = 25
	}

	query := fmt.Sprintf(`
		FOR doc IN %s
			FILTER doc.business_area == @area
			FILTER CONTAINS(LOWER(doc.name), LOWER(@pattern))
			LIMIT @limit
			RETURN doc
	`, nodeCollection)

	cursor, err := s.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]any{
			"area":    area,
			"pattern": nameSubstring,
			"limit":   limit,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("match nodes: %w", err)
	}
	defer cursor.Close()

	return readNodes(ctx, cursor)
}

// Neighbors returns nodes within depth hops in either direction along with
// the connecting edges.
func (s *ArangoStore) Neighbors(ctx context.Context, nodeID string, depth int) ([]domain.GraphNode, []domain.GraphEdge, error) {
	if s.db == nil {
		return nil, nil, fmt.Errorf("graph database not initialized")
	}
	if depth <= 0 {
		depth = 1
	}

	query := fmt.Sprintf(`
		FOR v, e IN 1..@depth ANY @start GRAPH %q
			RETURN { vertex: v, edge: e }
	`, graphName)

	cursor, err := s.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]any{
			"start": nodeCollection + "/" + makeKey(nodeID),
			"depth": depth,
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("neighbors traversal: %w", err)
	}
	defer cursor.Close()

	seen := make(map[string]domain.GraphNode)
	var edges []domain.GraphEdge
	for cursor.HasMore() {
		var doc struct {
			Vertex nodeDoc `json:"vertex"`
			Edge   struct {
				From         string `json:"from_id"`
				To           string `json:"to_id"`
				Kind         string `json:"kind"`
				BusinessArea string `json:"business_area"`
				Repo         string `json:"repo"`
			} `json:"edge"`
		}
		if _, err := cursor.ReadDocument(ctx, &doc); err != nil {
			return nil, nil, fmt.Errorf("read traversal document: %w", err)
		}
		if doc.Vertex.ID != "" {
			seen[doc.Vertex.ID] = doc.Vertex.toNode()
		}
		if doc.Edge.Kind != "" {
			edges = append(edges, domain.GraphEdge{
				FromID:       doc.Edge.From,
				ToID:         doc.Edge.To,
				Kind:         domain.GraphEdgeKind(doc.Edge.Kind),
				BusinessArea: doc.Edge.BusinessArea,
				Repo:         doc.Edge.Repo,
			})
		}
	}

	nodes := make([]domain.GraphNode, 0, len(seen))
	for _, node := range seen {
		nodes = append(nodes, node)
	}
	return nodes, edges, nil
}

// Callers returns nodes with a CALLS edge into the given node, transitively
// up to depth.
func (s *ArangoStore) Callers(ctx context.Context, nodeID string, depth int) ([]domain.GraphNode, error) {
	return s.traverseCalls(ctx, nodeID, depth, "INBOUND")
}

// Callees returns nodes the given node CALLS, transitively up to depth.
func (s *ArangoStore) Callees(ctx context.Context, nodeID string, depth int) ([]domain.GraphNode, error) {
	return s.traverseCalls(ctx, nodeID, depth, "OUTBOUND")
}

func (s *ArangoStore) traverseCalls(ctx context.Context, nodeID string, depth int, direction string) ([]domain.GraphNode, error) {
	if s.db == nil {
		return nil, fmt.Errorf("graph database not initialized")
	}
	if depth <= 0 {
		depth = 1
	}

	query := fmt.Sprintf(`
		FOR v IN 1..@depth %s @start GRAPH %q
			OPTIONS { edgeCollections: ["calls"] }
			RETURN v
	`, direction, graphName)

	cursor, err := s.db.Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]any{
			"start": nodeCollection + "/" + makeKey(nodeID),
			"depth": depth,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("calls traversal: %w", err)
	}
	defer cursor.Close()

	return readNodes(ctx, cursor)
}

// Available reports whether the store can currently serve queries.
func (s *ArangoStore) Available(ctx context.Context) bool {
	if s.db == nil {
		return false
	}
	_, err := s.client.Version(ctx)
	return err == nil
}

type nodeDoc struct {
	ID           string `json:"id"`
	Kind         string `json:"kind"`
	Name         string `json:"name"`
	BusinessArea string `json:"business_area"`
	Repo         string `json:"repo"`
	FilePath     string `json:"file_path"`
	LineStart    int    `json:"line_start"`
	LineEnd      int    `json:"line_end"`
}

func (d nodeDoc) toNode() domain.GraphNode {
	return domain.GraphNode{
		ID:           d.ID,
		Kind:         domain.GraphNodeKind(d.Kind),
		Name:         d.Name,
		BusinessArea: d.BusinessArea,
		Repo:         d.Repo,
		FilePath:     d.FilePath,
		LineStart:    d.LineStart,
		LineEnd:      d.LineEnd,
	}
}

func readNodes(ctx context.Context, cursor arangodb.Cursor) ([]domain.GraphNode, error) {
	var results []domain.GraphNode
	for cursor.HasMore() {
		var doc nodeDoc
		if _, err := cursor.ReadDocument(ctx, &doc); err != nil {
			return nil, fmt.Errorf("read node document: %w", err)
		}
		// External references may resolve to vertices that were never
		// emitted. Skip them.
		if doc.ID == "" {
			continue
		}
		results = append(results, doc.toNode())
	}
	return results, nil
}

// makeKey derives a collection-safe _key from a node id, which may contain
// characters ArangoDB keys do not allow.
func makeKey(id string) string {
	hash := md5.Sum([]byte(id))
	return hex.EncodeToString(hash[:])[:16]
}
