// Package app wires the application together: settings, search engine,
// retriever dispatch, graph store, and the code analysis pipeline are
// constructed once here and injected into everything that needs them.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ekap-project/knowledge-core/internal/codeql"
	"github.com/ekap-project/knowledge-core/internal/config"
	"github.com/ekap-project/knowledge-core/internal/embed"
	"github.com/ekap-project/knowledge-core/internal/graph"
	"github.com/ekap-project/knowledge-core/internal/ingest"
	"github.com/ekap-project/knowledge-core/internal/retrieval"
	"github.com/ekap-project/knowledge-core/internal/search"
	"github.com/ekap-project/knowledge-core/internal/vector"
)

// App holds the composed application. Construct it once with NewApp and
// share it; every component is safe for concurrent use.
type App struct {
	Settings   *config.Settings
	Resolver   *config.SourceConfigResolver
	Lexical    *search.LexicalIndex
	Engine     *search.HybridEngine
	Dispatcher *retrieval.Dispatcher
	GraphStore graph.Store
	CodeQL     *codeql.Service
	Sources    *codeql.Registry
	Ingestor   *ingest.Ingestor
	Metadata   *ingest.MetadataStore
}

// NewApp builds the application from settings. An unreachable graph store
// degrades the graph retriever and disables code analysis; it does not
// fail construction.
func NewApp(ctx context.Context, settings *config.Settings) (*App, error) {
	resolver := config.NewSourceConfigResolver(settings.SourcesConfig, settings.RetrieverOverrides)

	vectorIndex, err := vector.NewIndex(settings.Vector)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector index client: %w", err)
	}
	embedder := embed.NewClient(settings.Embedding)

	lexical := search.NewLexicalIndex()
	engine := search.NewHybridEngine(lexical, vectorIndex, embedder, settings.Search)

	var graphStore graph.Store
	if store, err := graph.NewArangoStore(ctx, settings.Graph); err != nil {
		slog.Warn("Graph store unreachable, graph features degraded", "url", settings.Graph.URL, "error", err)
	} else {
		graphStore = store
	}

	registry := retrieval.NewRegistry(
		retrieval.NewDocumentationRetriever(engine),
		retrieval.NewCodeRetriever(engine),
		retrieval.NewLineageRetriever(engine),
		retrieval.NewGraphRetriever(graphStore),
	)
	dispatcher := retrieval.NewDispatcher(settings.BusinessAreas, resolver, registry)

	metadata, err := ingest.LoadMetadataStore(settings.Ingest.MetadataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load sync metadata: %w", err)
	}
	ingestor := ingest.NewIngestor(lexical, metadata)

	sources, err := codeql.LoadRegistry(settings.CodeQL.RegistryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load code source registry: %w", err)
	}

	analysisEnabled := settings.CodeQL.Enabled
	if analysisEnabled && graphStore == nil {
		slog.Warn("Code analysis disabled: graph store unavailable")
		analysisEnabled = false
	}
	if analysisEnabled {
		if err := graphStore.EnsureSchema(ctx); err != nil {
			slog.Warn("Graph schema setup failed, code analysis disabled", "error", err)
			analysisEnabled = false
		}
	}

	cli := codeql.NewCLI(settings.CodeQL)
	storage := codeql.NewDatabaseStorage(settings.CodeQL.DatabaseDir)
	builder := codeql.NewDatabaseBuilder(cli, storage)
	queries := codeql.NewQueryExecutor(cli, settings.CodeQL.QueriesDir)
	emitter := codeql.NewGraphEmitter(graphStore)
	analysis := codeql.NewService(sources, builder, queries, emitter, resolver, analysisEnabled)

	return &App{
		Settings:   settings,
		Resolver:   resolver,
		Lexical:    lexical,
		Engine:     engine,
		Dispatcher: dispatcher,
		GraphStore: graphStore,
		CodeQL:     analysis,
		Sources:    sources,
		Ingestor:   ingestor,
		Metadata:   metadata,
	}, nil
}

// Close releases held resources.
func (a *App) Close() {
	if err := a.Lexical.Close(); err != nil {
		slog.Error("Failed to close lexical index", "error", err)
	}
	if a.GraphStore != nil {
		if err := a.GraphStore.Close(); err != nil {
			slog.Error("Failed to close graph store", "error", err)
		}
	}
}
