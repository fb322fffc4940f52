package codeql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ekap-project/knowledge-core/internal/config"
)

// ErrBuildFailed indicates a database build failed for one language.
// It never aborts sibling languages or sources.
var ErrBuildFailed = errors.New("code database build failed")

// Analysis statuses.
const (
	StatusCompleted = "completed"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

// Skip reasons.
const (
	ReasonSourceDisabled      = "source_disabled"
	ReasonAreaNotEnabled      = "codeql_not_enabled_for_business_area"
	ReasonNoSourcesRegistered = "no_sources_registered"
)

// Default language set for sources registered from configuration.
var defaultLanguages = []string{"python", "java"}

// LanguageResult is the per-language outcome of one source analysis.
type LanguageResult struct {
	Status   string `json:"status"`
	CacheHit bool   `json:"cache_hit,omitempty"`
	Nodes    int    `json:"nodes"`
	Edges    int    `json:"edges"`
	Error    string `json:"error,omitempty"`
}

// SourceAnalysis is the outcome of analyzing one code source.
type SourceAnalysis struct {
	SourceID  string                    `json:"source_id"`
	Status    string                    `json:"status"`
	Reason    string                    `json:"reason,omitempty"`
	Revision  string                    `json:"revision,omitempty"`
	Languages map[string]LanguageResult `json:"languages,omitempty"`
}

// Service drives the full build pipeline: registry lookup, revision-gated
// build, query battery, graph emission, registry bookkeeping.
type Service struct {
	registry *Registry
	builder  *DatabaseBuilder
	executor *QueryExecutor
	emitter  *GraphEmitter
	resolver *config.SourceConfigResolver

	// enabled is the global code-graph flag; per-area enablement is
	// checked against the area's codeql source configuration.
	enabled bool
}

func NewService(registry *Registry, builder *DatabaseBuilder, executor *QueryExecutor, emitter *GraphEmitter, resolver *config.SourceConfigResolver, enabled bool) *Service {
	return &Service{
		registry: registry,
		builder:  builder,
		executor: executor,
		emitter:  emitter,
		resolver: resolver,
		enabled:  enabled,
	}
}

// IsEnabledForArea reports whether code-graph analysis may run for an area.
// Both the global flag and the area's own codeql configuration must be
// enabled.
func (s *Service) IsEnabledForArea(area string) bool {
	if !s.enabled {
		return false
	}
	cfg, ok := s.resolver.SourceConfig(area, "codeql")
	if !ok {
		return false
	}
	return cfg.Bool("enabled", false)
}

// AnalyzeSource runs the pipeline for one registered source. Registry
// lookups on unknown ids fail to the caller; everything downstream is
// recorded per language.
func (s *Service) AnalyzeSource(ctx context.Context, sourceID string) (SourceAnalysis, error) {
	source, err := s.registry.Get(sourceID)
	if err != nil {
		return SourceAnalysis{}, err
	}

	if !source.Enabled {
		return SourceAnalysis{SourceID: sourceID, Status: StatusSkipped, Reason: ReasonSourceDisabled}, nil
	}
	if !s.IsEnabledForArea(source.BusinessArea) {
		return SourceAnalysis{SourceID: sourceID, Status: StatusSkipped, Reason: ReasonAreaNotEnabled}, nil
	}

	analysis := SourceAnalysis{
		SourceID:  sourceID,
		Languages: make(map[string]LanguageResult, len(source.Languages)),
	}

	var succeeded int
	for _, language := range source.Languages {
		result, revision := s.analyzeLanguage(ctx, source, language)
		analysis.Languages[language] = result
		if result.Status == StatusCompleted {
			succeeded++
			analysis.Revision = revision
		}
	}

	if succeeded == 0 {
		analysis.Status = StatusFailed
		return analysis, nil
	}

	analysis.Status = StatusCompleted
	// No revision means the source is not a git checkout; there is nothing
	// to gate the next build on.
	if analysis.Revision != "" {
		if err := s.registry.UpdateCommitHash(sourceID, analysis.Revision); err != nil {
			slog.Error("Failed to record analyzed revision", "source_id", sourceID, "error", err)
		}
	}
	return analysis, nil
}

// analyzeLanguage runs build, query battery, and emission for one language.
// A failure is folded into the result so sibling languages proceed.
func (s *Service) analyzeLanguage(ctx context.Context, source CodeSource, language string) (LanguageResult, string) {
	outcome, err := s.builder.EnsureDatabase(ctx, source, language)
	if err != nil {
		err = fmt.Errorf("%w: %s/%s: %v", ErrBuildFailed, source.SourceID, language, err)
		slog.Error("Database build failed",
			"source_id", source.SourceID, "language", language, "error", err)
		return LanguageResult{Status: StatusFailed, Error: err.Error()}, ""
	}

	battery := s.executor.RunBattery(ctx, outcome.DatabasePath, language)

	stats, err := s.emitter.Emit(ctx, source.BusinessArea, source.Path, battery)
	if err != nil {
		slog.Error("Graph emission failed",
			"source_id", source.SourceID, "language", language, "error", err)
		return LanguageResult{Status: StatusFailed, CacheHit: outcome.CacheHit, Error: err.Error()}, ""
	}

	return LanguageResult{
		Status:   StatusCompleted,
		CacheHit: outcome.CacheHit,
		Nodes:    stats.Nodes,
		Edges:    stats.Edges,
	}, outcome.Revision
}

// AnalyzeBusinessArea runs the pipeline over every enabled source in the
// area. One source's failure is recorded and does not stop the others.
func (s *Service) AnalyzeBusinessArea(ctx context.Context, area string) map[string]SourceAnalysis {
	results := make(map[string]SourceAnalysis)

	if !s.IsEnabledForArea(area) {
		results[area] = SourceAnalysis{Status: StatusSkipped, Reason: ReasonAreaNotEnabled}
		return results
	}

	sources := s.registry.ListEnabled(area)
	if len(sources) == 0 {
		results[area] = SourceAnalysis{Status: StatusSkipped, Reason: ReasonNoSourcesRegistered}
		return results
	}

	for _, source := range sources {
		analysis, err := s.AnalyzeSource(ctx, source.SourceID)
		if err != nil {
			analysis = SourceAnalysis{
				SourceID: source.SourceID,
				Status:   StatusFailed,
				Reason:   err.Error(),
			}
		}
		results[source.SourceID] = analysis
	}

	return results
}

// RegisterSourcesFromConfig registers every repo listed in the area's
// codeql configuration block as a repository source with the default
// language set. Returns the generated ids; empty when the block is
// disabled or lists no repos.
func (s *Service) RegisterSourcesFromConfig(area string) ([]string, error) {
	cfg, ok := s.resolver.SourceConfig(area, "codeql")
	if !ok || !cfg.Bool("enabled", false) {
		return nil, nil
	}

	repos := cfg.List("repos")
	if len(repos) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(repos))
	for _, repo := range repos {
		id, err := s.registry.Register(area, SourceTypeRepository, repo, defaultLanguages, RegisterOptions{})
		if err != nil {
			return ids, fmt.Errorf("failed to register %s: %w", repo, err)
		}
		ids = append(ids, id)
	}

	slog.Info("Registered code sources from config", "business_area", area, "count", len(ids))
	return ids, nil
}
