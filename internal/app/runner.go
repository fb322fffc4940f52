package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ekap-project/knowledge-core/internal/codeql"
	"github.com/ekap-project/knowledge-core/internal/config"
	"github.com/ekap-project/knowledge-core/internal/ingest"
	"github.com/ekap-project/knowledge-core/internal/retrieval"
	"github.com/spf13/pflag"
)

// Setup loads settings, configures logging, and composes the application.
func Setup(ctx context.Context, flags *pflag.FlagSet, version string) (*App, error) {
	settings, err := config.LoadSettingsWithFlags(flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if err := config.ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Always log to stderr so stdout stays clean for command output.
	handler := slog.NewTextHandler(os.Stderr, nil)
	slog.SetDefault(slog.New(handler))

	slog.Info("Starting knowledge core", "version", version)
	config.Log(settings)

	return NewApp(ctx, settings)
}

// SearchOptions carries the optional parts of a search invocation.
type SearchOptions struct {
	Sources []string
	Limit   int
	Filters []string // key=value pairs
}

// RunSearch dispatches a retrieval and writes the per-source results as
// JSON to w.
func RunSearch(ctx context.Context, a *App, w io.Writer, query, area string, opts SearchOptions) error {
	filters, err := parseFilters(opts.Filters)
	if err != nil {
		return err
	}

	results, err := a.Dispatcher.Retrieve(ctx, query, area, retrieval.Plan{
		Sources: opts.Sources,
		Limit:   opts.Limit,
		Filters: filters,
	})
	if err != nil {
		return err
	}
	return writeJSON(w, results)
}

// RegisterSourceOptions carries the optional parts of a source registration.
type RegisterSourceOptions struct {
	SourceType string
	Languages  []string
	Name       string
	Disabled   bool
}

// RunSourcesRegister adds a code source to the registry and reports its id.
func RunSourcesRegister(a *App, w io.Writer, area, path string, opts RegisterSourceOptions) error {
	sourceType := opts.SourceType
	if sourceType == "" {
		sourceType = codeql.SourceTypeRepository
	}

	id, err := a.Sources.Register(area, sourceType, path, opts.Languages, codeql.RegisterOptions{
		Name:     opts.Name,
		Disabled: opts.Disabled,
	})
	if err != nil {
		return err
	}
	return writeJSON(w, map[string]string{"source_id": id})
}

// RunSourcesList writes the registered code sources for an area as JSON.
func RunSourcesList(a *App, w io.Writer, area string) error {
	return writeJSON(w, a.Sources.List(area))
}

// RunSourcesRemove deletes a code source from the registry.
func RunSourcesRemove(a *App, w io.Writer, id string) error {
	if err := a.Sources.Delete(id); err != nil {
		return err
	}
	return writeJSON(w, map[string]string{"removed": id})
}

// AnalyzeOptions selects what to analyze.
type AnalyzeOptions struct {
	SourceID   string
	Area       string
	FromConfig bool // register the area's configured repositories first
}

// RunAnalyze runs the code analysis pipeline for one source or a whole
// business area and writes the outcome as JSON.
func RunAnalyze(ctx context.Context, a *App, w io.Writer, opts AnalyzeOptions) error {
	if opts.SourceID != "" {
		analysis, err := a.CodeQL.AnalyzeSource(ctx, opts.SourceID)
		if err != nil {
			return err
		}
		return writeJSON(w, analysis)
	}

	if opts.Area == "" {
		return fmt.Errorf("either a source id or a business area is required")
	}
	if opts.FromConfig {
		ids, err := a.CodeQL.RegisterSourcesFromConfig(opts.Area)
		if err != nil {
			return err
		}
		slog.Info("Registered configured sources", "business_area", opts.Area, "count", len(ids))
	}
	return writeJSON(w, a.CodeQL.AnalyzeBusinessArea(ctx, opts.Area))
}

// RunChanges compares a source's current document ids against the last
// recorded sync and writes the change set as JSON. The stored record is
// left untouched.
func RunChanges(a *App, w io.Writer, area, source string, currentIDs []string) error {
	stored, _ := a.Metadata.Get(area, source)
	changes := ingest.DetectChanges(stored.DocumentIDs, currentIDs)
	return writeJSON(w, changes)
}

func parseFilters(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	filters := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q, expected key=value", pair)
		}
		filters[key] = value
	}
	return filters, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
