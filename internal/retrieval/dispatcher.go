package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ekap-project/knowledge-core/internal/config"
	"github.com/ekap-project/knowledge-core/internal/domain"
)

// DefaultSourceRetrievers maps source names to the retrievers that serve
// them when no per-tenant override exists. The codeql source is opt-in: it
// is only dispatched for areas that configure it explicitly.
var DefaultSourceRetrievers = map[string][]string{
	"confluence":   {"docs"},
	"firestore":    {"docs"},
	"gitlab":       {"code"},
	"openmetadata": {"lineage"},
	"codeql":       {"graph"},
}

// Plan is the caller-supplied steering input for one dispatch.
type Plan struct {
	// Sources restricts dispatch to a subset of the tenant's configured
	// sources. Empty means all configured sources.
	Sources []string

	// Limit is the per-retriever result cap, clamped to [1, 50] with a
	// default of 5.
	Limit int

	// Filters are merged into each dispatch; the source filter is always
	// forced to the source being dispatched.
	Filters map[string]any
}

// Dispatcher resolves which retrievers serve each of a tenant's sources and
// invokes them concurrently, accumulating results keyed by source name.
type Dispatcher struct {
	areas    []string
	resolver *config.SourceConfigResolver
	registry *Registry
	defaults map[string][]string
}

// NewDispatcher builds a dispatcher over the known business areas.
func NewDispatcher(areas []string, resolver *config.SourceConfigResolver, registry *Registry) *Dispatcher {
	return &Dispatcher{
		areas:    areas,
		resolver: resolver,
		registry: registry,
		defaults: DefaultSourceRetrievers,
	}
}

// Retrieve fans the query out across the area's configured sources.
// It fails only for an unknown business area; every downstream failure is
// recorded in the result map so a single bad source never aborts the call.
func (d *Dispatcher) Retrieve(ctx context.Context, query, area string, plan Plan) (map[string][]domain.RetrievalResult, error) {
	if !d.isKnownArea(area) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTenant, area)
	}

	sources := d.resolver.SourcesFor(area)
	if len(plan.Sources) > 0 {
		sources = sources.Restrict(plan.Sources)
	}

	results := make(map[string][]domain.RetrievalResult)
	if sources.Len() == 0 {
		slog.Warn("No sources registered for business area", "business_area", area)
		return results, nil
	}

	limit := clampLimit(plan.Limit)
	overrides := d.resolver.OverridesFor(area)

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, source := range sources.Names() {
		names := overrides[source]
		if len(names) == 0 {
			names = d.defaults[source]
		}

		if len(names) == 0 {
			slog.Warn("No retriever configured for source", "business_area", area, "source", source)
			mu.Lock()
			results[source] = append(results[source], domain.RetrievalResult{
				Source:  source,
				Message: domain.MessageNoRetriever,
				Error:   "no retriever configured",
			})
			mu.Unlock()
			continue
		}

		for _, name := range names {
			retriever, ok := d.registry.Get(name)
			if !ok {
				slog.Warn("Retriever not registered", "business_area", area, "source", source, "retriever", name)
				mu.Lock()
				results[source] = append(results[source], domain.RetrievalResult{
					RetrieverName: name,
					Source:        source,
					Message:       domain.MessageRetrieverNotFound,
					Error:         fmt.Sprintf("retriever not found: %s", name),
				})
				mu.Unlock()
				continue
			}

			wg.Add(1)
			go func(source string, retriever Retriever) {
				defer wg.Done()
				result := retriever.Retrieve(ctx, query, area, limit, dispatchFilters(plan.Filters, source))
				result.Source = source
				mu.Lock()
				results[source] = append(results[source], result)
				mu.Unlock()
			}(source, retriever)
		}
	}
	wg.Wait()

	return results, nil
}

func (d *Dispatcher) isKnownArea(area string) bool {
	for _, a := range d.areas {
		if a == area {
			return true
		}
	}
	return false
}

// dispatchFilters copies the caller filters and scopes the dispatch to the
// source being served. An explicit caller source filter is preserved.
func dispatchFilters(filters map[string]any, source string) map[string]any {
	merged := make(map[string]any, len(filters)+1)
	for k, v := range filters {
		merged[k] = v
	}
	if _, ok := merged["source"]; !ok {
		merged["source"] = source
	}
	return merged
}

func clampLimit(limit int) int {
	switch {
	case limit == 0:
		return config.DefaultRetrievalLimit
	case limit < config.MinRetrievalLimit:
		return config.MinRetrievalLimit
	case limit > config.MaxRetrievalLimit:
		return config.MaxRetrievalLimit
	}
	return limit
}
