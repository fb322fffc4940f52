// Package retrieval fans a query out across a tenant's configured sources
// and aggregates per-source results with fault isolation.
package retrieval

import (
	"context"
	"errors"

	"github.com/ekap-project/knowledge-core/internal/domain"
)

// ErrInvalidTenant is returned when a dispatch names an unknown business area.
// It is the only error a dispatch call can fail with; everything downstream
// is captured inside the per-source results.
var ErrInvalidTenant = errors.New("unknown business area")

// Retriever answers a query against one category of source. Implementations
// never return a Go error; failure is encoded in the result object so one
// source cannot abort the others.
type Retriever interface {
	Name() string
	Retrieve(ctx context.Context, query, area string, limit int, filters map[string]any) domain.RetrievalResult
}

// Registry holds the retrievers available for dispatch, keyed by name.
// It is constructed once at process start and injected into the dispatcher.
type Registry struct {
	byName map[string]Retriever
}

// NewRegistry builds a registry from the given retrievers.
func NewRegistry(retrievers ...Retriever) *Registry {
	r := &Registry{byName: make(map[string]Retriever, len(retrievers))}
	for _, ret := range retrievers {
		r.byName[ret.Name()] = ret
	}
	return r
}

// Register adds or replaces a retriever.
func (r *Registry) Register(ret Retriever) {
	r.byName[ret.Name()] = ret
}

// Get looks up a retriever by name.
func (r *Registry) Get(name string) (Retriever, bool) {
	ret, ok := r.byName[name]
	return ret, ok
}
